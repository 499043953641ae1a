package config

import (
	"testing"
	"time"
)

// TestLoad_RequiredMissing は必須環境変数が未設定のときエラーになることを検証する。
func TestLoad_RequiredMissing(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Error("expected error when DATABASE_URL is unset")
	}
}

// TestLoad_Defaults は任意項目に既定値が入ることを検証する。
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/flowsync_test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.AllowedOrigin != "" {
		t.Errorf("AllowedOrigin = %q, want empty", cfg.AllowedOrigin)
	}
	if cfg.MaxMessageSize != 65536 {
		t.Errorf("MaxMessageSize = %d, want 65536", cfg.MaxMessageSize)
	}
	if cfg.PongWait != 60*time.Second {
		t.Errorf("PongWait = %v, want 60s", cfg.PongWait)
	}
	if cfg.MessageRate != 100 {
		t.Errorf("MessageRate = %v, want 100", cfg.MessageRate)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

// TestLoad_Overrides は環境変数が既定値を上書きすることを検証する。
func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/flowsync_test")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("WS_ALLOWED_ORIGIN", "https://editor.example.com")
	t.Setenv("WS_PONG_WAIT", "30s")
	t.Setenv("WS_MESSAGE_RATE", "50")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.ServerPort != "9000" {
		t.Errorf("ServerPort = %q, want 9000", cfg.ServerPort)
	}
	if cfg.AllowedOrigin != "https://editor.example.com" {
		t.Errorf("AllowedOrigin = %q", cfg.AllowedOrigin)
	}
	if cfg.PongWait != 30*time.Second {
		t.Errorf("PongWait = %v, want 30s", cfg.PongWait)
	}
	if cfg.MessageRate != 50 {
		t.Errorf("MessageRate = %v, want 50", cfg.MessageRate)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

// TestLoad_InvalidValuesFallBack は解釈できない値が既定値に戻ることを検証する。
func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/flowsync_test")
	t.Setenv("WS_PONG_WAIT", "not-a-duration")
	t.Setenv("WS_SEND_BUFFER", "many")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.PongWait != 60*time.Second {
		t.Errorf("PongWait = %v, want default 60s", cfg.PongWait)
	}
	if cfg.SendBuffer != 256 {
		t.Errorf("SendBuffer = %d, want default 256", cfg.SendBuffer)
	}
}
