package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Server
	ServerPort string

	// WebSocket
	AllowedOrigin  string
	MaxMessageSize int64
	WriteWait      time.Duration
	PongWait       time.Duration
	SendBuffer     int

	// Rate Limit
	MessageRate  float64
	MessageBurst int

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.AllowedOrigin = getEnvString("WS_ALLOWED_ORIGIN", "")
	cfg.MaxMessageSize = getEnvInt64("WS_MAX_MESSAGE_SIZE", 65536)
	cfg.WriteWait = getEnvDuration("WS_WRITE_WAIT", 10*time.Second)
	cfg.PongWait = getEnvDuration("WS_PONG_WAIT", 60*time.Second)
	cfg.SendBuffer = getEnvInt("WS_SEND_BUFFER", 256)
	cfg.MessageRate = float64(getEnvInt("WS_MESSAGE_RATE", 100))
	cfg.MessageBurst = getEnvInt("WS_MESSAGE_BURST", 200)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
