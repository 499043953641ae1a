package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// コンパイル時のインターフェース実装チェック
var _ CommandObserver = (*Collector)(nil)

// TestNewCollector_RegistersMetrics はCollector生成時に全メトリクスが
// レジストリに登録されることを検証する。
func TestNewCollector_RegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCommand("CreateProject", true, 5*time.Millisecond)
	c.RecordCommand("UpdateObject", false, time.Millisecond)
	c.RecordEphemeralUpdate()
	c.RecordFinalizedUpdate()
	c.RecordBroadcast(3)
	c.SetConnectedClients(2)
	c.SetActiveRooms(1)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	found := make(map[string]bool)
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{
		"flowsync_commands_total",
		"flowsync_command_duration_seconds",
		"flowsync_ephemeral_updates_total",
		"flowsync_finalized_updates_total",
		"flowsync_broadcast_deliveries_total",
		"flowsync_connected_clients",
		"flowsync_active_rooms",
	} {
		if !found[name] {
			t.Errorf("metric %s not registered", name)
		}
	}
}

// TestNewCollector_DuplicateRegistrationPanics は同一レジストリへの
// 二重登録がpanicすることを検証する。
func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewCollector(reg)
}

// TestHandler_Scrape はスクレイプハンドラーが登録済みメトリクスを
// 出力することを検証する。
func TestHandler_Scrape(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordCommand("OpenProject", true, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "flowsync_commands_total") {
		t.Error("scrape output missing flowsync_commands_total")
	}
}
