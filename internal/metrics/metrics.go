// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CommandObserver はコマンド実行の計測インターフェース。
// ルーターとトランスポート層から利用する。
type CommandObserver interface {
	RecordCommand(operation string, success bool, duration time.Duration)
	RecordEphemeralUpdate()
	RecordFinalizedUpdate()
	RecordBroadcast(recipients int)
	SetConnectedClients(count int)
	SetActiveRooms(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	commands         *prometheus.CounterVec
	commandDuration  prometheus.Histogram
	ephemeralUpdates prometheus.Counter
	finalizedUpdates prometheus.Counter
	broadcasts       prometheus.Counter
	connectedClients prometheus.Gauge
	activeRooms      prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowsync_commands_total",
			Help: "実行されたコマンドの合計数（操作名・成否別）",
		}, []string{"operation", "success"}),
		commandDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "flowsync_command_duration_seconds",
			Help:    "コマンド実行のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		ephemeralUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowsync_ephemeral_updates_total",
			Help: "永続化を伴わないエフェメラル更新の合計数",
		}),
		finalizedUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowsync_finalized_updates_total",
			Help: "永続化された確定更新の合計数",
		}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowsync_broadcast_deliveries_total",
			Help: "ブロードキャストで配送されたエンベロープの合計数",
		}),
		connectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flowsync_connected_clients",
			Help: "現在接続中のクライアント数",
		}),
		activeRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flowsync_active_rooms",
			Help: "現在存在するルーム数",
		}),
	}

	reg.MustRegister(
		c.commands,
		c.commandDuration,
		c.ephemeralUpdates,
		c.finalizedUpdates,
		c.broadcasts,
		c.connectedClients,
		c.activeRooms,
	)

	return c
}

// RecordCommand はコマンド実行を操作名・成否付きで記録する。
func (c *Collector) RecordCommand(operation string, success bool, duration time.Duration) {
	c.commands.WithLabelValues(operation, strconv.FormatBool(success)).Inc()
	c.commandDuration.Observe(duration.Seconds())
}

// RecordEphemeralUpdate はエフェメラル更新を記録する。
func (c *Collector) RecordEphemeralUpdate() {
	c.ephemeralUpdates.Inc()
}

// RecordFinalizedUpdate は確定更新を記録する。
func (c *Collector) RecordFinalizedUpdate() {
	c.finalizedUpdates.Inc()
}

// RecordBroadcast はブロードキャストの配送先数を記録する。
func (c *Collector) RecordBroadcast(recipients int) {
	c.broadcasts.Add(float64(recipients))
}

// SetConnectedClients は現在の接続クライアント数を記録する。
func (c *Collector) SetConnectedClients(count int) {
	c.connectedClients.Set(float64(count))
}

// SetActiveRooms は現在のルーム数を記録する。
func (c *Collector) SetActiveRooms(count int) {
	c.activeRooms.Set(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// アプリケーションの/metricsルートに直接マウントする。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
