package transport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/hitoshi/flowsync/internal/command"
	"github.com/hitoshi/flowsync/internal/metrics"
	"github.com/hitoshi/flowsync/internal/tracker"
)

// Options はWebSocket接続の動作パラメータ。
type Options struct {
	// AllowedOrigin が空の場合は全オリジンを許可する（開発用）。
	AllowedOrigin string
	// MaxMessageSize は受信メッセージの最大バイト数。
	MaxMessageSize int64
	// WriteWait は1回の書き込みの期限。
	WriteWait time.Duration
	// PongWait はpong応答を待つ期限。pingはこの9/10間隔で送る。
	PongWait time.Duration
	// SendBuffer は接続ごとの送信バッファ長。
	SendBuffer int
	// MessageRate は1接続が1秒に送れるメッセージ数。
	MessageRate float64
	// MessageBurst は瞬間的に許容するバースト数。
	MessageBurst int
}

// DefaultOptions は運用実績のある既定値を返す。
func DefaultOptions() Options {
	return Options{
		MaxMessageSize: 64 * 1024,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		SendBuffer:     256,
		MessageRate:    100,
		MessageBurst:   200,
	}
}

// Handler はWebSocket接続を受け入れ、接続ごとの読み書きポンプを駆動する。
//
// 1クライアントの逐次メッセージは読み取りループ内で同期的に
// ディスパッチされるため受信順に処理される。クライアント間の
// 完了順序は保証しない。
type Handler struct {
	upgrader   websocket.Upgrader
	router     *command.Router
	tracker    *tracker.Tracker
	dispatcher *Dispatcher
	observer   metrics.CommandObserver
	opts       Options
}

// NewHandler はHandlerを生成する。
func NewHandler(router *command.Router, tr *tracker.Tracker, dispatcher *Dispatcher, observer metrics.CommandObserver, opts Options) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if opts.AllowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == opts.AllowedOrigin
			},
		},
		router:     router,
		tracker:    tr,
		dispatcher: dispatcher,
		observer:   observer,
		opts:       opts,
	}
}

// ServeWS はHTTPリクエストをWebSocket接続にアップグレードする。
// 接続IDはサーバーが払い出し、切断まで変わらない。
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed",
			slog.String("remote", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}

	clientID := uuid.NewString()
	send := make(chan []byte, h.opts.SendBuffer)

	h.dispatcher.Register(clientID, send)
	h.updateGauges()

	slog.Info("client connected",
		slog.String("client_id", clientID),
		slog.String("remote", r.RemoteAddr),
	)

	go h.writePump(ws, send)
	h.readPump(r.Context(), ws, clientID, send)
}

// readPump は受信メッセージを順にディスパッチし、結果を配送する。
// 接続が閉じるとメンバーシップとセッションを片付けて戻る。
func (h *Handler) readPump(ctx context.Context, ws *websocket.Conn, clientID string, send chan []byte) {
	defer func() {
		h.dispatcher.Unregister(clientID)
		close(send)
		h.tracker.Disconnect(clientID)
		h.updateGauges()
	}()

	ws.SetReadLimit(h.opts.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	limiter := rate.NewLimiter(rate.Limit(h.opts.MessageRate), h.opts.MessageBurst)

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read failed",
					slog.String("client_id", clientID),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		if !limiter.Allow() {
			slog.Warn("message rate exceeded, dropping",
				slog.String("client_id", clientID),
			)
			continue
		}

		for _, envelope := range h.router.Dispatch(ctx, clientID, raw) {
			delivered := h.dispatcher.Deliver(envelope)
			h.observer.RecordBroadcast(delivered)
		}
		h.updateGauges()
	}
}

// writePump は送信チャネルの内容を接続に書き出し、定期的にpingを送る。
// チャネルがクローズされたらクローズフレームを送って戻る。
func (h *Handler) writePump(ws *websocket.Conn, send chan []byte) {
	ticker := time.NewTicker(h.opts.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case payload, ok := <-send:
			_ = ws.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) updateGauges() {
	h.observer.SetConnectedClients(h.dispatcher.ConnectedClients())
	h.observer.SetActiveRooms(h.tracker.Registry().ActiveRooms())
}
