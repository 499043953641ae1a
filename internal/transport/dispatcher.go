// Package transport はWebSocket接続の受け入れとエンベロープの配送を提供する。
package transport

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/hitoshi/flowsync/internal/command"
)

// Dispatcher は接続中クライアントへの送信チャネルを保持し、
// エンベロープを各宛先にファンアウトする。
//
// 配送はファイア・アンド・フォーゲット。切断済みの宛先はスキップし、
// 送信バッファが詰まっている宛先へのエンベロープは落とす。遅い消費者が
// ルーム全体のブロードキャストを止めることはない。
type Dispatcher struct {
	mu    sync.RWMutex
	conns map[string]chan []byte
}

// NewDispatcher は空のDispatcherを生成する。
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		conns: make(map[string]chan []byte),
	}
}

// Register はclientIDの送信チャネルを登録する。
func (d *Dispatcher) Register(clientID string, send chan []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns[clientID] = send
}

// Unregister はclientIDの送信チャネルを外す。登録済みだった場合はtrueを返す。
// チャネルのクローズは書き込み側（接続ごとのポンプ）の責務。
func (d *Dispatcher) Unregister(clientID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.conns[clientID]
	delete(d.conns, clientID)
	return ok
}

// Deliver はエンベロープの本文を各宛先に配送する。
// 本文のシリアライズは宛先数によらず一度だけ行う。
// 配送できた宛先数を返す。
func (d *Dispatcher) Deliver(envelope *command.Envelope) int {
	payload, err := json.Marshal(envelope.Content)
	if err != nil {
		slog.Error("envelope marshal failed",
			slog.String("message_type", envelope.Content.MessageType),
			slog.String("error", err.Error()),
		)
		return 0
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	delivered := 0
	for _, clientID := range envelope.Recipients {
		send, ok := d.conns[clientID]
		if !ok {
			continue
		}
		select {
		case send <- payload:
			delivered++
		default:
			slog.Warn("send buffer full, dropping envelope",
				slog.String("client_id", clientID),
				slog.String("message_type", envelope.Content.MessageType),
			)
		}
	}
	return delivered
}

// ConnectedClients は現在登録されている接続数を返す。メトリクス用。
func (d *Dispatcher) ConnectedClients() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.conns)
}
