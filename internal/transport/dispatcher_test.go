package transport

import (
	"encoding/json"
	"testing"

	"github.com/hitoshi/flowsync/internal/command"
)

// TestDispatcher_Deliver はエンベロープが宛先全員に配送されることを検証する。
func TestDispatcher_Deliver(t *testing.T) {
	d := NewDispatcher()
	c1 := make(chan []byte, 4)
	c2 := make(chan []byte, 4)
	d.Register("c1", c1)
	d.Register("c2", c2)

	envelope := command.NewEnvelope(command.Content{
		MessageType:   "UpdateObject",
		WasSuccessful: true,
	}, []string{"c1", "c2"})

	if delivered := d.Deliver(envelope); delivered != 2 {
		t.Fatalf("delivered = %d, want 2", delivered)
	}

	for _, ch := range []chan []byte{c1, c2} {
		select {
		case payload := <-ch:
			var content command.Content
			if err := json.Unmarshal(payload, &content); err != nil {
				t.Fatalf("payload unmarshal failed: %v", err)
			}
			if content.MessageType != "UpdateObject" || !content.WasSuccessful {
				t.Errorf("content = %+v", content)
			}
		default:
			t.Fatal("recipient did not receive payload")
		}
	}
}

// TestDispatcher_SkipsUnknownRecipient は切断済みの宛先がスキップされることを検証する。
func TestDispatcher_SkipsUnknownRecipient(t *testing.T) {
	d := NewDispatcher()
	c1 := make(chan []byte, 4)
	d.Register("c1", c1)

	envelope := command.NewEnvelope(command.Content{MessageType: "DeleteObject"}, []string{"c1", "gone"})
	if delivered := d.Deliver(envelope); delivered != 1 {
		t.Errorf("delivered = %d, want 1", delivered)
	}
}

// TestDispatcher_DropsWhenBufferFull は詰まった宛先へのエンベロープが
// ブロックせずに落とされることを検証する。
func TestDispatcher_DropsWhenBufferFull(t *testing.T) {
	d := NewDispatcher()
	full := make(chan []byte, 1)
	full <- []byte("backlog")
	d.Register("slow", full)

	envelope := command.NewEnvelope(command.Content{MessageType: "UpdateObject"}, []string{"slow"})
	if delivered := d.Deliver(envelope); delivered != 0 {
		t.Errorf("delivered = %d, want 0", delivered)
	}
}

// TestDispatcher_Unregister は登録解除後の配送がスキップされることを検証する。
func TestDispatcher_Unregister(t *testing.T) {
	d := NewDispatcher()
	d.Register("c1", make(chan []byte, 1))

	if !d.Unregister("c1") {
		t.Error("Unregister(c1) = false, want true")
	}
	if d.Unregister("c1") {
		t.Error("second Unregister(c1) = true, want false")
	}
	if d.ConnectedClients() != 0 {
		t.Errorf("ConnectedClients = %d, want 0", d.ConnectedClients())
	}

	envelope := command.NewEnvelope(command.Content{MessageType: "ReadObject"}, []string{"c1"})
	if delivered := d.Deliver(envelope); delivered != 0 {
		t.Errorf("delivered = %d, want 0", delivered)
	}
}
