package transport

import (
	"testing"

	"argus/internal/models"
)

func TestHubBroadcastWithoutConnectionIsNoop(t *testing.T) {
	h := NewHub()
	if h.Connected() {
		t.Fatal("expected no connection on a fresh hub")
	}
	// Must not panic or block with no active connection.
	h.Broadcast(models.WSEnvelope{Type: models.WSNotification})
}

func TestHubOnActionRegistersHandler(t *testing.T) {
	h := NewHub()
	called := false
	h.OnAction(func(action models.ClientAction, eventID int64) {
		called = true
	})
	h.mu.Lock()
	handler := h.onAction
	h.mu.Unlock()
	if handler == nil {
		t.Fatal("expected handler to be registered")
	}
	handler(models.ActionDone, 1)
	if !called {
		t.Fatal("expected handler invocation to flip called")
	}
}
