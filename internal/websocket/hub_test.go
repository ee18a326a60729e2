package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/benam/api/internal/model"
)

func subscribe(t *testing.T, h *Hub, dateKey string) *Client {
	t.Helper()
	c := newClient(dateKey, nil, 8)
	h.Register(c)
	t.Cleanup(func() { h.Unregister(c) })
	return c
}

func receive(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	select {
	case data := <-c.Send:
		var msg map[string]interface{}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("bad message %s: %v", data, err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestHubRoutesByDateKey(t *testing.T) {
	h := NewHub()
	go h.Run()

	watcher := subscribe(t, h, "2025-06-01")
	other := subscribe(t, h, "2025-06-02")

	h.Progress(&model.Job{JobID: "j1", DateKey: "2025-06-01", Progress: 40, Status: model.JobStatusProcessing, CurrentStep: "audio acquired"})

	msg := receive(t, watcher)
	if msg["type"] != "progress" || msg["progress"] != float64(40) || msg["step"] != "audio acquired" {
		t.Fatalf("message = %v", msg)
	}
	select {
	case data := <-other.Send:
		t.Fatalf("other date received %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubCompletedAndFailed(t *testing.T) {
	h := NewHub()
	go h.Run()
	c := subscribe(t, h, "2025-06-01")

	h.Completed(&model.Job{
		JobID:               "j1",
		DateKey:             "2025-06-01",
		Status:              model.JobStatusCompleted,
		PrimaryArtifactRef:  "songs/2025-06-01/j1.mp3",
		CombinedArtifactRef: "combined/2025-06-01/j1.mp3",
	})
	msg := receive(t, c)
	result, ok := msg["result"].(map[string]interface{})
	if msg["type"] != "complete" || !ok || result["combinedArtifactRef"] != "combined/2025-06-01/j1.mp3" {
		t.Fatalf("message = %v", msg)
	}

	errMsg := "acquire audio: video unavailable"
	h.Failed(&model.Job{JobID: "j1", DateKey: "2025-06-01", Status: model.JobStatusFailed, Error: &errMsg})
	msg = receive(t, c)
	detail, _ := msg["error"].(map[string]interface{})
	if msg["type"] != "error" || detail["message"] != errMsg {
		t.Fatalf("message = %v", msg)
	}
}

func TestHubDropsSlowConsumerWithoutClosingSend(t *testing.T) {
	h := NewHub()
	go h.Run()
	c := subscribe(t, h, "2025-06-01")

	for i := 0; i < cap(c.Send); i++ {
		c.Send <- []byte(`{}`)
	}
	h.Progress(&model.Job{JobID: "j1", DateKey: "2025-06-01", Progress: 40})

	select {
	case <-c.done:
	case <-time.After(time.Second):
		t.Fatal("slow consumer was not dropped")
	}

	// a pong queued by the reader after the drop must not panic
	pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
	if c.trySend(pong) {
		t.Fatal("send accepted after the client was dropped")
	}
	<-c.Send
	if c.trySend(pong) {
		t.Fatal("send accepted after the client was dropped")
	}
}

func TestUnregisterAfterDropIsNoop(t *testing.T) {
	h := NewHub()
	go h.Run()
	c := newClient("2025-06-01", nil, 1)
	h.Register(c)
	h.Unregister(c)
	h.Unregister(c)

	select {
	case <-c.done:
	default:
		t.Fatal("client not marked done")
	}
}
