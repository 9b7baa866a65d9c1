package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	jobdomain "vidconv/internal/domain/job"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ProgressSocket handles the websocket push endpoint. It mirrors the
// event stream: the same progress payload on the same cadence, one done
// message for a finished job, then the connection closes.
func (h *Handler) ProgressSocket(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.converter.Snapshot(id); err != nil {
		writeJSONError(w, http.StatusNotFound, "Not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Drain client frames so close handshakes are processed.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if h.emitSocketEvent(conn, id) {
		return
	}

	ticker := time.NewTicker(pushTickInterval)
	defer ticker.Stop()

	for range ticker.C {
		if h.emitSocketEvent(conn, id) {
			return
		}
	}
}

func (h *Handler) emitSocketEvent(conn *websocket.Conn, id string) bool {
	record, err := h.converter.Snapshot(id)
	if err != nil {
		_ = conn.WriteJSON(map[string]interface{}{
			"event": "error",
			"error": "Job not found",
		})
		return true
	}

	message := progressPayload(record)
	message["event"] = "progress"
	if err := conn.WriteJSON(message); err != nil {
		return true
	}

	if record.Status == jobdomain.StatusDone {
		done := map[string]interface{}{"event": "done"}
		for key, value := range donePayload(record.ID) {
			done[key] = value
		}
		_ = conn.WriteJSON(done)
		return true
	}

	return record.Status == jobdomain.StatusError
}
