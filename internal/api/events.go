package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/neexbeast/skycast/internal/app"
)

// offer replaces any undelivered state in ch with s. A slow client skips
// intermediate states but always receives the latest one.
func offer(ch chan app.State, s app.State) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Events handles GET /api/v1/events. It streams the committed state as
// server-sent "state" events: the current state first, then one per commit.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	updates := make(chan app.State, 1)
	unsubscribe, err := h.orch.Subscribe(func(s app.State) { offer(updates, s) })
	if err != nil {
		h.writeIntentError(w, err)
		return
	}
	defer unsubscribe()

	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.closing:
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case s := <-updates:
			data, err := json.Marshal(s)
			if err != nil {
				h.log.Error("encoding state event", "err", err)
				return
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: state\ndata: %s\n\n", s.Version, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
