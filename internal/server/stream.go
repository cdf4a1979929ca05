package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/desertthunder/scribe/internal/models"
)

// handleStream serves task progress as server-sent events. The current
// snapshot goes out immediately, then every hub update; a heartbeat fills
// idle gaps so intermediaries keep the connection open. The stream ends once
// a terminal snapshot has been delivered, or when the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := s.orch.Store().Get(id); !ok {
		writeDetail(w, http.StatusNotFound, "任务不存在")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeDetail(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Subscribe before reading the snapshot. A transition landing in between
	// is then either reflected in the snapshot or queued as an event; read
	// the other way around, a terminal transition in that window would leave
	// the stream waiting on a hub that will never publish again.
	ch := s.orch.Hub().Subscribe(id)
	defer s.orch.Hub().Unsubscribe(id, ch)

	task, ok := s.orch.Store().Get(id)
	if !ok {
		return
	}
	if !writeEvent(w, flusher, task) || task.Status.Terminal() {
		return
	}

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := w.Write([]byte("data: {\"type\":\"heartbeat\"}\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case snapshot, open := <-ch:
			if !open {
				return
			}
			if !writeEvent(w, flusher, snapshot) || snapshot.Status.Terminal() {
				return
			}
			heartbeat.Reset(s.heartbeat)
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, task *models.Task) bool {
	data, err := json.Marshal(task)
	if err != nil {
		return false
	}
	if _, err := w.Write(append(append([]byte("data: "), data...), '\n', '\n')); err != nil {
		return false
	}
	flusher.Flush()
	return true
}
