package httptransport

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"ppt2video/internal/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const eventsPollEvery = time.Second

// TaskEvents streams composed status updates over a websocket: one JSON
// message per observable change, a final message for the terminal state,
// then the connection closes. It is the push twin of TaskStatus for
// clients that would otherwise poll.
func (h *Handler) TaskEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	requester := identityFrom(r.Context()).UserID

	// authorize before upgrading so auth failures stay plain HTTP
	st, err := h.jobSvc.Status(r.Context(), id, requester)
	if err != nil {
		writeServiceErr(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[http] task_id=%s ws upgrade error=%v", id, err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(st); err != nil {
		return
	}
	if st.State.Terminal() {
		return
	}
	last := *st

	ticker := time.NewTicker(eventsPollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			st, err := h.jobSvc.Status(r.Context(), id, requester)
			if err != nil {
				// deleted mid-watch: tell the client and stop
				_ = conn.WriteJSON(map[string]string{"error": "task no longer exists"})
				return
			}
			if !statusChanged(&last, st) {
				continue
			}
			if err := conn.WriteJSON(st); err != nil {
				return
			}
			if st.State.Terminal() {
				return
			}
			last = *st
		}
	}
}

func statusChanged(prev, next *service.Status) bool {
	return prev.State != next.State ||
		prev.Meta.Stage != next.Meta.Stage ||
		prev.Meta.Progress != next.Meta.Progress ||
		prev.Meta.Detail != next.Meta.Detail
}
