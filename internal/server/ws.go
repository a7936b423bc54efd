package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// upgrader accepts any origin; CORS policy is enforced by the middleware
// for the rest of the API and the stream carries no credentials.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamJobWS handles GET /jobs/{id}/ws: the same once-only progress stream
// delivered as websocket text messages. Closing the socket cancels the
// remaining stages, same as disconnecting from the plain-text endpoint.
func (h *Handlers) StreamJobWS(w http.ResponseWriter, r *http.Request) {
	j, stream, ok := h.takeAndRun(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		h.abandon(j, stream)
		return
	}
	defer func() { _ = conn.Close() }()

	// The read pump only serves to notice the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case line, open := <-stream.Lines():
			if !open {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line.Text)); err != nil {
				h.abandon(j, stream)
				return
			}
		case <-closed:
			h.abandon(j, stream)
			return
		case <-r.Context().Done():
			h.abandon(j, stream)
			return
		}
	}
}
