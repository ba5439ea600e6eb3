package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meganemura/norikra/output"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// resultFrame is one WebSocket message: a batch of result events for one
// query.
type resultFrame struct {
	Query  string           `json:"query"`
	Events []map[string]any `json:"events"`
}

// handleStream upgrades to WebSocket and streams query results as they
// arrive. An optional ?query=<name> parameter restricts the stream to
// one query; otherwise every result batch is forwarded. Delivery is best
// effort: a slow consumer loses batches instead of backpressuring the
// engine.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.results == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "result streaming is not enabled"})
		return
	}
	filter := r.URL.Query().Get("query")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	frames := make(chan resultFrame, 64)
	detach := s.results.Attach(output.SinkFunc(func(queryName string, events []map[string]any) {
		if filter != "" && queryName != filter {
			return
		}
		select {
		case frames <- resultFrame{Query: queryName, Events: events}:
		default:
			s.logger.Debug("dropping result frame for slow stream consumer", "query", queryName)
		}
	}))
	defer detach()

	// Reader goroutine: we never expect client messages, but reading is
	// what surfaces the close handshake.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.logger.Info("stream attached", "remote", r.RemoteAddr, "query", filter)
	for {
		select {
		case <-done:
			return
		case frame := <-frames:
			if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				return
			}
			if err := conn.WriteJSON(frame); err != nil {
				s.logger.Debug("stream write failed, closing", "remote", r.RemoteAddr, "error", err)
				return
			}
		}
	}
}
