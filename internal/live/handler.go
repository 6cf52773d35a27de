package live

import (
	"net/http"
	"time"

	ws "github.com/coder/websocket"
)

// Handler upgrades the request and streams events until the peer
// disconnects. originPatterns follows websocket.AcceptOptions; "*" accepts
// any origin.
func (h *Hub) Handler(originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The feed outlives the server's per-request deadlines.
		rc := http.NewResponseController(w)
		_ = rc.SetReadDeadline(time.Time{})
		_ = rc.SetWriteDeadline(time.Time{})

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			h.logger.Warn("live feed upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		defer conn.CloseNow()

		newSubscriber(conn).serve(r.Context(), h)
		conn.Close(ws.StatusNormalClosure, "")
	}
}
