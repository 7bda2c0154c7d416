package api

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/o-litvinchuk-dev/lab3/internal/logging"
	"github.com/o-litvinchuk-dev/lab3/internal/telemetry"
)

// wsConn adapts a websocket connection to telemetry.Conn.
type wsConn struct {
	c *websocket.Conn
}

var _ telemetry.Conn = (*wsConn)(nil)

func (w *wsConn) Read(ctx context.Context) error {
	_, _, err := w.c.Read(ctx)
	return err
}

func (w *wsConn) Write(ctx context.Context, payload []byte) error {
	return w.c.Write(ctx, websocket.MessageText, payload)
}

func (w *wsConn) Close(reason string) error {
	switch reason {
	case telemetry.ReasonShutdown:
		return w.c.Close(websocket.StatusGoingAway, reason)
	case telemetry.ReasonSlowConsumer:
		return w.c.Close(websocket.StatusPolicyViolation, reason)
	case telemetry.ReasonWriteFailed, telemetry.ReasonDisconnected:
		return w.c.CloseNow()
	default:
		return w.c.Close(websocket.StatusNormalClosure, reason)
	}
}

// handleSubscribe handles GET /ws
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}

	if s.subscriptions == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Subscription service not available", nil)
		return
	}

	// Subscriptions live beyond the server's request timeouts.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns,
	})
	if err != nil {
		// Accept has already written the handshake failure.
		s.log.Warn(r.Context(), "websocket upgrade failed", logging.Err(err))
		return
	}

	ctx := r.Context()
	s.log.Debug(ctx, "subscriber connected", logging.String("remote", r.RemoteAddr))
	if err := s.subscriptions.Serve(ctx, &wsConn{c: c}); err != nil {
		s.log.Warn(ctx, "subscription ended", logging.Err(err))
	}
}
