package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"

	"github.com/zk-jackie/campusqa/internal/auth"
	"github.com/zk-jackie/campusqa/internal/guide"
	"github.com/zk-jackie/campusqa/internal/relay"
)

// wsStream serves the WebSocket surface. Each conversational turn reads one
// request frame and answers with the same JSON envelopes as the SSE stream.
// The connection stays open for further turns until the client disconnects.
func (s *Server) wsStream(w http.ResponseWriter, r *http.Request) {
	if !s.verify(w, r) {
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "connection closed")

	ctx := r.Context()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			// Normal closure and client disconnects both land here.
			s.logger.Debug("websocket read ended", "error", err)
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		// The connection outlives the handshake, so the credential gate
		// runs again for every turn. A host blacklisted mid-conversation
		// is cut off at its next frame.
		if err := s.gate.Verify(clientIPFromContext(r), r.Header.Get("Token")); err != nil {
			_ = s.writeEnvelope(ctx, conn, relay.Fail(auth.Detail(err)))
			return
		}

		var in guide.UserInput
		if err := json.Unmarshal(data, &in); err != nil || in.SessionID == "" || in.Input == "" {
			if err := s.writeEnvelope(ctx, conn, relay.Fail("invalid request")); err != nil {
				return
			}
			continue
		}

		if err := s.writeEnvelope(ctx, conn, relay.Start()); err != nil {
			s.logger.Debug("websocket write failed", "error", err)
			return
		}
		for env := range s.guide.Stream(ctx, in) {
			if err := s.writeEnvelope(ctx, conn, env); err != nil {
				s.logger.Debug("websocket write failed", "session_id", in.SessionID, "error", err)
				// Drain the producer before giving up on the connection.
				continue
			}
		}
	}
}

func (s *Server) writeEnvelope(ctx context.Context, conn *websocket.Conn, env relay.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, payload)
}
