package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/zk-jackie/campusqa/internal/auth"
	"github.com/zk-jackie/campusqa/internal/guide"
	"github.com/zk-jackie/campusqa/internal/relay"
)

// maxRequestBody caps request bodies. Questions are short; anything larger
// is abuse.
const maxRequestBody = 64 << 10 // 64KB

// decodeInput reads and validates the shared request body.
func decodeInput(w http.ResponseWriter, r *http.Request) (guide.UserInput, bool) {
	var in guide.UserInput
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid Request Body")
		return in, false
	}
	if in.SessionID == "" || in.Input == "" {
		writeDetail(w, http.StatusBadRequest, "Missing Fields")
		return in, false
	}
	return in, true
}

// verify re-runs the credential gate inside the handler. The middleware
// already ran it, but the handlers must not rely on stack order alone.
func (s *Server) verify(w http.ResponseWriter, r *http.Request) bool {
	if err := s.gate.Verify(clientIPFromContext(r), r.Header.Get("Token")); err != nil {
		writeDetail(w, http.StatusUnauthorized, auth.Detail(err))
		return false
	}
	return true
}

// chat answers a question in one shot.
func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	if !s.verify(w, r) {
		return
	}
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}

	output, err := s.guide.Invoke(r.Context(), in)
	if err != nil {
		if errors.Is(err, guide.ErrEmptyInput) {
			writeDetail(w, http.StatusBadRequest, "Missing Fields")
			return
		}
		s.logger.Error("chat failed", "session_id", in.SessionID, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Generation Failed")
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Output: output})
}

// stream answers a question as a Server-Sent Events stream. Every event
// carries one JSON envelope; the last envelope's data is the done marker.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	if !s.verify(w, r) {
		return
	}
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeDetail(w, http.StatusInternalServerError, "Streaming Unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for env := range s.guide.Stream(r.Context(), in) {
		payload, err := json.Marshal(env)
		if err != nil {
			s.logger.Error("encoding stream envelope", "error", err)
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			// Client went away; keep draining so the producer can finish.
			s.logger.Debug("stream write failed", "session_id", in.SessionID, "error", err)
			continue
		}
		flusher.Flush()
		if relay.Terminal(env) {
			break
		}
	}
}
