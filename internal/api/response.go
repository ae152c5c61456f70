package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// testResponse is the liveness probe body.
type testResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data string `json:"data"`
}

// chatResponse is the single-shot chat body.
type chatResponse struct {
	Output string `json:"output"`
}

// rejection is the body of every 401.
type rejection struct {
	Detail string `json:"detail"`
}

// writeJSON writes a JSON response with the given status code.
// Buffer-first: headers go out only after encoding succeeded, so an
// encoding failure can still produce a proper 500.
func writeJSON(w http.ResponseWriter, status int, data any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		slog.Error("encoding JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected.
		slog.Debug("writing response body", "error", err)
	}
}

// writeDetail writes the uniform rejection body.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, rejection{Detail: detail})
}
