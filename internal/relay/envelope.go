// Package relay defines the wire envelope shared by the SSE and WebSocket
// streaming surfaces, and the in-band markers that frame a token stream.
package relay

// Stream framing markers. They travel in the Data field of an Envelope (or
// as bare WebSocket text frames) so clients can frame the stream without
// transport-level signals.
const (
	// StartMarker opens a streamed answer.
	StartMarker = "<|start|>"

	// DoneMarker terminates a streamed answer. It is always the last
	// payload of a stream, on success and on failure alike.
	DoneMarker = "<|done|>"
)

// Envelope is the uniform streaming payload.
type Envelope struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data string `json:"data"`
}

// Token wraps one model token in a success envelope.
func Token(text string) Envelope {
	return Envelope{Code: "200", Msg: "ok", Data: text}
}

// Start returns the stream-opening envelope.
func Start() Envelope {
	return Token(StartMarker)
}

// Done returns the stream-terminating envelope.
func Done() Envelope {
	return Token(DoneMarker)
}

// Fail returns a terminal error envelope. Data still carries the done
// marker so clients that only watch Data terminate correctly.
func Fail(msg string) Envelope {
	return Envelope{Code: "500", Msg: msg, Data: DoneMarker}
}

// Terminal reports whether e ends the stream.
func Terminal(e Envelope) bool {
	return e.Data == DoneMarker
}
