package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/zk-jackie/campusqa/internal/auth"
	"github.com/zk-jackie/campusqa/internal/guide"
	"github.com/zk-jackie/campusqa/internal/log"
	"github.com/zk-jackie/campusqa/internal/relay"
	"github.com/zk-jackie/campusqa/internal/session"
	"github.com/zk-jackie/campusqa/internal/testutil"
)

const testSecret = "api-test-secret"

type fixture struct {
	server    *httptest.Server
	verifier  *auth.Verifier
	blacklist *auth.Blacklist
	store     *session.Store
}

func newFixture(t *testing.T, mock *testutil.MockLLM) *fixture {
	t.Helper()

	g := testutil.NewGenkit(t)
	mock.RegisterModel(g)

	store := session.New(time.Minute, log.NewNop())
	t.Cleanup(store.Close)

	gd := guide.New(g, "mock/test-model", store, log.NewNop())

	verifier := auth.NewVerifier(testSecret, "HS256")
	blacklist := auth.NewBlacklist(filepath.Join(t.TempDir(), "blacklist.txt"), log.NewNop())
	gate := auth.NewGate(blacklist, verifier, log.NewNop())

	srv, err := NewServer(ServerConfig{
		Logger: log.NewNop(),
		Guide:  gd,
		Gate:   gate,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &fixture{server: ts, verifier: verifier, blacklist: blacklist, store: store}
}

func (f *fixture) token(t *testing.T, ttl time.Duration) string {
	t.Helper()
	tok, err := f.verifier.Sign("student", ttl)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return tok
}

func (f *fixture) post(t *testing.T, path, token string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, f.server.URL+path, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Token", token)
	}
	resp, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func TestLivenessProbe(t *testing.T) {
	f := newFixture(t, testutil.NewMockLLM("ok"))

	// No token at all; the probe must still answer.
	resp := f.post(t, "/api/test", "", map[string]string{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody[testResponse](t, resp)
	if body.Code != "200" || body.Msg != "ok" || body.Data != "hello, world!" {
		t.Errorf("probe body = %+v", body)
	}
}

func TestChatReturnsOutput(t *testing.T) {
	mock := testutil.NewMockLLM("fallback")
	mock.AddResponse("library", "It opens at 8am.")
	f := newFixture(t, mock)

	resp := f.post(t, "/api/chat", f.token(t, time.Minute),
		guide.UserInput{SessionID: "s1", Input: "library hours?"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody[chatResponse](t, resp)
	if body.Output != "It opens at 8am." {
		t.Errorf("output = %q", body.Output)
	}
}

func TestChatRejectsMissingFields(t *testing.T) {
	f := newFixture(t, testutil.NewMockLLM("ok"))

	resp := f.post(t, "/api/chat", f.token(t, time.Minute), map[string]string{"session_id": "s1"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestMissingTokenRejected(t *testing.T) {
	f := newFixture(t, testutil.NewMockLLM("ok"))

	resp := f.post(t, "/api/chat", "", guide.UserInput{SessionID: "s1", Input: "hi"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	body := decodeBody[rejection](t, resp)
	if body.Detail != auth.DetailInvalid {
		t.Errorf("detail = %q, want %q", body.Detail, auth.DetailInvalid)
	}
}

func TestExpiredTokenRejectedWithoutBan(t *testing.T) {
	f := newFixture(t, testutil.NewMockLLM("ok"))

	resp := f.post(t, "/api/chat", f.token(t, -time.Minute), guide.UserInput{SessionID: "s1", Input: "hi"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	body := decodeBody[rejection](t, resp)
	if body.Detail != auth.DetailExpired {
		t.Errorf("detail = %q, want %q", body.Detail, auth.DetailExpired)
	}

	// A fresh token from the same client must work again.
	resp = f.post(t, "/api/chat", f.token(t, time.Minute), guide.UserInput{SessionID: "s1", Input: "hi"})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status after fresh token = %d, want 200", resp.StatusCode)
	}
}

func TestInvalidTokenBansClient(t *testing.T) {
	f := newFixture(t, testutil.NewMockLLM("ok"))

	resp := f.post(t, "/api/chat", "garbage", guide.UserInput{SessionID: "s1", Input: "hi"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if d := decodeBody[rejection](t, resp).Detail; d != auth.DetailInvalid {
		t.Errorf("detail = %q, want %q", d, auth.DetailInvalid)
	}

	// Even a valid token is refused now: the host is banned.
	resp = f.post(t, "/api/chat", f.token(t, time.Minute), guide.UserInput{SessionID: "s1", Input: "hi"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status after ban = %d, want 401", resp.StatusCode)
	}
	if d := decodeBody[rejection](t, resp).Detail; d != auth.DetailBlacklisted {
		t.Errorf("detail = %q, want %q", d, auth.DetailBlacklisted)
	}
}

func TestStreamDeliversEnvelopesInOrder(t *testing.T) {
	mock := testutil.NewMockLLM("fallback")
	mock.AddStreamResponse("campus", []string{"A", "B", "C"})
	f := newFixture(t, mock)

	resp := f.post(t, "/api/stream", f.token(t, time.Minute),
		guide.UserInput{SessionID: "s1", Input: "about campus"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading stream: %v", err)
	}
	events := testutil.ParseSSEData(t, string(raw))

	want := []string{"A", "B", "C", relay.DoneMarker}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %v", len(events), len(want), events)
	}
	for i, data := range events {
		var env relay.Envelope
		if err := json.Unmarshal([]byte(data), &env); err != nil {
			t.Fatalf("event %d is not an envelope: %v", i, err)
		}
		if env.Data != want[i] {
			t.Errorf("event %d data = %q, want %q", i, env.Data, want[i])
		}
		if env.Code != "200" {
			t.Errorf("event %d code = %q, want 200", i, env.Code)
		}
	}
}

func TestStreamFailureEndsWithErrorEnvelope(t *testing.T) {
	mock := testutil.NewMockLLM("ok")
	mock.AddError("boom", io.ErrUnexpectedEOF)
	f := newFixture(t, mock)

	resp := f.post(t, "/api/stream", f.token(t, time.Minute),
		guide.UserInput{SessionID: "s1", Input: "boom"})
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading stream: %v", err)
	}
	events := testutil.ParseSSEData(t, string(raw))
	if len(events) == 0 {
		t.Fatal("stream produced no events")
	}

	var last relay.Envelope
	if err := json.Unmarshal([]byte(events[len(events)-1]), &last); err != nil {
		t.Fatalf("last event is not an envelope: %v", err)
	}
	if last.Code != "500" || !relay.Terminal(last) {
		t.Errorf("last envelope = %+v, want code 500 carrying the done marker", last)
	}
}

func TestWebSocketTurns(t *testing.T) {
	mock := testutil.NewMockLLM("fallback")
	mock.AddStreamResponse("library", []string{"A", "B"})
	mock.AddStreamResponse("clinic", []string{"C"})
	f := newFixture(t, mock)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + f.server.URL[len("http"):] + "/ws/stream"
	tok := f.token(t, time.Minute)
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Token": []string{tok}},
	})
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	turn := func(input string, want []string) {
		t.Helper()
		payload, _ := json.Marshal(guide.UserInput{SessionID: "ws1", Input: input})
		if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
			t.Fatalf("writing request: %v", err)
		}
		for i, w := range want {
			_, data, err := conn.Read(ctx)
			if err != nil {
				t.Fatalf("reading frame %d: %v", i, err)
			}
			var env relay.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				t.Fatalf("frame %d is not an envelope: %v", i, err)
			}
			if env.Data != w {
				t.Errorf("frame %d data = %q, want %q", i, env.Data, w)
			}
		}
	}

	turn("library hours", []string{relay.StartMarker, "A", "B", relay.DoneMarker})
	// Second turn over the same connection.
	turn("clinic hours", []string{relay.StartMarker, "C", relay.DoneMarker})
}

// A ban landing while a socket is open must cut the conversation off at the
// next frame, not at the next handshake.
func TestWebSocketBansMidConnection(t *testing.T) {
	mock := testutil.NewMockLLM("fallback")
	mock.AddStreamResponse("library", []string{"A"})
	f := newFixture(t, mock)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + f.server.URL[len("http"):] + "/ws/stream"
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Token": []string{f.token(t, time.Minute)}},
	})
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	send := func(input string) {
		t.Helper()
		payload, _ := json.Marshal(guide.UserInput{SessionID: "ws1", Input: input})
		if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
			t.Fatalf("writing request: %v", err)
		}
	}
	read := func() relay.Envelope {
		t.Helper()
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("reading frame: %v", err)
		}
		var env relay.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("frame is not an envelope: %v", err)
		}
		return env
	}

	send("library hours")
	for _, want := range []string{relay.StartMarker, "A", relay.DoneMarker} {
		if env := read(); env.Data != want {
			t.Fatalf("frame data = %q, want %q", env.Data, want)
		}
	}

	if err := f.blacklist.Add("127.0.0.1"); err != nil {
		t.Fatalf("blacklisting: %v", err)
	}

	send("library hours again")
	env := read()
	if env.Msg != auth.DetailBlacklisted || !relay.Terminal(env) {
		t.Errorf("after ban got %+v, want terminal %q envelope", env, auth.DetailBlacklisted)
	}
	if _, _, err := conn.Read(ctx); err == nil {
		t.Error("connection stayed open after the ban")
	}
}

func TestWebSocketRejectedWithoutToken(t *testing.T) {
	f := newFixture(t, testutil.NewMockLLM("ok"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + f.server.URL[len("http"):] + "/ws/stream"
	conn, resp, err := websocket.Dial(ctx, wsURL, nil)
	if err == nil {
		conn.Close(websocket.StatusNormalClosure, "unexpected")
		t.Fatal("dial without token succeeded, want rejection")
	}
	if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("handshake status = %d, want 401", resp.StatusCode)
	}
}

func TestRejectsUnknownRoute(t *testing.T) {
	f := newFixture(t, testutil.NewMockLLM("ok"))

	resp := f.post(t, "/api/unknown", f.token(t, time.Minute), map[string]string{})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
