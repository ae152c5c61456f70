// Package guide implements the campus assistant: a tool-calling agent with
// per-session conversation memory and a streaming execution path.
package guide

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/zk-jackie/campusqa/internal/relay"
	"github.com/zk-jackie/campusqa/internal/session"
)

// Sentinel errors.
var (
	// ErrEmptyInput indicates a request with no question text.
	ErrEmptyInput = errors.New("empty input")

	// ErrGeneration indicates the model call failed.
	ErrGeneration = errors.New("generation failed")
)

// systemPrompt steers the agent: extract a keyword, pick the search tool,
// optionally visit up to two pages, then answer citing sources and invite
// follow-up questions.
const systemPrompt = "You are a helpful guide for the GDOU campus called '阿晚学姐'. " +
	"You are responsible for answering questions about the campus from students. " +
	"You should always follow these rules to work:\n" +
	"1. Analyze the user's question and extract one key word to use the tools;\n" +
	"2. Search information by the keyword in two ways: a. if a search engine is required, " +
	"use the web search tool; b. if local documents should be consulted, use the local search tool;\n" +
	"3. If a search engine was used, you may use the page visit tool to retrieve one web page " +
	"that might be useful, no more than 2 times;\n" +
	"4. Summarize the information gathered, answer the user's question and offer the source " +
	"of the information at the end of your final answer;\n" +
	"5. If no relevant information is found, ask the user for more details or apologize;\n" +
	"6. Welcome the user to GDOU and invite more questions about the campus at the end of " +
	"your final answer."

// UserInput is the request body shared by the chat and stream surfaces.
// Output is accepted for wire compatibility and ignored.
type UserInput struct {
	SessionID string `json:"session_id"`
	Input     string `json:"input"`
	Output    string `json:"output,omitempty"`
}

// Guide answers campus questions. One instance serves all sessions.
type Guide struct {
	g        *genkit.Genkit
	model    string
	sessions *session.Store
	tools    []ai.ToolRef
	maxTurns int
	logger   *slog.Logger
}

// Option configures a Guide.
type Option func(*Guide)

// WithTools sets the tools the agent may call.
func WithTools(tools ...ai.Tool) Option {
	return func(gd *Guide) {
		for _, t := range tools {
			gd.tools = append(gd.tools, t)
		}
	}
}

// WithMaxTurns caps the agentic tool-calling loop.
func WithMaxTurns(n int) Option {
	return func(gd *Guide) {
		if n > 0 {
			gd.maxTurns = n
		}
	}
}

// New creates a Guide using the named model.
func New(g *genkit.Genkit, model string, sessions *session.Store, logger *slog.Logger, opts ...Option) *Guide {
	if logger == nil {
		logger = slog.Default()
	}
	gd := &Guide{
		g:        g,
		model:    model,
		sessions: sessions,
		maxTurns: 5,
		logger:   logger.With("component", "guide"),
	}
	for _, opt := range opts {
		opt(gd)
	}
	return gd
}

// Invoke answers the question in one shot and returns the full answer.
// The transcript is extended only after a successful generation.
func (gd *Guide) Invoke(ctx context.Context, in UserInput) (string, error) {
	return gd.generate(ctx, in, nil)
}

// Stream answers the question token by token. The returned channel carries
// each token and exactly one terminal envelope as its last element; it is
// closed when the stream ends. Callers must drain it. Transport-level
// framing (the start marker) is the adapter's business, not the façade's.
func (gd *Guide) Stream(ctx context.Context, in UserInput) <-chan relay.Envelope {
	out := make(chan relay.Envelope)

	go func() {
		defer close(out)

		send := func(e relay.Envelope) bool {
			select {
			case out <- e:
				return true
			case <-ctx.Done():
				return false
			}
		}

		cb := func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			var sb strings.Builder
			for _, p := range chunk.Content {
				sb.WriteString(p.Text)
			}
			if sb.Len() == 0 {
				return nil
			}
			if !send(relay.Token(sb.String())) {
				return ctx.Err()
			}
			return nil
		}

		if _, err := gd.generate(ctx, in, cb); err != nil {
			gd.logger.Error("streaming generation failed", "session_id", in.SessionID, "error", err)
			send(relay.Fail(err.Error()))
			return
		}
		send(relay.Done())
	}()

	return out
}

// generate runs one agent turn. When cb is non-nil, tokens are forwarded to
// it as they arrive.
func (gd *Guide) generate(ctx context.Context, in UserInput, cb ai.ModelStreamCallback) (string, error) {
	if strings.TrimSpace(in.Input) == "" {
		return "", ErrEmptyInput
	}

	history := gd.sessions.GetOrCreate(in.SessionID)
	messages := buildMessages(history.Turns(), in.Input)

	opts := []ai.GenerateOption{
		ai.WithModelName(gd.model),
		ai.WithSystem(systemPrompt),
		ai.WithMessages(messages...),
		ai.WithMaxTurns(gd.maxTurns),
	}
	if len(gd.tools) > 0 {
		opts = append(opts, ai.WithTools(gd.tools...))
	}
	if cb != nil {
		opts = append(opts, ai.WithStreaming(cb))
	}

	resp, err := genkit.Generate(ctx, gd.g, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	answer := resp.Text()

	// Append only after success so a failed generation leaves the
	// transcript untouched.
	gd.sessions.AppendTurn(in.SessionID,
		session.Turn{Role: session.RoleUser, Text: in.Input},
		session.Turn{Role: session.RoleAssistant, Text: answer},
	)
	gd.logger.Debug("answered", "session_id", in.SessionID, "answer_len", len(answer))
	return answer, nil
}

// buildMessages converts the transcript plus the current question into the
// model message list.
func buildMessages(turns []session.Turn, input string) []*ai.Message {
	messages := make([]*ai.Message, 0, len(turns)+1)
	for _, t := range turns {
		switch t.Role {
		case session.RoleAssistant:
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(t.Text)))
		default:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(t.Text)))
		}
	}
	return append(messages, ai.NewUserMessage(ai.NewTextPart(input)))
}
