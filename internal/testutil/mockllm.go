package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// MockLLM provides deterministic model responses for testing.
// It matches the last user message against registered patterns and returns
// the corresponding response, optionally streamed as several chunks.
//
// Thread-safe for concurrent use.
type MockLLM struct {
	mu       sync.Mutex
	rules    []mockRule
	fallback string
	calls    []MockCall
}

type mockRule struct {
	pattern string   // substring match in user message, lowercased
	tokens  []string // streamed chunks; joined for the final text
	fail    error    // returned instead of a response when set
}

// MockCall records a single call to the mock model.
type MockCall struct {
	UserMessage string
	History     int // messages in the request besides system
	Response    string
}

// NewMockLLM creates a mock with the given fallback response.
func NewMockLLM(fallback string) *MockLLM {
	return &MockLLM{fallback: fallback}
}

// AddResponse registers a pattern that yields a single-chunk response.
// Patterns are checked in registration order; first match wins.
func (m *MockLLM) AddResponse(pattern, response string) {
	m.AddStreamResponse(pattern, []string{response})
}

// AddStreamResponse registers a pattern that streams each token as its own
// chunk. The final response text is the concatenation of the tokens.
func (m *MockLLM) AddStreamResponse(pattern string, tokens []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{pattern: strings.ToLower(pattern), tokens: tokens})
}

// AddError registers a pattern that makes generation fail.
func (m *MockLLM) AddError(pattern string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{pattern: strings.ToLower(pattern), fail: err})
}

// Calls returns a copy of all recorded calls.
func (m *MockLLM) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]MockCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// RegisterModel registers the mock as "mock/test-model" and returns it.
func (m *MockLLM) RegisterModel(g *genkit.Genkit) ai.Model {
	return genkit.DefineModel(g, "mock/test-model", &ai.ModelOptions{
		Label: "Mock Test Model",
		Supports: &ai.ModelSupports{
			Multiturn:  true,
			Tools:      true,
			SystemRole: true,
			Media:      false,
		},
	}, m.generate)
}

func (m *MockLLM) generate(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
	var userText string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == ai.RoleUser {
			userText = req.Messages[i].Text()
			break
		}
	}

	m.mu.Lock()
	var matched *mockRule
	lower := strings.ToLower(userText)
	for i := range m.rules {
		if strings.Contains(lower, m.rules[i].pattern) {
			matched = &m.rules[i]
			break
		}
	}

	tokens := []string{m.fallback}
	var fail error
	if matched != nil {
		if matched.fail != nil {
			fail = matched.fail
		} else {
			tokens = matched.tokens
		}
	}
	responseText := strings.Join(tokens, "")

	history := 0
	for _, msg := range req.Messages {
		if msg.Role != ai.RoleSystem {
			history++
		}
	}
	m.calls = append(m.calls, MockCall{
		UserMessage: userText,
		History:     history,
		Response:    responseText,
	})
	m.mu.Unlock()

	if fail != nil {
		return nil, fail
	}

	if cb != nil {
		for _, tok := range tokens {
			if err := cb(ctx, &ai.ModelResponseChunk{
				Content: []*ai.Part{ai.NewTextPart(tok)},
			}); err != nil {
				return nil, err
			}
		}
	}

	return &ai.ModelResponse{
		Request: req,
		Message: &ai.Message{
			Role:    ai.RoleModel,
			Content: []*ai.Part{ai.NewTextPart(responseText)},
		},
	}, nil
}
