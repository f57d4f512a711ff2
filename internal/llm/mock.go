package llm

import "context"

// MockClient is a test double for the LLM Client interface.
// It can also be used for dry-run mode.
type MockClient struct {
	Response *Response
	Err      error
	Calls    []string // records prompts sent

	// Responses, when non-empty, is consumed one entry per call before
	// falling back to Response. Lets tests script multi-call flows.
	Responses []*Response
}

// Complete records the call and returns the next scripted response.
func (m *MockClient) Complete(ctx context.Context, prompt string) (*Response, error) {
	m.Calls = append(m.Calls, prompt)
	if len(m.Responses) > 0 {
		r := m.Responses[0]
		m.Responses = m.Responses[1:]
		return r, m.Err
	}
	return m.Response, m.Err
}
