package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a scripted Client for tests. Each call consumes the next
// queued response in order.
type MockClient struct {
	mu        sync.Mutex
	Responses []*ChatResponse
	Err       error
	Requests  []ChatRequest
	calls     int
}

// Chat returns the next scripted response.
func (m *MockClient) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.calls >= len(m.Responses) {
		return nil, fmt.Errorf("mock: no response scripted for call %d", m.calls+1)
	}
	resp := m.Responses[m.calls]
	m.calls++
	return resp, nil
}

// ChatStream replays the next scripted response as a text event followed by
// a done event, matching the streaming contract of the real client.
func (m *MockClient) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	resp, err := m.Chat(ctx, req)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamEvent, 2)
	go func() {
		defer close(ch)
		if resp.Content != "" {
			ch <- StreamEvent{Type: "text", Text: resp.Content}
		}
		ch <- StreamEvent{Type: "done", Response: resp}
	}()
	return ch, nil
}
