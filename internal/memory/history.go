// Package memory keeps per-session conversation history for the agent runner.
package memory

import (
	"sync"

	"github.com/kaodean/monco/internal/llm"
)

// History is an in-memory conversation store keyed by session UUID, with a
// fixed-size window per session. Oldest messages are evicted first; eviction
// never splits an assistant tool-call from its tool results, because the
// Messages API rejects orphaned tool blocks.
type History struct {
	mu     sync.Mutex
	window int
	byUUID map[string][]llm.Message
}

// NewHistory creates a history store retaining up to window messages per
// session. window <= 0 selects a default of 50.
func NewHistory(window int) *History {
	if window <= 0 {
		window = 50
	}
	return &History{
		window: window,
		byUUID: make(map[string][]llm.Message),
	}
}

// Load returns a copy of the session's message history.
func (h *History) Load(sessionUUID string) []llm.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	msgs := h.byUUID[sessionUUID]
	out := make([]llm.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Append adds messages to the session and evicts from the front when the
// window is exceeded.
func (h *History) Append(sessionUUID string, messages ...llm.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	msgs := append(h.byUUID[sessionUUID], messages...)
	if len(msgs) > h.window {
		cut := len(msgs) - h.window
		// Never start the window on a tool result: advance the cut past any
		// leading tool-result messages so the transcript stays well-formed.
		for cut < len(msgs) && msgs[cut].ToolResult != nil {
			cut++
		}
		msgs = msgs[cut:]
	}
	h.byUUID[sessionUUID] = msgs
}

// Clear removes all messages for a session. Called on reset and expiry.
func (h *History) Clear(sessionUUID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.byUUID, sessionUUID)
}
