package mock

import (
	"context"
	"sync"

	"github.com/poiesic/mnemo/ai"
	"github.com/poiesic/mnemo/core"
)

// MockChatModel is a test double for ai.ChatModel.
type MockChatModel struct {
	// CompleteFunc is called by Complete if set.
	CompleteFunc func(ctx context.Context, system string, messages []ai.Message) (string, error)

	mu      sync.Mutex
	replies []string
	calls   []Call
}

// Call records the arguments of one Complete invocation.
type Call struct {
	System   string
	Messages []ai.Message
}

var _ ai.ChatModel = (*MockChatModel)(nil)

// NewMockChatModel returns a chat model that replays replies in order.
func NewMockChatModel(replies ...string) *MockChatModel {
	return &MockChatModel{replies: replies}
}

// Complete returns the next scripted reply, or echoes the last user message.
func (m *MockChatModel) Complete(ctx context.Context, system string, messages []ai.Message) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{System: system, Messages: append([]ai.Message(nil), messages...)})
	fn := m.CompleteFunc
	var reply string
	scripted := len(m.replies) > 0
	if scripted {
		reply = m.replies[0]
		m.replies = m.replies[1:]
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, system, messages)
	}
	if scripted {
		return reply, nil
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == core.RoleUser {
			return "echo: " + messages[i].Content, nil
		}
	}
	return "", nil
}

// Calls returns the recorded invocations.
func (m *MockChatModel) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}
