package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MemoryAppender is an in-process Appender for tests and dry runs.
type MemoryAppender struct {
	mu   sync.Mutex
	msgs []Message

	// FailRoles makes appends for the listed roles fail, for exercising
	// partial-failure behavior in tests.
	FailRoles map[Role]bool
}

func (m *MemoryAppender) Append(_ context.Context, msg Message) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailRoles[msg.Role] {
		return Message{}, fmt.Errorf("append %s message refused", msg.Role)
	}
	msg.ID = ulid.Make().String()
	msg.CreatedAt = time.Now().UTC()
	m.msgs = append(m.msgs, msg)
	return msg, nil
}

// Messages returns a copy of everything appended so far, in order.
func (m *MemoryAppender) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.msgs))
	copy(out, m.msgs)
	return out
}
