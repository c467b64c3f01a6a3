package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/flitsinc/go-transcript/internal/state"
)

// Store is the sqlite-backed history store. Messages are append-only;
// the store assigns ULID identifiers so message IDs sort in append order
// within a run. Subscribers receive each appended message live.
type Store struct {
	db *sql.DB

	mu   sync.RWMutex
	subs map[string]*subscriber
}

type subscriber struct {
	runID string // empty means all runs
	ch    chan Message
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, subs: map[string]*subscriber{}}
}

func (s *Store) Append(ctx context.Context, msg Message) (Message, error) {
	if strings.TrimSpace(msg.RunID) == "" {
		return Message{}, fmt.Errorf("run_id is required")
	}
	if msg.Role == "" {
		return Message{}, fmt.Errorf("role is required")
	}

	msg.ID = ulid.Make().String()
	msg.CreatedAt = time.Now().UTC()

	var toolCallsJSON string
	if len(msg.ToolCalls) > 0 {
		var err error
		toolCallsJSON, err = encodeJSON(msg.ToolCalls)
		if err != nil {
			return Message{}, fmt.Errorf("encode tool calls: %w", err)
		}
	}

	if _, err := state.ExecRetry(ctx, s.db, `
		INSERT INTO messages (id, run_id, role, content, tool_calls, tool_call_id, is_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.RunID, string(msg.Role), msg.Content, nullString(toolCallsJSON), nullString(msg.ToolCallID), boolInt(msg.IsError), msg.CreatedAt.Format(time.RFC3339Nano)); err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	s.broadcast(msg)
	return msg, nil
}

// ListRun returns a run's messages in append order.
func (s *Store) ListRun(ctx context.Context, runID string, limit int) ([]Message, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, fmt.Errorf("run_id is required")
	}
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, role, content, tool_calls, tool_call_id, is_error, created_at
		FROM messages WHERE run_id = ? ORDER BY id ASC LIMIT ?
	`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var msg Message
		var role, createdAtStr string
		var content, toolCallsStr, toolCallID sql.NullString
		var isError int
		if err := rows.Scan(&msg.ID, &msg.RunID, &role, &content, &toolCallsStr, &toolCallID, &isError, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = Role(role)
		msg.Content = content.String
		msg.ToolCallID = toolCallID.String
		msg.IsError = isError != 0
		msg.ToolCalls = decodeToolCalls(toolCallsStr.String)
		msg.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

// Subscribe delivers messages appended after the call, filtered to runID
// when it is non-empty. The channel closes when ctx is done. Slow
// subscribers drop messages rather than blocking appends.
func (s *Store) Subscribe(ctx context.Context, runID string) <-chan Message {
	ch := make(chan Message, 64)
	id := ulid.Make().String()

	sub := &subscriber{runID: runID, ch: ch}
	s.mu.Lock()
	s.subs[id] = sub
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		close(ch)
	}()

	return ch
}

func (s *Store) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

func (s *Store) broadcast(msg Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.runID != "" && sub.runID != msg.RunID {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			// Drop if subscriber is slow.
		}
	}
}

func encodeJSON(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeToolCalls(v string) []ToolCall {
	if v == "" {
		return nil
	}
	var out []ToolCall
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		return nil
	}
	return out
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
