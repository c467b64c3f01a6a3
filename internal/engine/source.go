package engine

import (
	"context"
	"io"

	"github.com/flitsinc/go-transcript/internal/event"
)

// SliceSource replays an already-collected event sequence. Used when a
// caller submits a complete run in one request.
type SliceSource struct {
	events []event.Event
	next   int
}

func NewSliceSource(events []event.Event) *SliceSource {
	return &SliceSource{events: events}
}

func (s *SliceSource) Next(ctx context.Context) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s.next >= len(s.events) {
		return event.Event{}, io.EOF
	}
	evt := s.events[s.next]
	s.next++
	return evt, nil
}

// ChanSource adapts a channel of events. Closing the channel ends the
// stream; errors pushed through Fail terminate it fatally.
type ChanSource struct {
	Events <-chan event.Event
	errCh  chan error
}

func NewChanSource(events <-chan event.Event) *ChanSource {
	return &ChanSource{Events: events, errCh: make(chan error, 1)}
}

// Fail injects a source failure observed by the producer (e.g. a broken
// transport read). At most one failure is retained.
func (s *ChanSource) Fail(err error) {
	select {
	case s.errCh <- err:
	default:
	}
}

func (s *ChanSource) Next(ctx context.Context) (event.Event, error) {
	select {
	case err := <-s.errCh:
		return event.Event{}, err
	default:
	}
	select {
	case <-ctx.Done():
		return event.Event{}, ctx.Err()
	case err := <-s.errCh:
		return event.Event{}, err
	case evt, ok := <-s.Events:
		if !ok {
			return event.Event{}, io.EOF
		}
		return evt, nil
	}
}
