package core

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"cdpchain/core/events"
)

const eventHistoryLimit = 2048

// StreamedEvent is a committed protocol event tagged with its position in
// the stream.
type StreamedEvent struct {
	Sequence   uint64            `json:"sequence"`
	Cursor     string            `json:"cursor"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	Timestamp  int64             `json:"timestamp"`
}

func cloneStreamedEvent(evt StreamedEvent) StreamedEvent {
	cloned := evt
	if evt.Attributes != nil {
		cloned.Attributes = make(map[string]string, len(evt.Attributes))
		for k, v := range evt.Attributes {
			cloned.Attributes[k] = v
		}
	}
	return cloned
}

// EventStream keeps a bounded history of committed events and fans them out
// to subscribers. Slow subscribers drop events rather than block commits.
type EventStream struct {
	mu      sync.Mutex
	seq     uint64
	nextID  uint64
	history []StreamedEvent
	subs    map[uint64]chan StreamedEvent
	nowFn   func() time.Time
}

func NewEventStream() *EventStream {
	return &EventStream{
		subs:  make(map[uint64]chan StreamedEvent),
		nowFn: time.Now,
	}
}

// Emit implements events.Emitter.
func (s *EventStream) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	payload := evt.Event()
	if payload == nil {
		return
	}

	s.mu.Lock()
	s.seq++
	entry := StreamedEvent{
		Sequence:   s.seq,
		Cursor:     strconv.FormatUint(s.seq, 10),
		Type:       payload.Type,
		Attributes: payload.Attributes,
		Timestamp:  s.nowFn().Unix(),
	}
	s.history = append(s.history, cloneStreamedEvent(entry))
	if len(s.history) > eventHistoryLimit {
		excess := len(s.history) - eventHistoryLimit
		trimmed := make([]StreamedEvent, eventHistoryLimit)
		copy(trimmed, s.history[excess:])
		s.history = trimmed
	}
	// Sends stay under the lock so cancel cannot close a channel mid-send.
	for _, ch := range s.subs {
		select {
		case ch <- cloneStreamedEvent(entry):
		default:
		}
	}
	s.mu.Unlock()
}

// Subscribe registers a subscriber for events after cursor. It returns the
// live channel, a cancel function and the retained backlog.
func (s *EventStream) Subscribe(ctx context.Context, cursor string) (<-chan StreamedEvent, func(), []StreamedEvent) {
	updates := make(chan StreamedEvent, 32)

	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		if parsed, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
			since = parsed
		}
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = updates
	backlog := make([]StreamedEvent, 0, len(s.history))
	for _, entry := range s.history {
		if entry.Sequence > since {
			backlog = append(backlog, cloneStreamedEvent(entry))
		}
	}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
			s.mu.Unlock()
		})
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return updates, cancel, backlog
}

// Subscribers reports the number of live subscriptions.
func (s *EventStream) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
