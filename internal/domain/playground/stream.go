package playground

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const subscriberBuffer = 64

type subscriber struct {
	ch   chan RunEvent
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// broker fans run events out to in-process subscribers.
type broker struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[*subscriber]struct{}
}

func newBroker() *broker {
	return &broker{subs: make(map[uuid.UUID]map[*subscriber]struct{})}
}

func (b *broker) subscribe(runID uuid.UUID) *subscriber {
	sub := &subscriber{ch: make(chan RunEvent, subscriberBuffer)}
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[runID]
	if !ok {
		set = make(map[*subscriber]struct{})
		b.subs[runID] = set
	}
	set[sub] = struct{}{}
	return sub
}

func (b *broker) unsubscribe(runID uuid.UUID, sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[runID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, runID)
		}
	}
	sub.close()
}

// publish never blocks; a full subscriber misses the event and catches up
// from the repository.
func (b *broker) publish(ev RunEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[ev.RunID] {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

func (b *broker) close(runID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[runID] {
		sub.close()
	}
	delete(b.subs, runID)
}

// Subscribe streams a run's events. The current state is replayed first; the
// channel is closed after the terminal event or when ctx ends.
func (s *Service) Subscribe(ctx context.Context, sessionID, runID uuid.UUID) (<-chan RunEvent, error) {
	if _, err := s.GetRun(ctx, sessionID, runID); err != nil {
		return nil, err
	}
	sub := s.broker.subscribe(runID)
	out := make(chan RunEvent, subscriberBuffer)
	go s.stream(ctx, runID, sub, out)
	return out, nil
}

func (s *Service) stream(ctx context.Context, runID uuid.UUID, sub *subscriber, out chan<- RunEvent) {
	defer close(out)
	defer s.broker.unsubscribe(runID, sub)

	delivered := make(map[int]bool)
	send := func(ev RunEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	// catchUp replays what the repository knows and reports whether the
	// stream is finished.
	catchUp := func(first bool) bool {
		run, found, err := s.runs.Get(ctx, runID)
		if err != nil {
			s.logger.Warn("stream reload failed", "run_id", runID, "error", err)
			return ctx.Err() != nil
		}
		if !found {
			return true
		}
		if first && !send(RunEvent{Type: EventStatus, RunID: runID, Status: run.Status}) {
			return true
		}
		for i := range run.Results {
			result := run.Results[i]
			if delivered[result.Index] {
				continue
			}
			delivered[result.Index] = true
			if !send(RunEvent{Type: EventResult, RunID: runID, Status: run.Status, Result: &result}) {
				return true
			}
		}
		if run.Status.Terminal() {
			send(RunEvent{Type: EventDone, RunID: runID, Status: run.Status, Summary: run.Summary, Error: run.Error})
			return true
		}
		return false
	}

	if catchUp(true) {
		return
	}
	ticker := time.NewTicker(s.cfg.StreamPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.ch:
			if !ok {
				catchUp(false)
				return
			}
			if ev.Type == EventResult && ev.Result != nil {
				if delivered[ev.Result.Index] {
					continue
				}
				delivered[ev.Result.Index] = true
			}
			if !send(ev) || ev.Type == EventDone {
				return
			}
		case <-ticker.C:
			if catchUp(false) {
				return
			}
		}
	}
}
