package events

import (
	"context"
	"sync"
)

// RecordingPublisher keeps published events in memory.
type RecordingPublisher struct {
	mu     sync.Mutex
	Events []Event
	Err    error
}

var _ Publisher = (*RecordingPublisher)(nil)

func (p *RecordingPublisher) Publish(_ context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return p.Err
	}
	p.Events = append(p.Events, e)
	return nil
}

func (p *RecordingPublisher) Close() error { return nil }

// Types returns the types of the recorded events in publish order.
func (p *RecordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	types := make([]string, 0, len(p.Events))
	for _, e := range p.Events {
		types = append(types, e.Type)
	}
	return types
}
