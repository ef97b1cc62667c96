package notify

import (
	"context"
	"sync"
)

// RecordingSender keeps sent messages in memory.
type RecordingSender struct {
	mu       sync.Mutex
	Messages []Message
	Err      error
}

var _ Sender = (*RecordingSender)(nil)

func (s *RecordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	s.Messages = append(s.Messages, msg)
	return nil
}

// Templates returns the template names of the sent messages in order.
func (s *RecordingSender) Templates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.Messages))
	for _, m := range s.Messages {
		names = append(names, m.Template)
	}
	return names
}

// Last returns the most recent message.
func (s *RecordingSender) Last() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}
