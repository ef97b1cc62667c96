package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ferdiebergado/gdprkit/internal/platform/email"
)

// Dispatcher sends queued messages through a mailer using a fixed number of
// workers. Send blocks while the queue is full.
type Dispatcher struct {
	mailer  email.Mailer
	queue   chan Message
	workers int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ Sender = (*Dispatcher)(nil)

func NewDispatcher(mailer email.Mailer, queueSize, workers int) *Dispatcher {
	return &Dispatcher{
		mailer:  mailer,
		queue:   make(chan Message, max(queueSize, 1)),
		workers: max(workers, 1),
	}
}

func (d *Dispatcher) Start() {
	for i := range d.workers {
		d.wg.Add(1)
		go d.work(i)
	}
	slog.Info("Mail dispatcher started.", "workers", d.workers)
}

func (d *Dispatcher) work(id int) {
	defer d.wg.Done()

	for msg := range d.queue {
		if err := d.mailer.SendHTML([]string{msg.To}, msg.Subject, msg.Template, msg.Data); err != nil {
			slog.Error("Failed to send mail.", "worker", id, "message", msg, "reason", err)
			continue
		}
		slog.Info("Mail sent.", "worker", id, "message", msg)
	}
}

func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}

	select {
	case d.queue <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue mail: %w", ctx.Err())
	}
}

// Close stops accepting messages and waits until the queue is drained or ctx
// expires.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Mail dispatcher drained.")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain mail queue: %w", ctx.Err())
	}
}
