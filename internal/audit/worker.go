package audit

import (
	"context"
	"log/slog"
)

// Worker consumes audit events from a channel and appends them to a store,
// decoupling request latency from sink latency (the Kafka sink in particular).
type Worker struct {
	store  Store
	inbox  chan Event
	logger *slog.Logger
	done   chan struct{}
}

// NewWorker builds a worker with the given inbox capacity. The returned
// worker's Inbox store (see ChannelStore) is what publishers write to.
func NewWorker(store Store, capacity int, logger *slog.Logger) *Worker {
	return &Worker{
		store:  store,
		inbox:  make(chan Event, capacity),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Inbox returns a Store view of the worker's channel for publishers.
func (w *Worker) Inbox() Store {
	return &ChannelStore{inbox: w.inbox}
}

// Run drains the inbox until the context is cancelled, then flushes whatever
// remains buffered.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			w.flush()
			return
		case event := <-w.inbox:
			w.append(event)
		}
	}
}

// Wait blocks until Run has returned.
func (w *Worker) Wait() {
	<-w.done
}

func (w *Worker) flush() {
	for {
		select {
		case event := <-w.inbox:
			w.append(event)
		default:
			return
		}
	}
}

func (w *Worker) append(event Event) {
	// Shutdown flush still needs a live context for the sink.
	if err := w.store.Append(context.Background(), event); err != nil && w.logger != nil {
		w.logger.Warn("audit event dropped", "action", event.Action, "error", err)
	}
}

// ChannelStore adapts the worker inbox to the Store interface. Appends never
// block: when the inbox is full the event is dropped, keeping audit strictly
// off the authentication hot path.
type ChannelStore struct {
	inbox chan<- Event
}

func (c *ChannelStore) Append(_ context.Context, event Event) error {
	select {
	case c.inbox <- event:
		return nil
	default:
		return ErrInboxFull
	}
}
