// Package journal persists every finished command to the operation log.
package journal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ekran/internal/db"
	"github.com/Nixie-Tech-LLC/ekran/internal/events"
)

const subscriberID = "journal"

// Writer copies operation_completed events into a db.Store.
type Writer struct {
	store db.Store
}

func NewWriter(store db.Store) *Writer {
	return &Writer{store: store}
}

// Run consumes hub events until ctx is cancelled. The subscription is
// durable: a slow store slows publishers down instead of losing entries.
// Entries still buffered at cancellation are written before returning.
func (w *Writer) Run(ctx context.Context, hub *events.Hub) error {
	ch := make(chan events.Event, 128)
	if err := hub.SubscribeDurable(ctx, subscriberID, ch); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			hub.Unsubscribe(subscriberID)
			for {
				select {
				case ev := <-ch:
					w.Handle(context.WithoutCancel(ctx), ev)
				default:
					return nil
				}
			}
		case ev := <-ch:
			w.Handle(ctx, ev)
		}
	}
}

// Handle records ev if it is a completion.
func (w *Writer) Handle(ctx context.Context, ev events.Event) {
	done, ok := ev.Data.(events.Completion)
	if !ok {
		return
	}
	if _, err := w.store.RecordOperation(ctx, done.Record); err != nil {
		log.Error().Err(err).Str("request_id", done.Record.RequestID).Msg("failed to journal operation")
	}
}
