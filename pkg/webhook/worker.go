package webhook

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Worker consumes calendar events from the Redis event bus and hands them to
// the Notifier.
type Worker struct {
	rdb      *redis.Client
	notifier *Notifier
	channel  string
	logger   *slog.Logger
}

// NewWorker creates a Worker subscribed to the given Redis channel.
func NewWorker(rdb *redis.Client, notifier *Notifier, channel string, logger *slog.Logger) *Worker {
	return &Worker{
		rdb:      rdb,
		notifier: notifier,
		channel:  channel,
		logger:   logger,
	}
}

// Run starts the delivery loop. It blocks until ctx is cancelled. A bad
// payload or a failed delivery is logged and the loop keeps going.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("webhook worker started", "channel", w.channel)

	pubsub := w.rdb.Subscribe(ctx, w.channel)
	defer pubsub.Close()

	events := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("webhook worker stopped")
			return nil
		case msg, ok := <-events:
			if !ok {
				w.logger.Info("webhook worker stopped", "reason", "subscription closed")
				return nil
			}
			w.handle(ctx, []byte(msg.Payload))
		}
	}
}

func (w *Worker) handle(ctx context.Context, payload []byte) {
	var event CalendarEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		w.logger.Error("decoding calendar event", "error", err)
		return
	}

	if err := w.notifier.Notify(ctx, event); err != nil {
		w.logger.Error("delivering calendar event",
			"user_id", event.UserID,
			"change", event.Change,
			"error", err,
		)
	}
}
