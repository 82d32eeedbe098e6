// Package autodelete removes transient bot replies (error texts, command
// lists) after a configured timeout.
package autodelete

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tg_resumo_bot/internal/logging"
	"tg_resumo_bot/internal/messaging"
)

// Deleter is the slice of the messaging client the queue needs.
type Deleter interface {
	Delete(ctx context.Context, ref messaging.Ref) error
}

// Notifier reports deletion failures to the bot administrator.
type Notifier interface {
	NotifyAdmin(ctx context.Context, text string)
}

type entry struct {
	ref     messaging.Ref
	queued  time.Time
	timeout time.Duration
}

// Queue is a FIFO of messages awaiting deletion. Entries are appended in
// send order and swept from the head; the sweep stops at the first entry
// whose timeout has not elapsed yet.
type Queue struct {
	client   Deleter
	notifier Notifier
	sweep    time.Duration
	logger   *logrus.Entry

	mu      sync.Mutex
	entries []entry

	now func() time.Time
}

// New builds a queue sweeping at the given interval. notifier may be nil.
func New(client Deleter, notifier Notifier, sweep time.Duration, logger *logrus.Entry) *Queue {
	if sweep <= 0 {
		sweep = time.Minute
	}
	if logger == nil {
		logger = logging.Logger()
	}
	return &Queue{
		client:   client,
		notifier: notifier,
		sweep:    sweep,
		logger:   logger,
		now:      time.Now,
	}
}

// Enqueue schedules a sent message for deletion after timeout.
func (q *Queue) Enqueue(ref messaging.Ref, timeout time.Duration) {
	if q == nil || timeout <= 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, entry{ref: ref, queued: q.now(), timeout: timeout})
}

// Len reports how many messages are still queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Run sweeps the queue until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.Sweep(ctx)
		}
	}
}

// Sweep deletes every due message at the head of the queue. A failed
// deletion is logged and reported to the admin; the entry is dropped either
// way so one bad message cannot wedge the queue.
func (q *Queue) Sweep(ctx context.Context) {
	for {
		ref, ok := q.popDue()
		if !ok {
			return
		}

		if err := q.client.Delete(ctx, ref); err != nil {
			q.logger.WithFields(logging.Fields{
				"event":      "autodelete_failed",
				"chat_id":    ref.ChatID,
				"message_id": ref.MessageID,
				"error":      err.Error(),
			}).Warn("could not delete expired message")
			if q.notifier != nil {
				q.notifier.NotifyAdmin(ctx, fmt.Sprintf("Failed to delete message: %v", err))
			}
			continue
		}

		q.logger.WithFields(logging.Fields{
			"event":      "autodelete_done",
			"chat_id":    ref.ChatID,
			"message_id": ref.MessageID,
		}).Debug("deleted expired message")
	}
}

func (q *Queue) popDue() (messaging.Ref, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return messaging.Ref{}, false
	}
	head := q.entries[0]
	if q.now().Sub(head.queued) < head.timeout {
		return messaging.Ref{}, false
	}
	q.entries = q.entries[1:]
	return head.ref, true
}
