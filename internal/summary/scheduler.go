// Package summary runs the periodic group summaries configured through the
// wizard.
package summary

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tg_resumo_bot/internal/logging"
	"tg_resumo_bot/internal/messaging"
	"tg_resumo_bot/internal/store"
)

const summaryTemperature = 1.0

// GroupResolver maps configured group names to chat ids.
type GroupResolver interface {
	ChatIDByTitle(ctx context.Context, title string) (int64, bool, error)
}

// MessageHistory reads the recent-message window for a chat.
type MessageHistory interface {
	Since(ctx context.Context, chatID int64, cutoff time.Time) ([]store.LoggedMessage, error)
}

// Completer produces the summary text.
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float32) (string, error)
}

// Sender delivers summaries to chats.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) (messaging.Ref, error)
}

// Notifier reports scheduler activity to the administrator.
type Notifier interface {
	NotifyAdmin(ctx context.Context, text string)
}

// Registrar queues sent summaries for deletion when a group configures
// auto-delete.
type Registrar interface {
	Enqueue(ref messaging.Ref, timeout time.Duration)
}

// Scheduler walks the configured groups on a fixed tick and sends a summary
// to every group whose interval has elapsed outside its quiet window.
type Scheduler struct {
	store      store.SummaryStore
	groups     GroupResolver
	history    MessageHistory
	ai         Completer
	client     Sender
	notifier   Notifier
	autodelete Registrar
	tick       time.Duration
	logger     *logrus.Entry

	mu      sync.Mutex
	lastRun map[string]time.Time

	now func() time.Time
}

// Config collects the scheduler's collaborators. Notifier and Registrar are
// optional.
type Config struct {
	Store      store.SummaryStore
	Groups     GroupResolver
	History    MessageHistory
	AI         Completer
	Client     Sender
	Notifier   Notifier
	AutoDelete Registrar
	Tick       time.Duration
	Logger     *logrus.Entry
}

// NewScheduler builds a Scheduler.
func NewScheduler(cfg Config) *Scheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Logger()
	}
	return &Scheduler{
		store:      cfg.Store,
		groups:     cfg.Groups,
		history:    cfg.History,
		ai:         cfg.AI,
		client:     cfg.Client,
		notifier:   cfg.Notifier,
		autodelete: cfg.AutoDelete,
		tick:       cfg.Tick,
		logger:     cfg.Logger,
		lastRun:    make(map[string]time.Time),
		now:        time.Now,
	}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick processes every configured group once. Failures on one group are
// reported and do not stop the others.
func (s *Scheduler) Tick(ctx context.Context) {
	enabled, err := s.store.Enabled(ctx)
	if err != nil {
		s.logger.WithFields(logging.Fields{
			"event": "summary_tick_failed",
			"error": err.Error(),
		}).Error("could not read global summary flag")
		return
	}
	if !enabled {
		return
	}

	names, err := s.store.GroupNames(ctx)
	if err != nil {
		s.logger.WithFields(logging.Fields{
			"event": "summary_tick_failed",
			"error": err.Error(),
		}).Error("could not list configured groups")
		return
	}

	for _, name := range names {
		if err := s.processGroup(ctx, name); err != nil {
			s.logger.WithFields(logging.Fields{
				"event": "group_summary_failed",
				"group": name,
				"error": err.Error(),
			}).Error("periodic summary failed")
			s.notify(ctx, fmt.Sprintf("Error during periodic summary for %s: %v", name, err))
		}
	}
}

func (s *Scheduler) processGroup(ctx context.Context, name string) error {
	cfg, found, err := s.store.Get(ctx, name)
	if err != nil {
		return err
	}
	if !found || !cfg.Enabled {
		return nil
	}

	now := s.now()
	if cfg.QuietTime.Contains(now) {
		return nil
	}

	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 3 * time.Hour
	}
	if last, ok := s.last(name); ok && now.Sub(last) < interval {
		return nil
	}

	chatID, found, err := s.groups.ChatIDByTitle(ctx, name)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("group %q has no known chat", name)
	}

	history, err := s.history.Since(ctx, chatID, now.Add(-interval))
	if err != nil {
		return err
	}

	// An empty window still advances the clock so quiet groups are not
	// retried every tick.
	s.markRun(name, now)

	if len(history) == 0 {
		s.logger.WithFields(logging.Fields{
			"event": "group_summary_skipped",
			"group": name,
		}).Debug("no messages to summarize")
		s.notify(ctx, fmt.Sprintf("No periodic summary was sent to %s (no content to summarize).", name))
		return nil
	}

	var transcript strings.Builder
	for _, m := range history {
		sender := m.Sender
		if sender == "" {
			sender = "Desconhecido"
		}
		fmt.Fprintf(&transcript, ">>%s: %s\n", sender, m.Text)
	}

	text, err := s.ai.Complete(ctx, cfg.Prompt+"\n\n"+transcript.String(), summaryTemperature)
	if err != nil {
		return err
	}

	ref, err := s.client.SendText(ctx, chatID, text)
	if err != nil {
		return err
	}

	if cfg.DeleteAfter != nil && *cfg.DeleteAfter > 0 && s.autodelete != nil {
		s.autodelete.Enqueue(ref, time.Duration(*cfg.DeleteAfter)*time.Minute)
	}

	s.logger.WithFields(logging.Fields{
		"event":   "group_summary_sent",
		"group":   name,
		"chat_id": chatID,
	}).Info("periodic summary sent")
	s.notify(ctx, fmt.Sprintf("Periodic summary sent to %s:\n\n%s", name, text))
	return nil
}

func (s *Scheduler) last(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastRun[name]
	return last, ok
}

func (s *Scheduler) markRun(name string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun[name] = at
}

func (s *Scheduler) notify(ctx context.Context, text string) {
	if s.notifier != nil {
		s.notifier.NotifyAdmin(ctx, text)
	}
}
