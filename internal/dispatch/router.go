// Package dispatch routes inbound messages: wizard sessions first, then the
// command matcher, with a panic-safe error boundary around every handler.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tg_resumo_bot/internal/domain"
	"tg_resumo_bot/internal/logging"
	"tg_resumo_bot/internal/messaging"
)

// Input is one routing request: the transport message plus an optional
// override text. The message itself is never mutated; callers that
// re-dispatch (sticker triggers, scheduler artifacts) set Override instead.
type Input struct {
	Message  messaging.Message
	Override string
}

// Text returns the effective command text for this input.
func (in Input) Text() string {
	if in.Override != "" {
		return in.Override
	}
	return in.Message.Text
}

// audioTrigger is the typed prefix of the transcription command.
const audioTrigger = "#audio"

// matchMessage is what the matcher sees: the original message, or a text
// rendition of it when an override supplies the command text.
func matchMessage(in Input) messaging.Message {
	if in.Override == "" {
		return in.Message
	}
	msg := in.Message
	msg.Text = in.Override
	msg.Media = messaging.MediaNone
	return msg
}

// Wizard is the configuration wizard surface the router consults before
// command matching.
type Wizard interface {
	InSession(userID int64) bool
	Handle(ctx context.Context, userID int64, input string) (string, error)
}

// CommandMatcher resolves inputs to command descriptors and checks
// permissions.
type CommandMatcher interface {
	Match(ctx context.Context, msg messaging.Message) *domain.Command
	Allowed(cmd *domain.Command, msg messaging.Message, userID int64) bool
}

// Executor runs a matched command.
type Executor interface {
	Handle(ctx context.Context, cmd *domain.Command, msg messaging.Message, input string) error
}

// Recorder persists group messages for later summarization.
type Recorder interface {
	Record(ctx context.Context, chatID int64, sender, text string, sentAt time.Time) error
}

// GroupTracker keeps the group registry current.
type GroupTracker interface {
	EnsureGroup(ctx context.Context, chatID int64, title string) (bool, error)
}

// Notifier reports failures to the administrator.
type Notifier interface {
	NotifyAdmin(ctx context.Context, text string)
}

// Registrar queues transient replies for deletion.
type Registrar interface {
	Enqueue(ref messaging.Ref, timeout time.Duration)
}

// Router wires the pieces together. All collaborators are injected.
type Router struct {
	wizard        Wizard
	matcher       CommandMatcher
	executor      Executor
	recorder      Recorder
	groups        GroupTracker
	notifier      Notifier
	autodelete    Registrar
	client        messaging.Client
	deleteTimeout time.Duration
	logger        *logrus.Entry
}

// Config collects the router's collaborators. Recorder, GroupTracker,
// Notifier and Registrar are optional.
type Config struct {
	Wizard        Wizard
	Matcher       CommandMatcher
	Executor      Executor
	Recorder      Recorder
	Groups        GroupTracker
	Notifier      Notifier
	AutoDelete    Registrar
	Client        messaging.Client
	DeleteTimeout time.Duration
	Logger        *logrus.Entry
}

// NewRouter builds a Router from its collaborators.
func NewRouter(cfg Config) *Router {
	if cfg.Logger == nil {
		cfg.Logger = logging.Logger()
	}
	if cfg.DeleteTimeout <= 0 {
		cfg.DeleteTimeout = time.Minute
	}
	return &Router{
		wizard:        cfg.Wizard,
		matcher:       cfg.Matcher,
		executor:      cfg.Executor,
		recorder:      cfg.Recorder,
		groups:        cfg.Groups,
		notifier:      cfg.Notifier,
		autodelete:    cfg.AutoDelete,
		client:        cfg.Client,
		deleteTimeout: cfg.DeleteTimeout,
		logger:        cfg.Logger,
	}
}

// Route processes one inbound message end to end. It never returns an error
// to the transport: every failure is answered in-chat, logged, and reported
// to the admin.
func (r *Router) Route(ctx context.Context, in Input) {
	if r == nil {
		return
	}
	msg := in.Message
	if msg.FromMe {
		return
	}

	r.track(ctx, msg)

	userID := msg.From.ID

	if r.wizard != nil && r.wizard.InSession(userID) {
		r.routeWizard(ctx, msg, in.Text())
		return
	}

	// Voice notes carry no text; route them to the transcription command
	// exactly as if the user had typed its trigger.
	if in.Override == "" && msg.Media == messaging.MediaAudio {
		in.Override = audioTrigger
	}

	cmd := r.matcher.Match(ctx, matchMessage(in))
	if cmd == nil {
		return
	}

	if !r.matcher.Allowed(cmd, msg, userID) {
		r.replyTransient(ctx, cmd, msg, cmd.ErrorMessage(domain.ErrMsgNotAllowed))
		return
	}

	r.execute(ctx, cmd, msg, in.Text())
}

// track records group bookkeeping before any command handling. Failures are
// logged and never block routing.
func (r *Router) track(ctx context.Context, msg messaging.Message) {
	if !msg.Chat.IsGroup {
		return
	}

	if r.groups != nil {
		if _, err := r.groups.EnsureGroup(ctx, msg.Chat.ID, msg.Chat.Title); err != nil {
			r.logger.WithFields(logging.Fields{
				"event":   "group_tracking_failed",
				"chat_id": msg.Chat.ID,
				"error":   err.Error(),
			}).Warn("could not update group registry")
		}
	}

	if r.recorder != nil && msg.Media == messaging.MediaNone {
		sentAt := msg.Timestamp
		if sentAt.IsZero() {
			sentAt = time.Now()
		}
		if err := r.recorder.Record(ctx, msg.Chat.ID, msg.From.Name, msg.Text, sentAt); err != nil {
			r.logger.WithFields(logging.Fields{
				"event":   "message_log_failed",
				"chat_id": msg.Chat.ID,
				"error":   err.Error(),
			}).Warn("could not record message")
		}
	}
}

func (r *Router) routeWizard(ctx context.Context, msg messaging.Message, input string) {
	reply, err := r.wizard.Handle(ctx, msg.From.ID, input)
	if err != nil {
		if errors.Is(err, domain.ErrNoSession) {
			return
		}
		correlationID := uuid.NewString()
		r.logger.WithFields(logging.Fields{
			"event":          "wizard_failed",
			"correlation_id": correlationID,
			"user_id":        msg.From.ID,
			"error":          err.Error(),
		}).Error("wizard transition failed")
		r.notify(ctx, fmt.Sprintf("Wizard failure [%s] for user %d: %v", correlationID, msg.From.ID, err))
		if reply == "" {
			reply = "Ocorreu um erro na configuração do resumo."
		}
	}
	if reply == "" {
		return
	}
	if _, sendErr := r.client.Reply(ctx, msg, reply); sendErr != nil {
		r.logger.WithFields(logging.Fields{
			"event": "wizard_reply_failed",
			"error": sendErr.Error(),
		}).Error("could not send wizard reply")
	}
}

// execute runs the command handler inside the error boundary: panics are
// recovered, failures get a correlation id, a generic in-chat reply, and an
// admin report.
func (r *Router) execute(ctx context.Context, cmd *domain.Command, msg messaging.Message, input string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.fail(ctx, cmd, msg, fmt.Errorf("panic: %v", rec))
		}
	}()

	if err := r.executor.Handle(ctx, cmd, msg, input); err != nil {
		r.fail(ctx, cmd, msg, err)
	}
}

func (r *Router) fail(ctx context.Context, cmd *domain.Command, msg messaging.Message, err error) {
	correlationID := uuid.NewString()
	r.logger.WithFields(logging.Fields{
		"event":          "command_failed",
		"correlation_id": correlationID,
		"command":        cmd.Name(),
		"chat_id":        msg.Chat.ID,
		"user_id":        msg.From.ID,
		"error":          err.Error(),
	}).Error("command handler failed")

	r.replyTransient(ctx, cmd, msg, cmd.ErrorMessage(domain.ErrMsgError))
	r.notify(ctx, fmt.Sprintf("Command %s failed [%s]: %v", cmd.Name(), correlationID, err))
}

func (r *Router) replyTransient(ctx context.Context, cmd *domain.Command, msg messaging.Message, text string) {
	ref, err := r.client.Reply(ctx, msg, text)
	if err != nil {
		r.logger.WithFields(logging.Fields{
			"event": "error_reply_failed",
			"error": err.Error(),
		}).Error("could not send error reply")
		return
	}
	if cmd.AutoDelete.ErrorMessages && r.autodelete != nil {
		r.autodelete.Enqueue(ref, r.deleteTimeout)
	}
}

func (r *Router) notify(ctx context.Context, text string) {
	if r.notifier != nil {
		r.notifier.NotifyAdmin(ctx, text)
	}
}
