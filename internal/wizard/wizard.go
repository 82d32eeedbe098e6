// Package wizard implements the multi-turn configuration dialogue for
// periodic group summaries: a per-user state machine with back, cancel, and
// inactivity-expiry semantics.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"tg_resumo_bot/internal/domain"
	"tg_resumo_bot/internal/logging"
	"tg_resumo_bot/internal/session"
	"tg_resumo_bot/internal/store"
)

// Dialogue states. Stored on the session as plain strings.
const (
	StateAwaitingGroupName        = "AWAITING_GROUP_NAME"
	StateAwaitingConfigType       = "AWAITING_CONFIG_TYPE"
	StateAwaitingEditOption       = "AWAITING_EDIT_OPTION"
	StateAwaitingDeleteConfirm    = "AWAITING_DELETE_CONFIRM"
	StateAwaitingInterval         = "AWAITING_INTERVAL"
	StateAwaitingQuietStart       = "AWAITING_QUIET_START"
	StateAwaitingQuietEnd         = "AWAITING_QUIET_END"
	StateAwaitingAutoDeleteChoice = "AWAITING_AUTO_DELETE_CHOICE"
	StateAwaitingDeleteAfter      = "AWAITING_DELETE_AFTER"
	StateAwaitingGroupInfo        = "AWAITING_GROUP_INFO"
	StateAwaitingPromptApproval   = "AWAITING_PROMPT_APPROVAL"
	StateAwaitingCustomPrompt     = "AWAITING_CUSTOM_PROMPT"
	StateAwaitingConfirmation     = "AWAITING_CONFIRMATION"
)

// promptTemperature is used for the tailored-prompt generation call.
const promptTemperature = 0.7

var quietTimePattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

// predecessors is the fixed back-navigation table. AWAITING_GROUP_NAME is
// the initial state and has no predecessor.
var predecessors = map[string]string{
	StateAwaitingConfigType:       StateAwaitingGroupName,
	StateAwaitingEditOption:       StateAwaitingGroupName,
	StateAwaitingDeleteConfirm:    StateAwaitingEditOption,
	StateAwaitingInterval:         StateAwaitingConfigType,
	StateAwaitingQuietStart:       StateAwaitingInterval,
	StateAwaitingQuietEnd:         StateAwaitingQuietStart,
	StateAwaitingAutoDeleteChoice: StateAwaitingQuietEnd,
	StateAwaitingDeleteAfter:      StateAwaitingAutoDeleteChoice,
	StateAwaitingGroupInfo:        StateAwaitingQuietEnd,
	StateAwaitingPromptApproval:   StateAwaitingGroupInfo,
	StateAwaitingCustomPrompt:     StateAwaitingPromptApproval,
	StateAwaitingConfirmation:     StateAwaitingPromptApproval,
}

var (
	cancelWords = []string{"cancelar", "cancel"}
	backWords   = []string{"voltar", "back"}
	yesWords    = []string{"sim", "yes", "s", "y"}
	noWords     = []string{"nao", "não", "no", "n"}
)

// Completer generates text from a prompt. The temperature applies to this
// call only.
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float32) (string, error)
}

// Engine drives wizard sessions. All transitions for one user are applied
// serially, in arrival order.
type Engine struct {
	sessions *session.Store
	store    store.SummaryStore
	ai       Completer
	model    string
	logger   *logrus.Entry
}

// NewEngine constructs an Engine. The model name is informational only; it
// appears in the confirmation summary shown to the user.
func NewEngine(sessions *session.Store, summaries store.SummaryStore, ai Completer, model string, logger *logrus.Entry) *Engine {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Engine{
		sessions: sessions,
		store:    summaries,
		ai:       ai,
		model:    model,
		logger:   logger,
	}
}

// Start opens a new session for the user and returns the opening prompt. An
// already-active session is resumed rather than replaced.
func (e *Engine) Start(ctx context.Context, userID, chatID int64) (string, error) {
	if e == nil || e.sessions == nil || e.store == nil {
		return "", errors.New("wizard engine is not initialized")
	}
	if ctx == nil {
		return "", errors.New("context is required")
	}

	release := e.sessions.Acquire(userID)
	defer release()

	groups, err := e.store.GroupNames(ctx)
	if err != nil {
		return "", err
	}

	if _, err := e.sessions.Create(userID, chatID, StateAwaitingGroupName); err != nil {
		if errors.Is(err, domain.ErrSessionExists) {
			return "Você já tem uma configuração em andamento. Continue respondendo ou digite \"cancelar\" para sair.", nil
		}
		return "", err
	}

	e.logger.WithFields(logging.Fields{
		"event":   "wizard_started",
		"user_id": userID,
	}).Info("configuration wizard started")

	return startPrompt(groups), nil
}

// InSession reports whether the user has a session record, live or expired.
// Expired records still route to Handle so the expiry notice is delivered.
func (e *Engine) InSession(userID int64) bool {
	if e == nil || e.sessions == nil {
		return false
	}

	_, ok := e.sessions.Lookup(userID)
	return ok
}

// Handle consumes one user message as wizard input and returns the reply to
// send. Recoverable problems (invalid input, a failed generation call) are
// answered with a corrective message and a nil error; a non-nil error means
// the session is unusable and the caller should discard it.
func (e *Engine) Handle(ctx context.Context, userID int64, input string) (string, error) {
	if e == nil || e.sessions == nil || e.store == nil {
		return "", errors.New("wizard engine is not initialized")
	}
	if ctx == nil {
		return "", errors.New("context is required")
	}

	release := e.sessions.Acquire(userID)
	defer release()

	sess, ok := e.sessions.Lookup(userID)
	if !ok {
		return "", domain.ErrNoSession
	}

	if e.sessions.IsExpired(sess) {
		e.sessions.Delete(userID)
		e.logger.WithFields(logging.Fields{
			"event":   "wizard_expired",
			"user_id": userID,
			"state":   sess.State,
		}).Info("configuration session expired")
		return replyExpired, nil
	}

	e.sessions.Touch(userID)

	trimmed := strings.TrimSpace(input)
	lowered := strings.ToLower(trimmed)

	// Cancel wins over everything, including state grammars.
	if contains(cancelWords, lowered) {
		e.sessions.Delete(userID)
		return replyCancelled, nil
	}

	if contains(backWords, lowered) && sess.State != StateAwaitingGroupName {
		return e.handleBack(ctx, sess)
	}

	return e.handleState(ctx, sess, trimmed, lowered)
}

func (e *Engine) handleBack(ctx context.Context, sess *session.Session) (string, error) {
	prev, ok := predecessors[sess.State]
	if !ok {
		return replyTransitionError, nil
	}

	switch prev {
	case StateAwaitingGroupName:
		sess.State = prev
		return backPreamble + promptGroupName, nil

	case StateAwaitingConfigType:
		sess.State = prev
		return backPreamble + promptConfigType, nil

	case StateAwaitingInterval:
		sess.State = prev
		return backPreamble + promptInterval, nil

	case StateAwaitingQuietStart:
		sess.State = prev
		return backPreamble + promptQuietStart, nil

	case StateAwaitingQuietEnd:
		sess.State = prev
		return backPreamble + promptQuietEnd, nil

	case StateAwaitingAutoDeleteChoice:
		sess.State = prev
		return backPreamble + promptAutoDeleteChoice, nil

	case StateAwaitingGroupInfo:
		sess.State = prev
		return backPreamble + promptGroupInfo, nil

	case StateAwaitingEditOption:
		cfg, found, err := e.store.Get(ctx, sess.Data.GroupName)
		if err != nil {
			e.logTransitionFailure(sess, err)
			return replyTransitionError, nil
		}
		if !found {
			cfg = e.cfgFromSession(sess)
		}
		sess.State = prev
		return backPreamble + editMenuPrompt(sess.Data.GroupName, cfg), nil

	case StateAwaitingPromptApproval:
		// Returning into the approval step regenerates the suggested
		// prompt when a group description is available, so edits to the
		// description are reflected.
		if sess.Data.GroupInfo != "" {
			generated, err := e.generatePrompt(ctx, sess.Data.GroupInfo)
			if err != nil {
				e.logTransitionFailure(sess, err)
				return replyTransitionError, nil
			}
			sess.Data.Prompt = generated
		}
		sess.State = prev
		return backPreamble + promptApprovalPrompt(sess.Data.Prompt), nil
	}

	return replyTransitionError, nil
}

func (e *Engine) handleState(ctx context.Context, sess *session.Session, trimmed, lowered string) (string, error) {
	switch sess.State {
	case StateAwaitingGroupName:
		return e.stepGroupName(ctx, sess, trimmed, lowered)
	case StateAwaitingConfigType:
		return e.stepConfigType(sess, lowered)
	case StateAwaitingEditOption:
		return e.stepEditOption(ctx, sess, lowered)
	case StateAwaitingDeleteConfirm:
		return e.stepDeleteConfirm(ctx, sess, lowered)
	case StateAwaitingInterval:
		return e.stepInterval(sess, lowered)
	case StateAwaitingQuietStart:
		return e.stepQuietStart(sess, lowered)
	case StateAwaitingQuietEnd:
		return e.stepQuietEnd(sess, lowered)
	case StateAwaitingAutoDeleteChoice:
		return e.stepAutoDeleteChoice(sess, lowered)
	case StateAwaitingDeleteAfter:
		return e.stepDeleteAfter(sess, lowered)
	case StateAwaitingGroupInfo:
		return e.stepGroupInfo(ctx, sess, trimmed)
	case StateAwaitingPromptApproval:
		return e.stepPromptApproval(sess, lowered)
	case StateAwaitingCustomPrompt:
		return e.stepCustomPrompt(sess, trimmed)
	case StateAwaitingConfirmation:
		return e.stepConfirmation(ctx, sess, lowered)
	}

	return "", fmt.Errorf("unknown wizard state %q", sess.State)
}

func (e *Engine) stepGroupName(ctx context.Context, sess *session.Session, trimmed, lowered string) (string, error) {
	existing, err := e.store.GroupNames(ctx)
	if err != nil {
		e.logTransitionFailure(sess, err)
		return replyTransitionError, nil
	}

	// A number inside the existing-groups range selects that group for
	// editing; anything else, including out-of-range numbers, is a literal
	// group name.
	if idx, convErr := strconv.Atoi(trimmed); convErr == nil && idx >= 1 && idx <= len(existing) {
		selected := existing[idx-1]
		cfg, found, err := e.store.Get(ctx, selected)
		if err != nil {
			e.logTransitionFailure(sess, err)
			return replyTransitionError, nil
		}
		if !found {
			cfg = e.store.Defaults()
		}

		sess.Data.GroupName = selected
		sess.Data.IntervalHours = cfg.IntervalHours
		sess.Data.QuietStart = cfg.QuietTime.Start
		sess.Data.QuietEnd = cfg.QuietTime.End
		sess.Data.DeleteAfter = cfg.DeleteAfter
		sess.Data.Prompt = cfg.Prompt
		sess.State = StateAwaitingEditOption

		return editMenuPrompt(selected, cfg), nil
	}

	if trimmed == "" {
		return invalidGroupNamePrefix, nil
	}
	if strings.HasPrefix(lowered, "#") || strings.HasPrefix(lowered, "@") {
		return invalidGroupNamePrefix, nil
	}

	sess.Data.GroupName = trimmed
	sess.State = StateAwaitingConfigType

	return groupSelectedPrompt(trimmed), nil
}

func (e *Engine) stepConfigType(sess *session.Session, lowered string) (string, error) {
	switch lowered {
	case "1":
		defaults := e.store.Defaults()
		sess.Data.UseDefaults = true
		sess.Data.Prompt = defaults.Prompt
		sess.State = StateAwaitingConfirmation
		return defaultsSummaryPrompt(sess.Data.GroupName, defaults), nil
	case "2":
		sess.Data.UseDefaults = false
		sess.State = StateAwaitingInterval
		return askInterval, nil
	}

	return invalidConfigType, nil
}

func (e *Engine) stepEditOption(ctx context.Context, sess *session.Session, lowered string) (string, error) {
	option, err := strconv.Atoi(lowered)
	if err != nil || option < 1 || option > 5 {
		return invalidEditOption, nil
	}

	switch option {
	case 1:
		cfg, found, err := e.store.Get(ctx, sess.Data.GroupName)
		if err != nil {
			e.logTransitionFailure(sess, err)
			return replyTransitionError, nil
		}
		if !found {
			cfg = e.cfgFromSession(sess)
		}
		cfg.Enabled = !cfg.Enabled

		if err := e.persistGroup(ctx, sess.Data.GroupName, cfg, false); err != nil {
			return "", err
		}
		e.sessions.Delete(sess.UserID)

		if cfg.Enabled {
			return replyToggleEnabled, nil
		}
		return replyToggleDisabled, nil

	case 2:
		sess.Data.Editing = true
		sess.State = StateAwaitingInterval
		return askEditInterval, nil

	case 3:
		sess.Data.Editing = true
		sess.State = StateAwaitingQuietStart
		return askEditQuietStart, nil

	case 4:
		sess.Data.Editing = true
		sess.State = StateAwaitingGroupInfo
		return askEditGroupInfo, nil

	default: // 5
		sess.State = StateAwaitingDeleteConfirm
		return deleteConfirmPrompt(sess.Data.GroupName), nil
	}
}

func (e *Engine) stepDeleteConfirm(ctx context.Context, sess *session.Session, lowered string) (string, error) {
	if contains(yesWords, lowered) {
		if err := e.store.Delete(ctx, sess.Data.GroupName); err != nil {
			e.sessions.Delete(sess.UserID)
			return "", err
		}
		if err := e.store.Save(ctx); err != nil {
			e.sessions.Delete(sess.UserID)
			return "", err
		}
		e.sessions.Delete(sess.UserID)
		return replyGroupDeleted, nil
	}

	e.sessions.Delete(sess.UserID)
	return replyDeleteAborted, nil
}

func (e *Engine) stepInterval(sess *session.Session, lowered string) (string, error) {
	interval, err := strconv.Atoi(lowered)
	if err != nil || interval < 1 || interval > 24 {
		return invalidInterval, nil
	}

	sess.Data.IntervalHours = interval
	sess.State = StateAwaitingQuietStart

	return askQuietStart, nil
}

func (e *Engine) stepQuietStart(sess *session.Session, lowered string) (string, error) {
	if !quietTimePattern.MatchString(lowered) {
		return invalidQuietStart, nil
	}

	sess.Data.QuietStart = lowered
	sess.State = StateAwaitingQuietEnd

	return askQuietEnd, nil
}

func (e *Engine) stepQuietEnd(sess *session.Session, lowered string) (string, error) {
	if !quietTimePattern.MatchString(lowered) {
		return invalidQuietEnd, nil
	}

	sess.Data.QuietEnd = lowered
	sess.State = StateAwaitingAutoDeleteChoice

	return askAutoDeleteChoice, nil
}

func (e *Engine) stepAutoDeleteChoice(sess *session.Session, lowered string) (string, error) {
	switch {
	case contains(yesWords, lowered):
		sess.State = StateAwaitingDeleteAfter
		return askDeleteAfter, nil
	case contains(noWords, lowered):
		sess.Data.DeleteAfter = nil
		sess.State = StateAwaitingGroupInfo
		return askGroupInfoAfterChoice, nil
	}

	return invalidAutoDeleteChoice, nil
}

func (e *Engine) stepDeleteAfter(sess *session.Session, lowered string) (string, error) {
	minutes, err := strconv.Atoi(lowered)
	if err != nil || minutes < 1 {
		return invalidDeleteAfter, nil
	}

	sess.Data.DeleteAfter = &minutes
	sess.State = StateAwaitingGroupInfo

	return askGroupInfoAfterDeleteAfter, nil
}

func (e *Engine) stepGroupInfo(ctx context.Context, sess *session.Session, trimmed string) (string, error) {
	if trimmed == "" {
		return replyTransitionError, nil
	}

	generated, err := e.generatePrompt(ctx, trimmed)
	if err != nil {
		e.logTransitionFailure(sess, err)
		return replyTransitionError, nil
	}

	sess.Data.GroupInfo = trimmed
	sess.Data.Prompt = generated
	sess.State = StateAwaitingPromptApproval

	return promptApprovalPrompt(generated), nil
}

func (e *Engine) stepPromptApproval(sess *session.Session, lowered string) (string, error) {
	switch lowered {
	case "1":
		sess.State = StateAwaitingConfirmation
		return approvalSummaryPrompt(
			sess.Data.GroupName,
			sess.Data.IntervalHours,
			sess.Data.QuietStart,
			sess.Data.QuietEnd,
			e.model,
			sess.Data.Prompt,
		), nil
	case "2":
		sess.State = StateAwaitingCustomPrompt
		return askCustomPrompt, nil
	}

	return invalidPromptApproval, nil
}

func (e *Engine) stepCustomPrompt(sess *session.Session, trimmed string) (string, error) {
	if trimmed == "" {
		return replyTransitionError, nil
	}

	sess.Data.Prompt = trimmed
	sess.State = StateAwaitingConfirmation

	return customSummaryPrompt(
		sess.Data.GroupName,
		sess.Data.IntervalHours,
		sess.Data.QuietStart,
		sess.Data.QuietEnd,
		sess.Data.DeleteAfter,
		sess.Data.Prompt,
	), nil
}

func (e *Engine) stepConfirmation(ctx context.Context, sess *session.Session, lowered string) (string, error) {
	switch {
	case contains(yesWords, lowered):
		var cfg domain.GroupSummary
		if sess.Data.UseDefaults {
			cfg = e.store.Defaults()
			cfg.Prompt = sess.Data.Prompt
		} else {
			cfg = e.cfgFromSession(sess)
		}
		cfg.Enabled = true

		if err := e.persistGroup(ctx, sess.Data.GroupName, cfg, true); err != nil {
			e.sessions.Delete(sess.UserID)
			return "", err
		}
		e.sessions.Delete(sess.UserID)

		e.logger.WithFields(logging.Fields{
			"event":    "summary_config_saved",
			"group":    sess.Data.GroupName,
			"interval": cfg.IntervalHours,
		}).Info("periodic summary configured")

		return replySaved, nil

	case contains(noWords, lowered):
		e.sessions.Delete(sess.UserID)
		return replyCancelled, nil
	}

	return invalidConfirmation, nil
}

// persistGroup writes the group config and, when enableGlobal is set, flips
// the global periodic-summary flag on if it was off.
func (e *Engine) persistGroup(ctx context.Context, group string, cfg domain.GroupSummary, enableGlobal bool) error {
	if enableGlobal {
		enabled, err := e.store.Enabled(ctx)
		if err != nil {
			return err
		}
		if !enabled {
			if err := e.store.SetEnabled(ctx, true); err != nil {
				return err
			}
		}
	}

	if err := e.store.Set(ctx, group, cfg); err != nil {
		return err
	}

	return e.store.Save(ctx)
}

func (e *Engine) cfgFromSession(sess *session.Session) domain.GroupSummary {
	cfg := e.store.Defaults()
	if sess.Data.IntervalHours > 0 {
		cfg.IntervalHours = sess.Data.IntervalHours
	}
	if sess.Data.QuietStart != "" {
		cfg.QuietTime.Start = sess.Data.QuietStart
	}
	if sess.Data.QuietEnd != "" {
		cfg.QuietTime.End = sess.Data.QuietEnd
	}
	cfg.DeleteAfter = sess.Data.DeleteAfter
	if sess.Data.Prompt != "" {
		cfg.Prompt = sess.Data.Prompt
	}
	return cfg
}

func (e *Engine) generatePrompt(ctx context.Context, groupInfo string) (string, error) {
	if e.ai == nil {
		return "", errors.New("completion backend is not configured")
	}

	generated, err := e.ai.Complete(ctx, fmt.Sprintf(generateTemplate, groupInfo), promptTemperature)
	if err != nil {
		return "", &domain.CompletionError{Err: err}
	}

	generated = strings.TrimSpace(generated)
	if generated == "" {
		return "", errors.New("completion returned empty prompt")
	}

	return generated, nil
}

func (e *Engine) logTransitionFailure(sess *session.Session, err error) {
	e.logger.WithFields(logging.Fields{
		"event":   "wizard_transition_failed",
		"user_id": sess.UserID,
		"state":   sess.State,
		"error":   err.Error(),
	}).Warn("wizard transition failed, session kept")
}

func contains(words []string, candidate string) bool {
	for _, w := range words {
		if w == candidate {
			return true
		}
	}
	return false
}
