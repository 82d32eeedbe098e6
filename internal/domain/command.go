// Package domain defines the command descriptors, summary configuration, and
// error taxonomy shared across the bot.
package domain

import "fmt"

// CommandKind identifies a command. The set is closed: dispatch switches over
// it exhaustively instead of looking handlers up by name at runtime.
type CommandKind int

const (
	KindUnknown CommandKind = iota
	// KindChat is the free-form AI query triggered by a bare "#" prefix.
	KindChat
	// KindResumo summarizes recent group messages.
	KindResumo
	// KindResumoConfig starts the periodic-summary configuration wizard.
	KindResumoConfig
	// KindAyubNews looks up news headlines.
	KindAyubNews
	// KindSticker creates a sticker from media or an image search.
	KindSticker
	// KindDesenho generates images from a prompt.
	KindDesenho
	// KindAudio transcribes voice messages.
	KindAudio
	// KindCommandList replies with the available-command list.
	KindCommandList
	// KindCacheClear is the admin maintenance command.
	KindCacheClear
)

var kindNames = map[CommandKind]string{
	KindUnknown:      "UNKNOWN",
	KindChat:         "CHAT_GPT",
	KindResumo:       "RESUMO",
	KindResumoConfig: "RESUMO_CONFIG",
	KindAyubNews:     "AYUB_NEWS",
	KindSticker:      "STICKER",
	KindDesenho:      "DESENHO",
	KindAudio:        "AUDIO",
	KindCommandList:  "COMMAND_LIST",
	KindCacheClear:   "CACHE_CLEAR",
}

func (k CommandKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("CommandKind(%d)", int(k))
}

// Error message template keys every descriptor may carry. ErrMsgError is
// mandatory; the rest are command-specific.
const (
	ErrMsgError         = "error"
	ErrMsgNotAllowed    = "notAllowed"
	ErrMsgNoMessages    = "noMessages"
	ErrMsgNoArticles    = "noArticles"
	ErrMsgNoKeyword     = "noKeyword"
	ErrMsgNoResults     = "noResults"
	ErrMsgNoImage       = "noImage"
	ErrMsgNoPrompt      = "noPrompt"
	ErrMsgDownload      = "downloadError"
	ErrMsgGenerate      = "generateError"
	ErrMsgTranscription = "transcriptionError"
	ErrMsgInvalidFormat = "invalidFormat"
)

// AllowAll is the permission list entry granting access everywhere.
const AllowAll = "all"

// Permissions restricts where a command may run. A nil Permissions value on a
// Command means the command is allowed everywhere.
type Permissions struct {
	// AllowedIn holds group display names, DM user ids (decimal strings), or
	// the literal AllowAll entry.
	AllowedIn []string
	// AdminOnly restricts the command to the configured admin regardless of
	// AllowedIn.
	AdminOnly bool
}

// AllowsAll reports whether the allow-list contains the AllowAll entry.
func (p *Permissions) AllowsAll() bool {
	if p == nil {
		return true
	}
	for _, entry := range p.AllowedIn {
		if entry == AllowAll {
			return true
		}
	}
	return false
}

// AutoDelete controls which replies get queued for delayed deletion.
type AutoDelete struct {
	CommandMessages bool
	ErrorMessages   bool
}

// Command is a static command descriptor. Descriptors are configured at
// startup and never created at runtime; Matcher scans them in declared order.
type Command struct {
	Kind        CommandKind
	Prefixes    []string
	Description string
	Permissions *Permissions
	AutoDelete  AutoDelete
	// ErrorMessages maps template keys to user-facing reply texts. Must be
	// non-empty and carry ErrMsgError, or the descriptor is rejected at match
	// time.
	ErrorMessages map[string]string
	// StickerHashes are SHA-256 hex digests of sticker payloads that trigger
	// the command. StickerHash is the legacy single-hash field, still honored.
	StickerHashes []string
	StickerHash   string
	// Model overrides the default completion model when set.
	Model string
	// DefaultSummaryHours bounds the summary window when no count is given.
	DefaultSummaryHours int
}

// Name returns the descriptor's stable identifier.
func (c Command) Name() string { return c.Kind.String() }

// ErrorMessage resolves a template key, falling back to the generic error
// text and finally to a hardcoded apology so a reply is always available.
func (c Command) ErrorMessage(key string) string {
	if msg, ok := c.ErrorMessages[key]; ok && msg != "" {
		return msg
	}
	if msg, ok := c.ErrorMessages[ErrMsgError]; ok && msg != "" {
		return msg
	}
	return "Ocorreu um erro ao processar seu comando."
}

// Validate checks the descriptor's structural invariants. A descriptor that
// fails validation is discarded at match time, never executed.
func (c Command) Validate() error {
	if c.Kind == KindUnknown {
		return &ConfigurationError{Command: c.Name(), Reason: "command kind is not set"}
	}
	if len(c.ErrorMessages) == 0 {
		return &ConfigurationError{Command: c.Name(), Reason: "errorMessages is missing"}
	}
	if msg := c.ErrorMessages[ErrMsgError]; msg == "" {
		return &ConfigurationError{Command: c.Name(), Reason: "errorMessages.error is missing"}
	}
	if c.Permissions != nil && len(c.Permissions.AllowedIn) == 0 && !c.Permissions.AdminOnly {
		return &ConfigurationError{Command: c.Name(), Reason: "permissions.allowedIn is empty"}
	}
	for _, prefix := range c.Prefixes {
		if prefix == "" {
			return &ConfigurationError{Command: c.Name(), Reason: "empty prefix"}
		}
	}
	return nil
}
