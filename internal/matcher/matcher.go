// Package matcher classifies inbound messages into command descriptors.
package matcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"tg_resumo_bot/internal/domain"
	"tg_resumo_bot/internal/logging"
	"tg_resumo_bot/internal/messaging"
)

// trigger is the generic command character; unmatched messages starting with
// it fall back to the free-form question command.
const trigger = "#"

// MediaDownloader fetches the payload of a media message. Satisfied by the
// transport client.
type MediaDownloader interface {
	DownloadMedia(ctx context.Context, msg messaging.Message) ([]byte, string, error)
}

// Matcher scans a fixed, ordered descriptor list. It is safe for concurrent
// use; the descriptor slice is never mutated.
type Matcher struct {
	commands []domain.Command
	media    MediaDownloader
	adminID  int64
	logger   *logrus.Entry
}

// New constructs a Matcher over the given descriptors.
func New(commands []domain.Command, media MediaDownloader, adminID int64, logger *logrus.Entry) *Matcher {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Matcher{
		commands: commands,
		media:    media,
		adminID:  adminID,
		logger:   logger,
	}
}

// Match returns the first descriptor the message triggers, or nil when the
// message is not a command. Sticker messages match by payload hash only;
// text messages match by prefix scan with a free-form fallback on the
// trigger character.
func (m *Matcher) Match(ctx context.Context, msg messaging.Message) *domain.Command {
	if m == nil {
		return nil
	}

	if msg.Media == messaging.MediaSticker {
		return m.matchSticker(ctx, msg)
	}

	body := strings.TrimSpace(msg.Text)
	if body == "" {
		return nil
	}
	lowered := strings.ToLower(body)

	// A bare "#resumo" always resolves to the summary command, ahead of
	// the generic prefix scan.
	if lowered == "#resumo" {
		for i := range m.commands {
			if m.commands[i].Kind == domain.KindResumo {
				return m.validated(&m.commands[i])
			}
		}
	}

	for i := range m.commands {
		cmd := &m.commands[i]
		for _, prefix := range cmd.Prefixes {
			p := strings.ToLower(prefix)
			if lowered == p || strings.HasPrefix(lowered, p+" ") {
				if matched := m.validated(cmd); matched != nil {
					return matched
				}
				// Malformed descriptor: skip to the next one.
				break
			}
		}
	}

	if strings.HasPrefix(body, trigger) {
		for i := range m.commands {
			if m.commands[i].Kind == domain.KindChat {
				return m.validated(&m.commands[i])
			}
		}
	}

	return nil
}

func (m *Matcher) matchSticker(ctx context.Context, msg messaging.Message) *domain.Command {
	if m.media == nil {
		return nil
	}

	payload, _, err := m.media.DownloadMedia(ctx, msg)
	if err != nil || len(payload) == 0 {
		if err != nil {
			m.logger.WithFields(logging.Fields{
				"event": "sticker_download_failed",
				"error": err.Error(),
			}).Warn("could not download sticker payload")
		}
		return nil
	}

	sum := sha256.Sum256(payload)
	hash := hex.EncodeToString(sum[:])

	for i := range m.commands {
		cmd := &m.commands[i]
		for _, known := range cmd.StickerHashes {
			if known == hash {
				return m.validated(cmd)
			}
		}
		// Legacy single-hash descriptors.
		if cmd.StickerHash != "" && cmd.StickerHash == hash {
			return m.validated(cmd)
		}
	}

	return nil
}

// validated runs structural validation on a matched descriptor. Malformed
// descriptors are never returned to the caller.
func (m *Matcher) validated(cmd *domain.Command) *domain.Command {
	if err := cmd.Validate(); err != nil {
		m.logger.WithFields(logging.Fields{
			"event":   "command_descriptor_invalid",
			"command": cmd.Name(),
			"error":   err.Error(),
		}).Warn("discarding match for malformed descriptor")
		return nil
	}
	return cmd
}

// Allowed applies the descriptor's permission policy to the acting user. The
// configured admin bypasses every restriction.
func (m *Matcher) Allowed(cmd *domain.Command, msg messaging.Message, userID int64) bool {
	if cmd == nil {
		return false
	}

	if m.adminID != 0 && userID == m.adminID {
		return true
	}

	perms := cmd.Permissions
	if perms == nil {
		return true
	}
	if perms.AdminOnly {
		return false
	}
	if perms.AllowsAll() {
		return true
	}

	if msg.Chat.IsGroup {
		return containsString(perms.AllowedIn, msg.Chat.Title)
	}
	return containsString(perms.AllowedIn, strconv.FormatInt(userID, 10))
}

func containsString(values []string, candidate string) bool {
	for _, v := range values {
		if v == candidate {
			return true
		}
	}
	return false
}
