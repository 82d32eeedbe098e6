// Package notify sends best-effort operational reports to the bot
// administrator's direct chat.
package notify

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"tg_resumo_bot/internal/logging"
	"tg_resumo_bot/internal/messaging"
)

type sender interface {
	SendText(ctx context.Context, chatID int64, text string) (messaging.Ref, error)
}

// Admin delivers reports to the configured administrator. Delivery failures
// are logged and swallowed; notification must never take a handler down.
type Admin struct {
	client  sender
	adminID int64
	logger  *logrus.Entry
}

// NewAdmin builds a notifier targeting the given admin user id.
func NewAdmin(client sender, adminID int64, logger *logrus.Entry) *Admin {
	if logger == nil {
		logger = logging.Logger()
	}
	return &Admin{client: client, adminID: adminID, logger: logger}
}

// NotifyAdmin sends text to the administrator's DM. No-op when the notifier
// is unconfigured or the text is blank.
func (a *Admin) NotifyAdmin(ctx context.Context, text string) {
	if a == nil || a.client == nil || a.adminID == 0 {
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if _, err := a.client.SendText(ctx, a.adminID, text); err != nil {
		a.logger.WithFields(logging.Fields{
			"event": "admin_notify_failed",
			"error": err.Error(),
		}).Warn("could not deliver admin notification")
	}
}
