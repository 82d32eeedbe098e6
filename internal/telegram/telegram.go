// Package telegram adapts the Telegram Bot API to the bot's messaging
// surface: it converts updates into messaging.Message values, hands them to
// the router, and implements the outbound client.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_resumo_bot/internal/config"
	"tg_resumo_bot/internal/dispatch"
	"tg_resumo_bot/internal/domain"
	"tg_resumo_bot/internal/logging"
	"tg_resumo_bot/internal/messaging"
)

// Router consumes converted inbound messages.
type Router interface {
	Route(ctx context.Context, in dispatch.Input)
}

// botAPI is the slice of *bot.Bot the client calls, split out so tests can
// substitute a fake.
type botAPI interface {
	Start(ctx context.Context)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendSticker(ctx context.Context, params *bot.SendStickerParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
}

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
		"message_reaction",
	}

	createBot = func(token string, options ...bot.Option) (botAPI, error) {
		return bot.New(token, options...)
	}
)

// sentLogCap bounds how many outbound refs are kept for reaction handling.
const sentLogCap = 512

// sentLog remembers refs of recently sent messages so reaction handling can
// tell the bot's own output apart from other members' messages.
type sentLog struct {
	mu    sync.Mutex
	order []messaging.Ref
	refs  map[messaging.Ref]struct{}
	limit int
}

func newSentLog(limit int) *sentLog {
	return &sentLog{
		refs:  make(map[messaging.Ref]struct{}),
		limit: limit,
	}
}

func (l *sentLog) add(ref messaging.Ref) {
	if ref.MessageID == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.refs[ref]; ok {
		return
	}
	if len(l.order) >= l.limit {
		oldest := l.order[0]
		l.order = l.order[1:]
		delete(l.refs, oldest)
	}
	l.order = append(l.order, ref)
	l.refs[ref] = struct{}{}
}

func (l *sentLog) contains(ref messaging.Ref) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.refs[ref]
	return ok
}

// Client wraps the Telegram bot instance. It implements messaging.Client.
type Client struct {
	bot        botAPI
	router     Router
	httpClient *http.Client
	sent       *sentLog
	logger     *logrus.Entry
}

// NewClient initializes the Telegram bot with long polling. The router may
// be attached later with SetRouter, after the rest of the wiring exists.
func NewClient(cfg config.Config, logger *logrus.Entry) (*Client, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		sent:       newSentLog(sentLogCap),
		logger:     logger,
	}

	tgBot, err := createBot(cfg.TelegramToken,
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(c.handleUpdate),
		bot.WithErrorsHandler(errorHandler(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}

	c.bot = tgBot
	return c, nil
}

// SetRouter attaches the message router. Updates arriving before a router is
// set are logged and dropped.
func (c *Client) SetRouter(r Router) { c.router = r }

// Start begins receiving updates via long polling until the context is
// canceled.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	c.bot.Start(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

func (c *Client) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update == nil {
		return
	}

	if update.MessageReaction != nil {
		c.handleReaction(ctx, update.MessageReaction)
		return
	}

	if update.Message == nil {
		return
	}

	msg := convertMessage(update.Message)

	if c.router == nil {
		c.logger.WithField("event", "router_missing").Warn("dropping update, no router attached")
		return
	}
	c.router.Route(ctx, dispatch.Input{Message: msg})
}

// handleReaction deletes the reacted message when the bot sent it. This is
// the shortcut for removing bot output; reactions to anyone else's messages
// are ignored.
func (c *Client) handleReaction(ctx context.Context, reaction *models.MessageReactionUpdated) {
	ref := messaging.Ref{
		ChatID:    reaction.Chat.ID,
		MessageID: reaction.MessageID,
	}
	if !c.sent.contains(ref) {
		return
	}
	if err := c.Delete(ctx, ref); err != nil {
		c.logger.WithFields(logging.Fields{
			"event":      "reaction_delete_failed",
			"chat_id":    reaction.Chat.ID,
			"message_id": reaction.MessageID,
			"error":      err.Error(),
		}).Warn("could not delete reacted message")
	}
}

func convertMessage(m *models.Message) messaging.Message {
	msg := messaging.Message{
		Ref: messaging.Ref{
			ChatID:    m.Chat.ID,
			MessageID: m.ID,
		},
		Chat: messaging.Chat{
			ID:      m.Chat.ID,
			Title:   m.Chat.Title,
			IsGroup: m.Chat.Type == models.ChatTypeGroup || m.Chat.Type == models.ChatTypeSupergroup,
		},
		Text:      messageText(m),
		Timestamp: time.Unix(int64(m.Date), 0),
	}

	if m.From != nil {
		msg.From = messaging.Contact{
			ID:   m.From.ID,
			Name: contactName(m.From),
		}
		msg.FromMe = m.From.IsBot
	}

	msg.Media, msg.MediaID, msg.MediaMIME = mediaInfo(m)

	if m.ReplyToMessage != nil {
		quoted := convertMessage(m.ReplyToMessage)
		msg.Quoted = &quoted
	}

	return msg
}

func messageText(m *models.Message) string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

func contactName(user *models.User) string {
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name != "" {
		return name
	}
	return user.Username
}

func mediaInfo(m *models.Message) (messaging.MediaKind, string, string) {
	switch {
	case m.Sticker != nil:
		return messaging.MediaSticker, m.Sticker.FileID, "image/webp"
	case m.Voice != nil:
		return messaging.MediaAudio, m.Voice.FileID, m.Voice.MimeType
	case m.Audio != nil:
		return messaging.MediaAudio, m.Audio.FileID, m.Audio.MimeType
	case len(m.Photo) > 0:
		// Photo sizes are ordered smallest first; take the largest.
		return messaging.MediaImage, m.Photo[len(m.Photo)-1].FileID, "image/jpeg"
	default:
		return messaging.MediaNone, "", ""
	}
}

// Reply sends text as a reply to the given message.
func (c *Client) Reply(ctx context.Context, to messaging.Message, text string) (messaging.Ref, error) {
	sent, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: to.Chat.ID,
		Text:   text,
		ReplyParameters: &models.ReplyParameters{
			MessageID: to.Ref.MessageID,
			ChatID:    to.Ref.ChatID,
		},
	})
	if err != nil {
		return messaging.Ref{}, &domain.TransportError{Op: "reply", Err: err}
	}
	return c.remember(sent), nil
}

// SendText sends text to a chat.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) (messaging.Ref, error) {
	sent, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		return messaging.Ref{}, &domain.TransportError{Op: "send text", Err: err}
	}
	return c.remember(sent), nil
}

// SendSticker sends image bytes as a sticker.
func (c *Client) SendSticker(ctx context.Context, chatID int64, image []byte) (messaging.Ref, error) {
	sent, err := c.bot.SendSticker(ctx, &bot.SendStickerParams{
		ChatID: chatID,
		Sticker: &models.InputFileUpload{
			Filename: "sticker.webp",
			Data:     bytes.NewReader(image),
		},
	})
	if err != nil {
		return messaging.Ref{}, &domain.TransportError{Op: "send sticker", Err: err}
	}
	return c.remember(sent), nil
}

// SendImage sends image bytes with an optional caption.
func (c *Client) SendImage(ctx context.Context, chatID int64, image []byte, caption string) (messaging.Ref, error) {
	sent, err := c.bot.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID: chatID,
		Photo: &models.InputFileUpload{
			Filename: "image.png",
			Data:     bytes.NewReader(image),
		},
		Caption: caption,
	})
	if err != nil {
		return messaging.Ref{}, &domain.TransportError{Op: "send image", Err: err}
	}
	return c.remember(sent), nil
}

// Delete removes a previously sent message.
func (c *Client) Delete(ctx context.Context, ref messaging.Ref) error {
	ok, err := c.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    ref.ChatID,
		MessageID: ref.MessageID,
	})
	if err != nil {
		return &domain.TransportError{Op: "delete", Err: err}
	}
	if !ok {
		return &domain.TransportError{Op: "delete", Err: errors.New("message was not deleted")}
	}
	return nil
}

// DownloadMedia fetches a message's attachment payload.
func (c *Client) DownloadMedia(ctx context.Context, msg messaging.Message) ([]byte, string, error) {
	if msg.MediaID == "" {
		return nil, "", &domain.TransportError{Op: "download", Err: errors.New("message has no media")}
	}

	file, err := c.bot.GetFile(ctx, &bot.GetFileParams{FileID: msg.MediaID})
	if err != nil {
		return nil, "", &domain.TransportError{Op: "download", Err: err}
	}

	payload, err := c.fetch(ctx, c.bot.FileDownloadLink(file))
	if err != nil {
		return nil, "", &domain.TransportError{Op: "download", Err: err}
	}
	return payload, msg.MediaMIME, nil
}

// SendTyping marks the bot as typing in a chat.
func (c *Client) SendTyping(ctx context.Context, chatID int64) error {
	_, err := c.bot.SendChatAction(ctx, &bot.SendChatActionParams{
		ChatID: chatID,
		Action: models.ChatActionTyping,
	})
	if err != nil {
		return &domain.TransportError{Op: "send typing", Err: err}
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// remember records an outbound ref so reaction handling can recognize the
// bot's own messages later.
func (c *Client) remember(sent *models.Message) messaging.Ref {
	ref := refOf(sent)
	c.sent.add(ref)
	return ref
}

func refOf(sent *models.Message) messaging.Ref {
	if sent == nil {
		return messaging.Ref{}
	}
	return messaging.Ref{
		ChatID:    sent.Chat.ID,
		MessageID: sent.ID,
	}
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram polling error")
	}
}
