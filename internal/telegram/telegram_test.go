package telegram

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"tg_resumo_bot/internal/config"
	"tg_resumo_bot/internal/dispatch"
	"tg_resumo_bot/internal/domain"
	"tg_resumo_bot/internal/messaging"
)

type fakeBot struct {
	startedWith   context.Context
	sendParams    []*bot.SendMessageParams
	stickerParams []*bot.SendStickerParams
	photoParams   []*bot.SendPhotoParams
	actionParams  []*bot.SendChatActionParams
	deleteParams  []*bot.DeleteMessageParams
	sendErr       error
	deleteOK      bool
	deleteErr     error
	nextID        int
}

func newFakeBot() *fakeBot { return &fakeBot{deleteOK: true} }

func (f *fakeBot) Start(ctx context.Context) { f.startedWith = ctx }

func (f *fakeBot) sent(chatID int64) *models.Message {
	f.nextID++
	return &models.Message{ID: f.nextID, Chat: models.Chat{ID: chatID}}
}

func (f *fakeBot) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sendParams = append(f.sendParams, params)
	return f.sent(params.ChatID.(int64)), nil
}

func (f *fakeBot) SendSticker(_ context.Context, params *bot.SendStickerParams) (*models.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.stickerParams = append(f.stickerParams, params)
	return f.sent(params.ChatID.(int64)), nil
}

func (f *fakeBot) SendPhoto(_ context.Context, params *bot.SendPhotoParams) (*models.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.photoParams = append(f.photoParams, params)
	return f.sent(params.ChatID.(int64)), nil
}

func (f *fakeBot) SendChatAction(_ context.Context, params *bot.SendChatActionParams) (bool, error) {
	f.actionParams = append(f.actionParams, params)
	return true, nil
}

func (f *fakeBot) DeleteMessage(_ context.Context, params *bot.DeleteMessageParams) (bool, error) {
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	f.deleteParams = append(f.deleteParams, params)
	return f.deleteOK, nil
}

func (f *fakeBot) GetFile(_ context.Context, params *bot.GetFileParams) (*models.File, error) {
	return &models.File{FileID: params.FileID, FilePath: "files/" + params.FileID}, nil
}

func (f *fakeBot) FileDownloadLink(file *models.File) string {
	return "https://example.invalid/" + file.FilePath
}

type fakeRouter struct {
	inputs []dispatch.Input
}

func (f *fakeRouter) Route(_ context.Context, in dispatch.Input) {
	f.inputs = append(f.inputs, in)
}

func newTestClient(t *testing.T, b *fakeBot) *Client {
	t.Helper()
	hookLogger, _ := logtest.NewNullLogger()
	return &Client{
		bot:    b,
		sent:   newSentLog(sentLogCap),
		logger: logrus.NewEntry(hookLogger),
	}
}

func TestNewClientCreatesBot(t *testing.T) {
	origCreateBot := createBot
	defer func() { createBot = origCreateBot }()

	var gotToken string
	var gotOptions []bot.Option
	b := newFakeBot()

	createBot = func(token string, options ...bot.Option) (botAPI, error) {
		gotToken = token
		gotOptions = options
		return b, nil
	}

	cfg := config.Config{TelegramToken: "token-123"}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	client, err := NewClient(cfg, logrus.NewEntry(logger))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	if client == nil || client.bot == nil {
		t.Fatalf("expected client and bot to be initialized")
	}

	if gotToken != cfg.TelegramToken {
		t.Fatalf("expected token %q, got %q", cfg.TelegramToken, gotToken)
	}

	if len(gotOptions) != 3 {
		t.Fatalf("expected 3 bot options (allowed updates, default handler, error handler), got %d", len(gotOptions))
	}
}

func TestNewClientPropagatesBotError(t *testing.T) {
	origCreateBot := createBot
	defer func() { createBot = origCreateBot }()

	expected := errors.New("boom")
	createBot = func(string, ...bot.Option) (botAPI, error) {
		return nil, expected
	}

	_, err := NewClient(config.Config{TelegramToken: "token"}, nil)
	if !errors.Is(err, expected) {
		t.Fatalf("expected error %v, got %v", expected, err)
	}
}

func TestClientStartLogsAndUsesContext(t *testing.T) {
	hookLogger, hook := logtest.NewNullLogger()
	b := newFakeBot()
	client := &Client{
		bot:    b,
		logger: logrus.NewEntry(hookLogger),
	}

	ctx := context.Background()
	client.Start(ctx)

	if b.startedWith != ctx {
		t.Fatalf("expected bot to start with provided context")
	}

	entries := hook.AllEntries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries (start/stop), got %d", len(entries))
	}

	if entries[0].Data["event"] != "telegram_listen" {
		t.Fatalf("expected start log event, got %v", entries[0].Data["event"])
	}
	if entries[1].Data["event"] != "telegram_stopped" {
		t.Fatalf("expected stop log event, got %v", entries[1].Data["event"])
	}
}

func TestConvertMessage(t *testing.T) {
	update := &models.Message{
		ID:   42,
		Date: 1741600800,
		From: &models.User{ID: 10, FirstName: "Alice", LastName: "Silva"},
		Chat: models.Chat{ID: -100, Title: "Amigos", Type: models.ChatTypeSupergroup},
		Text: "#resumo 5",
		ReplyToMessage: &models.Message{
			ID:   41,
			Chat: models.Chat{ID: -100, Type: models.ChatTypeSupergroup},
			Text: "mensagem citada",
		},
	}

	msg := convertMessage(update)

	if msg.Ref.ChatID != -100 || msg.Ref.MessageID != 42 {
		t.Fatalf("unexpected ref: %+v", msg.Ref)
	}
	if msg.From.ID != 10 || msg.From.Name != "Alice Silva" {
		t.Fatalf("unexpected contact: %+v", msg.From)
	}
	if !msg.Chat.IsGroup || msg.Chat.Title != "Amigos" {
		t.Fatalf("unexpected chat: %+v", msg.Chat)
	}
	if msg.Text != "#resumo 5" {
		t.Fatalf("unexpected text: %q", msg.Text)
	}
	if msg.Quoted == nil || msg.Quoted.Text != "mensagem citada" {
		t.Fatalf("unexpected quoted message: %+v", msg.Quoted)
	}
	if !msg.Timestamp.Equal(time.Unix(1741600800, 0)) {
		t.Fatalf("unexpected timestamp: %v", msg.Timestamp)
	}
}

func TestConvertMessageMediaKinds(t *testing.T) {
	tests := []struct {
		name     string
		message  *models.Message
		want     messaging.MediaKind
		wantFile string
	}{
		{
			name:     "sticker",
			message:  &models.Message{Sticker: &models.Sticker{FileID: "stk-1"}},
			want:     messaging.MediaSticker,
			wantFile: "stk-1",
		},
		{
			name:     "voice",
			message:  &models.Message{Voice: &models.Voice{FileID: "voc-1", MimeType: "audio/ogg"}},
			want:     messaging.MediaAudio,
			wantFile: "voc-1",
		},
		{
			name: "photo takes largest size",
			message: &models.Message{Photo: []models.PhotoSize{
				{FileID: "small"},
				{FileID: "large"},
			}},
			want:     messaging.MediaImage,
			wantFile: "large",
		},
		{
			name:    "plain text",
			message: &models.Message{Text: "oi"},
			want:    messaging.MediaNone,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			msg := convertMessage(tt.message)
			if msg.Media != tt.want {
				t.Fatalf("expected media kind %v, got %v", tt.want, msg.Media)
			}
			if msg.MediaID != tt.wantFile {
				t.Fatalf("expected file id %q, got %q", tt.wantFile, msg.MediaID)
			}
		})
	}
}

func TestHandleUpdateRoutesMessages(t *testing.T) {
	client := newTestClient(t, newFakeBot())
	router := &fakeRouter{}
	client.SetRouter(router)

	client.handleUpdate(context.Background(), nil, &models.Update{
		Message: &models.Message{
			ID:   1,
			From: &models.User{ID: 10},
			Chat: models.Chat{ID: -100, Type: models.ChatTypeGroup},
			Text: "#resumo",
		},
	})

	if len(router.inputs) != 1 || router.inputs[0].Message.Text != "#resumo" {
		t.Fatalf("expected routed message, got %v", router.inputs)
	}
	if router.inputs[0].Override != "" {
		t.Fatalf("transport must not set override text, got %q", router.inputs[0].Override)
	}
}

func TestHandleUpdateWithoutRouterDrops(t *testing.T) {
	client := newTestClient(t, newFakeBot())

	// Must not panic.
	client.handleUpdate(context.Background(), nil, &models.Update{
		Message: &models.Message{ID: 1, Chat: models.Chat{ID: -100}},
	})
}

func TestHandleReactionDeletesOwnMessage(t *testing.T) {
	b := newFakeBot()
	client := newTestClient(t, b)

	ref, err := client.SendText(context.Background(), -100, "resumo do dia")
	if err != nil {
		t.Fatalf("SendText returned error: %v", err)
	}

	client.handleUpdate(context.Background(), nil, &models.Update{
		MessageReaction: &models.MessageReactionUpdated{
			Chat:      models.Chat{ID: ref.ChatID},
			MessageID: ref.MessageID,
		},
	})

	if len(b.deleteParams) != 1 || b.deleteParams[0].MessageID != ref.MessageID {
		t.Fatalf("expected reacted message deleted, got %v", b.deleteParams)
	}
}

func TestHandleReactionIgnoresOtherMessages(t *testing.T) {
	b := newFakeBot()
	client := newTestClient(t, b)

	client.handleUpdate(context.Background(), nil, &models.Update{
		MessageReaction: &models.MessageReactionUpdated{
			Chat:      models.Chat{ID: -100},
			MessageID: 77,
		},
	})

	if len(b.deleteParams) != 0 {
		t.Fatalf("expected reaction on a member message ignored, got %v", b.deleteParams)
	}
}

func TestSentLogEvictsOldestRef(t *testing.T) {
	log := newSentLog(2)
	first := messaging.Ref{ChatID: -100, MessageID: 1}
	second := messaging.Ref{ChatID: -100, MessageID: 2}
	third := messaging.Ref{ChatID: -100, MessageID: 3}

	log.add(first)
	log.add(second)
	log.add(third)

	if log.contains(first) {
		t.Fatal("expected oldest ref evicted")
	}
	if !log.contains(second) || !log.contains(third) {
		t.Fatal("expected newest refs kept")
	}
}

func TestReplySetsReplyParameters(t *testing.T) {
	b := newFakeBot()
	client := newTestClient(t, b)

	to := messaging.Message{
		Ref:  messaging.Ref{ChatID: -100, MessageID: 5},
		Chat: messaging.Chat{ID: -100},
	}
	ref, err := client.Reply(context.Background(), to, "olá")
	if err != nil {
		t.Fatalf("Reply returned error: %v", err)
	}

	if len(b.sendParams) != 1 {
		t.Fatalf("expected 1 send, got %d", len(b.sendParams))
	}
	params := b.sendParams[0]
	if params.ReplyParameters == nil || params.ReplyParameters.MessageID != 5 {
		t.Fatalf("expected reply parameters, got %+v", params.ReplyParameters)
	}
	if ref.ChatID != -100 || ref.MessageID == 0 {
		t.Fatalf("unexpected ref: %+v", ref)
	}
}

func TestSendErrorsAreTransportErrors(t *testing.T) {
	b := newFakeBot()
	b.sendErr = errors.New("network down")
	client := newTestClient(t, b)

	_, err := client.SendText(context.Background(), -100, "oi")
	var terr *domain.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %T (%v)", err, err)
	}
}

func TestDeleteReportsFailure(t *testing.T) {
	b := newFakeBot()
	b.deleteOK = false
	client := newTestClient(t, b)

	err := client.Delete(context.Background(), messaging.Ref{ChatID: -100, MessageID: 9})
	var terr *domain.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError for refused delete, got %v", err)
	}
}

func TestSendTypingUsesTypingAction(t *testing.T) {
	b := newFakeBot()
	client := newTestClient(t, b)

	if err := client.SendTyping(context.Background(), -100); err != nil {
		t.Fatalf("SendTyping returned error: %v", err)
	}
	if len(b.actionParams) != 1 || b.actionParams[0].Action != models.ChatActionTyping {
		t.Fatalf("expected typing action, got %v", b.actionParams)
	}
}

func TestDownloadMediaRequiresFileID(t *testing.T) {
	client := newTestClient(t, newFakeBot())

	_, _, err := client.DownloadMedia(context.Background(), messaging.Message{})
	var terr *domain.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError for missing media, got %v", err)
	}
}
