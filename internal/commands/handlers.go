package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tg_resumo_bot/internal/domain"
	"tg_resumo_bot/internal/logging"
	"tg_resumo_bot/internal/messaging"
	"tg_resumo_bot/internal/store"
)

const (
	summaryPromptTemplate = "Resuma as mensagens abaixo de forma clara e concisa, em português, " +
		"destacando os principais assuntos discutidos:\n\n%s"
	questionPromptTemplate = "Responda a pergunta abaixo em português, de forma direta:\n\n%s"
	quotedContextTemplate  = "\n\nConsidere também esta mensagem citada como contexto:\n%s"

	summaryTemperature  = 1.0
	questionTemperature = 1.0

	invalidResumoLimit = `Por favor, forneça um número válido após "#resumo" para definir o limite de mensagens.`
)

// Completer produces text completions; the default model may be overridden
// per call.
type Completer interface {
	CompleteModel(ctx context.Context, model, prompt string, temperature float32) (string, error)
}

// Transcriber converts audio payloads to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// ImageGenerator renders a textual prompt as image bytes.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// ImageSearcher finds an image for a keyword. A nil payload with a nil error
// means nothing was found.
type ImageSearcher interface {
	Search(ctx context.Context, keyword string) ([]byte, error)
}

// Article is one news item returned by a NewsProvider.
type Article struct {
	Title     string
	Source    string
	Published time.Time
}

// NewsProvider serves the news lookups. Scraping itself lives behind this
// interface; the bot only formats results.
type NewsProvider interface {
	TopHeadlines(ctx context.Context) ([]Article, error)
	Football(ctx context.Context) ([]Article, error)
	Search(ctx context.Context, keywords string) ([]Article, error)
}

// MessageHistory is the slice of the message log the summary commands read.
type MessageHistory interface {
	Since(ctx context.Context, chatID int64, cutoff time.Time) ([]store.LoggedMessage, error)
	Recent(ctx context.Context, chatID int64, limit int) ([]store.LoggedMessage, error)
}

// WizardStarter opens a configuration wizard session.
type WizardStarter interface {
	Start(ctx context.Context, userID, chatID int64) (string, error)
}

// Cache is the maintenance hook behind the admin cache-clear command.
type Cache interface {
	Clear(ctx context.Context) (int64, error)
}

// Registrar queues sent messages for delayed deletion.
type Registrar interface {
	Enqueue(ref messaging.Ref, timeout time.Duration)
}

// Deps carries everything the handlers call. Optional providers may be nil;
// the corresponding command then replies with its error text.
type Deps struct {
	Client        messaging.Client
	AI            Completer
	Transcriber   Transcriber
	Images        ImageGenerator
	Search        ImageSearcher
	News          NewsProvider
	History       MessageHistory
	Wizard        WizardStarter
	Cache         Cache
	AutoDelete    Registrar
	Registry      []domain.Command
	DefaultModel  string
	DeleteTimeout time.Duration
	Logger        *logrus.Entry
}

// Handlers executes matched commands. Dispatch is a switch over the closed
// CommandKind set; there is no runtime handler registration.
type Handlers struct {
	deps Deps
}

// NewHandlers wires the command handlers.
func NewHandlers(deps Deps) *Handlers {
	if deps.Logger == nil {
		deps.Logger = logging.Logger()
	}
	return &Handlers{deps: deps}
}

// Handle runs the handler for cmd. input is the resolved command text: the
// message body, or the override text a re-dispatching caller supplied.
// Recoverable failures (missing input, provider misses) are answered in-chat
// and return nil; unexpected failures bubble to the dispatch boundary.
func (h *Handlers) Handle(ctx context.Context, cmd *domain.Command, msg messaging.Message, input string) error {
	if h == nil || cmd == nil {
		return nil
	}

	switch cmd.Kind {
	case domain.KindResumo:
		return h.handleResumo(ctx, cmd, msg, input)
	case domain.KindResumoConfig:
		return h.handleResumoConfig(ctx, msg)
	case domain.KindChat:
		return h.handleChat(ctx, cmd, msg, input)
	case domain.KindAyubNews:
		return h.handleAyubNews(ctx, cmd, msg, input)
	case domain.KindSticker:
		return h.handleSticker(ctx, cmd, msg, input)
	case domain.KindDesenho:
		return h.handleDesenho(ctx, cmd, msg, input)
	case domain.KindAudio:
		return h.handleAudio(ctx, cmd, msg)
	case domain.KindCommandList:
		return h.handleCommandList(ctx, cmd, msg)
	case domain.KindCacheClear:
		return h.handleCacheClear(ctx, cmd, msg)
	case domain.KindUnknown:
		return nil
	}
	return nil
}

func (h *Handlers) handleResumo(ctx context.Context, cmd *domain.Command, msg messaging.Message, input string) error {
	h.typing(ctx, msg.Chat.ID)

	args := argsAfter(cmd, input)

	var (
		history []store.LoggedMessage
		err     error
	)
	if len(args) == 0 {
		hours := cmd.DefaultSummaryHours
		if hours <= 0 {
			hours = 3
		}
		cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
		history, err = h.deps.History.Since(ctx, msg.Chat.ID, cutoff)
	} else {
		limit, convErr := strconv.Atoi(args[0])
		if convErr != nil || limit <= 0 {
			return h.replyTransient(ctx, cmd, msg, invalidResumoLimit)
		}
		history, err = h.deps.History.Recent(ctx, msg.Chat.ID, limit)
	}
	if err != nil {
		return err
	}

	if len(history) == 0 {
		return h.replyTransient(ctx, cmd, msg, cmd.ErrorMessage(domain.ErrMsgNoMessages))
	}

	var transcript strings.Builder
	for _, m := range history {
		sender := m.Sender
		if sender == "" {
			sender = "Desconhecido"
		}
		fmt.Fprintf(&transcript, ">>%s: %s\n", sender, m.Text)
	}

	summary, err := h.deps.AI.CompleteModel(ctx, cmd.Model, fmt.Sprintf(summaryPromptTemplate, transcript.String()), summaryTemperature)
	if err != nil {
		return err
	}

	_, err = h.deps.Client.Reply(ctx, msg, summary)
	return err
}

func (h *Handlers) handleResumoConfig(ctx context.Context, msg messaging.Message) error {
	reply, err := h.deps.Wizard.Start(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		return err
	}
	_, err = h.deps.Client.Reply(ctx, msg, reply)
	return err
}

func (h *Handlers) handleChat(ctx context.Context, cmd *domain.Command, msg messaging.Message, input string) error {
	question := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input), "#"))
	if question == "" {
		return h.replyTransient(ctx, cmd, msg, cmd.ErrorMessage(domain.ErrMsgInvalidFormat))
	}

	h.typing(ctx, msg.Chat.ID)

	prompt := fmt.Sprintf(questionPromptTemplate, question)
	if msg.Quoted != nil && strings.TrimSpace(msg.Quoted.Text) != "" {
		prompt += fmt.Sprintf(quotedContextTemplate, msg.Quoted.Text)
	}

	answer, err := h.deps.AI.CompleteModel(ctx, cmd.Model, prompt, questionTemperature)
	if err != nil {
		return err
	}

	_, err = h.deps.Client.Reply(ctx, msg, answer)
	return err
}

func (h *Handlers) handleAyubNews(ctx context.Context, cmd *domain.Command, msg messaging.Message, input string) error {
	if h.deps.News == nil {
		return h.replyTransient(ctx, cmd, msg, cmd.ErrorMessage(domain.ErrMsgError))
	}

	h.typing(ctx, msg.Chat.ID)

	args := argsAfter(cmd, input)
	keywords := strings.Join(args, " ")

	var (
		articles []Article
		err      error
		header   string
	)
	switch {
	case keywords == "":
		articles, err = h.deps.News.TopHeadlines(ctx)
		header = fmt.Sprintf("Aqui estão as notícias mais relevantes de hoje, %s:\n\n", senderName(msg))
	case strings.EqualFold(keywords, "fut"):
		articles, err = h.deps.News.Football(ctx)
		header = fmt.Sprintf("Aqui estão as notícias de futebol mais relevantes de hoje, %s:\n\n", senderName(msg))
	default:
		articles, err = h.deps.News.Search(ctx, keywords)
		header = fmt.Sprintf("Aqui estão os artigos mais recentes e relevantes sobre %q, %s:\n\n", keywords, senderName(msg))
	}
	if err != nil {
		return err
	}

	if len(articles) == 0 {
		return h.replyTransient(ctx, cmd, msg, cmd.ErrorMessage(domain.ErrMsgNoArticles))
	}

	var reply strings.Builder
	reply.WriteString(header)
	for i, article := range articles {
		fmt.Fprintf(&reply, "%d. *%s*", i+1, article.Title)
		if article.Source != "" {
			fmt.Fprintf(&reply, "\nFonte: %s", article.Source)
		}
		reply.WriteString("\n")
	}

	_, err = h.deps.Client.Reply(ctx, msg, reply.String())
	return err
}

func (h *Handlers) handleSticker(ctx context.Context, cmd *domain.Command, msg messaging.Message, input string) error {
	h.typing(ctx, msg.Chat.ID)

	// An attached or quoted image becomes the sticker directly.
	source := msg
	if msg.Media != messaging.MediaImage && msg.Quoted != nil && msg.Quoted.Media == messaging.MediaImage {
		source = *msg.Quoted
	}
	if source.Media == messaging.MediaImage {
		payload, _, err := h.deps.Client.DownloadMedia(ctx, source)
		if err != nil {
			return h.replyTransient(ctx, cmd, msg, cmd.ErrorMessage(domain.ErrMsgDownload))
		}
		_, err = h.deps.Client.SendSticker(ctx, msg.Chat.ID, payload)
		return err
	}

	keyword := strings.Join(argsAfter(cmd, input), " ")
	if keyword == "" {
		return h.replyTransient(ctx, cmd, msg, cmd.ErrorMessage(domain.ErrMsgNoKeyword))
	}
	if h.deps.Search == nil {
		return h.replyTransient(ctx, cmd, msg, cmd.ErrorMessage(domain.ErrMsgError))
	}

	payload, err := h.deps.Search.Search(ctx, keyword)
	if err != nil {
		return h.replyTransient(ctx, cmd, msg, cmd.ErrorMessage(domain.ErrMsgDownload))
	}
	if len(payload) == 0 {
		return h.replyTransient(ctx, cmd, msg, cmd.ErrorMessage(domain.ErrMsgNoResults))
	}

	_, err = h.deps.Client.SendSticker(ctx, msg.Chat.ID, payload)
	return err
}

func (h *Handlers) handleDesenho(ctx context.Context, cmd *domain.Command, msg messaging.Message, input string) error {
	prompt := strings.Join(argsAfter(cmd, input), " ")
	if prompt == "" {
		return h.replyTransient(ctx, cmd, msg, cmd.ErrorMessage(domain.ErrMsgNoPrompt))
	}
	if h.deps.Images == nil {
		return h.replyTransient(ctx, cmd, msg, cmd.ErrorMessage(domain.ErrMsgError))
	}

	h.typing(ctx, msg.Chat.ID)

	payload, err := h.deps.Images.GenerateImage(ctx, prompt)
	if err != nil {
		h.deps.Logger.WithFields(logging.Fields{
			"event": "image_generation_failed",
			"error": err.Error(),
		}).Warn("could not generate image")
		return h.replyTransient(ctx, cmd, msg, cmd.ErrorMessage(domain.ErrMsgGenerate))
	}

	_, err = h.deps.Client.SendImage(ctx, msg.Chat.ID, payload, prompt)
	return err
}

func (h *Handlers) handleAudio(ctx context.Context, cmd *domain.Command, msg messaging.Message) error {
	source := msg
	if msg.Media != messaging.MediaAudio {
		if msg.Quoted == nil || msg.Quoted.Media != messaging.MediaAudio {
			return nil
		}
		source = *msg.Quoted
	}

	h.typing(ctx, msg.Chat.ID)

	payload, mimeType, err := h.deps.Client.DownloadMedia(ctx, source)
	if err != nil {
		return h.replyTransient(ctx, cmd, msg, cmd.ErrorMessage(domain.ErrMsgDownload))
	}

	transcription, err := h.deps.Transcriber.Transcribe(ctx, payload, mimeType)
	if err != nil {
		return h.replyTransient(ctx, cmd, msg, cmd.ErrorMessage(domain.ErrMsgTranscription))
	}

	_, err = h.deps.Client.Reply(ctx, msg, fmt.Sprintf("Transcrição:\n_%s_", transcription))
	return err
}

func (h *Handlers) handleCommandList(ctx context.Context, cmd *domain.Command, msg messaging.Message) error {
	var list strings.Builder
	list.WriteString("Comandos disponíveis:\n")
	for _, entry := range h.deps.Registry {
		if len(entry.Prefixes) == 0 || entry.Description == "" {
			continue
		}
		fmt.Fprintf(&list, "*%s* - %s\n", entry.Prefixes[0], entry.Description)
	}
	list.WriteString("*# [pergunta]* - Responde sua pergunta com IA\n")

	ref, err := h.deps.Client.Reply(ctx, msg, list.String())
	if err != nil {
		return err
	}
	if cmd.AutoDelete.CommandMessages {
		h.enqueueDelete(ref)
	}
	return nil
}

func (h *Handlers) handleCacheClear(ctx context.Context, cmd *domain.Command, msg messaging.Message) error {
	if h.deps.Cache == nil {
		return h.replyTransient(ctx, cmd, msg, cmd.ErrorMessage(domain.ErrMsgError))
	}

	removed, err := h.deps.Cache.Clear(ctx)
	if err != nil {
		return h.replyTransient(ctx, cmd, msg, cmd.ErrorMessage(domain.ErrMsgError))
	}

	_, err = h.deps.Client.Reply(ctx, msg, fmt.Sprintf("Cache limpo com sucesso. %d registros removidos.", removed))
	return err
}

// replyTransient sends an error reply and queues it for deletion when the
// descriptor asks for error auto-delete.
func (h *Handlers) replyTransient(ctx context.Context, cmd *domain.Command, msg messaging.Message, text string) error {
	ref, err := h.deps.Client.Reply(ctx, msg, text)
	if err != nil {
		return err
	}
	if cmd.AutoDelete.ErrorMessages {
		h.enqueueDelete(ref)
	}
	return nil
}

func (h *Handlers) enqueueDelete(ref messaging.Ref) {
	if h.deps.AutoDelete == nil {
		return
	}
	timeout := h.deps.DeleteTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	h.deps.AutoDelete.Enqueue(ref, timeout)
}

func (h *Handlers) typing(ctx context.Context, chatID int64) {
	if err := h.deps.Client.SendTyping(ctx, chatID); err != nil {
		h.deps.Logger.WithFields(logging.Fields{
			"event": "typing_failed",
			"error": err.Error(),
		}).Debug("could not send typing state")
	}
}

// argsAfter strips the descriptor prefix that matched the input and splits
// the remainder into fields. Prefixes may span multiple words ("#ayub news").
func argsAfter(cmd *domain.Command, input string) []string {
	trimmed := strings.TrimSpace(input)
	lowered := strings.ToLower(trimmed)

	for _, prefix := range cmd.Prefixes {
		p := strings.ToLower(prefix)
		if lowered == p {
			return nil
		}
		if strings.HasPrefix(lowered, p+" ") {
			return strings.Fields(trimmed[len(p):])
		}
	}

	// Resolved input without a known prefix: treat every field after the
	// first token as an argument.
	fields := strings.Fields(trimmed)
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
}

func senderName(msg messaging.Message) string {
	if name := strings.TrimSpace(msg.From.Name); name != "" {
		return name
	}
	return "Desconhecido"
}
