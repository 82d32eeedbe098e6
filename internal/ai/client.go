// Package ai wraps the Gemini API behind the small surface the bot needs:
// text completion, audio transcription, and image generation.
package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"tg_resumo_bot/internal/domain"
	"tg_resumo_bot/internal/logging"
)

// DefaultImageModel renders the #desenho command's drawings.
const DefaultImageModel = "imagen-3.0-generate-002"

var (
	errEmptyCompletion = errors.New("model returned an empty completion")
	errEmptyImage      = errors.New("model returned no image")
)

// modelAPI is the slice of genai.Models the client calls. Tests substitute a
// fake; production uses the real client's Models service.
type modelAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateImages(ctx context.Context, model string, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// Client talks to the Gemini API. The zero value is not usable; construct
// with New.
type Client struct {
	models     modelAPI
	model      string
	imageModel string
	logger     *logrus.Entry
}

// New connects to the Gemini API with the given key and default text model.
func New(ctx context.Context, apiKey, model string, logger *logrus.Entry) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &domain.CompletionError{Err: err}
	}
	if logger == nil {
		logger = logging.Logger()
	}
	return &Client{
		models:     genaiClient.Models,
		model:      model,
		imageModel: DefaultImageModel,
		logger:     logger,
	}, nil
}

// Model returns the default text model name.
func (c *Client) Model() string { return c.model }

// Complete sends prompt to the default model.
func (c *Client) Complete(ctx context.Context, prompt string, temperature float32) (string, error) {
	return c.CompleteModel(ctx, c.model, prompt, temperature)
}

// CompleteModel sends prompt to a specific model. Commands may carry a model
// override in their descriptor.
func (c *Client) CompleteModel(ctx context.Context, model, prompt string, temperature float32) (string, error) {
	if model == "" {
		model = c.model
	}

	resp, err := c.models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	})
	if err != nil {
		return "", &domain.CompletionError{Err: err}
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &domain.CompletionError{Err: errEmptyCompletion}
	}

	c.logger.WithFields(logging.Fields{
		"event": "completion_done",
		"model": model,
	}).Debug("completion returned")
	return text, nil
}

// Transcribe converts an audio payload to text.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", &domain.TranscriptionError{Err: errors.New("empty audio payload")}
	}

	content := genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText("Transcreva este áudio. Responda apenas com a transcrição."),
		genai.NewPartFromBytes(audio, mimeType),
	}, genai.RoleUser)

	resp, err := c.models.GenerateContent(ctx, c.model, []*genai.Content{content}, nil)
	if err != nil {
		return "", &domain.TranscriptionError{Err: err}
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &domain.TranscriptionError{Err: errors.New("model returned an empty transcription")}
	}
	return text, nil
}

// GenerateImage renders prompt as a single image and returns its bytes.
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := c.models.GenerateImages(ctx, c.imageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	})
	if err != nil {
		return nil, &domain.CompletionError{Err: err}
	}

	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil || len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
		return nil, &domain.CompletionError{Err: errEmptyImage}
	}
	return resp.GeneratedImages[0].Image.ImageBytes, nil
}
