package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/uibattles/uibattles-api/internal/generation"
	"google.golang.org/genai"
)

// ModelPrefix marks model IDs served by this backend.
const ModelPrefix = "google-ai/"

// contentGenerator is the part of *genai.Models the backend uses.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Backend implements generation.Backend using the Gemini API.
type Backend struct {
	models contentGenerator
	logger *slog.Logger
}

// NewBackend creates a Backend authenticated with the server's API key.
func NewBackend(ctx context.Context, apiKey string, log *slog.Logger) (*Backend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return newBackend(client.Models, log), nil
}

func newBackend(models contentGenerator, log *slog.Logger) *Backend {
	if log == nil {
		log = slog.Default()
	}
	return &Backend{
		models: models,
		logger: log.With("component", "gemini_backend"),
	}
}

// Generate implements generation.Backend.
func (b *Backend) Generate(ctx context.Context, req generation.Request) (string, error) {
	if req.UserPrompt == "" {
		return "", ErrEmptyPrompt
	}
	model := strings.TrimPrefix(req.ModelID, ModelPrefix)
	if model == "" {
		return "", fmt.Errorf("%w: %s", generation.ErrUnsupportedModel, req.ModelID)
	}

	var cfg *genai.GenerateContentConfig
	if req.SystemPrompt != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: req.SystemPrompt}},
			},
		}
	}
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: req.UserPrompt}},
	}}

	b.logger.DebugContext(ctx, "calling Gemini",
		"model", model,
		"prompt_length", len(req.UserPrompt))

	resp, err := b.models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", toCallError(err)
	}

	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	switch {
	case resp == nil:
		return "", fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	case resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "":
		return "", fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	case len(resp.Candidates) == 0:
		return "", fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	case resp.Candidates[0].FinishReason == genai.FinishReasonSafety:
		return "", fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	case resp.Candidates[0].Content == nil:
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: empty text in response", generation.ErrInvalidResponse)
	}
	return sb.String(), nil
}

// toCallError maps genai API errors to *generation.APICallError with a body
// shaped like other providers' error bodies.
func toCallError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		body, _ := json.Marshal(map[string]any{
			"error": map[string]any{
				"code":    apiErr.Code,
				"message": apiErr.Message,
				"status":  apiErr.Status,
			},
		})
		return &generation.APICallError{
			StatusCode:   apiErr.Code,
			ResponseBody: string(body),
			Message:      apiErr.Message,
			Err:          err,
		}
	}

	return &generation.APICallError{Message: err.Error(), Err: err}
}

var _ generation.Backend = (*Backend)(nil)
