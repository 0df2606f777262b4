package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/uibattles/uibattles-api/internal/config"
	"github.com/uibattles/uibattles-api/internal/generation"
)

// Client is a generation.Backend for models served by OpenRouter.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client. httpClient may be nil; its transport is wrapped
// so that every request carries the attribution headers OpenRouter expects.
func NewClient(cfg config.LLMConfig, httpClient *http.Client, log *slog.Logger) (*Client, error) {
	if cfg.OpenRouterBaseURL == "" {
		return nil, fmt.Errorf("%w: openrouter base url cannot be empty", generation.ErrInvalidConfig)
	}
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.OpenRouterBaseURL, "/"),
		httpClient: withAttribution(httpClient, cfg.SiteURL, cfg.SiteTitle),
		logger:     log.With("component", "openrouter_client"),
	}, nil
}

// Generate implements generation.Backend. The key comes from the request
// credentials and is used for this call only.
func (c *Client) Generate(ctx context.Context, req generation.Request) (string, error) {
	if req.Credentials.APIKey == "" {
		return "", generation.ErrMissingAPIKey
	}

	cfg := openai.DefaultConfig(req.Credentials.APIKey)
	cfg.BaseURL = c.baseURL
	cfg.HTTPClient = c.httpClient
	client := openai.NewClientWithConfig(cfg)

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserPrompt,
	})

	c.logger.DebugContext(ctx, "calling model",
		"model", req.ModelID,
		"prompt_length", len(req.UserPrompt))

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    req.ModelID,
		Messages: messages,
	})
	if err != nil {
		return "", toCallError(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", generation.ErrInvalidResponse)
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return "", generation.ErrContentBlocked
	}
	if choice.Message.Content == "" {
		return "", fmt.Errorf("%w: empty content", generation.ErrInvalidResponse)
	}

	c.logger.DebugContext(ctx, "model call finished",
		"model", req.ModelID,
		"output_length", len(choice.Message.Content))

	return choice.Message.Content, nil
}

// toCallError maps go-openai failures to *generation.APICallError so that
// the provider's own message reaches the item. Context errors pass through.
func toCallError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		body, _ := json.Marshal(map[string]any{"error": apiErr})
		return &generation.APICallError{
			StatusCode:   apiErr.HTTPStatusCode,
			ResponseBody: string(body),
			Message:      apiErr.Message,
			Err:          err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &generation.APICallError{
			StatusCode:   reqErr.HTTPStatusCode,
			ResponseBody: string(reqErr.Body),
			Message:      reqErr.Error(),
			Err:          err,
		}
	}

	return &generation.APICallError{Message: err.Error(), Err: err}
}

type attributionTransport struct {
	base    http.RoundTripper
	referer string
	title   string
}

func (t *attributionTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	if t.referer != "" {
		r.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		r.Header.Set("X-Title", t.title)
	}
	return t.base.RoundTrip(r)
}

func withAttribution(hc *http.Client, referer, title string) *http.Client {
	if hc == nil {
		hc = &http.Client{}
	}
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *hc
	wrapped.Transport = &attributionTransport{base: base, referer: referer, title: title}
	return &wrapped
}

var _ generation.Backend = (*Client)(nil)
