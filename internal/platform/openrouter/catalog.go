package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/uibattles/uibattles-api/internal/config"
	"golang.org/x/sync/singleflight"
)

// DefaultCatalogTTL is how long a fetched model list is served from memory.
const DefaultCatalogTTL = time.Hour

// ErrCatalogUnavailable is returned when the model list cannot be fetched.
var ErrCatalogUnavailable = errors.New("model catalog unavailable")

// Catalog serves OpenRouter's chat-capable models from a TTL cache. Model
// objects are passed through unchanged.
type Catalog struct {
	url        string
	httpClient *http.Client
	ttl        time.Duration
	now        func() time.Time
	logger     *slog.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	models  []json.RawMessage
	expires time.Time
}

// NewCatalog creates a Catalog. httpClient may be nil.
func NewCatalog(cfg config.LLMConfig, httpClient *http.Client, log *slog.Logger) (*Catalog, error) {
	if cfg.OpenRouterBaseURL == "" {
		return nil, fmt.Errorf("openrouter base url cannot be empty")
	}
	ttl := cfg.CatalogTTL()
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	if log == nil {
		log = slog.Default()
	}

	return &Catalog{
		url:        strings.TrimRight(cfg.OpenRouterBaseURL, "/") + "/models",
		httpClient: withAttribution(httpClient, cfg.SiteURL, cfg.SiteTitle),
		ttl:        ttl,
		now:        time.Now,
		logger:     log.With("component", "model_catalog"),
	}, nil
}

// Models returns the chat-capable models, fetching them when the cache is
// empty or stale. Concurrent misses share one upstream request.
func (c *Catalog) Models(ctx context.Context) ([]json.RawMessage, error) {
	c.mu.RLock()
	if c.models != nil && c.now().Before(c.expires) {
		models := c.models
		c.mu.RUnlock()
		return models, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do("models", func() (any, error) {
		models, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.models = models
		c.expires = c.now().Add(c.ttl)
		c.mu.Unlock()
		return models, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]json.RawMessage), nil
}

// Invalidate drops the cached list.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.models = nil
	c.expires = time.Time{}
	c.mu.Unlock()
}

type modelList struct {
	Data []json.RawMessage `json:"data"`
}

type modelArchitecture struct {
	Architecture *struct {
		Modality string `json:"modality"`
	} `json:"architecture"`
}

func (c *Catalog) fetch(ctx context.Context) ([]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: upstream returned %s", ErrCatalogUnavailable, resp.Status)
	}

	var list modelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("%w: failed to decode model list: %v", ErrCatalogUnavailable, err)
	}

	models := make([]json.RawMessage, 0, len(list.Data))
	for _, raw := range list.Data {
		if IsChatModel(raw) {
			models = append(models, raw)
		}
	}

	c.logger.InfoContext(ctx, "model catalog refreshed",
		"total", len(list.Data),
		"chat_models", len(models))

	return models, nil
}

// IsChatModel reports whether a model object accepts text: its modality
// mentions text or is missing.
func IsChatModel(raw json.RawMessage) bool {
	var m modelArchitecture
	if err := json.Unmarshal(raw, &m); err != nil {
		return false
	}
	if m.Architecture == nil {
		return true
	}
	modality := strings.ToLower(m.Architecture.Modality)
	return modality == "" || strings.Contains(modality, "text")
}
