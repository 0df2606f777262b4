// Package openrouter talks to the OpenRouter API. Client is the default model
// backend: it sends OpenAI-compatible chat completions authenticated with the
// caller's own key. Catalog serves the cached list of chat-capable models.
package openrouter
