// Package gemini provides a generation.Backend that calls Google's Gemini API
// through the google.golang.org/genai client.
//
// This package is an infrastructure adapter: it translates a model request
// into a GenerateContent call and maps the API's failures to the error types
// of the generation package, so that the provider's own message reaches the
// item.
//
// Gemini models are addressed as "google-ai/<model>"; the prefix is stripped
// before the call. Unlike the OpenRouter backend, the server's own key is used
// and the caller's credentials are ignored.
package gemini
