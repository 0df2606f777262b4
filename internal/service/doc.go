// Package service holds the application operations behind the HTTP API:
// submitting, aborting and retrying generations, reading their status, and
// the public gallery with its like and view counters.
//
// Services depend on the store interfaces and on the background runner, never
// on a concrete database. Expected failures are reported as the sentinel
// errors in errors.go; anything else is wrapped in a GenerationServiceError.
package service
