// Package generation runs a generation: it fans the prompt out to every
// pending item in fixed-size batches, calls each model backend under a
// timeout, classifies failures into user-facing messages and persists every
// state change through the store.
//
// The concrete model backends (OpenRouter, Google AI) live under
// internal/platform and satisfy the Backend interface defined here.
package generation
