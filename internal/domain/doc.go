// Package domain contains the core entities of the battle service: a
// Generation (one prompt fanned out to several models), its GenerationItems
// (one per model) and the gallery views built from them. The status rules
// that the executor, the retry path and the gallery share live here so that
// every layer agrees on what "terminal" and "retryable" mean.
package domain
