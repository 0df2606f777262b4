// Package store declares the persistence contracts for generations, their
// items, gallery reads and likes, together with the sentinel errors every
// implementation returns.
//
// Each operation is a single statement except CreateGeneration and
// ToggleLike, which run inside RunInTransaction.
package store
