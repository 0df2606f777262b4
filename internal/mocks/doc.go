// Package mocks provides shared test doubles.
//
// MemoryStore keeps generations, items, likes and views in maps guarded by a
// mutex and satisfies every store interface the services and the executor
// depend on, so handler, service and wiring tests can run the full request
// path without a database:
//
//	s := mocks.NewMemoryStore()
//	svc, err := service.NewGalleryService(s, s, s, logger)
//
// Tests that need to assert on a single call should prefer inline func-field
// mocks in their own package.
package mocks
