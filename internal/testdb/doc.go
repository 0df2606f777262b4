// Package testdb provides utilities for tests that need a real PostgreSQL
// database. Tests call GetTestDBWithT, which skips when no database is
// configured, applies the embedded goose migrations once per process and
// empties the tables when the test finishes.
package testdb
