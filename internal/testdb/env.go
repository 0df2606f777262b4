package testdb

import "os"

// Environment variables checked for the test database URL, in order.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvTestDBURL   = "UIBATTLES_TEST_DB_URL"
)

// GetTestDatabaseURL returns the first non-empty database URL variable.
func GetTestDatabaseURL() string {
	for _, name := range []string{EnvDatabaseURL, EnvTestDBURL} {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// IsIntegrationTestEnvironment reports whether a test database is configured.
func IsIntegrationTestEnvironment() bool {
	return GetTestDatabaseURL() != ""
}

// ShouldSkipDatabaseTest reports whether database tests should be skipped.
func ShouldSkipDatabaseTest() bool {
	return !IsIntegrationTestEnvironment()
}
