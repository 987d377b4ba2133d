package config

// TestStoreConfig holds the configuration used by Postgres-backed
// integration tests, loaded straight from the environment (no TESTORCH_
// prefix defaults, since there is no safe default DSN for a real database).
type TestStoreConfig struct {
	DSN string `env:"TESTORCH_TEST_STORE_DSN"`
}
