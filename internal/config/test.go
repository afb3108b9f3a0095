package config

import "github.com/caarlos0/env/v11"

// TestConfig carries the connection string integration tests use to
// provision throwaway schemas. Tests skip when it is unset.
type TestConfig struct {
	PostgresDSN string `env:"TEST_POSTGRES_DSN,required,notEmpty"`
}

func LoadTest() (TestConfig, error) {
	var cfg TestConfig
	err := env.Parse(&cfg)
	return cfg, err
}
