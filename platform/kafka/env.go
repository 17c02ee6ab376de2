package kafka

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// LoadEnv fills cfg from the environment using its env tags.
func LoadEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse kafka env: %w", err)
	}
	return nil
}
