// Package config reads deckledger settings from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix starts every deckledger environment variable.
const EnvPrefix = "DECKLEDGER_"

// ParseEnv fills target from the environment. Struct tags name variables
// without EnvPrefix, so `env:"DB_PATH"` reads DECKLEDGER_DB_PATH.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
