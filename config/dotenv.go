package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const defaultDotEnv = ".env"

// LoadDotEnv loads KEY=VALUE pairs into the process environment without
// overriding variables that are already set. An explicit path must exist;
// the default ./.env is optional.
func LoadDotEnv(path string) error {
	explicit := strings.TrimSpace(path)
	target := explicit
	if target == "" {
		target = defaultDotEnv
	}
	if _, err := os.Stat(target); err != nil {
		if errors.Is(err, os.ErrNotExist) && explicit == "" {
			return nil
		}
		return fmt.Errorf("env file %q: %w", target, err)
	}
	if err := godotenv.Load(target); err != nil {
		return fmt.Errorf("loading env file %q: %w", target, err)
	}
	return nil
}
