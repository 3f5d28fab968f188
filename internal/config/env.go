// Package config holds the small amount of environment handling the commands
// share. Everything else is plain flags.
package config

import (
	"fmt"
	"os"
	"strings"
)

// APIKeyEnv is the environment variable holding the Dune API key.
const APIKeyEnv = "DUNE_API_KEY"

// LoadEnvFile loads environment variables from .env file if it exists.
// Existing environment variables are not overridden.
func LoadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// APIKey returns the Dune API key from the environment.
func APIKey() (string, error) {
	key := os.Getenv(APIKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s not set in environment or .env file", APIKeyEnv)
	}
	return key, nil
}
