package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// envFileVar points startup at one explicit dotenv file instead of the
// default probe. Deployments use it to keep per-environment files out of
// the repo checkout.
const envFileVar = "COMPASS_ENV_FILE"

// LoadEnvFiles seeds the process environment from dotenv files before the
// CLI and config loader read it. With COMPASS_ENV_FILE set, that file must
// exist and load; otherwise .env.local and .env are tried and may be
// absent. Values already present in the environment always win.
func LoadEnvFiles() error {
	if path := os.Getenv(envFileVar); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s=%s: %w", envFileVar, path, err)
		}
		return nil
	}

	for _, file := range []string{".env.local", ".env"} {
		err := godotenv.Load(file)
		if err == nil || os.IsNotExist(err) {
			continue
		}
		return fmt.Errorf("failed to load %s: %w", file, err)
	}
	return nil
}
