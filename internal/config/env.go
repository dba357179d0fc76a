package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	serrors "git.home.luguber.info/inful/spark/internal/errors"
)

// envFiles are tried in order; later files do not override earlier ones and
// none override variables already present in the process environment.
var envFiles = []string{".env", ".env.local"}

// loadEnvFile loads .env files next to the configuration file, if present.
func loadEnvFile(dir string) error {
	for _, name := range envFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return serrors.WrapError(err, serrors.CategoryConfig, "failed to load env file").
				Fatal().
				WithContext("path", path).
				Build()
		}
	}
	return nil
}
