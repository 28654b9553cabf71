package config

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
)

var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads the first readable .env file. Existing process
// environment variables are never overwritten.
func loadEnvFiles() {
	for _, path := range envFiles {
		err := godotenv.Load(path)
		if err == nil {
			slog.Debug("Loaded environment file", slog.String("path", path))
			return
		}
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Failed to load environment file", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
}
