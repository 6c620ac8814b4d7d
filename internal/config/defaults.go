package config

import (
	"os"
	"path/filepath"

	"speech-orchestrator/internal/domain"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		ModelsPath: filepath.Join(homeDir, ".speech-orchestrator", "models"),
		OutputDir:  filepath.Join(homeDir, "Documents", "Transcripts"),
	}
}
