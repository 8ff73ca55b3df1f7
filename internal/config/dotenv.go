package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadDotEnv walks from the working directory up to maxDepth parents and
// loads the first .env it finds. Variables already set in the environment win.
// It returns the loaded path, or "" when no file was found.
func LoadDotEnv(maxDepth int) string {
	if maxDepth <= 0 {
		maxDepth = 4
	}

	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for i := 0; i <= maxDepth; i++ {
		p := filepath.Join(dir, ".env")
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err != nil {
				return ""
			}
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}
