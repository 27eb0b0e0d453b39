package config

import (
	"path/filepath"

	"github.com/joho/godotenv"
)

// loadEnvFiles loads .env and .env.local from dir. Existing process
// environment variables are not overwritten, and missing files are ignored.
func loadEnvFiles(dir string) []string {
	var loaded []string
	for _, name := range []string{".env", ".env.local"} {
		p := filepath.Join(dir, name)
		if err := godotenv.Load(p); err == nil {
			loaded = append(loaded, p)
		}
	}
	return loaded
}
