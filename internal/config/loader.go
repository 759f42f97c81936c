package config

import "github.com/joho/godotenv"

// LoadFromEnv mirrors the teacher's startup sequence: best-effort load a
// .env file into the process environment (missing file is not an error),
// then Load the YAML config with env overrides applied on top.
func LoadFromEnv(yamlPath, dotenvPath string) (Config, error) {
	if dotenvPath != "" {
		_ = godotenv.Load(dotenvPath)
	} else {
		_ = godotenv.Load()
	}
	return Load(yamlPath)
}
