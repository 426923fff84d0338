package env

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type AppEnv string

const (
	EnvDevelopment AppEnv = "development"
	EnvProduction  AppEnv = "production"
)

// Init loads variables from the given .env files (default ".env").
// Variables already set in the process environment win.
func Init(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		slog.Info("no .env file loaded", "error", err)
		return
	}
	slog.Info("environment variables loaded from .env")
}

func GetString(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func GetInt(key string, fallback int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("env must be an integer, using fallback", "key", key, "value", val, "fallback", fallback)
		return fallback
	}
	return i
}

func GetBool(key string, fallback bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}

	b, err := strconv.ParseBool(val)
	if err != nil {
		slog.Warn("env must be a boolean, using fallback", "key", key, "value", val, "fallback", fallback)
		return fallback
	}
	return b
}
