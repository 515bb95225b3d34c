package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type OAuthProvider struct {
	Key         string
	Secret      string
	CallbackURL string
}

type Config struct {
	DatabasePath   string
	MigrationsURL  string
	Port           int
	SessionTTL     time.Duration
	AllowedOrigins []string
	// EditorEmails are granted edit rights when they log in through a provider.
	EditorEmails   []string

	Discord OAuthProvider
	Google  OAuthProvider
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Load reads the configuration from the environment, loading a .env file first if there is one.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("PORT must be between 1 and 65535, got %d", port)
	}

	sessionTTL, err := time.ParseDuration(getEnv("SESSION_LIFETIME", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_LIFETIME environment variable: %w", err)
	}

	var editors []string
	for _, e := range splitList(os.Getenv("EDITOR_EMAILS")) {
		editors = append(editors, strings.ToLower(e))
	}

	return &Config{
		DatabasePath:   getEnv("DATABASE_PATH", "bracket_resolver.db"),
		MigrationsURL:  getEnv("MIGRATIONS_URL", "file://migrations"),
		Port:           port,
		SessionTTL:     sessionTTL,
		AllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		EditorEmails:   editors,
		Discord: OAuthProvider{
			Key:         os.Getenv("DISCORD_KEY"),
			Secret:      os.Getenv("DISCORD_SECRET"),
			CallbackURL: os.Getenv("DISCORD_CALLBACK_URL"),
		},
		Google: OAuthProvider{
			Key:         os.Getenv("GOOGLE_KEY"),
			Secret:      os.Getenv("GOOGLE_SECRET"),
			CallbackURL: os.Getenv("GOOGLE_CALLBACK_URL"),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
