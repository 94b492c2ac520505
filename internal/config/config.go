package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port           string
	Environment    string   // ENV: production, development, etc.
	AllowedOrigins []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL

	// Data files
	KnowledgeBasePath    string
	ModerationDBPath     string
	ModerationConfigPath string
	BadWordsPath         string

	// External text generation / embeddings (optional; fallback works without)
	OpenAIAPIKey   string
	ChatModel      string
	EmbeddingModel string
	LLMTimeout     time.Duration

	// School context fed into the chat prompt
	SchoolName  string
	SchoolType  string
	SchoolFocus string

	// Argon2id hash gating the admin API; empty means open (development)
	AdminPasswordHash string

	// Transport-level per-IP rate limit (moderation has its own hourly window)
	RateLimitRPS   float64
	RateLimitBurst int
}

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))

	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		if u := strings.TrimSpace(getEnv("FRONTEND_URL", "")); u != "" {
			allowedOrigins = append(allowedOrigins, u)
		}
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    env,
		AllowedOrigins: allowedOrigins,

		KnowledgeBasePath:    getEnv("KNOWLEDGE_BASE_PATH", "knowledge_base.json"),
		ModerationDBPath:     getEnv("MODERATION_DB_PATH", "moderation.db"),
		ModerationConfigPath: getEnv("MODERATION_CONFIG_PATH", "moderation_config.json"),
		BadWordsPath:         getEnv("BAD_WORDS_PATH", "bad_words.json"),

		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		ChatModel:      getEnv("CHAT_MODEL", "gpt-3.5-turbo"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		LLMTimeout:     time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 15)) * time.Second,

		SchoolName:  getEnv("SCHOOL_NAME", "Educational Institution"),
		SchoolType:  getEnv("SCHOOL_TYPE", "School/University"),
		SchoolFocus: getEnv("SCHOOL_FOCUS", "General education"),

		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 1),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),
	}
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
