package config

import (
	"time"

	"github.com/cfcgs/cfcgs-tracker-backend/pkg/config"
)

// Config stores environment configuration for the tracker chatbot service.
type Config struct {
	Port                    string
	DatabaseURL             string
	LLMProvider             string
	LLMModel                string
	LLMAPIKey               string
	LLMAPIURL               string
	LLMMaxTokens            int
	DefaultPageSize         int
	MaxPageSize             int
	MaxHistoryTurns         int
	SessionTTL              time.Duration
	SessionCap              int
	DefaultSessionFreshness time.Duration
	QueryTimeout            time.Duration
}

// LoadConfig loads the tracker configuration from environment variables.
func LoadConfig() Config {
	return Config{
		Port:                    config.GetEnv("PORT", "18030"),
		DatabaseURL:             config.RequireEnv("DATABASE_URL"),
		LLMProvider:             config.GetEnv("LLM_PROVIDER", "groq"),
		LLMModel:                config.GetEnv("LLM_MODEL", "llama-3.1-8b-instant"),
		LLMAPIKey:               config.GetEnv("LLM_API_KEY", ""),
		LLMAPIURL:               config.GetEnv("LLM_API_URL", ""),
		LLMMaxTokens:            config.GetEnvInt("LLM_MAX_TOKENS", 4096),
		DefaultPageSize:         config.GetEnvInt("CHAT_DEFAULT_PAGE_SIZE", 10),
		MaxPageSize:             config.GetEnvInt("CHAT_MAX_PAGE_SIZE", 50),
		MaxHistoryTurns:         config.GetEnvInt("CHAT_MAX_HISTORY_TURNS", 10),
		SessionTTL:              config.GetEnvDuration("CHAT_SESSION_TTL", time.Hour),
		SessionCap:              config.GetEnvInt("CHAT_SESSION_CAP", 1024),
		DefaultSessionFreshness: config.GetEnvDuration("CHAT_DEFAULT_SESSION_FRESHNESS", 10*time.Minute),
		QueryTimeout:            config.GetEnvDuration("CHAT_QUERY_TIMEOUT", 30*time.Second),
	}
}
