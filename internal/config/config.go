package config

import (
	"os"
	"strconv"
)

// Config holds all application configuration, per SPEC_FULL.md §6.
type Config struct {
	Port string

	DatabaseURL string // optional MySQL DSN for the id-counter bootstrap table
	MongoURI    string

	HotWindowDays      int
	ProcessOwnMessages bool
	SkipGroupMessages  bool

	AITierMode        string // auto | force-T1 | force-T2 | force-T3
	AICooldownBaseSec int
	AICacheTTLSec     int
	AICacheMaxSize    int

	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	EmbeddingBaseURL string
	EmbeddingAPIKey  string
	EmbeddingModel   string

	BackupRetentionDays int
	DebugErrors         bool

	EmbeddingDimension int

	DataDir            string
	PopupTemplatesPath string
	RateLimitGlobalRPS float64
	RateLimitPerIPRPS  float64
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "3000"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		MongoURI:    getEnv("MONGODB_URI", ""),

		HotWindowDays:      getIntEnv("HOT_WINDOW_DAYS", 90),
		ProcessOwnMessages: getBoolEnv("PROCESS_OWN_MESSAGES", true),
		SkipGroupMessages:  getBoolEnv("SKIP_GROUP_MESSAGES", false),

		AITierMode:        getEnv("AI_TIER_MODE", "auto"),
		AICooldownBaseSec: getIntEnv("AI_COOLDOWN_BASE_SEC", 30),
		AICacheTTLSec:     getIntEnv("AI_CACHE_TTL_SEC", 3600),
		AICacheMaxSize:    getIntEnv("AI_CACHE_MAX_SIZE", 500),

		LLMBaseURL: getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:  getEnv("LLM_API_KEY", ""),
		LLMModel:   getEnv("LLM_MODEL", "gpt-4o-mini"),

		EmbeddingBaseURL: getEnv("EMBEDDING_BASE_URL", "https://api.openai.com/v1"),
		EmbeddingAPIKey:  getEnv("EMBEDDING_API_KEY", ""),
		EmbeddingModel:   getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),

		BackupRetentionDays: getIntEnv("BACKUP_RETENTION_DAYS", 7),
		DebugErrors:         getBoolEnv("DEBUG_ERRORS", false),

		EmbeddingDimension: getIntEnv("EMBEDDING_DIMENSION", 768),

		DataDir:            getEnv("DATA_DIR", "data"),
		PopupTemplatesPath: getEnv("POPUP_TEMPLATES_PATH", "config/popup-templates.yaml"),
		RateLimitGlobalRPS: getFloatEnv("RATE_LIMIT_GLOBAL_RPS", 50),
		RateLimitPerIPRPS:  getFloatEnv("RATE_LIMIT_PER_IP_RPS", 10),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
