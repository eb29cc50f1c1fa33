// Package config reads service settings from the environment, after
// loading an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"clinical-decision-agent/internal/agent"
)

const DefaultModel = "llama-3.3-70b-versatile"

type Config struct {
	Port     string
	LogLevel string

	DatabaseURL    string
	MigrationsPath string
	PatientsFile   string
	RulesFile      string

	CompletionAPIKey  string
	CompletionBaseURL string
	ResearchModel     string
	SafetyModel       string
	CallTimeout       time.Duration

	PubMedBaseURL string
	RxNavBaseURL  string
	EnableRxNav   bool

	TelegramToken  string
	DoctorChatID   int64
	ReportFontPath string
}

// Load reads the configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		MigrationsPath:    getEnv("MIGRATIONS_PATH", "file://migrations"),
		PatientsFile:      getEnv("PATIENTS_FILE", "data/patients.json"),
		RulesFile:         os.Getenv("RULES_FILE"),
		CompletionAPIKey:  os.Getenv("GROQ_API_KEY"),
		CompletionBaseURL: getEnv("COMPLETION_BASE_URL", agent.DefaultCompletionBaseURL),
		ResearchModel:     getEnv("RESEARCH_MODEL", DefaultModel),
		SafetyModel:       getEnv("SAFETY_MODEL", DefaultModel),
		PubMedBaseURL:     getEnv("PUBMED_BASE_URL", agent.DefaultPubMedBaseURL),
		RxNavBaseURL:      getEnv("RXNAV_BASE_URL", agent.DefaultRxNavBaseURL),
		EnableRxNav:       strings.EqualFold(getEnv("ENABLE_RXNAV", "false"), "true"),
		TelegramToken:     os.Getenv("TELEGRAM_BOT_TOKEN"),
		ReportFontPath:    os.Getenv("REPORT_FONT_PATH"),
	}

	timeout, err := time.ParseDuration(getEnv("CALL_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid CALL_TIMEOUT: %w", err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("CALL_TIMEOUT must be positive, got %s", timeout)
	}
	cfg.CallTimeout = timeout

	if raw := os.Getenv("DOCTOR_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid DOCTOR_CHAT_ID: %w", err)
		}
		cfg.DoctorChatID = id
	}

	return cfg, nil
}

// AlertsEnabled reports whether clinician alerts can be delivered.
func (c *Config) AlertsEnabled() bool {
	return c.TelegramToken != "" && c.DoctorChatID != 0
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
