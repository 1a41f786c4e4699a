package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"giftcard-core/internal/domain/entity"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	TextBackendOllama = "ollama"
	TextBackendGemini = "gemini"
)

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	Text  TextConfig
	Image entity.ProviderConfig

	MinPromptWords  int
	PlaceholderFont string

	RedisAddr            string
	DailyGenerationLimit int
	CORSOrigins          string
}

// TextConfig describes the text-generation backend.
type TextConfig struct {
	Backend  string
	Model    string
	Endpoint string
	APIKey   string
	Project  string
	Location string
}

// Load reads the process configuration from the environment, optionally seeded
// from the given dotenv files. Missing files are not an error.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			log.Warn().Strs("files", envFiles).Msg("env file not found, using system environment variables")
		}
	}

	cfg := Config{
		Port:                 getString("PORT", "8000"),
		LogLevel:             getString("LOG_LEVEL", "info"),
		LogFormat:            getString("LOG_FORMAT", "json"),
		MinPromptWords:       getInt("IMAGE_MIN_PROMPT_WORDS", 20),
		PlaceholderFont:      getString("PLACEHOLDER_FONT", ""),
		RedisAddr:            getString("REDIS_ADDR", ""),
		DailyGenerationLimit: getInt("DAILY_GENERATION_LIMIT", 0),
		CORSOrigins:          getString("CORS_ORIGINS", "http://localhost:5173"),
	}

	cfg.Text = TextConfig{
		Backend:  strings.ToLower(getString("TEXT_BACKEND", TextBackendOllama)),
		Endpoint: getString("LLM_ENDPOINT", "http://127.0.0.1:11434"),
		APIKey:   getString("GEMINI_API_KEY", ""),
		Project:  getString("GOOGLE_CLOUD_PROJECT", ""),
		Location: getString("GOOGLE_CLOUD_LOCATION", ""),
	}
	switch cfg.Text.Backend {
	case TextBackendOllama:
		cfg.Text.Model = getString("LLM_MODEL", "llama3.2:1b")
	case TextBackendGemini:
		cfg.Text.Model = getString("LLM_MODEL", "gemini-2.5-flash")
	default:
		return Config{}, fmt.Errorf("unsupported TEXT_BACKEND %q", cfg.Text.Backend)
	}

	image, err := loadProvider()
	if err != nil {
		return Config{}, err
	}
	cfg.Image = image

	if cfg.MinPromptWords < 1 {
		return Config{}, fmt.Errorf("IMAGE_MIN_PROMPT_WORDS must be positive, got %d", cfg.MinPromptWords)
	}
	return cfg, nil
}

func loadProvider() (entity.ProviderConfig, error) {
	pc := entity.ProviderConfig{
		Kind:           entity.ProviderKind(strings.ToLower(getString("IMAGE_GENERATOR", string(entity.ProviderPicsum)))),
		Endpoint:       getString("IMAGE_ENDPOINT", ""),
		ModelID:        getString("IMAGE_MODEL", ""),
		RequestTimeout: time.Duration(getInt("IMAGE_TIMEOUT_SECONDS", 60)) * time.Second,
		ConnectTimeout: time.Duration(getInt("IMAGE_CONNECT_TIMEOUT_SECONDS", 30)) * time.Second,
		RetryAttempts:  getInt("IMAGE_RETRY_ATTEMPTS", 3),
		RetryDelay:     time.Duration(getInt("IMAGE_RETRY_DELAY_MS", 1000)) * time.Millisecond,
	}

	switch pc.Kind {
	case entity.ProviderPicsum, entity.ProviderLocal:
	case entity.ProviderRunware:
		pc.Credential = getString("RUNWARE_API_KEY", "")
	case entity.ProviderOpenAI:
		pc.Credential = getString("OPENAI_API_KEY", "")
	case entity.ProviderGemini:
		pc.Credential = getString("GEMINI_API_KEY", "")
	default:
		return pc, fmt.Errorf("%w: IMAGE_GENERATOR=%q", entity.ErrUnknownProvider, pc.Kind)
	}

	if pc.RetryAttempts < 1 {
		pc.RetryAttempts = 1
	}
	return pc, nil
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("ignoring non-numeric setting")
		return def
	}
	return n
}
