// Package config собирает настройки сервиса: значения по умолчанию,
// затем YAML-файл из PROPODOCS_CONFIG, затем переменные окружения.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileEnv называет переменную окружения с путём к YAML-файлу настроек
const FileEnv = "PROPODOCS_CONFIG"

type Config struct {
	Port          string          `yaml:"port"`
	DatabaseURL   string          `yaml:"database_url"`
	PublicBaseURL string          `yaml:"public_base_url"`
	Log           LogConfig       `yaml:"log"`
	Auth          AuthConfig      `yaml:"auth"`
	AI            AIConfig        `yaml:"ai"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
	RedisURL      string          `yaml:"redis_url"`
	Email         EmailConfig     `yaml:"email"`
	SMS           SMSConfig       `yaml:"sms"`
	Telegram      TelegramConfig  `yaml:"telegram"`
	Stripe        StripeConfig    `yaml:"stripe"`
	S3            S3Config        `yaml:"s3"`
	PDF           PDFConfig       `yaml:"pdf"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type AIConfig struct {
	Order      []string       `yaml:"order"` // порядок опроса провайдеров
	OpenAI     ProviderConfig `yaml:"openai"`
	Anthropic  ProviderConfig `yaml:"anthropic"`
	Gemini     ProviderConfig `yaml:"gemini"`
	Categories []string       `yaml:"categories"` // допустимые категории дополнений
	Timeout    time.Duration  `yaml:"timeout"`
}

type RateLimitConfig struct {
	RPS           float64       `yaml:"rps"`
	Burst         int           `yaml:"burst"`
	MaxEntries    int           `yaml:"max_entries"`
	IdleTTL       time.Duration `yaml:"idle_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type EmailConfig struct {
	APIKey   string `yaml:"api_key"`
	From     string `yaml:"from"`
	Endpoint string `yaml:"endpoint"`
}

type SMSConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	From       string `yaml:"from"`
}

type TelegramConfig struct {
	AppID    int    `yaml:"app_id"`
	AppHash  string `yaml:"app_hash"`
	BotToken string `yaml:"bot_token"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type S3Config struct {
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
	Endpoint      string `yaml:"endpoint"`
	Prefix        string `yaml:"prefix"`
	PublicBaseURL string `yaml:"public_base_url"`
}

type PDFConfig struct {
	RendererURL string `yaml:"renderer_url"`
}

// Default возвращает настройки для локального запуска
func Default() Config {
	return Config{
		Port:          "8080",
		PublicBaseURL: "http://localhost:3000",
		Log:           LogConfig{Level: "info", Format: "json"},
		AI: AIConfig{
			Order:     []string{"openai", "anthropic", "gemini"},
			OpenAI:    ProviderConfig{Model: "gpt-4o-mini"},
			Anthropic: ProviderConfig{Model: "claude-3-5-sonnet-latest"},
			Gemini:    ProviderConfig{Model: "gemini-1.5-flash"},
			Timeout:   60 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RPS:           10,
			Burst:         20,
			MaxEntries:    10000,
			IdleTTL:       10 * time.Minute,
			SweepInterval: time.Minute,
		},
		S3:  S3Config{Region: "us-east-1", Prefix: "uploads/"},
		PDF: PDFConfig{RendererURL: "http://localhost:3001"},
	}
}

// Load читает настройки. Ошибки разбора файла и переменных возвращаются,
// обязательные поля проверяет Validate.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

// applyEnv переопределяет поля заданными переменными окружения
func (c *Config) applyEnv(lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.str("PORT", &c.Port)
	e.str("DATABASE_URL", &c.DatabaseURL)
	e.str("PUBLIC_BASE_URL", &c.PublicBaseURL)
	e.str("LOG_LEVEL", &c.Log.Level)
	e.str("LOG_FORMAT", &c.Log.Format)
	e.str("JWT_SECRET", &c.Auth.JWTSecret)

	e.list("AI_PROVIDER_ORDER", &c.AI.Order)
	e.list("ADDON_CATEGORIES", &c.AI.Categories)
	e.duration("AI_TIMEOUT", &c.AI.Timeout)
	e.str("OPENAI_API_KEY", &c.AI.OpenAI.APIKey)
	e.str("OPENAI_MODEL", &c.AI.OpenAI.Model)
	e.str("OPENAI_BASE_URL", &c.AI.OpenAI.BaseURL)
	e.str("ANTHROPIC_API_KEY", &c.AI.Anthropic.APIKey)
	e.str("ANTHROPIC_MODEL", &c.AI.Anthropic.Model)
	e.str("ANTHROPIC_BASE_URL", &c.AI.Anthropic.BaseURL)
	e.str("GEMINI_API_KEY", &c.AI.Gemini.APIKey)
	e.str("GEMINI_MODEL", &c.AI.Gemini.Model)
	e.str("GEMINI_BASE_URL", &c.AI.Gemini.BaseURL)

	e.number("RATE_LIMIT_RPS", &c.RateLimit.RPS)
	e.integer("RATE_LIMIT_BURST", &c.RateLimit.Burst)
	e.integer("RATE_LIMIT_MAX_ENTRIES", &c.RateLimit.MaxEntries)
	e.duration("RATE_LIMIT_IDLE_TTL", &c.RateLimit.IdleTTL)
	e.duration("RATE_LIMIT_SWEEP_INTERVAL", &c.RateLimit.SweepInterval)
	e.str("REDIS_URL", &c.RedisURL)

	e.str("EMAIL_API_KEY", &c.Email.APIKey)
	e.str("EMAIL_FROM", &c.Email.From)
	e.str("EMAIL_ENDPOINT", &c.Email.Endpoint)
	e.str("TWILIO_ACCOUNT_SID", &c.SMS.AccountSID)
	e.str("TWILIO_AUTH_TOKEN", &c.SMS.AuthToken)
	e.str("TWILIO_FROM", &c.SMS.From)
	e.integer("TELEGRAM_APP_ID", &c.Telegram.AppID)
	e.str("TELEGRAM_APP_HASH", &c.Telegram.AppHash)
	e.str("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)

	e.str("STRIPE_SECRET_KEY", &c.Stripe.SecretKey)
	e.str("STRIPE_WEBHOOK_SECRET", &c.Stripe.WebhookSecret)
	e.str("S3_BUCKET", &c.S3.Bucket)
	e.str("S3_REGION", &c.S3.Region)
	e.str("S3_ENDPOINT", &c.S3.Endpoint)
	e.str("S3_PREFIX", &c.S3.Prefix)
	e.str("S3_PUBLIC_BASE_URL", &c.S3.PublicBaseURL)
	e.str("PDF_RENDERER_URL", &c.PDF.RendererURL)

	return errors.Join(e.errs...)
}

// Validate проверяет обязательные и взаимоисключающие значения
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	for _, name := range c.AI.Order {
		switch name {
		case "openai", "anthropic", "gemini":
		default:
			errs = append(errs, fmt.Errorf("unknown AI provider %q in AI_PROVIDER_ORDER", name))
		}
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("rate limit rps and burst must be positive"))
	}
	if c.RateLimit.MaxEntries <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX_ENTRIES must be positive"))
	}
	return errors.Join(errs...)
}

// envReader накапливает ошибки разбора, чтобы сообщить обо всех сразу
type envReader struct {
	lookup lookupFunc
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func (e *envReader) number(key string, dst *float64) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = f
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}

func (e *envReader) list(key string, dst *[]string) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}
