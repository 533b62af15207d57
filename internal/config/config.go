// Package config загружает конфигурацию сервисов docconv.
//
// Порядок применения:
//
//	значения по умолчанию → YAML-файл (DOCCONV_CONFIG) → .env → переменные окружения → Validate
//
// Переменные окружения всегда имеют приоритет над файлом.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath — переменная с путём к YAML-файлу конфигурации.
const EnvConfigPath = "DOCCONV_CONFIG"

// ErrInvalidConfig — конфигурация не прошла валидацию.
var ErrInvalidConfig = errors.New("invalid config")

// Config — конфигурация docconv.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Vendor  VendorConfig  `yaml:"vendor"`
	Poll    PollConfig    `yaml:"poll"`
	Storage StorageConfig `yaml:"storage"`
	Janitor JanitorConfig `yaml:"janitor"`
}

// ServerConfig — HTTP-сервер docconv-api.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	TempDir         string        `yaml:"temp_dir"`
	MaxUploadMB     int64         `yaml:"max_upload_mb"`
	CORSAllowOrigin string        `yaml:"cors_allow_origin"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AuditPort       int           `yaml:"audit_port"`
}

// VendorConfig — доступ к API вендора.
type VendorConfig struct {
	BaseURL   string        `yaml:"base_url"`
	PublicKey string        `yaml:"public_key"`
	SecretKey string        `yaml:"secret_key"`
	APIKey    string        `yaml:"api_key"`
	Operation string        `yaml:"operation"`
	Timeout   time.Duration `yaml:"timeout"`
}

// PollConfig — опрос статуса задачи.
type PollConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// StorageConfig — внешние хранилища. Пустые значения отключают компонент.
type StorageConfig struct {
	DatabaseURL string `yaml:"database_url"`
	RabbitMQURL string `yaml:"rabbitmq_url"`
}

// JanitorConfig — очистка временной директории.
type JanitorConfig struct {
	Schedule string        `yaml:"schedule"`
	MaxAge   time.Duration `yaml:"max_age"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			TempDir:         os.TempDir(),
			MaxUploadMB:     20,
			ShutdownTimeout: 30 * time.Second,
			AuditPort:       8081,
		},
		Vendor: VendorConfig{
			Operation: "word-to-pdf",
			Timeout:   30 * time.Second,
		},
		Poll: PollConfig{
			Interval:    2 * time.Second,
			MaxAttempts: 30,
		},
		Janitor: JanitorConfig{
			Schedule: "*/10 * * * *",
			MaxAge:   time.Hour,
		},
	}
}

// Load загружает конфигурацию.
//
// path — путь к YAML-файлу; если пуст, используется DOCCONV_CONFIG,
// а при его отсутствии файл не читается. Файл .env в рабочей
// директории подгружается, если существует.
func Load(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadAudit загружает конфигурацию docconv-audit. Настройки вендора
// не проверяются, хранилища обязательны.
func LoadAudit(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateAudit(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(path string) (*Config, error) {
	// .env опционален: отсутствие файла не ошибка
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет конфигурацию.
// Ключи вендора не обязательны: без них запросы завершаются ошибкой
// на шаге authenticate, но сервер запускается.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("%w: max_upload_mb must be positive", ErrInvalidConfig)
	}
	if c.Vendor.BaseURL == "" {
		return fmt.Errorf("%w: vendor base_url is required", ErrInvalidConfig)
	}
	if c.Vendor.Timeout <= 0 {
		return fmt.Errorf("%w: vendor timeout must be positive", ErrInvalidConfig)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	}
	if c.Poll.MaxAttempts < 1 {
		return fmt.Errorf("%w: poll max_attempts must be at least 1", ErrInvalidConfig)
	}
	if c.Janitor.MaxAge <= 0 {
		return fmt.Errorf("%w: janitor max_age must be positive", ErrInvalidConfig)
	}
	return nil
}

// ValidateAudit проверяет конфигурацию docconv-audit.
func (c *Config) ValidateAudit() error {
	if c.Server.AuditPort < 1 || c.Server.AuditPort > 65535 {
		return fmt.Errorf("%w: audit port %d", ErrInvalidConfig, c.Server.AuditPort)
	}
	if c.Storage.DatabaseURL == "" {
		return fmt.Errorf("%w: database_url is required", ErrInvalidConfig)
	}
	if c.Storage.RabbitMQURL == "" {
		return fmt.Errorf("%w: rabbitmq_url is required", ErrInvalidConfig)
	}
	return nil
}

// MaxUploadBytes возвращает лимит размера запроса в байтах.
func (c *Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB << 20
}

// HasVendorCredentials возвращает true, если задана пара ключей или API-ключ.
func (c *Config) HasVendorCredentials() bool {
	return (c.Vendor.PublicKey != "" && c.Vendor.SecretKey != "") || c.Vendor.APIKey != ""
}

// applyEnvOverrides применяет переменные окружения поверх файла.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: API_PORT: %v", ErrInvalidConfig, err)
		}
		cfg.Server.Port = port
	}

	if v := os.Getenv("AUDIT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: AUDIT_PORT: %v", ErrInvalidConfig, err)
		}
		cfg.Server.AuditPort = port
	}

	setString(&cfg.Server.TempDir, "TEMP_DIR")
	setString(&cfg.Server.CORSAllowOrigin, "CORS_ALLOW_ORIGIN")

	if v := os.Getenv("MAX_UPLOAD_MB"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: MAX_UPLOAD_MB: %v", ErrInvalidConfig, err)
		}
		cfg.Server.MaxUploadMB = n
	}

	setString(&cfg.Vendor.BaseURL, "VENDOR_BASE_URL")
	setString(&cfg.Vendor.PublicKey, "VENDOR_PUBLIC_KEY")
	setString(&cfg.Vendor.SecretKey, "VENDOR_SECRET_KEY")
	setString(&cfg.Vendor.APIKey, "VENDOR_API_KEY")
	setString(&cfg.Vendor.Operation, "VENDOR_OPERATION")

	if err := setDuration(&cfg.Vendor.Timeout, "VENDOR_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Poll.Interval, "POLL_INTERVAL"); err != nil {
		return err
	}

	if v := os.Getenv("POLL_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: POLL_MAX_ATTEMPTS: %v", ErrInvalidConfig, err)
		}
		cfg.Poll.MaxAttempts = n
	}

	setString(&cfg.Storage.DatabaseURL, "DB_URL")
	setString(&cfg.Storage.RabbitMQURL, "RABBITMQ_URL")

	setString(&cfg.Janitor.Schedule, "JANITOR_CRON")
	if err := setDuration(&cfg.Janitor.MaxAge, "JANITOR_MAX_AGE"); err != nil {
		return err
	}

	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// setDuration принимает "5s", "2m" или целое число секунд.
func setDuration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	*dst = d
	return nil
}
