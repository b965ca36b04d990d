package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"travelbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Booking    BookingConfig    `yaml:"booking"`
	Payment    PaymentConfig    `yaml:"payment"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Exports    ExportConfig     `yaml:"exports"`
	Admins     []AdminSeed      `yaml:"admins"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled        bool               `yaml:"enabled"`
	HTTP           APIHTTPConfig      `yaml:"http"`
	GRPC           APIGRPCConfig      `yaml:"grpc"`
	Auth           APIAuthConfig      `yaml:"auth"`
	RateLimit      APIRateLimitConfig `yaml:"rate_limit"`
	IdentityHeader string             `yaml:"identity_header"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type BookingConfig struct {
	ServicesFile      string `yaml:"services_file"`
	SessionTTLSeconds int    `yaml:"session_ttl_seconds"`
	// сколько новых сессий клиент может открыть за окно
	SessionsPerWindow   int `yaml:"sessions_per_window"`
	SessionWindowSecond int `yaml:"session_window_seconds"`
}

// SessionTTL returns the lifetime of an idle booking session.
func (b BookingConfig) SessionTTL() time.Duration {
	return time.Duration(b.SessionTTLSeconds) * time.Second
}

func (b BookingConfig) SessionWindow() time.Duration {
	return time.Duration(b.SessionWindowSecond) * time.Second
}

type PaymentConfig struct {
	ReferencePrefix string `yaml:"reference_prefix"`
	BankName        string `yaml:"bank_name"`
	BankAccount     string `yaml:"bank_account"`
	AccountHolder   string `yaml:"account_holder"`
	WalletName      string `yaml:"wallet_name"`
	WalletAccount   string `yaml:"wallet_account"`
}

type TelegramConfig struct {
	Enabled      bool    `yaml:"enabled"`
	BotToken     string  `yaml:"bot_token"`
	Debug        bool    `yaml:"debug"`
	AdminChatIDs []int64 `yaml:"admin_chat_ids"`
	// ReviewBot answers /pending and approve/reject buttons for admins with a telegram_id.
	ReviewBot    bool    `yaml:"review_bot"`
}

type GoogleConfig struct {
	CredentialsFile     string `yaml:"credentials_file"`
	LedgerSpreadsheetID string `yaml:"ledger_spreadsheet_id"`
}

type LedgerConfig struct {
	Enabled         bool    `yaml:"enabled"`
	MaxRetries      int     `yaml:"max_retries"`
	InitialDelayMs  int     `yaml:"initial_delay_ms"`
	MaxDelayMs      int     `yaml:"max_delay_ms"`
	BackoffFactor   float64 `yaml:"backoff_factor"`
	BreakerFailures uint32  `yaml:"breaker_failures"`
	BreakerCooldown int     `yaml:"breaker_cooldown_seconds"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

// AdminSeed describes an administrator created at startup. Admins are never self-registered.
type AdminSeed struct {
	ID         string `yaml:"id"`
	Email      string `yaml:"email"`
	FullName   string `yaml:"full_name"`
	Phone      string `yaml:"phone"`
	TelegramID int64  `yaml:"telegram_id"` // 0 keeps the admin out of the review bot
}

func Load(configPath string) (*Config, error) {
	// .env необязателен
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Booking.ServicesFile == "" {
		return errors.New("booking services file is required")
	}
	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE") {
		return errors.New("telegram bot token is required when telegram is enabled")
	}
	if c.Ledger.Enabled && (c.Google.CredentialsFile == "" || c.Google.LedgerSpreadsheetID == "") {
		return errors.New("google credentials and ledger spreadsheet are required when ledger is enabled")
	}
	if c.API.GRPC.TLS.Enabled && (c.API.GRPC.TLS.CertFile == "" || c.API.GRPC.TLS.KeyFile == "") {
		return errors.New("grpc tls requires cert_file and key_file")
	}

	return ValidateAdmins(c.Admins)
}

func ValidateAdmins(admins []AdminSeed) error {
	seen := make(map[string]bool)
	for _, a := range admins {
		if a.ID == "" || a.Email == "" {
			return fmt.Errorf("admin %q must have id and email", a.FullName)
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate admin id: %s", a.ID)
		}
		seen[a.ID] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "travelbook"
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.API.IdentityHeader == "" {
		c.API.IdentityHeader = "X-Identity-ID"
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = models.RateLimitBurst
	}

	if c.Booking.SessionTTLSeconds == 0 {
		c.Booking.SessionTTLSeconds = models.DefaultSessionTTL
	}
	if c.Booking.SessionsPerWindow == 0 {
		c.Booking.SessionsPerWindow = 20
	}
	if c.Booking.SessionWindowSecond == 0 {
		c.Booking.SessionWindowSecond = 60
	}
	if c.Payment.ReferencePrefix == "" {
		c.Payment.ReferencePrefix = "TB"
	}

	if c.Ledger.MaxRetries == 0 {
		c.Ledger.MaxRetries = 5
	}
	if c.Ledger.BreakerFailures == 0 {
		c.Ledger.BreakerFailures = 3
	}
	if c.Ledger.BreakerCooldown == 0 {
		c.Ledger.BreakerCooldown = 30
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
