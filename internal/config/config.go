package config

import (
	"errors"
	"fmt"
	"os"

	"flexiseat/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Auth       AuthConfig       `yaml:"auth"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Exports    ExportConfig     `yaml:"exports"`
	Google     GoogleConfig     `yaml:"google"`
	Bot        BotConfig        `yaml:"bot"`
	Desks      []models.Desk    `yaml:"desks"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type ServerConfig struct {
	Port      int                  `yaml:"port"`
	RateLimit ServerRateLimit      `yaml:"rate_limit"`
	CORS      ServerCORSConfig     `yaml:"cors"`
	Timeouts  ServerTimeoutsConfig `yaml:"timeouts"`
}

type ServerRateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ServerCORSConfig struct {
	AllowedOrigin string `yaml:"allowed_origin"`
}

type ServerTimeoutsConfig struct {
	ReadHeaderSeconds int `yaml:"read_header_seconds"`
	WriteSeconds      int `yaml:"write_seconds"`
}

type AuthConfig struct {
	SuperAdminEmail   string `yaml:"super_admin_email"`
	SessionTTLSeconds int    `yaml:"session_ttl_seconds"`
	SeedAdminPassword string `yaml:"seed_admin_password"`
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

type TelegramConfig struct {
	BotToken string  `yaml:"bot_token"`
	Debug    bool    `yaml:"debug"`
	LeadChat []int64 `yaml:"lead_chats"` // chat ids allowed to approve bookings
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

type ExportConfig struct {
	Path string `yaml:"path"`
}

type GoogleConfig struct {
	GoogleCredentialsFile string `yaml:"credentials_file"`
	LedgerSpreadSheetID   string `yaml:"ledger_spreadsheet_id"`
}

type BotConfig struct {
	ReminderTime string `yaml:"reminder_time"`
	PollInterval int    `yaml:"poll_interval"` // seconds between pending-booking scans
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, err
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

	return ValidateDesks(c.Desks)
}

// ValidateDesks rejects floor plans with blank or duplicate desk ids.
func ValidateDesks(desks []models.Desk) error {
	deskIDs := make(map[string]bool)
	for _, desk := range desks {
		if desk.ID == "" {
			return fmt.Errorf("desk on level %d has empty id", desk.Level)
		}
		if deskIDs[desk.ID] {
			return fmt.Errorf("duplicate desk id found: %s", desk.ID)
		}
		deskIDs[desk.ID] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 5001
	}
	if c.Server.Timeouts.ReadHeaderSeconds == 0 {
		c.Server.Timeouts.ReadHeaderSeconds = 5
	}
	if c.Server.Timeouts.WriteSeconds == 0 {
		c.Server.Timeouts.WriteSeconds = 15
	}
	if c.Server.RateLimit.Burst == 0 {
		c.Server.RateLimit.Burst = 5
	}
	if c.Auth.SuperAdminEmail == "" {
		c.Auth.SuperAdminEmail = models.DefaultSuperAdminEmail
	}
	if c.Auth.SessionTTLSeconds == 0 {
		c.Auth.SessionTTLSeconds = models.DefaultSessionTTL
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	// Bot defaults
	if c.Bot.ReminderTime == "" {
		c.Bot.ReminderTime = fmt.Sprintf("%02d:00", models.ReminderHour)
	}
	if c.Bot.PollInterval == 0 {
		c.Bot.PollInterval = 30
	}
}
