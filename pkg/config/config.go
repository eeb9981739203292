// Package config provides configuration loading and management for GoSQLRestore
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ToolsConfig defines the external client binaries used for dump and restore
type ToolsConfig struct {
	DumpBinary     string        `yaml:"dumpBinary"`
	ClientBinary   string        `yaml:"clientBinary"`
	CommandTimeout time.Duration `yaml:"commandTimeout"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
}

// S3Config defines settings for the optional off-site copy of artifacts
type S3Config struct {
	Enabled   bool   `yaml:"enabled"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Prefix    string `yaml:"prefix"`
	PathStyle bool   `yaml:"pathStyle"`
}

// ScheduleConfig defines the optional cron-driven backups
type ScheduleConfig struct {
	Cron      string   `yaml:"cron"`
	Databases []string `yaml:"databases"`
}

// AppConfig contains the complete application configuration
type AppConfig struct {
	ListenPort           string         `yaml:"listenPort"`
	BackupDirectory      string         `yaml:"backupDirectory"`
	ConnectionConfigFile string         `yaml:"connectionConfigFile"`
	Tools                ToolsConfig    `yaml:"tools"`
	S3                   S3Config       `yaml:"s3"`
	Schedule             ScheduleConfig `yaml:"schedule"`
	Debug                bool           `yaml:"debug"`
}

// Load reads .env files (if present) and then builds the configuration from
// environment variables. Values not set fall back to defaults.
func Load(envFiles ...string) AppConfig {
	if len(envFiles) == 0 {
		envFiles = []string{".env", ".env.local"}
	}
	for _, envFile := range envFiles {
		// Missing .env files are not an error
		_ = godotenv.Load(envFile)
	}

	return FromEnvironment()
}

// FromEnvironment builds an AppConfig from environment variables only
func FromEnvironment() AppConfig {
	var cfg AppConfig

	cfg.Debug = parseEnvBool("DEBUG", false)
	cfg.ListenPort = getEnvOrDefault("LISTEN_PORT", "8080")
	cfg.BackupDirectory = getEnvOrDefault("BACKUP_DIRECTORY", "./backup")
	cfg.ConnectionConfigFile = getEnvOrDefault("CONNECTION_CONFIG_FILE", filepath.Join("config", "db_config.yaml"))

	cfg.Tools.DumpBinary = getEnvOrDefault("MYSQLDUMP_BINARY", "mysqldump")
	cfg.Tools.ClientBinary = getEnvOrDefault("MYSQL_BINARY", "mysql")
	cfg.Tools.CommandTimeout = parseEnvDuration("COMMAND_TIMEOUT", 30*time.Minute)
	cfg.Tools.ConnectTimeout = parseEnvDuration("CONNECT_TIMEOUT", 5*time.Second)

	cfg.S3.Enabled = parseEnvBool("S3_BACKUP_ENABLED", false)
	cfg.S3.Bucket = getEnvOrDefault("S3_BUCKET", "")
	cfg.S3.Region = getEnvOrDefault("S3_REGION", "us-east-1")
	cfg.S3.Endpoint = getEnvOrDefault("S3_ENDPOINT", "")
	cfg.S3.AccessKey = getEnvOrDefault("S3_ACCESS_KEY", "")
	cfg.S3.SecretKey = getEnvOrDefault("S3_SECRET_KEY", "")
	cfg.S3.Prefix = getEnvOrDefault("S3_PREFIX", "mysql-backups")
	cfg.S3.PathStyle = parseEnvBool("S3_PATH_STYLE", false)

	cfg.Schedule.Cron = getEnvOrDefault("BACKUP_SCHEDULE", "")
	cfg.Schedule.Databases = parseEnvList("BACKUP_DATABASES")

	setDefaults(&cfg)

	if cfg.Debug {
		log.Printf("Configuration loaded from environment: port=%s backupDir=%s connectionFile=%s",
			cfg.ListenPort, cfg.BackupDirectory, cfg.ConnectionConfigFile)
	}

	return cfg
}

// setDefaults ensures all config fields have reasonable default values
func setDefaults(cfg *AppConfig) {
	if cfg.ListenPort == "" {
		cfg.ListenPort = "8080"
	}
	if cfg.BackupDirectory == "" {
		cfg.BackupDirectory = "./backup"
	}
	if cfg.Tools.DumpBinary == "" {
		cfg.Tools.DumpBinary = "mysqldump"
	}
	if cfg.Tools.ClientBinary == "" {
		cfg.Tools.ClientBinary = "mysql"
	}
	if cfg.Tools.ConnectTimeout <= 0 {
		cfg.Tools.ConnectTimeout = 5 * time.Second
	}
}

// Validate checks the configuration for errors
func (cfg AppConfig) Validate() error {
	if cfg.BackupDirectory == "" {
		return fmt.Errorf("backup directory must be specified")
	}
	if cfg.ConnectionConfigFile == "" {
		return fmt.Errorf("connection config file must be specified")
	}
	if cfg.Tools.CommandTimeout < 0 {
		return fmt.Errorf("command timeout must not be negative")
	}

	if cfg.S3.Enabled {
		if cfg.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket must be specified when S3 backups are enabled")
		}
		if cfg.S3.AccessKey == "" || cfg.S3.SecretKey == "" {
			return fmt.Errorf("S3 access key and secret key must be specified when S3 backups are enabled")
		}
	}

	if cfg.Schedule.Cron != "" && len(cfg.Schedule.Databases) == 0 {
		return fmt.Errorf("BACKUP_DATABASES must list at least one database when BACKUP_SCHEDULE is set")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if defaultValue != "" && os.Getenv("DEBUG") == "true" {
		log.Printf("Environment variable %s not set. Using default: %s", key, defaultValue)
	}
	return defaultValue
}

func parseEnvBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	switch strings.ToLower(value) {
	case "1", "t", "true", "yes", "on", "enabled":
		return true
	case "0", "f", "false", "no", "off", "disabled":
		return false
	default:
		log.Printf("Invalid boolean value for %s: %s. Using default: %t", key, value, defaultValue)
		return defaultValue
	}
}

func parseEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid duration value for %s: %s. Using default: %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

// parseEnvList splits a comma-separated variable, dropping empty entries
func parseEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
