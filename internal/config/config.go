package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	NATS     NATSConfig     `yaml:"nats"`
	AWS      AWSConfig      `yaml:"aws"`
	APNs     APNsConfig     `yaml:"apns"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
	Engine   EngineConfig   `yaml:"engine"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`

	// AutoMigrate applies the embedded schema at startup
	AutoMigrate bool `yaml:"auto_migrate"`
}

// RedisConfig holds the unread-counter cache connection
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// NATSConfig holds the event publisher connection. An empty URL disables it.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// AWSConfig holds AWS configuration
type AWSConfig struct {
	Region     string `yaml:"region"`
	S3Bucket   string `yaml:"s3_bucket"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Endpoint   string `yaml:"endpoint"`
	DisableSSL bool   `yaml:"disable_ssl"`
}

// APNsConfig holds push configuration. An empty key path disables push.
type APNsConfig struct {
	KeyPath    string `yaml:"key_path"`
	KeyID      string `yaml:"key_id"`
	TeamID     string `yaml:"team_id"`
	Topic      string `yaml:"topic"`
	Production bool   `yaml:"production"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// EngineConfig holds the interaction rules
type EngineConfig struct {
	GrantTTL          time.Duration `yaml:"grant_ttl"`
	MaxMessageLength  int           `yaml:"max_message_length"`
	MaxEmojiLength    int           `yaml:"max_emoji_length"`
	NotifyTimeout     time.Duration `yaml:"notify_timeout"`
	ConversationLimit int           `yaml:"conversation_limit"`
}

// Load reads configuration from a YAML file, then applies .env and APP_* overrides
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when a key is absent
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8080},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, SSLMode: "disable", MaxConns: 10},
		NATS:     NATSConfig{SubjectPrefix: "interaction"},
		Log:      LogConfig{Level: "info"},
		Engine: EngineConfig{
			GrantTTL:          30 * 24 * time.Hour,
			MaxMessageLength:  2000,
			MaxEmojiLength:    10,
			NotifyTimeout:     5 * time.Second,
			ConversationLimit: 50,
		},
	}
}

// Validate rejects configurations the server cannot start with
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database.dbname is required")
	}
	if c.Engine.MaxMessageLength <= 0 {
		return fmt.Errorf("engine.max_message_length must be positive")
	}
	if c.Engine.MaxEmojiLength <= 0 {
		return fmt.Errorf("engine.max_emoji_length must be positive")
	}
	if c.Engine.NotifyTimeout <= 0 {
		return fmt.Errorf("engine.notify_timeout must be positive")
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnvAsInt("APP_SERVER_PORT", c.Server.Port)
	c.Database.Host = getEnv("APP_DB_HOST", c.Database.Host)
	c.Database.Port = getEnvAsInt("APP_DB_PORT", c.Database.Port)
	c.Database.User = getEnv("APP_DB_USER", c.Database.User)
	c.Database.Password = getEnv("APP_DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("APP_DB_NAME", c.Database.DBName)
	c.Redis.Addr = getEnv("APP_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("APP_REDIS_PASSWORD", c.Redis.Password)
	c.NATS.URL = getEnv("APP_NATS_URL", c.NATS.URL)
	c.AWS.AccessKey = getEnv("APP_AWS_ACCESS_KEY", c.AWS.AccessKey)
	c.AWS.SecretKey = getEnv("APP_AWS_SECRET_KEY", c.AWS.SecretKey)
	c.JWT.Secret = getEnv("APP_JWT_SECRET", c.JWT.Secret)
	c.Log.Level = getEnv("APP_LOG_LEVEL", c.Log.Level)
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
