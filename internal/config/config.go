package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendMinio    = "minio"
	BackendNone     = "none"
)

type Config struct {
	Token           string
	ChannelID       string
	ServerPort      string
	Env             string
	PageSize        int
	RefreshSeconds  int
	UpstreamTimeout time.Duration
	StoreBackend    string
	StoreFile       string
	SaveInterval    time.Duration
	DBHost          string
	DBPort          string
	DBUser          string
	DBPass          string
	DBName          string
	RedisURL        string
	RedisTTL        time.Duration
	MinioURL        string
	MinioUser       string
	MinioPassword   string
	MinioBucket     string
	RoleEmojiFile   string
	Title           string
}

func LoadConfig() Config {
	return Config{
		Token:           getEnv("TOKEN", getEnv("DISCORD_TOKEN", "")),
		ChannelID:       getEnv("CHANNEL_ID", ""),
		ServerPort:      getEnv("SERVER_PORT", getEnv("PORT", "3000")),
		Env:             getEnv("ENV", "dev"),
		PageSize:        getEnvAsInt("PAGE_SIZE", 50),
		RefreshSeconds:  getEnvAsInt("PAGE_REFRESH_SECONDS", 10),
		UpstreamTimeout: getEnvAsDuration("UPSTREAM_TIMEOUT", 10*time.Second),
		StoreBackend:    getEnv("STORE_BACKEND", BackendFile),
		StoreFile:       getEnv("STORE_FILE", "data/transcript.json"),
		SaveInterval:    getEnvAsDuration("SAVE_INTERVAL", 30*time.Second),
		DBHost:          getEnv("DB_HOST", "postgres"),
		DBPort:          getEnv("DB_PORT", "5432"),
		DBUser:          getEnv("DB_USER", "postgres"),
		DBPass:          getEnv("DB_PASSWORD", "password"),
		DBName:          getEnv("DB_NAME", "chatviewer"),
		RedisURL:        getEnv("REDIS_URL", ""),
		RedisTTL:        getEnvAsDuration("REDIS_TTL", 5*time.Minute),
		MinioURL:        getEnv("MINIO_URL", "localhost:9000"),
		MinioUser:       getEnv("MINIO_USER", "minioadmin"),
		MinioPassword:   getEnv("MINIO_PASSWORD", "minioadmin"),
		MinioBucket:     getEnv("MINIO_BUCKET", "chatviewer-transcripts"),
		RoleEmojiFile:   getEnv("ROLE_EMOJI_FILE", ""),
		Title:           getEnv("PAGE_TITLE", "Chat Viewer"),
	}
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Token == "" {
		errs = append(errs, errors.New("TOKEN is required"))
	}
	if c.ChannelID == "" {
		errs = append(errs, errors.New("CHANNEL_ID is required"))
	} else if _, err := strconv.ParseUint(c.ChannelID, 10, 64); err != nil {
		errs = append(errs, fmt.Errorf("CHANNEL_ID %q is not a snowflake", c.ChannelID))
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		errs = append(errs, fmt.Errorf("PAGE_SIZE must be between 1 and 100, got %d", c.PageSize))
	}
	switch c.StoreBackend {
	case BackendFile, BackendPostgres, BackendMinio, BackendNone:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	return errors.Join(errs...)
}

// LoadRoleEmoji reads a YAML map of role name to emoji. An empty path
// returns nil so the renderer keeps its defaults.
func (c *Config) LoadRoleEmoji() (map[string]string, error) {
	if c.RoleEmojiFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.RoleEmojiFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read role emoji file: %w", err)
	}
	var m map[string]string
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse role emoji file: %w", err)
	}
	return m, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPass, c.DBName, c.DBPort,
	)
}
