package config

import (
	"os"
	"time"
)

// Config holds runtime settings.
type Config struct {
	DatabasePath     string        `env:"DATABASE_PATH"`
	TimeEndpoint     string        `env:"TIME_ENDPOINT"`
	TimeSyncInterval time.Duration `env:"TIME_SYNC_INTERVAL"`
	TimeTimeout      time.Duration `env:"TIME_TIMEOUT"`
	SummerTime       bool          `env:"SUMMER_TIME"`
	LogLevel         string        `env:"LOG_LEVEL"`
	LogFormat        string        `env:"LOG_FORMAT"`

	Backup Backup `envPrefix:"BACKUP_"`
}

// Backup addresses the S3-compatible bucket used by backup and restore.
type Backup struct {
	Bucket    string `env:"BUCKET"`
	Endpoint  string `env:"ENDPOINT"`
	Region    string `env:"REGION"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Object    string `env:"OBJECT"`
}

// Enabled reports whether a bucket is configured.
func (b Backup) Enabled() bool {
	return b.Bucket != ""
}

// LoadDefaults populates c with defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "otpkeeper.db"
	c.TimeEndpoint = "https://worldtimeapi.org/api/ip"
	c.TimeSyncInterval = 60 * time.Second
	c.TimeTimeout = 5 * time.Second
	c.SummerTime = false
	c.LogLevel = "info"
	c.LogFormat = "text"
	c.Backup = Backup{Region: "us-east-1", Object: "otpkeeper-vault.json"}
}

// Load builds a Config from defaults, the JSON file, the environment and
// the flags found in args (os.Args[1:] in production).
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, dotEnvFile); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig is Load over the process arguments; it panics on a bad source.
func LoadConfig() *Config {
	cfg, err := Load(os.Args[1:])
	if err != nil {
		panic(err)
	}
	return cfg
}
