package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/otpkeeper/internal/flagx"
	"github.com/dmitrijs2005/otpkeeper/internal/timex"
)

// JsonConfig is the on-disk shape. Fields absent from the file keep the
// values they had before parsing.
type JsonConfig struct {
	DatabasePath     string         `json:"database_path"`
	TimeEndpoint     string         `json:"time_endpoint"`
	TimeSyncInterval timex.Duration `json:"time_sync_interval"`
	TimeTimeout      timex.Duration `json:"time_timeout"`
	SummerTime       bool           `json:"summer_time"`
	LogLevel         string         `json:"log_level"`
	LogFormat        string         `json:"log_format"`
	Backup           JsonBackup     `json:"backup"`
}

type JsonBackup struct {
	Bucket    string `json:"bucket"`
	Endpoint  string `json:"endpoint"`
	Region    string `json:"region"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Object    string `json:"object"`
}

func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	jc := JsonConfig{
		DatabasePath:     cfg.DatabasePath,
		TimeEndpoint:     cfg.TimeEndpoint,
		TimeSyncInterval: timex.Duration{Duration: cfg.TimeSyncInterval},
		TimeTimeout:      timex.Duration{Duration: cfg.TimeTimeout},
		SummerTime:       cfg.SummerTime,
		LogLevel:         cfg.LogLevel,
		LogFormat:        cfg.LogFormat,
		Backup:           JsonBackup(cfg.Backup),
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.DatabasePath = jc.DatabasePath
	cfg.TimeEndpoint = jc.TimeEndpoint
	cfg.TimeSyncInterval = jc.TimeSyncInterval.Duration
	cfg.TimeTimeout = jc.TimeTimeout.Duration
	cfg.SummerTime = jc.SummerTime
	cfg.LogLevel = jc.LogLevel
	cfg.LogFormat = jc.LogFormat
	cfg.Backup = Backup(jc.Backup)
	return nil
}
