package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/otpkeeper/internal/flagx"
)

// parseFlags applies -d, -t, -s and -l from args. Other flags are ignored.
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("otpkeeper", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path of the vault database")
	fs.StringVar(&cfg.TimeEndpoint, "t", cfg.TimeEndpoint, "time service URL, empty for local time only")
	syncSeconds := fs.Int("s", int(cfg.TimeSyncInterval.Seconds()), "time sync interval (in seconds)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(flagx.FilterArgs(args, []string{"-d", "-t", "-s", "-l"})); err != nil {
		return err
	}

	cfg.TimeSyncInterval = time.Duration(*syncSeconds) * time.Second
	return nil
}
