package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/otpkeeper/internal/backup"
	"github.com/dmitrijs2005/otpkeeper/internal/buildinfo"
	"github.com/dmitrijs2005/otpkeeper/internal/cli"
	"github.com/dmitrijs2005/otpkeeper/internal/config"
	"github.com/dmitrijs2005/otpkeeper/internal/database"
	"github.com/dmitrijs2005/otpkeeper/internal/filex"
	"github.com/dmitrijs2005/otpkeeper/internal/logging"
	"github.com/dmitrijs2005/otpkeeper/internal/repositories/accounts"
	"github.com/dmitrijs2005/otpkeeper/internal/repositories/kv"
	"github.com/dmitrijs2005/otpkeeper/internal/services"
	"github.com/dmitrijs2005/otpkeeper/internal/session"
	"github.com/dmitrijs2005/otpkeeper/internal/timesource"
	"github.com/dmitrijs2005/otpkeeper/internal/timex"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	if err := run(ctx, cfg); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}

	if _, err := filex.EnsureParentDir(cfg.DatabasePath); err != nil {
		return err
	}
	db, err := database.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	store := kv.NewSQLiteStore(db)
	auth := services.NewAuthService(store, logger)
	vault := services.NewVaultService(accounts.NewKVRepository(store, logger), store, logger)

	clock := timesource.New(cfg.TimeEndpoint, cfg.TimeTimeout, timex.System, logger)
	clock.SetSummerTime(cfg.SummerTime)
	if cfg.TimeEndpoint != "" {
		go clock.Run(ctx, cfg.TimeSyncInterval)
	}

	var backups cli.BackupService
	if cfg.Backup.Enabled() {
		objects, err := backup.NewS3Store(ctx, backup.S3Config{
			Bucket:    cfg.Backup.Bucket,
			Endpoint:  cfg.Backup.Endpoint,
			Region:    cfg.Backup.Region,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		})
		if err != nil {
			return err
		}
		backups = backup.NewService(store, objects, cfg.Backup.Object, timex.System, logger)
	}

	printer := cli.NewPrinter(os.Stdout)
	ctrl := session.NewController(auth, vault, logger,
		session.WithListener(printer),
		session.WithCodeClock(clock),
	)

	return cli.NewApp(ctrl, clock, backups, printer, logger, os.Stdin).Run(ctx)
}
