package main

import (
	"context"
	"fmt"
	"os"

	"ap-settlement/internal/adapters/cli"
	"ap-settlement/internal/app"
	"ap-settlement/internal/config"
	"ap-settlement/internal/db"
	"ap-settlement/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	// stdout carries the JSON output, so logs go to stderr unless configured otherwise.
	logCfg := cfg.GetLoggerConfig()
	if logCfg.Output == "stdout" {
		logCfg.Output = "stderr"
	}
	if err := logger.Setup(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.WithComponent("apctl")

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("database")
		os.Exit(1)
	}
	defer pool.Close()

	svc := app.NewAppService(app.BuildServices(pool, cfg.TxRetries, logger.GetLogger()), cfg.CompanyCode, logger.GetLogger())
	if err := cli.NewRootCmd(svc, os.Stdout, log).ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		pool.Close()
		os.Exit(1)
	}
}
