// migrate applies the embedded schema; run with go run ./cmd/migrate [-direction up|down].
package main

import (
	"flag"
	"log"

	"go.uber.org/zap"

	"storyloom/backend/internal/config"
	"storyloom/backend/internal/db/migrate"
	"storyloom/backend/internal/logging"
)

func main() {
	flagDirection := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	direction, err := migrate.ParseDirection(*flagDirection)
	if err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	res, err := migrate.Run(cfg.DatabaseURL, direction)
	if err != nil {
		logger.Fatal("migrate", zap.String("direction", string(direction)), zap.Error(err))
	}
	if !res.Changed {
		logger.Info("schema already at target", zap.Uint("version", res.Version))
		return
	}
	logger.Info("migrations applied",
		zap.String("direction", string(direction)),
		zap.Uint("version", res.Version),
		zap.Bool("dirty", res.Dirty),
	)
}
