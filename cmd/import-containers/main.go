package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/septivank/city-signals/internal/db"
	"github.com/septivank/city-signals/internal/importer"
	"github.com/septivank/city-signals/internal/logging"
	"github.com/septivank/city-signals/internal/repository"
	"go.uber.org/zap"
)

func main() {
	file := flag.String("file", "imports/containers.json", "path to the legacy container export")
	batch := flag.Int("batch", 50, "containers per batch")
	envFile := flag.String("env", ".env", "optional .env file")
	flag.Parse()

	if _, err := os.Stat(*envFile); err == nil {
		_ = godotenv.Load(*envFile)
	}

	logger, err := logging.NewLogger("city-signals-import", os.Getenv("LOG_LEVEL"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger, *file, *batch); err != nil {
		logger.Error("import failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, file string, batch int) error {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rows, err := importer.ReadFile(file)
	if err != nil {
		return err
	}
	logger.Info("legacy export loaded", zap.String("file", file), zap.Int("rows", len(rows)))

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("cannot reach database: %w", err)
	}
	if err := db.EnsureSchema(ctx, pool, logger); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	res, err := importer.New(repository.NewRepository(pool), logger, batch).Run(ctx, rows)
	if err != nil {
		return err
	}

	fmt.Printf("Import completed:\n  - Imported: %d\n  - Skipped: %d\n  - Errors: %d\n", res.Imported, res.Skipped, res.Errors)
	return nil
}
