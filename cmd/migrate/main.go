// Command migrate manages the database schema.
//
//	migrate up | down | status
//	migrate steps N      (negative N rolls back)
//	migrate force V      (mark V as applied after a manual repair)
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/saturnino-fabrica-de-software/ponto/internal/config"
	"github.com/saturnino-fabrica-de-software/ponto/internal/database"
)

const usage = "usage: migrate up|down|status|steps N|force V"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	action := args[0]

	var n int
	if action == "steps" || action == "force" {
		if len(args) != 2 {
			return errors.New(usage)
		}
		var err error
		if n, err = strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("%s: %w", action, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := config.NewLogger(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.OpenSQL(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	migrator, err := database.NewMigrator(db, "", logger)
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }()

	switch action {
	case "up":
		err = migrator.Up()
	case "down":
		err = migrator.Down()
	case "steps":
		err = migrator.Steps(n)
	case "force":
		logger.Warn("forcing schema version", slog.Int("version", n))
		err = migrator.Force(n)
	case "status":
	default:
		return fmt.Errorf("unknown action %q; %s", action, usage)
	}
	if err != nil {
		if errors.Is(err, database.ErrDirty) {
			logger.Error("repair the schema by hand, then run: migrate force <version>")
		}
		return err
	}

	st, err := migrator.Status()
	if err != nil {
		return err
	}
	logger.Info("schema status", slog.String("action", action), slog.String("status", st.String()))
	return nil
}
