package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/ponto/internal/database"
	"github.com/saturnino-fabrica-de-software/ponto/internal/storage"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check connectivity to Postgres, MinIO and Redis",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	failed := false
	report := func(name string, err error) {
		if err != nil {
			failed = true
			fmt.Printf("%-10s FAIL  %v\n", name, err)
			return
		}
		fmt.Printf("%-10s ok\n", name)
	}

	report("postgres", database.HealthCheck(ctx, e.pool))

	if e.cfg.MinIO.Enabled() {
		store, err := storage.NewMinIOStore(e.cfg.MinIO)
		if err == nil {
			err = store.Ping(ctx)
		}
		report("minio", err)
	} else {
		fmt.Printf("%-10s disabled\n", "minio")
	}

	if e.cfg.RedisURL != "" {
		report("redis", pingRedis(ctx, e.cfg.RedisURL))
	} else {
		fmt.Printf("%-10s disabled\n", "redis")
	}

	if failed {
		return fmt.Errorf("one or more checks failed")
	}
	return nil
}

func pingRedis(ctx context.Context, url string) error {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return err
	}
	client := redis.NewClient(opts)
	defer func() { _ = client.Close() }()
	return client.Ping(ctx).Err()
}
