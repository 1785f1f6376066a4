// Command cleanopt runs the cleaning-task optimizer core: candidate-group
// generation, cleaner assignment, and per-cleaner scheduling, against a
// Postgres run/decision store and a Redis per-date workspace cache.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cleanopt/internal/config"
	"cleanopt/pkg/api"
	"cleanopt/pkg/domain"
	"cleanopt/pkg/orchestrator"
	"cleanopt/pkg/storage"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	version       = "0.1.0"
	configPath    string
	rootCmd       *cobra.Command
)

func main() {
	rootCmd = &cobra.Command{
		Use:     "cleanopt",
		Short:   "Cleaning-task assignment and scheduling optimizer",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config overlay")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(validateConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func buildOrchestrator(cfg *config.Config, logger *slog.Logger) (*orchestrator.Orchestrator, *storage.PostgresStore, error) {
	runStore, err := storage.NewPostgresStore(cfg.Database.DSN(), cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Database.RedisHost, cfg.Database.RedisPort),
		Password:     cfg.Database.RedisPassword,
		DB:           cfg.Database.RedisDB,
		PoolSize:     cfg.Database.RedisPoolSize,
		MinIdleConns: cfg.Database.RedisMinIdleConns,
		DialTimeout:  cfg.Database.RedisDialTimeout,
		ReadTimeout:  cfg.Database.RedisReadTimeout,
		WriteTimeout: cfg.Database.RedisWriteTimeout,
	})
	workspaceStore := storage.NewRedisWorkspaceStore(redisClient)

	orch := orchestrator.New(runStore, runStore, workspaceStore, cfg, logger)
	return orch, runStore, nil
}

// inputBundle is the JSON shape `cleanopt run --input` reads: a work date
// plus the task/cleaner roster for that day.
type inputBundle struct {
	WorkDate         string          `json:"work_date"`
	AlgorithmVersion string          `json:"algorithm_version"`
	Tasks            []domain.Task   `json:"tasks"`
	Cleaners         []domain.Cleaner `json:"cleaners"`
}

func runCmd() *cobra.Command {
	var inputPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the optimizer once against a JSON task/cleaner bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(inputPath)
			if err != nil {
				return fmt.Errorf("reading input bundle %q: %w", inputPath, err)
			}
			var bundle inputBundle
			if err := json.Unmarshal(raw, &bundle); err != nil {
				return fmt.Errorf("parsing input bundle %q: %w", inputPath, err)
			}
			if bundle.AlgorithmVersion == "" {
				bundle.AlgorithmVersion = version
			}

			orch, runStore, err := buildOrchestrator(cfg, logger)
			if err != nil {
				return err
			}
			defer runStore.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			result, err := orch.RunOnce(ctx, orchestrator.RunInput{
				WorkDate:         bundle.WorkDate,
				AlgorithmVersion: bundle.AlgorithmVersion,
				Tasks:            bundle.Tasks,
				Cleaners:         bundle.Cleaners,
			})
			if err != nil {
				return fmt.Errorf("running optimizer: %w", err)
			}

			out, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "", "path to the JSON task/cleaner bundle")
	cmd.MarkFlagRequired("input")

	return cmd
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ops HTTP surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.API.Listen = addr
			}

			orch, runStore, err := buildOrchestrator(cfg, logger)
			if err != nil {
				return err
			}
			defer runStore.Close()

			server := api.NewServer(cfg, orch, runStore, runStore, logger)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start(ctx)
			}()

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Stop(shutdownCtx)
			case err := <-errCh:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides config")
	return cmd
}

func validateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load and echo the resolved priority windows and phase parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			out, _ := json.MarshalIndent(map[string]any{
				"windows":   cfg.Windows,
				"phase1":    cfg.Phase1,
				"phase2":    cfg.Phase2,
				"phase3":    cfg.Phase3,
				"fallbacks": cfg.Fallbacks,
			}, "", "  ")
			fmt.Println(string(out))

			if len(cfg.Fallbacks) > 0 {
				fmt.Fprintf(os.Stderr, "PHASE3_SETTINGS_FALLBACK_USED sources: %v\n", cfg.Fallbacks)
			}
			return nil
		},
	}
}
