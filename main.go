package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/vectral/post-analytics/internal/config"
	"github.com/vectral/post-analytics/internal/deadletter"
	"github.com/vectral/post-analytics/internal/fetch"
	"github.com/vectral/post-analytics/internal/logging"
	"github.com/vectral/post-analytics/internal/pipeline"
	"github.com/vectral/post-analytics/internal/query"
	"github.com/vectral/post-analytics/internal/render"
	"github.com/vectral/post-analytics/internal/server"
	"github.com/vectral/post-analytics/internal/storage"
)

func main() {
	logger := logging.New(nil)

	app := &cli.Command{
		Name:    "post-analytics",
		Usage:   "Fetch posts and users, load them into a local analytical store, and report on them",
		Version: "0.1.0",
		Commands: []*cli.Command{
			runCommand(logger),
			queryCommand(logger),
			serveCommand(logger),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// loadConfig reads the configured TOML file when it exists and falls back to
// the embedded defaults otherwise. Env overrides apply either way.
func loadConfig(cmd *cli.Command, logger *log.Logger) *config.Config {
	path := cmd.String("config")
	if _, err := os.Stat(path); err != nil {
		return config.Default()
	}

	cfg, err := config.Load(path)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "path", path, "error", err)
		return config.Default()
	}
	return cfg
}

func runCommand(logger *log.Logger) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Execute the fetch, validate, persist, query pipeline end to end",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{Name: "base-url", Usage: "Override the API base URL"},
			&cli.StringFlag{Name: "db", Usage: "Override the store file path"},
			&cli.IntFlag{Name: "top-n", Usage: "Cutoff for the top users query (0 = all)", Value: -1},
			&cli.StringFlag{Name: "dead-letter", Usage: "Archive rejected documents to this JSONL file"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := loadConfig(cmd, logger)
			if baseURL := cmd.String("base-url"); baseURL != "" {
				cfg.API.BaseURL = baseURL
			}
			if path := cmd.String("db"); path != "" {
				cfg.Storage.Path = path
			}
			if topN := int(cmd.Int("top-n")); topN >= 0 {
				cfg.Queries.TopN = topN
			}
			if path := cmd.String("dead-letter"); path != "" {
				cfg.DeadLetter.Path = path
			}

			store, err := storage.NewStore(cfg.Storage)
			if err != nil {
				return err
			}
			defer store.Close()

			sink, err := deadletter.NewSink(ctx, cfg.DeadLetter)
			if err != nil {
				logger.Warn("dead-letter sink unavailable, rejects will be dropped", "error", err)
				sink = deadletter.NopSink{}
			}
			defer sink.Close(ctx)

			orch := pipeline.New(pipeline.Opts{
				Fetcher: fetch.NewFetcher(cfg.API, logger),
				Store:   store,
				Sink:    sink,
				TopN:    cfg.Queries.TopN,
				Logger:  logger,
			})

			report, err := orch.Run(ctx)
			if report != nil {
				logger.Info("pipeline finished",
					"run_id", report.RunID,
					"state", report.State,
					"posts_accepted", report.Posts.Accepted,
					"posts_rejected", report.Posts.Rejected,
					"users_accepted", report.Users.Accepted,
					"users_rejected", report.Users.Rejected,
				)
				if renderErr := render.Write(os.Stdout, report.Results); renderErr != nil {
					logger.Error("failed to render results", "error", renderErr)
				}
			}
			return err
		},
	}
}

func queryCommand(logger *log.Logger) *cli.Command {
	return &cli.Command{
		Name:  "query",
		Usage: "Run the analytical queries against an existing store file",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{Name: "db", Usage: "Override the store file path"},
			&cli.IntFlag{Name: "top-n", Usage: "Cutoff for the top users query (0 = all)", Value: -1},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := loadConfig(cmd, logger)
			if path := cmd.String("db"); path != "" {
				cfg.Storage.Path = path
			}
			if topN := int(cmd.Int("top-n")); topN >= 0 {
				cfg.Queries.TopN = topN
			}

			store, err := storage.NewStore(cfg.Storage)
			if err != nil {
				return err
			}
			defer store.Close()

			engine := query.NewEngine(store.Handle(), cfg.Queries.TopN)
			results, errs := engine.RunAll(ctx)
			for _, qerr := range errs {
				logger.Error("query failed", "error", qerr)
			}
			return render.Write(os.Stdout, results)
		},
	}
}

func serveCommand(logger *log.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the analytical queries over a read-only HTTP API",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{Name: "db", Usage: "Override the store file path"},
			&cli.IntFlag{Name: "port", Usage: "Override the listen port"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := loadConfig(cmd, logger)
			if path := cmd.String("db"); path != "" {
				cfg.Storage.Path = path
			}
			if port := int(cmd.Int("port")); port > 0 {
				cfg.Server.Port = port
			}

			store, err := storage.NewStore(cfg.Storage)
			if err != nil {
				return err
			}
			defer store.Close()

			engine := query.NewEngine(store.Handle(), cfg.Queries.TopN)
			srv := server.NewServer(cfg.Server.Port, engine, logger)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case <-sigCh:
				logger.Info("shutdown signal received")
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
