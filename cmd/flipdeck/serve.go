package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/conorfennell/flipdeck/internal/cache"
	"github.com/conorfennell/flipdeck/internal/collection"
	"github.com/conorfennell/flipdeck/internal/config"
	"github.com/conorfennell/flipdeck/internal/logging"
	"github.com/conorfennell/flipdeck/internal/quiz"
	"github.com/conorfennell/flipdeck/internal/srs"
	"github.com/conorfennell/flipdeck/internal/storage"
	"github.com/conorfennell/flipdeck/internal/study"
	"github.com/conorfennell/flipdeck/internal/web"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	// 1. Logging
	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	// 2. Open the database
	db, err := storage.Open(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("Database opened", "path", cfg.DB.Path)

	// 3. Pick where the study schedule lives
	states, closeStates, err := openScheduleStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeStates()
	logger.Info("Study schedule backend selected", "backend", cfg.SRS.Backend)

	// 4. Wire the services and load the collection
	cards := collection.New()
	studySvc := study.NewService(states, cards, logger)
	gen := quiz.NewGenerator(quiz.WithDefaultCount(cfg.Quiz.QuestionCount))
	server := web.NewServer(db, cards, studySvc, gen, logger, web.Config{
		RateLimitMax: cfg.RateLimit.Max,
		RequestLog:   os.Stdout,
	})
	if err := server.Hydrate(); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	live := make([]string, 0)
	for _, card := range cards.Flashcards() {
		live = append(live, card.ID)
	}
	if _, err := studySvc.Prune(ctx, live); err != nil {
		logger.Warn("Failed to prune study schedule", "error", err)
	}

	// 5. Serve until a signal arrives or the listener fails
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Listening", "addr", cfg.HTTP.Addr)
		return server.Listen(cfg.HTTP.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		return server.Shutdown()
	})
	return g.Wait()
}

func openScheduleStore(ctx context.Context, cfg *config.Config, db *storage.DB) (srs.Store, func(), error) {
	noop := func() {}
	switch cfg.SRS.Backend {
	case config.BackendRedis:
		client, err := cache.NewClient(ctx, cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, noop, err
		}
		return cache.NewSRSStore(client), func() {
			if err := client.Close(); err != nil {
				slog.Warn("Failed to close redis client", "error", err)
			}
		}, nil
	case config.BackendMemory:
		return srs.NewMemoryStore(), noop, nil
	default:
		return db.SRSStore(), noop, nil
	}
}
