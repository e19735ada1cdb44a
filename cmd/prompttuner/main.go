package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "go.uber.org/automaxprocs"

	"github.com/mkarpis/prompttuner/internal/agent"
	"github.com/mkarpis/prompttuner/internal/agent/optimizer"
	"github.com/mkarpis/prompttuner/internal/agent/oracle"
	"github.com/mkarpis/prompttuner/internal/agent/recommender"
	"github.com/mkarpis/prompttuner/internal/agent/simulator"
	"github.com/mkarpis/prompttuner/internal/config"
	"github.com/mkarpis/prompttuner/internal/eval"
	"github.com/mkarpis/prompttuner/internal/index"
	"github.com/mkarpis/prompttuner/internal/loop"
	"github.com/mkarpis/prompttuner/internal/openrouter"
	"github.com/mkarpis/prompttuner/internal/storage"
	"github.com/mkarpis/prompttuner/internal/story"
	"github.com/mkarpis/prompttuner/internal/web"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	userID := flag.Int64("user", 0, "optimize only this user ID (default: all profiles)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("prompttuner %s\n", version)
		return
	}

	// .env is optional; real deployments set environment variables directly
	_ = godotenv.Load()

	if err := run(*configPath, *userID); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, onlyUserID int64) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger := newLogger(cfg.Log.Level)
	logger.Info("starting prompttuner", "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewSQLiteStore(logger, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	client, err := openrouter.NewClient(logger,
		cfg.OpenRouter.APIKey, cfg.OpenRouter.ProxyURL,
		cfg.OpenRouter.RequestsPerSecond, cfg.OpenRouter.Burst)
	if err != nil {
		return fmt.Errorf("create openrouter client: %w", err)
	}

	profiles, err := story.LoadProfiles(cfg.Profiles.Path)
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}
	if onlyUserID != 0 {
		profiles = filterProfiles(profiles, onlyUserID)
		if len(profiles) == 0 {
			return fmt.Errorf("no profile found for user %d", onlyUserID)
		}
	}

	server := web.NewServer(logger, cfg.Server.ListenPort)
	server.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("web server shutdown failed", "error", err)
		}
	}()

	executor := agent.NewExecutor(logger, client)
	defaultModel := cfg.Agents.Default.Model

	expander := story.NewExpander(logger, executor, cfg.Agents.Expander, defaultModel)
	logger.Info("expanding candidate pool", "seeds", len(story.SeedStories()), "target", cfg.Pool.TargetSize)
	pool, err := expander.Expand(ctx, story.SeedStories(), cfg.Pool.TargetSize)
	if err != nil {
		return fmt.Errorf("expand candidate pool: %w", err)
	}

	ix := index.New(logger, client, store, cfg.Embedding.Model)
	if err := ix.EnsureEmbeddings(ctx, pool); err != nil {
		return fmt.Errorf("embed candidate pool: %w", err)
	}

	sim := simulator.New(logger, executor, cfg.Agents.Simulator, defaultModel, cfg.Simulate)
	rec := recommender.New(logger, executor, ix, cfg.Agents.Recommender, defaultModel, cfg.Recommend)
	orc := oracle.New(logger, executor, ix, cfg.Agents.Oracle, defaultModel, cfg.Oracle)
	opt := optimizer.New(logger, executor, cfg.Agents.Optimizer, defaultModel)

	evaluator := eval.New(logger, sim, rec, orc)
	optLoop := loop.New(logger, evaluator, opt, store, cfg.Optimize)

	for _, profile := range profiles {
		if ctx.Err() != nil {
			logger.Warn("interrupted, stopping remaining runs")
			break
		}

		result, err := optLoop.Run(ctx, profile, pool)
		if err != nil {
			logger.Error("optimization run failed", "user_id", profile.UserID, "error", err)
			continue
		}

		fmt.Printf("\nUser %d: best Precision@10 = %.2f after %d iterations (%s, %s)\n",
			result.UserID, result.BestScore, result.Iterations, result.Reason, result.Elapsed.Round(time.Second))
		fmt.Printf("Final prompt:\n%s\n", result.FinalPrompt)
	}

	return nil
}

func newLogger(level string) *slog.Logger {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger
}

func filterProfiles(profiles []story.UserProfile, userID int64) []story.UserProfile {
	for _, p := range profiles {
		if p.UserID == userID {
			return []story.UserProfile{p}
		}
	}
	return nil
}
