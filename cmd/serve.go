package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentstepper/agentstepper/internal/config"
	"github.com/agentstepper/agentstepper/internal/core"
	"github.com/agentstepper/agentstepper/internal/summary"
	"github.com/agentstepper/agentstepper/internal/version"
)

func runServe(cfg config.Config) error {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("agentstepper starting", "version", version.ServerVersion)

	var summarizer summary.Summarizer
	if s, err := summary.NewOpenAI(cfg.Model); err != nil {
		logger.Warn("summarization disabled", "error", err)
	} else {
		logger.Info("summarization enabled", "model", cfg.Model)
		summarizer = s
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	coord := core.New(logger, summarizer, cwd)

	for _, path := range cfg.Runs {
		blob, err := os.ReadFile(path)
		if err != nil {
			logger.Error("read run file", "path", path, "error", err)
			continue
		}
		run, err := coord.PreloadRun(blob)
		if err != nil {
			logger.Error("preload run", "path", path, "error", err)
			continue
		}
		logger.Info("run preloaded", "path", path, "name", run.Name)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := core.NewServer(coord, logger, cfg.Host, cfg.ClientPort, cfg.UIPort)
	if err := srv.Start(ctx); err != nil {
		return err
	}
	logger.Info("agentstepper stopped")
	return nil
}
