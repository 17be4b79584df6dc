package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/NIC619/personalized-twitter-feeds/internal/app"
	"github.com/NIC619/personalized-twitter-feeds/internal/config"
	"github.com/NIC619/personalized-twitter-feeds/internal/logging"
)

func main() {
	once := flag.Bool("once", false, "run a single curation pass and exit")
	botOnly := flag.Bool("bot-only", false, "serve the feedback bot without scheduled curation")
	maxTweets := flag.Int("n", 0, "override the max tweets per run")
	hours := flag.Int("hours", 0, "override the fetch lookback in hours")
	flag.Parse()

	// Missing .env is fine; real deployments use environment variables.
	_ = godotenv.Load()

	cfg := config.Load()
	if *maxTweets > 0 {
		cfg.Curation.MaxTweets = *maxTweets
	}
	if *hours > 0 {
		cfg.Curation.FetchHours = *hours
	}

	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	switch {
	case *once:
		err = application.RunOnce(ctx)
	case *botOnly:
		err = application.RunBot(ctx)
	default:
		err = application.RunScheduled(ctx)
	}
	if err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
