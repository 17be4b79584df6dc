package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/NIC619/personalized-twitter-feeds/internal/config"
	"github.com/NIC619/personalized-twitter-feeds/internal/infrastructure/anthropic"
	"github.com/NIC619/personalized-twitter-feeds/internal/infrastructure/nitter"
	"github.com/NIC619/personalized-twitter-feeds/internal/infrastructure/openai"
	"github.com/NIC619/personalized-twitter-feeds/internal/infrastructure/scheduler"
	"github.com/NIC619/personalized-twitter-feeds/internal/infrastructure/storage"
	"github.com/NIC619/personalized-twitter-feeds/internal/infrastructure/telegram"
	"github.com/NIC619/personalized-twitter-feeds/internal/infrastructure/twitterapi"
	"github.com/NIC619/personalized-twitter-feeds/internal/logging"
	"github.com/NIC619/personalized-twitter-feeds/internal/ports"
	"github.com/NIC619/personalized-twitter-feeds/internal/usecase"
)

// Application wires configuration into the curation engine and the
// feedback bot, and owns their shared resources.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sqlx.DB
	curator   *usecase.Curator
	scheduler *usecase.Scheduler
	router    *telegram.Router
}

// New connects the database and assembles the full dependency graph.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	store := storage.NewPostgresStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	var source ports.TweetSource
	if cfg.Twitter.BearerToken != "" {
		source = twitterapi.NewClient(cfg.Twitter, logging.Component(baseLogger, "source.twitter"))
	} else {
		source = nitter.NewSource(cfg.Nitter, nil, logging.Component(baseLogger, "source.nitter"))
	}
	source = usecase.NewAugmentedSource(source, store, cfg.Curation.StarredAuthorMaxTweets,
		logging.Component(baseLogger, "source.starred"))

	scorer := anthropic.NewScorer(cfg.Anthropic, logging.Component(baseLogger, "scorer"))

	var embedder ports.Embedder
	if e := openai.NewEmbedder(cfg.OpenAI); e != nil {
		embedder = e
	}

	tiers := usecase.NewTierResolver(store,
		cfg.Curation.FilterThreshold, cfg.Curation.FavoriteOffset, cfg.Curation.MutedOffset,
		logging.Component(baseLogger, "tiers"))
	assembler := usecase.NewContextAssembler(embedder, store, cfg.RAG.SimilarityLimit,
		logging.Component(baseLogger, "rag"))
	shadow := usecase.NewShadowScorer(scorer, store, cfg.Experiment.ID, cfg.Experiment.Challenger,
		logging.Component(baseLogger, "shadow"))

	bot := telegram.NewBot(cfg.Telegram, logging.Component(baseLogger, "telegram"))

	curator := usecase.NewCurator(usecase.CuratorDeps{
		Source:    source,
		Store:     store,
		Scorer:    scorer,
		Messenger: bot,
		Tiers:     tiers,
		Context:   assembler,
		Shadow:    shadow,
		Logger:    logging.Component(baseLogger, "curator"),
	}, cfg.Curation.FetchHours, cfg.Curation.MaxTweets)

	feedback := usecase.NewFeedbackMachine(store, embedder, cfg.Feedback.UndoWindow,
		logging.Component(baseLogger, "feedback"))
	stats := usecase.NewAuthorStats(store)
	router := telegram.NewRouter(bot, feedback, tiers, stats, store)

	driver := scheduler.NewDailyScheduler(cfg.Scheduler, logging.Component(baseLogger, "scheduler"))

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		db:        db,
		curator:   curator,
		scheduler: usecase.NewScheduler(driver, curator),
		router:    router,
	}, nil
}

// RunOnce performs a single curation pass.
func (a *Application) RunOnce(ctx context.Context) error {
	stats := a.curator.Run(ctx)
	if len(stats.Errors) > 0 {
		return fmt.Errorf("curation finished with %d error(s): %s", len(stats.Errors), stats.Errors[0])
	}
	return nil
}

// RunScheduled starts the daily schedule and blocks on the feedback bot
// until the context is cancelled.
func (a *Application) RunScheduled(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer a.scheduler.Stop(context.Background())

	return a.runBot(ctx)
}

// RunBot serves only the feedback bot, without scheduled curation.
func (a *Application) RunBot(ctx context.Context) error {
	return a.runBot(ctx)
}

func (a *Application) runBot(ctx context.Context) error {
	a.logger.Info("feedback bot listening")
	if err := a.router.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// Close releases the database connection.
func (a *Application) Close() error {
	return a.db.Close()
}
