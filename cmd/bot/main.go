package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tg_resumo_bot/internal/ai"
	"tg_resumo_bot/internal/autodelete"
	"tg_resumo_bot/internal/commands"
	"tg_resumo_bot/internal/config"
	"tg_resumo_bot/internal/dispatch"
	"tg_resumo_bot/internal/domain"
	"tg_resumo_bot/internal/health"
	"tg_resumo_bot/internal/logging"
	"tg_resumo_bot/internal/matcher"
	"tg_resumo_bot/internal/notify"
	"tg_resumo_bot/internal/session"
	"tg_resumo_bot/internal/store"
	"tg_resumo_bot/internal/summary"
	"tg_resumo_bot/internal/telegram"
	"tg_resumo_bot/internal/wizard"
)

const (
	mongoConnectTimeout     = 10 * time.Second
	mongoIndexTimeout       = 5 * time.Second
	mongoDisconnectTimeout  = 5 * time.Second
	healthShutdownTimeout   = 5 * time.Second
	telegramShutdownTimeout = 10 * time.Second

	summaryTick = time.Minute
)

// messageCache adapts the message log to the admin cache-clear command. It
// drops everything recorded so far.
type messageCache struct {
	log *store.MessageLog
}

func (c *messageCache) Clear(ctx context.Context) (int64, error) {
	return c.log.Prune(ctx, time.Now())
}

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	logger.WithFields(logging.Fields{
		"event":    "startup",
		"mongo_db": cfg.MongoDB,
	}).Info("configuration loaded")

	connectCtx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	mongoManager, err := store.NewManager(connectCtx, cfg)
	cancel()
	if err != nil {
		logger.WithError(err).Error("mongo connection error")
		fmt.Fprintf(os.Stderr, "mongo connection error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "mongo_connect").Info("connected to mongo")

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), mongoIndexTimeout)
	if err := mongoManager.EnsureBaseIndexes(indexCtx); err != nil {
		cancelIndexes()
		logger.WithError(err).Error("mongo index setup error")
		fmt.Fprintf(os.Stderr, "mongo index setup error: %v\n", err)
		os.Exit(1)
	}
	cancelIndexes()

	logger.WithField("event", "mongo_indexes").Info("ensured base mongo indexes")

	summaries := store.NewMongoSummaryStore(mongoManager.SummaryGroups(), mongoManager.SummarySettings())
	groups := store.NewGroupRegistry(mongoManager.Groups(), logger)
	messageLog := store.NewMessageLog(mongoManager.MessageLog(), logger)

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aiClient, err := ai.New(signalCtx, cfg.GoogleAPIKey, cfg.GenAIModel, logger)
	if err != nil {
		logger.WithError(err).Error("genai client setup error")
		fmt.Fprintf(os.Stderr, "genai client setup error: %v\n", err)
		os.Exit(1)
	}

	sessions := session.NewStore(session.DefaultTTL)
	wizardEngine := wizard.NewEngine(sessions, summaries, aiClient, cfg.GenAIModel, logger)

	tgClient, err := telegram.NewClient(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("telegram client setup error")
		fmt.Fprintf(os.Stderr, "telegram client setup error: %v\n", err)
		os.Exit(1)
	}

	notifier := notify.NewAdmin(tgClient, cfg.BotAdminID, logger)
	deleteQueue := autodelete.New(tgClient, notifier, cfg.SweepInterval, logger)

	registry := commands.WithStickerHashes(commands.Defaults(), map[domain.CommandKind][]string{
		domain.KindResumo:   cfg.ResumoStickerHashes,
		domain.KindAyubNews: cfg.AyubNewsStickerHashes,
	})
	handlers := commands.NewHandlers(commands.Deps{
		Client:        tgClient,
		AI:            aiClient,
		Transcriber:   aiClient,
		Images:        aiClient,
		History:       messageLog,
		Wizard:        wizardEngine,
		Cache:         &messageCache{log: messageLog},
		AutoDelete:    deleteQueue,
		Registry:      registry,
		DefaultModel:  cfg.GenAIModel,
		DeleteTimeout: cfg.DeleteTimeout,
		Logger:        logger,
	})

	router := dispatch.NewRouter(dispatch.Config{
		Wizard:        wizardEngine,
		Matcher:       matcher.New(registry, tgClient, cfg.BotAdminID, logger),
		Executor:      handlers,
		Recorder:      messageLog,
		Groups:        groups,
		Notifier:      notifier,
		AutoDelete:    deleteQueue,
		Client:        tgClient,
		DeleteTimeout: cfg.DeleteTimeout,
		Logger:        logger,
	})
	tgClient.SetRouter(router)

	scheduler := summary.NewScheduler(summary.Config{
		Store:      summaries,
		Groups:     groups,
		History:    messageLog,
		AI:         aiClient,
		Client:     tgClient,
		Notifier:   notifier,
		AutoDelete: deleteQueue,
		Tick:       summaryTick,
		Logger:     logger,
	})

	healthServer := health.NewServer(cfg.HTTPPort, mongoManager, logger)
	go func() {
		if err := healthServer.ListenAndServe(); err != nil {
			logger.WithError(err).Error("health server error")
		}
	}()

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	go deleteQueue.Run(workerCtx)
	go scheduler.Run(workerCtx)

	telegramCtx, cancelTelegram := context.WithCancel(context.Background())
	tgDone := make(chan struct{})

	go func() {
		tgClient.Start(telegramCtx)
		close(tgDone)
	}()

	select {
	case <-signalCtx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping telegram polling")
	case <-tgDone:
		logger.WithField("event", "telegram_stopped_early").Warn("telegram client stopped before shutdown signal")
	}

	cancelTelegram()
	cancelWorkers()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), telegramShutdownTimeout)
	select {
	case <-tgDone:
	case <-waitCtx.Done():
		logger.WithField("event", "telegram_shutdown_timeout").Warn("timed out waiting for telegram client to stop")
	}
	cancelWait()

	healthCtx, cancelHealth := context.WithTimeout(context.Background(), healthShutdownTimeout)
	if err := healthServer.Shutdown(healthCtx); err != nil {
		logger.WithError(err).Error("health server shutdown error")
	}
	cancelHealth()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	if err := mongoManager.Close(shutdownCtx); err != nil {
		logger.WithError(err).Error("mongo disconnect error")
	} else {
		logger.WithField("event", "mongo_disconnect").Info("mongo client disconnected")
	}
	cancelShutdown()

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}
