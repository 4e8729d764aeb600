// Package main contains the entrypoint for the ScribrBot webhook service.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgard/scribrbot/internal/bot"
	"github.com/edgard/scribrbot/internal/bot/tasks"
	"github.com/edgard/scribrbot/internal/config"
	"github.com/edgard/scribrbot/internal/database"
	"github.com/edgard/scribrbot/internal/docstore"
	"github.com/edgard/scribrbot/internal/gemini"
	"github.com/edgard/scribrbot/internal/logger"
	"github.com/edgard/scribrbot/internal/scribe"
	"github.com/edgard/scribrbot/internal/server"
	"github.com/edgard/scribrbot/internal/summary"
	"github.com/edgard/scribrbot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run builds every process-wide component once, serves until ctx is
// cancelled and returns the exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	docs, err := docstore.NewOsStore(cfg.Storage.Root, cfg.Storage.PublicBaseURL, log)
	if err != nil {
		log.Error("Failed to open document store", "root", cfg.Storage.Root, "error", err)
		return 1
	}

	tmpl, err := summary.LoadTemplate(cfg.Summary.TemplatePath)
	if err != nil {
		log.Error("Failed to load summary template", "path", cfg.Summary.TemplatePath, "error", err)
		return 1
	}
	renderer := summary.NewRenderer(tmpl, cfg.Location())

	var digester summary.Digester
	if cfg.Gemini.APIKey != "" {
		d, err := gemini.NewDigester(ctx, cfg.Gemini, log)
		if err != nil {
			log.Error("Failed to initialize Gemini digester", "error", err)
			return 1
		}
		digester = d
	} else {
		log.Info("Gemini API key not set, summaries will have no digest")
	}
	generator := summary.NewGenerator(store, docs, renderer, digester, log)

	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}
	if cfg.Telegram.BotUsername == "" {
		me, err := tg.GetMe(ctx)
		if err != nil {
			log.Error("Failed to get bot info", "error", err)
			return 1
		}
		cfg.Telegram.BotUsername = me.Username
		log.Info("Retrieved bot info", "bot_id", me.ID, "bot_username", me.Username)
	}

	webhook := scribe.NewWebhookHandler(scribe.HandlerDeps{
		Logger:     log,
		Config:     cfg,
		Store:      store,
		Summarizer: generator,
		Notifier:   telegram.NewNotifier(tg, log),
	})

	srv := server.New(server.Deps{
		Logger:    log,
		Config:    cfg.Server,
		Secret:    cfg.Telegram.WebhookSecret,
		Webhook:   webhook,
		Documents: docs.PublicHandler(),
		Health:    store,
	})

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger: log,
		Store:  store,
	}))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	app := bot.NewBot(log, srv, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	return 0
}
