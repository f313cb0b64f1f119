package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/auto-inspect-bot/internal/bot"
	"github.com/raine/auto-inspect-bot/internal/collector"
	"github.com/raine/auto-inspect-bot/internal/condition"
	"github.com/raine/auto-inspect-bot/internal/config"
	"github.com/raine/auto-inspect-bot/internal/fetch"
	"github.com/raine/auto-inspect-bot/internal/inspect"
	"github.com/raine/auto-inspect-bot/internal/server"
	"github.com/raine/auto-inspect-bot/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const logFileName = "auto-inspect-bot.log"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Try to load existing .env and config files
	config.LoadEnvFile()

	// Check if required config is missing
	if missing := config.Load().MissingRequired(); len(missing) > 0 {
		if config.IsInteractiveTerminal() {
			// Interactive terminal - run setup wizard
			if !config.RunSetupWizard() {
				config.WaitOnWindows()
				os.Exit(1)
			}
		} else {
			// Non-interactive (systemd, Render, etc.) - fail with clear error
			config.FatalWithWait("missing required config: %s", strings.Join(missing, ", "))
		}
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		config.FatalWithWait("invalid config: %v", err)
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	// JOURNAL_STREAM is set by systemd when running as a service.
	// Skip file logging under systemd (journald handles it, and ProtectSystem=strict
	// makes the working directory read-only).
	if _, underSystemd := os.LookupEnv("JOURNAL_STREAM"); underSystemd || cfg.Render {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		// Local development: log to both stderr and file
		logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			config.FatalWithWait("failed to open log file: %v", err)
		}
		defer logFile.Close()

		consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
		fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
		log.Logger = log.Output(io.MultiWriter(consoleWriter, fileWriter))

		log.Info().Str("logFile", logFileName).Msg("logging to file")
	}

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.Open(ctx, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		config.FatalWithWait("failed to initialize listing store: %v", err)
	}
	defer store.Close()

	client := fetch.NewClient(fetch.ClientOpts{
		Timeout: cfg.RequestTimeout,
		Retries: cfg.MaxRetries,
		Delay:   cfg.ParsingDelay,
	})

	// Photo features are cached by content hash in the listing store
	extractor := condition.NewCachedAnalyzer(condition.PixelExtractor{}, store)
	inspector := inspect.NewService(inspect.ServiceOpts{
		Store:           store,
		Analyzer:        condition.NewAnalyzer(extractor, cfg.MaxImagesToAnalyze),
		Documents:       client,
		Images:          client.FetchImage,
		ComparableLimit: cfg.ComparableLimit,
	})

	tg, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		config.FatalWithWait("failed to initialize telegram bot: %v", err)
	}
	tg.Debug = false
	log.Info().Str("username", tg.Self.UserName).Msg("authorized on account")

	// Register bot commands for Telegram's command menu
	bot.RegisterCommands(tg)

	g, ctx := errgroup.WithContext(ctx)

	// Run bot update loop
	g.Go(func() error {
		return runBot(ctx, tg, inspector)
	})

	// Health check and JSON API
	g.Go(func() error {
		return server.New(cfg.Port, inspector).Run(ctx)
	})

	// Refresh stale listings and collect seed URLs in the background
	refresher := collector.NewService(inspector, store, collector.Opts{
		Interval:   cfg.RefreshInterval,
		StaleAfter: cfg.StaleAfter,
		Batch:      cfg.RefreshBatch,
		Delay:      cfg.ParsingDelay,
		StartDelay: collector.DefaultStartDelay,
		SeedURLs:   cfg.SeedURLs,
	})
	g.Go(func() error {
		return refresher.Run(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}

func runBot(ctx context.Context, tg *tgbotapi.BotAPI, inspector bot.Inspector) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := tg.GetUpdatesChan(updateConfig)

	b := bot.NewBot(tg, inspector)
	defer b.Shutdown()

	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping bot update loop")
			tg.StopReceivingUpdates()
			log.Info().Msg("waiting for active handlers to finish")
			wg.Wait()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				log.Warn().Msg("updates channel closed")
				wg.Wait()
				return nil
			}
			wg.Add(1)
			go func(u tgbotapi.Update) {
				defer wg.Done()
				b.HandleUpdate(ctx, u)
			}(update)
		}
	}
}
