package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/sync/errgroup"

	"github.com/BatmanBruc/bat-bot-subscriptions/internal/config"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/dispatcher"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/handlers"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/logger"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/messenger"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/pricing"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/review"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/scheduler"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/server"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/subscriptions"
	"github.com/BatmanBruc/bat-bot-subscriptions/store"
	"github.com/BatmanBruc/bat-bot-subscriptions/types"
)

type backends struct {
	repo     types.Repository
	sessions types.SessionStore
	locks    types.LockStore
	marker   types.UpdateMarker
	ping     func(ctx context.Context) error
	close    func()
}

func main() {
	envFile := flag.String("env", "config.env", "env file loaded before the environment")
	cfgFile := flag.String("config", "config.yaml", "optional YAML config")
	flag.Parse()

	cfg, err := config.Load(*envFile, *cfgFile)
	if err != nil {
		logger.L.Error("load config failed", slog.Any("err", err))
		os.Exit(1)
	}
	logger.Init(logger.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		logger.L.Error("bot stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	be, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()

	catalog, err := pricing.NewCatalog(cfg.PlanOverrides())
	if err != nil {
		return err
	}

	// The default handler only fires in long-poll mode; it needs the
	// dispatcher, which needs the bot for outbound calls.
	var disp *dispatcher.Dispatcher
	httpClient := &http.Client{Timeout: cfg.Telegram.LongPollTimeout + 10*time.Second}
	b, err := bot.New(cfg.Telegram.Token,
		bot.WithHTTPClient(cfg.Telegram.LongPollTimeout, httpClient),
		bot.WithDefaultHandler(func(ctx context.Context, _ *bot.Bot, update *models.Update) {
			disp.Dispatch(ctx, update)
		}),
	)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	subs := subscriptions.NewService(be.repo, catalog, time.Now)
	rev := review.NewService(be.repo, catalog, cfg.Telegram.AdminIDs, time.Now)
	h := handlers.NewHandlers(handlers.Deps{
		Repo:          be.repo,
		Sessions:      be.sessions,
		Locks:         be.locks,
		Catalog:       catalog,
		Subscriptions: subs,
		Review:        rev,
		Messenger:     messenger.NewTelegram(b),
	}, handlers.Options{
		SkipLockTTL:         cfg.Store.SkipLockTTL,
		RenewalWindow:       cfg.Jobs.RenewalWindow,
		PendingLookback:     cfg.Jobs.PendingLookback,
		PaymentInstructions: cfg.Payment.Instructions,
		SupportContact:      cfg.Payment.SupportContact,
		OperatorChatID:      cfg.Telegram.OperatorChatID,
	})
	disp = dispatcher.New(be.marker, h, h)

	jobs := scheduler.NewScheduler([]scheduler.Job{
		{
			Name:       "expire_subscriptions",
			Interval:   cfg.Jobs.SweepInterval,
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				_, err := subs.ExpireDue(ctx)
				return err
			},
		},
		{Name: "renewal_reminders", Interval: cfg.Jobs.RenewalInterval, Run: h.SendRenewalReminders},
		{Name: "pending_reminders", Interval: cfg.Jobs.PendingInterval, Run: h.RemindPendingRequests},
	}, scheduler.Config{Locks: be.locks})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return jobs.Run(gctx) })

	switch cfg.Telegram.RunMode {
	case config.RunModeLongpoll:
		if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{}); err != nil {
			logger.TG.Warn("delete webhook failed", slog.String("event", "tg.delete_webhook_failed"), slog.Any("err", err))
		}
		logger.L.Info("bot started", slog.String("event", "bot.started"), slog.String("mode", config.RunModeLongpoll))
		g.Go(func() error {
			b.Start(gctx)
			return nil
		})
	default:
		if cfg.Webhook.URL != "" {
			if _, err := b.SetWebhook(ctx, &bot.SetWebhookParams{
				URL:         cfg.Webhook.URL,
				SecretToken: cfg.Webhook.SecretToken,
			}); err != nil {
				return fmt.Errorf("set webhook: %w", err)
			}
			logger.TG.Info("webhook registered", slog.String("event", "tg.webhook_set"), slog.String("url", cfg.Webhook.URL))
		}
		srv := server.New(disp, server.Options{
			Listen:        cfg.Webhook.Listen,
			Path:          cfg.Webhook.Path,
			SecretToken:   cfg.Webhook.SecretToken,
			HandleTimeout: cfg.Webhook.HandleTimeout,
			HealthCheck:   be.ping,
		})
		logger.L.Info("bot started", slog.String("event", "bot.started"), slog.String("mode", config.RunModeWebhook))
		g.Go(func() error { return srv.Run(gctx) })
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	if cfg.Store.Driver == config.StoreMemory {
		logger.DB.Warn("using in-memory store; data is lost on restart", slog.String("event", "store.memory"))
		mem := store.NewMemoryStore(cfg.Store.SessionTTL)
		return &backends{repo: mem, sessions: mem, locks: mem, marker: mem, close: func() {}}, nil
	}

	rdb, err := store.NewRedisClient(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
	if err != nil {
		return nil, err
	}
	pg, err := store.NewPostgresStore(ctx, cfg.Postgres.DSN)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	state := store.NewRedisStateStore(rdb)
	return &backends{
		repo:     pg,
		sessions: store.NewRedisSessionStore(rdb, cfg.Store.SessionTTL),
		locks:    state,
		marker:   state,
		ping: func(ctx context.Context) error {
			if err := rdb.Ping(ctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			if err := pg.Ping(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			return nil
		},
		close: func() {
			pg.Close()
			_ = rdb.Close()
		},
	}, nil
}
