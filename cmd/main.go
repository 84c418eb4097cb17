// Package main wires the pull request build watcher service.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"pr-build-watcher/config"
	"pr-build-watcher/internal/builds"
	ghgateway "pr-build-watcher/internal/gateway/github"
	"pr-build-watcher/internal/poller"
	"pr-build-watcher/internal/reconciler"
	"pr-build-watcher/internal/store"
	"pr-build-watcher/internal/transport/http/handlers"
	"pr-build-watcher/internal/transport/http/middleware"
	"pr-build-watcher/internal/trigger"
	"pr-build-watcher/pkg/logger"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		panic(err)
	}

	gw, err := ghgateway.New(ctx, log, cfg.GitHub)
	if err != nil {
		log.Errorw("gateway initialization error", "error", err)
		return
	}

	snap, err := store.NewSnapshotter(ctx, cfg.Store.Backend, log, cfg)
	if err != nil {
		log.Errorw("snapshot backend initialization error", "error", err)
		return
	}
	if err := snap.OnStart(ctx); err != nil {
		log.Errorw("snapshot backend start error", "error", err)
		return
	}
	defer func() {
		_ = snap.OnStop(context.Background())
	}()

	status, err := builds.NewStatusPublisher(log, gw, cfg.Status)
	if err != nil {
		log.Errorw("status publisher initialization error", "error", err)
		return
	}
	lifecycle := builds.New(
		log, gw, trigger.NewLogPort(log), status,
		builds.NewCommentUpserter(log, gw),
		cfg.Trigger, cfg.Status.UnstableAs,
	)

	repo := reconciler.NewRepository(
		log, cfg.GitHub.RepoName(), gw, store.New(), snap, lifecycle,
		reconciler.RetryPolicy{
			MaxAttempts: cfg.Trigger.MergeablePollAttempts,
			Delay:       cfg.Trigger.MergeablePollDelay,
		},
		cfg.Trigger.BuildOnAnyPass,
	)
	if err := repo.Start(ctx); err != nil {
		log.Errorw("repository start error", "error", err)
		return
	}

	if cfg.Webhook.Enabled && cfg.Webhook.AutoRegister {
		events := []string{"pull_request", "issue_comment"}
		if err := gw.CreateWebhook(ctx, cfg.Webhook.PublicURL, events); err != nil {
			log.Errorw("webhook registration failed", "error", err)
		}
	}

	if cfg.Poll.Enabled {
		p := poller.New(log, repo, cfg.Poll.Interval, cfg.Poll.PassTimeout)
		go p.Run(ctx)
	}

	serv := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.RequestTimeout,
		WriteTimeout: cfg.Server.RequestTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	serv.Use(recover.New())
	serv.Use(requestid.New())
	serv.Use(middleware.RequestLogger(log))

	serv.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	if cfg.Webhook.Enabled {
		h := handlers.NewHandler(log, repo, cfg.Webhook, cfg.Trigger.Phrase)
		h.Register(serv)
	}

	go func() {
		if err := serv.Listen(cfg.ServerAddr()); err != nil {
			log.Errorw("failed to start server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = serv.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warnw("server shutdown timeout", "timeout", cfg.Server.ShutdownTimeout)
	}
}
