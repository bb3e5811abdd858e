package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"

	"github.com/DrMneff/digital-unlock-oasis/internal/config"
	"github.com/DrMneff/digital-unlock-oasis/internal/http/handlers"
	applog "github.com/DrMneff/digital-unlock-oasis/internal/log"
	"github.com/DrMneff/digital-unlock-oasis/internal/notify"
	"github.com/DrMneff/digital-unlock-oasis/internal/repos"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

// run owns every deferred cleanup; failures are logged before returning.
func run() error {
	cfg := config.Load()

	// Optional file logging
	if cfg.LogFile != "" && cfg.LogFile != "-" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			applog.Error(nil, "log.file.open", err, map[string]any{"path": cfg.LogFile})
		} else {
			defer f.Close()
			applog.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	}
	defer func() { _ = applog.Sync() }()

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		applog.Error(nil, "db.open", err, map[string]any{"dsn": cfg.DBDSN})
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	if cfg.AdminPassword != "" {
		if err := repos.SeedAdmin(db, uuid.NewString(), cfg.AdminEmail, cfg.AdminPassword); err != nil {
			applog.Error(nil, "seed.admin", err, map[string]any{"email": cfg.AdminEmail})
			return fmt.Errorf("seed admin: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Notifications: Redis outbox + relay when configured, else direct async calls.
	var notifier notify.Dispatcher = notify.Nop{}
	var async *notify.Async
	sender := notify.NewFunctionClient(cfg.NotifyBaseURL, cfg.NotifyAPIKey)
	switch {
	case cfg.RedisAddr != "":
		rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			applog.Error(nil, "redis.ping", err, map[string]any{"addr": cfg.RedisAddr})
			return fmt.Errorf("ping redis: %w", err)
		}
		notifier = notify.NewOutbox(rdb, cfg.NotifyStream)
		relay := notify.NewRelay(rdb, sender, cfg.NotifyStream, cfg.NotifyGroup, cfg.NotifyConsumer)
		go relay.Run(ctx)
	case cfg.NotifyBaseURL != "":
		async = notify.NewAsync(sender, 10*time.Second)
		notifier = async
	default:
		applog.Info(nil, "notify.disabled", nil)
	}

	deps := handlers.NewDeps(db, cfg, notifier)
	app, err := handlers.NewApp(deps, cfg)
	if err != nil {
		applog.Error(nil, "app.init", err, nil)
		return fmt.Errorf("init app: %w", err)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			applog.Error(nil, "server.shutdown", err, nil)
		}
	}()

	applog.Info(nil, "server.start", map[string]any{"port": cfg.Port})
	listenErr := app.Listen(":" + cfg.Port)
	if listenErr != nil {
		applog.Error(nil, "server.listen", listenErr, nil)
	}
	if async != nil {
		async.Wait()
	}
	applog.Info(nil, "server.stop", nil)
	if listenErr != nil {
		return fmt.Errorf("listen: %w", listenErr)
	}
	return nil
}
