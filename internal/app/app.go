// Package app assembles the engine from configuration and runs the HTTP
// server, the notification router and the periodic jobs together.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"busbook/internal/cache"
	"busbook/internal/config"
	"busbook/internal/db"
	api "busbook/internal/http"
	"busbook/internal/notify"
	"busbook/internal/repositories"
	"busbook/internal/repositories/memory"
	"busbook/internal/utils"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type App struct {
	Env      config.Env
	Store    repositories.Store
	Services Services
	Router   *gin.Engine

	db       *sql.DB
	redis    *redis.Client
	pubsub   *gochannel.GoChannel
	notifier *message.Router
	cron     *cron.Cron
}

// New connects storage and builds every component. Nothing runs until Run.
func New(ctx context.Context, env config.Env) (*App, error) {
	a := &App{Env: env}

	if env.UsesMemoryStore() {
		a.Store = memory.New()
		utils.Logger().Warn("using in-memory store; data is lost on restart")
	} else {
		conn, err := config.ConnectDB(env)
		if err != nil {
			return nil, err
		}
		a.db = conn
		if env.DBSchema {
			if err := db.EnsureSchema(ctx, conn); err != nil {
				a.Close()
				return nil, fmt.Errorf("ensure schema: %w", err)
			}
		} else if missing := db.MissingTables(ctx, conn); len(missing) > 0 {
			a.Close()
			return nil, fmt.Errorf("missing tables %v, set DB_AUTO_MIGRATE=true or create them", missing)
		}
		a.Store = repositories.NewMySQLStore(conn)
	}

	var snapshots cache.SnapshotCache = cache.NewMemory(env.SnapshotTTL)
	if env.RedisAddr != "" {
		a.redis = cache.NewRedisClient(env.RedisAddr, env.RedisPassword, env.RedisDB)
		snapshots = cache.NewRedis(a.redis, env.SnapshotTTL)
	}

	wmLogger := notify.NewZapLogger(utils.Logger())
	a.pubsub = notify.NewPubSub(wmLogger)
	router, err := notify.NewRouter(a.pubsub, notify.LogSink, wmLogger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.notifier = router

	registry := NewRegistry(env, a.Store)
	a.Services, err = Wire(env, a.Store, registry, snapshots, notify.NewDispatcher(a.pubsub), nil)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("wire services: %w", err)
	}

	a.cron = cron.New()
	if err := a.schedule(); err != nil {
		a.Close()
		return nil, err
	}

	handler := NewHandler(env, a.Services, a.Store)
	if a.db != nil {
		handler.Ping = config.PingDB
	}
	a.Router = api.NewRouter(env, handler)

	utils.LogEvent(ctx, "app", "init", "engine ready",
		zap.Bool("memory_store", env.UsesMemoryStore()),
		zap.Bool("redis_cache", a.redis != nil),
		zap.Any("providers", registry.Providers()))
	return a, nil
}

func (a *App) schedule() error {
	if _, err := a.cron.AddFunc(a.Env.SweepSchedule, a.job("sweep_stale", a.Services.Sweep.SweepStale)); err != nil {
		return fmt.Errorf("sweep schedule: %w", err)
	}
	if _, err := a.cron.AddFunc(a.Env.ReminderSchedule, a.job("send_reminders", a.Services.Sweep.SendReminders)); err != nil {
		return fmt.Errorf("reminder schedule: %w", err)
	}
	return nil
}

func (a *App) job(name string, fn func(context.Context) (int, error)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := fn(ctx)
		if err != nil {
			utils.LogError(ctx, "cron", name, err)
			return
		}
		if n > 0 {
			utils.LogEvent(ctx, "cron", name, "job finished", zap.Int("count", n))
		}
	}
}

// Run serves until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Env.AppAddr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		utils.Logger().Info("http server listening", zap.String("addr", a.Env.AppAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.notifier.Run(ctx)
	})
	g.Go(func() error {
		a.cron.Start()
		<-ctx.Done()
		<-a.cron.Stop().Done()
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		utils.Logger().Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close releases connections. Safe after a partial New and without Run.
func (a *App) Close() {
	// a router that never ran has no handler goroutines to wait for
	if a.notifier != nil && a.notifier.IsRunning() {
		_ = a.notifier.Close()
	}
	if a.pubsub != nil {
		_ = a.pubsub.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		config.CloseDB()
	}
}
