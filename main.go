package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"busbook/internal/app"
	"busbook/internal/config"
	"busbook/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	env := config.LoadEnv()
	logger := utils.InitLogger(env.IsProduction())
	defer func() { _ = logger.Sync() }()

	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, env)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return
	}
	logger.Info("server stopped cleanly")
}
