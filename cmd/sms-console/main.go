package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/noah-isme/student-management/internal/app"
	"github.com/noah-isme/student-management/internal/console"
	"github.com/noah-isme/student-management/pkg/config"
	"github.com/noah-isme/student-management/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.NewConsole(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.Build(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to initialise application", zap.Error(err))
	}
	defer application.Close() //nolint:errcheck

	c := console.New(os.Stdin, os.Stdout, console.Services{
		Students: application.Students,
		Fees:     application.Fees,
		Courses:  application.Courses,
		Exporter: application.Exports,
	}, logr)
	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		logr.Error("console stopped", zap.Error(err))
	}
}
