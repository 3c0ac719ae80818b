package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sandboxapi "github.com/trezcool/masomo-portal/apps/sandbox/echo"
	"github.com/trezcool/masomo-portal/core"
	logsvc "github.com/trezcool/masomo-portal/services/logger"
)

const shutdownTimeout = 5 * time.Second

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "SANDBOX : ", log.LstdFlags), conf)
	logger.Info(fmt.Sprintf("Sandbox initializing : version %q", conf.Build))

	vld, translator := core.NewValidator()
	server, err := sandboxapi.NewServer(&sandboxapi.Options{
		AppName:            conf.AppName,
		Address:            conf.Sandbox.Address,
		SecretKey:          conf.Sandbox.SecretKey,
		JWTExpirationDelta: conf.Sandbox.JWTExpirationDelta,
		Debug:              conf.Debug,
		Seed:               conf.Sandbox.Seed,
		Logger:             logger,
		Validate:           vld,
		Translator:         translator,
	})
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up sandbox: %v", err), err)
	}
	if conf.Sandbox.Seed {
		logger.Info(fmt.Sprintf("Database seeded, every user's password is %q", sandboxapi.SeedPassword))
	}
	defer logger.Info("Sandbox stopped")

	serverErrors := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}
}
