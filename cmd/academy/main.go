package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ladyboss/academy/internal/config"
	"github.com/ladyboss/academy/internal/database"
	"github.com/ladyboss/academy/internal/handler"
	"github.com/ladyboss/academy/internal/logging"
	"github.com/ladyboss/academy/internal/media"
	"github.com/ladyboss/academy/internal/push"
	"github.com/ladyboss/academy/internal/server"
)

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file")
	genVAPID := flag.Bool("gen-vapid", false, "print a new VAPID key pair and exit")
	flag.Parse()

	if *genVAPID {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			slog.Error("generate VAPID keys", "error", err)
			os.Exit(1)
		}
		fmt.Printf("VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if cfg.JWTSecret == "" {
		logger.Error("ACADEMY_JWT_SECRET is required")
		os.Exit(1)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	sender, err := push.NewMux(cfg.APNs, cfg.WebPush)
	if err != nil {
		logger.Error("configure push", "error", err)
		os.Exit(1)
	}
	if err := sender.Ready(); err != nil {
		// Runs still execute and record the failure so it shows up in the run log.
		logger.Warn("APNs credentials missing, dispatch runs will fail", "error", err)
	}

	urls, err := mediaURLs(cfg)
	if err != nil {
		logger.Error("configure media", "error", err)
		os.Exit(1)
	}

	srv := server.New(db, cfg, sender, urls, sender.VAPIDPublicKey(), logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Manual dispatch triggers answer after the run finishes.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv.Scheduler().Start(ctx)

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.Cooldown().Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("academy starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	srv.Scheduler().Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

// mediaURLs presigns from the bucket when one is configured and otherwise
// joins media keys onto a static base URL.
func mediaURLs(cfg *config.Config) (handler.StreamURLs, error) {
	if cfg.Media.Enabled() {
		urls, err := media.NewS3URLs(cfg.Media)
		if err != nil {
			return nil, err
		}
		return urls, nil
	}
	return media.StaticURLs{BaseURL: cfg.MediaBaseURL}, nil
}
