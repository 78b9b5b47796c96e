// Command dispatch runs notification categories once and exits, for use
// from an external scheduler such as cron.
//
//	dispatch -category drip_unlock
//	dispatch -category all
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ladyboss/academy/internal/config"
	"github.com/ladyboss/academy/internal/database"
	"github.com/ladyboss/academy/internal/logging"
	"github.com/ladyboss/academy/internal/media"
	"github.com/ladyboss/academy/internal/model"
	"github.com/ladyboss/academy/internal/push"
	"github.com/ladyboss/academy/internal/server"
)

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file")
	category := flag.String("category", "all", "category to run, or all")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall deadline")
	flag.Parse()

	if err := run(*envFile, *category, *timeout); err != nil {
		slog.Error("dispatch", "error", err)
		os.Exit(1)
	}
}

func run(envFile, category string, timeout time.Duration) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	categories := model.Categories
	if category != "all" {
		c, err := model.ParseCategory(category)
		if err != nil {
			return err
		}
		categories = []model.Category{c}
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	sender, err := push.NewMux(cfg.APNs, cfg.WebPush)
	if err != nil {
		return fmt.Errorf("configure push: %w", err)
	}

	srv := server.New(db, cfg, sender, media.StaticURLs{BaseURL: cfg.MediaBaseURL}, sender.VAPIDPublicKey(), logger)
	d := srv.Dispatcher()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var errs []error
	for _, c := range categories {
		result, err := d.Run(ctx, c)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c, err))
		}
		fmt.Printf("%-18s %-8s candidates=%d sent=%d failed=%d removed=%d\n",
			c, result.Status, result.Candidates, result.Sent, result.Failed, result.Removed)
		if errors.Is(err, push.ErrNotConfigured) {
			break
		}
	}
	return errors.Join(errs...)
}
