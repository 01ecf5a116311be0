package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"grantwell/internal/config"
	"grantwell/internal/notify"
	"grantwell/internal/store"
	"grantwell/internal/telemetry"
)

func main() {
	once := flag.Bool("once", false, "run a single sweep pass and exit (for external cron)")
	flag.Parse()

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	st, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.WithError(err).Fatal("connect postgres")
	}
	defer st.Close()

	if err := st.RunMigrations(ctx); err != nil {
		log.WithError(err).Fatal("migrations")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	dispatcher := notify.NewDispatcher(st, redisClient, cfg.OutboxKey, cfg.ReminderDays)
	sweeper := notify.NewSweeper(st, dispatcher, cfg.SweepInterval)

	if *once {
		if err := sweeper.RunOnce(ctx); err != nil {
			log.WithError(err).Fatal("sweep pass")
		}
		return
	}

	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
			log.WithError(err).Warn("metrics server stopped")
		}
	}()

	log.WithField("interval", cfg.SweepInterval).Info("sweeper started")
	if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("sweeper stopped")
	}
}
