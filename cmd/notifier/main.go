package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/farmdirect/marketplace/internal/analytics"
	"github.com/farmdirect/marketplace/internal/config"
	"github.com/farmdirect/marketplace/internal/identity"
	kafkax "github.com/farmdirect/marketplace/internal/kafka"
	"github.com/farmdirect/marketplace/internal/notify"
	"github.com/farmdirect/marketplace/internal/orders"
	"github.com/farmdirect/marketplace/internal/postgres"
	"github.com/farmdirect/marketplace/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	if cfg.Environment == "production" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.WithError(err).Fatal("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	var mail notify.OrderNotifier = &notify.LogNotifier{Log: log}
	if cfg.SMTPHost != "" {
		mail = notify.NewEmailNotifier(notify.SMTPConfig{
			Host: cfg.SMTPHost, Port: cfg.SMTPPort,
			User: cfg.SMTPUser, Pass: cfg.SMTPPass, From: cfg.SMTPFrom,
		})
	}

	w := &notify.Worker{
		Users:     identity.NewPostgresStore(db),
		Mail:      mail,
		Analytics: analytics.NewRecorder(rdb),
		Redis:     rdb,
		Log:       log,
		Service:   cfg.ServiceName + "-notifier",
	}

	g, ctx := errgroup.WithContext(ctx)
	for topic, handler := range map[string]kafkax.Handler{
		orders.TopicOrderCreated:       w.HandleOrderCreated,
		orders.TopicOrderStatusChanged: w.HandleStatusChanged,
	} {
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, topic, cfg.ConsumerWorkers, log)
		g.Go(func() error {
			log.WithFields(logrus.Fields{
				"group": cfg.ConsumerGroup, "topic": topic, "workers": cfg.ConsumerWorkers,
			}).Info("consumer started")
			return cons.Start(ctx, handler)
		})
	}

	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("consumer exit")
	}
	log.Info("shutting down")
}
