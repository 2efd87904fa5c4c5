package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/farmdirect/marketplace/internal/analytics"
	"github.com/farmdirect/marketplace/internal/authn"
	"github.com/farmdirect/marketplace/internal/config"
	"github.com/farmdirect/marketplace/internal/httpx"
	"github.com/farmdirect/marketplace/internal/identity"
	"github.com/farmdirect/marketplace/internal/inventory"
	kafkax "github.com/farmdirect/marketplace/internal/kafka"
	"github.com/farmdirect/marketplace/internal/lock"
	"github.com/farmdirect/marketplace/internal/notify"
	"github.com/farmdirect/marketplace/internal/orders"
	"github.com/farmdirect/marketplace/internal/postgres"
	"github.com/farmdirect/marketplace/internal/redisx"
	"github.com/farmdirect/marketplace/internal/token"
)

// eventRouter fans order events out to per-topic producers based on the
// x-event-type header the service attaches.
type eventRouter struct {
	created *kafkax.Producer
	status  *kafkax.Producer
}

func (r *eventRouter) Publish(key, value []byte, headers ...kafkago.Header) {
	for _, h := range headers {
		if h.Key == "x-event-type" && string(h.Value) == orders.EventOrderStatusChanged {
			r.status.Publish(key, value, headers...)
			return
		}
	}
	r.created.Publish(key, value, headers...)
}

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.WithError(err).Fatal("db connect")
	}
	defer db.Close()
	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		log.WithError(err).Fatal("db migrate")
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, log)
	pCreated.Start(ctx)
	pStatus := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024, log)
	pStatus.Start(ctx)
	events := &eventRouter{created: pCreated, status: pStatus}

	// Services
	issuer := token.NewIssuer(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	users := identity.NewService(identity.NewPostgresStore(db))

	var codes notify.CodeNotifier = &notify.LogNotifier{Log: log}
	if cfg.SMTPHost != "" {
		codes = notify.NewEmailNotifier(notify.SMTPConfig{
			Host: cfg.SMTPHost, Port: cfg.SMTPPort,
			User: cfg.SMTPUser, Pass: cfg.SMTPPass, From: cfg.SMTPFrom,
		})
	}
	challenges := authn.NewService(authn.NewPostgresStore(db), codes, issuer, log, cfg.OTPExpiry, cfg.OTPMaxAttempts)

	locks := lock.New(rdb, cfg.LockTTL)
	ledger := inventory.NewLedger(inventory.NewPostgresStore(db))
	catalog := orders.NewPostgresCatalog(db)
	orderSvc := orders.NewService(orders.NewPostgresStore(db), catalog, ledger, locks, events, log, cfg.ServiceName)

	// HTTP
	router := httpx.NewRouter()
	(&httpx.AuthHandler{
		Users:      users,
		Challenges: challenges,
		Issuer:     issuer,
		Analytics:  analytics.NewRecorder(rdb),
		Log:        log,
		Secure:     cfg.Environment == "production",
	}).Register(router)
	(&httpx.OrdersHandler{Service: orderSvc, Redis: rdb, Log: log}).Register(router, issuer)
	(&httpx.InventoryHandler{Ledger: ledger, Catalog: catalog, Locks: locks}).Register(router, issuer)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pCreated.Close()
	pStatus.Close()
	cancel()
	pCreated.WaitClosed()
	pStatus.WaitClosed()
}
