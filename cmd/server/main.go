package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"campusreg/internal/catalog"
	"campusreg/internal/datasync"
	"campusreg/internal/identity"
	jwttoken "campusreg/internal/jwt_token"
	"campusreg/internal/membership"
	"campusreg/internal/notify"
	payadapters "campusreg/internal/payment/adapters"
	"campusreg/internal/payment/gateway"
	payhandler "campusreg/internal/payment/handler"
	paymetrics "campusreg/internal/payment/metrics"
	paymentservice "campusreg/internal/payment/service"
	paystore "campusreg/internal/payment/store"
	"campusreg/internal/platform/config"
	"campusreg/internal/platform/dynamo"
	"campusreg/internal/platform/httpserver"
	"campusreg/internal/platform/logger"
	"campusreg/internal/platform/metrics"
	"campusreg/internal/platform/postgres"
	platformredis "campusreg/internal/platform/redis"
	reghandler "campusreg/internal/registration/handler"
	regmetrics "campusreg/internal/registration/metrics"
	regservice "campusreg/internal/registration/service"
	regstore "campusreg/internal/registration/store"
	teamstore "campusreg/internal/team/store"
	httptransport "campusreg/internal/transport/http"
)

// app holds the wired backends and what must be closed on shutdown.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	db      *sql.DB
	redis   *platformredis.Client
	closers []func()
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// main wires the backends selected by configuration, exposes the HTTP router,
// and shuts down gracefully on SIGINT/SIGTERM.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, log: log}
	defer a.close()
	if err := run(ctx, a); err != nil {
		log.Error("server stopped", "error", err)
		a.close()
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app) error {
	cfg, log := a.cfg, a.log

	if err := a.openDatabases(ctx); err != nil {
		return err
	}

	records, err := a.recordStores()
	if err != nil {
		return err
	}
	memberships, err := a.membershipIndex(ctx)
	if err != nil {
		return err
	}
	feed, err := a.liveFeed()
	if err != nil {
		return err
	}
	sink, err := a.notificationSink(ctx)
	if err != nil {
		return err
	}

	dispatcher := notify.NewDispatcher(sink,
		notify.WithLogger(log),
		notify.WithCounters(
			promauto.NewCounter(prometheus.CounterOpts{
				Name: "campusreg_notifications_sent_total",
				Help: "Notifications delivered to the configured sink",
			}),
			promauto.NewCounter(prometheus.CounterOpts{
				Name: "campusreg_notifications_failed_total",
				Help: "Notifications dropped after a sink failure",
			}),
		),
	)
	dispatchCtx, stopDispatch := context.WithCancel(context.WithoutCancel(ctx))
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		_ = dispatcher.Run(dispatchCtx)
	}()
	a.onClose(func() {
		stopDispatch()
		<-dispatchDone
	})

	gw, err := gateway.New(cfg.Payment)
	if err != nil {
		return err
	}

	stores := regservice.Stores{
		Registrations: records.registrations,
		Teams:         records.teams,
		Memberships:   memberships,
		Payments:      records.paymentRecords,
	}
	var regTx regservice.RegistrationTx = regservice.NewShardedTx(stores, cfg.Registration.TxTimeout)
	if a.db != nil && cfg.Stores.Records == config.BackendPostgres {
		regTx = newRegistrationPostgresTx(a.db, stores, cfg.Registration.TxTimeout)
	}

	fetcher := datasync.NewRegistryFetcher(memberships, records.catalog)
	broadcaster := datasync.NewBroadcaster(fetcher, feed, log)
	liveManager := datasync.NewManager(datasync.NewCache(), fetcher, feed, log)

	registrations := regservice.New(regTx, stores, records.catalog,
		regservice.WithLogger(log),
		regservice.WithMetrics(regmetrics.New()),
		regservice.WithNotifier(dispatcher),
		regservice.WithPublisher(broadcaster),
		regservice.WithDirectory(records.directory),
		regservice.WithPaymentVerifier(paymentservice.NewVerifier(records.orders)),
	)
	gate := paymentservice.New(records.orders, records.catalog, payadapters.NewRegistrarAdapter(registrations), gw,
		paymentservice.WithLogger(log),
		paymentservice.WithMetrics(paymetrics.New()),
		paymentservice.WithNotifier(dispatcher),
		paymentservice.WithTeams(records.teams),
	)

	httpMetrics := metrics.New()
	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	router := httptransport.NewRouter(httptransport.Deps{
		Logger:        log,
		Metrics:       httpMetrics,
		Validator:     jwttoken.NewJWTServiceAdapter(jwtService),
		Registrations: reghandler.New(registrations, log),
		Payments:      payhandler.New(gate, log),
		Live:          datasync.NewHandler(liveManager, log).WithStreamGauge(httpMetrics.LiveStreams),
		Ready:         a.ready,
	})

	srv := httpserver.New(cfg.Server.Addr, router)
	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting campusreg",
			"addr", cfg.Server.Addr,
			"store_backend", cfg.Stores.Records,
			"membership_backend", cfg.Stores.Membership,
			"feed_backend", cfg.Stores.Feed,
			"notify_backend", cfg.Stores.Notify,
			"payment_provider", gw.Name(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Live streams never go idle on their own.
	srv.RegisterOnShutdown(liveManager.CloseAll)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func (a *app) openDatabases(ctx context.Context) error {
	s := a.cfg.Stores
	if s.Records == config.BackendPostgres || s.Membership == config.BackendPostgres {
		db, err := postgres.Open(ctx, a.cfg.Postgres)
		if err != nil {
			return err
		}
		a.onClose(func() { _ = db.Close() })
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		a.db = db
	}
	if s.Feed == config.BackendRedis {
		client, err := platformredis.New(ctx, a.cfg.Redis)
		if err != nil {
			return err
		}
		if client == nil {
			return errors.New("REDIS_URL is required for the redis feed")
		}
		a.onClose(func() { _ = client.Close() })
		a.redis = client
	}
	return nil
}

func (a *app) ready(ctx context.Context) error {
	if a.db != nil {
		if err := a.db.PingContext(ctx); err != nil {
			return err
		}
	}
	if a.redis != nil {
		return a.redis.Health(ctx)
	}
	return nil
}

type recordStores struct {
	registrations  regservice.RegistrationStore
	teams          regservice.TeamStore
	paymentRecords regservice.PaymentRecordStore
	orders         paymentservice.OrderStore
	catalog        catalog.Catalog
	directory      identity.Directory
}

func (a *app) recordStores() (*recordStores, error) {
	switch a.cfg.Stores.Records {
	case config.BackendMemory:
		events, err := loadCatalogSeed(a.cfg.Catalog.SeedFile)
		if err != nil {
			return nil, err
		}
		return &recordStores{
			registrations:  regstore.NewInMemory(),
			teams:          teamstore.NewInMemory(),
			paymentRecords: paystore.NewInMemoryRecords(),
			orders:         paystore.NewInMemoryOrders(),
			catalog:        catalog.NewInMemory(events...),
			directory:      identity.NewInMemory(),
		}, nil
	case config.BackendPostgres:
		return &recordStores{
			registrations:  regstore.NewPostgres(a.db),
			teams:          teamstore.NewPostgres(a.db),
			paymentRecords: paystore.NewPostgresRecords(a.db),
			orders:         paystore.NewPostgresOrders(a.db),
			catalog:        catalog.NewPostgres(a.db),
			directory:      identity.NewPostgres(a.db),
		}, nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", a.cfg.Stores.Records)
	}
}

func loadCatalogSeed(path string) ([]*catalog.Event, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog seed: %w", err)
	}
	defer f.Close()
	return catalog.LoadSeed(f)
}

func (a *app) membershipIndex(ctx context.Context) (membershipIndex, error) {
	switch a.cfg.Stores.Membership {
	case config.BackendMemory:
		return membership.NewInMemory(), nil
	case config.BackendPostgres:
		return membership.NewPostgres(a.db), nil
	case config.BackendDynamoDB:
		client, err := dynamo.NewClient(ctx, a.cfg.DynamoDB)
		if err != nil {
			return nil, err
		}
		return membership.NewDynamo(client, a.cfg.DynamoDB.UsersTable, a.cfg.DynamoDB.EventsTable), nil
	default:
		return nil, fmt.Errorf("unknown MEMBERSHIP_BACKEND %q", a.cfg.Stores.Membership)
	}
}

// membershipIndex is written by the orchestrator and read by the live fetcher.
type membershipIndex interface {
	regservice.MembershipIndex
	datasync.MembershipReader
}

func (a *app) liveFeed() (datasync.Feed, error) {
	switch a.cfg.Stores.Feed {
	case config.BackendMemory:
		return datasync.NewMemoryFeed(), nil
	case config.BackendRedis:
		return datasync.NewRedisFeed(a.redis.Client, a.log), nil
	default:
		return nil, fmt.Errorf("unknown FEED_BACKEND %q", a.cfg.Stores.Feed)
	}
}

func (a *app) notificationSink(ctx context.Context) (notify.Sink, error) {
	switch a.cfg.Stores.Notify {
	case config.BackendLog:
		return notify.NewLogSink(a.log), nil
	case config.BackendKafka:
		if len(a.cfg.Kafka.Brokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required for the kafka notifier")
		}
		client, err := notify.NewKafkaClient(ctx, a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic)
		if err != nil {
			return nil, err
		}
		a.onClose(client.Close)
		return notify.NewKafkaSink(client, a.cfg.Kafka.Topic), nil
	case config.BackendNATS:
		conn, js, err := notify.NewJetStream(ctx, a.cfg.NATS.URL, a.cfg.NATS.Stream, a.cfg.NATS.Subject)
		if err != nil {
			return nil, err
		}
		a.onClose(conn.Close)
		return notify.NewNATSSink(js, a.cfg.NATS.Subject), nil
	default:
		return nil, fmt.Errorf("unknown NOTIFY_BACKEND %q", a.cfg.Stores.Notify)
	}
}
