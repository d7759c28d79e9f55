package di

import (
	"context"
	"fmt"
	"time"

	domrepo "SignalDesk/internal/domain/repository"
	domsvc "SignalDesk/internal/domain/service"
	"SignalDesk/internal/handler/api"
	internalrepo "SignalDesk/internal/repository"
	"SignalDesk/internal/service/broker"
	"SignalDesk/internal/service/notify"
	"SignalDesk/internal/service/ratelimit"
	"SignalDesk/internal/service/realtime"
	"SignalDesk/internal/services/analytics"
	"SignalDesk/internal/usecase"
	sharedcache "SignalDesk/pkg/cache"
	pkgch "SignalDesk/pkg/clickhouse"
	"SignalDesk/pkg/config"
	xhttp "SignalDesk/pkg/http"
	pkgkafka "SignalDesk/pkg/kafka"
	applogger "SignalDesk/pkg/logger"
	"SignalDesk/pkg/metrics"
	"SignalDesk/pkg/postgres"
	"SignalDesk/pkg/server"

	"github.com/jackc/pgx/v5/pgxpool"
)

const initTimeout = 15 * time.Second

// ProvideLogger builds the application logger. Repeated errors are shipped
// to Kafka when log collection is on.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.Collect.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			Service:        "signaldesk",
			TimeInterval:   cfg.Log.Collect.Interval,
			CountThreshold: cfg.Log.Collect.Threshold,
			Topic:          cfg.Log.Collect.Topic,
			Publisher:      producer,
		})
	}
	return l, l.RemoveCollector, nil
}

func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvidePostgresPool opens the pool and applies migrations.
func ProvidePostgresPool(cfg *config.Config) (*pgxpool.Pool, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Postgres.URL, postgres.PoolConfig{
		MaxConns:          cfg.Postgres.MaxConns,
		MinConns:          cfg.Postgres.MinConns,
		MaxConnLifetime:   cfg.Postgres.MaxConnLifetime,
		MaxConnIdleTime:   cfg.Postgres.MaxConnIdleTime,
		HealthCheckPeriod: cfg.Postgres.HealthCheckPeriod,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return pool, pool.Close, nil
}

// ProvideClickHouseClient connects and creates the candle and archive tables.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	stmts := []string{fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", cfg.ClickHouse.Database)}
	stmts = append(stmts, internalrepo.CandleSchema(cfg.ClickHouse.Database)...)
	stmts = append(stmts, internalrepo.ArchiveSchema(cfg.ClickHouse.Database)...)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, func() { _ = client.Close() }, nil
}

// ProvideKafkaProducer returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithAutoCreateTopics(cfg.Kafka.Producer.AutoCreate),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideKafkaConsumer returns nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.LoggingHook{Log: log.Component("kafka_hook"), Slow: time.Second})
	return consumer, nil
}

// ProvideSharedCache is Redis fronted by memory when Redis is enabled, and
// memory alone otherwise. Only the Redis variant coordinates instances.
func ProvideSharedCache(cfg *config.Config) (sharedcache.Service, func(), error) {
	if !cfg.Redis.Enabled {
		mem := sharedcache.NewMemoryCache(
			sharedcache.WithMemoryMaxSize(cfg.Redis.MemoryMaxSize),
			sharedcache.WithMemoryCleanup(cfg.Redis.MemoryCleanup),
		)
		return mem, func() { _ = mem.Close() }, nil
	}
	rc, err := sharedcache.NewRedisCache(
		sharedcache.WithRedisHost(cfg.Redis.Host),
		sharedcache.WithRedisPort(cfg.Redis.Port),
		sharedcache.WithRedisPassword(cfg.Redis.Password),
		sharedcache.WithRedisDB(cfg.Redis.DB),
		sharedcache.WithRedisPrefix(cfg.Redis.Prefix),
		sharedcache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.PoolTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	layered := sharedcache.NewLayeredCache(rc,
		sharedcache.WithLayeredMemorySize(cfg.Redis.MemoryMaxSize),
		sharedcache.WithLayeredMemoryTTL(cfg.Redis.MemoryTTL),
	)
	return layered, func() { _ = layered.Close() }, nil
}

func ProvideSignalRepository(pool *pgxpool.Pool, log *applogger.Logger) domrepo.SignalRepository {
	return internalrepo.NewPostgresSignalRepository(pool, log)
}

func ProvideAdminSignalRepository(pool *pgxpool.Pool, log *applogger.Logger) domrepo.AdminSignalRepository {
	return internalrepo.NewPostgresAdminSignalRepository(pool, log)
}

func ProvideSettingsRepository(pool *pgxpool.Pool) domrepo.SettingsRepository {
	return internalrepo.NewPostgresSettingsRepository(pool)
}

func ProvideCandleService(ch *pkgch.Client, cfg *config.Config, log *applogger.Logger) *usecase.CandleService {
	store := internalrepo.NewCHCandleStore(ch, cfg.ClickHouse.Database)
	store.SetLogger(log)
	return usecase.NewCandleService(store)
}

func ProvideSignalArchive(ch *pkgch.Client, cfg *config.Config) *internalrepo.CHSignalArchive {
	return internalrepo.NewCHSignalArchive(ch, cfg.ClickHouse.Database)
}

func ProvideEventHub(log *applogger.Logger) *api.EventHub {
	return api.NewEventHub(nil, log)
}

// ProvideEvents fans lifecycle events out to websocket clients and, when
// enabled, the journal.
func ProvideEvents(
	cfg *config.Config,
	log *applogger.Logger,
	hub *api.EventHub,
	producer *pkgkafka.Producer,
	archive *internalrepo.CHSignalArchive,
	m *metrics.Recorder,
) *usecase.EventFanOut {
	sinks := []domrepo.EventPublisher{hub}
	if cfg.Journal.Enabled {
		var pub domrepo.EventPublisher
		if producer != nil {
			pub = internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic)
		}
		sinks = append(sinks, usecase.NewSignalJournal(pub, archive, m, cfg.Journal.Backend))
	}
	return usecase.NewEventFanOut(log, sinks...)
}

// ProvideNotifier returns a logging-only notifier when FCM is off.
func ProvideNotifier(cfg *config.Config, log *applogger.Logger) (domrepo.Notifier, error) {
	path := ""
	if cfg.FCM.Enabled {
		path = cfg.FCM.CredentialsFile
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	n, err := notify.NewFCMNotifier(ctx, path, cfg.FCM.Topic, log)
	if err != nil {
		return nil, fmt.Errorf("fcm: %w", err)
	}
	return n, nil
}

func ProvidePriceResolver(cfg *config.Config, log *applogger.Logger, m *metrics.Recorder) *usecase.PriceResolver {
	gw := broker.NewClient(broker.Config{
		BaseURL: cfg.Broker.BaseURL,
		APIKey:  cfg.Broker.APIKey,
		Partner: cfg.Broker.Partner,
		Slot:    cfg.Broker.Slot,
		Timeout: cfg.Broker.Timeout,
	}, ratelimit.New(cfg.Broker.RateLimit.Capacity, cfg.Broker.RateLimit.RefillPerSec), log)

	policy := usecase.RetryPolicy{
		MaxAttempts: cfg.Price.MaxAttempts,
		Initial:     cfg.Price.InitialDelay,
		Factor:      cfg.Price.Factor,
		Max:         cfg.Price.MaxDelay,
	}
	return usecase.NewPriceResolver(gw, policy, cfg.Price.CacheTTL, nil, log, m)
}

func ProvideAnalyzer(cfg *config.Config) domsvc.Analyzer {
	return analytics.NewHTTPAnalyzer(
		analytics.NewHTTPServiceBase(cfg.Analyzer.URL, cfg.Analyzer.Timeout),
		cfg.Analyzer.Retries+1,
		nil,
	)
}

func ProvideSignalStore() *usecase.SignalStore {
	return usecase.NewSignalStore()
}

func windows(cfg *config.Config) usecase.Windows {
	return usecase.Windows{
		AdmitBefore:     cfg.Windows.AdmitBefore,
		AdmitAfter:      cfg.Windows.AdmitAfter,
		LookaheadBefore: cfg.Windows.LookaheadBefore,
		LookaheadAfter:  cfg.Windows.LookaheadAfter,
	}
}

func ProvideResultResolver(
	cfg *config.Config,
	store *usecase.SignalStore,
	repo domrepo.SignalRepository,
	prices *usecase.PriceResolver,
	candles *usecase.CandleService,
	shared sharedcache.Service,
	notifier domrepo.Notifier,
	events *usecase.EventFanOut,
	m *metrics.Recorder,
	log *applogger.Logger,
) *usecase.ResultResolver {
	rc := usecase.DefaultResolverConfig()
	rc.ExitMargin = cfg.Windows.ExitMargin
	rc.NotReadyWait = cfg.Price.NotReadyWait
	rc.EntryTTL = cfg.Price.EntryTTL

	return usecase.NewResultResolver(store, repo, prices, candles, nil, log,
		usecase.WithResolverConfig(rc),
		usecase.WithSharedCache(shared),
		usecase.WithNotifier(notifier),
		usecase.WithEvents(events),
		usecase.WithMetrics(m),
	)
}

func ProvideAdminDispatcher(
	cfg *config.Config,
	admins domrepo.AdminSignalRepository,
	signals domrepo.SignalRepository,
	store *usecase.SignalStore,
	resolver *usecase.ResultResolver,
	candles *usecase.CandleService,
	shared sharedcache.Service,
	events *usecase.EventFanOut,
	m *metrics.Recorder,
	log *applogger.Logger,
) *usecase.AdminDispatcher {
	return usecase.NewAdminDispatcher(admins, signals, store, resolver, candles, nil, log,
		usecase.WithWindows(windows(cfg)),
		usecase.WithPollInterval(cfg.Windows.PollInterval),
		usecase.WithDispatcherCache(shared),
		usecase.WithDispatcherEvents(events),
		usecase.WithDispatcherMetrics(m),
	)
}

func ProvideSystemSettings(cfg *config.Config, repo domrepo.SettingsRepository, log *applogger.Logger) *usecase.SystemSettings {
	return usecase.NewSystemSettings(repo, cfg.Postgres.SettingsPoll, nil, log)
}

// ProvideAutomation builds the controller and points the event hub's
// snapshot at it.
func ProvideAutomation(
	cfg *config.Config,
	store *usecase.SignalStore,
	dispatcher *usecase.AdminDispatcher,
	resolver *usecase.ResultResolver,
	candles *usecase.CandleService,
	analyzer domsvc.Analyzer,
	signals domrepo.SignalRepository,
	settings *usecase.SystemSettings,
	events *usecase.EventFanOut,
	hub *api.EventHub,
	m *metrics.Recorder,
	log *applogger.Logger,
) *usecase.AutomationController {
	ac := usecase.AutomationConfig{
		Pair:             cfg.Automation.Pair,
		Timeframe:        cfg.Automation.Timeframe,
		Strategy:         cfg.Automation.Strategy,
		TickInterval:     cfg.Automation.TickInterval,
		RetryBackoff:     cfg.Automation.RetryBackoff,
		WatchdogInterval: cfg.Automation.Watchdog.Interval,
		WatchdogMargin:   cfg.Automation.Watchdog.Margin,
		MinConfidence:    cfg.Automation.MinConfidence,
		MaxAttempts:      cfg.Automation.MaxAttempts,
		MaxRetries:       cfg.Automation.MaxRetries,
		CandleLimit:      cfg.Automation.CandleLimit,
	}
	ctrl := usecase.NewAutomationController(ac, store, dispatcher, resolver, candles, analyzer, signals, settings, nil, log,
		usecase.WithAutomationEvents(events),
		usecase.WithAutomationMetrics(m),
	)
	hub.SetSnapshot(ctrl.Snapshot)
	return ctrl
}

func ProvideAdminSignalService(admins domrepo.AdminSignalRepository, dispatcher *usecase.AdminDispatcher, log *applogger.Logger) *usecase.AdminSignalService {
	return usecase.NewAdminSignalService(admins, dispatcher, nil, log)
}

// ProvideAPILimiter throttles write endpoints per client.
func ProvideAPILimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillPerSec)
}

// ProvideAdminFeed returns nil when the realtime channel is disabled; the
// dispatcher's polling still finds admin signals.
func ProvideAdminFeed(cfg *config.Config, dispatcher *usecase.AdminDispatcher, m *metrics.Recorder, log *applogger.Logger) *usecase.AdminFeed {
	if !cfg.Realtime.Enabled {
		return nil
	}
	stream := realtime.New(
		cfg.Realtime.URL,
		cfg.Realtime.APIKey,
		cfg.Realtime.Channel,
		cfg.Realtime.ReconnectDelay,
		cfg.Realtime.PingInterval,
		log,
	)
	return usecase.NewAdminFeed(stream, dispatcher, m, log)
}

// ProvideKafkaAdminHandler returns nil when Kafka is disabled.
func ProvideKafkaAdminHandler(
	cfg *config.Config,
	admins domrepo.AdminSignalRepository,
	dispatcher *usecase.AdminDispatcher,
	m *metrics.Recorder,
) *usecase.KafkaAdminHandler {
	if !cfg.Kafka.Enabled {
		return nil
	}
	return usecase.NewKafkaAdminHandler(cfg.Kafka.AdminTopic, admins, dispatcher, m)
}

func ProvideHandlers(
	store *usecase.SignalStore,
	ctrl *usecase.AutomationController,
	admin *usecase.AdminSignalService,
	settings *usecase.SystemSettings,
	hub *api.EventHub,
	rl *ratelimit.Limiter,
	log *applogger.Logger,
) []xhttp.Handler {
	return []xhttp.Handler{
		api.NewSignalsHandler(store),
		api.NewAutomationHandler(ctrl, rl, log),
		api.NewAdminSignalsHandler(admin, rl, log),
		api.NewSystemHandler(settings),
		hub,
	}
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	ctrl *usecase.AutomationController,
	dispatcher *usecase.AdminDispatcher,
	settings *usecase.SystemSettings,
	feed *usecase.AdminFeed,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaAdminHandler,
	hub *api.EventHub,
	handlers []xhttp.Handler,
) *server.App {
	c := server.Components{
		Automation: ctrl,
		Dispatcher: dispatcher,
		Settings:   settings,
		Feed:       feed,
		Consumer:   consumer,
		Hub:        hub,
		Handlers:   handlers,
	}
	if kh != nil {
		c.AdminHandler = kh
	}
	return server.New(cfg, log, c)
}
