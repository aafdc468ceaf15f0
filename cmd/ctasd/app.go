package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/t77yq/coastal-alert/internal/audit"
	"github.com/t77yq/coastal-alert/internal/config"
	"github.com/t77yq/coastal-alert/internal/cyclone"
	"github.com/t77yq/coastal-alert/internal/detection"
	"github.com/t77yq/coastal-alert/internal/directory"
	"github.com/t77yq/coastal-alert/internal/dispatch"
	"github.com/t77yq/coastal-alert/internal/notify"
	"github.com/t77yq/coastal-alert/internal/observability"
	"github.com/t77yq/coastal-alert/internal/retry"
	"github.com/t77yq/coastal-alert/internal/storage"
	"github.com/t77yq/coastal-alert/internal/surge"
	"github.com/t77yq/coastal-alert/internal/weather"
)

const connectAttempts = 5

// app holds the wired components. closers run in reverse order on Close.
type app struct {
	logger     *zap.Logger
	cfg        *config.Config
	metrics    *observability.Metrics
	store      *storage.SQLiteAuditStore
	audit      *audit.Multi
	dispatcher *dispatch.Dispatcher
	loop       *detection.Loop
	closers    []func() error
}

// newDetectionApp wires only what an assessment needs: the observation
// sources, the estimators, and the detection loop without a dispatcher
func newDetectionApp(cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) (*app, error) {
	a := &app{logger: logger, cfg: cfg, metrics: metrics}

	sources, err := buildWeather(cfg.Weather, logger)
	if err != nil {
		return nil, err
	}
	a.loop = detection.NewLoop(cfg.Detection, sources, buildCyclone(cfg.Cyclone, logger), buildSurge(cfg, logger), nil, nil, metrics, logger)
	return a, nil
}

// newApp wires every component used by serve and cycle
func newApp(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) (*app, error) {
	a := &app{logger: logger, cfg: cfg, metrics: metrics}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context) error {
	cfg := a.cfg

	store, err := storage.NewSQLiteAuditStore(a.logger, cfg.Audit.SQLitePath)
	if err != nil {
		return err
	}
	a.store = store
	a.onClose(store.Close)

	a.audit = audit.NewMulti(a.metrics, a.logger)
	a.audit.Add("sqlite", store)

	if cfg.Audit.NATS.URL != "" {
		publisher, err := a.connectNATS(ctx, cfg.Audit.NATS)
		if err != nil {
			return err
		}
		a.audit.Add("nats", publisher)
	}

	if len(cfg.Audit.Kafka.Brokers) > 0 {
		publisher := audit.NewKafkaPublisher(cfg.Audit.Kafka, a.logger)
		a.onClose(publisher.Close)
		a.audit.Add("kafka", publisher)
		a.logger.Info("Kafka audit publisher enabled",
			zap.Strings("brokers", cfg.Audit.Kafka.Brokers),
			zap.String("topic", cfg.Audit.Kafka.Topic))
	}

	dir, err := a.buildDirectory(ctx, cfg.Directory)
	if err != nil {
		return err
	}

	senders, err := buildSenders(cfg, a.logger)
	if err != nil {
		return err
	}
	a.dispatcher = dispatch.NewDispatcher(cfg.Dispatch, senders, dir, a.audit, a.metrics, a.logger)

	sources, err := buildWeather(cfg.Weather, a.logger)
	if err != nil {
		return err
	}

	a.loop = detection.NewLoop(cfg.Detection, sources, buildCyclone(cfg.Cyclone, a.logger), buildSurge(cfg, a.logger),
		a.dispatcher, a.audit, a.metrics, a.logger)
	return nil
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases every connection opened by build
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) connectNATS(ctx context.Context, cfg config.NATSConfig) (*audit.NATSPublisher, error) {
	logger := a.logger
	opts := []nats.Option{
		nats.Name(a.cfg.App.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.PingInterval(20 * time.Second),
		nats.MaxPingsOutstanding(5),
		nats.ReconnectBufSize(5 * 1024 * 1024),
		nats.DrainTimeout(10 * time.Second),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("NATS connection error", zap.String("subject", subject), zap.Error(err))
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	var nc *nats.Conn
	err := retry.Do(ctx, "nats", connectAttempts, retry.DefaultBackoff(), logger, func(context.Context) error {
		var err error
		nc, err = nats.Connect(cfg.URL, opts...)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	a.onClose(func() error {
		nc.Close()
		return nil
	})
	logger.Info("Connected to NATS", zap.String("url", nc.ConnectedUrl()))

	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := audit.NewNATSPublisher(js, cfg.Stream, logger)
	if err := publisher.Setup(); err != nil {
		return nil, err
	}
	return publisher, nil
}

func (a *app) buildDirectory(ctx context.Context, cfg config.DirectoryConfig) (dispatch.Directory, error) {
	var dir directory.Directory

	switch cfg.Driver {
	case "file":
		fd, err := directory.NewFileDirectory(cfg.File)
		if err != nil {
			return nil, err
		}
		dir = fd
	case "postgres":
		var pd *directory.PostgresDirectory
		err := retry.Do(ctx, "postgres", connectAttempts, retry.DefaultBackoff(), a.logger, func(ctx context.Context) error {
			var err error
			pd, err = directory.NewPostgresDirectory(ctx, cfg.DSN, a.logger)
			return err
		})
		if err != nil {
			return nil, err
		}
		a.onClose(pd.Close)
		if err := pd.Migrate(ctx); err != nil {
			return nil, err
		}
		dir = pd
	default:
		return nil, fmt.Errorf("%w: %q", directory.ErrUnknownDriver, cfg.Driver)
	}

	if cfg.Cache.RedisAddr == "" {
		return dir, nil
	}

	client := newCacheClient(cfg.Cache)
	a.onClose(client.Close)
	if err := client.Ping(ctx).Err(); err != nil {
		a.logger.Warn("Redis unreachable, recipient cache will miss", zap.Error(err))
	}
	return directory.NewCachedDirectory(dir, client, cfg.Cache.TTL, a.logger), nil
}

func newCacheClient(cfg config.CacheConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func buildSenders(cfg *config.Config, logger *zap.Logger) ([]notify.Sender, error) {
	sms, err := notify.NewSMSSender(cfg.SMS, logger)
	if err != nil {
		return nil, err
	}
	return []notify.Sender{
		notify.NewEmailSender(cfg.Email, logger),
		sms,
		notify.NewPushSender(cfg.Push, logger),
	}, nil
}

func buildWeather(cfg config.WeatherConfig, logger *zap.Logger) (*weather.Chain, error) {
	var sources []weather.Source
	for _, name := range cfg.Providers {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "weatherapi":
			sources = append(sources, weather.NewWeatherAPIClient(cfg.WeatherAPIKey, cfg.Timeout, logger))
		case "openweathermap":
			sources = append(sources, weather.NewOpenWeatherMapClient(cfg.OpenWeatherMapKey, cfg.Timeout, logger))
		default:
			return nil, fmt.Errorf("unknown weather provider %q", name)
		}
	}
	return weather.NewChain(logger, sources...), nil
}

func buildCyclone(cfg config.CycloneConfig, logger *zap.Logger) cyclone.Estimator {
	classifier := cyclone.NewClassifierClient(cfg.Endpoint, cfg.APIKey, cfg.Timeout, logger)
	if cfg.Fallback != "rules" {
		return classifier
	}
	return cyclone.NewFallback(logger, classifier, cyclone.NewRuleEstimator())
}

func buildSurge(cfg *config.Config, logger *zap.Logger) *surge.Estimator {
	tides := surge.NewWorldTidesClient(cfg.Tide.APIKey, cfg.Tide.BaseURL, cfg.Tide.Timeout, logger)
	return surge.NewEstimator(cfg.Surge, tides, logger)
}
