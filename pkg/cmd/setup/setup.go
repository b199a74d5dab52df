// Package setup builds the components shared by the commands from the
// resolved configuration.
package setup

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pgx-contrib/pgxtrace"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/zenride/log"
	"github.com/mpapenbr/zenride/pkg/config"
	"github.com/mpapenbr/zenride/pkg/db/postgres"
	"github.com/mpapenbr/zenride/pkg/geo"
	"github.com/mpapenbr/zenride/pkg/hazard"
	"github.com/mpapenbr/zenride/pkg/model"
	"github.com/mpapenbr/zenride/pkg/routing"
	"github.com/mpapenbr/zenride/pkg/store/blob"
	"github.com/mpapenbr/zenride/pkg/utils"
)

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// Logger creates the logger from the log settings and installs it as default
func Logger() (*log.Logger, error) {
	opts := []log.Option{log.WithCaller(true), log.AddCallerSkip(1)}
	if config.LogFilter != "" {
		filter, err := log.WithFilter(config.LogFilter)
		if err != nil {
			return nil, fmt.Errorf("invalid log filter: %w", err)
		}
		opts = append(opts, filter)
	}
	var logger *log.Logger
	switch config.LogFormat {
	case "json":
		logger = log.New(os.Stderr, parseLogLevel(config.LogLevel, log.InfoLevel), opts...)
	default:
		logger = log.DevLogger(os.Stderr, parseLogLevel(config.LogLevel, log.DebugLevel), opts...)
	}
	log.ResetDefault(logger)
	return logger, nil
}

// Telemetry sets up metrics if enabled. The returned shutdown function is
// never nil.
func Telemetry(ctx context.Context) func() {
	if !config.EnableTelemetry {
		return func() {}
	}
	t, err := config.SetupTelemetry(ctx)
	if err != nil {
		log.Warn("telemetry not available", log.ErrorField(err))
		return func() {}
	}
	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.Shutdown(sctx); err != nil {
			log.Warn("telemetry shutdown failed", log.ErrorField(err))
		}
	}
}

func waitTimeout() time.Duration {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}
	return timeout
}

// Storage opens the configured blob backend. The returned close function is
// never nil.
//
//nolint:funlen // one case per backend
func Storage(ctx context.Context) (blob.Storage, func(), error) {
	noop := func() {}
	log.Debug("opening storage", log.String("backend", config.Storage))
	switch config.Storage {
	case "", "memory":
		return blob.NewMemoryStorage(), noop, nil
	case "file":
		dir := config.StorageURL
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, noop, err
			}
			dir = home + "/.zenride"
		}
		s, err := blob.NewFileStorage(dir)
		return s, noop, err
	case "nats":
		if addr := utils.ExtractFromNatsURL(config.NatsURL); addr != "" {
			if err := utils.WaitForTCP(addr, waitTimeout()); err != nil {
				return nil, noop, err
			}
		}
		nc, err := nats.Connect(config.NatsURL)
		if err != nil {
			return nil, noop, err
		}
		s, err := blob.NewNATSStorage(ctx, nc, blob.DefaultBucket)
		if err != nil {
			nc.Close()
			return nil, noop, err
		}
		return s, nc.Close, nil
	case "postgres":
		if err := utils.WaitForTCP(utils.ExtractFromDBURL(config.DB), waitTimeout()); err != nil {
			return nil, noop, err
		}
		tracer := pgxtrace.CompositeQueryTracer{
			postgres.NewLogTracer(log.Default().Named("sql")),
		}
		if config.EnableTelemetry {
			tracer = append(tracer, postgres.NewOtlpTracer())
		}
		pool, err := postgres.InitWithURL(ctx, config.DB, postgres.WithTracer(tracer))
		if err != nil {
			return nil, noop, err
		}
		return blob.NewPostgresStorage(pool), pool.Close, nil
	case "redis":
		if err := utils.WaitForTCP(config.RedisAddr, waitTimeout()); err != nil {
			return nil, noop, err
		}
		client := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, noop, err
		}
		return blob.NewRedisStorage(client, blob.DefaultRedisPrefix), func() {
			if err := client.Close(); err != nil {
				log.Warn("closing redis client", log.ErrorField(err))
			}
		}, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage backend %q", config.Storage)
	}
}

// HazardSource returns the hazard feed source. Without a configured file an
// empty catalog is used and the second return value is nil.
//
//nolint:whitespace // editor/linter issue
func HazardSource(opts ...hazard.FileSourceOption) (
	hazard.Provider, *hazard.FileSource,
) {
	if config.HazardFile == "" {
		log.Warn("no hazard file configured, driving without hazards")
		return hazard.NewStaticProvider(hazard.NewCatalog(nil)), nil
	}
	opts = append([]hazard.FileSourceOption{
		hazard.WithSelector(config.HazardSelector),
	}, opts...)
	fs := hazard.NewFileSource(config.HazardFile, opts...)
	return fs, fs
}

// RoutingClient uses a canned response file if configured
func RoutingClient() (routing.Client, error) {
	if config.RouteFile != "" {
		return routing.LoadStaticClient(config.RouteFile)
	}
	if config.RoutingAPIKey == "" {
		return nil, fmt.Errorf("either a route file or a routing api key is required")
	}
	return routing.NewHTTPClient(
		routing.WithBaseURL(config.RoutingURL),
		routing.WithAPIKey(config.RoutingAPIKey),
		routing.WithLanguage(config.RoutingLanguage),
	), nil
}

func Preferences() model.Preferences {
	return model.Preferences{
		AvoidTolls:    config.AvoidTolls,
		AvoidHighways: config.AvoidHighways,
		AvoidHazards:  config.AvoidHazards,
	}
}

func Fine() decimal.Decimal {
	return decimal.NewFromFloat(config.FineAmount)
}

// ParseCoordinate parses "lat,lng"
func ParseCoordinate(s string) (geo.Coordinate, error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return geo.Coordinate{}, fmt.Errorf("invalid coordinate %q (want lat,lng)", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("invalid latitude in %q: %w", s, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("invalid longitude in %q: %w", s, err)
	}
	c := geo.Coordinate{Lat: lat, Lng: lng}
	if !c.Valid() {
		return c, fmt.Errorf("coordinate out of range: %q", s)
	}
	return c, nil
}
