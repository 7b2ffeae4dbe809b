package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/avdheim/transit-planner/internal/core/config"
	"github.com/avdheim/transit-planner/internal/core/httpclient"
	"github.com/avdheim/transit-planner/internal/core/observability"
	"github.com/avdheim/transit-planner/internal/events"
	"github.com/avdheim/transit-planner/internal/geocode/nominatim"
	"github.com/avdheim/transit-planner/internal/logger"
	"github.com/avdheim/transit-planner/internal/planner"
	"github.com/avdheim/transit-planner/internal/routing"
	"github.com/avdheim/transit-planner/internal/store"
	"github.com/avdheim/transit-planner/internal/store/pgstore"
	"github.com/avdheim/transit-planner/internal/store/redisstore"
	"github.com/avdheim/transit-planner/internal/transit"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	origin := flag.String("origin", "", "origin address")
	dest := flag.String("dest", "", "destination address")
	arriveBy := flag.Bool("arrive-by", false, "treat -time as the arrival time")
	timeFlag := flag.String("time", "", "travel time, \"2006-01-02 15:04\" (default now)")
	eventID := flag.Int64("event", 0, "save the result under this event id")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.FromEnv()
	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "planner",
	}, os.Stdout)

	if err := cfg.Validate(); err != nil {
		zl.Error().Err(err).Msg("invalid configuration")
		return 1
	}
	if *origin == "" || *dest == "" {
		fmt.Fprintln(os.Stderr, "usage: planner -origin <address> -dest <address> [-arrive-by] [-time \"2006-01-02 15:04\"] [-event <id>]")
		return 2
	}

	when := time.Now()
	if *timeFlag != "" {
		t, err := time.ParseInLocation("2006-01-02 15:04", *timeFlag, time.Local)
		if err != nil {
			zl.Error().Err(err).Str("time", *timeFlag).Msg("cannot parse -time")
			return 2
		}
		when = t
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	observability.ExposeBuildInfo(Version)
	zl.Info().
		Str("version", Version).
		Str("route_provider", cfg.RouteBaseURL).
		Str("geocoder", cfg.GeocoderURL).
		Str("store", cfg.StoreDriver).
		Msg("starting planner")

	if cfg.MetricsEnabled {
		startMetrics(ctx, &zl, cfg.MetricsAddr)
	}

	httpClient := httpclient.NewOutbound()
	geo, err := nominatim.New(cfg.GeocoderURL, httpClient)
	if err != nil {
		zl.Error().Err(err).Msg("geocoder setup failed")
		return 1
	}

	st := store.NewLazy(func(ctx context.Context) (store.Store, error) {
		return dialStore(ctx, cfg)
	})
	defer func() {
		if err := st.Close(); err != nil {
			zl.Warn().Err(err).Msg("store close")
		}
	}()

	var notifier events.Notifier
	if cfg.Events.Enabled {
		pub, err := events.NewPublisher(strings.Split(cfg.Events.Brokers, ","), cfg.Events.Topic, cfg.Events.Queue, zl)
		if err != nil {
			zl.Error().Err(err).Msg("events publisher setup failed")
			return 1
		}
		defer func() {
			if err := pub.Close(); err != nil {
				zl.Warn().Err(err).Msg("events publisher close")
			}
		}()
		notifier = pub
	}

	p := planner.New(geo, st, routing.Config{
		BaseURL:      cfg.RouteBaseURL,
		APIKey:       cfg.RouteAPIKey,
		AwaitTimeout: cfg.AwaitTimeout,
	}, planner.Options{
		MaxWorkers: cfg.MaxWorkers,
		HTTPClient: httpClient,
		Notifier:   notifier,
		Logger:     &zl,
	})

	bundle, err := p.QueryByAddress(ctx, *origin, *dest, *arriveBy, when).Await()
	if err != nil {
		reportQueryError(&zl, err)
		return 1
	}

	printItinerary(os.Stdout, bundle)

	if *eventID > 0 {
		stored, err := p.Save(ctx, *eventID, bundle, bundle.Trips).Await()
		if err != nil {
			zl.Error().Err(err).Int64("event_id", *eventID).Msg("save failed")
			return 1
		}
		zl.Info().Int64("event_id", *eventID).Int64("bundle_id", stored.ID).Msg("itinerary saved")
	}
	return 0
}

func dialStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "postgres":
		sqlDB, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := pgstore.Migrate(sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		if err := sqlDB.Close(); err != nil {
			return nil, fmt.Errorf("close migration connection: %w", err)
		}

		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect pool: %w", err)
		}
		return pgstore.New(pool), nil
	default:
		return redisstore.New(ctx, cfg.RedisAddr, cfg.StoreTimeout)
	}
}

// startMetrics serves /metrics and /healthz until the context is done.
func startMetrics(ctx context.Context, zl *zerolog.Logger, addr string) {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		zl.Info().Str("addr", addr).Msg("metrics: listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Warn().Err(err).Msg("metrics server exited")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zl.Warn().Err(err).Msg("metrics: shutdown error")
		}
	}()
}

func reportQueryError(zl *zerolog.Logger, err error) {
	var notFound *transit.AddressNotFoundError
	var unresolved *transit.CoordinateResolutionError
	switch {
	case errors.As(err, &notFound):
		zl.Error().Str("side", notFound.Side.String()).Msg("address not found")
	case errors.As(err, &unresolved):
		zl.Error().Str("side", unresolved.Side.String()).Str("query", unresolved.Query).Msg("cannot resolve place")
	case errors.Is(err, transit.ErrNoRouteFound):
		zl.Error().Msg("no route found")
	default:
		zl.Error().Err(err).Msg("query failed")
	}
}

func printItinerary(w io.Writer, b *transit.Bundle) {
	for i, trip := range b.Trips {
		fmt.Fprintf(w, "Trip %d\n", i+1)
		for _, leg := range trip.LegList.Legs {
			label := leg.Name
			if label == "" {
				label = leg.Type
			}
			fmt.Fprintf(w, "  %-12s %s %s  %s  ->  %s %s  %s\n",
				label,
				leg.Origin.Date, leg.Origin.Time, leg.Origin.Name,
				leg.Destination.Date, leg.Destination.Time, leg.Destination.Name)
		}
	}
}
