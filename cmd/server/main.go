package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"rider-tracking-service/internal/adapters/cache"
	"rider-tracking-service/internal/adapters/geolocation"
	"rider-tracking-service/internal/adapters/orderapi"
	"rider-tracking-service/internal/adapters/push"
	"rider-tracking-service/internal/adapters/repositories"
	"rider-tracking-service/internal/adapters/routing"
	"rider-tracking-service/internal/api"
	"rider-tracking-service/internal/config"
	"rider-tracking-service/internal/notify"
	"rider-tracking-service/internal/platform/db"
	"rider-tracking-service/internal/ports"
	"rider-tracking-service/internal/tracking"
	"rider-tracking-service/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// main is the application composition root.
// It wires concrete adapters behind ports and runs the HTTP server and the order poller.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	lg := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "rider-tracking-service",
	})
	ctx = lg.WithContext(ctx)

	client, err := orderapi.NewClient(cfg.OrderAPI.BaseURL, cfg.OrderAPI.Token,
		orderapi.WithHTTPClient(&http.Client{Timeout: cfg.OrderAPI.Timeout}),
		orderapi.WithLogger(component(lg, "orderapi")),
	)
	if err != nil {
		return fmt.Errorf("order api client: %w", err)
	}

	provider, closeProvider, err := routeProvider(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer closeProvider()

	hub := push.NewHub(component(lg, "push"))
	defer hub.Close()

	notes := notify.NewFeed(component(lg, "notify"), 50, hub)
	positions := geolocation.NewFeed(
		geolocation.WithTimeout(cfg.Tracking.PositionTimeout),
		geolocation.WithMaxFixAge(cfg.Tracking.MaxFixAge),
	)

	var ctrl *tracking.Controller
	engineOpts := []tracking.EngineOption{
		tracking.WithRerouteMeters(cfg.Tracking.RerouteMinMeters),
		tracking.WithArrivalRadius(cfg.Tracking.ArrivalRadiusMeters),
		tracking.WithLocationReporter(client),
		tracking.OnRouteChange(func(s tracking.RouteSnapshot) { hub.Publish("route", s) }),
	}

	if cfg.DatabaseURL != "" {
		conn, err := openFixHistory(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer conn.Close()

		repo := repositories.NewPgFixRepository(conn, func() string { return ctrl.RiderID() })
		engineOpts = append(engineOpts, tracking.WithFixRecorder(repo))
		lg.Info().Msg("fix history enabled")
	}

	engine := tracking.NewRouteEngine(positions, provider, notes, component(lg, "route"), engineOpts...)
	defer engine.Close()

	ctrl = tracking.NewController(client, engine, notes, component(lg, "controller"),
		tracking.WithPollInterval(cfg.Tracking.PollInterval),
	)
	defer ctrl.Close()
	ctrl.SetRider(cfg.RiderID)

	dialog := tracking.NewCancellationDialog(ctrl)
	markers := tracking.NewMarkerLayer(ctrl, engine, dialog)

	router := api.NewRouter(api.Deps{
		Controller:    ctrl,
		Markers:       markers,
		Dialog:        dialog,
		Engine:        engine,
		Positions:     positions,
		Notifications: notes,
		Events:        hub,
		Logger:        lg,
	})

	// WriteTimeout stays off: the WebSocket connections are long-lived.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lg.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return ctrl.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		lg.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		hub.Close()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// routeProvider picks OpenRouteService when a key is configured, with an
// optional Redis cache, and falls back to straight-line routes otherwise.
func routeProvider(ctx context.Context, cfg *config.Config, lg zerolog.Logger) (ports.RouteProvider, func(), error) {
	noop := func() {}

	if cfg.Routing.ORSKey == "" {
		lg.Warn().Msg("ORS_API_KEY not set, using straight-line routes")
		return routing.NewStraightLineProvider(), noop, nil
	}

	opts := []routing.ORSOption{
		routing.WithBaseURL(cfg.Routing.ORSBaseURL),
		routing.WithProfile(cfg.Routing.Profile),
		routing.WithLogger(component(lg, "routing")),
	}

	closeFn := noop
	if cfg.Redis.Addr != "" {
		rc, err := cache.Connect(ctx, cache.RedisConfig{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			return nil, nil, fmt.Errorf("route cache: %w", err)
		}
		opts = append(opts, routing.WithRouteCache(cache.NewRedisRouteCache(rc, cfg.Routing.CacheTTL)))
		closeFn = func() { _ = rc.Close() }
		lg.Info().Str("addr", cfg.Redis.Addr).Msg("route cache enabled")
	}

	provider, err := routing.NewORSProvider(cfg.Routing.ORSKey, opts...)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("route provider: %w", err)
	}
	return provider, closeFn, nil
}

func openFixHistory(ctx context.Context, databaseURL string) (*sql.DB, error) {
	conn, err := db.Open(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("fix history: %w", err)
	}
	if err := repositories.InitSchema(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("fix history: %w", err)
	}
	return conn, nil
}

func component(lg zerolog.Logger, name string) zerolog.Logger {
	return lg.With().Str("component", name).Logger()
}
