package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	actions "github.com/goliatone/go-auth-actions"
	"github.com/goliatone/go-auth-actions/activitymap"
	"github.com/goliatone/go-auth-actions/config"
	"github.com/goliatone/go-auth-actions/metrics"
	"github.com/goliatone/go-auth-actions/provider/auth0"
	"github.com/goliatone/go-auth-actions/provider/identitytoolkit"
	redisstore "github.com/goliatone/go-auth-actions/store/redis"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type App struct {
	config   *config.Config
	logger   *glog.BaseLogger
	db       *bun.DB
	registry *prometheus.Registry
	options  []actions.ControllerOption
	gateway  actions.Gateway
	srv      router.Server[*fiber.App]
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("app"),
	)

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	if cfg.Server.Debug {
		fmt.Println("============")
		fmt.Println(print.MaybePrettyJSON(cfg.Actions))
		fmt.Println("============")
	}

	app := &App{
		config:   cfg,
		logger:   lgr,
		registry: prometheus.NewRegistry(),
	}

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithOutcomeCache(ctx, app); err != nil {
		panic(err)
	}

	if err := WithMetrics(app); err != nil {
		panic(err)
	}

	if err := WithGateway(ctx, app); err != nil {
		panic(err)
	}

	WithHTTPServer(app)

	go func() {
		if err := app.srv.Serve(":" + cfg.Server.Port); err != nil {
			app.GetLogger("http").Error("server stopped: %v", err)
		}
	}()

	WaitExitSignal()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.srv.Shutdown(shutdownCtx); err != nil {
		app.GetLogger("http").Error("shutdown failed: %v", err)
	}
	_ = app.db.Close()
}

func WithPersistence(ctx context.Context, app *App) error {
	dbCfg := app.config.Database

	var db *bun.DB
	switch dbCfg.Driver {
	case "postgres":
		sqldb, err := sql.Open("pgx", dbCfg.DSN)
		if err != nil {
			return err
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		sqldb, err := sql.Open(sqliteshim.ShimName, dbCfg.DSN)
		if err != nil {
			return err
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	}

	if err := db.PingContext(ctx); err != nil {
		return err
	}

	if _, err := db.NewCreateTable().
		Model((*actions.UserProfile)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}

	app.db = db
	app.options = append(app.options, actions.WithControllerProfileStore(actions.NewProfileRepository(db)))
	return nil
}

func WithOutcomeCache(ctx context.Context, app *App) error {
	rcfg := app.config.Redis
	if rcfg.URL == "" {
		app.GetLogger("cache").Info("REDIS_URL not set, link outcomes are kept in memory")
		app.options = append(app.options, actions.WithControllerOutcomeCache(actions.NewMemoryOutcomeCache(rcfg.OutcomeTTL)))
		return nil
	}

	client, err := redisstore.NewClient(ctx, rcfg.URL, rcfg.Password)
	if err != nil {
		return err
	}

	app.options = append(app.options, actions.WithControllerOutcomeCache(redisstore.NewOutcomeCache(client, rcfg.OutcomeTTL)))
	return nil
}

func WithMetrics(app *App) error {
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sink, err := metrics.NewActivitySink(app.registry)
	if err != nil {
		return err
	}

	audit := activitymap.NewAuditSink(app.GetLogger("audit"))

	app.options = append(app.options, actions.WithControllerActivitySink(actions.MultiActivitySink{sink, audit}))

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))
		addr := ":" + app.config.Server.MetricsPort
		if err := http.ListenAndServe(addr, mux); err != nil {
			app.GetLogger("metrics").Error("metrics server stopped: %v", err)
		}
	}()

	return nil
}

// WithGateway wires Identity Toolkit for action codes and, when selected,
// Auth0 for resend and check requests.
func WithGateway(ctx context.Context, app *App) error {
	cfg := app.config

	toolkit := identitytoolkit.New(identitytoolkit.Config{
		APIKey:  cfg.IdentityToolkit.APIKey,
		BaseURL: cfg.IdentityToolkit.BaseURL,
	})

	if !cfg.UsesAuth0() {
		app.gateway = toolkit
		app.options = append(app.options, actions.WithPendingUserResolver(toolkit.ResolvePendingUser))
		return nil
	}

	a0cfg := auth0.DefaultConfig(cfg.Auth0.Domain, cfg.Auth0.ClientID, cfg.Auth0.ClientSecret)
	a0cfg.ContextFunc = func() context.Context { return ctx }

	validator, err := auth0.NewIDTokenValidator(a0cfg)
	if err != nil {
		return err
	}

	verification, err := auth0.NewGateway(a0cfg)
	if err != nil {
		return err
	}

	app.gateway = actions.ComposeGateway(toolkit, toolkit, verification)
	app.options = append(app.options, actions.WithPendingUserResolver(validator.ResolvePendingUser))
	return nil
}

func WithHTTPServer(app *App) {
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return fiber.New(fiber.Config{
			AppName:           app.config.Server.Name,
			EnablePrintRoutes: app.config.Server.Debug,
			StrictRouting:     false,
		})
	})

	opts := append([]actions.ControllerOption{
		actions.WithControllerLogger(app.GetLogger("actions")),
		actions.WithControllerRegistry(actions.NewFlowRegistry(app.config.Actions.FlowTTL)),
	}, app.options...)

	actions.RegisterActionRoutes(srv.Router(), app.gateway, app.config.HTTPConfig(), opts...)

	app.srv = srv
}

func WaitExitSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
}
