package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dhawalhost/signgate/internal/authurl"
	"github.com/dhawalhost/signgate/internal/backend"
	"github.com/dhawalhost/signgate/internal/callback"
	"github.com/dhawalhost/signgate/internal/config"
	"github.com/dhawalhost/signgate/internal/consent"
	"github.com/dhawalhost/signgate/internal/forgot"
	"github.com/dhawalhost/signgate/internal/mfa"
	"github.com/dhawalhost/signgate/internal/session"
	"github.com/dhawalhost/signgate/internal/web3"
	"github.com/dhawalhost/signgate/pkg/logger"
	"github.com/dhawalhost/signgate/pkg/middleware"
	"github.com/dhawalhost/signgate/pkg/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Debug)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:    "signgate",
		ServiceVersion: "1.0.0",
		Environment:    "production",
		OTLPEndpoint:   cfg.OTLPEndpoint,
	}, log)
	if err != nil {
		log.Fatal("tracer init failed", zap.Error(err))
	}

	client, err := backend.NewClient(cfg.BackendURL, log)
	if err != nil {
		log.Fatal("backend client init failed", zap.Error(err))
	}

	tokens, err := web3.OpenTokenStore(cfg.TokenDBPath)
	if err != nil {
		log.Fatal("wallet token store init failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	// The wallet prompter is browser-side; server deployments run without
	// one and Web3 starts are rejected until the callback carries a token.
	builder := authurl.NewBuilder(cfg.Origin, client, nil, log).WithMetrics(metrics)
	establisher := session.NewEstablisher(client, log)
	dispatcher := callback.NewDispatcher(client, establisher, cfg.Origin, log).WithMetrics(metrics)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.RateLimitMiddleware(rate.Limit(50), 100))
	r.Use(otelgin.Middleware("signgate"))
	r.Use(observability.PrometheusMiddleware(metrics))
	// Credentialed CORS and a wildcard origin are mutually exclusive.
	wildcard := len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*"
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: !wildcard,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/metrics", gin.WrapH(observability.PrometheusHandler()))
	callback.NewHTTPHandler(dispatcher, builder, client, tokens, log).RegisterRoutes(r)
	forgot.NewHTTPHandler(client, metrics, log).RegisterRoutes(r)
	consent.NewHTTPHandler(client, log).RegisterRoutes(r)
	mfa.NewHTTPHandler(client, log).RegisterRoutes(r)
	session.NewHTTPHandler(establisher, log).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("origin", cfg.Origin),
			zap.String("backend", client.BaseURL()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error("tracer shutdown failed", zap.Error(err))
	}
}
