package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/venalabs/authbridge/internal/api"
	"github.com/venalabs/authbridge/internal/config"
	"github.com/venalabs/authbridge/internal/identity"
	"github.com/venalabs/authbridge/internal/oauth"
	"github.com/venalabs/authbridge/internal/token"
	"github.com/venalabs/authbridge/pkg/database"
	"github.com/venalabs/authbridge/pkg/logger"
	"github.com/venalabs/authbridge/pkg/middleware"
	"github.com/venalabs/authbridge/pkg/observability"
)

const serviceVersion = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel, !cfg.IsProduction())
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:    "authbridge",
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	}, log)
	if err != nil {
		log.Fatal("init tracer", zap.Error(err))
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	db, err := database.NewConnection(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		log.Fatal("connect database", zap.Error(err))
	}
	if err := database.EnsureSchema(db); err != nil {
		log.Fatal("ensure schema", zap.Error(err))
	}

	signer, err := token.NewSigner(cfg.SessionIssuer, cfg.SessionTTL)
	if err != nil {
		log.Fatal("create signer", zap.Error(err))
	}

	// Verifier chain: backend-recognized tokens first, then the
	// provider's native verifier, then the unverified-claims fallback.
	verifiers := []token.Verifier{signer}
	if cfg.GoogleClientID != "" {
		googleVerifier, err := token.NewGoogleVerifier(ctx, cfg.GoogleClientID)
		if err != nil {
			// Discovery needs the network; exchanges still work through
			// the fallback strategy.
			log.Warn("google oidc discovery failed, native verification disabled", zap.Error(err))
		} else {
			verifiers = append(verifiers, googleVerifier)
		}
	} else {
		log.Warn("GOOGLE_OAUTH_CLIENT_ID not set, exchanges will fail audience validation")
	}
	verifiers = append(verifiers, &token.UnverifiedClaimsVerifier{ClientID: cfg.GoogleClientID})

	svc := token.NewService(identity.NewSQLStore(db), signer, log, verifiers...)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	states := oauth.NewRedisStateStore(redisClient, 10*time.Minute)
	codes := oauth.NewGoogleCodeExchanger(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)

	metrics := observability.NewMetrics()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("authbridge"))
	router.Use(observability.PrometheusMiddleware(metrics))
	router.Use(middleware.SecurityHeaders())
	router.Use(cors.Default())
	router.Use(middleware.RateLimit(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst))
	router.GET("/metrics", gin.WrapH(observability.PrometheusHandler()))

	handler := api.NewHTTPHandler(svc, codes, states, log).WithMetrics(metrics)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	_ = redisClient.Close()
	_ = db.Close()
}
