package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-idm-twofa/pkg/client"
	"github.com/tendant/simple-idm-twofa/pkg/config"
	"github.com/tendant/simple-idm-twofa/pkg/notification"
	"github.com/tendant/simple-idm-twofa/pkg/ratelimit"
	"github.com/tendant/simple-idm-twofa/pkg/twofa"
	twofaapi "github.com/tendant/simple-idm-twofa/pkg/twofa/api"
	"github.com/tendant/simple-idm-twofa/pkg/twofa/migrations"
)

func main() {
	envFile := flag.String("env", ".env", "Path to an optional .env file")
	migrateDown := flag.Bool("migrate-down", false, "Roll back all migrations and exit")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(-1)
	}

	ctx := context.Background()

	if *migrateDown {
		if err := migrations.Down(cfg.Database.ToDatabaseURL()); err != nil {
			slog.Error("Failed rolling back migrations", "error", err)
			os.Exit(-1)
		}
		slog.Info("Migrations rolled back")
		return
	}

	repoConfig := twofa.RepositoryConfig{
		DataDir:        cfg.Twofa.DataDir,
		RedisKeyPrefix: cfg.Redis.KeyPrefix,
	}

	switch cfg.Twofa.PersistenceType {
	case "postgres", "postgresql":
		dbURL := cfg.Database.ToDatabaseURL()
		if err := migrations.Up(dbURL); err != nil {
			slog.Error("Failed applying migrations", "host", cfg.Database.Host, "db", cfg.Database.Database, "error", err)
			os.Exit(-1)
		}
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			slog.Error("Failed creating dbpool", "db", cfg.Database.Database, "host", cfg.Database.Host, "port", cfg.Database.Port, "user", cfg.Database.User)
			os.Exit(-1)
		}
		defer pool.Close()
		repoConfig.DB = pool
	}

	var redisClient *redis.Client
	if cfg.Twofa.PersistenceType == "redis" || cfg.Twofa.SendLimiter == config.SendLimiterRedis {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			slog.Error("Invalid redis url", "error", err)
			os.Exit(-1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Error("Failed connecting to redis", "addr", opts.Addr, "error", err)
			os.Exit(-1)
		}
		repoConfig.RedisClient = redisClient
	}

	repo, err := twofa.NewMethodRepository(cfg.Twofa.PersistenceType, repoConfig)
	if err != nil {
		slog.Error("Failed creating method repository", "type", cfg.Twofa.PersistenceType, "error", err)
		os.Exit(-1)
	}
	slog.Info("Method repository ready", "type", cfg.Twofa.PersistenceType)

	notificationManager, err := notification.NewNotificationManagerWithOptions(cfg.NotificationOptions(ctx)...)
	if err != nil {
		slog.Error("Failed initializing notification manager", "error", err)
		os.Exit(-1)
	}

	registry := twofa.NewRegistry()
	twofa.RegisterNotifierHandlers(registry, notificationManager)
	slog.Info("Delivery handlers registered", "types", registry.Types())

	var provider twofa.TotpProvider = twofa.NewPquernaProvider()
	if cfg.Twofa.TotpProvider == "gotp" {
		provider = twofa.NewGotpProvider()
	}

	opts := []twofa.Option{
		twofa.WithWindow(cfg.Twofa.Window),
		twofa.WithDeliveryTimeout(cfg.Twofa.DeliveryTimeout),
		twofa.WithMinSendInterval(cfg.Twofa.MinSendInterval),
	}

	switch cfg.Twofa.SendLimiter {
	case config.SendLimiterMemory:
		limiter := ratelimit.NewRateLimiter(cfg.Twofa.SendBurst, 1/cfg.Twofa.SendCooldown.Seconds(), cfg.Twofa.SendCooldown*10)
		defer limiter.Stop()
		opts = append(opts, twofa.WithSendLimiter(limiter))
	case config.SendLimiterRedis:
		opts = append(opts, twofa.WithSendLimiter(ratelimit.NewRedisCooldown(redisClient, cfg.Redis.KeyPrefix+"cooldown:", cfg.Twofa.SendCooldown)))
	}

	if cfg.Twofa.SecretKey != "" {
		sealer, err := twofa.NewAESSecretSealer(cfg.Twofa.SecretKey)
		if err != nil {
			slog.Error("Invalid secret key", "error", err)
			os.Exit(-1)
		}
		opts = append(opts, twofa.WithSecretSealer(sealer))
	} else {
		slog.Warn("TWOFA_SECRET_KEY not set, totp secrets are stored unsealed")
	}

	if cfg.Twofa.MetricsEnabled {
		opts = append(opts, twofa.WithMetrics(twofa.NewMetrics(prometheus.DefaultRegisterer)))
	}

	twofaService := twofa.NewTwoFaService(repo, registry, provider, opts...)
	twofaHandle := twofaapi.NewHandle(twofaService, twofaapi.WithAdminRoles(cfg.Twofa.AdminRoles...))

	server := app.DefaultApp()
	app.RegisterHealthzRoutes(server.R)

	if cfg.Twofa.MetricsEnabled {
		server.R.Handle("/metrics", promhttp.Handler())
	}

	rateLimiter := ratelimit.NewMiddleware(cfg.RateLimit.ToMiddlewareConfig())
	defer rateLimiter.Stop()

	tokenAuth := jwtauth.New("HS256", []byte(cfg.JWT.Secret), nil)

	server.R.Group(func(r chi.Router) {
		r.Use(client.Verifier(tokenAuth))
		r.Use(jwtauth.Authenticator(tokenAuth))
		r.Use(client.AuthUserMiddleware)
		r.Use(rateLimiter.Handler)

		r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
			authUser, ok := client.GetAuthUser(r)
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			slog.Debug("Serving me", "user", authUser)
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte(authUser.UserId))
		})

		r.Mount("/api/twofa", twofaapi.Routes(twofaHandle))
	})

	server.Run()
}
