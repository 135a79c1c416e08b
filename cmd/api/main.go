package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sutbot/sutbot/internal/analytics"
	"github.com/sutbot/sutbot/internal/api"
	"github.com/sutbot/sutbot/internal/auth"
	"github.com/sutbot/sutbot/internal/clock"
	"github.com/sutbot/sutbot/internal/config"
	"github.com/sutbot/sutbot/internal/cooldown"
	"github.com/sutbot/sutbot/internal/database"
	"github.com/sutbot/sutbot/internal/entitlement"
	"github.com/sutbot/sutbot/internal/events"
	mw "github.com/sutbot/sutbot/internal/middleware"
	"github.com/sutbot/sutbot/internal/personas"
	iredis "github.com/sutbot/sutbot/internal/redis"
	"github.com/sutbot/sutbot/internal/server"
	"github.com/sutbot/sutbot/internal/subscription"
	"github.com/sutbot/sutbot/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if path := os.Getenv("MIGRATIONS_PATH"); path != "" {
		if err := database.RunMigrations(cfg.DB.DSN(), path); err != nil {
			slog.Error("running migrations", "error", err)
			os.Exit(1)
		}
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS
	eventsClient, err := events.NewClient(ctx, cfg.NATS)
	if err != nil {
		slog.Error("connecting to nats", "error", err)
		os.Exit(1)
	}
	defer eventsClient.Close()
	publisher := events.NewPublisher(eventsClient.JetStream())
	sink := events.NewSink(publisher)

	// Telegram membership checks
	membership, err := telegram.NewMembershipChecker(cfg.Telegram)
	if err != nil {
		slog.Error("creating membership checker", "error", err)
		os.Exit(1)
	}

	// Entitlement core
	clk := clock.System()
	store := entitlement.NewPostgresStore(pool)
	personaRepo := personas.NewRepository(pool)

	bonus := entitlement.NewGroupBonusResolver(store, membership, cfg.Limits, clk)
	tiers := entitlement.NewTierResolver(store, personaRepo, bonus, cfg.Limits, clk, sink)
	usage := entitlement.NewUsageLimiter(store, tiers, cfg.Limits, clk, sink)
	personaLimiter := entitlement.NewPersonalityLimiter(store, personaRepo, tiers, cfg.Limits, clk, sink)
	slots := entitlement.NewSlotManager(store, personaRepo, tiers, bonus, cfg.Limits, clk, sink)
	entitlementHandler := entitlement.NewHandler(usage, personaLimiter, slots, bonus)

	// Personas
	personaSvc := personas.NewService(personaRepo, slots, clk)
	personaHandler := personas.NewHandler(personaSvc)

	// Subscriptions
	subRepo := subscription.NewRepository(pool)
	subSvc := subscription.NewService(subRepo, store, personaRepo, tiers, bonus, cfg.Limits, clk)
	subHandler := subscription.NewHandler(subSvc)

	// Cooldowns
	cooldownLimiter := cooldown.NewLimiter(redisClient, cfg.Limits.Cooldown)
	cooldownHandler := cooldown.NewHandler(cooldownLimiter)

	// Analytics
	analyticsRepo := analytics.NewRepository(pool)
	analyticsHandler := analytics.NewHandler(analyticsRepo)

	consumerCtx, cancelConsumer := context.WithCancel(ctx)
	defer cancelConsumer()
	consumer := analytics.NewConsumer(analyticsRepo, events.NewConsumerManager(eventsClient.JetStream()))
	go func() {
		if err := consumer.Start(consumerCtx); err != nil {
			slog.Error("analytics consumer stopped", "error", err)
		}
	}()

	// Auth
	jwtManager := auth.NewJWTManager(cfg.Auth.ServiceSecret, cfg.Auth.TokenExpiry)

	// Rate limiting
	rateLimiter := mw.NewRateLimiter(redisClient, cfg.Limits.RateLimitRequests, int(cfg.Limits.RateLimitWindow.Seconds()))

	// Router
	router := api.NewRouter(pool, eventsClient, api.RouterConfig{
		CORSAllowedOrigins: []string{"*"},
	}, api.HandlerSet{
		CheckUsage:  entitlementHandler.CheckUsage,
		UsageStatus: entitlementHandler.UsageStatus,
		ResetUsage:  entitlementHandler.ResetUsage,

		UsePersona:    entitlementHandler.UsePersona,
		CreatePersona: personaHandler.Create,
		ListPersonas:  personaHandler.List,
		DeletePersona: personaHandler.Delete,
		PersonaSlots:  entitlementHandler.PersonaSlots,

		MembershipEvent:   entitlementHandler.MembershipEvent,
		RefreshMembership: entitlementHandler.RefreshMembership,

		GrantSubscription: subHandler.Grant,
		GetSubscription:   subHandler.Get,

		CheckCooldown: cooldownHandler.Check,

		ListAnalyticsEvents: analyticsHandler.List,

		AuthMiddleware: auth.Middleware(jwtManager),
		RateLimiter:    rateLimiter.Middleware,
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
