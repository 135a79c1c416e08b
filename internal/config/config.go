package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig
	DB       DBConfig
	Redis    RedisConfig
	NATS     NATSConfig
	Auth     AuthConfig
	Telegram TelegramConfig
	Limits   LimitsConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	URL string
}

type AuthConfig struct {
	// ServiceSecret signs the HS256 tokens the bot-command layer presents.
	ServiceSecret string
	TokenExpiry   time.Duration
}

type TelegramConfig struct {
	BotToken string
	// GroupChatID is the designated project group whose membership grants
	// the bonus persona slot. Zero disables the bonus entirely.
	GroupChatID int64
}

// ActionCaps holds the daily caps for the four metered actions of one tier.
type ActionCaps struct {
	MessageDM    int
	SummaryDM    int
	SummaryGroup int
	Judge        int
}

// LimitsConfig is the closed tier/limit table. Validate rejects a missing or
// non-positive cap at startup instead of coercing it at check time.
type LimitsConfig struct {
	Free ActionCaps
	Pro  ActionCaps

	// PersonaDailyCap is the free-tier per-persona cap applied independently
	// to each of summary, chat and judge per day.
	PersonaDailyCap int

	SlotsFreeBase int
	SlotsProBase  int

	// MembershipFreshWindow bounds how old a cached membership flag may be
	// before a live re-check is required.
	MembershipFreshWindow time.Duration
	// MembershipDegradedCeiling bounds how old a cached flag may be and still
	// be served when the live check fails.
	MembershipDegradedCeiling time.Duration

	Cooldown time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		Auth: AuthConfig{
			ServiceSecret: k.String("auth.service.secret"),
		},
		Telegram: TelegramConfig{
			BotToken:    k.String("telegram.bot.token"),
			GroupChatID: k.Int64("telegram.group.chat.id"),
		},
		Limits: LimitsConfig{
			Free: ActionCaps{
				MessageDM:    k.Int("limits.free.messages.dm"),
				SummaryDM:    k.Int("limits.free.summaries.dm"),
				SummaryGroup: k.Int("limits.free.summaries.group"),
				Judge:        k.Int("limits.free.judge"),
			},
			Pro: ActionCaps{
				MessageDM:    k.Int("limits.pro.messages.dm"),
				SummaryDM:    k.Int("limits.pro.summaries.dm"),
				SummaryGroup: k.Int("limits.pro.summaries.group"),
				Judge:        k.Int("limits.pro.judge"),
			},
			PersonaDailyCap:   k.Int("limits.persona.daily.cap"),
			SlotsFreeBase:     k.Int("limits.slots.free"),
			SlotsProBase:      k.Int("limits.slots.pro"),
			RateLimitRequests: k.Int("limits.rate.requests"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "sutbot"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "sutbot"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	applyLimitDefaults(k, &cfg.Limits)

	// Parse durations
	cfg.Auth.TokenExpiry, err = parseDuration(k, "auth.token.expiry", "24h")
	if err != nil {
		return nil, err
	}
	cfg.Limits.MembershipFreshWindow, err = parseDuration(k, "limits.membership.fresh.window", "1h")
	if err != nil {
		return nil, err
	}
	cfg.Limits.MembershipDegradedCeiling, err = parseDuration(k, "limits.membership.degraded.ceiling", "24h")
	if err != nil {
		return nil, err
	}
	cfg.Limits.Cooldown, err = parseDuration(k, "limits.cooldown", "60s")
	if err != nil {
		return nil, err
	}
	cfg.Limits.RateLimitWindow, err = parseDuration(k, "limits.rate.window", "60s")
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyLimitDefaults fills unset caps only. An explicitly configured value
// is kept as-is, a zero included, so that Validate can reject it instead of
// a default papering over a bad deploy.
func applyLimitDefaults(k *koanf.Koanf, l *LimitsConfig) {
	setDefault := func(dst *int, key string, d int) {
		if !k.Exists(key) {
			*dst = d
		}
	}

	setDefault(&l.Free.MessageDM, "limits.free.messages.dm", 10)
	setDefault(&l.Free.SummaryDM, "limits.free.summaries.dm", 2)
	setDefault(&l.Free.SummaryGroup, "limits.free.summaries.group", 3)
	setDefault(&l.Free.Judge, "limits.free.judge", 3)

	setDefault(&l.Pro.MessageDM, "limits.pro.messages.dm", 200)
	setDefault(&l.Pro.SummaryDM, "limits.pro.summaries.dm", 20)
	setDefault(&l.Pro.SummaryGroup, "limits.pro.summaries.group", 30)
	setDefault(&l.Pro.Judge, "limits.pro.judge", 30)

	setDefault(&l.PersonaDailyCap, "limits.persona.daily.cap", 5)
	setDefault(&l.SlotsProBase, "limits.slots.pro", 3)
	setDefault(&l.RateLimitRequests, "limits.rate.requests", 10)
}

func parseDuration(k *koanf.Koanf, key, fallback string) (time.Duration, error) {
	s := k.String(key)
	if s == "" {
		s = fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}
