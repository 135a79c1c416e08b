package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if len(c.Auth.ServiceSecret) < 32 {
		errs = append(errs, "AUTH_SERVICE_SECRET must be at least 32 characters")
	}

	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1-65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}

	// The tier/limit table is closed: every tier must carry a positive cap
	// for every metered action. A hole here is a deploy mistake, not an
	// "unlimited" request.
	errs = append(errs, validateCaps("free", c.Limits.Free)...)
	errs = append(errs, validateCaps("pro", c.Limits.Pro)...)

	if c.Limits.PersonaDailyCap < 1 {
		errs = append(errs, "LIMITS_PERSONA_DAILY_CAP must be positive")
	}
	if c.Limits.SlotsFreeBase < 0 {
		errs = append(errs, "LIMITS_SLOTS_FREE must not be negative")
	}
	if c.Limits.SlotsProBase < 1 {
		errs = append(errs, "LIMITS_SLOTS_PRO must be positive")
	}
	if c.Limits.MembershipFreshWindow <= 0 {
		errs = append(errs, "LIMITS_MEMBERSHIP_FRESH_WINDOW must be positive")
	}
	if c.Limits.MembershipDegradedCeiling < c.Limits.MembershipFreshWindow {
		errs = append(errs, "LIMITS_MEMBERSHIP_DEGRADED_CEILING must not be shorter than the fresh window")
	}
	if c.Limits.Cooldown < time.Second {
		errs = append(errs, "LIMITS_COOLDOWN must be at least 1s")
	}
	if c.Limits.RateLimitRequests < 1 {
		errs = append(errs, "LIMITS_RATE_REQUESTS must be positive")
	}
	if c.Limits.RateLimitWindow < time.Second {
		errs = append(errs, "LIMITS_RATE_WINDOW must be at least 1s")
	}

	if c.Telegram.BotToken == "" {
		slog.Warn("TELEGRAM_BOT_TOKEN is empty: live membership checks disabled, cache-only mode")
	}
	if c.Telegram.GroupChatID == 0 {
		slog.Warn("TELEGRAM_GROUP_CHAT_ID is empty: group bonus disabled")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}

func validateCaps(tier string, caps ActionCaps) []string {
	var errs []string
	check := func(action string, v int) {
		if v < 1 {
			errs = append(errs, fmt.Sprintf("limit table: %s/%s cap must be positive, got %d", tier, action, v))
		}
	}
	check("message_dm", caps.MessageDM)
	check("summary_dm", caps.SummaryDM)
	check("summary_group", caps.SummaryGroup)
	check("judge", caps.Judge)
	return errs
}
