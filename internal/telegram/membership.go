package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sutbot/sutbot/internal/config"
	"github.com/sutbot/sutbot/internal/entitlement"
)

// MembershipChecker asks the Bot API whether a user currently belongs to
// the configured project group.
type MembershipChecker struct {
	api     *tgbotapi.BotAPI
	groupID int64
}

// NewMembershipChecker builds the live checker. With no bot token or no
// group chat ID configured the checker runs disabled: every lookup reports
// non-member, so no bonus slot is ever granted.
func NewMembershipChecker(cfg config.TelegramConfig) (entitlement.MembershipChecker, error) {
	if cfg.BotToken == "" || cfg.GroupChatID == 0 {
		slog.Warn("telegram membership checks disabled", "token_set", cfg.BotToken != "", "group_chat_id", cfg.GroupChatID)
		return disabledChecker{}, nil
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("creating bot api client: %w", err)
	}

	slog.Info("telegram membership checks enabled", "group_chat_id", cfg.GroupChatID)
	return &MembershipChecker{api: api, groupID: cfg.GroupChatID}, nil
}

// IsMemberLive performs a getChatMember call. Creator and administrator
// statuses count as membership alongside plain members.
func (c *MembershipChecker) IsMemberLive(ctx context.Context, userID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: c.groupID,
			UserID: userID,
		},
	})
	if err != nil {
		return false, fmt.Errorf("%w: getChatMember for %d: %w", entitlement.ErrMembershipCheck, userID, err)
	}

	switch member.Status {
	case "creator", "administrator", "member":
		return true, nil
	}
	return false, nil
}

type disabledChecker struct{}

func (disabledChecker) IsMemberLive(ctx context.Context, userID int64) (bool, error) {
	return false, nil
}
