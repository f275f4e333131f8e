package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/daddygpt/daddygpt-bot/internal/domain/users"
	"github.com/daddygpt/daddygpt-bot/internal/router"
)

func (b *Bot) onMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.From.IsBot {
		return
	}

	// Every inbound message refreshes the sender's identity and settles
	// pending grants/bans on their username before any gating runs.
	ident := users.Identity{
		ID:        msg.From.ID,
		Username:  msg.From.UserName,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
	}
	if err := b.authz.TrackUser(ctx, ident); err != nil {
		b.log.Error("track user", "user", ident.ID, "err", err)
	}

	switch {
	case msg.Document != nil:
		b.handleDocument(ctx, msg)
	case msg.IsCommand():
		b.handleCommand(ctx, msg)
	case msg.Text != "":
		b.handleText(ctx, msg)
	}
}

// routeFlags loads the sender and bot state the router needs. Errors
// are logged and reported so callers can bail out without responding.
func (b *Bot) routeFlags(ctx context.Context, msg *tgbotapi.Message) (router.Flags, bool) {
	banned, err := b.authz.IsBanned(ctx, msg.From.ID, msg.From.UserName)
	if err != nil {
		b.log.Error("ban lookup", "user", msg.From.ID, "err", err)
		return router.Flags{}, false
	}
	admin, err := b.authz.IsAdmin(ctx, msg.From.ID)
	if err != nil {
		b.log.Error("admin lookup", "user", msg.From.ID, "err", err)
		return router.Flags{}, false
	}
	enabled, err := b.settings.BotEnabled(ctx)
	if err != nil {
		b.log.Error("read bot_enabled", "err", err)
		return router.Flags{}, false
	}
	return router.Flags{SenderBanned: banned, SenderAdmin: admin, BotEnabled: enabled}, true
}

func (b *Bot) triggerName(ctx context.Context) string {
	name, err := b.settings.TriggerName(ctx, b.triggerDefault)
	if err != nil {
		b.log.Error("read trigger_name", "err", err)
		return b.triggerDefault
	}
	return name
}

func (b *Bot) isReplyToBot(msg *tgbotapi.Message) bool {
	return msg.ReplyToMessage != nil &&
		msg.ReplyToMessage.From != nil &&
		msg.ReplyToMessage.From.ID == b.botID
}

func (b *Bot) mentionsBot(msg *tgbotapi.Message) bool {
	if b.botUsername == "" {
		return false
	}
	return strings.Contains(strings.ToLower(msg.Text), "@"+strings.ToLower(b.botUsername))
}
