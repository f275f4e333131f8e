package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/daddygpt/daddygpt-bot/internal/domain/chatlog"
	"github.com/daddygpt/daddygpt-bot/internal/domain/settings"
	"github.com/daddygpt/daddygpt-bot/internal/llm"
	"github.com/daddygpt/daddygpt-bot/internal/router"
)

const dialogDepth = 20

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	flags, ok := b.routeFlags(ctx, msg)
	if !ok {
		return
	}

	rmsg := router.Message{
		SenderID:     msg.From.ID,
		ChatType:     msg.Chat.Type,
		Text:         msg.Text,
		IsReplyToBot: b.isReplyToBot(msg),
		MentionsBot:  b.mentionsBot(msg),
	}
	decision, cleaned := router.Decide(rmsg, flags, b.triggerName(ctx), b.botUsername)
	b.metrics.MessagesTotal.WithLabelValues(decision.String()).Inc()
	if decision == router.Ignore {
		return
	}

	if !flags.SenderAdmin && !b.limiter.Allow(msg.From.ID) {
		b.log.Debug("rate limited", "user", msg.From.ID)
		return
	}

	inbound := chatlog.Message{
		ChatID:      msg.Chat.ID,
		ChatType:    msg.Chat.Type,
		UserID:      msg.From.ID,
		Role:        chatlog.RoleUser,
		Text:        cleaned,
		TGMessageID: int64(msg.MessageID),
	}
	if msg.ReplyToMessage != nil {
		inbound.ReplyToTGMessageID = int64(msg.ReplyToMessage.MessageID)
	}
	if err := b.chatlog.Append(ctx, inbound); err != nil {
		b.log.Error("log inbound", "err", err)
	}

	b.send(tgbotapi.NewChatAction(msg.Chat.ID, tgbotapi.ChatTyping))

	history, err := b.chatlog.RecentDialog(ctx, msg.Chat.ID, msg.From.ID, dialogDepth)
	if err != nil {
		b.log.Error("load dialog", "err", err)
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: b.systemMessage(ctx)})
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Text})
	}
	// If the inbound append failed the history misses the current turn.
	if len(history) == 0 || history[len(history)-1].Text != cleaned {
		messages = append(messages, llm.Message{Role: "user", Content: cleaned})
	}

	start := time.Now()
	answer, err := b.llm.Chat(ctx, messages)
	b.metrics.InferenceDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		b.log.Error("inference", "err", err)
		b.reply(msg, "The model is unavailable right now, try again later.")
		return
	}

	for i, part := range splitReply(answer, maxReplyLen) {
		var sent *tgbotapi.Message
		if i == 0 {
			sent = b.reply(msg, part)
		} else {
			m := tgbotapi.NewMessage(msg.Chat.ID, part)
			if s, err := b.api.Send(m); err != nil {
				b.log.Error("send chunk", "err", err)
			} else {
				sent = &s
			}
		}
		b.metrics.RepliesTotal.Inc()

		outbound := chatlog.Message{
			ChatID:             msg.Chat.ID,
			ChatType:           msg.Chat.Type,
			UserID:             msg.From.ID,
			Role:               chatlog.RoleAssistant,
			Text:               part,
			ReplyToTGMessageID: int64(msg.MessageID),
		}
		if sent != nil {
			outbound.TGMessageID = int64(sent.MessageID)
		}
		if err := b.chatlog.Append(ctx, outbound); err != nil {
			b.log.Error("log outbound", "err", err)
		}
	}
}

// systemMessage assembles the system prompt from the display name, the
// persona and every enabled extra prompt, in that order.
func (b *Bot) systemMessage(ctx context.Context) string {
	name, err := b.settings.Get(ctx, settings.KeyBotDisplayName)
	if err != nil || name == "" {
		name = "DaddyGPT"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, a chat assistant. Answer in the language of the user.", name)

	if persona, err := b.settings.Get(ctx, settings.KeyPersona); err == nil && persona != "" {
		sb.WriteString("\n")
		sb.WriteString(persona)
	}
	if extra, err := b.prompts.ListEnabled(ctx); err == nil {
		for _, p := range extra {
			sb.WriteString("\n")
			sb.WriteString(p.Text)
		}
	} else {
		b.log.Error("load prompts", "err", err)
	}
	return sb.String()
}
