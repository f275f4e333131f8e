package bot

import (
	"context"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/daddygpt/daddygpt-bot/internal/backup"
	"github.com/daddygpt/daddygpt-bot/internal/domain/authz"
	"github.com/daddygpt/daddygpt-bot/internal/domain/chatlog"
	"github.com/daddygpt/daddygpt-bot/internal/domain/prompts"
	"github.com/daddygpt/daddygpt-bot/internal/domain/settings"
	"github.com/daddygpt/daddygpt-bot/internal/domain/users"
	"github.com/daddygpt/daddygpt-bot/internal/export"
	"github.com/daddygpt/daddygpt-bot/internal/infra/metrics"
	"github.com/daddygpt/daddygpt-bot/internal/llm"
)

type Bot struct {
	api     *tgbotapi.BotAPI
	log     *slog.Logger
	metrics *metrics.Collector

	users    *users.Repo
	authz    *authz.Service
	settings *settings.Repo
	prompts  *prompts.Repo
	chatlog  *chatlog.Repo
	exporter *export.Store
	backups  *backup.Service
	llm      *llm.Client

	limiter *Limiter

	botID          int64
	botUsername    string
	triggerDefault string
}

type Deps struct {
	Users    *users.Repo
	Authz    *authz.Service
	Settings *settings.Repo
	Prompts  *prompts.Repo
	Chatlog  *chatlog.Repo
	Exporter *export.Store
	LLM      *llm.Client
	Metrics  *metrics.Collector
}

func New(api *tgbotapi.BotAPI, log *slog.Logger, d Deps, rateLimit time.Duration, triggerDefault string) *Bot {
	return &Bot{
		api:            api,
		log:            log,
		metrics:        d.Metrics,
		users:          d.Users,
		authz:          d.Authz,
		settings:       d.Settings,
		prompts:        d.Prompts,
		chatlog:        d.Chatlog,
		exporter:       d.Exporter,
		llm:            d.LLM,
		limiter:        NewLimiter(rateLimit),
		botID:          api.Self.ID,
		botUsername:    api.Self.UserName,
		triggerDefault: triggerDefault,
	}
}

// SetBackups wires the backup service after construction; the service
// itself needs the bot as its transport.
func (b *Bot) SetBackups(s *backup.Service) { b.backups = s }

func (b *Bot) Run(ctx context.Context, timeoutSec int) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeoutSec
	updates := b.api.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd := <-updates:
			if upd.Message != nil {
				b.onMessage(ctx, upd.Message)
			}
		}
	}
}

func (b *Bot) send(msg tgbotapi.Chattable) {
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send failed", "err", err)
	}
}

// reply answers without a parse mode so model output cannot break
// Markdown/HTML entity parsing.
func (b *Bot) reply(msg *tgbotapi.Message, text string) *tgbotapi.Message {
	m := tgbotapi.NewMessage(msg.Chat.ID, text)
	m.ReplyToMessageID = msg.MessageID
	sent, err := b.api.Send(m)
	if err != nil {
		b.log.Error("reply failed", "err", err)
		return nil
	}
	return &sent
}

/*** backup.Sender ***/

func (b *Bot) SendMessage(chatID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (b *Bot) SendDocument(chatID int64, filename string, data []byte, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	doc.Caption = caption
	_, err := b.api.Send(doc)
	return err
}
