package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/daddygpt/daddygpt-bot/internal/errs"
	"github.com/daddygpt/daddygpt-bot/internal/export"
)

const maxImportSize = 25 << 20

// handleDocument accepts a database import: an .xlsx export uploaded
// with the caption /importdb. Anything else is ignored.
func (b *Bot) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	caption := strings.TrimSpace(msg.Caption)
	if !strings.HasPrefix(caption, "/importdb") {
		return
	}

	banned, err := b.authz.IsBanned(ctx, msg.From.ID, msg.From.UserName)
	if err != nil {
		b.log.Error("ban lookup", "user", msg.From.ID, "err", err)
		return
	}
	if banned {
		return
	}
	admin, err := b.authz.IsAdmin(ctx, msg.From.ID)
	if err != nil {
		b.log.Error("admin lookup", "user", msg.From.ID, "err", err)
		return
	}
	if !admin {
		b.log.Warn("unauthorized import attempt", "user", msg.From.ID)
		b.metrics.CommandsTotal.WithLabelValues("unauthorized").Inc()
		b.reply(msg, errs.Authorization().UserMessage)
		return
	}

	doc := msg.Document
	if !strings.HasSuffix(strings.ToLower(doc.FileName), ".xlsx") {
		b.reply(msg, "Attach the .xlsx file produced by /exportnow.")
		return
	}
	if doc.FileSize > maxImportSize {
		b.reply(msg, "File too large to import.")
		return
	}

	data, err := b.downloadFile(ctx, doc.FileID)
	if err != nil {
		b.log.Error("download import", "err", err)
		b.metrics.CommandsTotal.WithLabelValues("error").Inc()
		b.reply(msg, "Could not download the file, try again.")
		return
	}

	snap, err := export.Unmarshal(data)
	if err != nil {
		b.log.Error("parse import", "err", err)
		b.metrics.CommandsTotal.WithLabelValues("error").Inc()
		b.reply(msg, errs.UserMessage(err))
		return
	}

	if err := b.exporter.Restore(ctx, snap); err != nil {
		b.log.Error("restore import", "err", err)
		b.metrics.CommandsTotal.WithLabelValues("error").Inc()
		b.reply(msg, errs.UserMessage(errs.Store(err)))
		return
	}

	b.metrics.CommandsTotal.WithLabelValues("ok").Inc()
	b.log.Info("database imported", "by", msg.From.ID,
		"users", len(snap.Users), "messages", len(snap.Messages))
	b.reply(msg, fmt.Sprintf("Import finished: %d users, %d messages restored.",
		len(snap.Users), len(snap.Messages)))
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch file: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch file: %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxImportSize+1))
}
