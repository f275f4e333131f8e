package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/daddygpt/daddygpt-bot/internal/domain/authz"
	"github.com/daddygpt/daddygpt-bot/internal/domain/chatlog"
	"github.com/daddygpt/daddygpt-bot/internal/domain/settings"
	"github.com/daddygpt/daddygpt-bot/internal/errs"
	"github.com/daddygpt/daddygpt-bot/internal/router"
)

const commandList = `Admin commands:
/enable /disable — toggle the bot
/backupon /backupoff — toggle the daily backup
/exportnow — export the database right now
(send an .xlsx file with caption /importdb to import)
/addadmin <id|@username> /deladmin <id|@username> /admins
/ban <id|@username> [reason] /unban <id|@username> /bans /baninfo <id|@username>
/prompts /addprompt <text> /setprompt <id> <text>
/enableprompt <id> /disableprompt <id> /delprompt <id> /clearprompts
/persona [text] /trigger [word] /botname [name]
/users [query] /user <id|@username> /chat <id|@username> /chatsearch <id|@username> <query>
/stats /settings`

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	flags, ok := b.routeFlags(ctx, msg)
	if !ok {
		return
	}

	rmsg := router.Message{
		SenderID:       msg.From.ID,
		ChatType:       msg.Chat.Type,
		Text:           msg.Text,
		IsReplyToBot:   b.isReplyToBot(msg),
		MentionsBot:    b.mentionsBot(msg),
		IsAdminCommand: true,
	}
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())

	decision, _ := router.Decide(rmsg, flags, b.triggerName(ctx), b.botUsername)
	b.metrics.MessagesTotal.WithLabelValues(decision.String()).Inc()
	if decision == router.Ignore {
		// No reply is due, but the attempt still goes on record.
		if unauthorizedAttempt(flags, cmd) {
			b.log.Warn("unauthorized command ignored", "user", msg.From.ID, "cmd", cmd, "chat", msg.Chat.Type)
			b.metrics.CommandsTotal.WithLabelValues("unauthorized").Inc()
		}
		return
	}

	if cmd == "start" || cmd == "help" {
		if flags.SenderAdmin {
			b.reply(msg, "Hi. I reply in private chats and in groups when addressed.\n\n"+commandList)
		} else {
			b.reply(msg, "Hi. Talk to me here, or address me in a group by name.")
		}
		b.metrics.CommandsTotal.WithLabelValues("ok").Inc()
		return
	}

	if !flags.SenderAdmin {
		b.log.Warn("unauthorized command", "user", msg.From.ID, "cmd", cmd)
		b.metrics.CommandsTotal.WithLabelValues("unauthorized").Inc()
		b.reply(msg, errs.Authorization().UserMessage)
		return
	}

	b.handleAdminCommand(ctx, msg, cmd, args)
}

// unauthorizedAttempt reports whether a dropped command was a
// non-admin reaching for the admin surface. start/help are open to
// everyone, so dropping them is routing, not an authorization event.
func unauthorizedAttempt(f router.Flags, cmd string) bool {
	if f.SenderAdmin {
		return false
	}
	return cmd != "start" && cmd != "help"
}

func (b *Bot) handleAdminCommand(ctx context.Context, msg *tgbotapi.Message, cmd, args string) {
	fail := func(err error) {
		b.log.Error("command failed", "cmd", cmd, "user", msg.From.ID, "err", err)
		b.metrics.CommandsTotal.WithLabelValues("error").Inc()
		b.reply(msg, errs.UserMessage(err))
	}
	done := func(text string) {
		b.metrics.CommandsTotal.WithLabelValues("ok").Inc()
		b.reply(msg, text)
	}

	switch cmd {
	case "commands":
		done(commandList)

	case "enable":
		if err := b.settings.SetBotEnabled(ctx, true); err != nil {
			fail(errs.Store(err))
			return
		}
		done("Bot enabled.")

	case "disable":
		if err := b.settings.SetBotEnabled(ctx, false); err != nil {
			fail(errs.Store(err))
			return
		}
		done("Bot disabled. Admin commands keep working.")

	case "backupon":
		if err := b.settings.SetBackupEnabled(ctx, true); err != nil {
			fail(errs.Store(err))
			return
		}
		done("Daily backup enabled.")

	case "backupoff":
		if err := b.settings.SetBackupEnabled(ctx, false); err != nil {
			fail(errs.Store(err))
			return
		}
		done("Daily backup disabled.")

	case "exportnow":
		name, data, err := b.backups.ExportNow(ctx)
		if err != nil {
			fail(err)
			return
		}
		if err := b.SendDocument(msg.Chat.ID, name, data, "Manual export: "+name); err != nil {
			fail(fmt.Errorf("deliver export: %w", err))
			return
		}
		b.metrics.CommandsTotal.WithLabelValues("ok").Inc()

	case "addadmin":
		ref, err := authz.ParseRef(args)
		if err != nil {
			fail(err)
			return
		}
		pending, err := b.authz.GrantAdmin(ctx, ref)
		if err != nil {
			fail(err)
			return
		}
		if pending {
			done(fmt.Sprintf("@%s has not messaged the bot yet; the grant is pending and applies on their first message.", ref.Username))
			return
		}
		done("Admin granted.")

	case "deladmin":
		ref, err := authz.ParseRef(args)
		if err != nil {
			fail(err)
			return
		}
		if err := b.authz.RevokeAdmin(ctx, ref); err != nil {
			fail(err)
			return
		}
		done("Admin revoked.")

	case "admins":
		b.cmdAdmins(ctx, msg, fail)

	case "ban":
		fields := strings.Fields(args)
		if len(fields) == 0 {
			fail(errs.Validation("usage: /ban <id|@username> [reason]"))
			return
		}
		ref, err := authz.ParseRef(fields[0])
		if err != nil {
			fail(err)
			return
		}
		reason := strings.TrimSpace(strings.TrimPrefix(args, fields[0]))
		if reason == "" {
			reason = "banned"
		}
		pending, err := b.authz.Ban(ctx, ref, reason)
		if err != nil {
			fail(err)
			return
		}
		if pending {
			done(fmt.Sprintf("@%s has not messaged the bot yet; the ban is pending and applies on their first message.", ref.Username))
			return
		}
		done("User banned.")

	case "unban":
		ref, err := authz.ParseRef(args)
		if err != nil {
			fail(err)
			return
		}
		if err := b.authz.Unban(ctx, ref); err != nil {
			fail(err)
			return
		}
		done("User unbanned. Admin rights are not restored automatically.")

	case "bans":
		bans, err := b.authz.ListBans(ctx, 50)
		if err != nil {
			fail(err)
			return
		}
		if len(bans) == 0 {
			done("No active bans.")
			return
		}
		var sb strings.Builder
		sb.WriteString("Active bans:\n")
		for _, bn := range bans {
			fmt.Fprintf(&sb, "%d", bn.UserID)
			if bn.Username != "" {
				fmt.Fprintf(&sb, " @%s", bn.Username)
			}
			fmt.Fprintf(&sb, " — %s (%s)\n", bn.Reason, bn.BannedAt.Format("2006-01-02"))
		}
		done(sb.String())

	case "baninfo":
		b.cmdBanInfo(ctx, msg, args, fail, done)

	case "prompts":
		list, err := b.prompts.List(ctx)
		if err != nil {
			fail(errs.Store(err))
			return
		}
		if len(list) == 0 {
			done("No system prompts configured.")
			return
		}
		var sb strings.Builder
		sb.WriteString("System prompts:\n")
		for _, p := range list {
			state := "off"
			if p.Enabled {
				state = "on"
			}
			fmt.Fprintf(&sb, "%d [%s] %s\n", p.ID, state, p.Text)
		}
		done(sb.String())

	case "addprompt":
		if args == "" {
			fail(errs.Validation("usage: /addprompt <text>"))
			return
		}
		if err := b.prompts.Add(ctx, args); err != nil {
			fail(errs.Store(err))
			return
		}
		done("Prompt added.")

	case "setprompt":
		id, rest, err := splitIDArg(args, "usage: /setprompt <id> <text>")
		if err != nil {
			fail(err)
			return
		}
		if rest == "" {
			fail(errs.Validation("usage: /setprompt <id> <text>"))
			return
		}
		if err := b.prompts.SetText(ctx, id, rest); err != nil {
			fail(errs.Store(err))
			return
		}
		done("Prompt updated.")

	case "enableprompt", "disableprompt":
		id, _, err := splitIDArg(args, "usage: /"+cmd+" <id>")
		if err != nil {
			fail(err)
			return
		}
		if err := b.prompts.SetEnabled(ctx, id, cmd == "enableprompt"); err != nil {
			fail(errs.Store(err))
			return
		}
		done("Prompt " + strings.TrimSuffix(cmd, "prompt") + "d.")

	case "delprompt":
		id, _, err := splitIDArg(args, "usage: /delprompt <id>")
		if err != nil {
			fail(err)
			return
		}
		if err := b.prompts.Delete(ctx, id); err != nil {
			fail(errs.Store(err))
			return
		}
		done("Prompt deleted.")

	case "clearprompts":
		if err := b.prompts.Clear(ctx); err != nil {
			fail(errs.Store(err))
			return
		}
		done("All prompts removed.")

	case "persona":
		b.cmdSetting(ctx, msg, settings.KeyPersona, args, "Persona", fail, done)

	case "botname":
		b.cmdSetting(ctx, msg, settings.KeyBotDisplayName, args, "Bot name", fail, done)

	case "trigger":
		if args != "" && len(strings.Fields(args)) > 1 {
			fail(errs.Validation("trigger must be a single word"))
			return
		}
		b.cmdSetting(ctx, msg, settings.KeyTriggerName, strings.ToLower(args), "Trigger word", fail, done)

	case "users":
		b.cmdUsers(ctx, msg, args, fail, done)

	case "user":
		b.cmdUser(ctx, msg, args, fail, done)

	case "chat":
		b.cmdChat(ctx, msg, args, fail)

	case "chatsearch":
		b.cmdChatSearch(ctx, msg, args, fail)

	case "stats":
		b.cmdStats(ctx, msg, fail, done)

	case "settings":
		list, err := b.settings.List(ctx)
		if err != nil {
			fail(errs.Store(err))
			return
		}
		var sb strings.Builder
		sb.WriteString("Settings:\n")
		for _, s := range list {
			fmt.Fprintf(&sb, "%s = %s\n", s.Key, s.Value)
		}
		done(sb.String())

	default:
		done("Unknown command. See /commands.")
	}
}

func (b *Bot) cmdAdmins(ctx context.Context, msg *tgbotapi.Message, fail func(error)) {
	ids, err := b.authz.ListAdmins(ctx)
	if err != nil {
		fail(err)
		return
	}
	if len(ids) == 0 {
		b.metrics.CommandsTotal.WithLabelValues("ok").Inc()
		b.reply(msg, "No admins configured.")
		return
	}
	var sb strings.Builder
	sb.WriteString("Admins:\n")
	for _, id := range ids {
		fmt.Fprintf(&sb, "%d", id)
		if u, err := b.users.GetByID(ctx, id); err == nil && u != nil && u.Username != "" {
			fmt.Fprintf(&sb, " @%s", u.Username)
		}
		sb.WriteString("\n")
	}
	b.metrics.CommandsTotal.WithLabelValues("ok").Inc()
	b.reply(msg, sb.String())
}

func (b *Bot) cmdBanInfo(ctx context.Context, msg *tgbotapi.Message, args string, fail func(error), done func(string)) {
	id, err := b.resolveRef(ctx, args)
	if err != nil {
		fail(err)
		return
	}
	if id == 0 {
		done("No such user.")
		return
	}
	ban, err := b.authz.GetBan(ctx, id)
	if err != nil {
		fail(err)
		return
	}
	if ban == nil {
		done("No ban record.")
		return
	}
	line := fmt.Sprintf("User %d", ban.UserID)
	if ban.Username != "" {
		line += " @" + ban.Username
	}
	done(fmt.Sprintf("%s banned since %s: %s", line, ban.BannedAt.Format("2006-01-02 15:04"), ban.Reason))
}

func (b *Bot) cmdSetting(ctx context.Context, msg *tgbotapi.Message, key, value, label string, fail func(error), done func(string)) {
	if value == "" {
		current, err := b.settings.Get(ctx, key)
		if err != nil {
			fail(errs.Store(err))
			return
		}
		if current == "" {
			current = "(unset)"
		}
		done(label + ": " + current)
		return
	}
	if err := b.settings.Set(ctx, key, value); err != nil {
		fail(errs.Store(err))
		return
	}
	done(label + " updated.")
}

func (b *Bot) cmdUsers(ctx context.Context, msg *tgbotapi.Message, query string, fail func(error), done func(string)) {
	list, err := b.users.Search(ctx, query, 20)
	if err != nil {
		fail(errs.Store(err))
		return
	}
	if len(list) == 0 {
		done("No users found.")
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Users (%d):\n", len(list))
	for _, u := range list {
		fmt.Fprintf(&sb, "%d", u.ID)
		if u.Username != "" {
			fmt.Fprintf(&sb, " @%s", u.Username)
		}
		name := strings.TrimSpace(u.FirstName + " " + u.LastName)
		if name != "" {
			fmt.Fprintf(&sb, " (%s)", name)
		}
		fmt.Fprintf(&sb, " last seen %s\n", u.LastSeen.Format("2006-01-02"))
	}
	done(sb.String())
}

func (b *Bot) cmdUser(ctx context.Context, msg *tgbotapi.Message, args string, fail func(error), done func(string)) {
	id, err := b.resolveRef(ctx, args)
	if err != nil {
		fail(err)
		return
	}
	if id == 0 {
		done("No such user.")
		return
	}
	u, err := b.users.GetByID(ctx, id)
	if err != nil {
		fail(errs.Store(err))
		return
	}
	if u == nil {
		done("No such user.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "User %d", u.ID)
	if u.Username != "" {
		fmt.Fprintf(&sb, " @%s", u.Username)
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		fmt.Fprintf(&sb, " (%s)", name)
	}
	fmt.Fprintf(&sb, "\nfirst seen %s, last seen %s\n",
		u.FirstSeen.Format("2006-01-02 15:04"), u.LastSeen.Format("2006-01-02 15:04"))

	changes, err := b.users.Changes(ctx, id, 10)
	if err != nil {
		fail(errs.Store(err))
		return
	}
	if len(changes) > 0 {
		sb.WriteString("Recent profile changes:\n")
		for _, c := range changes {
			fmt.Fprintf(&sb, "%s: %q → %q (%s)\n", c.Field, c.OldValue, c.NewValue, c.ChangedAt.Format("2006-01-02"))
		}
	}
	done(sb.String())
}

func (b *Bot) cmdChat(ctx context.Context, msg *tgbotapi.Message, args string, fail func(error)) {
	id, err := b.resolveRef(ctx, args)
	if err != nil {
		fail(err)
		return
	}
	if id == 0 {
		b.metrics.CommandsTotal.WithLabelValues("ok").Inc()
		b.reply(msg, "No such user.")
		return
	}
	history, err := b.chatlog.Conversation(ctx, id, 500)
	if err != nil {
		fail(errs.Store(err))
		return
	}
	b.sendTranscript(msg, fmt.Sprintf("chat_%d.txt", id), history)
}

func (b *Bot) cmdChatSearch(ctx context.Context, msg *tgbotapi.Message, args string, fail func(error)) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		fail(errs.Validation("usage: /chatsearch <id|@username> <query>"))
		return
	}
	id, err := b.resolveRef(ctx, fields[0])
	if err != nil {
		fail(err)
		return
	}
	if id == 0 {
		b.metrics.CommandsTotal.WithLabelValues("ok").Inc()
		b.reply(msg, "No such user.")
		return
	}
	query := strings.TrimSpace(strings.TrimPrefix(args, fields[0]))
	hits, err := b.chatlog.Search(ctx, id, query, 200)
	if err != nil {
		fail(errs.Store(err))
		return
	}
	b.sendTranscript(msg, fmt.Sprintf("chat_%d_search.txt", id), hits)
}

func (b *Bot) cmdStats(ctx context.Context, msg *tgbotapi.Message, fail func(error), done func(string)) {
	userCount, err := b.users.Count(ctx)
	if err != nil {
		fail(errs.Store(err))
		return
	}
	msgCount, err := b.chatlog.Count(ctx)
	if err != nil {
		fail(errs.Store(err))
		return
	}
	adminCount, err := b.authz.CountAdmins(ctx)
	if err != nil {
		fail(err)
		return
	}
	banCount, err := b.authz.CountBans(ctx)
	if err != nil {
		fail(err)
		return
	}
	promptCount, err := b.prompts.Count(ctx)
	if err != nil {
		fail(errs.Store(err))
		return
	}
	enabled, err := b.settings.BotEnabled(ctx)
	if err != nil {
		fail(errs.Store(err))
		return
	}
	backups, err := b.settings.BackupEnabled(ctx)
	if err != nil {
		fail(errs.Store(err))
		return
	}
	done(fmt.Sprintf(
		"Users: %d\nMessages: %d\nAdmins: %d\nBans: %d\nPrompts: %d\nBot enabled: %t\nDaily backup: %t",
		userCount, msgCount, adminCount, banCount, promptCount, enabled, backups))
}

// sendTranscript ships a conversation as a plain-text attachment; even
// short histories overflow a single chat message quickly.
func (b *Bot) sendTranscript(msg *tgbotapi.Message, filename string, history []chatlog.Message) {
	if len(history) == 0 {
		b.metrics.CommandsTotal.WithLabelValues("ok").Inc()
		b.reply(msg, "Nothing logged.")
		return
	}
	var sb strings.Builder
	for _, m := range history {
		fmt.Fprintf(&sb, "[%s] %s (chat %d): %s\n",
			m.CreatedAt.Format("2006-01-02 15:04:05"), m.Role, m.ChatID, m.Text)
	}
	doc := tgbotapi.NewDocument(msg.Chat.ID, tgbotapi.FileBytes{Name: filename, Bytes: []byte(sb.String())})
	doc.ReplyToMessageID = msg.MessageID
	b.metrics.CommandsTotal.WithLabelValues("ok").Inc()
	b.send(doc)
}

// resolveRef parses "<id>" or "@username" and maps usernames through
// the users table; 0 means the username is unknown.
func (b *Bot) resolveRef(ctx context.Context, arg string) (int64, error) {
	ref, err := authz.ParseRef(arg)
	if err != nil {
		return 0, err
	}
	if ref.ID != 0 {
		return ref.ID, nil
	}
	id, err := b.users.GetIDByUsername(ctx, ref.Username)
	if err != nil {
		return 0, errs.Store(err)
	}
	return id, nil
}

func splitIDArg(args, usage string) (int64, string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, "", errs.Validation(usage)
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", errs.Validation(usage)
	}
	rest := strings.TrimSpace(strings.TrimPrefix(args, fields[0]))
	return id, rest, nil
}
