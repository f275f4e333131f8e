// Package router decides, per inbound message, whether the bot
// responds at all. The precedence order is a contract: ban veto first,
// then the global enable flag (admin commands pass through it), then
// chat-type rules.
package router

import (
	"fmt"
	"regexp"
	"strings"
)

type Decision int

const (
	Ignore Decision = iota
	Respond
)

func (d Decision) String() string {
	if d == Respond {
		return "respond"
	}
	return "ignore"
}

const (
	ChatPrivate    = "private"
	ChatGroup      = "group"
	ChatSupergroup = "supergroup"
)

// Message is the transport-level view of one inbound event.
type Message struct {
	SenderID       int64
	ChatType       string
	Text           string
	IsReplyToBot   bool
	MentionsBot    bool
	IsAdminCommand bool
}

// Flags are the store-derived facts about the sender and the bot.
type Flags struct {
	SenderBanned bool
	SenderAdmin  bool
	BotEnabled   bool
}

// Decide returns the terminal decision and the text to feed to
// inference (trigger prefix stripped in group chats).
func Decide(msg Message, f Flags, triggerName, botUsername string) (Decision, string) {
	// 1. Ban veto is absolute, admin-command override included.
	if f.SenderBanned {
		return Ignore, ""
	}

	// 2. Disabled bot ignores everything except admin commands, so an
	// admin can always re-enable it.
	if !f.BotEnabled && !(msg.IsAdminCommand && f.SenderAdmin) {
		return Ignore, ""
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return Ignore, ""
	}
	if msg.IsAdminCommand && f.SenderAdmin {
		return Respond, text
	}

	switch msg.ChatType {
	case ChatPrivate:
		return Respond, text

	case ChatGroup, ChatSupergroup:
		// A reply to the bot's own message needs no trigger.
		if msg.IsReplyToBot {
			return Respond, text
		}
		if cleaned, ok := stripTrigger(text, triggerName, botUsername); ok {
			return Respond, cleaned
		}
		if msg.MentionsBot {
			return Respond, text
		}
		return Ignore, ""

	default:
		return Ignore, ""
	}
}

// stripTrigger matches a leading trigger word or @handle, case
// insensitive, allowing leading whitespace and an optional ":" or ","
// after the trigger. The remainder must be non-empty.
func stripTrigger(text, triggerName, botUsername string) (string, bool) {
	uname := regexp.QuoteMeta(strings.TrimPrefix(botUsername, "@"))
	trig := regexp.QuoteMeta(triggerName)
	if uname == "" && trig == "" {
		return "", false
	}

	re := regexp.MustCompile(fmt.Sprintf(`(?i)^\s*(?:@%s\b|%s\b)\s*[:,]?\s*`, uname, trig))
	loc := re.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	cleaned := strings.TrimSpace(text[loc[1]:])
	return cleaned, cleaned != ""
}
