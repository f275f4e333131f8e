package router

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	trigger = "daddygpt"
	handle  = "daddygpt_bot"
)

func enabled() Flags { return Flags{BotEnabled: true} }

func TestBanVetoIsAbsolute(t *testing.T) {
	testCases := []struct {
		name string
		msg  Message
		f    Flags
	}{
		{
			name: "private chat",
			msg:  Message{ChatType: ChatPrivate, Text: "hello"},
			f:    Flags{SenderBanned: true, BotEnabled: true},
		},
		{
			name: "group with trigger",
			msg:  Message{ChatType: ChatGroup, Text: "daddygpt hello"},
			f:    Flags{SenderBanned: true, BotEnabled: true},
		},
		{
			name: "reply to bot",
			msg:  Message{ChatType: ChatSupergroup, Text: "hello", IsReplyToBot: true},
			f:    Flags{SenderBanned: true, BotEnabled: true},
		},
		{
			name: "banned admin issuing command",
			msg:  Message{ChatType: ChatPrivate, Text: "/bot_enable", IsAdminCommand: true},
			f:    Flags{SenderBanned: true, SenderAdmin: true, BotEnabled: false},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d, _ := Decide(tc.msg, tc.f, trigger, handle)
			assert.Equal(t, Ignore, d)
		})
	}
}

func TestDisabledBot(t *testing.T) {
	msg := Message{ChatType: ChatGroup, Text: "DaddyGPT, what time is it?"}

	d, _ := Decide(msg, Flags{BotEnabled: false}, trigger, handle)
	assert.Equal(t, Ignore, d, "disabled bot ignores non-admins")

	cmd := Message{ChatType: ChatGroup, Text: "/bot_enable", IsAdminCommand: true}
	d, _ = Decide(cmd, Flags{BotEnabled: false, SenderAdmin: true}, trigger, handle)
	assert.Equal(t, Respond, d, "admin commands pass through the disabled flag")

	d, _ = Decide(cmd, Flags{BotEnabled: false}, trigger, handle)
	assert.Equal(t, Ignore, d, "non-admin command does not bypass the flag")
}

func TestPrivateChatAlwaysResponds(t *testing.T) {
	d, cleaned := Decide(Message{ChatType: ChatPrivate, Text: " hello there "}, enabled(), trigger, handle)
	assert.Equal(t, Respond, d)
	assert.Equal(t, "hello there", cleaned)
}

func TestEmptyTextIgnored(t *testing.T) {
	d, _ := Decide(Message{ChatType: ChatPrivate, Text: "   "}, enabled(), trigger, handle)
	assert.Equal(t, Ignore, d)
}

// All eight combinations of (trigger prefix, mentions bot, reply to bot)
// for a group message: respond iff at least one holds.
func TestGroupEligibilityCombinations(t *testing.T) {
	for i := 0; i < 8; i++ {
		hasTrigger := i&1 != 0
		mentions := i&2 != 0
		reply := i&4 != 0

		text := "what time is it?"
		if hasTrigger {
			text = "daddygpt " + text
		}

		want := Ignore
		if hasTrigger || mentions || reply {
			want = Respond
		}

		name := fmt.Sprintf("trigger=%v mentions=%v reply=%v", hasTrigger, mentions, reply)
		t.Run(name, func(t *testing.T) {
			msg := Message{ChatType: ChatGroup, Text: text, MentionsBot: mentions, IsReplyToBot: reply}
			d, _ := Decide(msg, enabled(), trigger, handle)
			assert.Equal(t, want, d)
		})
	}
}

func TestTriggerMatching(t *testing.T) {
	testCases := []struct {
		name        string
		text        string
		want        Decision
		wantCleaned string
	}{
		{name: "case insensitive", text: "DaddyGPT, what time is it?", want: Respond, wantCleaned: "what time is it?"},
		{name: "leading whitespace", text: "   daddygpt hello", want: Respond, wantCleaned: "hello"},
		{name: "colon separator", text: "daddygpt: hello", want: Respond, wantCleaned: "hello"},
		{name: "handle prefix", text: "@daddygpt_bot hello", want: Respond, wantCleaned: "hello"},
		{name: "handle case insensitive", text: "@DaddyGPT_Bot hello", want: Respond, wantCleaned: "hello"},
		{name: "trigger mid-sentence", text: "I love daddygpt a lot", want: Ignore},
		{name: "trigger as word prefix", text: "daddygptx hello", want: Ignore},
		{name: "trigger with nothing after", text: "daddygpt", want: Ignore},
		{name: "unrelated text", text: "what time is it?", want: Ignore},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg := Message{ChatType: ChatSupergroup, Text: tc.text}
			d, cleaned := Decide(msg, enabled(), trigger, handle)
			assert.Equal(t, tc.want, d)
			if tc.want == Respond {
				assert.Equal(t, tc.wantCleaned, cleaned)
			}
		})
	}
}

func TestUnknownChatTypeIgnored(t *testing.T) {
	d, _ := Decide(Message{ChatType: "channel", Text: "daddygpt hi"}, enabled(), trigger, handle)
	assert.Equal(t, Ignore, d)
}
