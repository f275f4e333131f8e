package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daddygpt/daddygpt-bot/internal/domain/authz"
	"github.com/daddygpt/daddygpt-bot/internal/domain/chatlog"
	"github.com/daddygpt/daddygpt-bot/internal/domain/prompts"
	"github.com/daddygpt/daddygpt-bot/internal/domain/settings"
	"github.com/daddygpt/daddygpt-bot/internal/domain/users"
	"github.com/daddygpt/daddygpt-bot/internal/errs"
)

func sampleSnapshot() *Snapshot {
	t0 := time.Unix(1700000000, 0)
	t1 := time.Unix(1700003600, 0)
	return &Snapshot{
		Settings: []settings.Setting{
			{Key: "bot_enabled", Value: "1"},
			{Key: "trigger_name", Value: "daddygpt"},
		},
		Admins:        []authz.Admin{{UserID: 42, AddedAt: t0}},
		PendingAdmins: []authz.PendingAdmin{{Username: "alice", AddedAt: t0}},
		Bans:          []authz.Ban{{UserID: 7, Username: "spammer", Reason: "spam", BannedAt: t1}},
		PendingBans:   []authz.PendingBan{{Username: "troll", Reason: "trolling", BannedAt: t1}},
		Prompts: []prompts.Prompt{
			{ID: 1, Text: "Be concise.", Enabled: true, CreatedAt: t0},
			{ID: 2, Text: "Disabled one.", Enabled: false, CreatedAt: t1},
		},
		Users: []users.User{
			{ID: 42, Username: "boss", FirstName: "Big", LastName: "Boss", FirstSeen: t0, LastSeen: t1},
			{ID: 7, Username: "spammer", FirstSeen: t0, LastSeen: t0},
		},
		UserChanges: []users.Change{
			{ID: 1, UserID: 42, Field: "username", OldValue: "oldboss", NewValue: "boss", ChangedAt: t1},
		},
		Messages: []chatlog.Message{
			{ID: 1, ChatID: -100, ChatType: "group", UserID: 42, Role: chatlog.RoleUser, Text: "daddygpt hi", TGMessageID: 10, CreatedAt: t0},
			{ID: 2, ChatID: -100, ChatType: "group", UserID: 42, Role: chatlog.RoleAssistant, Text: "hi!", TGMessageID: 11, ReplyToTGMessageID: 10, CreatedAt: t0},
		},
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	want := sampleSnapshot()

	data, err := Marshal(want)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	got, err := Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, want.Settings, got.Settings)
	assert.Equal(t, want.Admins, got.Admins)
	assert.Equal(t, want.PendingAdmins, got.PendingAdmins)
	assert.Equal(t, want.Bans, got.Bans)
	assert.Equal(t, want.PendingBans, got.PendingBans)
	assert.Equal(t, want.Prompts, got.Prompts)
	assert.Equal(t, want.Users, got.Users)
	assert.Equal(t, want.UserChanges, got.UserChanges)
	assert.Equal(t, want.Messages, got.Messages)
}

func TestRoundTripEmptySnapshot(t *testing.T) {
	data, err := Marshal(&Snapshot{})
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Empty(t, got.Users)
	assert.Empty(t, got.Messages)
}

func TestUnmarshalGarbage(t *testing.T) {
	_, err := Unmarshal([]byte("definitely not a workbook"))
	assert.True(t, errs.IsKind(err, errs.KindExport))
}
