package export

import (
	"github.com/daddygpt/daddygpt-bot/internal/domain/authz"
	"github.com/daddygpt/daddygpt-bot/internal/domain/chatlog"
	"github.com/daddygpt/daddygpt-bot/internal/domain/prompts"
	"github.com/daddygpt/daddygpt-bot/internal/domain/settings"
	"github.com/daddygpt/daddygpt-bot/internal/domain/users"
)

// Snapshot is a point-in-time copy of every persisted table, the unit
// of backup and restore.
type Snapshot struct {
	Settings      []settings.Setting
	Admins        []authz.Admin
	PendingAdmins []authz.PendingAdmin
	Bans          []authz.Ban
	PendingBans   []authz.PendingBan
	Prompts       []prompts.Prompt
	Users         []users.User
	UserChanges   []users.Change
	Messages      []chatlog.Message
}

// Sheet names, one per table. Import looks sheets up by these names and
// skips the ones a file does not carry.
const (
	sheetSettings      = "settings"
	sheetAdmins        = "admins"
	sheetPendingAdmins = "admins_pending"
	sheetBans          = "bans"
	sheetPendingBans   = "bans_pending"
	sheetPrompts       = "system_prompts"
	sheetUsers         = "users"
	sheetUserChanges   = "user_changes"
	sheetMessages      = "messages"
)
