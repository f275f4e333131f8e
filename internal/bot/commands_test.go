package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/daddygpt/daddygpt-bot/internal/router"
)

func TestUnauthorizedAttempt(t *testing.T) {
	tests := []struct {
		name  string
		flags router.Flags
		cmd   string
		want  bool
	}{
		{"non-admin admin command in group", router.Flags{BotEnabled: true}, "ban", true},
		{"non-admin command while disabled", router.Flags{}, "exportnow", true},
		{"banned non-admin command", router.Flags{SenderBanned: true, BotEnabled: true}, "addadmin", true},
		{"admin never flagged", router.Flags{SenderAdmin: true, BotEnabled: true}, "ban", false},
		{"banned admin never flagged", router.Flags{SenderAdmin: true, SenderBanned: true}, "ban", false},
		{"help is public", router.Flags{}, "help", false},
		{"start is public", router.Flags{BotEnabled: true}, "start", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, unauthorizedAttempt(tt.flags, tt.cmd))
		})
	}
}
