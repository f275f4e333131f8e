package chatlog

import "time"

// Role marks message direction: user rows are inbound, assistant rows
// are the bot's own replies.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	ID                 int64
	ChatID             int64
	ChatType           string
	UserID             int64
	Role               string
	Text               string
	TGMessageID        int64
	ReplyToTGMessageID int64
	CreatedAt          time.Time
}
