package authz

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/daddygpt/daddygpt-bot/internal/errs"
)

// Status of a principal. Banned and admin are mutually exclusive:
// banning always demotes.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusRegular Status = "regular"
	StatusAdmin   Status = "admin"
	StatusBanned  Status = "banned"
)

type Admin struct {
	UserID  int64
	AddedAt time.Time
}

// PendingAdmin is an admin grant for a username nobody has linked to an
// id yet. At most one row per normalized username.
type PendingAdmin struct {
	Username string
	AddedAt  time.Time
}

type Ban struct {
	UserID   int64
	Username string
	Reason   string
	BannedAt time.Time
}

type PendingBan struct {
	Username string
	Reason   string
	BannedAt time.Time
}

// Ref is a parsed admin/ban target: either a concrete id or a
// normalized username (never both).
type Ref struct {
	ID       int64
	Username string
}

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)

// ParseRef accepts "<id>" or "@username"/"username". Usernames are
// normalized to lowercase without the leading @.
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, errs.Validation("empty reference, expected <id> or @username")
	}

	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		if id <= 0 {
			return Ref{}, errs.Validation("user id must be positive")
		}
		return Ref{ID: id}, nil
	}

	u := strings.ToLower(strings.TrimPrefix(s, "@"))
	if !usernameRe.MatchString(u) {
		return Ref{}, errs.Validation("malformed username: " + s)
	}
	return Ref{Username: u}, nil
}

// NormalizeUsername applies the same normalization ParseRef uses,
// returning "" for values that cannot name a pending record.
func NormalizeUsername(s string) string {
	u := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
	if !usernameRe.MatchString(u) {
		return ""
	}
	return u
}
