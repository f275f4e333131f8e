package users

import "time"

type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	FirstSeen time.Time
	LastSeen  time.Time
}

// Identity is what the transport reveals about the sender of a message.
type Identity struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Change is one recorded rename of a profile field; the current value
// lives on the users row, history is append-only.
type Change struct {
	ID        int64
	UserID    int64
	Field     string
	OldValue  string
	NewValue  string
	ChangedAt time.Time
}
