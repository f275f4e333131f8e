package users

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) GetByID(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT user_id, username, first_name, last_name, first_seen, last_seen
		FROM users WHERE user_id = $1
	`, id)

	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.FirstSeen, &u.LastSeen); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// GetIDByUsername resolves a normalized username to a known user id.
// Returns 0 when nobody with that username has messaged the bot yet.
func (r *Repo) GetIDByUsername(ctx context.Context, username string) (int64, error) {
	u := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
	if u == "" {
		return 0, nil
	}
	row := r.pool.QueryRow(ctx, `SELECT user_id FROM users WHERE lower(username) = $1 LIMIT 1`, u)
	var id int64
	if err := row.Scan(&id); err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return id, nil
}

// IDByUsernameTx is GetIDByUsername inside the caller's transaction.
// Grant/ban paths resolve usernames through this so the lookup shares a
// snapshot with the pending-record write that follows it.
func (r *Repo) IDByUsernameTx(ctx context.Context, tx pgx.Tx, username string) (int64, error) {
	u := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
	if u == "" {
		return 0, nil
	}
	var id int64
	err := tx.QueryRow(ctx, `SELECT user_id FROM users WHERE lower(username) = $1 LIMIT 1`, u).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	return id, err
}

// UsernameTx returns the stored username for an id, "" when the user is
// unknown.
func (r *Repo) UsernameTx(ctx context.Context, tx pgx.Tx, id int64) (string, error) {
	var username string
	err := tx.QueryRow(ctx, `SELECT username FROM users WHERE user_id = $1`, id).Scan(&username)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	return username, err
}

func (r *Repo) Search(ctx context.Context, query string, limit int) ([]User, error) {
	like := "%" + strings.TrimSpace(query) + "%"
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, username, first_name, last_name, first_seen, last_seen
		FROM users
		WHERE CAST(user_id AS TEXT) LIKE $1
		   OR username ILIKE $1
		   OR first_name ILIKE $1
		   OR last_name ILIKE $1
		ORDER BY last_seen DESC
		LIMIT $2
	`, like, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.FirstSeen, &u.LastSeen); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repo) Changes(ctx context.Context, userID int64, limit int) ([]Change, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, field, old_value, new_value, changed_at
		FROM user_changes
		WHERE user_id = $1
		ORDER BY changed_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Change
	for rows.Next() {
		var c Change
		if err := rows.Scan(&c.ID, &c.UserID, &c.Field, &c.OldValue, &c.NewValue, &c.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// UpsertTx creates or refreshes the user row inside the caller's
// transaction. Profile changes are appended to user_changes, never
// overwritten. The row is locked so pending resolution in the same
// transaction cannot race a concurrent upsert for the same user.
func (r *Repo) UpsertTx(ctx context.Context, tx pgx.Tx, id Identity) error {
	row := tx.QueryRow(ctx, `
		SELECT username, first_name, last_name FROM users WHERE user_id = $1 FOR UPDATE
	`, id.ID)

	var username, firstName, lastName string
	err := row.Scan(&username, &firstName, &lastName)
	if err == pgx.ErrNoRows {
		_, err = tx.Exec(ctx, `
			INSERT INTO users (user_id, username, first_name, last_name)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id) DO UPDATE SET last_seen = now()
		`, id.ID, id.Username, id.FirstName, id.LastName)
		return err
	}
	if err != nil {
		return err
	}

	track := func(field, oldVal, newVal string) error {
		if oldVal == newVal {
			return nil
		}
		_, terr := tx.Exec(ctx, `
			INSERT INTO user_changes (user_id, field, old_value, new_value)
			VALUES ($1, $2, $3, $4)
		`, id.ID, field, oldVal, newVal)
		return terr
	}
	if err := track("username", username, id.Username); err != nil {
		return err
	}
	if err := track("first_name", firstName, id.FirstName); err != nil {
		return err
	}
	if err := track("last_name", lastName, id.LastName); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET username = $2, first_name = $3, last_name = $4, last_seen = now()
		WHERE user_id = $1
	`, id.ID, id.Username, id.FirstName, id.LastName)
	return err
}
