package authz

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

/*** READS ***/

func (r *Repo) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	var one int
	err := r.pool.QueryRow(ctx, `SELECT 1 FROM admins WHERE user_id = $1`, userID).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// IsBanned checks the concrete ban first, then a pending ban on the
// current username.
func (r *Repo) IsBanned(ctx context.Context, userID int64, username string) (bool, error) {
	var one int
	err := r.pool.QueryRow(ctx, `SELECT 1 FROM bans WHERE user_id = $1`, userID).Scan(&one)
	if err == nil {
		return true, nil
	}
	if err != pgx.ErrNoRows {
		return false, err
	}

	u := NormalizeUsername(username)
	if u == "" {
		return false, nil
	}
	err = r.pool.QueryRow(ctx, `SELECT 1 FROM bans_pending WHERE username = $1`, u).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r *Repo) CountAdmins(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM admins`).Scan(&n)
	return n, err
}

func (r *Repo) CountBans(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bans`).Scan(&n)
	return n, err
}

func (r *Repo) ListAdmins(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM admins ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *Repo) ListBans(ctx context.Context, limit int) ([]Ban, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, username, reason, banned_at
		FROM bans ORDER BY banned_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Ban
	for rows.Next() {
		var b Ban
		if err := rows.Scan(&b.UserID, &b.Username, &b.Reason, &b.BannedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repo) GetBan(ctx context.Context, userID int64) (*Ban, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT user_id, username, reason, banned_at FROM bans WHERE user_id = $1
	`, userID)

	var b Ban
	if err := row.Scan(&b.UserID, &b.Username, &b.Reason, &b.BannedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

/*** TX MUTATORS ***/

// lockUsernameTx serializes every writer touching pending records for
// one username. The grant/ban paths and first-message resolution all
// take this lock, so a pending insert can never interleave with the
// resolve that should consume it: whichever transaction wins the lock,
// the loser sees its committed state.
func (r *Repo) lockUsernameTx(ctx context.Context, tx pgx.Tx, username string) error {
	u := NormalizeUsername(username)
	if u == "" {
		return nil
	}
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, u)
	return err
}

// isBannedTx mirrors IsBanned inside the caller's transaction.
func (r *Repo) isBannedTx(ctx context.Context, tx pgx.Tx, userID int64, username string) (bool, error) {
	var one int
	err := tx.QueryRow(ctx, `SELECT 1 FROM bans WHERE user_id = $1`, userID).Scan(&one)
	if err == nil {
		return true, nil
	}
	if err != pgx.ErrNoRows {
		return false, err
	}

	u := NormalizeUsername(username)
	if u == "" {
		return false, nil
	}
	err = tx.QueryRow(ctx, `SELECT 1 FROM bans_pending WHERE username = $1`, u).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r *Repo) grantAdminTx(ctx context.Context, tx pgx.Tx, userID int64) error {
	// Idempotent: granting an existing admin is a no-op.
	_, err := tx.Exec(ctx, `
		INSERT INTO admins (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING
	`, userID)
	return err
}

func (r *Repo) revokeAdminTx(ctx context.Context, tx pgx.Tx, userID int64) error {
	_, err := tx.Exec(ctx, `DELETE FROM admins WHERE user_id = $1`, userID)
	return err
}

func (r *Repo) addPendingAdminTx(ctx context.Context, tx pgx.Tx, username string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO admins_pending (username) VALUES ($1) ON CONFLICT (username) DO NOTHING
	`, username)
	return err
}

func (r *Repo) removePendingAdminTx(ctx context.Context, tx pgx.Tx, username string) error {
	_, err := tx.Exec(ctx, `DELETE FROM admins_pending WHERE username = $1`, username)
	return err
}

// banTx records the ban and demotes in the same transaction: a banned
// principal never retains admin capability.
func (r *Repo) banTx(ctx context.Context, tx pgx.Tx, userID int64, username, reason string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM admins WHERE user_id = $1`, userID); err != nil {
		return err
	}
	if u := NormalizeUsername(username); u != "" {
		if _, err := tx.Exec(ctx, `DELETE FROM admins_pending WHERE username = $1`, u); err != nil {
			return err
		}
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO bans (user_id, username, reason) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET username = EXCLUDED.username, reason = EXCLUDED.reason, banned_at = now()
	`, userID, NormalizeUsername(username), reason)
	return err
}

func (r *Repo) banPendingTx(ctx context.Context, tx pgx.Tx, username, reason string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM admins_pending WHERE username = $1`, username); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO bans_pending (username, reason) VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE SET reason = EXCLUDED.reason, banned_at = now()
	`, username, reason)
	return err
}

// unbanTx removes the ban and reports the username recorded on it, so
// the caller can clear pending rows the same principal may still have.
func (r *Repo) unbanTx(ctx context.Context, tx pgx.Tx, userID int64) (string, error) {
	var username string
	err := tx.QueryRow(ctx, `DELETE FROM bans WHERE user_id = $1 RETURNING username`, userID).Scan(&username)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	return username, err
}

func (r *Repo) unbanPendingTx(ctx context.Context, tx pgx.Tx, username string) error {
	_, err := tx.Exec(ctx, `DELETE FROM bans_pending WHERE username = $1`, username)
	return err
}

// resolveTx converts pending records matching the user's current
// username into concrete grants/bans. Runs inside the same transaction
// as the user upsert; a pending ban wins over a pending admin grant.
func (r *Repo) resolveTx(ctx context.Context, tx pgx.Tx, userID int64, username string) error {
	u := NormalizeUsername(username)
	if u == "" {
		return nil
	}

	tag, err := tx.Exec(ctx, `DELETE FROM admins_pending WHERE username = $1`, u)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		if err := r.grantAdminTx(ctx, tx, userID); err != nil {
			return err
		}
	}

	var reason string
	err = tx.QueryRow(ctx, `DELETE FROM bans_pending WHERE username = $1 RETURNING reason`, u).Scan(&reason)
	if err != nil && err != pgx.ErrNoRows {
		return err
	}
	if err == nil {
		return r.banTx(ctx, tx, userID, u, reason)
	}
	return nil
}
