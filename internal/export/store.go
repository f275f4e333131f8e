package export

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daddygpt/daddygpt-bot/internal/domain/authz"
	"github.com/daddygpt/daddygpt-bot/internal/domain/chatlog"
	"github.com/daddygpt/daddygpt-bot/internal/domain/prompts"
	"github.com/daddygpt/daddygpt-bot/internal/domain/settings"
	"github.com/daddygpt/daddygpt-bot/internal/domain/users"
	"github.com/daddygpt/daddygpt-bot/internal/errs"
)

// Store reads and replaces whole-database snapshots. Snapshot runs in a
// single read transaction; Restore replaces every table in one write
// transaction so a failed import leaves the pre-import state intact.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, errs.Store(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	snap := &Snapshot{}

	if err := collect(ctx, tx, `SELECT key, value FROM settings ORDER BY key`, func(row pgx.Rows) error {
		var v settings.Setting
		if err := row.Scan(&v.Key, &v.Value); err != nil {
			return err
		}
		snap.Settings = append(snap.Settings, v)
		return nil
	}); err != nil {
		return nil, errs.Store(err)
	}

	if err := collect(ctx, tx, `SELECT user_id, added_at FROM admins ORDER BY user_id`, func(row pgx.Rows) error {
		var v authz.Admin
		if err := row.Scan(&v.UserID, &v.AddedAt); err != nil {
			return err
		}
		snap.Admins = append(snap.Admins, v)
		return nil
	}); err != nil {
		return nil, errs.Store(err)
	}

	if err := collect(ctx, tx, `SELECT username, added_at FROM admins_pending ORDER BY username`, func(row pgx.Rows) error {
		var v authz.PendingAdmin
		if err := row.Scan(&v.Username, &v.AddedAt); err != nil {
			return err
		}
		snap.PendingAdmins = append(snap.PendingAdmins, v)
		return nil
	}); err != nil {
		return nil, errs.Store(err)
	}

	if err := collect(ctx, tx, `SELECT user_id, username, reason, banned_at FROM bans ORDER BY user_id`, func(row pgx.Rows) error {
		var v authz.Ban
		if err := row.Scan(&v.UserID, &v.Username, &v.Reason, &v.BannedAt); err != nil {
			return err
		}
		snap.Bans = append(snap.Bans, v)
		return nil
	}); err != nil {
		return nil, errs.Store(err)
	}

	if err := collect(ctx, tx, `SELECT username, reason, banned_at FROM bans_pending ORDER BY username`, func(row pgx.Rows) error {
		var v authz.PendingBan
		if err := row.Scan(&v.Username, &v.Reason, &v.BannedAt); err != nil {
			return err
		}
		snap.PendingBans = append(snap.PendingBans, v)
		return nil
	}); err != nil {
		return nil, errs.Store(err)
	}

	if err := collect(ctx, tx, `SELECT id, prompt, enabled, created_at FROM system_prompts ORDER BY id`, func(row pgx.Rows) error {
		var v prompts.Prompt
		if err := row.Scan(&v.ID, &v.Text, &v.Enabled, &v.CreatedAt); err != nil {
			return err
		}
		snap.Prompts = append(snap.Prompts, v)
		return nil
	}); err != nil {
		return nil, errs.Store(err)
	}

	if err := collect(ctx, tx, `SELECT user_id, username, first_name, last_name, first_seen, last_seen FROM users ORDER BY user_id`, func(row pgx.Rows) error {
		var v users.User
		if err := row.Scan(&v.ID, &v.Username, &v.FirstName, &v.LastName, &v.FirstSeen, &v.LastSeen); err != nil {
			return err
		}
		snap.Users = append(snap.Users, v)
		return nil
	}); err != nil {
		return nil, errs.Store(err)
	}

	if err := collect(ctx, tx, `SELECT id, user_id, field, old_value, new_value, changed_at FROM user_changes ORDER BY id`, func(row pgx.Rows) error {
		var v users.Change
		if err := row.Scan(&v.ID, &v.UserID, &v.Field, &v.OldValue, &v.NewValue, &v.ChangedAt); err != nil {
			return err
		}
		snap.UserChanges = append(snap.UserChanges, v)
		return nil
	}); err != nil {
		return nil, errs.Store(err)
	}

	if err := collect(ctx, tx, `SELECT id, chat_id, chat_type, user_id, role, text, tg_message_id, reply_to_tg_message_id, created_at FROM messages ORDER BY id`, func(row pgx.Rows) error {
		var v chatlog.Message
		if err := row.Scan(&v.ID, &v.ChatID, &v.ChatType, &v.UserID, &v.Role, &v.Text,
			&v.TGMessageID, &v.ReplyToTGMessageID, &v.CreatedAt); err != nil {
			return err
		}
		snap.Messages = append(snap.Messages, v)
		return nil
	}); err != nil {
		return nil, errs.Store(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errs.Store(err)
	}
	return snap, nil
}

// Restore replaces every table with the snapshot's contents.
func (s *Store) Restore(ctx context.Context, snap *Snapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errs.Store(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Children before parents.
	for _, del := range []string{
		`DELETE FROM user_changes`,
		`DELETE FROM messages`,
		`DELETE FROM admins`,
		`DELETE FROM admins_pending`,
		`DELETE FROM bans`,
		`DELETE FROM bans_pending`,
		`DELETE FROM system_prompts`,
		`DELETE FROM users`,
		`DELETE FROM settings`,
	} {
		if _, err := tx.Exec(ctx, del); err != nil {
			return errs.Store(err)
		}
	}

	for _, v := range snap.Settings {
		if _, err := tx.Exec(ctx, `INSERT INTO settings (key, value) VALUES ($1, $2)`, v.Key, v.Value); err != nil {
			return errs.Store(err)
		}
	}
	for _, v := range snap.Users {
		if _, err := tx.Exec(ctx, `
			INSERT INTO users (user_id, username, first_name, last_name, first_seen, last_seen)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, v.ID, v.Username, v.FirstName, v.LastName, v.FirstSeen, v.LastSeen); err != nil {
			return errs.Store(err)
		}
	}
	for _, v := range snap.UserChanges {
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_changes (id, user_id, field, old_value, new_value, changed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, v.ID, v.UserID, v.Field, v.OldValue, v.NewValue, v.ChangedAt); err != nil {
			return errs.Store(err)
		}
	}
	for _, v := range snap.Admins {
		if _, err := tx.Exec(ctx, `INSERT INTO admins (user_id, added_at) VALUES ($1, $2)`, v.UserID, v.AddedAt); err != nil {
			return errs.Store(err)
		}
	}
	for _, v := range snap.PendingAdmins {
		if _, err := tx.Exec(ctx, `INSERT INTO admins_pending (username, added_at) VALUES ($1, $2)`, v.Username, v.AddedAt); err != nil {
			return errs.Store(err)
		}
	}
	for _, v := range snap.Bans {
		if _, err := tx.Exec(ctx, `
			INSERT INTO bans (user_id, username, reason, banned_at) VALUES ($1, $2, $3, $4)
		`, v.UserID, v.Username, v.Reason, v.BannedAt); err != nil {
			return errs.Store(err)
		}
	}
	for _, v := range snap.PendingBans {
		if _, err := tx.Exec(ctx, `
			INSERT INTO bans_pending (username, reason, banned_at) VALUES ($1, $2, $3)
		`, v.Username, v.Reason, v.BannedAt); err != nil {
			return errs.Store(err)
		}
	}
	for _, v := range snap.Prompts {
		if _, err := tx.Exec(ctx, `
			INSERT INTO system_prompts (id, prompt, enabled, created_at) VALUES ($1, $2, $3, $4)
		`, v.ID, v.Text, v.Enabled, v.CreatedAt); err != nil {
			return errs.Store(err)
		}
	}
	for _, v := range snap.Messages {
		if _, err := tx.Exec(ctx, `
			INSERT INTO messages (id, chat_id, chat_type, user_id, role, text, tg_message_id, reply_to_tg_message_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, v.ID, v.ChatID, v.ChatType, v.UserID, v.Role, v.Text, v.TGMessageID, v.ReplyToTGMessageID, v.CreatedAt); err != nil {
			return errs.Store(err)
		}
	}

	// Realign serial sequences with the restored ids.
	for _, seq := range []string{
		`SELECT setval(pg_get_serial_sequence('user_changes', 'id'), COALESCE(MAX(id), 1)) FROM user_changes`,
		`SELECT setval(pg_get_serial_sequence('system_prompts', 'id'), COALESCE(MAX(id), 1)) FROM system_prompts`,
		`SELECT setval(pg_get_serial_sequence('messages', 'id'), COALESCE(MAX(id), 1)) FROM messages`,
	} {
		if _, err := tx.Exec(ctx, seq); err != nil {
			return errs.Store(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errs.Store(err)
	}
	return nil
}

func collect(ctx context.Context, tx pgx.Tx, sql string, scan func(pgx.Rows) error) error {
	rows, err := tx.Query(ctx, sql)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
