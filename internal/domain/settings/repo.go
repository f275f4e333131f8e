package settings

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Keys of the settings table. bot_enabled and backup_enabled are the two
// admin-toggleable flags; the rest tune the inference persona.
const (
	KeyBotEnabled     = "bot_enabled"
	KeyBackupEnabled  = "backup_enabled"
	KeyTriggerName    = "trigger_name"
	KeyBotDisplayName = "bot_display_name"
	KeyPersona        = "persona"
)

type Setting struct {
	Key   string
	Value string
}

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := r.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&v)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	return v, err
}

func (r *Repo) Set(ctx context.Context, key, value string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	return err
}

func (r *Repo) List(ctx context.Context) ([]Setting, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) BotEnabled(ctx context.Context) (bool, error) {
	v, err := r.Get(ctx, KeyBotEnabled)
	return v == "1", err
}

func (r *Repo) SetBotEnabled(ctx context.Context, enabled bool) error {
	return r.Set(ctx, KeyBotEnabled, boolValue(enabled))
}

func (r *Repo) BackupEnabled(ctx context.Context) (bool, error) {
	v, err := r.Get(ctx, KeyBackupEnabled)
	return v == "1", err
}

func (r *Repo) SetBackupEnabled(ctx context.Context, enabled bool) error {
	return r.Set(ctx, KeyBackupEnabled, boolValue(enabled))
}

// TriggerName falls back to the provided default when unset.
func (r *Repo) TriggerName(ctx context.Context, def string) (string, error) {
	v, err := r.Get(ctx, KeyTriggerName)
	if err != nil {
		return "", err
	}
	if v == "" {
		return def, nil
	}
	return v, nil
}

func boolValue(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
