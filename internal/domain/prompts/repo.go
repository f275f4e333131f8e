package prompts

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Prompt struct {
	ID        int64
	Text      string
	Enabled   bool
	CreatedAt time.Time
}

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) List(ctx context.Context) ([]Prompt, error) {
	return r.list(ctx, `SELECT id, prompt, enabled, created_at FROM system_prompts ORDER BY id`)
}

// ListEnabled returns the prompts that feed the system message, in id order.
func (r *Repo) ListEnabled(ctx context.Context) ([]Prompt, error) {
	return r.list(ctx, `SELECT id, prompt, enabled, created_at FROM system_prompts WHERE enabled ORDER BY id`)
}

func (r *Repo) list(ctx context.Context, sql string) ([]Prompt, error) {
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Prompt
	for rows.Next() {
		var p Prompt
		if err := rows.Scan(&p.ID, &p.Text, &p.Enabled, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) Add(ctx context.Context, text string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO system_prompts (prompt) VALUES ($1)`, text)
	return err
}

func (r *Repo) SetText(ctx context.Context, id int64, text string) error {
	_, err := r.pool.Exec(ctx, `UPDATE system_prompts SET prompt = $2 WHERE id = $1`, id, text)
	return err
}

func (r *Repo) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE system_prompts SET enabled = $2 WHERE id = $1`, id, enabled)
	return err
}

func (r *Repo) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM system_prompts WHERE id = $1`, id)
	return err
}

func (r *Repo) Clear(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM system_prompts`)
	return err
}

func (r *Repo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM system_prompts`).Scan(&n)
	return n, err
}
