package chatlog

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

// Append writes one log row. The log is append-only; rows are never
// updated or deleted outside of a full import.
func (r *Repo) Append(ctx context.Context, m Message) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO messages (chat_id, chat_type, user_id, role, text, tg_message_id, reply_to_tg_message_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, m.ChatID, m.ChatType, m.UserID, m.Role, m.Text, m.TGMessageID, m.ReplyToTGMessageID)
	return err
}

// RecentDialog returns the last messages of one user within one chat in
// chronological order, assistant replies included. Scoping by user keeps
// group-chat contexts from mixing across participants.
func (r *Repo) RecentDialog(ctx context.Context, chatID, userID int64, limit int) ([]Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, chat_id, chat_type, user_id, role, text, tg_message_id, reply_to_tg_message_id, created_at
		FROM (
			SELECT * FROM messages
			WHERE chat_id = $1 AND user_id = $2 AND role IN ('user', 'assistant')
			ORDER BY id DESC
			LIMIT $3
		) sub
		ORDER BY id ASC
	`, chatID, userID, limit)
	if err != nil {
		return nil, err
	}
	return scan(rows)
}

func (r *Repo) Conversation(ctx context.Context, userID int64, limit int) ([]Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, chat_id, chat_type, user_id, role, text, tg_message_id, reply_to_tg_message_id, created_at
		FROM (
			SELECT * FROM messages WHERE user_id = $1 ORDER BY id DESC LIMIT $2
		) sub
		ORDER BY id ASC
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	return scan(rows)
}

func (r *Repo) Search(ctx context.Context, userID int64, query string, limit int) ([]Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, chat_id, chat_type, user_id, role, text, tg_message_id, reply_to_tg_message_id, created_at
		FROM (
			SELECT * FROM messages
			WHERE user_id = $1 AND text ILIKE $2
			ORDER BY id DESC
			LIMIT $3
		) sub
		ORDER BY id ASC
	`, userID, "%"+query+"%", limit)
	if err != nil {
		return nil, err
	}
	return scan(rows)
}

func (r *Repo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n)
	return n, err
}

func scan(rows pgx.Rows) ([]Message, error) {
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.ChatType, &m.UserID, &m.Role, &m.Text,
			&m.TGMessageID, &m.ReplyToTGMessageID, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
