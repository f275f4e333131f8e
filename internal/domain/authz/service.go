package authz

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"

	"github.com/daddygpt/daddygpt-bot/internal/domain/users"
	"github.com/daddygpt/daddygpt-bot/internal/errs"
)

// Service is the authorization engine: role and ban transitions plus
// pending-username resolution, all behind the store's transaction
// boundary.
type Service struct {
	pool  *pgxpool.Pool
	users *users.Repo
	repo  *Repo
}

func NewService(pool *pgxpool.Pool, usersRepo *users.Repo, repo *Repo) *Service {
	return &Service{pool: pool, users: usersRepo, repo: repo}
}

// GrantAdmin marks a known user admin, or records a pending grant when
// the username has never been seen. Returns true in the pending case.
//
// The whole decision runs in one transaction holding the per-username
// advisory lock, so it cannot interleave with the target's first
// message: either the grant sees the committed user row and promotes
// directly, or the resolve sees the committed pending row and consumes
// it.
func (s *Service) GrantAdmin(ctx context.Context, ref Ref) (bool, error) {
	if ref.ID == 0 && ref.Username == "" {
		return false, errs.Validation("empty reference")
	}

	var pending bool
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		id, err := s.resolveLockedTx(ctx, tx, ref)
		if err != nil {
			return err
		}
		if id == 0 {
			pending = true
			return s.repo.addPendingAdminTx(ctx, tx, ref.Username)
		}
		banned, err := s.repo.isBannedTx(ctx, tx, id, ref.Username)
		if err != nil {
			return err
		}
		if banned {
			return errs.Validation("user is banned; unban before granting admin")
		}
		return s.repo.grantAdminTx(ctx, tx, id)
	})
	return pending, err
}

// RevokeAdmin clears the admin flag and any matching pending record.
// No-op when neither exists.
func (s *Service) RevokeAdmin(ctx context.Context, ref Ref) error {
	if ref.ID == 0 && ref.Username == "" {
		return errs.Validation("empty reference")
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		id, err := s.resolveLockedTx(ctx, tx, ref)
		if err != nil {
			return err
		}
		if id != 0 {
			if err := s.repo.revokeAdminTx(ctx, tx, id); err != nil {
				return err
			}
		}
		if ref.Username != "" {
			return s.repo.removePendingAdminTx(ctx, tx, ref.Username)
		}
		return nil
	})
}

// Ban records a ban (pending when the username is unknown) and demotes
// any admin in the same transaction. Returns true in the pending case.
// Same single-transaction locking discipline as GrantAdmin.
func (s *Service) Ban(ctx context.Context, ref Ref, reason string) (bool, error) {
	if ref.ID == 0 && ref.Username == "" {
		return false, errs.Validation("empty reference")
	}

	var pending bool
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		id, err := s.resolveLockedTx(ctx, tx, ref)
		if err != nil {
			return err
		}
		if id == 0 {
			pending = true
			return s.repo.banPendingTx(ctx, tx, ref.Username, reason)
		}
		return s.repo.banTx(ctx, tx, id, ref.Username, reason)
	})
	return pending, err
}

// Unban lifts a ban. Pending rows are cleared for every username known
// for the principal: the one on the ref, the one recorded on the ban
// row, and the one on the user row — an unban by numeric id must not
// leave a pending ban behind that would re-trip the username fallback.
func (s *Service) Unban(ctx context.Context, ref Ref) error {
	if ref.ID == 0 && ref.Username == "" {
		return errs.Validation("empty reference")
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		id, err := s.resolveLockedTx(ctx, tx, ref)
		if err != nil {
			return err
		}

		names := []string{ref.Username}
		if id != 0 {
			stored, err := s.repo.unbanTx(ctx, tx, id)
			if err != nil {
				return err
			}
			current, err := s.users.UsernameTx(ctx, tx, id)
			if err != nil {
				return err
			}
			names = append(names, stored, current)
		}
		for _, u := range pendingKeys(names...) {
			if err := s.repo.unbanPendingTx(ctx, tx, u); err != nil {
				return err
			}
		}
		return nil
	})
}

// TrackUser upserts the sender's identity and resolves pending
// admin/ban records on the username, atomically. A conflicting
// concurrent grant/ban on the same username is expected under load, so
// the transaction retries before surfacing a store error.
func (s *Service) TrackUser(ctx context.Context, id users.Identity) error {
	if id.ID <= 0 {
		return errs.Validation("user id must be positive")
	}

	backoff := retry.WithMaxRetries(2, retry.NewConstant(50*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.inTx(ctx, func(tx pgx.Tx) error {
			// Same lock the grant/ban paths take before writing a
			// pending record for this username.
			if err := s.repo.lockUsernameTx(ctx, tx, id.Username); err != nil {
				return err
			}
			if err := s.users.UpsertTx(ctx, tx, id); err != nil {
				return err
			}
			return s.repo.resolveTx(ctx, tx, id.ID, id.Username)
		})
		if isSerializationFailure(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && !errs.IsKind(err, errs.KindStore) {
		return errs.Store(err)
	}
	return err
}

/*** PURE READS ***/

func (s *Service) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	ok, err := s.repo.IsAdmin(ctx, userID)
	if err != nil {
		return false, errs.Store(err)
	}
	return ok, nil
}

func (s *Service) IsBanned(ctx context.Context, userID int64, username string) (bool, error) {
	ok, err := s.repo.IsBanned(ctx, userID, username)
	if err != nil {
		return false, errs.Store(err)
	}
	return ok, nil
}

func (s *Service) ListAdmins(ctx context.Context) ([]int64, error) {
	out, err := s.repo.ListAdmins(ctx)
	if err != nil {
		return nil, errs.Store(err)
	}
	return out, nil
}

func (s *Service) ListBans(ctx context.Context, limit int) ([]Ban, error) {
	out, err := s.repo.ListBans(ctx, limit)
	if err != nil {
		return nil, errs.Store(err)
	}
	return out, nil
}

func (s *Service) GetBan(ctx context.Context, userID int64) (*Ban, error) {
	b, err := s.repo.GetBan(ctx, userID)
	if err != nil {
		return nil, errs.Store(err)
	}
	return b, nil
}

func (s *Service) CountAdmins(ctx context.Context) (int64, error) {
	n, err := s.repo.CountAdmins(ctx)
	if err != nil {
		return 0, errs.Store(err)
	}
	return n, nil
}

func (s *Service) CountBans(ctx context.Context) (int64, error) {
	n, err := s.repo.CountBans(ctx)
	if err != nil {
		return 0, errs.Store(err)
	}
	return n, nil
}

// resolveLockedTx maps a Ref to a concrete user id inside the caller's
// transaction; 0 means the username has no known user yet. Username
// refs take the per-username advisory lock before the lookup so the
// result stays true until the transaction commits.
func (s *Service) resolveLockedTx(ctx context.Context, tx pgx.Tx, ref Ref) (int64, error) {
	if ref.ID != 0 {
		return ref.ID, nil
	}
	if err := s.repo.lockUsernameTx(ctx, tx, ref.Username); err != nil {
		return 0, err
	}
	return s.users.IDByUsernameTx(ctx, tx, ref.Username)
}

// pendingKeys normalizes and dedupes the usernames that may carry a
// pending record for the same principal.
func pendingKeys(names ...string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		u := NormalizeUsername(n)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

func (s *Service) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errs.Store(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		var e *errs.Error
		if errors.As(err, &e) {
			return err
		}
		return errs.Store(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return errs.Store(err)
	}
	return nil
}

// Serialization failures, deadlocks and duplicate-key races between
// resolveTx and a concurrent grant/ban are retryable.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "23505":
		return true
	}
	return false
}
