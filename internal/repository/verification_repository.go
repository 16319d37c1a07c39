package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/auth-gateway/internal/domain"
)

// VerificationRepository manages one-time tokens.
type VerificationRepository interface {
	Create(ctx context.Context, v *domain.Verification) error
	GetByToken(ctx context.Context, purpose domain.VerificationPurpose, token string) (*domain.Verification, error)
	MarkUsed(ctx context.Context, id string) error
}

type verificationRepository struct {
	pool *pgxpool.Pool
}

// NewVerificationRepository constructs repository.
func NewVerificationRepository(pool *pgxpool.Pool) VerificationRepository {
	return &verificationRepository{pool: pool}
}

func (r *verificationRepository) Create(ctx context.Context, v *domain.Verification) error {
	const query = `
        INSERT INTO verifications (purpose, token, user_id, expires_at)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		v.Purpose,
		v.Token,
		v.UserID,
		v.ExpiresAt,
	).Scan(&v.ID, &v.CreatedAt)
}

func (r *verificationRepository) GetByToken(ctx context.Context, purpose domain.VerificationPurpose, token string) (*domain.Verification, error) {
	const query = `
        SELECT id, purpose, token, user_id, expires_at, used_at, created_at
        FROM verifications WHERE purpose=$1 AND token=$2`
	var v domain.Verification
	if err := r.pool.QueryRow(ctx, query, purpose, token).Scan(
		&v.ID,
		&v.Purpose,
		&v.Token,
		&v.UserID,
		&v.ExpiresAt,
		&v.UsedAt,
		&v.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &v, nil
}

// MarkUsed consumes the token. A token that was already used reports
// pgx.ErrNoRows so two concurrent redemptions cannot both succeed.
func (r *verificationRepository) MarkUsed(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE verifications SET used_at=NOW() WHERE id=$1 AND used_at IS NULL`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
