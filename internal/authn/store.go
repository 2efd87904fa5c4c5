package authn

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pkgerrors "github.com/pkg/errors"
)

var ErrChallengeNotFound = errors.New("challenge not found")

type Store interface {
	Create(ctx context.Context, c *Challenge) error
	LatestForUser(ctx context.Context, userID uuid.UUID) (*Challenge, error)
	SetAttempts(ctx context.Context, id uuid.UUID, attempts int) error
	// DeleteAllForUser invalidates every challenge in one statement; the
	// at-most-one-active invariant depends on this being atomic.
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error
}

type PostgresStore struct{ DB *pgxpool.Pool }

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore { return &PostgresStore{DB: db} }

func (s *PostgresStore) Create(ctx context.Context, c *Challenge) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO otp_challenges(id, user_id, code_hash, expires_at, attempts)
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.UserID, c.CodeHash, c.ExpiresAt, c.Attempts)
	return pkgerrors.Wrap(err, "insert challenge")
}

func (s *PostgresStore) LatestForUser(ctx context.Context, userID uuid.UUID) (*Challenge, error) {
	var c Challenge
	err := s.DB.QueryRow(ctx, `
		SELECT id, user_id, code_hash, expires_at, attempts, created_at
		FROM otp_challenges WHERE user_id = $1
		ORDER BY created_at DESC LIMIT 1`, userID).
		Scan(&c.ID, &c.UserID, &c.CodeHash, &c.ExpiresAt, &c.Attempts, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "select challenge")
	}
	return &c, nil
}

func (s *PostgresStore) SetAttempts(ctx context.Context, id uuid.UUID, attempts int) error {
	_, err := s.DB.Exec(ctx, `UPDATE otp_challenges SET attempts = $2 WHERE id = $1`, id, attempts)
	return pkgerrors.Wrap(err, "update challenge attempts")
}

func (s *PostgresStore) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := s.DB.Exec(ctx, `DELETE FROM otp_challenges WHERE user_id = $1`, userID)
	return pkgerrors.Wrap(err, "delete challenges")
}
