package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(blob []byte) ([]byte, error)
}

// CredentialStore keeps one sealed access token per profile, so several
// client profiles can share a database.
type CredentialStore struct {
	pool    *pgxpool.Pool
	profile string
	sealer  Sealer
}

func NewCredentialStore(pool *pgxpool.Pool, profile string, sealer Sealer) *CredentialStore {
	if profile == "" {
		profile = "default"
	}
	return &CredentialStore{pool: pool, profile: profile, sealer: sealer}
}

func (s *CredentialStore) EnsureSchema(ctx context.Context) error {
	const q = `
		CREATE TABLE IF NOT EXISTS client_credentials (
			profile    text PRIMARY KEY,
			sealed     bytea NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)
	`
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("ensure client_credentials: %w", err)
	}
	return nil
}

// Load returns the stored token, or "" when the profile has none.
func (s *CredentialStore) Load(ctx context.Context) (string, error) {
	const q = `
		SELECT sealed
		FROM client_credentials
		WHERE profile = $1
	`

	var sealed []byte
	if err := s.pool.QueryRow(ctx, q, s.profile).Scan(&sealed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("load credential: %w", err)
	}
	token, err := s.sealer.Open(sealed)
	if err != nil {
		return "", fmt.Errorf("open credential: %w", err)
	}
	return string(token), nil
}

func (s *CredentialStore) Save(ctx context.Context, token string) error {
	const q = `
		INSERT INTO client_credentials (profile, sealed, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (profile) DO UPDATE
		SET sealed = EXCLUDED.sealed, updated_at = EXCLUDED.updated_at
	`

	sealed, err := s.sealer.Seal([]byte(token))
	if err != nil {
		return fmt.Errorf("seal credential: %w", err)
	}
	if _, err := s.pool.Exec(ctx, q, s.profile, sealed); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (s *CredentialStore) Clear(ctx context.Context) error {
	const q = `DELETE FROM client_credentials WHERE profile = $1`
	if _, err := s.pool.Exec(ctx, q, s.profile); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

// UpdatedAt reports when the credential was last written, nil if never.
func (s *CredentialStore) UpdatedAt(ctx context.Context) (*time.Time, error) {
	const q = `
		SELECT updated_at
		FROM client_credentials
		WHERE profile = $1
	`

	var ts pgtype.Timestamptz
	if err := s.pool.QueryRow(ctx, q, s.profile).Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("credential updated_at: %w", err)
	}
	return timestamptzPtr(ts), nil
}
