package referral

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists referral codes and rewards in PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// StoreOption configures PostgresStore.
type StoreOption func(*PostgresStore) error

// WithSchema sets the DB schema used by the store (default: "porchlight").
func WithSchema(schema string) StoreOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return ErrInvalidInput
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...StoreOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "porchlight"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, ErrInvalidInput
	}
	return st, nil
}

func (s *PostgresStore) RegisterCode(ctx context.Context, code, referrerID string, at time.Time) error {
	if s == nil || s.pool == nil {
		return ErrInvalidInput
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	referrerID = strings.TrimSpace(referrerID)
	if code == "" || referrerID == "" {
		return ErrInvalidInput
	}

	codes := pgIdent(s.schema, "referral_codes")
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+codes+` (code, referrer_id, created_at) VALUES ($1, $2, $3)`,
		code, referrerID, at.UTC(),
	)
	if err != nil {
		if pgIsUniqueViolation(err) {
			return ErrCodeTaken
		}
		return err
	}
	return nil
}

func (s *PostgresStore) ReferrerByCode(ctx context.Context, code string) (string, error) {
	if s == nil || s.pool == nil {
		return "", ErrInvalidInput
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", ErrInvalidInput
	}

	codes := pgIdent(s.schema, "referral_codes")
	var referrerID string
	err := s.pool.QueryRow(ctx,
		`SELECT referrer_id FROM `+codes+` WHERE code = $1`,
		code,
	).Scan(&referrerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrCodeNotFound
		}
		return "", err
	}
	return referrerID, nil
}

func (s *PostgresStore) MarkRewarded(ctx context.Context, code, referredID string, at time.Time) (bool, error) {
	if s == nil || s.pool == nil {
		return false, ErrInvalidInput
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	referredID = strings.TrimSpace(referredID)
	if code == "" || referredID == "" {
		return false, ErrInvalidInput
	}

	rewards := pgIdent(s.schema, "referral_rewards")
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO `+rewards+` (code, referred_id, rewarded_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (code, referred_id) DO NOTHING`,
		code, referredID, at.UTC(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func pgIdent(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}

func pgIsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
