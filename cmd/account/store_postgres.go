package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultSchema = "porchlight"

// PostgresStore persists accounts directly in PostgreSQL, for deployments
// that bypass the hosted REST interface.
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
			return OpError{Op: "account.NewPostgresStore", Kind: ErrInvalidInput, Msg: "empty schema"}
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...StoreOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: defaultSchema}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, OpError{Op: "account.NewPostgresStore", Kind: ErrInvalidInput, Msg: "nil pool"}
	}
	return st, nil
}

const accountColumns = `
	id, email, first_name, last_name, phone,
	password_hash, referral_code, referral_credits,
	created_at, last_login_at
`

// GetByID implements Store.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (Account, error) {
	const op = "account.GetByID"
	id = strings.TrimSpace(id)
	if id == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty id"}
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM `+s.table()+` WHERE id = $1`, id)
	return scanAccount(op, row)
}

// GetByEmail implements Store.
func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (Account, error) {
	const op = "account.GetByEmail"
	norm := NormalizeEmail(email)
	if norm == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty email"}
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM `+s.table()+` WHERE lower(email) = $1`, norm)
	return scanAccount(op, row)
}

// Insert implements Store.
func (s *PostgresStore) Insert(ctx context.Context, a Account) error {
	const op = "account.Insert"
	if strings.TrimSpace(a.ID) == "" || NormalizeEmail(a.Email) == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "id and email required"}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (`+accountColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID,
		NormalizeEmail(a.Email),
		a.FirstName,
		a.LastName,
		a.Phone,
		a.PasswordHash,
		a.ReferralCode,
		a.ReferralCredits,
		a.CreatedAt,
		a.LastLoginAt,
	)
	if err != nil {
		if pgIsUniqueViolation(err) {
			return OpError{Op: op, Kind: ErrConflict}
		}
		return UpstreamError{Op: op, Err: err}
	}
	return nil
}

// Update implements Store. Field names are canonical and already whitelisted,
// so interpolating them as column names is safe.
func (s *PostgresStore) Update(ctx context.Context, id string, fields Fields) error {
	const op = "account.Update"
	id = strings.TrimSpace(id)
	if id == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty id"}
	}
	if err := fields.Validate(); err != nil {
		return err
	}

	set := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	args = append(args, id)
	for k, v := range fields {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", k, len(args)))
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+s.table()+` SET `+strings.Join(set, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		return UpstreamError{Op: op, Err: err}
	}
	if tag.RowsAffected() == 0 {
		return OpError{Op: op, Kind: ErrNotFound}
	}
	return nil
}

// AddReferralCredit implements Store. The increment runs inside the database,
// never as an application-level read-then-write.
func (s *PostgresStore) AddReferralCredit(ctx context.Context, id string, n int) error {
	const op = "account.AddReferralCredit"
	id = strings.TrimSpace(id)
	if id == "" || n == 0 {
		return OpError{Op: op, Kind: ErrInvalidInput}
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+s.table()+` SET referral_credits = referral_credits + $2 WHERE id = $1`,
		id, n)
	if err != nil {
		return UpstreamError{Op: op, Err: err}
	}
	if tag.RowsAffected() == 0 {
		return OpError{Op: op, Kind: ErrNotFound}
	}
	return nil
}

func (s *PostgresStore) table() string {
	return pgIdent(s.schema, "accounts")
}

func scanAccount(op string, row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.FirstName,
		&a.LastName,
		&a.Phone,
		&a.PasswordHash,
		&a.ReferralCode,
		&a.ReferralCredits,
		&a.CreatedAt,
		&a.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, OpError{Op: op, Kind: ErrNotFound}
		}
		return Account{}, UpstreamError{Op: op, Err: err}
	}
	return a, nil
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}

func pgIsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" // unique_violation
}
