package idp

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aginhq/agin-login/pkg/factor"
)

// PostgresAccountRepository implements AccountRepository on PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE accounts (
//	    id uuid PRIMARY KEY,
//	    username text NOT NULL UNIQUE,
//	    password_hash text NOT NULL DEFAULT '',
//	    totp_secret text NOT NULL DEFAULT '',
//	    recovery_code_hashes text[] NOT NULL DEFAULT '{}',
//	    pgp_keys text[] NOT NULL DEFAULT '{}',
//	    recent_factor text NOT NULL DEFAULT '',
//	    created_at timestamptz NOT NULL DEFAULT now()
//	);
//
//	CREATE TABLE credentials (
//	    id bytea PRIMARY KEY,
//	    account_id uuid NOT NULL REFERENCES accounts(id),
//	    public_key bytea NOT NULL,
//	    display_name text NOT NULL DEFAULT '',
//	    created_at timestamptz NOT NULL DEFAULT now()
//	);
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresAccountRepository creates a repository on the given pool.
func NewPostgresAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

const selectAccount = `SELECT id, username, password_hash, totp_secret, recovery_code_hashes, pgp_keys, recent_factor, created_at FROM accounts `

// GetByUsername implements AccountRepository.
func (r *PostgresAccountRepository) GetByUsername(ctx context.Context, username string) (Account, error) {
	return r.get(ctx, selectAccount+`WHERE lower(username) = lower($1)`, username)
}

// GetByID implements AccountRepository.
func (r *PostgresAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (Account, error) {
	return r.get(ctx, selectAccount+`WHERE id = $1`, id)
}

func (r *PostgresAccountRepository) get(ctx context.Context, query string, arg any) (Account, error) {
	var account Account
	var recentFactor string
	row := r.pool.QueryRow(ctx, query, arg)
	err := row.Scan(
		&account.ID,
		&account.Username,
		&account.PasswordHash,
		&account.TotpSecret,
		&account.RecoveryCodeHashes,
		&account.PgpKeys,
		&recentFactor,
		&account.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("query account: %w", err)
	}
	if k, ok := factor.ParseKind(recentFactor); ok {
		account.RecentFactor = k
	}

	account.Credentials, err = r.credentials(ctx, account.ID)
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

func (r *PostgresAccountRepository) credentials(ctx context.Context, accountID uuid.UUID) ([]Credential, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, public_key, display_name, created_at FROM credentials WHERE account_id = $1 ORDER BY created_at`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()

	var credentials []Credential
	for rows.Next() {
		var c Credential
		if err := rows.Scan(&c.ID, &c.PublicKey, &c.DisplayName, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		credentials = append(credentials, c)
	}
	return credentials, rows.Err()
}

// Create implements AccountRepository.
func (r *PostgresAccountRepository) Create(ctx context.Context, account Account) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO accounts (id, username, password_hash, totp_secret, recovery_code_hashes, pgp_keys, recent_factor)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		account.ID,
		account.Username,
		account.PasswordHash,
		account.TotpSecret,
		account.RecoveryCodeHashes,
		account.PgpKeys,
		string(account.RecentFactor),
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	for _, c := range account.Credentials {
		if err := r.AddCredential(ctx, account.ID, c); err != nil {
			return err
		}
	}
	return nil
}

// UpdateTotpSecret implements AccountRepository.
func (r *PostgresAccountRepository) UpdateTotpSecret(ctx context.Context, id uuid.UUID, secret string) error {
	return r.exec(ctx, `UPDATE accounts SET totp_secret = $2 WHERE id = $1`, id, secret)
}

// UpdateRecoveryCodeHashes implements AccountRepository.
func (r *PostgresAccountRepository) UpdateRecoveryCodeHashes(ctx context.Context, id uuid.UUID, hashes []string) error {
	return r.exec(ctx, `UPDATE accounts SET recovery_code_hashes = $2 WHERE id = $1`, id, hashes)
}

// SetRecentFactor implements AccountRepository.
func (r *PostgresAccountRepository) SetRecentFactor(ctx context.Context, id uuid.UUID, kind factor.Kind) error {
	return r.exec(ctx, `UPDATE accounts SET recent_factor = $2 WHERE id = $1`, id, string(kind))
}

// AddCredential implements AccountRepository.
func (r *PostgresAccountRepository) AddCredential(ctx context.Context, id uuid.UUID, credential Credential) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO credentials (id, account_id, public_key, display_name) VALUES ($1, $2, $3, $4)`,
		credential.ID, id, credential.PublicKey, credential.DisplayName)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (r *PostgresAccountRepository) exec(ctx context.Context, query string, id uuid.UUID, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}
