package idp

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/aginhq/agin-login/pkg/factor"
)

var (
	// ErrAccountNotFound is returned when no account matches the lookup.
	ErrAccountNotFound = errors.New("account not found")
	// ErrCredentialNotFound is returned when a security-key credential id is
	// not registered to the account.
	ErrCredentialNotFound = errors.New("credential not found")
)

// Account is a login account with every factor it has enrolled. Secrets are
// stored derived: the password and each recovery code as argon2id hashes,
// never plaintext.
type Account struct {
	ID                 uuid.UUID
	Username           string
	PasswordHash       string
	TotpSecret         string
	RecoveryCodeHashes []string
	Credentials        []Credential
	PgpKeys            []string
	RecentFactor       factor.Kind
	CreatedAt          time.Time
}

// Credential is a registered security-key credential.
type Credential struct {
	ID          []byte
	PublicKey   []byte
	DisplayName string
	CreatedAt   time.Time
}

// HasCredential reports whether id matches a registered credential.
func (a Account) HasCredential(id []byte) bool {
	for _, c := range a.Credentials {
		if string(c.ID) == string(id) {
			return true
		}
	}
	return false
}

// AccountRepository defines the storage operations the login service needs.
type AccountRepository interface {
	GetByUsername(ctx context.Context, username string) (Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (Account, error)
	Create(ctx context.Context, account Account) error
	UpdateTotpSecret(ctx context.Context, id uuid.UUID, secret string) error
	UpdateRecoveryCodeHashes(ctx context.Context, id uuid.UUID, hashes []string) error
	AddCredential(ctx context.Context, id uuid.UUID, credential Credential) error
	SetRecentFactor(ctx context.Context, id uuid.UUID, kind factor.Kind) error
}
