package idp

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/aginhq/agin-login/pkg/factor"
)

// InMemAccountRepository is an in-memory AccountRepository for tests and
// single-process deployments.
type InMemAccountRepository struct {
	mu         sync.Mutex
	accounts   map[uuid.UUID]Account
	byUsername map[string]uuid.UUID
}

// NewInMemAccountRepository creates an empty in-memory repository.
func NewInMemAccountRepository() *InMemAccountRepository {
	return &InMemAccountRepository{
		accounts:   make(map[uuid.UUID]Account),
		byUsername: make(map[string]uuid.UUID),
	}
}

// GetByUsername implements AccountRepository. Usernames are matched
// case-insensitively.
func (r *InMemAccountRepository) GetByUsername(ctx context.Context, username string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byUsername[strings.ToLower(username)]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return copyAccount(r.accounts[id]), nil
}

// GetByID implements AccountRepository.
func (r *InMemAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return copyAccount(account), nil
}

// Create implements AccountRepository.
func (r *InMemAccountRepository) Create(ctx context.Context, account Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.accounts[account.ID] = copyAccount(account)
	r.byUsername[strings.ToLower(account.Username)] = account.ID
	return nil
}

// UpdateTotpSecret implements AccountRepository.
func (r *InMemAccountRepository) UpdateTotpSecret(ctx context.Context, id uuid.UUID, secret string) error {
	return r.update(id, func(a *Account) {
		a.TotpSecret = secret
	})
}

// UpdateRecoveryCodeHashes implements AccountRepository.
func (r *InMemAccountRepository) UpdateRecoveryCodeHashes(ctx context.Context, id uuid.UUID, hashes []string) error {
	return r.update(id, func(a *Account) {
		a.RecoveryCodeHashes = append([]string(nil), hashes...)
	})
}

// AddCredential implements AccountRepository.
func (r *InMemAccountRepository) AddCredential(ctx context.Context, id uuid.UUID, credential Credential) error {
	return r.update(id, func(a *Account) {
		a.Credentials = append(a.Credentials, credential)
	})
}

// SetRecentFactor implements AccountRepository.
func (r *InMemAccountRepository) SetRecentFactor(ctx context.Context, id uuid.UUID, kind factor.Kind) error {
	return r.update(id, func(a *Account) {
		a.RecentFactor = kind
	})
}

func (r *InMemAccountRepository) update(id uuid.UUID, fn func(*Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	fn(&account)
	r.accounts[id] = account
	return nil
}

func copyAccount(a Account) Account {
	a.RecoveryCodeHashes = append([]string(nil), a.RecoveryCodeHashes...)
	a.Credentials = append([]Credential(nil), a.Credentials...)
	a.PgpKeys = append([]string(nil), a.PgpKeys...)
	return a
}
