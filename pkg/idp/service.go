package idp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"

	"github.com/aginhq/agin-login/pkg/factor"
	"github.com/aginhq/agin-login/pkg/webauthn"
)

var (
	// ErrInvalidCredentials is returned for a wrong password or unknown
	// username. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidCode is returned for a wrong one-time or recovery code.
	ErrInvalidCode = errors.New("invalid code")
	// ErrInvalidCeremony is returned when a security-key response does not
	// match the issued challenge or a registered credential.
	ErrInvalidCeremony = errors.New("invalid ceremony response")
)

const challengeLength = 32

type ceremonyPurpose string

const (
	purposeLogin    ceremonyPurpose = "login"
	purposeRegister ceremonyPurpose = "register"
)

type challengeKey struct {
	accountID uuid.UUID
	purpose   ceremonyPurpose
}

// LoginService implements the login and factor-enrollment operations on top
// of an AccountRepository.
type LoginService struct {
	repo   AccountRepository
	hasher *PasswordHasher
	rpID   string
	rpName string

	mu         sync.Mutex
	challenges map[challengeKey][]byte

	// timingHash is verified against when the username is unknown so the
	// response time does not reveal whether the account exists.
	timingHash string
}

// ServiceOption configures a LoginService.
type ServiceOption func(*LoginService)

// WithRelyingParty sets the relying-party identity used in security-key
// ceremonies.
func WithRelyingParty(id, name string) ServiceOption {
	return func(s *LoginService) {
		s.rpID = id
		s.rpName = name
	}
}

// NewLoginService creates a login service.
func NewLoginService(repo AccountRepository, opts ...ServiceOption) *LoginService {
	s := &LoginService{
		repo:       repo,
		hasher:     NewPasswordHasher(),
		rpID:       "localhost",
		rpName:     "Agin",
		challenges: make(map[challengeKey][]byte),
	}
	for _, opt := range opts {
		opt(s)
	}
	if hash, err := s.hasher.Hash(uuid.New().String()); err == nil {
		s.timingHash = hash
	}
	return s
}

// Identify returns the account for a username together with its primary
// factor options. An unknown username yields a zero account and the password
// option alone, indistinguishable from a password-only account.
func (s *LoginService) Identify(ctx context.Context, username string) (Account, []factor.Kind, error) {
	account, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, ErrAccountNotFound) {
		return Account{}, []factor.Kind{factor.KindPassword}, nil
	}
	if err != nil {
		return Account{}, nil, fmt.Errorf("lookup account: %w", err)
	}

	var options []factor.Kind
	if account.PasswordHash != "" {
		options = append(options, factor.KindPassword)
	}
	if len(account.Credentials) > 0 {
		options = append(options, factor.KindWebAuthn)
	}
	if len(account.PgpKeys) > 0 {
		options = append(options, factor.KindPgp)
	}
	if len(options) == 0 {
		options = []factor.Kind{factor.KindPassword}
	}
	return account, options, nil
}

// VerifyPassword checks the password for a username. An unknown username
// still runs a full hash verification so the response time matches the
// known-username path.
func (s *LoginService) VerifyPassword(ctx context.Context, username, password string) (Account, error) {
	account, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, ErrAccountNotFound) || (err == nil && account.PasswordHash == "") {
		if s.timingHash != "" {
			s.hasher.Verify(password, s.timingHash)
		}
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Account{}, fmt.Errorf("lookup account: %w", err)
	}

	ok, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		slog.Error("Password hash could not be verified", "username", username, "error", err)
		return Account{}, ErrInvalidCredentials
	}
	if !ok {
		return Account{}, ErrInvalidCredentials
	}
	return account, nil
}

// SecondFactors lists the second factors enrolled on the account, in the
// fixed order the pickers present them.
func (s *LoginService) SecondFactors(account Account) []factor.Kind {
	var factors []factor.Kind
	if account.TotpSecret != "" {
		factors = append(factors, factor.KindTotp)
	}
	if len(account.Credentials) > 0 {
		factors = append(factors, factor.KindWebAuthn)
	}
	if len(account.RecoveryCodeHashes) > 0 {
		factors = append(factors, factor.KindRecoveryCode)
	}
	return factors
}

// VerifyTotp validates a one-time code against the account's secret.
func (s *LoginService) VerifyTotp(ctx context.Context, accountID uuid.UUID, code string) error {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return ErrInvalidCode
	}
	if account.TotpSecret == "" || !totp.Validate(code, account.TotpSecret) {
		return ErrInvalidCode
	}
	return nil
}

// VerifyRecoveryCode validates a recovery code and consumes it. Every stored
// hash is checked so the response time does not depend on the match position.
func (s *LoginService) VerifyRecoveryCode(ctx context.Context, accountID uuid.UUID, code string) error {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return ErrInvalidCode
	}

	matched := -1
	for i, hash := range account.RecoveryCodeHashes {
		if ok, err := s.hasher.Verify(code, hash); err == nil && ok && matched < 0 {
			matched = i
		}
	}
	if matched < 0 {
		return ErrInvalidCode
	}

	remaining := make([]string, 0, len(account.RecoveryCodeHashes)-1)
	remaining = append(remaining, account.RecoveryCodeHashes[:matched]...)
	remaining = append(remaining, account.RecoveryCodeHashes[matched+1:]...)
	if err := s.repo.UpdateRecoveryCodeHashes(ctx, accountID, remaining); err != nil {
		return fmt.Errorf("consume recovery code: %w", err)
	}
	return nil
}

// RecordSecondFactor remembers the second factor that completed this login
// so the next login can skip the picker.
func (s *LoginService) RecordSecondFactor(ctx context.Context, accountID uuid.UUID, kind factor.Kind) {
	if err := s.repo.SetRecentFactor(ctx, accountID, kind); err != nil {
		slog.Warn("Failed to record recent factor", "accountId", accountID, "error", err)
	}
}

// BeginLoginCeremony issues a fresh challenge for an authentication
// ceremony. The challenge stays valid until consumed or replaced.
func (s *LoginService) BeginLoginCeremony(ctx context.Context, accountID uuid.UUID) (webauthn.AssertionOptions, error) {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return webauthn.AssertionOptions{}, err
	}

	challenge, err := s.issueChallenge(accountID, purposeLogin)
	if err != nil {
		return webauthn.AssertionOptions{}, err
	}

	allowed := make([][]byte, 0, len(account.Credentials))
	for _, c := range account.Credentials {
		allowed = append(allowed, c.ID)
	}
	return webauthn.AssertionOptions{
		Challenge:            challenge,
		RPID:                 s.rpID,
		AllowedCredentialIDs: allowed,
	}, nil
}

// FinishLoginCeremony validates an assertion against the issued challenge
// and the account's registered credentials. The challenge binding comes from
// the signed client data; credential ownership from the registered ids.
func (s *LoginService) FinishLoginCeremony(ctx context.Context, accountID uuid.UUID, assertion webauthn.Assertion) error {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return ErrInvalidCeremony
	}
	if !account.HasCredential(assertion.RawID) {
		return ErrInvalidCeremony
	}
	return s.consumeChallenge(accountID, purposeLogin, assertion.ClientDataJSON)
}

// BeginRegistrationCeremony issues a fresh challenge for registering a new
// credential on an authenticated account.
func (s *LoginService) BeginRegistrationCeremony(ctx context.Context, accountID uuid.UUID) (webauthn.CreationOptions, error) {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return webauthn.CreationOptions{}, err
	}

	challenge, err := s.issueChallenge(accountID, purposeRegister)
	if err != nil {
		return webauthn.CreationOptions{}, err
	}

	excluded := make([][]byte, 0, len(account.Credentials))
	for _, c := range account.Credentials {
		excluded = append(excluded, c.ID)
	}
	return webauthn.CreationOptions{
		Challenge:             challenge,
		RPID:                  s.rpID,
		RPName:                s.rpName,
		UserID:                accountID[:],
		Username:              account.Username,
		ExcludedCredentialIDs: excluded,
	}, nil
}

// FinishRegistrationCeremony validates a new credential against the issued
// challenge and stores it.
func (s *LoginService) FinishRegistrationCeremony(ctx context.Context, accountID uuid.UUID, attestation webauthn.Attestation, displayName string) error {
	if len(attestation.RawID) == 0 {
		return ErrInvalidCeremony
	}
	if err := s.consumeChallenge(accountID, purposeRegister, attestation.ClientDataJSON); err != nil {
		return err
	}
	return s.repo.AddCredential(ctx, accountID, Credential{
		ID:          attestation.RawID,
		PublicKey:   attestation.AttestationObject,
		DisplayName: displayName,
	})
}

func (s *LoginService) issueChallenge(accountID uuid.UUID, purpose ceremonyPurpose) ([]byte, error) {
	challenge := make([]byte, challengeLength)
	if _, err := rand.Read(challenge); err != nil {
		return nil, fmt.Errorf("generate challenge: %w", err)
	}
	s.mu.Lock()
	s.challenges[challengeKey{accountID, purpose}] = challenge
	s.mu.Unlock()
	return challenge, nil
}

// clientData is the part of the signed client data the server checks.
type clientData struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
}

func (s *LoginService) consumeChallenge(accountID uuid.UUID, purpose ceremonyPurpose, clientDataJSON []byte) error {
	s.mu.Lock()
	issued, ok := s.challenges[challengeKey{accountID, purpose}]
	delete(s.challenges, challengeKey{accountID, purpose})
	s.mu.Unlock()
	if !ok {
		return ErrInvalidCeremony
	}

	var data clientData
	if err := json.Unmarshal(clientDataJSON, &data); err != nil {
		return ErrInvalidCeremony
	}
	expected := webauthn.EncodeBytes(issued)
	if subtle.ConstantTimeCompare([]byte(data.Challenge), []byte(expected)) != 1 {
		return ErrInvalidCeremony
	}
	return nil
}

// Account loads an account by id.
func (s *LoginService) Account(ctx context.Context, accountID uuid.UUID) (Account, error) {
	return s.repo.GetByID(ctx, accountID)
}

// CreateAccount creates a password account. The password is stored hashed.
func (s *LoginService) CreateAccount(ctx context.Context, username, password string) (Account, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}
	account := Account{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return Account{}, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}

// SetupTotp enrolls a one-time-code factor and returns the shared secret for
// the user's authenticator app.
func (s *LoginService) SetupTotp(ctx context.Context, accountID uuid.UUID) (string, error) {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.rpName,
		AccountName: account.Username,
	})
	if err != nil {
		return "", fmt.Errorf("generate totp secret: %w", err)
	}
	if err := s.repo.UpdateTotpSecret(ctx, accountID, key.Secret()); err != nil {
		return "", err
	}
	return key.Secret(), nil
}

// GenerateRecoveryCodes enrolls a fresh set of single-use recovery codes,
// replacing any existing set, and returns the plaintext codes once.
func (s *LoginService) GenerateRecoveryCodes(ctx context.Context, accountID uuid.UUID, count int) ([]string, error) {
	codes := make([]string, 0, count)
	hashes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		code, err := newRecoveryCode()
		if err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(code)
		if err != nil {
			return nil, fmt.Errorf("hash recovery code: %w", err)
		}
		codes = append(codes, code)
		hashes = append(hashes, hash)
	}
	if err := s.repo.UpdateRecoveryCodeHashes(ctx, accountID, hashes); err != nil {
		return nil, err
	}
	return codes, nil
}

const recoveryCodeAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"

func newRecoveryCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, 0, 9)
	for i, b := range buf {
		if i == 4 {
			out = append(out, '-')
		}
		out = append(out, recoveryCodeAlphabet[int(b)%len(recoveryCodeAlphabet)])
	}
	return string(out), nil
}
