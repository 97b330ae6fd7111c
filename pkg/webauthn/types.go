package webauthn

import "errors"

var (
	// ErrCeremonyCancelled means the user dismissed or timed out the
	// authenticator prompt.
	ErrCeremonyCancelled = errors.New("webauthn: ceremony cancelled")
	// ErrCeremonyFailed means the authenticator could not produce a usable
	// credential or assertion.
	ErrCeremonyFailed = errors.New("webauthn: ceremony failed")
)

// AssertionOptions is the decoded challenge bundle for an authentication
// ceremony.
type AssertionOptions struct {
	Challenge            []byte
	RPID                 string
	AllowedCredentialIDs [][]byte
}

// Assertion is a signed authentication assertion produced by an
// authenticator.
type Assertion struct {
	ID                []byte
	RawID             []byte
	Type              string
	AuthenticatorData []byte
	ClientDataJSON    []byte
	Signature         []byte
	UserHandle        []byte
}

// CreationOptions is the decoded challenge bundle for a registration
// ceremony.
type CreationOptions struct {
	Challenge             []byte
	RPID                  string
	RPName                string
	UserID                []byte
	Username              string
	ExcludedCredentialIDs [][]byte
}

// Attestation is a newly created credential produced by an authenticator.
type Attestation struct {
	ID                []byte
	RawID             []byte
	Type              string
	AttestationObject []byte
	ClientDataJSON    []byte
}
