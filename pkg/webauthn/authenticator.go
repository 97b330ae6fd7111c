package webauthn

import "context"

// Authenticator is the platform credential interface: whatever can take a
// challenge and produce an assertion or a new credential. Implementations
// should return ErrCeremonyCancelled when the user dismisses the prompt and
// ErrCeremonyFailed for anything else the authenticator cannot do.
type Authenticator interface {
	GetAssertion(ctx context.Context, opts AssertionOptions) (Assertion, error)
	CreateCredential(ctx context.Context, opts CreationOptions) (Attestation, error)
}
