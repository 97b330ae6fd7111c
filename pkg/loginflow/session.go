package loginflow

import "github.com/aginhq/agin-login/pkg/factor"

// Session holds the mutable state of one flow mount. It is owned exclusively
// by the Sequencer and mutated only through its transitions; it is created
// fresh on mount and discarded when the flow exits, never persisted.
type Session struct {
	// Username is fixed once the welcome step completes and only cleared by
	// restarting the flow.
	Username string

	// Transient secret inputs, present only while their step is active.
	// Never logged.
	Password     string
	TotpCode     string
	RecoveryCode string

	// FirstFactorOptions is populated after the welcome step and drives the
	// primary-method picker.
	FirstFactorOptions []factor.Kind

	// SecondFactorOptions is populated exactly when the primary-factor
	// response reported that a second factor is required; nil otherwise.
	SecondFactorOptions []factor.Kind
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{}
}

// clearSecrets drops every transient secret input.
func (s *Session) clearSecrets() {
	s.Password = ""
	s.TotpCode = ""
	s.RecoveryCode = ""
}

// reset returns the session to its freshly mounted state.
func (s *Session) reset() {
	*s = Session{}
}
