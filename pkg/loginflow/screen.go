package loginflow

import "github.com/aginhq/agin-login/pkg/factor"

// Screen identifies the step the flow is currently showing. Exactly one
// screen is active at a time; there is no terminal screen value, success is
// signaled by leaving the flow with a redirect destination.
type Screen string

const (
	ScreenWelcome              Screen = "welcome"
	ScreenLoginOptions         Screen = "login-options"
	ScreenPassword             Screen = "password"
	ScreenTwoFactorOptions     Screen = "two-factor-options"
	ScreenTotp                 Screen = "totp"
	ScreenRecoveryCode         Screen = "recoverycode"
	ScreenWebAuthn             Screen = "webauthn"
	ScreenWebAuthnPasswordless Screen = "webauthn-passwordless"
	ScreenPgp                  Screen = "pgp"
)

// screenForKind maps a selectable factor onto the screen that collects it.
var screenForKind = map[factor.Kind]Screen{
	factor.KindPassword:             ScreenPassword,
	factor.KindWebAuthn:             ScreenWebAuthn,
	factor.KindWebAuthnPasswordless: ScreenWebAuthnPasswordless,
	factor.KindTotp:                 ScreenTotp,
	factor.KindRecoveryCode:         ScreenRecoveryCode,
	factor.KindPgp:                  ScreenPgp,
}

// ScreenFor returns the screen that handles the given factor.
func ScreenFor(k factor.Kind) (Screen, bool) {
	s, ok := screenForKind[k]
	return s, ok
}

// isFactorScreen reports whether s collects a credential, i.e. a screen from
// which an authentication result can be applied.
func (s Screen) isFactorScreen() bool {
	switch s {
	case ScreenPassword, ScreenTotp, ScreenRecoveryCode, ScreenWebAuthn, ScreenWebAuthnPasswordless, ScreenPgp:
		return true
	}
	return false
}

func (s Screen) String() string {
	return string(s)
}
