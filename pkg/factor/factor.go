package factor

import "strings"

// Kind identifies an authentication method the server may offer. The same
// type is used for first-factor and second-factor selection even though the
// two option sets are independent.
type Kind string

const (
	KindPassword             Kind = "password"
	KindWebAuthn             Kind = "webauthn"
	KindWebAuthnPasswordless Kind = "webauthn-passwordless"
	KindTotp                 Kind = "totp"
	KindRecoveryCode         Kind = "recoverycode"
	KindPgp                  Kind = "pgp"
)

// aliases maps enum spellings used by older API schema revisions onto the
// internal kinds. The external schema is not authoritative here; everything
// crossing the API boundary goes through ParseKind.
var aliases = map[string]Kind{
	"password":              KindPassword,
	"webauthn":              KindWebAuthn,
	"webauthn-passwordless": KindWebAuthnPasswordless,
	"passkey":               KindWebAuthnPasswordless,
	"totp":                  KindTotp,
	"recoverycode":          KindRecoveryCode,
	"recovery-code":         KindRecoveryCode,
	"pgp":                   KindPgp,
	"gpg":                   KindPgp,
}

// ParseKind translates an external enum value into a Kind. Unknown values
// return false rather than an error; callers drop them at the boundary.
func ParseKind(s string) (Kind, bool) {
	k, ok := aliases[strings.ToLower(s)]
	return k, ok
}

// ParseKinds translates a list of external enum values, silently dropping
// anything unrecognized so that a server offering a factor this client does
// not know about never breaks the flow.
func ParseKinds(values []string) []Kind {
	var kinds []Kind
	for _, v := range values {
		if k, ok := ParseKind(v); ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Strings converts kinds back to their wire spelling.
func Strings(kinds []Kind) []string {
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, string(k))
	}
	return out
}

func (k Kind) String() string {
	return string(k)
}

// Contains reports whether kinds includes k.
func Contains(kinds []Kind, k Kind) bool {
	for _, c := range kinds {
		if c == k {
			return true
		}
	}
	return false
}
