package loginflow

import "github.com/aginhq/agin-login/pkg/factor"

// Result is the successful outcome of a single authentication step. Failed
// steps are reported as an *Error instead and never carry a Result.
type Result struct {
	// TwoFactorRequired is set on primary-factor responses when the account
	// has step-up verification enabled.
	TwoFactorRequired bool

	// SecondFactors lists the second-factor methods the account qualifies
	// for, in server order. Only meaningful when TwoFactorRequired is true.
	SecondFactors []factor.Kind

	// RecentFactor is the second factor most recently used successfully by
	// this account, used to skip the method picker. Empty when the server
	// has nothing remembered.
	RecentFactor factor.Kind
}

// Error type tags, mirroring how each failure is surfaced.
const (
	// ErrorTypeValidation is caught before any request is issued.
	ErrorTypeValidation = "validation"
	// ErrorTypeRequestFailed is a server-rejected credential or any other
	// request-level failure; shown inline on the active step.
	ErrorTypeRequestFailed = "request_failed"
	// ErrorTypeCeremony is a cancelled or failed platform authenticator
	// prompt; shown as a step-level alert.
	ErrorTypeCeremony = "ceremony_failed"
	// ErrorTypeTransport is a network failure; treated like a request
	// failure, retried only by the user.
	ErrorTypeTransport = "transport"
)

// Error is a step failure. The flow never advances on an Error; the message
// is attached to the originating step and the user may retry.
type Error struct {
	Type    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
