package loginflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/aginhq/agin-login/pkg/factor"
)

// totpLength is the exact code length that triggers auto-submission.
const totpLength = 6

// fallbackMessage is shown when a failed request carries no usable message.
const fallbackMessage = "Login failed."

// Client issues the per-step authentication requests. Each step handler
// calls exactly one of these. Implementations report server-rejected
// attempts as *Error so the message can be surfaced inline; any other error
// is treated as a transport failure.
type Client interface {
	LoginOptions(ctx context.Context, username string) ([]factor.Kind, error)
	PasswordLogin(ctx context.Context, username, password string) (Result, error)
	TotpLogin(ctx context.Context, code string) (Result, error)
	RecoveryCodeLogin(ctx context.Context, code string) (Result, error)
}

// CeremonyClient runs a full security-key authentication ceremony: fetch the
// challenge, invoke the platform authenticator, submit the assertion.
type CeremonyClient interface {
	Login(ctx context.Context) (Result, error)
}

// Flow is the top-level flow controller. It owns the Sequencer and through
// it the Session, issues one request per step through the Client, records
// step-level errors, and tolerates the overlapping submissions the one-time
// code auto-submit path can produce.
//
// Submissions block on the network call. At most one request per step is in
// flight at a time; a duplicate submission while one is pending is ignored.
// Reset invalidates every outstanding request, so a response that arrives
// after a remount is discarded instead of mutating fresh state.
type Flow struct {
	mu       sync.Mutex
	seq      *Sequencer
	api      Client
	ceremony CeremonyClient

	next string
	gen  uint64

	inflight     map[Screen]bool
	stepErrors   map[Screen]string
	lastAutoCode string
	done         bool
	destination  string
}

// Option configures a Flow.
type Option func(*Flow)

// WithCeremonyClient wires the security-key ceremony used by the webauthn
// screens. Without it those screens report a ceremony error when invoked.
func WithCeremonyClient(c CeremonyClient) Option {
	return func(f *Flow) {
		f.ceremony = c
	}
}

// WithNext supplies the post-login destination requested by the caller,
// validated by ResolveDestination before use.
func WithNext(next string) Option {
	return func(f *Flow) {
		f.next = next
	}
}

// NewFlow creates a flow controller on the welcome screen.
func NewFlow(api Client, opts ...Option) *Flow {
	f := &Flow{
		seq:        NewSequencer(),
		api:        api,
		inflight:   make(map[Screen]bool),
		stepErrors: make(map[Screen]string),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Screen returns the currently active screen.
func (f *Flow) Screen() Screen {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq.Screen()
}

// Username returns the username captured by the welcome step.
func (f *Flow) Username() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq.Session().Username
}

// FirstFactorOptions returns the primary methods offered to this session.
func (f *Flow) FirstFactorOptions() []factor.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq.Session().FirstFactorOptions
}

// SecondFactorOptions returns the second-factor methods offered to this
// session, in server order.
func (f *Flow) SecondFactorOptions() []factor.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq.Session().SecondFactorOptions
}

// Done reports whether the flow has left the state machine, and if so the
// resolved navigation destination.
func (f *Flow) Done() (bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done, f.destination
}

// StepError returns the error message attached to a step, or "" if none.
func (f *Flow) StepError(s Screen) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stepErrors[s]
}

// Reset discards the flow state as if the flow were remounted. Responses to
// requests still in flight when Reset is called are ignored on arrival.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	f.seq.Reset()
	f.inflight = make(map[Screen]bool)
	f.stepErrors = make(map[Screen]string)
	f.lastAutoCode = ""
	f.done = false
	f.destination = ""
}

// SubmitUsername runs the welcome step: fetch the primary-factor options for
// the entered username and advance per the single-option skip rule.
func (f *Flow) SubmitUsername(ctx context.Context, username string) error {
	f.mu.Lock()
	if f.seq.Screen() != ScreenWelcome || f.inflight[ScreenWelcome] {
		f.mu.Unlock()
		return nil
	}
	if username == "" {
		err := &Error{Type: ErrorTypeValidation, Message: "Username is required"}
		f.stepErrors[ScreenWelcome] = err.Message
		f.mu.Unlock()
		return err
	}
	gen := f.begin(ScreenWelcome)
	f.mu.Unlock()

	options, err := f.api.LoginOptions(ctx, username)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.settle(ScreenWelcome, gen) {
		return nil
	}
	if err != nil {
		return f.fail(ScreenWelcome, err)
	}
	delete(f.stepErrors, ScreenWelcome)
	f.seq.ApplyFirstFactorOptions(username, options)
	return nil
}

// SubmitPassword runs the password step. On success the flow either leaves
// the state machine or advances to the second-factor stage.
func (f *Flow) SubmitPassword(ctx context.Context, password string) error {
	f.mu.Lock()
	if f.seq.Screen() != ScreenPassword || f.inflight[ScreenPassword] {
		f.mu.Unlock()
		return nil
	}
	if password == "" {
		err := &Error{Type: ErrorTypeValidation, Message: "Password is required"}
		f.stepErrors[ScreenPassword] = err.Message
		f.mu.Unlock()
		return err
	}
	username := f.seq.Session().Username
	gen := f.begin(ScreenPassword)
	f.mu.Unlock()

	res, err := f.api.PasswordLogin(ctx, username, password)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.settle(ScreenPassword, gen) {
		return nil
	}
	if err != nil {
		return f.fail(ScreenPassword, err)
	}
	f.apply(res)
	return nil
}

// SetTotpCode records the current one-time code value and auto-submits when
// it reaches exactly six characters, once per distinct value. Values of any
// other length do nothing. Paste and autofill funnel through here the same
// as keystrokes.
func (f *Flow) SetTotpCode(ctx context.Context, code string) error {
	f.mu.Lock()
	if f.seq.Screen() != ScreenTotp {
		f.mu.Unlock()
		return nil
	}
	f.seq.Session().TotpCode = code
	if len(code) != totpLength || code == f.lastAutoCode {
		f.mu.Unlock()
		return nil
	}
	f.lastAutoCode = code
	f.mu.Unlock()
	return f.SubmitTotp(ctx, code)
}

// SubmitTotp runs the one-time-code step. Manual submission funnels through
// the same path as the auto-submit trigger: a code that is not exactly six
// characters does nothing, and a submission racing an in-flight one is
// ignored.
func (f *Flow) SubmitTotp(ctx context.Context, code string) error {
	f.mu.Lock()
	if f.seq.Screen() != ScreenTotp || f.inflight[ScreenTotp] || len(code) != totpLength {
		f.mu.Unlock()
		return nil
	}
	gen := f.begin(ScreenTotp)
	f.mu.Unlock()

	res, err := f.api.TotpLogin(ctx, code)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.settle(ScreenTotp, gen) {
		return nil
	}
	if err != nil {
		return f.fail(ScreenTotp, err)
	}
	f.apply(res)
	return nil
}

// SubmitRecoveryCode runs the recovery-code step.
func (f *Flow) SubmitRecoveryCode(ctx context.Context, code string) error {
	f.mu.Lock()
	if f.seq.Screen() != ScreenRecoveryCode || f.inflight[ScreenRecoveryCode] {
		f.mu.Unlock()
		return nil
	}
	if code == "" {
		err := &Error{Type: ErrorTypeValidation, Message: "Recovery code is required"}
		f.stepErrors[ScreenRecoveryCode] = err.Message
		f.mu.Unlock()
		return err
	}
	gen := f.begin(ScreenRecoveryCode)
	f.mu.Unlock()

	res, err := f.api.RecoveryCodeLogin(ctx, code)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.settle(ScreenRecoveryCode, gen) {
		return nil
	}
	if err != nil {
		return f.fail(ScreenRecoveryCode, err)
	}
	f.apply(res)
	return nil
}

// RunWebAuthn runs the security-key step: the full begin/ceremony/finish
// round trip. A cancelled or failed platform prompt is surfaced as a
// step-level alert and the step may be retried.
func (f *Flow) RunWebAuthn(ctx context.Context) error {
	f.mu.Lock()
	screen := f.seq.Screen()
	if screen != ScreenWebAuthn && screen != ScreenWebAuthnPasswordless {
		f.mu.Unlock()
		return nil
	}
	if f.inflight[screen] {
		f.mu.Unlock()
		return nil
	}
	if f.ceremony == nil {
		err := &Error{Type: ErrorTypeCeremony, Message: "Security keys are not available here"}
		f.stepErrors[screen] = err.Message
		f.mu.Unlock()
		return err
	}
	gen := f.begin(screen)
	f.mu.Unlock()

	res, err := f.ceremony.Login(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.settle(screen, gen) {
		return nil
	}
	if err != nil {
		return f.fail(screen, err)
	}
	f.apply(res)
	return nil
}

// Pick handles a selection on either picker screen.
func (f *Flow) Pick(k factor.Kind) Screen {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.seq.Screen() {
	case ScreenLoginOptions:
		return f.seq.PickFirstFactor(k)
	case ScreenTwoFactorOptions:
		return f.seq.PickSecondFactor(k)
	}
	return f.seq.Screen()
}

// MoreOptions returns from a second-factor screen to the two-factor picker.
func (f *Flow) MoreOptions() Screen {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq.MoreOptions()
}

// NotYou restarts the flow from the password screen, clearing the username.
func (f *Flow) NotYou() Screen {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq.Restart()
}

// begin marks a step in flight and returns the generation the response must
// settle against. Callers hold the lock.
func (f *Flow) begin(s Screen) uint64 {
	f.inflight[s] = true
	return f.gen
}

// settle clears the in-flight mark and reports whether the response is still
// current. A response from before a Reset is dropped. Callers hold the lock.
func (f *Flow) settle(s Screen, gen uint64) bool {
	if f.gen != gen {
		slog.Debug("Dropping stale step response", "screen", s)
		return false
	}
	delete(f.inflight, s)
	return true
}

// fail records a step failure without advancing the screen. Callers hold
// the lock.
func (f *Flow) fail(s Screen, err error) error {
	var flowErr *Error
	if !errors.As(err, &flowErr) {
		flowErr = &Error{Type: ErrorTypeTransport, Message: fallbackMessage}
	}
	if flowErr.Message == "" {
		flowErr.Message = fallbackMessage
	}
	f.stepErrors[s] = flowErr.Message
	return flowErr
}

// apply feeds a successful result to the sequencer and resolves the
// destination when the flow completes. Callers hold the lock.
func (f *Flow) apply(res Result) {
	from := f.seq.Screen()
	delete(f.stepErrors, from)
	_, done := f.seq.ApplyFactorResult(res)
	if done {
		f.done = true
		f.destination = ResolveDestination(f.next)
	}
}
