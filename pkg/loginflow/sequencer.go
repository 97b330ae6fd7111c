package loginflow

import (
	"log/slog"

	"github.com/aginhq/agin-login/pkg/factor"
)

// Sequencer owns the single authoritative Screen value and the Session it
// describes, and applies the transition rules in response to events. It is a
// strict finite-state machine: transitions are total over (screen, event),
// and an event that does not apply to the current screen is a no-op, never a
// crash.
//
// The Sequencer performs no I/O. Step handlers (see Flow) issue the network
// requests and feed results back in; the Sequencer only decides what comes
// next.
type Sequencer struct {
	screen  Screen
	session *Session
}

// NewSequencer creates a sequencer on the welcome screen with a fresh
// session.
func NewSequencer() *Sequencer {
	return &Sequencer{
		screen:  ScreenWelcome,
		session: NewSession(),
	}
}

// Screen returns the currently active screen.
func (s *Sequencer) Screen() Screen {
	return s.screen
}

// Session returns the session owned by this sequencer.
func (s *Sequencer) Session() *Session {
	return s.session
}

// Reset returns the sequencer to the welcome screen with an empty session,
// as if the flow had just mounted.
func (s *Sequencer) Reset() {
	s.screen = ScreenWelcome
	s.session.reset()
}

// ApplyFirstFactorOptions handles a successful primary-options fetch from
// the welcome screen. A single option skips the picker and lands directly on
// that option's screen; multiple options show the picker. An empty option
// set keeps the flow on welcome.
func (s *Sequencer) ApplyFirstFactorOptions(username string, options []factor.Kind) Screen {
	if s.screen != ScreenWelcome {
		return s.screen
	}
	if len(options) == 0 {
		slog.Warn("No first factor options offered", "username", username)
		return s.screen
	}

	s.session.Username = username
	s.session.FirstFactorOptions = options

	if len(options) == 1 {
		return s.goToFactor(options[0])
	}
	s.screen = ScreenLoginOptions
	return s.screen
}

// PickFirstFactor handles the user choosing a primary method from the
// picker. Choices not in the offered set are ignored.
func (s *Sequencer) PickFirstFactor(k factor.Kind) Screen {
	if s.screen != ScreenLoginOptions {
		return s.screen
	}
	if !factor.Contains(s.session.FirstFactorOptions, k) {
		return s.screen
	}
	return s.goToFactor(k)
}

// PickSecondFactor handles the user choosing a second-factor method from the
// two-factor picker.
func (s *Sequencer) PickSecondFactor(k factor.Kind) Screen {
	if s.screen != ScreenTwoFactorOptions {
		return s.screen
	}
	if !factor.Contains(s.session.SecondFactorOptions, k) {
		return s.screen
	}
	return s.goToFactor(k)
}

// ApplyFactorResult handles a successful verification response from the
// active factor screen. The returned bool reports whether the flow is
// complete and should leave the state machine.
//
// During the primary stage a response may demand a second factor, in which
// case the second-factor option set is stored and the next screen follows
// the skip rules: a single qualifying option is entered directly, otherwise
// a remembered recent factor is entered directly, otherwise the picker is
// shown. The single-option shortcut is checked before the recent-factor
// hint, mirroring the first-factor rule.
func (s *Sequencer) ApplyFactorResult(res Result) (Screen, bool) {
	if !s.screen.isFactorScreen() {
		return s.screen, false
	}

	// A populated second-factor option set means the primary factor already
	// succeeded, so this result belongs to a second-factor step.
	if s.session.SecondFactorOptions != nil {
		s.session.clearSecrets()
		return s.screen, true
	}

	s.session.clearSecrets()

	if !res.TwoFactorRequired || len(res.SecondFactors) == 0 {
		return s.screen, true
	}

	s.session.SecondFactorOptions = res.SecondFactors

	if len(res.SecondFactors) == 1 {
		return s.goToFactor(res.SecondFactors[0]), false
	}
	if res.RecentFactor != "" && factor.Contains(res.SecondFactors, res.RecentFactor) {
		return s.goToFactor(res.RecentFactor), false
	}
	s.screen = ScreenTwoFactorOptions
	return s.screen, false
}

// MoreOptions handles the "more options" link on a second-factor screen,
// returning to the two-factor picker. It only applies once second-factor
// options exist.
func (s *Sequencer) MoreOptions() Screen {
	if s.session.SecondFactorOptions == nil || !s.screen.isFactorScreen() {
		return s.screen
	}
	s.screen = ScreenTwoFactorOptions
	return s.screen
}

// Restart handles the "not you?" link on the password screen, clearing the
// username and password and returning to welcome.
func (s *Sequencer) Restart() Screen {
	if s.screen != ScreenPassword {
		return s.screen
	}
	s.session.Username = ""
	s.session.Password = ""
	s.screen = ScreenWelcome
	return s.screen
}

func (s *Sequencer) goToFactor(k factor.Kind) Screen {
	next, ok := ScreenFor(k)
	if !ok {
		slog.Warn("No screen for factor", "factor", k)
		return s.screen
	}
	s.screen = next
	return s.screen
}
