package loginflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aginhq/agin-login/pkg/factor"
)

func TestSequencer_InitialScreen(t *testing.T) {
	seq := NewSequencer()
	assert.Equal(t, ScreenWelcome, seq.Screen())
	assert.Empty(t, seq.Session().Username)
}

func TestSequencer_SingleFirstFactorSkipsPicker(t *testing.T) {
	seq := NewSequencer()

	next := seq.ApplyFirstFactorOptions("alice", []factor.Kind{factor.KindPassword})

	assert.Equal(t, ScreenPassword, next)
	assert.Equal(t, "alice", seq.Session().Username)
	assert.Equal(t, []factor.Kind{factor.KindPassword}, seq.Session().FirstFactorOptions)
}

func TestSequencer_MultipleFirstFactorsShowPicker(t *testing.T) {
	seq := NewSequencer()

	next := seq.ApplyFirstFactorOptions("alice", []factor.Kind{factor.KindPassword, factor.KindWebAuthn})

	assert.Equal(t, ScreenLoginOptions, next)
}

func TestSequencer_EmptyFirstFactorOptionsStayOnWelcome(t *testing.T) {
	seq := NewSequencer()

	next := seq.ApplyFirstFactorOptions("alice", nil)

	assert.Equal(t, ScreenWelcome, next)
	assert.Empty(t, seq.Session().Username)
}

func TestSequencer_PickFirstFactor(t *testing.T) {
	seq := NewSequencer()
	seq.ApplyFirstFactorOptions("alice", []factor.Kind{factor.KindPassword, factor.KindWebAuthn, factor.KindPgp})

	assert.Equal(t, ScreenWebAuthn, seq.PickFirstFactor(factor.KindWebAuthn))
}

func TestSequencer_PickFirstFactorNotOfferedIsNoOp(t *testing.T) {
	seq := NewSequencer()
	seq.ApplyFirstFactorOptions("alice", []factor.Kind{factor.KindPassword, factor.KindWebAuthn})

	assert.Equal(t, ScreenLoginOptions, seq.PickFirstFactor(factor.KindTotp))
}

func TestSequencer_PasswordSuccessWithoutTwoFactorLeavesFlow(t *testing.T) {
	seq := NewSequencer()
	seq.ApplyFirstFactorOptions("alice", []factor.Kind{factor.KindPassword})

	_, done := seq.ApplyFactorResult(Result{TwoFactorRequired: false})

	assert.True(t, done)
	assert.Nil(t, seq.Session().SecondFactorOptions)
}

func TestSequencer_SingleSecondFactorSkipsPicker(t *testing.T) {
	seq := NewSequencer()
	seq.ApplyFirstFactorOptions("alice", []factor.Kind{factor.KindPassword})

	next, done := seq.ApplyFactorResult(Result{
		TwoFactorRequired: true,
		SecondFactors:     []factor.Kind{factor.KindTotp},
	})

	assert.False(t, done)
	assert.Equal(t, ScreenTotp, next)
}

func TestSequencer_RecentFactorSkipsPicker(t *testing.T) {
	seq := NewSequencer()
	seq.ApplyFirstFactorOptions("alice", []factor.Kind{factor.KindPassword})

	next, done := seq.ApplyFactorResult(Result{
		TwoFactorRequired: true,
		SecondFactors:     []factor.Kind{factor.KindTotp, factor.KindWebAuthn},
		RecentFactor:      factor.KindWebAuthn,
	})

	assert.False(t, done)
	assert.Equal(t, ScreenWebAuthn, next)
}

func TestSequencer_SingleOptionWinsOverRecentFactor(t *testing.T) {
	seq := NewSequencer()
	seq.ApplyFirstFactorOptions("alice", []factor.Kind{factor.KindPassword})

	// recent factor present but only one option offered: the single-option
	// shortcut is checked first
	next, done := seq.ApplyFactorResult(Result{
		TwoFactorRequired: true,
		SecondFactors:     []factor.Kind{factor.KindTotp},
		RecentFactor:      factor.KindTotp,
	})

	assert.False(t, done)
	assert.Equal(t, ScreenTotp, next)
}

func TestSequencer_NoRecentFactorShowsPicker(t *testing.T) {
	seq := NewSequencer()
	seq.ApplyFirstFactorOptions("alice", []factor.Kind{factor.KindPassword})

	next, done := seq.ApplyFactorResult(Result{
		TwoFactorRequired: true,
		SecondFactors:     []factor.Kind{factor.KindTotp, factor.KindWebAuthn},
	})

	assert.False(t, done)
	assert.Equal(t, ScreenTwoFactorOptions, next)
	assert.Equal(t, []factor.Kind{factor.KindTotp, factor.KindWebAuthn}, seq.Session().SecondFactorOptions)
}

func TestSequencer_RecentFactorNotOfferedShowsPicker(t *testing.T) {
	seq := NewSequencer()
	seq.ApplyFirstFactorOptions("alice", []factor.Kind{factor.KindPassword})

	next, done := seq.ApplyFactorResult(Result{
		TwoFactorRequired: true,
		SecondFactors:     []factor.Kind{factor.KindTotp, factor.KindWebAuthn},
		RecentFactor:      factor.KindRecoveryCode,
	})

	assert.False(t, done)
	assert.Equal(t, ScreenTwoFactorOptions, next)
}

func TestSequencer_SecondFactorSuccessLeavesFlow(t *testing.T) {
	seq := NewSequencer()
	seq.ApplyFirstFactorOptions("alice", []factor.Kind{factor.KindPassword})
	seq.ApplyFactorResult(Result{
		TwoFactorRequired: true,
		SecondFactors:     []factor.Kind{factor.KindTotp},
	})
	require.Equal(t, ScreenTotp, seq.Screen())

	_, done := seq.ApplyFactorResult(Result{})

	assert.True(t, done)
}

func TestSequencer_PickSecondFactor(t *testing.T) {
	seq := NewSequencer()
	seq.ApplyFirstFactorOptions("alice", []factor.Kind{factor.KindPassword})
	seq.ApplyFactorResult(Result{
		TwoFactorRequired: true,
		SecondFactors:     []factor.Kind{factor.KindTotp, factor.KindRecoveryCode},
	})
	require.Equal(t, ScreenTwoFactorOptions, seq.Screen())

	assert.Equal(t, ScreenRecoveryCode, seq.PickSecondFactor(factor.KindRecoveryCode))
}

func TestSequencer_MoreOptionsFromSecondFactorScreen(t *testing.T) {
	seq := NewSequencer()
	seq.ApplyFirstFactorOptions("alice", []factor.Kind{factor.KindPassword})
	seq.ApplyFactorResult(Result{
		TwoFactorRequired: true,
		SecondFactors:     []factor.Kind{factor.KindTotp, factor.KindWebAuthn},
		RecentFactor:      factor.KindTotp,
	})
	require.Equal(t, ScreenTotp, seq.Screen())

	assert.Equal(t, ScreenTwoFactorOptions, seq.MoreOptions())
}

func TestSequencer_MoreOptionsBeforeSecondFactorStageIsNoOp(t *testing.T) {
	seq := NewSequencer()
	seq.ApplyFirstFactorOptions("alice", []factor.Kind{factor.KindPassword})

	assert.Equal(t, ScreenPassword, seq.MoreOptions())
}

func TestSequencer_RestartClearsUsernameAndPassword(t *testing.T) {
	seq := NewSequencer()
	seq.ApplyFirstFactorOptions("alice", []factor.Kind{factor.KindPassword})
	seq.Session().Password = "hunter2"

	next := seq.Restart()

	assert.Equal(t, ScreenWelcome, next)
	assert.Empty(t, seq.Session().Username)
	assert.Empty(t, seq.Session().Password)
}

func TestSequencer_RestartOnlyFromPassword(t *testing.T) {
	seq := NewSequencer()
	seq.ApplyFirstFactorOptions("alice", []factor.Kind{factor.KindPassword, factor.KindWebAuthn})

	assert.Equal(t, ScreenLoginOptions, seq.Restart())
	assert.Equal(t, "alice", seq.Session().Username)
}

func TestSequencer_ApplyResultOnNonFactorScreenIsNoOp(t *testing.T) {
	seq := NewSequencer()

	next, done := seq.ApplyFactorResult(Result{TwoFactorRequired: false})

	assert.False(t, done)
	assert.Equal(t, ScreenWelcome, next)
}

func TestSequencer_SecretsClearedOnAdvance(t *testing.T) {
	seq := NewSequencer()
	seq.ApplyFirstFactorOptions("alice", []factor.Kind{factor.KindPassword})
	seq.Session().Password = "hunter2"

	seq.ApplyFactorResult(Result{
		TwoFactorRequired: true,
		SecondFactors:     []factor.Kind{factor.KindTotp},
	})

	assert.Empty(t, seq.Session().Password)
}

func TestSequencer_Reset(t *testing.T) {
	seq := NewSequencer()
	seq.ApplyFirstFactorOptions("alice", []factor.Kind{factor.KindPassword})
	seq.ApplyFactorResult(Result{
		TwoFactorRequired: true,
		SecondFactors:     []factor.Kind{factor.KindTotp},
	})

	seq.Reset()

	assert.Equal(t, ScreenWelcome, seq.Screen())
	assert.Empty(t, seq.Session().Username)
	assert.Nil(t, seq.Session().SecondFactorOptions)
	assert.Nil(t, seq.Session().FirstFactorOptions)
}

func TestScreenFor(t *testing.T) {
	for kind, want := range map[factor.Kind]Screen{
		factor.KindPassword:             ScreenPassword,
		factor.KindWebAuthn:             ScreenWebAuthn,
		factor.KindWebAuthnPasswordless: ScreenWebAuthnPasswordless,
		factor.KindTotp:                 ScreenTotp,
		factor.KindRecoveryCode:         ScreenRecoveryCode,
		factor.KindPgp:                  ScreenPgp,
	} {
		got, ok := ScreenFor(kind)
		require.True(t, ok, "factor %s", kind)
		assert.Equal(t, want, got)
	}

	_, ok := ScreenFor(factor.Kind("carrier-pigeon"))
	assert.False(t, ok)
}
