// Package loginflow drives a user through multi-factor sign-in: username
// submission, a primary factor (password or security key), an optional
// second factor (one-time code, recovery code, or security key), and
// finally a redirect destination.
//
// # Overview
//
// The package is built around three pieces:
//
//   - Sequencer: the finite-state machine over Screen values. It owns the
//     Session and applies the transition rules; events that do not apply to
//     the current screen are no-ops.
//   - Flow: the controller. One step handler per screen, each issuing
//     exactly one request through the Client interface and feeding the
//     outcome back into the Sequencer. Failures attach to the originating
//     step and never advance the screen.
//   - ResolveDestination: computes the post-login navigation target from
//     the optional next parameter, refusing anything but a same-origin
//     relative path.
//
// # Basic Usage
//
//	api := loginapi.NewClient("https://id.example.com")
//	flow := loginflow.NewFlow(api, loginflow.WithNext(r.URL.Query().Get("next")))
//
//	flow.SubmitUsername(ctx, "alice")
//	switch flow.Screen() {
//	case loginflow.ScreenPassword:
//		flow.SubmitPassword(ctx, password)
//	case loginflow.ScreenLoginOptions:
//		flow.Pick(factor.KindPassword)
//	}
//
//	if done, dest := flow.Done(); done {
//		http.Redirect(w, r, dest, http.StatusFound)
//	}
//
// # Skip Rules
//
// A picker is only shown when there is a real choice: a single offered
// option, first or second factor, is entered directly. For second factors a
// remembered recent factor also skips the picker, but only when it appears
// in the offered set, and only after the single-option rule has not already
// decided.
//
// # One-Time Code Auto-Submit
//
// SetTotpCode submits as soon as the value reaches exactly six characters,
// once per distinct value. Manual submission goes through the same path and
// a duplicate racing an in-flight request is ignored; the server stays the
// source of truth for idempotency.
//
// # Errors
//
// Step failures are *Error values. Validation errors never reach the
// network; request and transport failures keep the screen in place with an
// inline message; ceremony failures (a declined or cancelled authenticator
// prompt) are step-level alerts. Nothing is fatal: the worst outcome is
// staying on the current screen until the user succeeds or walks away.
package loginflow
