// Package loginapi is the typed HTTP client for the login endpoints. It
// translates between the wire schema and the flow-level types: factor enum
// spellings become factor.Kind values, login responses become
// loginflow.Result, and {"error": "..."} envelopes become *loginflow.Error.
//
// The client carries a cookie jar. The password step issues a short-lived
// login-session cookie scoping the second-factor endpoints; keeping the jar
// on the client mirrors the browser behavior those endpoints expect.
package loginapi
