// Package webauthn runs security-key ceremonies. It owns the binary codec
// for credential material (base64 raw URL, symmetric round trip), the
// decoded challenge and credential types, and the Authenticator interface
// abstracting the platform credential store.
//
// Client stitches the three server round trips of a ceremony together and
// plugs into loginflow as its CeremonyClient. Cancelled or failed prompts
// surface as ceremony errors the flow can show inline and retry.
package webauthn
