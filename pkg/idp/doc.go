// Package idp is the reference identity-provider server the flow packages
// run against. It implements the login endpoints end to end: primary-factor
// discovery with an enumeration guard, argon2id password verification with
// a timing guard for unknown usernames, one-time codes, single-use recovery
// codes, security-key ceremonies with server-issued challenges, and recent
// second-factor memory.
//
// A login attempt is scoped by a short-lived JWT in the login_session
// cookie: issued at identification, upgraded by a successful password step,
// replaced by the access_token cookie once no further factor is required.
//
// Storage is behind AccountRepository, with an in-memory implementation for
// tests and a PostgreSQL one for deployments.
package idp
