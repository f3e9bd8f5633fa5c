// Package auth verifies observer join tokens.
//
// The hub never issues tokens. The companion web backend signs HS256
// JWTs with shared secrets; this package only checks signatures and
// expiry on the JOIN_CLIENT envelope's credentials.
package auth
