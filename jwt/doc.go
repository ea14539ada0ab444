// Package jwt signs and parses the short-lived access tokens handed out
// after a successful login, signup confirmation or code login.
//
// Ed25519 is the default; HS256 is accepted for single-process deployments.
// Key rotation works through KeyID plus VerifyKeys.
package jwt
