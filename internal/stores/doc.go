// Package stores provides the Redis-backed Credential Store and OTP Store.
//
// # Codes
//
// Each (purpose, identity) pair owns one hash key. Every mutation is a single
// Lua script, so issuance (check cooldown, replace), attempt registration
// (check expiry, check budget, increment) and consumption (delete if the ID
// still matches) are serialized per key. Keys carry a TTL of the code's
// lifetime plus a retention grace so that expiry is discovered and reported
// rather than silently turning into "not found".
//
// # Accounts
//
// Accounts are hashes indexed by a lower-cased identity key and a sorted set
// of unverified accounts ordered by creation time. Lockout writes are
// WATCH/MULTI compare-and-swap transactions on the account version.
//
// Secrets are never stored in plaintext: codes as SHA-256 digests, account
// credentials only when they look like an encoded password hash.
package stores
