// Package internal holds helpers private to authcore: secure numeric code
// generation and secret digests.
//
// # Sub-packages
//
//   - accounts: account model, identity rules, Credential Store contract
//   - otp: one-time code model, OTP Store contract, issuance and verification
//   - lockout: account lockout state machine and credential authentication
//   - stores: Redis-backed OTP and account stores (postgres sub-package for SQL)
//   - rate: Redis fixed-window throttle used for per-address issuance caps
//   - audit: async event dispatch
//   - metrics: lock-free counters and latency histograms
//   - workers/cleanup: retention sweep for stale unverified accounts
//   - platform: process-level config loading and logger construction
//
// Nothing under internal/ is part of the public authcore API.
package internal
