// Package otp implements the one-time code lifecycle: issuance with a
// per-(identity, purpose) resend cooldown, storage behind the [Store]
// contract, and verification with a bounded attempt budget.
//
// A code moves through absent → live → {consumed, expired, exhausted}.
// Issuance supersedes whatever record exists for the pair. Attempts are
// counted in the store before the submitted code is compared, so a failed
// round trip after the increment never grants a free guess. Expiry is
// checked before the attempt counter, so a late submission is reported as
// expired and never consumes budget.
//
// Plaintext codes exist only in the value returned by [Service.Issue]; the
// store holds a SHA-256 digest and the JSON form of [Record] omits it.
package otp
