// Package authcore is the authentication core of the campaign site
// backend: one-time codes for signup, passwordless login, password reset
// and email change, plus password login with account lockout.
//
// Build an [Engine] with [New] and [Builder.Build]. Engine methods are safe
// for concurrent use.
//
// # Architecture boundaries
//
// authcore is the public surface: [Engine], [Builder], [Config], error
// sentinels and value types. Code lifecycle lives in internal/otp, lockout
// in internal/lockout, persistence in internal/accounts and
// internal/stores. Delivery ([Notifier]) and session minting
// ([SessionIssuer]) are collaborators supplied by the host.
//
// # What this package must NOT do
//
//   - Return or log plaintext codes or secrets outside [IssueResult] and
//     [Notification].
//   - Reveal whether an identity is registered from request, resend or
//     forgot-password flows.
//   - Import any sub-package that re-imports authcore.
package authcore
