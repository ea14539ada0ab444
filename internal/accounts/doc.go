// Package accounts defines the account model, identity and display-name
// rules, and the Credential Store contract shared by every backend.
//
// Lockout fields are only ever written through Store.UpdateLockout, an
// optimistic compare-and-swap on Account.Version. Credential hashes are only
// written through Create and SetCredentialHash, and both refuse values that
// do not look like an encoded hash.
package accounts
