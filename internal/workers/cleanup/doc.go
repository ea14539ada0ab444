// Package cleanup runs the retention sweeper: it removes unverified accounts
// older than the configured TTL and purges expired codes from stores that
// have no native expiry.
//
// Nothing in the core depends on the sweeper for correctness.
package cleanup
