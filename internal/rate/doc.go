// Package rate provides Redis fixed-window counters used to cap how many
// codes one origin address may request per window, across all identities.
//
// Window semantics: INCR, then EXPIRE on the first hit only. Keys are
// <prefix>:rl:<scope>:<subject>.
package rate
