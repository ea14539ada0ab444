// Package password hashes and verifies account secrets.
//
// Two encodings are supported:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>   (default)
//	$2a$<cost>$<salt+hash>                                        (bcrypt)
//
// Every [Hasher] compares in constant time and reports through NeedsUpgrade
// whether a stored hash was produced with weaker parameters (or another
// algorithm), so callers can rehash after the next successful login. [Chain]
// verifies hashes produced by older algorithms while writing new ones with
// the primary hasher.
//
// This package never stores secrets and never imports other authcore
// packages.
package password
