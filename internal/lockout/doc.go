// Package lockout authenticates identity/secret pairs and runs the account
// lockout state machine:
//
//	unlocked(k) --failure, k+1 < threshold--> unlocked(k+1)
//	unlocked(k) --failure, k+1 = threshold--> locked(now+duration)
//	locked(T)   --any attempt, now < T------> locked(T), counter+1
//	locked(T)   --attempt, now >= T---------> evaluated from unlocked(0)
//	any         --success-------------------> unlocked(0)
//
// Transitions are pure functions over accounts.LockoutState. The service
// applies them through the store's compare-and-swap so concurrent failures
// never lose an increment and never extend a lock twice.
package lockout
