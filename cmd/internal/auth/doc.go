// Package auth tracks which chat sessions have been verified against a bank
// account, and for how long that verification stays live.
//
// The Tracker is a plain expiring map: callers that own actual credential
// checking (the PIN tools in this package, or any other verifier) record a
// session after a successful check, and later ask whether the session is
// still fresh. Expiry is lazy: stale records linger until CleanupExpired is
// invoked, and reads never delete.
//
// The Tracker performs no locking. It is designed for a single synchronous
// owner; callers that share one across goroutines must add their own mutual
// exclusion around it.
package auth
