// Package session owns the in-memory registry of pairing sessions: creation
// against a pairing provider, lookup, idempotent deletion, and age-based
// expiry driven by a background sweeper. The registry is intentionally
// volatile; live state never survives a restart, only the per-session
// working directories under the session root do, and those are reclaimed
// when their sessions are destroyed.
package session
