// Package session persists per-account login state.
//
// Each account is addressed by an [Identity]: the canonical phone number and a
// one-way hash of it. The hash names the stored record and doubles as the
// at-rest encryption key, so a record is only readable by a client that knows
// the phone number it belongs to.
//
// A [Store] owns one record. Every mutation through [Store.Update] rewrites
// the whole encrypted record through a [Repository] before returning. The
// store serializes its own writers with a mutex; it does not coordinate with
// other processes using the same repository.
package session
