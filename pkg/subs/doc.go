// Package subs implements subscription deduplication and lifecycle
// management for shared, asynchronously-initialized resources.
//
// Many independent clients may ask for the same resource. The Manager
// collapses structurally-equal requests to a single registry entry,
// acquires the underlying resource exactly once through a Provider, and
// tears it down exactly once, only when no client still needs it.
//
// # Requests and Keys
//
// A Request is a name plus an ordered argument sequence. Two requests
// are the same subscription iff their canonical keys are equal; the key
// is a deterministic CBOR encoding of the request, so argument order
// matters and nil args equal empty args.
//
// # Client Options
//
// Each client registers with optional Options:
//   - Permanent: the registration is immune to unregister. Permanent is
//     sticky - later register calls cannot weaken or replace it.
//   - UnsubDelay: unregister schedules removal after a grace period
//     instead of removing immediately. A register call from the same
//     client that supplies Permanent or a delay cancels the pending
//     release.
//
// # Lifecycle
//
// The first register for an unseen key acquires the resource and hands
// the provider a readiness callback; the returned Readiness handle
// reports whether that callback has fired. The last client removal
// stops the resource handle and discards the entry. Entries exist in
// the registry iff at least one client is registered on them.
//
// # Concurrency
//
// All structural mutation (register, unregister, release-timer fire,
// teardown) is serialized by the Manager. The provider's readiness
// callback only flips an atomic flag and may fire at any time,
// including synchronously from Subscribe.
//
// Subscriptions are in-memory only and do not survive process restart.
package subs
