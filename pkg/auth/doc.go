// Package auth owns credential acquisition and caching for the SDK.
//
// A Credential is an opaque access token with an issue time and a TTL. The
// Cache keeps one credential per key pair and refreshes it through a
// TokenSource when it goes stale, coalescing concurrent refreshes into a
// single network call. Refresh failures are never cached; the next Acquire
// retries.
package auth
