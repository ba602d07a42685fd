// Package api defines the wire-level record shapes exchanged with the
// hosted inference service and the error taxonomy shared by all SDK
// packages. It contains no network or caching logic.
package api
