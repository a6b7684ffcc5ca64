// Package middleware provides the HTTP middleware shared by the host's
// routes: CORS and per-client rate limiting.
package middleware
