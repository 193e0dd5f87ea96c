// Package context carries request-scoped values between the HTTP middleware
// chain, the handlers and the logging handlers.
package context

type contextKey string
