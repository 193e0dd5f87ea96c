package context

import (
	"context"

	"github.com/mkrupp/csrf-target/internal/domain"
)

const contextKeySession = contextKey("session")

// SessionFromContext extracts the client's session from the context.
// Returns the session and true if the session middleware attached one.
func SessionFromContext(ctx context.Context) (*domain.Session, bool) {
	session, ok := ctx.Value(contextKeySession).(*domain.Session)

	return session, ok && session != nil
}

// WithSession creates a new context carrying the client's session.
func WithSession(ctx context.Context, session *domain.Session) context.Context {
	return context.WithValue(ctx, contextKeySession, session)
}
