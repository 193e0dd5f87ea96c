package http

import (
	"context"
	"net/http"

	"github.com/mkrupp/csrf-target/internal/domain"
	context_ "github.com/mkrupp/csrf-target/internal/infra/context"
	"github.com/mkrupp/csrf-target/internal/infra/logging"
)

// SessionLoader resolves the session of an incoming request.
type SessionLoader interface {
	Load(ctx context.Context, r *http.Request) (*domain.Session, error)
}

// SessionMiddleware creates middleware that attaches the client's session to
// the request context. Handlers read it with context_.SessionFromContext.
func SessionMiddleware(next http.Handler, sessions SessionLoader, log logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := sessions.Load(r.Context(), r)
		if err != nil {
			log.ErrorContext(r.Context(), "load session failed", "error", err)
			WriteInternalError(w, err)

			return
		}

		next.ServeHTTP(w, r.WithContext(context_.WithSession(r.Context(), session)))
	})
}

// AuthorizingMiddleware creates middleware that only lets requests with an
// authenticated session through. Everything else is handed to unauthorized.
func AuthorizingMiddleware(next http.Handler, unauthorized http.Handler, log logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := context_.SessionFromContext(r.Context())
		if !ok || !session.Authenticated() {
			log.InfoContext(r.Context(), "access without session", "uri", r.RequestURI)
			unauthorized.ServeHTTP(w, r)

			return
		}

		log.DebugContext(r.Context(), "session valid, access granted", "uri", r.RequestURI)
		next.ServeHTTP(w, r)
	})
}
