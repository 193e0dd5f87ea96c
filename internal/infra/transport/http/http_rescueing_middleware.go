package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/mkrupp/csrf-target/internal/infra/logging"
)

// RescueingMiddleware creates middleware that recovers from panics in HTTP handlers.
// It logs the panic and stack trace, then responds like any other unhandled
// error with a JSON 500 carrying the panic message, unless the handler already
// started its response.
func RescueingMiddleware(next http.Handler, log logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tw := &trackingResponseWriter{ResponseWriter: w}

		defer func(ctx context.Context) {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}

				log.ErrorContext(ctx, "request panic", slog.Group("http",
					"uri", r.RequestURI,
					"method", r.Method,
				), slog.Group("error",
					"panic", p,
					"stack", string(debug.Stack()),
				))

				if !tw.wroteHeader {
					WriteInternalError(w, fmt.Errorf("%v", p))
				}
			}
		}(r.Context())
		next.ServeHTTP(tw, r)
	})
}
