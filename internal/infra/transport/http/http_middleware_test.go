package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/csrf-target/internal/domain"
	context_ "github.com/mkrupp/csrf-target/internal/infra/context"
	"github.com/mkrupp/csrf-target/internal/infra/logging"
	http_ "github.com/mkrupp/csrf-target/internal/infra/transport/http"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) http_.ErrorResponse {
	t.Helper()

	var body http_.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return body
}

func TestTracingMiddleware(t *testing.T) {
	t.Parallel()

	var seen string

	handler := http_.TracingMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen, _ = context_.TraceIDFromContext(r.Context())
	}))

	t.Run("keeps incoming request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		req.Header.Set(http_.TraceIDHeader, "abc")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, "abc", seen)
		assert.Equal(t, "abc", rec.Header().Get(http_.TraceIDHeader))
	})

	t.Run("generates request id", func(t *testing.T) {
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

		assert.Len(t, seen, 26)
		assert.Equal(t, seen, rec.Header().Get(http_.TraceIDHeader))
	})
}

func TestRescueingMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("panic before writing becomes 500", func(t *testing.T) {
		t.Parallel()

		handler := http_.RescueingMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}), logging.NewNopLogger())

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/home", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, http_.ErrorResponse{Error: "Internal server error", Details: "boom"}, decodeError(t, rec))
	})

	t.Run("panic after writing keeps partial response", func(t *testing.T) {
		t.Parallel()

		handler := http_.RescueingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte("partial"))

			panic("boom")
		}), logging.NewNopLogger())

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/home", nil))

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, "partial", rec.Body.String())
		assert.Empty(t, rec.Header().Get("Content-Type"))
	})
}

func TestErrorHandlerFunc(t *testing.T) {
	t.Parallel()

	errFailed := errors.New("disk full")

	tests := []struct {
		name       string
		fn         http_.ErrorHandlerFunc
		wantStatus int
		wantJSON   bool
	}{
		{
			name: "error before writing becomes 500",
			fn: func(http.ResponseWriter, *http.Request) error {
				return errFailed
			},
			wantStatus: http.StatusInternalServerError,
			wantJSON:   true,
		},
		{
			name: "error after writing keeps response",
			fn: func(w http.ResponseWriter, _ *http.Request) error {
				w.WriteHeader(http.StatusBadRequest)

				return errFailed
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "no error",
			fn: func(w http.ResponseWriter, _ *http.Request) error {
				_, err := w.Write([]byte("ok"))

				return err
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			tt.fn.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantJSON {
				assert.Equal(t, "disk full", decodeError(t, rec).Details)
			}
		})
	}
}

type stubLoader struct {
	session *domain.Session
	err     error
}

func (l stubLoader) Load(context.Context, *http.Request) (*domain.Session, error) {
	return l.session, l.err
}

func TestSessionAndAuthorizingMiddleware(t *testing.T) {
	t.Parallel()

	authenticated := domain.RestoreSession("sid-auth", domain.SessionData{UserID: domain.NewNumericUserID(1)})
	anonymous := domain.NewSession("sid-anon")

	protected := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	unauthorized := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	})

	tests := []struct {
		name       string
		loader     stubLoader
		wantStatus int
	}{
		{
			name:       "authenticated session passes",
			loader:     stubLoader{session: authenticated},
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "anonymous session is redirected",
			loader:     stubLoader{session: anonymous},
			wantStatus: http.StatusFound,
		},
		{
			name:       "store failure is a 500",
			loader:     stubLoader{err: errors.New("store down")},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			log := logging.NewNopLogger()
			handler := http_.SessionMiddleware(http_.AuthorizingMiddleware(protected, unauthorized, log), tt.loader, log)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/home", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestListenAndServe_Shutdown(t *testing.T) {
	t.Parallel()

	sock, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := sock.Addr().String()
	require.NoError(t, sock.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- http_.ListenAndServe(ctx, http.NotFoundHandler(), addr, http_.HTTPTransportConfig{
			ReadHeaderTimeout: 1,
			ReadTimeout:       1,
			WriteTimeout:      1,
			ShutdownTimeout:   1,
		})
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/")
		if err != nil {
			return false
		}

		_ = resp.Body.Close()

		return resp.StatusCode == http.StatusNotFound
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestHTTPTransportConfig_Addr(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ":3000", http_.HTTPTransportConfig{}.Addr("3000"))
	assert.Equal(t, "127.0.0.1:8080", http_.HTTPTransportConfig{ServerAddr: "127.0.0.1:8080"}.Addr("3000"))
}
