package http

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the JSON body of error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	//nolint:wrapcheck
	return json.NewEncoder(w).Encode(v)
}

// WriteJSONError writes {"error": message} with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, message string) error {
	//nolint:exhaustruct
	return WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteInternalError writes the generic 500 response. The error message is
// passed to the client as details.
func WriteInternalError(w http.ResponseWriter, err error) {
	_ = WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "Internal server error",
		Details: err.Error(),
	})
}

// ErrorHandlerFunc is an HTTP handler that may fail. If it returns an error
// before anything was written, the client gets WriteInternalError.
type ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request) error

// ServeHTTP implements http.Handler.
func (fn ErrorHandlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tw := &trackingResponseWriter{ResponseWriter: w}

	if err := fn(tw, r); err != nil && !tw.wroteHeader {
		WriteInternalError(w, err)
	}
}

type trackingResponseWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *trackingResponseWriter) WriteHeader(code int) {
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *trackingResponseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true

	//nolint:wrapcheck
	return w.ResponseWriter.Write(b)
}

func (w *trackingResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
