package httpadapter

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

type ctxKeyRequestID struct{}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return id
}

// withRequestID accepts a caller-supplied request id or mints one, and
// echoes it on the response so extraction submissions can be correlated
// with their worker-side job logs.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		ctx := context.WithValue(r.Context(), ctxKeyRequestID{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// logRequests emits one access-log line per request, levelled by the
// response status.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		trace := &responseTrace{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(trace, r)

		attrs := []any{
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", trace.status,
			"bytes", trace.written,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP(r),
			"user_agent", r.UserAgent(),
		}
		switch {
		case trace.status >= http.StatusInternalServerError:
			slog.Error("api_request", attrs...)
		case trace.status >= http.StatusBadRequest:
			slog.Warn("api_request", attrs...)
		default:
			slog.Info("api_request", attrs...)
		}
	})
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// responseTrace records the status and byte count for the access log.
type responseTrace struct {
	http.ResponseWriter
	status  int
	written int
}

func (t *responseTrace) WriteHeader(status int) {
	t.status = status
	t.ResponseWriter.WriteHeader(status)
}

func (t *responseTrace) Write(b []byte) (int, error) {
	n, err := t.ResponseWriter.Write(b)
	t.written += n
	return n, err
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (t *responseTrace) Unwrap() http.ResponseWriter {
	return t.ResponseWriter
}
