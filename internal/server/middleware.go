package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// requestIDHeader is echoed back to the ERP so its request logs and the
// gateway's line up.
const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID assigns every request a fresh id, exposed to handlers through
// RequestIDFrom and to the caller through the X-Request-ID header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFrom returns the id RequestID assigned, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// failure is the request-scoped slot NoteFailure writes into.
type failure struct {
	err error
}

type failureKey struct{}

// RequestLogger emits one structured line per finished request: method,
// path, terminal status, duration, and whatever failure the handler noted.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			slot := &failure{}
			ctx := context.WithValue(r.Context(), failureKey{}, slot)

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r.WithContext(ctx))

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFrom(ctx)),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.status),
				slog.Duration("duration", time.Since(start)),
			}
			if slot.err != nil {
				attrs = append(attrs, slog.String("error", slot.err.Error()))
			}
			logger.LogAttrs(ctx, slog.LevelInfo, "request handled", attrs...)
		})
	}
}

// NoteFailure records err against the request's log line. A no-op outside a
// RequestLogger-wrapped request or when err is nil.
func NoteFailure(ctx context.Context, err error) {
	if err == nil {
		return
	}
	if slot, ok := ctx.Value(failureKey{}).(*failure); ok {
		slot.err = err
	}
}

// RequestTimeout cancels the request context after d. Cancellation is
// cooperative; handlers watch the context, nothing is forcibly stopped.
func RequestTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// statusWriter captures the terminal status code. Flush passes through so
// the event-stream route keeps flushing frames.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
