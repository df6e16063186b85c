package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/devilmonastery/creatorlink/internal/pkg/logger"
	"github.com/devilmonastery/creatorlink/internal/pkg/metrics"
	"github.com/devilmonastery/creatorlink/web/internal/session"
)

// RequestIDHeader carries the request ID back to the client
const RequestIDHeader = "X-Request-ID"

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// LogRequest assigns a request ID, attaches a request-scoped logger to the
// context, records HTTP metrics and logs one line per request
func LogRequest(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			reqLog := logger.WithRequest(base, requestID)
			r = r.WithContext(logger.WithContext(r.Context(), reqLog))

			start := time.Now()
			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK, // default if WriteHeader not called
			}

			metrics.HTTPActiveRequests.Inc()
			next.ServeHTTP(wrapped, r)
			metrics.HTTPActiveRequests.Dec()

			duration := time.Since(start)
			metrics.RecordHTTPRequest(r.Method, routeTemplate(r), wrapped.statusCode, duration)

			// Skip logging health checks and metrics scrapes to reduce noise
			if r.URL.Path == "/health" || r.URL.Path == "/metrics" || isStaticFile(r.URL.Path) {
				return
			}

			lineLog := logger.WithDuration(logger.WithHTTPRequest(reqLog, r.Method, r.URL.Path), duration)
			attrs := []any{
				slog.Int("status", wrapped.statusCode),
				slog.Int64("bytes", wrapped.written),
				slog.String("client_ip", clientIP(r)),
				slog.String("user_agent", r.UserAgent()),
			}
			// The callback query carries the code and state, so it is never logged
			if !strings.HasSuffix(r.URL.Path, "/callback") {
				attrs = append(attrs, slog.String("query", r.URL.RawQuery))
			}
			if user := session.UserFromContext(r.Context()); user != nil {
				attrs = append(attrs, slog.String("user_id", user.UserID))
			}

			level := slog.LevelInfo
			if wrapped.statusCode >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			lineLog.Log(r.Context(), level, "http request", attrs...)
		})
	}
}

// routeTemplate returns the matched mux path template, keeping metric
// label cardinality bounded
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// clientIP considers X-Forwarded-For if behind proxy
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}

// isStaticFile checks if the path is a static file request
func isStaticFile(path string) bool {
	return strings.HasPrefix(path, "/static/")
}
