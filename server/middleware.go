package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// RequestIDHeader echoes the id assigned to each request
const RequestIDHeader = "X-Request-ID"

type contextKey int

const requestIDKey contextKey = iota

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestID assigns every request an id, keeping a well-formed one supplied by the client
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// apiKeyAuth requires X-API-Key to match apiKey. An empty apiKey disables the check.
// The health endpoint is always reachable.
func apiKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" || r.URL.Path == "/api/health" {
				next.ServeHTTP(w, r)
				return
			}

			if subtle.ConstantTimeCompare([]byte(r.Header.Get("X-API-Key")), []byte(apiKey)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid api key", Code: "unauthorized"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// logging logs every request with its status and duration
func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		entry := log.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rw.statusCode,
			"durationMs": time.Since(start).Milliseconds(),
			"requestId":  requestIDFrom(r.Context()),
			"principal":  r.Header.Get(PrincipalHeader),
		})
		if rw.statusCode >= http.StatusInternalServerError {
			entry.Warn("HTTP request failed")
		} else {
			entry.Debug("HTTP request")
		}
	})
}

// recoverer turns a handler panic into a 500 response
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.WithFields(log.Fields{
					"method":    r.Method,
					"path":      r.URL.Path,
					"requestId": requestIDFrom(r.Context()),
					"panic":     rec,
				}).Error("HTTP handler panicked")
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: "internal"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter captures the status code written by a handler
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.wroteHeader = true
	}
	return rw.ResponseWriter.Write(b)
}
