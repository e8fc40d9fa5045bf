package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/example/donor-finder/internal/observability"
)

type contextKey string

const requestIDKey contextKey = "request-id"

const requestIDHeader = "X-Request-ID"

// unmatchedRoute labels 404/405 responses so arbitrary paths do not become metric labels.
const unmatchedRoute = "unmatched"

// instrument assigns the request id and writes one access log line per request,
// turning panics into a JSON 500. mux only runs Use middleware for matched routes,
// so the fallback handlers are wrapped with it explicitly.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, reqID))
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", "error", rec, "path", r.URL.Path, "request_id", reqID)
				if !sw.written {
					writeError(sw, http.StatusInternalServerError, "Internal server error")
				} else {
					sw.status = http.StatusInternalServerError
				}
			}
			s.logRequest(r, sw.status, time.Since(start), reqID)
		}()
		next.ServeHTTP(sw, r)
	})
}

func (s *Server) logRequest(r *http.Request, status int, elapsed time.Duration, reqID string) {
	route := routeTemplate(r)
	code := strconv.Itoa(status)
	observability.HTTPRequestsTotal.WithLabelValues(r.Method, route, code).Inc()
	observability.HTTPRequestDuration.WithLabelValues(r.Method, route, code).Observe(elapsed.Seconds())

	s.logger.Info("http_request",
		"method", r.Method,
		"route", route,
		"status", status,
		"duration_ms", elapsed.Milliseconds(),
		"remote_addr", remoteIP(r),
		"request_id", reqID,
	)
}

// corsMiddleware allows the configured frontend origin and answers preflights.
// It wraps the router so unmatched routes carry the headers too.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.frontendURL != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", s.frontendURL)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, "+requestIDHeader)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger tags log lines with the request id when one is known.
func (s *Server) requestLogger(r *http.Request) *slog.Logger {
	if rid := requestIDFromContext(r.Context()); rid != "" {
		return s.logger.With("request_id", rid)
	}
	return s.logger
}

type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

func requestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

func routeTemplate(r *http.Request) string {
	if current := mux.CurrentRoute(r); current != nil {
		if tmpl, err := current.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return unmatchedRoute
}

// remoteIP prefers the first X-Forwarded-For hop.
func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
