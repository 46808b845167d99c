package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/pairgate/pairgate/internal/observability"
)

// clientIP extracts the best source address guess for a request:
// X-Forwarded-For, then X-Real-IP, then RemoteAddr without the port.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return strings.TrimPrefix(ip, "::ffff:")
}

// requestToken extracts the caller token from the query string or the
// X-Pair-Token header.
func requestToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return r.Header.Get("X-Pair-Token")
}

// requestLogger tags every request with a short id and logs its outcome.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID, _ := gonanoid.New()
		start := time.Now()

		ww := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		s.logger.Info().
			Str("requestId", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("ip", clientIP(r)).
			Int("status", ww.status).
			Dur("duration", time.Since(start)).
			Msg("Request completed")
	})
}

// authMiddleware rejects requests failing the token or allow-list check.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		switch err := s.auth.Authorize(requestToken(r), ip); err {
		case nil:
			next.ServeHTTP(w, r)
		case ErrMissingToken:
			observability.RecordRequestDenied("missing_token")
			respondError(w, http.StatusUnauthorized, "Missing token")
		case ErrInvalidToken:
			observability.RecordRequestDenied("invalid_token")
			s.logger.Warn().Str("ip", ip).Str("path", r.URL.Path).Msg("Invalid token")
			respondError(w, http.StatusForbidden, "Invalid token")
		case ErrForbiddenIP:
			observability.RecordRequestDenied("forbidden_ip")
			s.logger.Warn().Str("ip", ip).Str("path", r.URL.Path).Msg("Blocked IP")
			respondError(w, http.StatusForbidden, "Forbidden (IP not allowed)")
		default:
			respondError(w, http.StatusInternalServerError, "Server error")
		}
	})
}

// rateLimitMiddleware rejects requests over the per-client window.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		if !s.rateLimiter.Allow(ip) {
			retryAfter := s.rateLimiter.RetryAfter(ip)
			observability.RecordRequestDenied("rate_limited")
			s.logger.Warn().
				Str("ip", ip).
				Str("path", r.URL.Path).
				Int("retryAfter", retryAfter).
				Msg("Rate limit exceeded")

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			respondError(w, http.StatusTooManyRequests, "Too many requests, slow down.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
