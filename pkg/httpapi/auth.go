package httpapi

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var (
	// ErrMissingToken means no token arrived with the request (401).
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken means the token does not match the shared secret (403).
	ErrInvalidToken = errors.New("invalid token")
	// ErrForbiddenIP means the source address is outside the allow-list (403).
	ErrForbiddenIP = errors.New("forbidden (IP not allowed)")
)

// Authorizer validates the caller-supplied token and, when an allow-list
// is configured, the source address. An empty allow-list skips address
// checking entirely.
type Authorizer struct {
	sharedSecret string
	allowedIPs   map[string]struct{}
}

// NewAuthorizer creates an authorizer for the shared secret and optional
// source-address allow-list.
func NewAuthorizer(sharedSecret string, allowedIPs []string) *Authorizer {
	allowed := make(map[string]struct{}, len(allowedIPs))
	for _, ip := range allowedIPs {
		ip = strings.TrimSpace(ip)
		if ip == "" {
			continue
		}
		allowed[ip] = struct{}{}
	}

	return &Authorizer{
		sharedSecret: sharedSecret,
		allowedIPs:   allowed,
	}
}

// Authorize checks the source address against the allow-list and the token
// against the shared secret, in that order. Token comparison is
// constant-time to avoid leaking prefix matches.
func (a *Authorizer) Authorize(token, sourceIP string) error {
	if len(a.allowedIPs) > 0 {
		if _, ok := a.allowedIPs[sourceIP]; !ok {
			return ErrForbiddenIP
		}
	}

	if token == "" {
		return ErrMissingToken
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(a.sharedSecret)) != 1 {
		return ErrInvalidToken
	}

	return nil
}
