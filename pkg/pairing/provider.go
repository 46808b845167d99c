// Package pairing defines the contract with the external device-link
// backend that issues one-time pairing codes and deposits credential
// material into a session's working directory.
package pairing

import (
	"context"
	"errors"
)

// ErrCapabilityUnavailable means the backend cannot issue pairing codes at
// all. Fatal to session creation; the caller must roll back.
var ErrCapabilityUnavailable = errors.New("pairing backend does not support code issuance")

// Result carries the one-time code issued for a session. By the time Begin
// returns successfully, every credential file the caller will need later
// has been written under the session directory.
type Result struct {
	Code string
}

// Provider begins a device link for a digits-only phone identifier,
// persisting credential material under dir. Errors other than
// ErrCapabilityUnavailable are transient: the attempt failed, the caller
// may create a new session to retry, and no retry happens internally.
type Provider interface {
	Begin(ctx context.Context, phone string, dir string) (Result, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, phone string, dir string) (Result, error)

func (f ProviderFunc) Begin(ctx context.Context, phone string, dir string) (Result, error) {
	return f(ctx, phone, dir)
}
