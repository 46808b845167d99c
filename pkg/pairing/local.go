package pairing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const CodeLength = 8

// Alphabet without easily confused characters (no 0/O, 1/I).
var codeAlphabet = []rune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789")

// credentials is the bundle written into a session directory when a link
// begins. The device identity and keys are what the linked device presents
// on reconnect.
type credentials struct {
	DeviceID     string    `json:"device_id"`
	Phone        string    `json:"phone"`
	IdentityKey  string    `json:"identity_key"`
	RegisteredAt time.Time `json:"registered_at"`
}

// LocalProvider issues pairing codes locally and writes a self-contained
// credential bundle under the session directory. It stands in for a remote
// device-link backend wherever one is not configured.
type LocalProvider struct {
	now func() time.Time
}

// NewLocalProvider creates a local pairing provider.
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{now: time.Now}
}

// Begin issues a code and persists the credential bundle under dir.
func (p *LocalProvider) Begin(ctx context.Context, phone string, dir string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	code, err := generateCode()
	if err != nil {
		return Result{}, err
	}

	identity := make([]byte, 32)
	if _, err := rand.Read(identity); err != nil {
		return Result{}, fmt.Errorf("failed to generate identity key: %w", err)
	}

	creds := credentials{
		DeviceID:     uuid.NewString(),
		Phone:        phone,
		IdentityKey:  hex.EncodeToString(identity),
		RegisteredAt: p.now(),
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal credentials: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "creds.json"), data, 0600); err != nil {
		return Result{}, fmt.Errorf("failed to write credentials: %w", err)
	}

	// Key material lives in a subdirectory so downstream consumers see the
	// same layout a multi-file auth state produces.
	keyDir := filepath.Join(dir, "keys")
	if err := os.MkdirAll(keyDir, 0700); err != nil {
		return Result{}, fmt.Errorf("failed to create key directory: %w", err)
	}
	noise := make([]byte, 32)
	if _, err := rand.Read(noise); err != nil {
		return Result{}, fmt.Errorf("failed to generate noise key: %w", err)
	}
	if err := os.WriteFile(filepath.Join(keyDir, "noise.key"), []byte(hex.EncodeToString(noise)), 0600); err != nil {
		return Result{}, fmt.Errorf("failed to write noise key: %w", err)
	}

	log.Debug().Str("phone", phone).Str("deviceId", creds.DeviceID).Msg("Local pairing code issued")

	return Result{Code: code}, nil
}

func generateCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate pairing code: %w", err)
	}
	out := make([]rune, CodeLength)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out), nil
}
