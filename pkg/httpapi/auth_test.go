package httpapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorizer_Authorize(t *testing.T) {
	tests := []struct {
		name       string
		allowedIPs []string
		token      string
		sourceIP   string
		wantErr    error
	}{
		{
			name:     "valid token open allowlist",
			token:    "secret",
			sourceIP: "10.0.0.1",
			wantErr:  nil,
		},
		{
			name:     "missing token",
			token:    "",
			sourceIP: "10.0.0.1",
			wantErr:  ErrMissingToken,
		},
		{
			name:     "wrong token",
			token:    "nope",
			sourceIP: "10.0.0.1",
			wantErr:  ErrInvalidToken,
		},
		{
			name:       "allowed ip with valid token",
			allowedIPs: []string{"10.0.0.1"},
			token:      "secret",
			sourceIP:   "10.0.0.1",
			wantErr:    nil,
		},
		{
			name:       "ip outside allowlist",
			allowedIPs: []string{"10.0.0.1"},
			token:      "secret",
			sourceIP:   "192.168.1.5",
			wantErr:    ErrForbiddenIP,
		},
		{
			name:       "ip check runs before token check",
			allowedIPs: []string{"10.0.0.1"},
			token:      "",
			sourceIP:   "192.168.1.5",
			wantErr:    ErrForbiddenIP,
		},
		{
			name:       "blank allowlist entries ignored",
			allowedIPs: []string{"", "  "},
			token:      "secret",
			sourceIP:   "192.168.1.5",
			wantErr:    nil,
		},
		{
			name:       "allowlist entries trimmed",
			allowedIPs: []string{" 10.0.0.1 "},
			token:      "secret",
			sourceIP:   "10.0.0.1",
			wantErr:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAuthorizer("secret", tt.allowedIPs)
			err := a.Authorize(tt.token, tt.sourceIP)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
