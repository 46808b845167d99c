// Package qr renders pairing codes as QR images. It is a pure function
// over the code string and keeps no state.
package qr

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const imageSize = 256

// DataURL encodes code as a PNG QR image wrapped in a data URL, the form
// browsers can drop straight into an <img> src attribute.
func DataURL(code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("code is required")
	}

	png, err := qrcode.Encode(code, qrcode.Medium, imageSize)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR image: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
