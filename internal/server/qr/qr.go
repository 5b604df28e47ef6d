// Package qr renders QR codes as inline PNG data URIs.
package qr

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const imageSize = 256

// DataURI encodes content into a QR PNG and returns it as a
// data:image/png;base64 URI suitable for an <img> src attribute.
func DataURI(content string) (string, error) {
	if content == "" {
		return "", fmt.Errorf("qr content is empty")
	}

	png, err := qrcode.Encode(content, qrcode.Medium, imageSize)
	if err != nil {
		return "", fmt.Errorf("failed to render qr code: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
