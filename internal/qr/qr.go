package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// imageSize is the square pixel size of generated QR codes.
const imageSize = 256

// Encode renders url as a scannable PNG QR code with medium error recovery.
func Encode(url string) ([]byte, error) {
	png, err := qrcode.Encode(url, qrcode.Medium, imageSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
