package qrcode

import (
	"errors"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"
)

const DefaultSize = 256

// PaymentLinkPNG encodes a payment link's short URL as a PNG QR code.
func PaymentLinkPNG(shortURL string, size int) ([]byte, error) {
	u, err := url.Parse(shortURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, errors.New("payment link URL must be absolute http(s)")
	}
	if size <= 0 || size > 1024 {
		size = DefaultSize
	}
	return qrcode.Encode(shortURL, qrcode.Medium, size)
}
