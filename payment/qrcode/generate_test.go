package qrcode

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentLinkPNG(t *testing.T) {
	data, err := PaymentLinkPNG("https://rzp.io/i/abc123", 0)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, DefaultSize, img.Bounds().Dx())
}

func TestPaymentLinkPNGRejectsRelativeURLs(t *testing.T) {
	for _, u := range []string{"", "rzp.io/i/abc", "tron:Txyz?amount=1", "https://"} {
		_, err := PaymentLinkPNG(u, 128)
		assert.Error(t, err, u)
	}
}
