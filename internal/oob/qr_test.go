package oob_test

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"sneakernet/internal/cryptographic/signature"
	"sneakernet/internal/oob"
	"sneakernet/internal/protocol/exchange"

	"github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeQR(t *testing.T, content string) string {
	t.Helper()
	data, err := qrcode.Encode(content, qrcode.Medium, 768)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "code.png")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestScanQRFile_ExchangePayload(t *testing.T) {
	keys, err := signature.GenerateKeys()
	require.NoError(t, err)
	msg, err := exchange.NewInitial(keys)
	require.NoError(t, err)
	payload, err := exchange.Marshal(msg)
	require.NoError(t, err)

	got, err := oob.ScanQRFile(writeQR(t, string(payload)))
	require.NoError(t, err)

	scanned, err := exchange.Unmarshal(got)
	require.NoError(t, err)
	assert.Equal(t, msg, scanned)
	require.NoError(t, exchange.Verify(scanned, nil))
}

func TestScanQRFile_NotExchange(t *testing.T) {
	_, err := oob.ScanQRFile(writeQR(t, "hello"))
	assert.ErrorIs(t, err, oob.ErrNoExchange)
}

func TestScanQR_NoCode(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	_, err := oob.ScanQR(&buf)
	assert.ErrorIs(t, err, oob.ErrNoQRCode)
}

func TestScanQR_NotAnImage(t *testing.T) {
	_, err := oob.ScanQR(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}

func TestScanQRFile_Missing(t *testing.T) {
	_, err := oob.ScanQRFile(filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
