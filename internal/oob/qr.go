// Package oob carries exchange payloads over channels other than NFC.
package oob

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"sneakernet/internal/protocol/exchange"

	qrcodeTerminal "github.com/Baozisoftware/qrcode-terminal-go"
	"github.com/liyue201/goqr"
)

var (
	ErrNoQRCode   = errors.New("no QR codes found in image")
	ErrNoExchange = errors.New("no exchange payload found in QR codes")
)

// PrintQR renders payload to the terminal as a QR code.
func PrintQR(payload []byte) {
	qrcodeTerminal.New().Get(string(payload)).Print()
}

func ScanQRFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ScanQR(f)
}

// ScanQR returns the first QR payload in a PNG or JPEG image that parses
// as an exchange message. The payload still has to be verified.
func ScanQR(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	codes, err := goqr.Recognize(img)
	if err != nil || len(codes) == 0 {
		return nil, ErrNoQRCode
	}

	for _, code := range codes {
		if _, err := exchange.Unmarshal(code.Payload); err == nil {
			return code.Payload, nil
		}
	}
	return nil, ErrNoExchange
}
