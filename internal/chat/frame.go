package chat

import (
	"encoding/binary"
	"io"
)

// MaxMessageSize caps the JSON body of a single frame.
const MaxMessageSize = 65536

const headerSize = 4

// WriteFrame writes payload prefixed by its big-endian uint32 length.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxMessageSize {
		return ErrMessageTooLarge
	}

	frame := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[headerSize:], payload)

	_, err := w.Write(frame)
	return err
}

// ReadFrame reads one length-prefixed frame. The declared length is checked
// against MaxMessageSize before the body is allocated.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	n := binary.BigEndian.Uint32(header[:])
	if n > MaxMessageSize {
		return nil, ErrMessageTooLarge
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}
