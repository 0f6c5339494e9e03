package network

import (
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
)

// frameDeadline is the read deadline set between the length prefix and
// the payload, so a peer that sends a length but stalls
// on the body doesn't hang the ingress goroutine indefinitely.
const frameDeadline = 100 * time.Millisecond

// maxFrameLen guards against a corrupt or hostile length prefix
// driving an unbounded allocation.
const maxFrameLen = 16 * 1024 * 1024

// WriteFrame writes payload as one length-prefixed frame: a 4-byte
// big-endian signed int32 length, then payload itself.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > maxFrameLen {
		return errors.Errorf("payload too large: %d bytes", len(payload))
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return errors.Wrap(err, "write frame length")
	}
	if _, err := w.Write(payload); err != nil {
		return errors.Wrap(err, "write frame payload")
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from conn. A read deadline
// of frameDeadline is set just before reading the payload so a peer
// that announces a length and then stalls doesn't hang the caller;
// on timeout the frame is discarded and ErrMalformedFrame is returned.
func ReadFrame(conn net.Conn) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return nil, errors.Wrap(err, "read frame length")
	}
	n := int32(binary.BigEndian.Uint32(lenBuf[:]))
	if n < 0 || int(n) > maxFrameLen {
		return nil, errors.Wrapf(ErrMalformedFrame, "implausible frame length %d", n)
	}

	if err := conn.SetReadDeadline(time.Now().Add(frameDeadline)); err != nil {
		return nil, errors.Wrap(err, "set read deadline")
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return nil, errors.Wrap(ErrMalformedFrame, err.Error())
	}
	return payload, nil
}
