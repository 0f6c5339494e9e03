package network

import "github.com/pkg/errors"

// Sentinel errors specific to the wire layer. Chain/transaction
// validity errors belong to blockchain's own taxonomy;
// these cover framing and envelope decoding only.
var (
	// ErrMalformedFrame covers a length prefix that cannot possibly be
	// a JSON payload (negative, absurdly large) and a payload read
	// that doesn't complete before the per-frame deadline.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrUnknownMessageType is returned when an envelope's type field
	// doesn't match one of the four known message types.
	ErrUnknownMessageType = errors.New("unknown message type")
)
