package core

import "errors"

// Sentinel errors. Protocol conditions (bad checksum, expired TTL, no route)
// are forwarding verdicts and never surface as errors.
var (
	// Frame parsing errors
	ErrPacketTooShort   = errors.New("router: packet too short")
	ErrUnsupportedProto = errors.New("router: unsupported protocol")

	// Routing table errors
	ErrRouteMalformed = errors.New("router: malformed route entry")

	// Link errors
	ErrInterfaceUnknown = errors.New("router: unknown interface")
	ErrSendFailed       = errors.New("router: frame send failed")
	ErrDeviceClosed     = errors.New("router: device closed")

	// Configuration errors
	ErrConfigInvalid = errors.New("router: invalid configuration")
)
