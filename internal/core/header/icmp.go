package header

import (
	"encoding/binary"

	"firestige.xyz/router/internal/core"
)

const (
	// ICMPHeaderLen covers type, code, checksum and the 4 type-specific bytes.
	ICMPHeaderLen = 8

	ICMPTypeEchoReply              = 0
	ICMPTypeDestinationUnreachable = 3
	ICMPTypeEchoRequest            = 8
	ICMPTypeTimeExceeded           = 11
)

// ICMP is a view over an ICMP message, header first, trailing data included.
type ICMP []byte

// ParseICMP returns an ICMP view over b.
func ParseICMP(b []byte) (ICMP, error) {
	if len(b) < ICMPHeaderLen {
		return nil, core.ErrPacketTooShort
	}
	return ICMP(b), nil
}

func (m ICMP) Type() uint8            { return m[0] }
func (m ICMP) SetType(t uint8)        { m[0] = t }
func (m ICMP) Code() uint8            { return m[1] }
func (m ICMP) SetCode(c uint8)        { m[1] = c }
func (m ICMP) Checksum() uint16       { return binary.BigEndian.Uint16(m[2:4]) }
func (m ICMP) SetChecksum(sum uint16) { binary.BigEndian.PutUint16(m[2:4], sum) }

// UpdateChecksum recomputes the checksum over the whole view.
func (m ICMP) UpdateChecksum() {
	m.SetChecksum(0)
	m.SetChecksum(Checksum(m))
}

// VerifyChecksum reports whether the message sums to zero.
func (m ICMP) VerifyChecksum() bool {
	return Checksum(m) == 0
}
