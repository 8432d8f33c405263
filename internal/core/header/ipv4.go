package header

import (
	"encoding/binary"

	"firestige.xyz/router/internal/core"
)

const (
	// IPv4HeaderLen is the length of an IPv4 header without options.
	IPv4HeaderLen = 20

	ProtocolICMP = 1

	// MaxTTL is the TTL stamped on locally generated packets.
	MaxTTL = 64
)

// IPv4 is a view over an IPv4 packet, header first. Multi-byte fields are
// converted from network order on read and back on write.
type IPv4 []byte

// ParseIPv4 returns an IPv4 view over b after checking the version and that
// the whole header, options included, is present.
func ParseIPv4(b []byte) (IPv4, error) {
	if len(b) < IPv4HeaderLen {
		return nil, core.ErrPacketTooShort
	}
	if b[0]>>4 != 4 {
		return nil, core.ErrUnsupportedProto
	}
	hl := int(b[0]&0x0F) * 4
	if hl < IPv4HeaderLen {
		return nil, core.ErrUnsupportedProto
	}
	if len(b) < hl {
		return nil, core.ErrPacketTooShort
	}
	return IPv4(b), nil
}

// HeaderLen returns the header length in bytes (IHL * 4).
func (ip IPv4) HeaderLen() int {
	return int(ip[0]&0x0F) * 4
}

// Header returns the header bytes, options included.
func (ip IPv4) Header() []byte {
	return ip[:ip.HeaderLen()]
}

// Payload returns the bytes after the header, bounded by the total length
// field when it is consistent with the buffer.
func (ip IPv4) Payload() []byte {
	hl := ip.HeaderLen()
	end := int(ip.TotalLen())
	if end < hl || end > len(ip) {
		end = len(ip)
	}
	return ip[hl:end]
}

func (ip IPv4) TOS() uint8             { return ip[1] }
func (ip IPv4) TotalLen() uint16       { return binary.BigEndian.Uint16(ip[2:4]) }
func (ip IPv4) SetTotalLen(n uint16)   { binary.BigEndian.PutUint16(ip[2:4], n) }
func (ip IPv4) ID() uint16             { return binary.BigEndian.Uint16(ip[4:6]) }
func (ip IPv4) Flags() uint8           { return ip[6] >> 5 }
func (ip IPv4) FragOffset() uint16     { return binary.BigEndian.Uint16(ip[6:8]) & 0x1FFF }
func (ip IPv4) TTL() uint8             { return ip[8] }
func (ip IPv4) SetTTL(ttl uint8)       { ip[8] = ttl }
func (ip IPv4) Protocol() uint8        { return ip[9] }
func (ip IPv4) SetProtocol(p uint8)    { ip[9] = p }
func (ip IPv4) Checksum() uint16       { return binary.BigEndian.Uint16(ip[10:12]) }
func (ip IPv4) SetChecksum(sum uint16) { binary.BigEndian.PutUint16(ip[10:12], sum) }
func (ip IPv4) Src() uint32            { return binary.BigEndian.Uint32(ip[12:16]) }
func (ip IPv4) SetSrc(addr uint32)     { binary.BigEndian.PutUint32(ip[12:16], addr) }
func (ip IPv4) Dst() uint32            { return binary.BigEndian.Uint32(ip[16:20]) }
func (ip IPv4) SetDst(addr uint32)     { binary.BigEndian.PutUint32(ip[16:20], addr) }

// SwapAddrs exchanges source and destination addresses.
func (ip IPv4) SwapAddrs() {
	src, dst := ip.Src(), ip.Dst()
	ip.SetSrc(dst)
	ip.SetDst(src)
}

// ComputeChecksum returns the header checksum computed with the checksum
// field zeroed. The field is restored before returning.
func (ip IPv4) ComputeChecksum() uint16 {
	old := ip.Checksum()
	ip.SetChecksum(0)
	sum := Checksum(ip.Header())
	ip.SetChecksum(old)
	return sum
}

// VerifyChecksum reports whether the stored header checksum is correct.
func (ip IPv4) VerifyChecksum() bool {
	return ip.ComputeChecksum() == ip.Checksum()
}

// UpdateChecksum recomputes and stores the header checksum.
func (ip IPv4) UpdateChecksum() {
	ip.SetChecksum(ip.ComputeChecksum())
}
