package header

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ParseAddr converts a dotted-decimal address into the same uint32
// representation the IPv4 and ARP views return, so the two compare directly.
func ParseAddr(s string) (uint32, error) {
	tokens := strings.Split(strings.TrimSpace(s), ".")
	if len(tokens) != 4 {
		return 0, fmt.Errorf("invalid IPv4 address %q", s)
	}
	var b [4]byte
	for i, tok := range tokens {
		v, err := strconv.Atoi(tok)
		if err != nil || v < 0 || v > 255 {
			return 0, fmt.Errorf("invalid IPv4 address %q", s)
		}
		b[i] = byte(v)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// FormatAddr renders addr in dotted-decimal notation.
func FormatAddr(addr uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(addr>>24), byte(addr>>16), byte(addr>>8), byte(addr))
}

// AddrTo4 returns the wire bytes of addr.
func AddrTo4(addr uint32) (b [4]byte) {
	binary.BigEndian.PutUint32(b[:], addr)
	return
}

// AddrFrom4 is the inverse of AddrTo4.
func AddrFrom4(b [4]byte) uint32 {
	return binary.BigEndian.Uint32(b[:])
}

// FormatMAC renders a hardware address as colon-separated hex.
func FormatMAC(mac [6]byte) string {
	return net.HardwareAddr(mac[:]).String()
}
