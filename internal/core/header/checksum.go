// Package header implements fixed-offset views over Ethernet, IPv4, ICMP and
// ARP headers inside a raw frame buffer, plus the Internet checksum.
package header

import "encoding/binary"

// Checksum computes the Internet checksum (RFC 1071) of b: the one's complement
// of the one's-complement sum of all 16-bit big-endian words, carries folded.
// An odd trailing byte is padded with zero. The result is meant to be stored
// big-endian, so a buffer whose checksum field holds the result sums to zero.
func Checksum(b []byte) uint16 {
	var sum uint32
	n := len(b)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(binary.BigEndian.Uint16(b[i : i+2]))
	}
	if n%2 == 1 {
		sum += uint32(b[n-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}
