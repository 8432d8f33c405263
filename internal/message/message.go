// Package message generates the control messages the router emits: ICMP echo
// replies, ICMP errors and ARP requests/replies.
//
// Echo replies are rewritten in place over the received frame; everything
// else is a fresh frame serialized with gopacket.
package message

import (
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/router/internal/core/header"
)

// quotedPayloadLen is how much of the offending datagram's payload an ICMP
// error carries after its IP header.
const quotedPayloadLen = 8

var (
	// TimeExceeded is sent when a packet's TTL runs out.
	TimeExceeded = layers.CreateICMPv4TypeCode(layers.ICMPv4TypeTimeExceeded, layers.ICMPv4CodeTTLExceeded)
	// DestinationUnreachable is sent when no route matches.
	DestinationUnreachable = layers.CreateICMPv4TypeCode(layers.ICMPv4TypeDestinationUnreachable, layers.ICMPv4CodeNet)
)

var serializeOpts = gopacket.SerializeOptions{
	FixLengths:       true,
	ComputeChecksums: true,
}

func serialize(ls ...gopacket.SerializableLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, serializeOpts, ls...); err != nil {
		return nil, fmt.Errorf("failed to serialize frame: %w", err)
	}
	return buf.Bytes(), nil
}

func hwAddr(mac [6]byte) net.HardwareAddr {
	return net.HardwareAddr(append([]byte(nil), mac[:]...))
}

func ipAddr(addr uint32) net.IP {
	b := header.AddrTo4(addr)
	return net.IPv4(b[0], b[1], b[2], b[3]).To4()
}
