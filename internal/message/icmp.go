package message

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/router/internal/core/header"
)

// EchoReply turns the echo request in frame into an echo reply, in place:
// Ethernet and IP addresses are swapped, TTL reset to header.MaxTTL and both
// checksums recomputed. The ICMP checksum covers the ICMP header and the
// whole echoed payload.
func EchoReply(frame []byte) error {
	eth, err := header.ParseEthernet(frame)
	if err != nil {
		return err
	}
	ip, err := header.ParseIPv4(eth.Payload())
	if err != nil {
		return err
	}
	icmp, err := header.ParseICMP(ip.Payload())
	if err != nil {
		return err
	}

	eth.SwapAddrs()

	ip.SwapAddrs()
	ip.SetTTL(header.MaxTTL)
	ip.SetProtocol(header.ProtocolICMP)
	ip.UpdateChecksum()

	icmp.SetType(header.ICMPTypeEchoReply)
	icmp.SetCode(0)
	icmp.UpdateChecksum()
	return nil
}

// ICMPError builds an ICMP error about the IPv4 packet in frame, addressed
// back to its sender. The reply carries the offending IP header and the first
// 8 bytes after it (zero padded when the packet is shorter), so a standard
// header yields an IP total length of 20+8+20+8.
func ICMPError(frame []byte, typeCode layers.ICMPv4TypeCode) ([]byte, error) {
	eth, err := header.ParseEthernet(frame)
	if err != nil {
		return nil, err
	}
	orig, err := header.ParseIPv4(eth.Payload())
	if err != nil {
		return nil, err
	}

	quoted := make([]byte, orig.HeaderLen()+quotedPayloadLen)
	copy(quoted, orig.Header())
	copy(quoted[orig.HeaderLen():], orig.Payload())

	ethLayer := &layers.Ethernet{
		SrcMAC:       hwAddr(eth.Dst()),
		DstMAC:       hwAddr(eth.Src()),
		EthernetType: layers.EthernetTypeIPv4,
	}
	ipLayer := &layers.IPv4{
		Version:    4,
		IHL:        5,
		TOS:        orig.TOS(),
		Id:         orig.ID(),
		Flags:      layers.IPv4Flag(orig.Flags()),
		FragOffset: orig.FragOffset(),
		TTL:        header.MaxTTL,
		Protocol:   layers.IPProtocolICMPv4,
		SrcIP:      ipAddr(orig.Dst()),
		DstIP:      ipAddr(orig.Src()),
	}
	icmpLayer := &layers.ICMPv4{
		TypeCode: typeCode,
	}
	return serialize(ethLayer, ipLayer, icmpLayer, gopacket.Payload(quoted))
}
