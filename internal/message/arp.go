package message

import (
	"github.com/google/gopacket/layers"

	"firestige.xyz/router/internal/core/header"
)

func arpLayer(op uint16, senderMAC [6]byte, senderIP uint32, targetMAC [6]byte, targetIP uint32) *layers.ARP {
	spa, tpa := header.AddrTo4(senderIP), header.AddrTo4(targetIP)
	return &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         op,
		SourceHwAddress:   senderMAC[:],
		SourceProtAddress: spa[:],
		DstHwAddress:      targetMAC[:],
		DstProtAddress:    tpa[:],
	}
}

// ARPRequest builds a broadcast who-has for targetIP sent from the interface
// owning srcMAC/srcIP. The target hardware address mirrors the Ethernet
// destination and is therefore the broadcast address too.
func ARPRequest(srcMAC [6]byte, srcIP, targetIP uint32) ([]byte, error) {
	ethLayer := &layers.Ethernet{
		SrcMAC:       hwAddr(srcMAC),
		DstMAC:       hwAddr(header.BroadcastMAC),
		EthernetType: layers.EthernetTypeARP,
	}
	return serialize(ethLayer, arpLayer(layers.ARPRequest, srcMAC, srcIP, header.BroadcastMAC, targetIP))
}

// ARPReply answers the ARP request in frame on behalf of the interface owning
// ownMAC. The reply is unicast to the requester and announces the address the
// request asked for.
func ARPReply(frame []byte, ownMAC [6]byte) ([]byte, error) {
	eth, err := header.ParseEthernet(frame)
	if err != nil {
		return nil, err
	}
	req, err := header.ParseARP(eth.Payload())
	if err != nil {
		return nil, err
	}

	requester := eth.Src()
	ethLayer := &layers.Ethernet{
		SrcMAC:       hwAddr(ownMAC),
		DstMAC:       hwAddr(requester),
		EthernetType: layers.EthernetTypeARP,
	}
	return serialize(ethLayer, arpLayer(layers.ARPReply, ownMAC, req.TargetIP(), requester, req.SenderIP()))
}
