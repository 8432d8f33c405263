package header

import (
	"encoding/binary"

	"firestige.xyz/router/internal/core"
)

const (
	// ARPLen is the length of an Ethernet/IPv4 ARP packet.
	ARPLen = 28

	ARPHardwareEthernet = 1
	ARPOpRequest        = 1
	ARPOpReply          = 2
)

// ARP is a view over an Ethernet/IPv4 ARP packet.
type ARP []byte

// ParseARP returns an ARP view over b. Only 6-byte hardware and 4-byte
// protocol addresses are accepted since field offsets depend on them.
func ParseARP(b []byte) (ARP, error) {
	if len(b) < ARPLen {
		return nil, core.ErrPacketTooShort
	}
	if b[4] != 6 || b[5] != 4 {
		return nil, core.ErrUnsupportedProto
	}
	return ARP(b), nil
}

func (a ARP) HardwareType() uint16 { return binary.BigEndian.Uint16(a[0:2]) }
func (a ARP) ProtocolType() uint16 { return binary.BigEndian.Uint16(a[2:4]) }
func (a ARP) Op() uint16           { return binary.BigEndian.Uint16(a[6:8]) }

func (a ARP) SenderMAC() (mac [6]byte) {
	copy(mac[:], a[8:14])
	return
}

func (a ARP) SenderIP() uint32 { return binary.BigEndian.Uint32(a[14:18]) }

func (a ARP) TargetMAC() (mac [6]byte) {
	copy(mac[:], a[18:24])
	return
}

func (a ARP) TargetIP() uint32 { return binary.BigEndian.Uint32(a[24:28]) }
