package header

import (
	"encoding/binary"

	"firestige.xyz/router/internal/core"
)

const (
	// EthernetHeaderLen is the length of an untagged Ethernet II header.
	EthernetHeaderLen = 14

	EtherTypeIPv4 = 0x0800
	EtherTypeARP  = 0x0806
)

// BroadcastMAC is the all-ones hardware address.
var BroadcastMAC = [6]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// Ethernet is a view over an Ethernet II header at the start of a frame.
// Setters write through to the underlying frame.
type Ethernet []byte

// ParseEthernet returns an Ethernet view over frame.
func ParseEthernet(frame []byte) (Ethernet, error) {
	if len(frame) < EthernetHeaderLen {
		return nil, core.ErrPacketTooShort
	}
	return Ethernet(frame), nil
}

// Dst returns the destination hardware address.
func (e Ethernet) Dst() (mac [6]byte) {
	copy(mac[:], e[0:6])
	return
}

// Src returns the source hardware address.
func (e Ethernet) Src() (mac [6]byte) {
	copy(mac[:], e[6:12])
	return
}

func (e Ethernet) SetDst(mac [6]byte) { copy(e[0:6], mac[:]) }
func (e Ethernet) SetSrc(mac [6]byte) { copy(e[6:12], mac[:]) }

// EtherType returns the encapsulated protocol in host order.
func (e Ethernet) EtherType() uint16 {
	return binary.BigEndian.Uint16(e[12:14])
}

func (e Ethernet) SetEtherType(t uint16) {
	binary.BigEndian.PutUint16(e[12:14], t)
}

// SwapAddrs exchanges source and destination hardware addresses.
func (e Ethernet) SwapAddrs() {
	src, dst := e.Src(), e.Dst()
	e.SetDst(src)
	e.SetSrc(dst)
}

// Payload returns the bytes following the Ethernet header.
func (e Ethernet) Payload() []byte {
	return e[EthernetHeaderLen:]
}
