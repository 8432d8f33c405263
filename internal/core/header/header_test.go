package header

import (
	"errors"
	"testing"

	"firestige.xyz/router/internal/core"
)

func TestParseEthernet(t *testing.T) {
	data := []byte{
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55, // Dst MAC
		0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, // Src MAC
		0x08, 0x06, // EtherType: ARP
		0x00, 0x01, // Payload
	}

	eth, err := ParseEthernet(data)
	if err != nil {
		t.Fatalf("ParseEthernet failed: %v", err)
	}
	if eth.EtherType() != EtherTypeARP {
		t.Errorf("Expected EtherType 0x0806, got 0x%04x", eth.EtherType())
	}
	if eth.Dst() != [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55} {
		t.Errorf("unexpected Dst %v", eth.Dst())
	}
	if len(eth.Payload()) != 2 {
		t.Errorf("Expected payload length 2, got %d", len(eth.Payload()))
	}

	eth.SwapAddrs()
	if data[0] != 0xAA || data[6] != 0x00 {
		t.Errorf("SwapAddrs did not write through: % x", data[:12])
	}
}

func TestParseEthernetTooShort(t *testing.T) {
	_, err := ParseEthernet(make([]byte, 13))
	if !errors.Is(err, core.ErrPacketTooShort) {
		t.Errorf("Expected ErrPacketTooShort, got %v", err)
	}
}

func TestIPv4Accessors(t *testing.T) {
	buf := make([]byte, len(sampleIPv4Header))
	copy(buf, sampleIPv4Header)

	ip, err := ParseIPv4(buf)
	if err != nil {
		t.Fatalf("ParseIPv4 failed: %v", err)
	}
	if ip.HeaderLen() != 20 {
		t.Errorf("Expected HeaderLen 20, got %d", ip.HeaderLen())
	}
	if ip.TotalLen() != 0x73 {
		t.Errorf("Expected TotalLen 0x73, got 0x%x", ip.TotalLen())
	}
	if ip.TTL() != 64 {
		t.Errorf("Expected TTL 64, got %d", ip.TTL())
	}
	if ip.Protocol() != 17 {
		t.Errorf("Expected protocol 17, got %d", ip.Protocol())
	}
	if FormatAddr(ip.Src()) != "192.168.0.1" {
		t.Errorf("Expected src 192.168.0.1, got %s", FormatAddr(ip.Src()))
	}
	if FormatAddr(ip.Dst()) != "192.168.0.199" {
		t.Errorf("Expected dst 192.168.0.199, got %s", FormatAddr(ip.Dst()))
	}
	if !ip.VerifyChecksum() {
		t.Error("Expected checksum to verify")
	}
	// Total length exceeds the buffer, payload falls back to the buffer end.
	if len(ip.Payload()) != 0 {
		t.Errorf("Expected empty payload, got %d bytes", len(ip.Payload()))
	}
}

func TestIPv4ChecksumUpdate(t *testing.T) {
	buf := make([]byte, len(sampleIPv4Header))
	copy(buf, sampleIPv4Header)
	ip, _ := ParseIPv4(buf)

	ip.SetTTL(ip.TTL() - 1)
	if ip.VerifyChecksum() {
		t.Fatal("Expected stale checksum after TTL change")
	}
	// Verification must not clobber the stored field.
	if ip.Checksum() != 0xb861 {
		t.Errorf("VerifyChecksum modified checksum field: 0x%04x", ip.Checksum())
	}

	ip.UpdateChecksum()
	if !ip.VerifyChecksum() {
		t.Error("Expected checksum to verify after update")
	}
	if Checksum(ip.Header()) != 0 {
		t.Error("Expected header to sum to zero after update")
	}
}

func TestIPv4SwapAddrs(t *testing.T) {
	buf := make([]byte, len(sampleIPv4Header))
	copy(buf, sampleIPv4Header)
	ip, _ := ParseIPv4(buf)

	src, dst := ip.Src(), ip.Dst()
	ip.SwapAddrs()
	if ip.Src() != dst || ip.Dst() != src {
		t.Errorf("SwapAddrs failed: src=%s dst=%s", FormatAddr(ip.Src()), FormatAddr(ip.Dst()))
	}
}

func TestParseIPv4Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"too short", make([]byte, 19), core.ErrPacketTooShort},
		{"version 6", append([]byte{0x60}, make([]byte, 39)...), core.ErrUnsupportedProto},
		{"ihl below minimum", append([]byte{0x44}, make([]byte, 19)...), core.ErrUnsupportedProto},
		{"options truncated", append([]byte{0x46}, make([]byte, 19)...), core.ErrPacketTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseIPv4(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestICMPChecksum(t *testing.T) {
	msg := []byte{ICMPTypeEchoRequest, 0, 0, 0, 0x12, 0x34, 0x00, 0x01, 'p', 'i', 'n', 'g', '!'}
	icmp, err := ParseICMP(msg)
	if err != nil {
		t.Fatalf("ParseICMP failed: %v", err)
	}

	icmp.UpdateChecksum()
	if !icmp.VerifyChecksum() {
		t.Error("Expected ICMP checksum to verify")
	}

	icmp.SetType(ICMPTypeEchoReply)
	if icmp.VerifyChecksum() {
		t.Error("Expected ICMP checksum to fail after type change")
	}
}

func TestParseICMPTooShort(t *testing.T) {
	_, err := ParseICMP(make([]byte, 7))
	if !errors.Is(err, core.ErrPacketTooShort) {
		t.Errorf("Expected ErrPacketTooShort, got %v", err)
	}
}

func TestParseARP(t *testing.T) {
	data := []byte{
		0x00, 0x01, // htype
		0x08, 0x00, // ptype
		6, 4, // hlen, plen
		0x00, 0x01, // op request
		0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, // sha
		10, 0, 0, 1, // spa
		0, 0, 0, 0, 0, 0, // tha
		10, 0, 0, 2, // tpa
	}

	a, err := ParseARP(data)
	if err != nil {
		t.Fatalf("ParseARP failed: %v", err)
	}
	if a.HardwareType() != ARPHardwareEthernet || a.ProtocolType() != EtherTypeIPv4 {
		t.Errorf("unexpected types htype=%d ptype=0x%04x", a.HardwareType(), a.ProtocolType())
	}
	if a.Op() != ARPOpRequest {
		t.Errorf("Expected op request, got %d", a.Op())
	}
	if a.SenderMAC() != [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF} {
		t.Errorf("unexpected sender MAC %s", FormatMAC(a.SenderMAC()))
	}
	if FormatAddr(a.SenderIP()) != "10.0.0.1" || FormatAddr(a.TargetIP()) != "10.0.0.2" {
		t.Errorf("unexpected addresses spa=%s tpa=%s", FormatAddr(a.SenderIP()), FormatAddr(a.TargetIP()))
	}
}

func TestParseARPRejectsOtherAddressSizes(t *testing.T) {
	data := make([]byte, ARPLen)
	data[4], data[5] = 8, 4
	if _, err := ParseARP(data); !errors.Is(err, core.ErrUnsupportedProto) {
		t.Errorf("Expected ErrUnsupportedProto, got %v", err)
	}
	if _, err := ParseARP(data[:27]); !errors.Is(err, core.ErrPacketTooShort) {
		t.Errorf("Expected ErrPacketTooShort, got %v", err)
	}
}
