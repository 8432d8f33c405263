package router

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"firestige.xyz/router/internal/core"
	"firestige.xyz/router/internal/core/header"
	"firestige.xyz/router/internal/route"
)

var (
	ifaceIPs  = []string{"192.168.0.1", "192.168.1.1"}
	ifaceMACs = []net.HardwareAddr{
		{0x02, 0x00, 0x00, 0x00, 0x00, 0x00},
		{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
	}
	hostMAC    = net.HardwareAddr{0x0a, 0x00, 0x00, 0x00, 0x00, 0x64}
	nextHopMAC = net.HardwareAddr{0x0a, 0x00, 0x00, 0x00, 0x01, 0x02}
	hostIP     = net.IPv4(192, 168, 0, 100).To4()
	nextHopIP  = net.IPv4(192, 168, 1, 2).To4()
)

type sentFrame struct {
	iface int
	data  []byte
}

// fakeDevice is an in-memory link with two interfaces.
type fakeDevice struct {
	in   chan core.Frame
	sent []sentFrame
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{in: make(chan core.Frame, 8)}
}

func (d *fakeDevice) Receive(ctx context.Context) (core.Frame, error) {
	select {
	case f := <-d.in:
		return f, nil
	case <-ctx.Done():
		return core.Frame{}, ctx.Err()
	}
}

func (d *fakeDevice) Send(iface int, data []byte) error {
	if iface < 0 || iface >= len(ifaceIPs) {
		return core.ErrInterfaceUnknown
	}
	d.sent = append(d.sent, sentFrame{iface: iface, data: append([]byte(nil), data...)})
	return nil
}

func (d *fakeDevice) InterfaceIP(iface int) (string, error) {
	if iface < 0 || iface >= len(ifaceIPs) {
		return "", core.ErrInterfaceUnknown
	}
	return ifaceIPs[iface], nil
}

func (d *fakeDevice) InterfaceMAC(iface int) (net.HardwareAddr, error) {
	if iface < 0 || iface >= len(ifaceMACs) {
		return nil, core.ErrInterfaceUnknown
	}
	return ifaceMACs[iface], nil
}

func (d *fakeDevice) Close() error { return nil }

type mockDevice struct {
	mock.Mock
}

func (m *mockDevice) Receive(ctx context.Context) (core.Frame, error) {
	args := m.Called(ctx)
	return args.Get(0).(core.Frame), args.Error(1)
}

func (m *mockDevice) Send(iface int, data []byte) error {
	args := m.Called(iface, data)
	return args.Error(0)
}

func (m *mockDevice) InterfaceIP(iface int) (string, error) {
	args := m.Called(iface)
	return args.String(0), args.Error(1)
}

func (m *mockDevice) InterfaceMAC(iface int) (net.HardwareAddr, error) {
	args := m.Called(iface)
	mac, _ := args.Get(0).(net.HardwareAddr)
	return mac, args.Error(1)
}

func (m *mockDevice) Close() error {
	return m.Called().Error(0)
}

func addr(t *testing.T, s string) uint32 {
	t.Helper()
	a, err := header.ParseAddr(s)
	require.NoError(t, err)
	return a
}

func testTable(t *testing.T) *route.Table {
	return route.NewTable([]route.Entry{
		{Prefix: addr(t, "192.168.0.0"), Mask: addr(t, "255.255.255.0"), NextHop: addr(t, "192.168.0.100"), Interface: 0},
		{Prefix: addr(t, "192.168.1.0"), Mask: addr(t, "255.255.255.0"), NextHop: addr(t, "192.168.1.2"), Interface: 1},
		{Prefix: addr(t, "10.0.0.0"), Mask: addr(t, "255.255.0.0"), NextHop: addr(t, "192.168.1.2"), Interface: 1},
	})
}

func newTestEngine(t *testing.T) (*Engine, *fakeDevice) {
	dev := newFakeDevice()
	return NewEngine(dev, testTable(t)), dev
}

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return buf.Bytes()
}

// ipFrame builds an Ethernet/IPv4 frame from the host on interface 0. Proto
// ICMPv4 carries an echo request, anything else an empty UDP datagram.
func ipFrame(t *testing.T, dst net.IP, ttl uint8, proto layers.IPProtocol) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: hostMAC, DstMAC: ifaceMACs[0], EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{Version: 4, IHL: 5, TTL: ttl, Id: 0x1234, Protocol: proto, SrcIP: hostIP, DstIP: dst}
	if proto == layers.IPProtocolICMPv4 {
		icmp := &layers.ICMPv4{
			TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
			Id:       7,
			Seq:      1,
		}
		return serialize(t, eth, ip, icmp, gopacket.Payload([]byte("abcdefghijklmnopqrstuvwxyz012345")))
	}
	udp := []byte{0x04, 0xd2, 0x16, 0x2e, 0x00, 0x08, 0x00, 0x00}
	return serialize(t, eth, ip, gopacket.Payload(udp))
}

func arpFrame(t *testing.T, op uint16, srcMAC net.HardwareAddr, srcIP net.IP, dstMAC net.HardwareAddr, dstIP net.IP) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeARP}
	a := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         op,
		SourceHwAddress:   srcMAC,
		SourceProtAddress: srcIP,
		DstHwAddress:      dstMAC,
		DstProtAddress:    dstIP,
	}
	return serialize(t, eth, a)
}

func decode(t *testing.T, data []byte) gopacket.Packet {
	t.Helper()
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	require.Nil(t, pkt.ErrorLayer(), "undecodable frame")
	return pkt
}

func TestForwardCacheHit(t *testing.T) {
	e, dev := newTestEngine(t)
	e.State().Cache.Insert(addr(t, "192.168.1.2"), [6]byte(nextHopMAC))

	v, err := e.HandleFrame(core.Frame{Data: ipFrame(t, net.IPv4(192, 168, 1, 50), 10, layers.IPProtocolUDP), Interface: 0})
	require.NoError(t, err)
	assert.Equal(t, Verdict{Action: Sent, Reason: ReasonForwarded, Interface: 1}, v)

	require.Len(t, dev.sent, 1)
	assert.Equal(t, 1, dev.sent[0].iface)
	pkt := decode(t, dev.sent[0].data)
	eth := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	assert.Equal(t, nextHopMAC, eth.DstMAC)
	assert.Equal(t, ifaceMACs[1], eth.SrcMAC)
	ip := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	assert.Equal(t, uint8(9), ip.TTL)
	assert.Equal(t, uint16(0), header.Checksum(ip.Contents), "IP checksum must verify")
}

func TestForwardNoRoute(t *testing.T) {
	e, dev := newTestEngine(t)

	v, err := e.HandleFrame(core.Frame{Data: ipFrame(t, net.IPv4(8, 8, 8, 8), 10, layers.IPProtocolUDP), Interface: 0})
	require.NoError(t, err)
	assert.Equal(t, Sent, v.Action)
	assert.Equal(t, ReasonDestUnreachable, v.Reason)

	require.Len(t, dev.sent, 1)
	assert.Equal(t, 0, dev.sent[0].iface)
	pkt := decode(t, dev.sent[0].data)
	ip := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	assert.True(t, ip.DstIP.Equal(hostIP))
	assert.Equal(t, uint16(56), ip.Length)
	icmp := pkt.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4)
	assert.Equal(t, uint8(layers.ICMPv4TypeDestinationUnreachable), icmp.TypeCode.Type())
	assert.Equal(t, uint8(0), icmp.TypeCode.Code())
}

func TestForwardTTLExpired(t *testing.T) {
	for _, ttl := range []uint8{0, 1} {
		e, dev := newTestEngine(t)
		e.State().Cache.Insert(addr(t, "192.168.1.2"), [6]byte(nextHopMAC))

		v, err := e.HandleFrame(core.Frame{Data: ipFrame(t, net.IPv4(192, 168, 1, 50), ttl, layers.IPProtocolUDP), Interface: 0})
		require.NoError(t, err)
		assert.Equal(t, ReasonTimeExceeded, v.Reason, "ttl %d", ttl)

		require.Len(t, dev.sent, 1)
		icmp := decode(t, dev.sent[0].data).Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4)
		assert.Equal(t, uint8(layers.ICMPv4TypeTimeExceeded), icmp.TypeCode.Type())
		assert.Equal(t, uint8(layers.ICMPv4CodeTTLExceeded), icmp.TypeCode.Code())
	}
}

func TestBadChecksumDropped(t *testing.T) {
	e, dev := newTestEngine(t)
	e.State().Cache.Insert(addr(t, "192.168.1.2"), [6]byte(nextHopMAC))

	frame := ipFrame(t, net.IPv4(192, 168, 1, 50), 10, layers.IPProtocolUDP)
	frame[header.EthernetHeaderLen+10] ^= 0xFF

	v, err := e.HandleFrame(core.Frame{Data: frame, Interface: 0})
	require.NoError(t, err)
	assert.Equal(t, Dropped, v.Action)
	assert.Equal(t, ReasonBadChecksum, v.Reason)
	assert.Empty(t, dev.sent)
}

func TestARPResolutionFlow(t *testing.T) {
	e, dev := newTestEngine(t)

	v, err := e.HandleFrame(core.Frame{Data: ipFrame(t, net.IPv4(10, 0, 3, 4), 10, layers.IPProtocolUDP), Interface: 0})
	require.NoError(t, err)
	assert.Equal(t, Verdict{Action: Queued, Reason: ReasonARPResolve, Interface: 1}, v)
	assert.Equal(t, 1, e.State().Queue.Len())

	require.Len(t, dev.sent, 1, "exactly one ARP request and no forward")
	assert.Equal(t, 1, dev.sent[0].iface)
	pkt := decode(t, dev.sent[0].data)
	eth := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	assert.Equal(t, net.HardwareAddr(header.BroadcastMAC[:]), eth.DstMAC)
	req := pkt.Layer(layers.LayerTypeARP).(*layers.ARP)
	assert.Equal(t, uint16(layers.ARPRequest), req.Operation)
	assert.Equal(t, []byte(ifaceMACs[1]), req.SourceHwAddress)
	assert.Equal(t, []byte{192, 168, 1, 1}, req.SourceProtAddress)
	assert.Equal(t, []byte(nextHopIP), req.DstProtAddress)

	reply := arpFrame(t, layers.ARPReply, nextHopMAC, nextHopIP, ifaceMACs[1], net.IPv4(192, 168, 1, 1).To4())
	v, err = e.HandleFrame(core.Frame{Data: reply, Interface: 1})
	require.NoError(t, err)
	assert.Equal(t, Verdict{Action: Sent, Reason: ReasonForwarded, Interface: 1}, v)
	assert.Equal(t, 1, e.State().Cache.Len())
	assert.True(t, e.State().Queue.IsEmpty())

	require.Len(t, dev.sent, 2)
	fwd := decode(t, dev.sent[1].data)
	assert.Equal(t, nextHopMAC, fwd.Layer(layers.LayerTypeEthernet).(*layers.Ethernet).DstMAC)
	ip := fwd.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	assert.Equal(t, uint8(9), ip.TTL, "queued packet is decremented exactly once")
	assert.Equal(t, uint16(0), header.Checksum(ip.Contents))
}

func TestARPReplyDrainsOnePacket(t *testing.T) {
	e, dev := newTestEngine(t)
	for i := 0; i < 2; i++ {
		_, err := e.HandleFrame(core.Frame{Data: ipFrame(t, net.IPv4(192, 168, 1, 50), 10, layers.IPProtocolUDP), Interface: 0})
		require.NoError(t, err)
	}
	require.Equal(t, 2, e.State().Queue.Len())

	reply := arpFrame(t, layers.ARPReply, nextHopMAC, nextHopIP, ifaceMACs[1], net.IPv4(192, 168, 1, 1).To4())
	_, err := e.HandleFrame(core.Frame{Data: reply, Interface: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, e.State().Queue.Len())
	assert.Len(t, dev.sent, 3)
}

func TestARPReplyWithEmptyQueue(t *testing.T) {
	e, dev := newTestEngine(t)

	reply := arpFrame(t, layers.ARPReply, nextHopMAC, nextHopIP, ifaceMACs[1], net.IPv4(192, 168, 1, 1).To4())
	v, err := e.HandleFrame(core.Frame{Data: reply, Interface: 1})
	require.NoError(t, err)
	assert.Equal(t, Absorbed, v.Action)
	assert.Empty(t, dev.sent)

	mac, ok := e.State().Cache.Lookup(addr(t, "192.168.1.2"))
	assert.True(t, ok)
	assert.Equal(t, [6]byte(nextHopMAC), mac)
}

func TestEchoReplyToRouter(t *testing.T) {
	e, dev := newTestEngine(t)

	v, err := e.HandleFrame(core.Frame{Data: ipFrame(t, net.IPv4(192, 168, 0, 1), 5, layers.IPProtocolICMPv4), Interface: 0})
	require.NoError(t, err)
	assert.Equal(t, Verdict{Action: Sent, Reason: ReasonEchoReply, Interface: 0}, v)

	require.Len(t, dev.sent, 1)
	assert.Equal(t, 0, dev.sent[0].iface)
	pkt := decode(t, dev.sent[0].data)
	eth := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	assert.Equal(t, hostMAC, eth.DstMAC)
	assert.Equal(t, ifaceMACs[0], eth.SrcMAC)
	ip := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	assert.True(t, ip.SrcIP.Equal(net.IPv4(192, 168, 0, 1)))
	assert.True(t, ip.DstIP.Equal(hostIP))
	assert.Equal(t, uint8(header.MaxTTL), ip.TTL)
	assert.Equal(t, uint16(0), header.Checksum(ip.Contents))
	icmp := pkt.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4)
	assert.Equal(t, uint8(layers.ICMPv4TypeEchoReply), icmp.TypeCode.Type())
	assert.Equal(t, uint16(0), header.Checksum(append(append([]byte(nil), icmp.Contents...), icmp.Payload...)))
}

func TestEchoToRouterTTLExpired(t *testing.T) {
	e, dev := newTestEngine(t)

	v, err := e.HandleFrame(core.Frame{Data: ipFrame(t, net.IPv4(192, 168, 0, 1), 1, layers.IPProtocolICMPv4), Interface: 0})
	require.NoError(t, err)
	assert.Equal(t, ReasonTimeExceeded, v.Reason)
	require.Len(t, dev.sent, 1)
}

func TestLocalNonEchoICMPDropped(t *testing.T) {
	e, dev := newTestEngine(t)

	eth := &layers.Ethernet{SrcMAC: hostMAC, DstMAC: ifaceMACs[0], EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{Version: 4, IHL: 5, TTL: 10, Protocol: layers.IPProtocolICMPv4, SrcIP: hostIP, DstIP: net.IPv4(192, 168, 0, 1)}
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoReply, 0)}
	frame := serialize(t, eth, ip, icmp)

	v, err := e.HandleFrame(core.Frame{Data: frame, Interface: 0})
	require.NoError(t, err)
	assert.Equal(t, dropped(ReasonICMPNotEcho), v)
	assert.Empty(t, dev.sent)
}

func TestLocalNonICMPIsForwarded(t *testing.T) {
	e, dev := newTestEngine(t)

	v, err := e.HandleFrame(core.Frame{Data: ipFrame(t, net.IPv4(192, 168, 0, 1), 10, layers.IPProtocolUDP), Interface: 0})
	require.NoError(t, err)
	assert.Equal(t, Verdict{Action: Queued, Reason: ReasonARPResolve, Interface: 0}, v)
	require.Len(t, dev.sent, 1)
	assert.NotNil(t, decode(t, dev.sent[0].data).Layer(layers.LayerTypeARP))
}

func TestARPRequestForRouter(t *testing.T) {
	e, dev := newTestEngine(t)

	req := arpFrame(t, layers.ARPRequest, hostMAC, hostIP, net.HardwareAddr(header.BroadcastMAC[:]), net.IPv4(192, 168, 0, 1).To4())
	v, err := e.HandleFrame(core.Frame{Data: req, Interface: 0})
	require.NoError(t, err)
	assert.Equal(t, Verdict{Action: Sent, Reason: ReasonARPReply, Interface: 0}, v)

	require.Len(t, dev.sent, 1)
	pkt := decode(t, dev.sent[0].data)
	eth := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	assert.Equal(t, hostMAC, eth.DstMAC)
	assert.Equal(t, ifaceMACs[0], eth.SrcMAC)
	reply := pkt.Layer(layers.LayerTypeARP).(*layers.ARP)
	assert.Equal(t, uint16(layers.ARPReply), reply.Operation)
	assert.Equal(t, []byte(ifaceMACs[0]), reply.SourceHwAddress)
	assert.Equal(t, []byte{192, 168, 0, 1}, reply.SourceProtAddress)
	assert.Equal(t, []byte(hostMAC), reply.DstHwAddress)
	assert.Equal(t, []byte(hostIP), reply.DstProtAddress)
}

func TestARPRequestForOtherHost(t *testing.T) {
	e, dev := newTestEngine(t)

	req := arpFrame(t, layers.ARPRequest, hostMAC, hostIP, net.HardwareAddr(header.BroadcastMAC[:]), net.IPv4(192, 168, 0, 77).To4())
	v, err := e.HandleFrame(core.Frame{Data: req, Interface: 0})
	require.NoError(t, err)
	// The forwarding path cannot read an IPv4 header out of it.
	assert.Equal(t, Dropped, v.Action)
	assert.Empty(t, dev.sent)
	assert.Equal(t, 0, e.State().Cache.Len())
}

func TestUnsupportedAndShortFramesDropped(t *testing.T) {
	e, dev := newTestEngine(t)

	ipv6 := serialize(t, &layers.Ethernet{SrcMAC: hostMAC, DstMAC: ifaceMACs[0], EthernetType: layers.EthernetTypeIPv6}, gopacket.Payload(make([]byte, 40)))
	v, err := e.HandleFrame(core.Frame{Data: ipv6, Interface: 0})
	require.NoError(t, err)
	assert.Equal(t, dropped(ReasonUnsupported), v)

	v, err = e.HandleFrame(core.Frame{Data: []byte{1, 2, 3}, Interface: 0})
	require.NoError(t, err)
	assert.Equal(t, dropped(ReasonMalformed), v)

	assert.Empty(t, dev.sent)
}

func TestSendFailureIsFatal(t *testing.T) {
	dev := new(mockDevice)
	dev.On("InterfaceIP", 0).Return("192.168.0.1", nil).Once()
	dev.On("Send", 0, mock.Anything).Return(errors.New("link down")).Once()
	e := NewEngine(dev, testTable(t))

	_, err := e.HandleFrame(core.Frame{Data: ipFrame(t, net.IPv4(192, 168, 0, 1), 5, layers.IPProtocolICMPv4), Interface: 0})
	assert.ErrorIs(t, err, core.ErrSendFailed)
	assert.ErrorContains(t, err, "link down")
	dev.AssertExpectations(t)
}

func TestInterfaceAddressesAreCached(t *testing.T) {
	dev := new(mockDevice)
	dev.On("InterfaceIP", 0).Return("192.168.0.1", nil).Once()
	e := NewEngine(dev, testTable(t))

	for i := 0; i < 3; i++ {
		frame := serialize(t,
			&layers.Ethernet{SrcMAC: hostMAC, DstMAC: ifaceMACs[0], EthernetType: layers.EthernetTypeIPv4},
			&layers.IPv4{Version: 4, IHL: 5, TTL: 10, Protocol: layers.IPProtocolICMPv4, SrcIP: hostIP, DstIP: net.IPv4(192, 168, 0, 1)},
			&layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoReply, 0)},
		)
		_, err := e.HandleFrame(core.Frame{Data: frame, Interface: 0})
		require.NoError(t, err)
	}
	dev.AssertExpectations(t)
	dev.AssertNumberOfCalls(t, "InterfaceIP", 1)
}

func TestRun(t *testing.T) {
	e, dev := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	dev.in <- core.Frame{Data: arpFrame(t, layers.ARPReply, nextHopMAC, nextHopIP, ifaceMACs[1], net.IPv4(192, 168, 1, 1).To4()), Interface: 1}
	require.Eventually(t, func() bool { return len(dev.in) == 0 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.Equal(t, 1, e.State().Cache.Len())
}

func TestRunReturnsReceiveError(t *testing.T) {
	dev := new(mockDevice)
	dev.On("Receive", mock.Anything).Return(core.Frame{}, core.ErrDeviceClosed)
	e := NewEngine(dev, testTable(t))

	err := e.Run(context.Background())
	assert.ErrorIs(t, err, core.ErrDeviceClosed)
}
