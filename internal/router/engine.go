package router

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/gopacket/layers"

	"firestige.xyz/router/internal/core"
	"firestige.xyz/router/internal/core/header"
	"firestige.xyz/router/internal/link"
	"firestige.xyz/router/internal/log"
	"firestige.xyz/router/internal/message"
	"firestige.xyz/router/internal/metrics"
	"firestige.xyz/router/internal/route"
)

// Engine handles frames one at a time. It is not safe for concurrent use;
// Run is the only intended caller of HandleFrame outside tests.
type Engine struct {
	dev   link.Device
	state *RouterState

	// Interfaces are static, so their addresses are resolved once.
	addrs map[int]uint32
	macs  map[int][6]byte
}

// NewEngine returns an engine forwarding with table over dev.
func NewEngine(dev link.Device, table *route.Table) *Engine {
	return &Engine{
		dev:   dev,
		state: NewRouterState(table),
		addrs: make(map[int]uint32),
		macs:  make(map[int][6]byte),
	}
}

// State exposes the engine's routing table, ARP cache and pending queue.
func (e *Engine) State() *RouterState {
	return e.state
}

// Run receives and handles frames until ctx is cancelled or a frame cannot
// be sent.
func (e *Engine) Run(ctx context.Context) error {
	log.GetLogger().WithField("routes", e.state.Table.Len()).Info("forwarding engine started")
	for {
		f, err := e.dev.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.GetLogger().Info("forwarding engine stopped")
				return nil
			}
			return fmt.Errorf("receive frame: %w", err)
		}
		if _, err := e.HandleFrame(f); err != nil {
			return err
		}
	}
}

// HandleFrame runs f to a terminal state. Protocol conditions are reported
// through the Verdict; the error is non-nil only when the link fails.
func (e *Engine) HandleFrame(f core.Frame) (Verdict, error) {
	start := time.Now()
	v, err := e.classify(f)
	metrics.FrameHandleSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		log.GetLogger().WithError(err).WithField("iface", f.Interface).Error("failed to handle frame")
		return v, err
	}

	if v.Action == Dropped {
		metrics.FramesDroppedTotal.WithLabelValues(v.Reason).Inc()
	}
	if logger := log.GetLogger(); logger.IsDebugEnabled() {
		logger.WithFields(map[string]interface{}{
			"iface":   f.Interface,
			"len":     f.Len(),
			"verdict": v.String(),
		}).Debug("frame handled")
	}
	return v, nil
}

func (e *Engine) classify(f core.Frame) (Verdict, error) {
	eth, err := header.ParseEthernet(f.Data)
	if err != nil {
		return dropped(ReasonMalformed), nil
	}

	iface := strconv.Itoa(f.Interface)
	switch eth.EtherType() {
	case header.EtherTypeIPv4:
		metrics.FramesReceivedTotal.WithLabelValues(iface, "ipv4").Inc()
		return e.handleIPv4(f, eth)
	case header.EtherTypeARP:
		metrics.FramesReceivedTotal.WithLabelValues(iface, "arp").Inc()
		return e.handleARP(f, eth)
	default:
		metrics.FramesReceivedTotal.WithLabelValues(iface, "other").Inc()
		return dropped(ReasonUnsupported), nil
	}
}

func (e *Engine) handleIPv4(f core.Frame, eth header.Ethernet) (Verdict, error) {
	ip, err := header.ParseIPv4(eth.Payload())
	if err != nil {
		return dropped(ReasonMalformed), nil
	}
	if !ip.VerifyChecksum() {
		return dropped(ReasonBadChecksum), nil
	}

	own, err := e.interfaceAddr(f.Interface)
	if err != nil {
		return dropped(ReasonMalformed), err
	}
	if ip.Dst() == own {
		return e.handleLocal(f, ip)
	}
	return e.forward(f)
}

// handleLocal answers echo requests addressed to the router. Other ICMP is
// dropped and anything else takes the forwarding path.
func (e *Engine) handleLocal(f core.Frame, ip header.IPv4) (Verdict, error) {
	if ip.Protocol() != header.ProtocolICMP {
		return e.forward(f)
	}
	icmp, err := header.ParseICMP(ip.Payload())
	if err != nil {
		return dropped(ReasonMalformed), nil
	}
	if icmp.Type() != header.ICMPTypeEchoRequest {
		return dropped(ReasonICMPNotEcho), nil
	}
	if ip.TTL() <= 1 {
		return e.sendICMPError(f, message.TimeExceeded, ReasonTimeExceeded)
	}

	if err := message.EchoReply(f.Data); err != nil {
		return dropped(ReasonMalformed), nil
	}
	if err := e.send(f.Interface, f.Data, ReasonEchoReply); err != nil {
		return dropped(ReasonEchoReply), err
	}
	metrics.ICMPGeneratedTotal.WithLabelValues(ReasonEchoReply).Inc()
	return Verdict{Action: Sent, Reason: ReasonEchoReply, Interface: f.Interface}, nil
}

// forward routes the IPv4 packet in f toward its next hop. When the next
// hop's hardware address is unknown the packet is queued unmodified and an
// ARP request goes out on the egress interface.
func (e *Engine) forward(f core.Frame) (Verdict, error) {
	eth, err := header.ParseEthernet(f.Data)
	if err != nil {
		return dropped(ReasonMalformed), nil
	}
	ip, err := header.ParseIPv4(eth.Payload())
	if err != nil {
		return dropped(ReasonMalformed), nil
	}
	if !ip.VerifyChecksum() {
		return dropped(ReasonBadChecksum), nil
	}
	if ip.TTL() <= 1 {
		return e.sendICMPError(f, message.TimeExceeded, ReasonTimeExceeded)
	}

	rt, ok := e.state.Table.LongestPrefixMatch(ip.Dst())
	if !ok {
		return e.sendICMPError(f, message.DestinationUnreachable, ReasonDestUnreachable)
	}

	egressMAC, err := e.interfaceMAC(rt.Interface)
	if err != nil {
		return dropped(ReasonForwarded), err
	}

	nextHopMAC, ok := e.state.Cache.Lookup(rt.NextHop)
	if !ok {
		return e.resolve(f, rt, egressMAC)
	}

	ip.SetTTL(ip.TTL() - 1)
	ip.UpdateChecksum()
	eth.SetDst(nextHopMAC)
	eth.SetSrc(egressMAC)

	if err := e.send(rt.Interface, f.Data, ReasonForwarded); err != nil {
		return dropped(ReasonForwarded), err
	}
	return Verdict{Action: Sent, Reason: ReasonForwarded, Interface: rt.Interface}, nil
}

func (e *Engine) resolve(f core.Frame, rt route.Entry, egressMAC [6]byte) (Verdict, error) {
	egressIP, err := e.interfaceAddr(rt.Interface)
	if err != nil {
		return dropped(ReasonARPResolve), err
	}

	e.state.Queue.Enqueue(f)
	metrics.PendingQueueDepth.Set(float64(e.state.Queue.Len()))

	req, err := message.ARPRequest(egressMAC, egressIP, rt.NextHop)
	if err != nil {
		return dropped(ReasonARPResolve), fmt.Errorf("build ARP request: %w", err)
	}
	if err := e.send(rt.Interface, req, "arp_request"); err != nil {
		return dropped(ReasonARPResolve), err
	}
	metrics.ARPRequestsTotal.Inc()

	log.GetLogger().WithFields(map[string]interface{}{
		"next_hop": header.FormatAddr(rt.NextHop),
		"iface":    rt.Interface,
		"pending":  e.state.Queue.Len(),
	}).Debug("next hop unresolved, packet queued")
	return Verdict{Action: Queued, Reason: ReasonARPResolve, Interface: rt.Interface}, nil
}

func (e *Engine) handleARP(f core.Frame, eth header.Ethernet) (Verdict, error) {
	a, err := header.ParseARP(eth.Payload())
	if err != nil {
		return dropped(ReasonMalformed), nil
	}

	switch a.Op() {
	case header.ARPOpRequest:
		own, err := e.interfaceAddr(f.Interface)
		if err != nil {
			return dropped(ReasonMalformed), err
		}
		if a.TargetIP() != own {
			return e.forward(f)
		}
		return e.replyARP(f)

	case header.ARPOpReply:
		e.state.Cache.Insert(a.SenderIP(), a.SenderMAC())
		metrics.ARPCacheEntries.Set(float64(e.state.Cache.Len()))
		log.GetLogger().WithFields(map[string]interface{}{
			"ip":  header.FormatAddr(a.SenderIP()),
			"mac": header.FormatMAC(a.SenderMAC()),
		}).Debug("ARP cache updated")

		queued, ok := e.state.Queue.Dequeue()
		if !ok {
			return Verdict{Action: Absorbed, Reason: ReasonARPLearned, Interface: -1}, nil
		}
		metrics.PendingQueueDepth.Set(float64(e.state.Queue.Len()))
		return e.forward(queued)

	default:
		return dropped(ReasonUnsupported), nil
	}
}

func (e *Engine) replyARP(f core.Frame) (Verdict, error) {
	mac, err := e.interfaceMAC(f.Interface)
	if err != nil {
		return dropped(ReasonARPReply), err
	}
	reply, err := message.ARPReply(f.Data, mac)
	if err != nil {
		return dropped(ReasonMalformed), nil
	}
	if err := e.send(f.Interface, reply, ReasonARPReply); err != nil {
		return dropped(ReasonARPReply), err
	}
	return Verdict{Action: Sent, Reason: ReasonARPReply, Interface: f.Interface}, nil
}

// sendICMPError reports the packet in f back to its sender on the interface
// it arrived on.
func (e *Engine) sendICMPError(f core.Frame, typeCode layers.ICMPv4TypeCode, reason string) (Verdict, error) {
	out, err := message.ICMPError(f.Data, typeCode)
	if err != nil {
		return dropped(ReasonMalformed), nil
	}
	if err := e.send(f.Interface, out, reason); err != nil {
		return dropped(reason), err
	}
	metrics.ICMPGeneratedTotal.WithLabelValues(reason).Inc()
	return Verdict{Action: Sent, Reason: reason, Interface: f.Interface}, nil
}

func (e *Engine) send(iface int, data []byte, kind string) error {
	if err := e.dev.Send(iface, data); err != nil {
		return fmt.Errorf("%w: %s on interface %d: %w", core.ErrSendFailed, kind, iface, err)
	}
	metrics.FramesSentTotal.WithLabelValues(strconv.Itoa(iface), kind).Inc()
	return nil
}

func (e *Engine) interfaceAddr(iface int) (uint32, error) {
	if addr, ok := e.addrs[iface]; ok {
		return addr, nil
	}
	s, err := e.dev.InterfaceIP(iface)
	if err != nil {
		return 0, fmt.Errorf("address of interface %d: %w", iface, err)
	}
	addr, err := header.ParseAddr(s)
	if err != nil {
		return 0, fmt.Errorf("address of interface %d: %w", iface, err)
	}
	e.addrs[iface] = addr
	return addr, nil
}

func (e *Engine) interfaceMAC(iface int) ([6]byte, error) {
	if mac, ok := e.macs[iface]; ok {
		return mac, nil
	}
	var mac [6]byte
	hw, err := e.dev.InterfaceMAC(iface)
	if err != nil {
		return mac, fmt.Errorf("hardware address of interface %d: %w", iface, err)
	}
	if len(hw) != len(mac) {
		return mac, fmt.Errorf("hardware address of interface %d has %d bytes: %w", iface, len(hw), core.ErrUnsupportedProto)
	}
	copy(mac[:], hw)
	e.macs[iface] = mac
	return mac, nil
}
