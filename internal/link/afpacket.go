package link

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket/afpacket"
	"github.com/vishvananda/netlink"

	"firestige.xyz/router/internal/core"
	"firestige.xyz/router/internal/log"
)

// Options configures an AFPacketDevice.
type Options struct {
	Interfaces   []string      // Interface names, index i is interface i
	SnapLen      int           // Maximum frame length
	BufferSizeMB int           // Ring buffer size per interface
	PollTimeout  time.Duration // How often readers check for shutdown
	BPFFilter    string        // Optional tcpdump-style filter
}

type port struct {
	index   int
	name    string
	ip      string
	mac     net.HardwareAddr
	tpacket *afpacket.TPacket
}

// AFPacketDevice implements Device over one TPACKET_V3 socket per interface.
// Each interface has its own reader goroutine; all of them feed a single
// channel so Receive yields frames from every interface in arrival order.
type AFPacketDevice struct {
	ports  []*port
	frames chan core.Frame
	errs   chan error
	done   chan struct{}

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// OpenAFPacket opens every interface in opts and starts the readers.
func OpenAFPacket(opts Options) (*AFPacketDevice, error) {
	if len(opts.Interfaces) == 0 {
		return nil, fmt.Errorf("no interfaces given: %w", core.ErrConfigInvalid)
	}

	d := &AFPacketDevice{
		frames: make(chan core.Frame, 256),
		errs:   make(chan error, len(opts.Interfaces)),
		done:   make(chan struct{}),
	}
	for i, name := range opts.Interfaces {
		p, err := openPort(i, name, opts)
		if err != nil {
			d.closePorts()
			return nil, err
		}
		d.ports = append(d.ports, p)
	}

	for _, p := range d.ports {
		d.wg.Add(1)
		go d.read(p)
	}
	return d, nil
}

func openPort(index int, name string, opts Options) (*port, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get interface %s: %w", name, err)
	}
	ip, err := interfaceIPv4(name)
	if err != nil {
		return nil, err
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"index":   index,
		"name":    iface.Name,
		"ifindex": iface.Index,
		"mtu":     iface.MTU,
		"hw_addr": iface.HardwareAddr.String(),
		"ip":      ip,
	}).Info("interface details")

	frameSize, blockSize, numBlocks, err := computeFrameSizeAndBlocks(opts.SnapLen, opts.BufferSizeMB)
	if err != nil {
		return nil, err
	}

	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(iface.Name),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptPollTimeout(opts.PollTimeout),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create TPacket on %s: %w", name, err)
	}

	if opts.BPFFilter != "" {
		rawBpf, err := CompileBpf(opts.BPFFilter, opts.SnapLen)
		if err != nil {
			tp.Close()
			return nil, err
		}
		if err := tp.SetBPF(rawBpf); err != nil {
			tp.Close()
			return nil, fmt.Errorf("failed to set BPF filter on %s: %w", name, err)
		}
	}

	return &port{index: index, name: name, ip: ip, mac: iface.HardwareAddr, tpacket: tp}, nil
}

// interfaceIPv4 returns the first IPv4 address configured on the link.
func interfaceIPv4(name string) (string, error) {
	l, err := netlink.LinkByName(name)
	if err != nil {
		return "", fmt.Errorf("failed to find link %s: %w", name, err)
	}
	addrs, err := netlink.AddrList(l, netlink.FAMILY_V4)
	if err != nil {
		return "", fmt.Errorf("failed to list addresses of %s: %w", name, err)
	}
	for _, a := range addrs {
		if ip4 := a.IP.To4(); ip4 != nil {
			return ip4.String(), nil
		}
	}
	return "", fmt.Errorf("interface %s has no IPv4 address: %w", name, core.ErrConfigInvalid)
}

func computeFrameSizeAndBlocks(snapLen, bufferSizeMB int) (frameSize int, blockSize int, numBlocks int, err error) {
	if snapLen <= 0 {
		return 0, 0, 0, fmt.Errorf("invalid snap length %d: %w", snapLen, core.ErrConfigInvalid)
	}
	pageSize := os.Getpagesize()
	if snapLen < pageSize {
		frameSize = pageSize / (pageSize / snapLen)
	} else {
		frameSize = (snapLen/pageSize + 1) * pageSize
	}
	blockSize = frameSize * 128
	numBlocks = bufferSizeMB * 1024 * 1024 / blockSize

	if numBlocks < 1 {
		return 0, 0, 0, fmt.Errorf("buffer size too small for frame size %d: %w", frameSize, core.ErrConfigInvalid)
	}
	return frameSize, blockSize, numBlocks, nil
}

func (d *AFPacketDevice) read(p *port) {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		default:
		}

		data, ci, err := p.tpacket.ReadPacketData()
		if err != nil {
			if errors.Is(err, afpacket.ErrTimeout) || errors.Is(err, afpacket.ErrPoll) {
				continue
			}
			select {
			case d.errs <- fmt.Errorf("read on %s: %w", p.name, err):
			case <-d.done:
			}
			return
		}

		// Packet sockets also see frames leaving the interface.
		if len(data) >= 12 && bytes.Equal(data[6:12], p.mac) {
			continue
		}

		select {
		case d.frames <- core.Frame{Data: data, Interface: p.index, Timestamp: ci.Timestamp}:
		case <-d.done:
			return
		}
	}
}

// Receive implements Device.
func (d *AFPacketDevice) Receive(ctx context.Context) (core.Frame, error) {
	select {
	case f := <-d.frames:
		return f, nil
	case err := <-d.errs:
		return core.Frame{}, err
	case <-ctx.Done():
		return core.Frame{}, ctx.Err()
	case <-d.done:
		return core.Frame{}, core.ErrDeviceClosed
	}
}

func (d *AFPacketDevice) port(iface int) (*port, error) {
	if iface < 0 || iface >= len(d.ports) {
		return nil, fmt.Errorf("interface %d: %w", iface, core.ErrInterfaceUnknown)
	}
	return d.ports[iface], nil
}

// Send implements Device.
func (d *AFPacketDevice) Send(iface int, data []byte) error {
	p, err := d.port(iface)
	if err != nil {
		return err
	}
	if err := p.tpacket.WritePacketData(data); err != nil {
		return fmt.Errorf("write on %s: %w", p.name, err)
	}
	return nil
}

// InterfaceIP implements Device.
func (d *AFPacketDevice) InterfaceIP(iface int) (string, error) {
	p, err := d.port(iface)
	if err != nil {
		return "", err
	}
	return p.ip, nil
}

// InterfaceMAC implements Device.
func (d *AFPacketDevice) InterfaceMAC(iface int) (net.HardwareAddr, error) {
	p, err := d.port(iface)
	if err != nil {
		return nil, err
	}
	return p.mac, nil
}

// Close implements Device. Readers notice shutdown within one poll timeout.
func (d *AFPacketDevice) Close() error {
	d.closeOnce.Do(func() {
		close(d.done)
		d.wg.Wait()
		d.closePorts()
	})
	return nil
}

func (d *AFPacketDevice) closePorts() {
	for _, p := range d.ports {
		p.tpacket.Close()
	}
}
