// Package link provides the raw frame I/O the forwarding engine runs on.
package link

import (
	"context"
	"net"

	"firestige.xyz/router/internal/core"
)

// Device sends and receives raw Ethernet frames on a fixed, ordered set of
// interfaces. Interfaces are addressed by their position in that set.
type Device interface {
	// Receive blocks until a frame arrives on any interface.
	Receive(ctx context.Context) (core.Frame, error)
	// Send transmits data on interface iface.
	Send(iface int, data []byte) error
	// InterfaceIP returns the configured IPv4 address in dotted-decimal form.
	InterfaceIP(iface int) (string, error)
	// InterfaceMAC returns the hardware address of the interface.
	InterfaceMAC(iface int) (net.HardwareAddr, error)
	// Close releases all interfaces. Pending and later Receive calls fail
	// with core.ErrDeviceClosed.
	Close() error
}
