// Package core defines core data structures with zero external dependencies.
package core

import "time"

// MaxFrameLen bounds a single received frame.
const MaxFrameLen = 1600

// Frame is a raw link-layer frame together with the interface it arrived on
// (or must leave through).
type Frame struct {
	Data      []byte    // Raw frame data, Ethernet header first
	Interface int       // Interface index, position in the configured interface list
	Timestamp time.Time // Receive timestamp, zero for frames built locally
}

// Len returns the frame length in bytes.
func (f Frame) Len() int {
	return len(f.Data)
}

// Clone returns a frame owning a private copy of the data.
func (f Frame) Clone() Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return Frame{Data: data, Interface: f.Interface, Timestamp: f.Timestamp}
}
