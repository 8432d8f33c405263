package link

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/router/internal/core"
	"firestige.xyz/router/internal/log"
)

// Recorder wraps a Device and writes every received and sent frame to a
// pcap file. Recording failures are logged and never fail the I/O itself.
type Recorder struct {
	Device

	mu   sync.Mutex
	file *os.File
	w    *pcapgo.Writer
}

// NewRecorder creates path and starts recording the traffic of dev.
func NewRecorder(dev Device, path string, snapLen int) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create pcap file: %w", err)
	}
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(uint32(snapLen), layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}
	return &Recorder{Device: dev, file: f, w: w}, nil
}

// Receive implements Device.
func (r *Recorder) Receive(ctx context.Context) (core.Frame, error) {
	f, err := r.Device.Receive(ctx)
	if err == nil {
		r.record(f.Timestamp, f.Data)
	}
	return f, err
}

// Send implements Device.
func (r *Recorder) Send(iface int, data []byte) error {
	if err := r.Device.Send(iface, data); err != nil {
		return err
	}
	r.record(time.Now(), data)
	return nil
}

// Close closes the wrapped device and then the pcap file.
func (r *Recorder) Close() error {
	err := r.Device.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	if cerr := r.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (r *Recorder) record(ts time.Time, data []byte) {
	if ts.IsZero() {
		ts = time.Now()
	}
	ci := gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(data), Length: len(data)}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.w.WritePacket(ci, data); err != nil {
		log.GetLogger().WithError(err).Warn("failed to record frame")
	}
}
