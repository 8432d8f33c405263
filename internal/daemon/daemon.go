// Package daemon implements the router process lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"firestige.xyz/router/internal/config"
	"firestige.xyz/router/internal/core"
	"firestige.xyz/router/internal/link"
	"firestige.xyz/router/internal/log"
	"firestige.xyz/router/internal/metrics"
	"firestige.xyz/router/internal/route"
	"firestige.xyz/router/internal/router"
)

// DeviceOpener opens the frame I/O for the configured interfaces.
type DeviceOpener func(cfg *config.Config) (link.Device, error)

// OpenAFPacket is the production DeviceOpener.
func OpenAFPacket(cfg *config.Config) (link.Device, error) {
	return link.OpenAFPacket(link.Options{
		Interfaces:   cfg.Interfaces,
		SnapLen:      cfg.Capture.SnapLen,
		BufferSizeMB: cfg.Capture.BufferSizeMB,
		PollTimeout:  cfg.Capture.PollTimeout(),
		BPFFilter:    cfg.Capture.BPFFilter,
	})
}

// Daemon manages the router process lifecycle.
type Daemon struct {
	config     *config.Config
	pidFile    string
	openDevice DeviceOpener

	// Core components
	table         *route.Table
	dev           link.Device
	engine        *router.Engine
	metricsServer *metrics.Server // nil if metrics disabled

	// Lifecycle management
	ctx     context.Context
	cancel  context.CancelFunc
	sigChan chan os.Signal
}

// New creates a Daemon for cfg. An empty pidFile disables the PID file.
func New(cfg *config.Config, pidFile string, openDevice DeviceOpener) *Daemon {
	if openDevice == nil {
		openDevice = OpenAFPacket
	}
	d := &Daemon{
		config:     cfg,
		pidFile:    pidFile,
		openDevice: openDevice,
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d
}

// Start initializes logging, loads the routing table, opens the interfaces
// and starts the metrics server. Frames are not handled until Run.
func (d *Daemon) Start() error {
	// 1. Initialize logging system
	if err := log.Init(&d.config.Log); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	log.GetLogger().WithFields(map[string]interface{}{
		"routing_table": d.config.RoutingTable,
		"interfaces":    d.config.Interfaces,
	}).Info("starting router")

	// 2. Load routing table
	table, err := route.Load(d.config.RoutingTable)
	if err != nil {
		return fmt.Errorf("failed to load routing table: %w", err)
	}
	if err := table.CheckInterfaces(len(d.config.Interfaces)); err != nil {
		return err
	}
	d.table = table
	log.GetLogger().WithField("routes", table.Len()).Info("routing table loaded")

	// 3. Write PID file
	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	// 4. Open interfaces
	dev, err := d.openDevice(d.config)
	if err != nil {
		d.removePIDFile()
		return fmt.Errorf("failed to open interfaces: %w", err)
	}
	if d.config.Capture.PcapOut != "" {
		rec, err := link.NewRecorder(dev, d.config.Capture.PcapOut, d.config.Capture.SnapLen)
		if err != nil {
			dev.Close()
			d.removePIDFile()
			return err
		}
		log.GetLogger().WithField("path", d.config.Capture.PcapOut).Info("recording traffic")
		dev = rec
	}
	d.dev = dev

	// 5. Start metrics server
	if err := d.startMetrics(); err != nil {
		d.dev.Close()
		d.removePIDFile()
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	d.engine = router.NewEngine(d.dev, d.table)
	return nil
}

// Run handles frames until SIGTERM/SIGINT, Shutdown, or a fatal engine error.
// The daemon is stopped before Run returns.
func (d *Daemon) Run() error {
	d.sigChan = make(chan os.Signal, 1)
	signal.Notify(d.sigChan, syscall.SIGTERM, syscall.SIGINT)

	engineErr := make(chan error, 1)
	go func() {
		engineErr <- d.engine.Run(d.ctx)
	}()

	log.GetLogger().Info("router running, waiting for signals")

	var err error
	engineDone := false
	select {
	case sig := <-d.sigChan:
		log.GetLogger().WithField("signal", sig.String()).Info("received shutdown signal")
	case <-d.ctx.Done():
		log.GetLogger().Info("shutdown requested")
	case err = <-engineErr:
		engineDone = true
		if err != nil {
			log.GetLogger().WithError(err).Error("forwarding engine failed")
		}
	}

	d.cancel()
	if !engineDone {
		select {
		case err = <-engineErr:
		case <-time.After(5 * time.Second):
			log.GetLogger().Warn("forwarding engine did not stop in time")
		}
	}
	d.Stop()

	if errors.Is(err, core.ErrDeviceClosed) {
		err = nil
	}
	return err
}

// Shutdown asks a running daemon to stop.
func (d *Daemon) Shutdown() {
	d.cancel()
}

// Stop releases all components. It is safe to call more than once.
func (d *Daemon) Stop() {
	log.GetLogger().Info("initiating graceful shutdown")
	d.cancel()

	if d.sigChan != nil {
		signal.Stop(d.sigChan)
	}

	if d.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.metricsServer.Stop(shutdownCtx); err != nil {
			log.GetLogger().WithError(err).Error("error stopping metrics server")
		}
		d.metricsServer = nil
	}

	if d.dev != nil {
		if err := d.dev.Close(); err != nil {
			log.GetLogger().WithError(err).Error("error closing interfaces")
		}
		d.dev = nil
	}

	if err := d.removePIDFile(); err != nil {
		log.GetLogger().WithError(err).Error("error removing PID file")
	}

	log.GetLogger().Info("router stopped")
}

// Engine returns the forwarding engine, nil before Start.
func (d *Daemon) Engine() *router.Engine {
	return d.engine
}

// startMetrics starts the metrics HTTP server if enabled.
func (d *Daemon) startMetrics() error {
	if !d.config.Metrics.Enabled {
		log.GetLogger().Info("metrics server disabled")
		return nil
	}

	d.metricsServer = metrics.NewServer(d.config.Metrics.Listen, d.config.Metrics.Path)
	if err := d.metricsServer.Start(d.ctx); err != nil {
		d.metricsServer = nil
		return err
	}
	return nil
}

// writePIDFile writes the current process ID to the PID file.
func (d *Daemon) writePIDFile() error {
	if d.pidFile == "" {
		return nil
	}

	pid := os.Getpid()
	data := []byte(strconv.Itoa(pid) + "\n")

	if err := os.WriteFile(d.pidFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write PID file %s: %w", d.pidFile, err)
	}

	log.GetLogger().WithFields(map[string]interface{}{"path": d.pidFile, "pid": pid}).Debug("PID file written")
	return nil
}

// removePIDFile removes the PID file.
func (d *Daemon) removePIDFile() error {
	if d.pidFile == "" {
		return nil
	}

	if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file %s: %w", d.pidFile, err)
	}
	return nil
}
