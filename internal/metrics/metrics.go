// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesReceivedTotal counts frames received per interface and EtherType
	FramesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_frames_received_total",
			Help: "Total number of frames received",
		},
		[]string{"iface", "ethertype"},
	)

	// FramesSentTotal counts frames transmitted per interface and kind
	FramesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_frames_sent_total",
			Help: "Total number of frames sent",
		},
		[]string{"iface", "kind"},
	)

	// FramesDroppedTotal counts frames dropped per reason
	FramesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_frames_dropped_total",
			Help: "Total number of frames dropped",
		},
		[]string{"reason"},
	)

	// ICMPGeneratedTotal counts ICMP messages generated by the router
	ICMPGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_icmp_generated_total",
			Help: "Total number of ICMP messages generated",
		},
		[]string{"type"},
	)

	// ARPRequestsTotal counts ARP requests sent for unresolved next hops
	ARPRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "router_arp_requests_total",
			Help: "Total number of ARP requests sent",
		},
	)

	// PendingQueueDepth tracks packets waiting for address resolution
	PendingQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "router_pending_queue_depth",
			Help: "Number of packets waiting for ARP resolution",
		},
	)

	// ARPCacheEntries tracks the number of ARP cache entries
	ARPCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "router_arp_cache_entries",
			Help: "Number of entries in the ARP cache",
		},
	)

	// FrameHandleSeconds measures the time to run one frame to completion
	FrameHandleSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "router_frame_handle_seconds",
			Help:    "Latency of handling one frame in seconds",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20), // 1us to ~1s
		},
	)
)
