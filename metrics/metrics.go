// Package metrics defines the Prometheus metrics exported by the router
// core. All metrics use the "router_" prefix.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "router"

var (
	// PacketsForwarded counts IPv4 frames successfully forwarded, by
	// egress interface.
	PacketsForwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_forwarded_total",
		Help:      "Total IPv4 frames forwarded, by egress interface.",
	}, []string{"iface"})

	// PacketsDropped counts dropped frames by the error kind from the
	// core's error handling design.
	PacketsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_dropped_total",
		Help:      "Total frames dropped, by reason.",
	}, []string{"reason"})

	// ArpRepliesSent counts ARP replies emitted in answer to requests for
	// the router's own addresses.
	ArpRepliesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "arp_replies_sent_total",
		Help:      "Total ARP replies sent for the router's own addresses.",
	})

	// ArpBroadcastsSent counts ARP request broadcasts emitted, both inline
	// on cache miss and from the maintenance tick.
	ArpBroadcastsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "arp_broadcasts_sent_total",
		Help:      "Total ARP request broadcasts sent, by trigger (inline, tick).",
	}, []string{"trigger"})

	// ArpRequestsAbandoned counts ArpRequests dropped after reaching the
	// retransmit cap.
	ArpRequestsAbandoned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "arp_requests_abandoned_total",
		Help:      "Total ARP requests abandoned after reaching the retransmit cap.",
	})

	// ArpCacheEntries is a gauge of currently valid ARP cache entries.
	ArpCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "arp_cache_entries",
		Help:      "Current number of valid ARP cache entries.",
	})

	// ArpPendingRequests is a gauge of currently outstanding ARP requests.
	ArpPendingRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "arp_pending_requests",
		Help:      "Current number of outstanding ARP resolution requests.",
	})
)
