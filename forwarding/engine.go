// Package forwarding implements the router core's single entry point,
// onPacket, dispatching ingress Ethernet frames to the ARP or IPv4 handler
// and synthesizing egress frames.
package forwarding

import (
	"context"
	"log/slog"
	"time"

	"github.com/cngai/router/arp"
	"github.com/cngai/router/ethernet"
	"github.com/cngai/router/iface"
	"github.com/cngai/router/internal"
	"github.com/cngai/router/ipv4"
	"github.com/cngai/router/metrics"
	"github.com/cngai/router/routing"
	"github.com/cngai/router/wire"
)

// Sender is the host-provided egress path: emit frame on the named
// interface. The core never calls Sender while holding the ARP store's
// lock.
type Sender interface {
	SendPacket(frame []byte, outIface string) error
}

// SenderFunc adapts a function to a Sender.
type SenderFunc func(frame []byte, outIface string) error

func (f SenderFunc) SendPacket(frame []byte, outIface string) error { return f(frame, outIface) }

// Engine is the forwarding plane's entry point. The zero value is not
// usable; construct with [New].
type Engine struct {
	ifaces *iface.Registry
	routes *routing.Table
	arpTbl *arp.Store
	send   Sender
	logger
}

// New returns an Engine wired to the given collaborators. log may be nil.
func New(ifaces *iface.Registry, routes *routing.Table, arpTbl *arp.Store, send Sender, log *slog.Logger) *Engine {
	return &Engine{ifaces: ifaces, routes: routes, arpTbl: arpTbl, send: send, logger: logger{log: log}}
}

// dropReason labels a packet drop for the "reason" metric label and debug
// log; it is never returned to the caller as an error, since the core never
// surfaces data-plane drops as failures (see the error handling design).
type dropReason string

const (
	reasonUnknownIface  dropReason = "unknown_interface"
	reasonBadEtherType  dropReason = "bad_ethertype"
	reasonNotForUs      dropReason = "not_for_us"
	reasonShortARP      dropReason = "malformed_arp"
	reasonForeignARPTip dropReason = "arp_foreign_target"
	reasonBadARPOp      dropReason = "arp_bad_operation"
	reasonShortIPv4     dropReason = "short_ipv4"
	reasonBadIPv4       dropReason = "malformed_ipv4"
	reasonChecksumBad   dropReason = "checksum_mismatch"
	reasonDestinedToUs  dropReason = "destined_to_router"
	reasonTTLExpired    dropReason = "ttl_expired"
	reasonRouteNotFound dropReason = "route_not_found"
	reasonSendFailed    dropReason = "send_failed"
)

func (e *Engine) drop(reason dropReason, attrs ...slog.Attr) {
	metrics.PacketsDropped.WithLabelValues(string(reason)).Inc()
	attrs = append(attrs, slog.String("reason", string(reason)))
	e.debug("forwarding: drop", attrs...)
}

// OnPacket is the router's single ingress entry point, called by the host
// for every frame received on inIface.
func (e *Engine) OnPacket(frame []byte, inIface string) {
	in, ok := e.ifaces.FindByName(inIface)
	if !ok {
		e.drop(reasonUnknownIface, slog.String("iface", inIface))
		return
	}

	efrm, err := ethernet.NewFrame(frame)
	if err != nil {
		e.drop(reasonBadEtherType, slog.String("err", err.Error()))
		return
	}
	class := efrm.Classify()
	if class == ethernet.ClassOther {
		e.drop(reasonBadEtherType, slog.String("ethertype", efrm.EtherType().String()))
		return
	}

	dst := *efrm.DestinationHardwareAddr()
	if dst != in.MAC && dst != ethernet.BroadcastAddr() {
		e.drop(reasonNotForUs)
		return
	}

	switch class {
	case ethernet.ClassARP:
		e.handleARP(efrm, in)
	case ethernet.ClassIPv4:
		e.handleIPv4(efrm, in)
	}
}

func (e *Engine) emit(frame []byte, outIface string) {
	if err := e.send.SendPacket(frame, outIface); err != nil {
		e.warn("forwarding: send failed", slog.String("iface", outIface), slog.String("err", err.Error()))
		metrics.PacketsDropped.WithLabelValues(string(reasonSendFailed)).Inc()
	}
}

func (e *Engine) handleARP(efrm ethernet.Frame, in iface.Interface) {
	afrm, err := arp.NewFrame(efrm.Payload())
	if err != nil {
		e.drop(reasonShortARP, slog.String("err", err.Error()))
		return
	}
	var v wire.Validator
	afrm.ValidateSize(&v)
	if v.HasError() {
		e.drop(reasonShortARP, slog.String("err", v.Err().Error()))
		return
	}

	switch afrm.Operation() {
	case arp.OpRequest:
		if *afrm.TargetProtoAddr() != in.IP {
			tip := *afrm.TargetProtoAddr()
			e.drop(reasonForeignARPTip, internal.SlogAddr4("tip", &tip))
			return
		}
		senderMAC, senderIP := *afrm.SenderHardwareAddr(), *afrm.SenderProtoAddr()
		afrm.SetOperation(arp.OpReply)
		*afrm.SenderHardwareAddr() = in.MAC
		*afrm.SenderProtoAddr() = in.IP
		*afrm.TargetHardwareAddr() = senderMAC
		*afrm.TargetProtoAddr() = senderIP
		*efrm.SourceHardwareAddr() = in.MAC
		*efrm.DestinationHardwareAddr() = senderMAC

		metrics.ArpRepliesSent.Inc()
		e.emit(efrm.RawData(), in.Name)

	case arp.OpReply:
		sha, sip := *afrm.SenderHardwareAddr(), *afrm.SenderProtoAddr()
		packets, hasRequest := e.arpTbl.InsertEntry(sha, sip)
		if hasRequest {
			for _, pkt := range packets {
				pfrm, err := ethernet.NewFrame(pkt.Frame)
				if err != nil {
					continue
				}
				egress, ok := e.ifaces.FindByName(pkt.EgressIface)
				if !ok {
					continue
				}
				*pfrm.SourceHardwareAddr() = egress.MAC
				*pfrm.DestinationHardwareAddr() = sha
				pfrm.SetEtherType(ethernet.TypeIPv4)
				e.emit(pfrm.RawData(), pkt.EgressIface)
				metrics.PacketsForwarded.WithLabelValues(pkt.EgressIface).Inc()
			}
			e.arpTbl.RemoveRequest(sip)
		}

	default:
		e.drop(reasonBadARPOp)
	}
}

const minIPv4FrameLen = ethernet.HeaderLen + ipv4.HeaderLen

func (e *Engine) handleIPv4(efrm ethernet.Frame, in iface.Interface) {
	if len(efrm.RawData()) < minIPv4FrameLen {
		e.drop(reasonShortIPv4)
		return
	}
	ifrm, err := ipv4.NewFrame(efrm.Payload())
	if err != nil {
		e.drop(reasonShortIPv4, slog.String("err", err.Error()))
		return
	}
	if ifrm.TotalLength() < ipv4.HeaderLen {
		e.drop(reasonShortIPv4)
		return
	}

	var v wire.Validator
	ifrm.ValidateSize(&v)
	if v.HasError() {
		e.drop(reasonBadIPv4, slog.String("err", v.Err().Error()))
		return
	}
	if !ifrm.VerifyChecksum() {
		e.drop(reasonChecksumBad)
		return
	}

	dst := *ifrm.DestinationAddr()
	if _, ok := e.ifaces.FindByIP(dst); ok {
		e.drop(reasonDestinedToUs)
		return
	}

	ttl := ifrm.TTL()
	if ttl <= 1 {
		e.drop(reasonTTLExpired)
		return
	}
	ifrm.SetTTL(ttl - 1)
	ifrm.SetChecksum(0)
	ifrm.SetChecksum(ifrm.ComputeChecksum())

	route, err := e.routes.Lookup(dst)
	if err != nil {
		e.drop(reasonRouteNotFound, internal.SlogAddr4("dst", &dst))
		return
	}

	nextHop := route.Gateway
	entry, ok := e.arpTbl.Lookup(nextHop)
	if ok {
		*efrm.SourceHardwareAddr() = mustIfaceMAC(e.ifaces, route.IfaceName)
		*efrm.DestinationHardwareAddr() = entry.MAC
		efrm.SetEtherType(ethernet.TypeIPv4)
		e.emit(efrm.RawData(), route.IfaceName)
		metrics.PacketsForwarded.WithLabelValues(route.IfaceName).Inc()
		return
	}

	firstQueued := e.arpTbl.QueueRequest(nextHop, efrm.RawData(), route.IfaceName)
	if firstQueued {
		e.emitARPBroadcast(nextHop, route.IfaceName, "inline")
	}
}

func mustIfaceMAC(reg *iface.Registry, name string) [ethernet.AddrLen]byte {
	i, ok := reg.FindByName(name)
	if !ok {
		return [ethernet.AddrLen]byte{}
	}
	return i.MAC
}

// emitARPBroadcast synthesizes and sends an ARP request broadcast for
// targetIP out egressIface, originating from that interface's own address.
// trigger labels the emission for metrics ("inline" or "tick").
func (e *Engine) emitARPBroadcast(targetIP [4]byte, egressIface, trigger string) {
	out, ok := e.ifaces.FindByName(egressIface)
	if !ok {
		e.drop(reasonUnknownIface, slog.String("iface", egressIface))
		return
	}
	buf := make([]byte, ethernet.HeaderLen+arp.FrameLen)
	efrm, _ := ethernet.NewFrame(buf)
	*efrm.SourceHardwareAddr() = out.MAC
	*efrm.DestinationHardwareAddr() = ethernet.BroadcastAddr()
	efrm.SetEtherType(ethernet.TypeARP)

	afrm, _ := arp.NewFrame(efrm.Payload())
	arp.BuildRequest(afrm, out.MAC, out.IP, targetIP)

	if internal.LogEnabled(e.log, internal.LevelTrace) {
		e.trace("forwarding: arp broadcast", internal.SlogAddr4("target", &targetIP), internal.SlogAddr6("src_mac", &out.MAC), slog.String("trigger", trigger))
	}
	metrics.ArpBroadcastsSent.WithLabelValues(trigger).Inc()
	e.emit(buf, egressIface)
}

// RunMaintenance drives the ARP store's 1 Hz maintenance tick until ctx is
// canceled. It is intended to run in its own goroutine, started once by the
// host at startup.
func (e *Engine) RunMaintenance(ctx context.Context) {
	ticker := time.NewTicker(arp.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *Engine) tick() {
	broadcasts, abandoned := e.arpTbl.Tick()
	for _, b := range broadcasts {
		e.emitARPBroadcast(b.TargetIP, b.Iface, "tick")
	}
	for _, pkts := range abandoned {
		metrics.ArpRequestsAbandoned.Inc()
		e.debug("forwarding: arp request abandoned", slog.Int("packets", len(pkts)))
	}
	entries, requests := e.arpTbl.Counts()
	metrics.ArpCacheEntries.Set(float64(entries))
	metrics.ArpPendingRequests.Set(float64(requests))
}

// Reset clears the ARP store and rebuilds the interface registry, per the
// host-driven topology-change contract. The host must ensure no concurrent
// OnPacket calls are in flight while Reset runs.
func (e *Engine) Reset(ifaces []iface.Interface) {
	e.arpTbl.Clear()
	e.ifaces.Reset(ifaces)
}

type logger struct {
	log *slog.Logger
}

func (l logger) error(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, slog.LevelError, msg, attrs...)
}
func (l logger) info(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, slog.LevelInfo, msg, attrs...)
}
func (l logger) warn(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, slog.LevelWarn, msg, attrs...)
}
func (l logger) debug(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, slog.LevelDebug, msg, attrs...)
}
func (l logger) trace(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, internal.LevelTrace, msg, attrs...)
}
