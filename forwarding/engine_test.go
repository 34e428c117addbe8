package forwarding

import (
	"testing"

	"github.com/cngai/router/arp"
	"github.com/cngai/router/ethernet"
	"github.com/cngai/router/iface"
	"github.com/cngai/router/ipv4"
	"github.com/cngai/router/routing"
)

type recordedSend struct {
	frame []byte
	iface string
}

type fakeSender struct {
	sent []recordedSend
}

func (f *fakeSender) SendPacket(frame []byte, outIface string) error {
	cp := append([]byte(nil), frame...)
	f.sent = append(f.sent, recordedSend{frame: cp, iface: outIface})
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *fakeSender) {
	t.Helper()
	var ifaces iface.Registry
	ifaces.Reset([]iface.Interface{
		{Name: "eth0", MAC: mac("aa:00:00:00:00:01"), IP: [4]byte{10, 0, 0, 1}},
	})
	var routes routing.Table
	routes.Add(routing.Entry{
		Dest: [4]byte{192, 168, 1, 0}, MaskLen: 24,
		Gateway: [4]byte{10, 0, 0, 2}, IfaceName: "eth0",
	})
	store := arp.NewStore(nil)
	send := &fakeSender{}
	eng := New(&ifaces, &routes, store, send, nil)
	return eng, send
}

func mac(s string) [ethernet.AddrLen]byte {
	var m [ethernet.AddrLen]byte
	var hi, lo int
	j := 0
	for i := 0; i < len(s) && j < 6; i += 3 {
		hi = hexVal(s[i])
		lo = hexVal(s[i+1])
		m[j] = byte(hi<<4 | lo)
		j++
	}
	return m
}

func hexVal(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10
	default:
		return 0
	}
}

func buildARPRequest(dstMAC, srcMAC [ethernet.AddrLen]byte, senderMAC [ethernet.AddrLen]byte, senderIP, targetIP [4]byte) []byte {
	buf := make([]byte, ethernet.HeaderLen+arp.FrameLen)
	efrm, _ := ethernet.NewFrame(buf)
	*efrm.DestinationHardwareAddr() = dstMAC
	*efrm.SourceHardwareAddr() = srcMAC
	efrm.SetEtherType(ethernet.TypeARP)
	afrm, _ := arp.NewFrame(efrm.Payload())
	afrm.ClearHeader()
	afrm.SetHardware(arp.HTypeEthernet, ethernet.AddrLen)
	afrm.SetProtocol(ethernet.TypeIPv4, 4)
	afrm.SetOperation(arp.OpRequest)
	*afrm.SenderHardwareAddr() = senderMAC
	*afrm.SenderProtoAddr() = senderIP
	*afrm.TargetHardwareAddr() = [ethernet.AddrLen]byte{}
	*afrm.TargetProtoAddr() = targetIP
	return buf
}

func buildARPReply(dstMAC, srcMAC, senderMAC [ethernet.AddrLen]byte, senderIP, targetIP [4]byte, targetMAC [ethernet.AddrLen]byte) []byte {
	buf := make([]byte, ethernet.HeaderLen+arp.FrameLen)
	efrm, _ := ethernet.NewFrame(buf)
	*efrm.DestinationHardwareAddr() = dstMAC
	*efrm.SourceHardwareAddr() = srcMAC
	efrm.SetEtherType(ethernet.TypeARP)
	afrm, _ := arp.NewFrame(efrm.Payload())
	afrm.ClearHeader()
	afrm.SetHardware(arp.HTypeEthernet, ethernet.AddrLen)
	afrm.SetProtocol(ethernet.TypeIPv4, 4)
	afrm.SetOperation(arp.OpReply)
	*afrm.SenderHardwareAddr() = senderMAC
	*afrm.SenderProtoAddr() = senderIP
	*afrm.TargetHardwareAddr() = targetMAC
	*afrm.TargetProtoAddr() = targetIP
	return buf
}

func buildIPv4(dstMAC, srcMAC [ethernet.AddrLen]byte, src, dst [4]byte, ttl uint8) []byte {
	buf := make([]byte, ethernet.HeaderLen+ipv4.HeaderLen)
	efrm, _ := ethernet.NewFrame(buf)
	*efrm.DestinationHardwareAddr() = dstMAC
	*efrm.SourceHardwareAddr() = srcMAC
	efrm.SetEtherType(ethernet.TypeIPv4)
	ifrm, _ := ipv4.NewFrame(efrm.Payload())
	ifrm.ClearHeader()
	ifrm.SetVersionAndIHL(4, 5)
	ifrm.SetTotalLength(ipv4.HeaderLen)
	ifrm.SetTTL(ttl)
	ifrm.SetProtocol(ipv4.ProtoUDP)
	*ifrm.SourceAddr() = src
	*ifrm.DestinationAddr() = dst
	ifrm.SetChecksum(0)
	ifrm.SetChecksum(ifrm.ComputeChecksum())
	return buf
}

// TestS1ARPRequestForRouter is the request-for-router-IP scenario.
func TestS1ARPRequestForRouter(t *testing.T) {
	eng, send := newTestEngine(t)
	bb := mac("bb:00:00:00:00:02")
	frame := buildARPRequest(ethernet.BroadcastAddr(), bb, bb, [4]byte{10, 0, 0, 2}, [4]byte{10, 0, 0, 1})

	eng.OnPacket(frame, "eth0")

	if len(send.sent) != 1 {
		t.Fatalf("expected one egress frame, got %d", len(send.sent))
	}
	reply := send.sent[0]
	if reply.iface != "eth0" {
		t.Fatalf("expected egress on eth0, got %s", reply.iface)
	}
	efrm, _ := ethernet.NewFrame(reply.frame)
	if *efrm.DestinationHardwareAddr() != bb {
		t.Errorf("reply dst mac = %x, want %x", *efrm.DestinationHardwareAddr(), bb)
	}
	if *efrm.SourceHardwareAddr() != mac("aa:00:00:00:00:01") {
		t.Errorf("reply src mac mismatch")
	}
	afrm, _ := arp.NewFrame(efrm.Payload())
	if afrm.Operation() != arp.OpReply {
		t.Errorf("expected reply op, got %s", afrm.Operation())
	}
	if *afrm.SenderProtoAddr() != ([4]byte{10, 0, 0, 1}) {
		t.Errorf("reply sip mismatch")
	}
	if *afrm.TargetProtoAddr() != ([4]byte{10, 0, 0, 2}) {
		t.Errorf("reply tip mismatch")
	}
}

// TestS2ARPRequestForForeignIP covers the no-match-no-reply scenario.
func TestS2ARPRequestForForeignIP(t *testing.T) {
	eng, send := newTestEngine(t)
	bb := mac("bb:00:00:00:00:02")
	frame := buildARPRequest(ethernet.BroadcastAddr(), bb, bb, [4]byte{10, 0, 0, 2}, [4]byte{10, 0, 0, 9})

	eng.OnPacket(frame, "eth0")

	if len(send.sent) != 0 {
		t.Fatalf("expected no egress, got %d", len(send.sent))
	}
}

// TestS3ForwardCacheMiss covers queueing a frame behind an ARP resolution
// and emitting one inline broadcast.
func TestS3ForwardCacheMiss(t *testing.T) {
	eng, send := newTestEngine(t)
	aa := mac("aa:00:00:00:00:01")
	frame := buildIPv4(aa, mac("dd:00:00:00:00:04"), [4]byte{10, 0, 0, 9}, [4]byte{192, 168, 1, 5}, 64)

	eng.OnPacket(frame, "eth0")

	if len(send.sent) != 1 {
		t.Fatalf("expected exactly one egress (the ARP broadcast), got %d", len(send.sent))
	}
	efrm, _ := ethernet.NewFrame(send.sent[0].frame)
	if efrm.EtherType() != ethernet.TypeARP {
		t.Fatalf("expected ARP broadcast, got %s", efrm.EtherType())
	}
	afrm, _ := arp.NewFrame(efrm.Payload())
	if *afrm.TargetProtoAddr() != ([4]byte{10, 0, 0, 2}) {
		t.Errorf("broadcast tip = %v, want gateway", *afrm.TargetProtoAddr())
	}
}

// TestS4ARPReplyDrainsQueue continues S3: a reply resolves the gateway and
// the buffered IPv4 frame is emitted with decremented TTL and valid
// checksum.
func TestS4ARPReplyDrainsQueue(t *testing.T) {
	eng, send := newTestEngine(t)
	aa := mac("aa:00:00:00:00:01")
	ipFrame := buildIPv4(aa, mac("dd:00:00:00:00:04"), [4]byte{10, 0, 0, 9}, [4]byte{192, 168, 1, 5}, 64)
	eng.OnPacket(ipFrame, "eth0")
	send.sent = nil

	cc := mac("cc:00:00:00:00:03")
	reply := buildARPReply(aa, cc, cc, [4]byte{10, 0, 0, 2}, [4]byte{10, 0, 0, 1}, aa)
	eng.OnPacket(reply, "eth0")

	if len(send.sent) != 1 {
		t.Fatalf("expected one drained IPv4 egress, got %d", len(send.sent))
	}
	efrm, _ := ethernet.NewFrame(send.sent[0].frame)
	if *efrm.SourceHardwareAddr() != aa || *efrm.DestinationHardwareAddr() != cc {
		t.Errorf("drained frame mac rewrite wrong: src=%x dst=%x", *efrm.SourceHardwareAddr(), *efrm.DestinationHardwareAddr())
	}
	ifrm, _ := ipv4.NewFrame(efrm.Payload())
	if ifrm.TTL() != 63 {
		t.Errorf("ttl = %d, want 63", ifrm.TTL())
	}
	if !ifrm.VerifyChecksum() {
		t.Error("drained frame checksum does not verify")
	}
}

// TestS5TTLExpiry covers dropping a packet whose TTL would reach zero.
func TestS5TTLExpiry(t *testing.T) {
	eng, send := newTestEngine(t)
	frame := buildIPv4(mac("aa:00:00:00:00:01"), mac("dd:00:00:00:00:04"), [4]byte{10, 0, 0, 9}, [4]byte{192, 168, 1, 5}, 1)

	eng.OnPacket(frame, "eth0")

	if len(send.sent) != 0 {
		t.Fatalf("expected no egress on TTL expiry, got %d", len(send.sent))
	}
}

// TestS6RetransmitCap covers the end-to-end retransmission cap: counting
// the inline broadcast sent on cache miss plus every tick-driven
// retransmission, a request never produces more than MaxSentTime
// broadcasts in total and is gone by the MaxSentTime-th tick.
func TestS6RetransmitCap(t *testing.T) {
	eng, send := newTestEngine(t)
	frame := buildIPv4(mac("aa:00:00:00:00:01"), mac("dd:00:00:00:00:04"), [4]byte{10, 0, 0, 9}, [4]byte{192, 168, 1, 5}, 64)
	eng.OnPacket(frame, "eth0")
	if len(send.sent) != 1 {
		t.Fatalf("expected one inline broadcast, got %d", len(send.sent))
	}
	totalBroadcasts := len(send.sent)

	for i := 0; i < arp.MaxSentTime; i++ {
		send.sent = nil
		eng.tick()
		totalBroadcasts += len(send.sent)
	}
	if totalBroadcasts != arp.MaxSentTime {
		t.Fatalf("expected %d total broadcasts (inline + ticks), got %d", arp.MaxSentTime, totalBroadcasts)
	}
	if _, requests := eng.arpTbl.Counts(); requests != 0 {
		t.Fatalf("expected request to be gone after cap, got %d pending", requests)
	}

	send.sent = nil
	eng.tick()
	if len(send.sent) != 0 {
		t.Fatalf("expected no broadcast once request is already gone, got %d", len(send.sent))
	}
}

func TestUnknownInterfaceDropped(t *testing.T) {
	eng, send := newTestEngine(t)
	frame := buildARPRequest(ethernet.BroadcastAddr(), mac("bb:00:00:00:00:02"), mac("bb:00:00:00:00:02"), [4]byte{10, 0, 0, 2}, [4]byte{10, 0, 0, 1})

	eng.OnPacket(frame, "eth9")

	if len(send.sent) != 0 {
		t.Fatalf("expected drop, got %d egress frames", len(send.sent))
	}
}

func TestNotForUsDropped(t *testing.T) {
	eng, send := newTestEngine(t)
	foreign := mac("ee:00:00:00:00:05")
	frame := buildIPv4(foreign, mac("dd:00:00:00:00:04"), [4]byte{10, 0, 0, 9}, [4]byte{192, 168, 1, 5}, 64)

	eng.OnPacket(frame, "eth0")

	if len(send.sent) != 0 {
		t.Fatalf("expected drop for frame not addressed to us, got %d", len(send.sent))
	}
}
