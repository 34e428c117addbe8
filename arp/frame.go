package arp

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"

	"github.com/cngai/router/ethernet"
	"github.com/cngai/router/wire"
)

// NewFrame returns a Frame with data set to buf. An error is returned if the
// buffer is shorter than [FrameLen]. This router only ever sees ARP over
// Ethernet for IPv4, so unlike a general-purpose ARP codec there is no
// variable-length hardware/protocol size negotiation to account for.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < FrameLen {
		return Frame{}, errShortARP
	}
	return Frame{buf: buf}, nil
}

// Frame encapsulates the raw data of an ARP packet carrying Ethernet
// hardware addresses and IPv4 protocol addresses. See [RFC 826].
//
// [RFC 826]: https://www.rfc-editor.org/rfc/rfc826
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice with which the frame was created.
func (afrm Frame) RawData() []byte { return afrm.buf }

// Hardware returns the hardware type and hardware address length fields.
func (afrm Frame) Hardware() (htype uint16, hlen uint8) {
	return binary.BigEndian.Uint16(afrm.buf[0:2]), afrm.buf[4]
}

// SetHardware sets the hardware type and length fields.
func (afrm Frame) SetHardware(htype uint16, hlen uint8) {
	binary.BigEndian.PutUint16(afrm.buf[0:2], htype)
	afrm.buf[4] = hlen
}

// Protocol returns the protocol type and protocol address length fields.
func (afrm Frame) Protocol() (ptype ethernet.Type, plen uint8) {
	return ethernet.Type(binary.BigEndian.Uint16(afrm.buf[2:4])), afrm.buf[5]
}

// SetProtocol sets the protocol type and length fields.
func (afrm Frame) SetProtocol(ptype ethernet.Type, plen uint8) {
	binary.BigEndian.PutUint16(afrm.buf[2:4], uint16(ptype))
	afrm.buf[5] = plen
}

// Operation returns the ARP opcode field.
func (afrm Frame) Operation() Operation {
	return Operation(binary.BigEndian.Uint16(afrm.buf[6:8]))
}

// SetOperation sets the ARP opcode field.
func (afrm Frame) SetOperation(op Operation) {
	binary.BigEndian.PutUint16(afrm.buf[6:8], uint16(op))
}

// SenderHardwareAddr returns a pointer to the sender hardware (MAC) address.
func (afrm Frame) SenderHardwareAddr() *[6]byte { return (*[6]byte)(afrm.buf[8:14]) }

// SenderProtoAddr returns a pointer to the sender protocol (IPv4) address.
func (afrm Frame) SenderProtoAddr() *[4]byte { return (*[4]byte)(afrm.buf[14:18]) }

// TargetHardwareAddr returns a pointer to the target hardware (MAC) address.
func (afrm Frame) TargetHardwareAddr() *[6]byte { return (*[6]byte)(afrm.buf[18:24]) }

// TargetProtoAddr returns a pointer to the target protocol (IPv4) address.
func (afrm Frame) TargetProtoAddr() *[4]byte { return (*[4]byte)(afrm.buf[24:28]) }

// ClearHeader zeros out the fixed (non-address) header fields.
func (afrm Frame) ClearHeader() {
	for i := range afrm.buf[:HeaderLen] {
		afrm.buf[i] = 0
	}
}

// ValidateSize checks the frame buffer is at least [FrameLen] bytes, and
// that the hardware/protocol type and length fields match the only
// combination this router understands (Ethernet/IPv4).
func (afrm Frame) ValidateSize(v *wire.Validator) {
	if len(afrm.buf) < FrameLen {
		v.AddError(errShortARP)
		return
	}
	htype, hlen := afrm.Hardware()
	if htype != HTypeEthernet || hlen != ethernet.AddrLen {
		v.AddError(fmt.Errorf("arp: unsupported hardware type/length %d/%d", htype, hlen))
	}
	ptype, plen := afrm.Protocol()
	if ptype != ethernet.TypeIPv4 || plen != 4 {
		v.AddError(fmt.Errorf("arp: unsupported protocol type/length %s/%d", ptype, plen))
	}
}

func (afrm Frame) String() string {
	sh, sp := afrm.SenderHardwareAddr(), afrm.SenderProtoAddr()
	th, tp := afrm.TargetHardwareAddr(), afrm.TargetProtoAddr()
	return fmt.Sprintf("ARP %s SENDER=(%s,%s) TARGET=(%s,%s)",
		afrm.Operation(), net.HardwareAddr(sh[:]), netip.AddrFrom4(*sp),
		net.HardwareAddr(th[:]), netip.AddrFrom4(*tp))
}
