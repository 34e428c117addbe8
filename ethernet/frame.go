package ethernet

import (
	"encoding/binary"
	"errors"

	"github.com/cngai/router/wire"
)

var errShort = errors.New("ethernet: short buffer")

// NewFrame returns a Frame with data set to buf. An error is returned if
// the buffer size is smaller than [HeaderLen].
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < HeaderLen {
		return Frame{}, errShort
	}
	return Frame{buf: buf}, nil
}

// Frame encapsulates the raw data of an Ethernet II frame (no preamble, no
// 802.1Q tag) and provides methods for manipulating and retrieving fields.
// See [IEEE 802.3].
//
// [IEEE 802.3]: https://standards.ieee.org/ieee/802.3/7071/
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice with which the frame was created.
func (efrm Frame) RawData() []byte { return efrm.buf }

// Payload returns the data following the 14-byte header.
func (efrm Frame) Payload() []byte { return efrm.buf[HeaderLen:] }

// DestinationHardwareAddr returns a pointer to the destination MAC address.
func (efrm Frame) DestinationHardwareAddr() *[AddrLen]byte {
	return (*[AddrLen]byte)(efrm.buf[0:6])
}

// SourceHardwareAddr returns a pointer to the source MAC address.
func (efrm Frame) SourceHardwareAddr() *[AddrLen]byte {
	return (*[AddrLen]byte)(efrm.buf[6:12])
}

// IsBroadcast reports whether the destination address is ff:ff:ff:ff:ff:ff.
func (efrm Frame) IsBroadcast() bool {
	return *efrm.DestinationHardwareAddr() == BroadcastAddr()
}

// EtherType returns the EtherType field of the frame.
func (efrm Frame) EtherType() Type {
	return Type(binary.BigEndian.Uint16(efrm.buf[12:14]))
}

// SetEtherType sets the EtherType field of the frame.
func (efrm Frame) SetEtherType(t Type) {
	binary.BigEndian.PutUint16(efrm.buf[12:14], uint16(t))
}

// Classify returns the coarse dispatch class of the frame's EtherType: ARP,
// IPv4, or Other. The forwarding engine drops anything classified Other.
func (efrm Frame) Classify() Class {
	switch efrm.EtherType() {
	case TypeARP:
		return ClassARP
	case TypeIPv4:
		return ClassIPv4
	default:
		return ClassOther
	}
}

// ClearHeader zeros out the 14-byte header.
func (efrm Frame) ClearHeader() {
	for i := range efrm.buf[:HeaderLen] {
		efrm.buf[i] = 0
	}
}

// ValidateSize checks the frame buffer is at least as long as the fixed
// header. Ethernet frames carry no internal length field of their own (the
// payload length, if any, comes from the encapsulated protocol), so this is
// the full extent of Ethernet-level size validation.
func (efrm Frame) ValidateSize(v *wire.Validator) {
	if len(efrm.buf) < HeaderLen {
		v.AddError(errShort)
	}
}

func (efrm Frame) String() string {
	return "ETH " + efrm.EtherType().String() +
		" SRC=" + addrString(*efrm.SourceHardwareAddr()) +
		" DST=" + addrString(*efrm.DestinationHardwareAddr())
}

func addrString(a [AddrLen]byte) string {
	return string(AppendAddr(nil, a))
}
