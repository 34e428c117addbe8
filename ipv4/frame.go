package ipv4

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"

	"github.com/cngai/router/wire"
)

var (
	errShort       = errors.New("ipv4: short buffer")
	errBadTotalLen = errors.New("ipv4: total length exceeds buffer")
	errBadIHL      = errors.New("ipv4: header length below minimum")
	errBadVersion  = errors.New("ipv4: not version 4")
	errOptions     = errors.New("ipv4: options unsupported")
)

// NewFrame returns a Frame with data set to buf. An error is returned if
// the buffer is shorter than [HeaderLen]. Callers should still call
// [Frame.ValidateSize] before trusting header-derived lengths.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < HeaderLen {
		return Frame{}, errShort
	}
	return Frame{buf: buf}, nil
}

// Frame encapsulates the raw data of an IPv4 packet and provides methods for
// manipulating, validating, and retrieving header fields. See [RFC 791].
// Options-bearing headers (IHL > 5) are rejected at validation time; this
// router does not forward them.
//
// [RFC 791]: https://www.rfc-editor.org/rfc/rfc791
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice with which the frame was created.
func (ifrm Frame) RawData() []byte { return ifrm.buf }

// VersionAndIHL returns the version and Internet Header Length fields.
func (ifrm Frame) VersionAndIHL() (version, ihl uint8) {
	v := ifrm.buf[0]
	return v >> 4, v & 0xf
}

// SetVersionAndIHL sets the version and IHL fields.
func (ifrm Frame) SetVersionAndIHL(version, ihl uint8) {
	ifrm.buf[0] = version<<4 | ihl&0xf
}

// HeaderLength returns the header length in bytes, as derived from IHL.
func (ifrm Frame) HeaderLength() int {
	_, ihl := ifrm.VersionAndIHL()
	return int(ihl) * 4
}

// TotalLength returns the entire datagram size in bytes, header plus data.
func (ifrm Frame) TotalLength() uint16 { return binary.BigEndian.Uint16(ifrm.buf[2:4]) }

// SetTotalLength sets the TotalLength field.
func (ifrm Frame) SetTotalLength(tl uint16) { binary.BigEndian.PutUint16(ifrm.buf[2:4], tl) }

// TTL returns the time-to-live field.
func (ifrm Frame) TTL() uint8 { return ifrm.buf[8] }

// SetTTL sets the TTL field.
func (ifrm Frame) SetTTL(ttl uint8) { ifrm.buf[8] = ttl }

// Protocol returns the encapsulated transport protocol field.
func (ifrm Frame) Protocol() Proto { return Proto(ifrm.buf[9]) }

// SetProtocol sets the protocol field.
func (ifrm Frame) SetProtocol(p Proto) { ifrm.buf[9] = uint8(p) }

// Checksum returns the header checksum field as stored on the wire.
func (ifrm Frame) Checksum() uint16 { return binary.BigEndian.Uint16(ifrm.buf[10:12]) }

// SetChecksum sets the header checksum field.
func (ifrm Frame) SetChecksum(cs uint16) { binary.BigEndian.PutUint16(ifrm.buf[10:12], cs) }

// SourceAddr returns a pointer to the source IPv4 address.
func (ifrm Frame) SourceAddr() *[4]byte { return (*[4]byte)(ifrm.buf[12:16]) }

// DestinationAddr returns a pointer to the destination IPv4 address.
func (ifrm Frame) DestinationAddr() *[4]byte { return (*[4]byte)(ifrm.buf[16:20]) }

// Payload returns the datagram's payload, i.e. everything past the header.
// Call [Frame.ValidateSize] first to avoid slicing past the buffer.
func (ifrm Frame) Payload() []byte {
	return ifrm.buf[ifrm.HeaderLength():ifrm.TotalLength()]
}

// ClearHeader zeros out the fixed 20-byte header.
func (ifrm Frame) ClearHeader() {
	for i := range ifrm.buf[:HeaderLen] {
		ifrm.buf[i] = 0
	}
}

// ComputeChecksum computes the RFC 1071 one's-complement checksum of the
// 20-byte header with the checksum field treated as zero, regardless of
// its current on-wire value.
func (ifrm Frame) ComputeChecksum() uint16 {
	var c wire.Checksum791
	c.Write(ifrm.buf[0:10])
	c.AddUint16(0) // checksum field, zeroed
	c.Write(ifrm.buf[12:HeaderLen])
	return c.Sum16()
}

// VerifyChecksum reports whether the header's stored checksum is correct.
// It sums the header as-is (checksum field included, not zeroed); per RFC
// 1071 that sum's one's complement is zero exactly when the stored value is
// the correct checksum of the rest of the header.
func (ifrm Frame) VerifyChecksum() bool {
	var c wire.Checksum791
	c.Write(ifrm.buf[0:HeaderLen])
	return c.Sum16() == 0
}

// ValidateSize checks that the buffer is at least [HeaderLen] bytes, that
// TotalLength does not exceed the buffer, and that the header carries no
// unsupported IP options (IHL must be exactly 5).
func (ifrm Frame) ValidateSize(v *wire.Validator) {
	if len(ifrm.buf) < HeaderLen {
		v.AddError(errShort)
		return
	}
	version, ihl := ifrm.VersionAndIHL()
	if version != Version {
		v.AddError(errBadVersion)
	}
	if ihl != 5 {
		v.AddError(errOptions)
	}
	tl := ifrm.TotalLength()
	if tl < HeaderLen {
		v.AddError(errBadIHL)
	}
	if int(tl) > len(ifrm.buf) {
		v.AddError(errBadTotalLen)
	}
}

func (ifrm Frame) String() string {
	src := netip.AddrFrom4(*ifrm.SourceAddr())
	dst := netip.AddrFrom4(*ifrm.DestinationAddr())
	return fmt.Sprintf("IP SRC=%s DST=%s TTL=%d PROTO=%d LEN=%d",
		src, dst, ifrm.TTL(), ifrm.Protocol(), ifrm.TotalLength())
}
