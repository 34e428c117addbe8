package ipv4

import (
	"math/rand"
	"testing"

	"github.com/cngai/router/wire"
)

func TestFrameFields(t *testing.T) {
	var buf [HeaderLen]byte
	ifrm, err := NewFrame(buf[:])
	if err != nil {
		t.Fatal(err)
	}
	ifrm.SetVersionAndIHL(4, 5)
	ifrm.SetTotalLength(20)
	ifrm.SetTTL(64)
	ifrm.SetProtocol(ProtoTCP)
	src := ifrm.SourceAddr()
	*src = [4]byte{10, 0, 0, 1}
	dst := ifrm.DestinationAddr()
	*dst = [4]byte{10, 0, 0, 2}

	if v, ihl := ifrm.VersionAndIHL(); v != 4 || ihl != 5 {
		t.Fatalf("got version=%d ihl=%d", v, ihl)
	}
	if ifrm.HeaderLength() != HeaderLen {
		t.Fatalf("got header length %d", ifrm.HeaderLength())
	}
	if ifrm.TTL() != 64 {
		t.Fatalf("got ttl %d", ifrm.TTL())
	}
	if ifrm.Protocol() != ProtoTCP {
		t.Fatalf("got protocol %d", ifrm.Protocol())
	}
}

// TestChecksumRoundTrip is the spec's checksum round-trip property: for any
// 20-byte header, VerifyChecksum is true iff the stored checksum equals
// ComputeChecksum (computed with the checksum field zeroed).
func TestChecksumRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		var buf [HeaderLen]byte
		rng.Read(buf[:])
		ifrm, err := NewFrame(buf[:])
		if err != nil {
			t.Fatal(err)
		}
		ifrm.SetChecksum(0)
		correct := ifrm.ComputeChecksum()

		ifrm.SetChecksum(correct)
		if !ifrm.VerifyChecksum() {
			t.Fatalf("iter %d: expected checksum to verify with correct value %#x", i, correct)
		}

		wrong := correct + 1
		ifrm.SetChecksum(wrong)
		if ifrm.VerifyChecksum() {
			t.Fatalf("iter %d: expected checksum to fail to verify with wrong value %#x", i, wrong)
		}
	}
}

// TestTTLDecrementMonotonicity checks the spec's property 6: a forwarded
// frame's TTL decrements by one and the resulting header checksum verifies.
func TestTTLDecrementMonotonicity(t *testing.T) {
	var buf [HeaderLen]byte
	ifrm, _ := NewFrame(buf[:])
	ifrm.SetVersionAndIHL(4, 5)
	ifrm.SetTotalLength(20)
	ifrm.SetTTL(64)
	ifrm.SetProtocol(ProtoTCP)
	*ifrm.SourceAddr() = [4]byte{192, 168, 1, 1}
	*ifrm.DestinationAddr() = [4]byte{192, 168, 1, 5}
	ifrm.SetChecksum(ifrm.ComputeChecksum())

	ttlIn := ifrm.TTL()
	ifrm.SetTTL(ttlIn - 1)
	ifrm.SetChecksum(0)
	ifrm.SetChecksum(ifrm.ComputeChecksum())

	if ifrm.TTL() != ttlIn-1 {
		t.Fatalf("want ttl %d, got %d", ttlIn-1, ifrm.TTL())
	}
	if !ifrm.VerifyChecksum() {
		t.Fatal("expected recomputed checksum to verify")
	}
}

func TestValidateSizeRejectsOptionsAndShortBuffers(t *testing.T) {
	var v wire.Validator
	var buf [HeaderLen]byte
	ifrm, _ := NewFrame(buf[:])
	ifrm.SetVersionAndIHL(4, 6) // IHL=6 implies options, unsupported.
	ifrm.SetTotalLength(24)
	ifrm.ValidateSize(&v)
	if !v.HasError() {
		t.Fatal("expected options header to be rejected")
	}

	v.Reset()
	ifrm.SetVersionAndIHL(4, 5)
	ifrm.SetTotalLength(20)
	ifrm.ValidateSize(&v)
	if v.HasError() {
		t.Fatalf("expected valid header to pass, got %v", v.Err())
	}

	v.Reset()
	ifrm.SetTotalLength(1000) // exceeds buffer
	ifrm.ValidateSize(&v)
	if !v.HasError() {
		t.Fatal("expected oversized total length to be rejected")
	}
}
