package arp

import (
	"testing"
	"time"
)

func newTestStore() *Store {
	s := NewStore(nil)
	return s
}

func TestStoreUniqueness(t *testing.T) {
	s := newTestStore()
	ip := [4]byte{10, 0, 0, 2}

	s.QueueRequest(ip, []byte("p1"), "eth0")
	s.QueueRequest(ip, []byte("p2"), "eth0")

	s.mu.Lock()
	n := len(s.requests)
	s.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected exactly one request for ip, got %d", n)
	}

	s.InsertEntry([6]byte{1, 2, 3, 4, 5, 6}, ip)
	if _, ok := s.Lookup(ip); !ok {
		t.Fatal("expected a valid entry")
	}
}

func TestStoreFIFODrain(t *testing.T) {
	s := newTestStore()
	ip := [4]byte{192, 168, 1, 5}

	s.QueueRequest(ip, []byte("P1"), "eth0")
	s.QueueRequest(ip, []byte("P2"), "eth0")
	s.QueueRequest(ip, []byte("P3"), "eth0")

	packets, has := s.InsertEntry([6]byte{0xcc, 0, 0, 0, 0, 3}, ip)
	if !has {
		t.Fatal("expected a pending request to drain")
	}
	if len(packets) != 3 {
		t.Fatalf("expected 3 queued packets, got %d", len(packets))
	}
	want := []string{"P1", "P2", "P3"}
	for i, p := range packets {
		if string(p.Frame) != want[i] {
			t.Errorf("packet %d: got %q want %q", i, p.Frame, want[i])
		}
	}
	s.RemoveRequest(ip)

	s.mu.Lock()
	n := len(s.requests)
	s.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected request removed, still have %d", n)
	}
}

// TestStoreRetransmitCap checks that a request whose caller always sends an
// inline broadcast on creation (QueueRequest seeds TimesSent=1 for exactly
// that reason) never produces more than MaxSentTime broadcasts in total,
// and is abandoned on the tick where the cap is reached.
func TestStoreRetransmitCap(t *testing.T) {
	s := newTestStore()
	ip := [4]byte{192, 168, 1, 5}
	var now time.Time
	s.now = func() time.Time { return now }

	s.QueueRequest(ip, []byte("P1"), "eth0")
	totalBroadcasts := 1 // the inline send QueueRequest's TimesSent=1 accounts for

	abandonedOnTick := -1
	for i := 0; i < MaxSentTime; i++ {
		now = now.Add(TickInterval)
		broadcasts, abandoned := s.Tick()
		totalBroadcasts += len(broadcasts)
		if len(abandoned) != 0 {
			if abandonedOnTick != -1 {
				t.Fatalf("tick %d: request abandoned more than once", i)
			}
			abandonedOnTick = i
		}
	}
	if totalBroadcasts != MaxSentTime {
		t.Fatalf("expected %d total broadcasts (inline + ticks), got %d", MaxSentTime, totalBroadcasts)
	}
	if abandonedOnTick != MaxSentTime-1 {
		t.Fatalf("expected request abandoned on tick %d, got %d", MaxSentTime-1, abandonedOnTick)
	}

	s.mu.Lock()
	n := len(s.requests)
	s.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected request gone after cap, still have %d", n)
	}
}

func TestStoreEntryExpiry(t *testing.T) {
	s := newTestStore()
	ip := [4]byte{10, 0, 0, 9}
	var now time.Time
	s.now = func() time.Time { return now }

	s.InsertEntry([6]byte{1, 1, 1, 1, 1, 1}, ip)
	if _, ok := s.Lookup(ip); !ok {
		t.Fatal("expected entry to be valid immediately after insertion")
	}

	now = now.Add(EntryTTL + time.Second)
	s.Tick()

	if _, ok := s.Lookup(ip); ok {
		t.Fatal("expected entry to be reaped after exceeding TTL")
	}
}

func TestStoreClear(t *testing.T) {
	s := newTestStore()
	ip := [4]byte{10, 0, 0, 2}
	s.QueueRequest(ip, []byte("p"), "eth0")
	s.InsertEntry([6]byte{1, 2, 3, 4, 5, 6}, ip)
	s.Clear()

	if _, ok := s.Lookup(ip); ok {
		t.Fatal("expected cache cleared")
	}
	s.mu.Lock()
	n := len(s.requests)
	s.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected requests cleared, got %d", n)
	}
}
