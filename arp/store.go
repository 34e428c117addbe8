package arp

import (
	"log/slog"
	"sync"
	"time"

	"github.com/cngai/router/internal"
	"github.com/cngai/router/wire"
)

const (
	// EntryTTL is how long a resolved ArpEntry stays valid after insertion.
	EntryTTL = 30 * time.Second
	// MaxSentTime is the number of ARP broadcasts a request may generate
	// before it is abandoned along with its queued packets.
	MaxSentTime = 5
	// TickInterval is the period of the store's maintenance sweep.
	TickInterval = 1 * time.Second
)

// Entry is a resolved (ip, mac) mapping. Valid starts true on insertion and
// becomes false exactly once, when its age exceeds [EntryTTL]; an invalid
// entry is reaped on the next maintenance tick.
type Entry struct {
	IP         [4]byte
	MAC        [6]byte
	InsertedAt time.Time
	Valid      bool
}

// PendingPacket is a fully formed IPv4 frame buffered on an outstanding ARP
// resolution, along with the interface it will be emitted on once resolved.
type PendingPacket struct {
	Frame       []byte
	EgressIface string
}

// Request is an outstanding ARP resolution for TargetIP. A Request is
// created lazily on the first unresolved forward and is destroyed either by
// a matching reply (drained) or by reaching [MaxSentTime] (abandoned).
type Request struct {
	TargetIP    [4]byte
	FirstQueued time.Time
	LastSent    time.Time
	TimesSent   int
	Packets     []PendingPacket
}

// Broadcast describes an ARP request broadcast the maintenance tick wants
// emitted. The inline broadcast on a new request is not described by a
// Broadcast: QueueRequest only reports that it created the request.
type Broadcast struct {
	TargetIP [4]byte
	Iface    string
}

// Store is the concurrent ARP cache and pending-request manager. The zero
// value is not usable; construct with [NewStore]. All public operations and
// the entire maintenance sweep hold the same mutex, per the single-lock
// design: there is exactly one writer-visible critical section, never two
// nested ones.
type Store struct {
	mu       sync.Mutex
	entries  []Entry
	requests []Request
	log      *slog.Logger

	now func() time.Time
}

// NewStore returns an empty Store. log may be nil to disable logging.
func NewStore(log *slog.Logger) *Store {
	return &Store{log: log, now: time.Now}
}

// Lookup returns the unique valid entry for ip, or ok=false if none exists.
func (s *Store) Lookup(ip [4]byte) (entry Entry, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].Valid && s.entries[i].IP == ip {
			return s.entries[i], true
		}
	}
	return Entry{}, false
}

// QueueRequest appends (frame, iface) to the pending request for ip,
// creating the request if one does not already exist. It returns true if
// this call created the request, in which case the caller always emits an
// ARP broadcast inline for latency. That inline send counts toward
// MaxSentTime, so a freshly created request starts with TimesSent=1
// rather than 0: without this, the inline send plus MaxSentTime tick-driven
// retransmissions would total MaxSentTime+1 broadcasts before abandonment.
func (s *Store) QueueRequest(ip [4]byte, frame []byte, iface string) (firstQueued bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.requests {
		if s.requests[i].TargetIP == ip {
			s.requests[i].Packets = append(s.requests[i].Packets, PendingPacket{Frame: frame, EgressIface: iface})
			return false
		}
	}
	now := s.now()
	s.requests = append(s.requests, Request{
		TargetIP:    ip,
		FirstQueued: now,
		LastSent:    now,
		TimesSent:   1,
		Packets:     []PendingPacket{{Frame: frame, EgressIface: iface}},
	})
	return true
}

// InsertEntry appends a fresh valid Entry for ip and returns the drained
// packets of the matching pending Request, if one exists, along with true.
// It does not remove the request; the caller must call RemoveRequest(ip)
// after emitting the drained packets, and must do so outside this lock to
// honor the concurrency contract (sendPacket calls never happen while the
// store mutex is held).
func (s *Store) InsertEntry(mac [6]byte, ip [4]byte) (packets []PendingPacket, hasRequest bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].IP == ip {
			s.entries[i].Valid = false
		}
	}
	s.entries = append(s.entries, Entry{IP: ip, MAC: mac, InsertedAt: s.now(), Valid: true})
	for i := range s.requests {
		if s.requests[i].TargetIP == ip {
			return append([]PendingPacket(nil), s.requests[i].Packets...), true
		}
	}
	return nil, false
}

// RemoveRequest removes the pending request for ip, if any.
func (s *Store) RemoveRequest(ip [4]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeRequestLocked(ip)
}

func (s *Store) removeRequestLocked(ip [4]byte) {
	for i := range s.requests {
		if s.requests[i].TargetIP == ip {
			s.requests = append(s.requests[:i], s.requests[i+1:]...)
			return
		}
	}
}

// Clear drops all entries and requests. Used by reset.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = s.entries[:0]
	s.requests = s.requests[:0]
}

// Counts returns the current number of valid entries and pending requests,
// for observability (e.g. Prometheus gauges).
func (s *Store) Counts() (entries, requests int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.Valid {
			entries++
		}
	}
	return entries, len(s.requests)
}

// Tick runs one maintenance sweep: ages entries past EntryTTL, retransmits
// or abandons pending requests, and reaps invalidated entries. It returns
// the broadcasts the caller must emit (outside the store's lock) and the
// packets of any request abandoned this tick (for observability; the spec
// does not require acting on them beyond discarding).
func (s *Store) Tick() (broadcasts []Broadcast, abandoned [][]PendingPacket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	for i := range s.entries {
		if s.entries[i].Valid && now.Sub(s.entries[i].InsertedAt) > EntryTTL {
			s.entries[i].Valid = false
		}
	}

	live := s.requests[:0]
	for i := range s.requests {
		req := &s.requests[i]
		if req.TimesSent >= MaxSentTime {
			abandoned = append(abandoned, req.Packets)
			internal.LogAttrs(s.log, slog.LevelDebug, "arp: request abandoned",
				slog.String("ip", wire.IPv4String(req.TargetIP)), slog.Int("times_sent", req.TimesSent))
			continue
		}
		first := req.Packets[0]
		broadcasts = append(broadcasts, Broadcast{TargetIP: req.TargetIP, Iface: first.EgressIface})
		req.LastSent = now
		req.TimesSent++
		live = append(live, *req)
	}
	s.requests = live

	// Entry is a comparable value type, so invalidated entries (which carry
	// no slices) can be zeroed and swept in one pass with DeleteZeroed.
	for i := range s.entries {
		if !s.entries[i].Valid {
			s.entries[i] = Entry{}
		}
	}
	s.entries = internal.DeleteZeroed(s.entries)

	return broadcasts, abandoned
}
