// Package routing holds the router's forwarding table: an append-only set
// of (destination, mask, gateway, egress interface) entries looked up by
// longest-prefix match.
package routing

import (
	"errors"
	"net/netip"

	"github.com/gaissmai/bart"
)

// ErrRouteNotFound is returned by Lookup when no entry matches.
var ErrRouteNotFound = errors.New("routing: no matching route")

// Entry is one forwarding-table row. Destination and gateway are IPv4
// addresses in normal (not network-byte-order opaque) form; MaskLen is the
// prefix length derived from the configured dotted-quad mask.
type Entry struct {
	Dest      [4]byte
	MaskLen   int
	Gateway   [4]byte
	IfaceName string
}

// Table is an append-only, longest-prefix-match routing table. Entries are
// loaded once at startup via Add; lookups never mutate the table, satisfying
// the spec's requirement that lookup never sees a table under construction.
// The underlying [bart.Table] already stores routes as a compressed trie
// keyed on prefix, so LPM lookup is native to the data structure rather than
// a sort-and-scan over a list.
type Table struct {
	t bart.Table[Entry]
}

// Add inserts entry into the table. If an entry already exists for the
// exact same (dest, mask) pair, the first inserted one wins and this call
// is a no-op, matching the insertion-order tie-break the spec requires for
// equal-mask matches.
func (t *Table) Add(entry Entry) {
	pfx := netip.PrefixFrom(netip.AddrFrom4(entry.Dest), entry.MaskLen)
	pfx = pfx.Masked()
	t.t.Update(pfx, func(val Entry, found bool) Entry {
		if found {
			return val
		}
		return entry
	})
}

// Lookup returns the entry whose (dest & mask) matches (ip & mask) with the
// numerically largest mask among matches. If no entry matches, it returns
// ErrRouteNotFound. A default route (mask 0), if present, is always a
// last-resort match.
func (t *Table) Lookup(ip [4]byte) (Entry, error) {
	entry, ok := t.t.Lookup(netip.AddrFrom4(ip))
	if !ok {
		return Entry{}, ErrRouteNotFound
	}
	return entry, nil
}
