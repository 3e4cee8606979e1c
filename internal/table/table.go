// Package table implements the longest-prefix-match prefix database. Two
// independent tries hold IPv4 and IPv6 routes; values are flat,
// insertion-ordered lists per (prefix, maxLen) so the JSON snapshot is
// reproducible.
package table

import (
	"errors"
	"fmt"
	"net/netip"
)

// ErrDuplicateAnnounce is returned by Announce when the exact (prefix,
// maxLen, asn) triple is already present. This is a RouteInconsistency:
// callers log it and continue, they do not treat it as fatal to the
// session.
var ErrDuplicateAnnounce = errors.New("duplicate announce")

// ErrUnknownRoute is returned by Withdraw when the exact triple is not
// present. Also non-fatal.
var ErrUnknownRoute = errors.New("unknown route")

// RouteEntry is one (prefix, maxLen, asn) triple as returned by Lookup or
// walked during Snapshot.
type RouteEntry struct {
	Prefix netip.Prefix
	MaxLen uint8
	ASN    uint32
}

// Table holds the full set of announced ROAs, split by address family.
type Table struct {
	v4 *trie
	v6 *trie
}

// New returns an empty prefix table.
func New() *Table {
	return &Table{v4: newTrie(4), v6: newTrie(16)}
}

func (t *Table) trieFor(prefix netip.Prefix) (*trie, []byte, error) {
	addr := prefix.Addr()
	switch {
	case addr.Is4():
		a := addr.As4()
		return t.v4, a[:], nil
	case addr.Is6():
		a := addr.As16()
		return t.v6, a[:], nil
	default:
		return nil, nil, fmt.Errorf("invalid prefix %s: neither IPv4 nor IPv6", prefix)
	}
}

// Announce inserts (prefix, maxLen, asn). It is a no-op error (not
// propagated to the caller's connection) if the exact triple is already
// present — see ErrDuplicateAnnounce.
func (t *Table) Announce(prefix netip.Prefix, asn uint32, maxLen uint8) error {
	tr, addr, err := t.trieFor(prefix)
	if err != nil {
		return err
	}
	if ok := tr.insert(addr, uint8(prefix.Bits()), maxLen, asn); !ok {
		return fmt.Errorf("%w: %s maxLen=%d asn=%d", ErrDuplicateAnnounce, prefix, maxLen, asn)
	}
	return nil
}

// Withdraw removes exactly the (prefix, maxLen, asn) triple.
func (t *Table) Withdraw(prefix netip.Prefix, asn uint32, maxLen uint8) error {
	tr, addr, err := t.trieFor(prefix)
	if err != nil {
		return err
	}
	if ok := tr.remove(addr, uint8(prefix.Bits()), maxLen, asn); !ok {
		return fmt.Errorf("%w: %s maxLen=%d asn=%d", ErrUnknownRoute, prefix, maxLen, asn)
	}
	return nil
}

// Lookup returns every ROA covering prefix (prefixes equal to or less
// specific than it). If longForm is true, ROAs nested within prefix (more
// specific covered ROAs) are included too.
func (t *Table) Lookup(prefix netip.Prefix, longForm bool) []RouteEntry {
	tr, addr, err := t.trieFor(prefix)
	if err != nil {
		return nil
	}
	queryLen := uint8(prefix.Bits())

	toEntry := func(prefixLen uint8, entryAddr []byte, maxLen uint8, asn uint32) RouteEntry {
		p, _ := netip.AddrFromSlice(entryAddr)
		pfx := netip.PrefixFrom(p, int(prefixLen)).Masked()
		return RouteEntry{Prefix: pfx, MaxLen: maxLen, ASN: asn}
	}

	var out []RouteEntry
	tr.visitCovering(addr, queryLen, func(prefixLen, maxLen uint8, asn uint32) {
		out = append(out, toEntry(prefixLen, addr, maxLen, asn))
	})
	if longForm {
		tr.visitSubtree(addr, queryLen, func(prefixLen uint8, entryAddr []byte, maxLen uint8, asn uint32) {
			out = append(out, toEntry(prefixLen, entryAddr, maxLen, asn))
		})
	}
	return out
}
