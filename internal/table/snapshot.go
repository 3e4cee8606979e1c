package table

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"strconv"
)

func addrFromBytes(b []byte) (netip.Addr, bool) {
	return netip.AddrFromSlice(b)
}

// prefixString renders the canonical "a.b.c.d/len" (or lower-cased IPv6) form.
func prefixString(addr netip.Addr, bits int) string {
	return netip.PrefixFrom(addr, bits).Masked().String()
}

// asnEntry is a single {"<asn>": "<prefix>"} map, the shape the snapshot
// format carries for each route entry.
type asnEntry map[string]string

// Snapshot is the full-table JSON document written to data/routingtable.json.
type Snapshot struct {
	Routes struct {
		IPv4 map[string]map[string][]asnEntry `json:"ipv4"`
		IPv6 map[string]map[string][]asnEntry `json:"ipv6"`
	} `json:"routes"`
}

// Marshal renders the snapshot to its canonical JSON form.
func (s Snapshot) Marshal() ([]byte, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return b, nil
}

// Snapshot walks both tries and produces the nested prefix -> maxLen ->
// []{asn: prefix} structure the journal format expects.
func (t *Table) Snapshot() Snapshot {
	var snap Snapshot
	snap.Routes.IPv4 = buildFamily(t.v4)
	snap.Routes.IPv6 = buildFamily(t.v6)
	return snap
}

func buildFamily(tr *trie) map[string]map[string][]asnEntry {
	out := make(map[string]map[string][]asnEntry)
	tr.visitAll(func(prefixLen uint8, addr []byte, maxLen uint8, asn uint32) {
		p, ok := addrFromBytes(addr)
		if !ok {
			return
		}
		pfxStr := prefixString(p, int(prefixLen))
		if out[pfxStr] == nil {
			out[pfxStr] = make(map[string][]asnEntry)
		}
		maxLenKey := strconv.Itoa(int(maxLen))
		out[pfxStr][maxLenKey] = append(out[pfxStr][maxLenKey], asnEntry{
			strconv.FormatUint(uint64(asn), 10): pfxStr,
		})
	})
	return out
}
