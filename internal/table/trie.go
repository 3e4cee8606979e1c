package table

// trie is a binary longest-prefix-match tree over a fixed-width address
// (4 bytes for IPv4, 16 for IPv6). Each node corresponds to one bit of the
// address; a node only carries route data when some inserted prefix ends
// exactly there. Entries within a node are kept in insertion order, so the
// JSON snapshot is stable across runs that announce the same routes in the
// same sequence.
type trie struct {
	root  *trieNode
	width int // 4 for IPv4, 16 for IPv6
}

type trieNode struct {
	children [2]*trieNode
	// buckets maps maxLen to the ordered list of ASNs announced for this
	// exact prefix at that maxLen.
	buckets map[uint8][]uint32
}

func newTrie(width int) *trie {
	return &trie{root: &trieNode{}, width: width}
}

// bit returns the i-th bit (MSB first) of addr.
func bit(addr []byte, i uint8) int {
	byteIdx := i / 8
	bitIdx := 7 - (i % 8)
	return int((addr[byteIdx] >> bitIdx) & 1)
}

// walk descends the trie along addr for prefixLen bits, creating nodes as
// needed when create is true. It returns nil if create is false and the
// path does not fully exist.
func (t *trie) walk(addr []byte, prefixLen uint8, create bool) *trieNode {
	n := t.root
	for i := uint8(0); i < prefixLen; i++ {
		b := bit(addr, i)
		child := n.children[b]
		if child == nil {
			if !create {
				return nil
			}
			child = &trieNode{}
			n.children[b] = child
		}
		n = child
	}
	return n
}

// insert adds asn under the node for (addr, prefixLen) at maxLen. It
// reports ok=false without mutating anything if the (addr, prefixLen,
// maxLen, asn) tuple is already present.
func (t *trie) insert(addr []byte, prefixLen, maxLen uint8, asn uint32) (ok bool) {
	n := t.walk(addr, prefixLen, true)
	if n.buckets == nil {
		n.buckets = make(map[uint8][]uint32)
	}
	for _, existing := range n.buckets[maxLen] {
		if existing == asn {
			return false
		}
	}
	n.buckets[maxLen] = append(n.buckets[maxLen], asn)
	return true
}

// remove deletes asn from the node for (addr, prefixLen) at maxLen,
// pruning empty buckets and then empty, childless nodes back toward the
// root. It reports ok=false if the tuple was not present.
func (t *trie) remove(addr []byte, prefixLen, maxLen uint8, asn uint32) (ok bool) {
	path := make([]*trieNode, 0, prefixLen+1)
	bits := make([]int, 0, prefixLen)
	n := t.root
	path = append(path, n)
	for i := uint8(0); i < prefixLen; i++ {
		b := bit(addr, i)
		child := n.children[b]
		if child == nil {
			return false
		}
		bits = append(bits, b)
		path = append(path, child)
		n = child
	}

	entries := n.buckets[maxLen]
	idx := -1
	for i, existing := range entries {
		if existing == asn {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false
	}
	n.buckets[maxLen] = append(entries[:idx], entries[idx+1:]...)
	if len(n.buckets[maxLen]) == 0 {
		delete(n.buckets, maxLen)
	}
	if len(n.buckets) == 0 {
		n.buckets = nil
	}

	// Prune empty, childless nodes from the leaf back up.
	for i := len(path) - 1; i > 0; i-- {
		cur := path[i]
		if cur.buckets != nil || cur.children[0] != nil || cur.children[1] != nil {
			break
		}
		parent := path[i-1]
		parent.children[bits[i-1]] = nil
	}
	return true
}

// visitCovering calls fn for every (prefixLen, maxLen, asn) entry covering addr up
// to queryLen bits — i.e. every inserted prefix that is an ancestor of, or
// equal to, the first queryLen bits of addr.
func (t *trie) visitCovering(addr []byte, queryLen uint8, fn func(prefixLen, maxLen uint8, asn uint32)) {
	n := t.root
	visitNode(n, 0, fn)
	for i := uint8(0); i < queryLen; i++ {
		b := bit(addr, i)
		child := n.children[b]
		if child == nil {
			return
		}
		n = child
		visitNode(n, i+1, fn)
	}
}

func visitNode(n *trieNode, depth uint8, fn func(prefixLen, maxLen uint8, asn uint32)) {
	for maxLen, asns := range n.buckets {
		for _, asn := range asns {
			fn(depth, maxLen, asn)
		}
	}
}

// visitSubtree calls fn for every entry strictly below the node reached by
// addr's first queryLen bits (the more-specific prefixes nested under it).
// Unlike visitCovering, descendant prefixes diverge from addr past queryLen
// bits, so fn receives the reconstructed address for each entry.
func (t *trie) visitSubtree(addr []byte, queryLen uint8, fn func(prefixLen uint8, entryAddr []byte, maxLen uint8, asn uint32)) {
	n := t.walk(addr, queryLen, false)
	if n == nil {
		return
	}
	built := make([]byte, t.width)
	copy(built, addr)
	var walkAll func(node *trieNode, depth uint8)
	walkAll = func(node *trieNode, depth uint8) {
		if depth > queryLen {
			visitNode(node, depth, func(prefixLen, maxLen uint8, asn uint32) {
				fn(prefixLen, built, maxLen, asn)
			})
		}
		for b, child := range node.children {
			if child != nil {
				setBit(built, depth, b)
				walkAll(child, depth+1)
			}
		}
	}
	walkAll(n, queryLen)
}

// visitAll calls fn for every entry in the trie, in a stable depth-first,
// low-child-first order, suitable for snapshotting.
func (t *trie) visitAll(fn func(prefixLen uint8, addr []byte, maxLen uint8, asn uint32)) {
	width := t.width
	addr := make([]byte, width)
	var walkAll func(node *trieNode, depth uint8)
	walkAll = func(node *trieNode, depth uint8) {
		for maxLen, asns := range node.buckets {
			for _, asn := range asns {
				fn(depth, addr, maxLen, asn)
			}
		}
		for b := 0; b < 2; b++ {
			child := node.children[b]
			if child == nil {
				continue
			}
			if int(depth) < width*8 {
				setBit(addr, depth, b)
			}
			walkAll(child, depth+1)
		}
	}
	walkAll(t.root, 0)
}

func setBit(addr []byte, i uint8, v int) {
	byteIdx := i / 8
	bitIdx := 7 - (i % 8)
	if v == 1 {
		addr[byteIdx] |= 1 << bitIdx
	} else {
		addr[byteIdx] &^= 1 << bitIdx
	}
}
