// Package quicklist implements a doubly linked list of ziplists. Each node
// holds a bounded ziplist; nodes away from the ends of the list can be kept
// LZ4 compressed.
//
// A Quicklist is not safe for concurrent use. Iterators and entries are views
// that become invalid as soon as the list is modified through any other
// handle; using them afterwards panics with ErrIteratorInvalidated or
// ErrStaleEntry.
package quicklist

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"

	"github.com/pengdafu/zlcore/adlist"
	"github.com/pengdafu/zlcore/ziplist"
)

const (
	Head = 0
	Tail = 1
)

type Quicklist struct {
	nodes     *adlist.List[*node]
	count     int // entries in all nodes
	fill      int
	compress  int
	version   uint64
	digestKey []byte
	logger    *slog.Logger
}

// Entry is one element located in the list. Value aliases the node buffer
// when it comes from an Iterator; Index and Pop return detached values.
type Entry struct {
	Value   ziplist.Value
	node    *node
	offset  int // index inside the node
	version uint64
}

func New(opts Options) *Quicklist {
	return &Quicklist{
		nodes:     adlist.Create[*node](),
		fill:      clampFill(opts.Fill),
		compress:  clampDepth(opts.CompressDepth),
		digestKey: digestKey(opts.DigestSeed),
		logger:    opts.logger(),
	}
}

// NewFromBuffer builds a list from a persisted ziplist, re-splitting its
// entries according to opts.
func NewFromBuffer(opts Options, zl []byte) (*Quicklist, error) {
	if err := ziplist.Validate(zl, true); err != nil {
		return nil, fmt.Errorf("quicklist: load buffer: %w", err)
	}
	ql := New(opts)
	p, ok := ziplist.Index(zl, 0)
	for ok {
		v, _ := ziplist.Get(zl, p)
		if _, err := ql.PushTail(v.Bytes()); err != nil {
			return nil, err
		}
		p, ok = ziplist.Next(zl, p)
	}
	return ql, nil
}

func (ql *Quicklist) SetFill(fill int) {
	ql.fill = clampFill(fill)
}

func (ql *Quicklist) SetCompressDepth(depth int) {
	ql.compress = clampDepth(depth)
}

// Count is the number of entries.
func (ql *Quicklist) Count() int {
	return ql.count
}

// Len is the number of nodes.
func (ql *Quicklist) Len() int {
	return ql.nodes.Len()
}

func (ql *Quicklist) head() *node {
	return ql.nodes.First().NodeValue()
}

func (ql *Quicklist) tail() *node {
	return ql.nodes.Last().NodeValue()
}

func (ql *Quicklist) modified() {
	ql.version++
}

// sizeAllowed applies the fill policy to a node of sz bytes and count entries.
func (ql *Quicklist) sizeAllowed(sz, count int) bool {
	if ql.fill < 0 {
		return sz <= optimizationLevel[-ql.fill-1]
	}
	return sz <= sizeSafetyLimit && count <= ql.fill
}

func (ql *Quicklist) allowPush(n *node, value []byte, where int) bool {
	if n == nil {
		return false
	}
	return ql.sizeAllowed(n.pushedSize(value, where), n.count+1)
}

func (ql *Quicklist) allowMerge(a, b *node) bool {
	if a == nil || b == nil {
		return false
	}
	// one header and end marker go away; the joint may widen one prevlen
	sz := a.sz + b.sz - ziplist.HeaderSize - ziplist.EndSize + 4
	return ql.sizeAllowed(sz, a.count+b.count)
}

// compressNode brings n back to its steady state: a node inflated for one
// access is simply recompressed, anything else goes through the depth policy.
func (ql *Quicklist) compressNode(n *node) {
	if n != nil && n.recompress {
		ql.tryCompress(n)
		return
	}
	ql.compressAround(n)
}

func (ql *Quicklist) tryCompress(n *node) {
	if n == nil || n.encoding == encodingLZF || n.iters > 0 {
		return
	}
	fresh := !n.attemptedCompress
	if !n.compress() && fresh {
		ql.logger.Debug("quicklist node not compressed", "size", n.sz, "count", n.count)
	}
}

// compressAround keeps the compress-depth nodes at both ends raw, then
// compresses n if it lies outside that window, along with the first node past
// each window edge.
func (ql *Quicklist) compressAround(n *node) {
	if ql.compress == 0 || ql.nodes.Len() == 0 {
		return
	}
	forward, reverse := ql.head(), ql.tail()
	inDepth := false
	for depth := 0; depth < ql.compress; depth++ {
		forward.decompress()
		reverse.decompress()
		if forward == n || reverse == n {
			inDepth = true
		}
		if forward == reverse || forward.next() == reverse {
			return
		}
		forward, reverse = forward.next(), reverse.prev()
	}
	if !inDepth {
		ql.tryCompress(n)
	}
	ql.tryCompress(forward)
	ql.tryCompress(reverse)
}

// insertNode links n next to old, or as the only node when old is nil.
func (ql *Quicklist) insertNode(old, n *node, after bool) {
	if old == nil {
		n.el = ql.nodes.AddNodeTail(n)
		return
	}
	n.el = ql.nodes.InsertNode(old.el, n, after)
	ql.compressNode(old)
	if n.el.Prev() != nil && n.el.Next() != nil {
		ql.compressAround(n)
	}
}

func (ql *Quicklist) delNode(n *node) {
	ql.nodes.DelNode(n.el)
	ql.count -= n.count
	ql.compressAround(nil)
}

// delIndex removes the record at p of n and drops n once it is empty. It
// reports whether n was dropped.
func (ql *Quicklist) delIndex(n *node, p int) bool {
	n.data = ziplist.Delete(n.data, p)
	n.count--
	ql.count--
	if n.count == 0 {
		ql.delNode(n)
		return true
	}
	n.updateSz()
	return false
}

func (ql *Quicklist) nodeWith(value []byte) (*node, error) {
	n := newNode()
	zl, err := ziplist.Push(n.data, value, ziplist.Tail)
	if err != nil {
		return nil, err
	}
	n.data = zl
	n.count = 1
	n.updateSz()
	return n, nil
}

// pushInto adds value at one end of an existing node.
func (ql *Quicklist) pushInto(n *node, value []byte, where int) error {
	n.decompressForUse()
	defer n.recompressOnly()
	zl, err := ziplist.Push(n.data, value, where)
	if err != nil {
		return err
	}
	n.data = zl
	n.count++
	n.updateSz()
	return nil
}

// PushHead adds value in front of the list and reports whether a new head
// node was created for it.
func (ql *Quicklist) PushHead(value []byte) (bool, error) {
	return ql.push(value, Head)
}

// PushTail adds value at the end of the list and reports whether a new tail
// node was created for it.
func (ql *Quicklist) PushTail(value []byte) (bool, error) {
	return ql.push(value, Tail)
}

// Push adds value at Head or Tail.
func (ql *Quicklist) Push(value []byte, where int) error {
	_, err := ql.push(value, where)
	return err
}

func (ql *Quicklist) push(value []byte, where int) (bool, error) {
	end := ql.tail()
	if where == Head {
		end = ql.head()
	}
	created := false
	if ql.allowPush(end, value, where) {
		if err := ql.pushInto(end, value, where); err != nil {
			return false, err
		}
	} else {
		n, err := ql.nodeWith(value)
		if err != nil {
			return false, err
		}
		ql.insertNode(end, n, where == Tail)
		created = true
	}
	ql.count++
	ql.modified()
	return created, nil
}

// AppendBuffer adopts a persisted ziplist as a new tail node. The buffer is
// validated first and owned by the list afterwards.
func (ql *Quicklist) AppendBuffer(zl []byte) error {
	if err := ziplist.Validate(zl, true); err != nil {
		return fmt.Errorf("quicklist: append buffer: %w", err)
	}
	n := &node{data: zl, encoding: encodingRaw, count: ziplist.Len(zl)}
	n.updateSz()
	if n.count == 0 {
		return nil
	}
	ql.insertNode(ql.tail(), n, true)
	ql.count += n.count
	ql.modified()
	ql.logger.Debug("quicklist adopted buffer", "size", n.sz, "count", n.count)
	return nil
}

func (ql *Quicklist) checkEntry(e *Entry) {
	if e.node == nil || e.version != ql.version {
		panic(ErrStaleEntry)
	}
}

// InsertBefore places value in front of the element e points at.
func (ql *Quicklist) InsertBefore(e *Entry, value []byte) error {
	return ql.insert(e, value, false)
}

// InsertAfter places value behind the element e points at.
func (ql *Quicklist) InsertAfter(e *Entry, value []byte) error {
	return ql.insert(e, value, true)
}

func (ql *Quicklist) insert(e *Entry, value []byte, after bool) error {
	ql.checkEntry(e)
	n := e.node
	n.decompressForUse()

	p, ok := ziplist.Index(n.data, e.offset)
	if !ok {
		panic(ErrStaleEntry)
	}
	at := p
	if after {
		if q, ok := ziplist.Next(n.data, p); ok {
			at = q
		} else {
			at = len(n.data) - ziplist.EndSize
		}
	}

	full := !ql.sizeAllowed(ziplist.InsertedSize(n.data, at, value), n.count+1)
	atTail := after && e.offset == n.count-1
	atHead := !after && e.offset == 0
	var next, prev *node
	fullNext, fullPrev := true, true
	if atTail {
		next = n.next()
		fullNext = !ql.allowPush(next, value, Head)
	}
	if atHead {
		prev = n.prev()
		fullPrev = !ql.allowPush(prev, value, Tail)
	}

	switch {
	case !full:
		zl, err := ziplist.Insert(n.data, at, value)
		if err != nil {
			n.recompressOnly()
			return err
		}
		n.data = zl
		n.count++
		n.updateSz()
		n.recompressOnly()
	case atTail && !fullNext:
		n.recompressOnly()
		if err := ql.pushInto(next, value, Head); err != nil {
			return err
		}
	case atHead && !fullPrev:
		n.recompressOnly()
		if err := ql.pushInto(prev, value, Tail); err != nil {
			return err
		}
	case atTail || atHead:
		nn, err := ql.nodeWith(value)
		if err != nil {
			n.recompressOnly()
			return err
		}
		ql.insertNode(n, nn, after)
	default:
		nn := ql.splitNode(n, e.offset, after)
		where := Tail
		if after {
			where = Head
		}
		// the half facing the insert point takes value when it still fits,
		// otherwise value gets a node of its own between the halves
		center := n
		var err error
		if ql.allowPush(nn, value, where) {
			err = ql.pushInto(nn, value, where)
		} else {
			center, err = ql.nodeWith(value)
		}
		if err != nil {
			// put the halves back together
			if after {
				n.data, _ = ziplist.Merge(n.data, nn.data)
			} else {
				n.data, _ = ziplist.Merge(nn.data, n.data)
			}
			n.count = ziplist.Len(n.data)
			n.updateSz()
			n.recompressOnly()
			return err
		}
		ql.insertNode(n, nn, after)
		if center != n {
			ql.insertNode(n, center, after)
		}
		ql.mergeNodes(center)
	}
	ql.count++
	ql.modified()
	return nil
}

// splitNode cuts n at offset. With after set, n keeps [0, offset] and the
// returned node gets the rest; otherwise the returned node gets [0, offset)
// and n keeps the rest. n must be raw.
func (ql *Quicklist) splitNode(n *node, offset int, after bool) *node {
	nn := &node{data: bytes.Clone(n.data), encoding: encodingRaw}

	origStart, origExtent := 0, offset
	newStart, newExtent := offset, math.MaxInt
	if after {
		origStart, origExtent = offset+1, math.MaxInt
		newStart, newExtent = 0, offset+1
	}
	n.data = ziplist.DeleteRange(n.data, origStart, origExtent)
	n.count = ziplist.Len(n.data)
	n.updateSz()

	nn.data = ziplist.DeleteRange(nn.data, newStart, newExtent)
	nn.count = ziplist.Len(nn.data)
	nn.updateSz()

	ql.logger.Debug("quicklist node split", "offset", offset, "after", after, "kept", n.count, "moved", nn.count)
	return nn
}

// mergeNodes tries to merge the two nodes on each side of center, then
// center with its neighbours.
func (ql *Quicklist) mergeNodes(center *node) {
	var prev, prevPrev, next, nextNext *node
	if prev = center.prev(); prev != nil {
		prevPrev = prev.prev()
	}
	if next = center.next(); next != nil {
		nextNext = next.next()
	}

	if ql.allowMerge(prevPrev, prev) {
		ql.ziplistMerge(prevPrev, prev)
	}
	if ql.allowMerge(next, nextNext) {
		ql.ziplistMerge(next, nextNext)
	}

	target := center
	if ql.allowMerge(center.prev(), center) {
		target = ql.ziplistMerge(center.prev(), center)
	}
	if ql.allowMerge(target, target.next()) {
		ql.ziplistMerge(target, target.next())
	}
}

// ziplistMerge moves b's entries to the end of a and drops b.
func (ql *Quicklist) ziplistMerge(a, b *node) *node {
	a.decompress()
	b.decompress()
	zl, err := ziplist.Merge(a.data, b.data)
	if err != nil {
		ql.compressNode(a)
		ql.compressNode(b)
		return a
	}
	a.data = zl
	a.count = ziplist.Len(zl)
	a.updateSz()

	b.count = 0
	ql.delNode(b)
	ql.compressNode(a)
	ql.logger.Debug("quicklist nodes merged", "size", a.sz, "count", a.count)
	return a
}

// locate finds the node holding element idx and the element's index inside
// it, negative when counting from the tail.
func (ql *Quicklist) locate(idx int) (*node, int, bool) {
	forward := idx >= 0
	index := idx
	if !forward {
		index = -idx - 1
	}
	if index >= ql.count {
		return nil, 0, false
	}

	n, accum := ql.tail(), 0
	if forward {
		n = ql.head()
	}
	for n != nil && accum+n.count <= index {
		accum += n.count
		if forward {
			n = n.next()
		} else {
			n = n.prev()
		}
	}
	if n == nil {
		return nil, 0, false
	}
	if forward {
		return n, index - accum, true
	}
	return n, -index - 1 + accum, true
}

// Index returns the element at idx; negative indexes count from the tail.
func (ql *Quicklist) Index(idx int) (Entry, bool) {
	n, offset, ok := ql.locate(idx)
	if !ok {
		return Entry{}, false
	}
	if offset < 0 {
		offset += n.count
	}
	n.decompressForUse()
	p, _ := ziplist.Index(n.data, offset)
	v, _ := ziplist.Get(n.data, p)
	e := Entry{Value: v.Clone(), node: n, offset: offset, version: ql.version}
	n.recompressOnly()
	return e, true
}

// DelIndex removes the element at idx.
func (ql *Quicklist) DelIndex(idx int) bool {
	return ql.DelRange(idx, 1) == 1
}

// DelRange removes up to count elements starting at start and returns how
// many were removed.
func (ql *Quicklist) DelRange(start, count int) int {
	if count <= 0 {
		return 0
	}
	extent := count
	if start >= 0 && extent > ql.count-start {
		extent = ql.count - start
	} else if start < 0 && extent > -start {
		extent = -start
	}
	n, offset, ok := ql.locate(start)
	if !ok {
		return 0
	}

	deleted := 0
	for extent > 0 && n != nil {
		next := n.next()
		del := 0
		entire := false
		switch {
		case offset == 0 && extent >= n.count:
			entire, del = true, n.count
		case offset >= 0 && extent+offset >= n.count:
			del = n.count - offset
		case offset < 0:
			del = -offset
			if del > extent {
				del = extent
			}
		default:
			del = extent
		}

		if entire {
			ql.delNode(n)
		} else {
			n.decompressForUse()
			n.data = ziplist.DeleteRange(n.data, offset, del)
			n.updateSz()
			n.count -= del
			ql.count -= del
			if n.count == 0 {
				ql.delNode(n)
			} else {
				n.recompressOnly()
			}
		}
		extent -= del
		deleted += del
		n = next
		offset = 0
	}
	ql.modified()
	return deleted
}

// ReplaceAtIndex overwrites the element at idx. A value too large for its
// node is moved through the regular insert path, which may split the node.
func (ql *Quicklist) ReplaceAtIndex(idx int, value []byte) (bool, error) {
	if idx < 0 {
		idx += ql.count
		if idx < 0 {
			return false, nil
		}
	}
	n, offset, ok := ql.locate(idx)
	if !ok {
		return false, nil
	}
	n.decompressForUse()
	p, _ := ziplist.Index(n.data, offset)
	zl, err := ziplist.Replace(n.data, p, value)
	if err != nil {
		n.recompressOnly()
		return false, err
	}
	n.data = zl
	n.updateSz()
	ql.modified()
	if n.count == 1 || ql.sizeAllowed(n.sz, n.count) {
		ql.compressNode(n)
		return true, nil
	}

	ql.delIndex(n, p)
	ql.compressNode(n)
	if idx < ql.count {
		e, _ := ql.Index(idx)
		return true, ql.InsertBefore(&e, value)
	}
	_, err = ql.PushTail(value)
	return true, err
}

// Pop removes and returns the element at Head or Tail.
func (ql *Quicklist) Pop(where int) (ziplist.Value, bool) {
	if ql.count == 0 {
		return ziplist.Value{}, false
	}
	n, pos := ql.head(), 0
	if where == Tail {
		n, pos = ql.tail(), -1
	}
	n.decompressForUse()
	p, _ := ziplist.Index(n.data, pos)
	v, _ := ziplist.Get(n.data, p)
	v = v.Clone()
	if !ql.delIndex(n, p) {
		n.recompressOnly()
	}
	ql.modified()
	return v, true
}

// Rotate moves the tail element to the head.
func (ql *Quicklist) Rotate() error {
	if ql.count <= 1 {
		return nil
	}
	t := ql.tail()
	t.decompressForUse()
	p, _ := ziplist.Index(t.data, -1)
	v, _ := ziplist.Get(t.data, p)
	value := bytes.Clone(v.Bytes())
	t.recompressOnly()

	if _, err := ql.PushHead(value); err != nil {
		return err
	}
	t = ql.tail()
	t.decompressForUse()
	p, _ = ziplist.Index(t.data, -1)
	if !ql.delIndex(t, p) {
		t.recompressOnly()
	}
	ql.modified()
	return nil
}

// Dup returns a deep copy, compressed nodes included.
func (ql *Quicklist) Dup() *Quicklist {
	cp := &Quicklist{
		nodes:     adlist.Create[*node](),
		count:     ql.count,
		fill:      ql.fill,
		compress:  ql.compress,
		digestKey: ql.digestKey,
		logger:    ql.logger,
	}
	for el := ql.nodes.First(); el != nil; el = el.Next() {
		n := el.NodeValue()
		nn := *n
		nn.data = bytes.Clone(n.data)
		nn.iters = 0
		nn.el = cp.nodes.AddNodeTail(&nn)
	}
	return cp
}

// Buffers returns an uncompressed copy of every node's ziplist, in order,
// e.g. for a snapshot writer.
func (ql *Quicklist) Buffers() [][]byte {
	out := make([][]byte, 0, ql.nodes.Len())
	li := ql.nodes.Iterator(adlist.AlStartHead)
	for el := li.Next(); el != nil; el = li.Next() {
		n := el.NodeValue()
		if n.encoding == encodingLZF {
			raw, err := decompressBlob(n.data, n.sz)
			if err != nil {
				panic(err)
			}
			out = append(out, raw)
			continue
		}
		out = append(out, bytes.Clone(n.data))
	}
	return out
}

// Nodes describes every node from head to tail.
func (ql *Quicklist) Nodes() []NodeStat {
	out := make([]NodeStat, 0, ql.nodes.Len())
	li := ql.nodes.Iterator(adlist.AlStartHead)
	for el := li.Next(); el != nil; el = li.Next() {
		n := el.NodeValue()
		st := NodeStat{
			Count:             n.count,
			Size:              n.sz,
			Compressed:        n.encoding == encodingLZF,
			AttemptedCompress: n.attemptedCompress,
		}
		if st.Compressed {
			st.CompressedSize = len(n.data)
		}
		out = append(out, st)
	}
	return out
}

// Release drops every node. Outstanding iterators become invalid.
func (ql *Quicklist) Release() {
	ql.nodes.Empty()
	ql.count = 0
	ql.modified()
}
