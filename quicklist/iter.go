package quicklist

import "github.com/pengdafu/zlcore/ziplist"

// Iterator walks the list in one direction. The node under the iterator is
// pinned uncompressed until the iterator moves past it or is released, so
// every iterator must be released.
type Iterator struct {
	ql        *Quicklist
	current   *node
	p         int // record offset in current, -1 before the first access
	offset    int // index in current; negative when walking from the tail
	direction int
	version   uint64
	pinned    bool // current holds one of our pins
}

// Iterator starts at the head for Head and at the tail for Tail.
func (ql *Quicklist) Iterator(direction int) *Iterator {
	it := &Iterator{ql: ql, p: -1, direction: direction, version: ql.version}
	if direction == Head {
		it.current = ql.head()
	} else {
		it.current = ql.tail()
		it.offset = -1
	}
	return it
}

// IteratorAt starts at element idx. It returns false when idx is out of range.
func (ql *Quicklist) IteratorAt(direction, idx int) (*Iterator, bool) {
	n, offset, ok := ql.locate(idx)
	if !ok {
		return nil, false
	}
	if direction == Head && offset < 0 {
		offset += n.count
	} else if direction == Tail && offset >= 0 {
		offset -= n.count
	}
	return &Iterator{ql: ql, current: n, p: -1, offset: offset, direction: direction, version: ql.version}, true
}

func (it *Iterator) pin() {
	if !it.pinned {
		it.current.iters++
		it.pinned = true
	}
}

func (it *Iterator) unpin() {
	if it.pinned {
		it.current.iters--
		it.pinned = false
	}
}

func (it *Iterator) check() {
	if it.version != it.ql.version {
		panic(ErrIteratorInvalidated)
	}
}

// Next returns the next element. The entry's Value aliases node memory and
// is only meaningful until the iterator moves on.
func (it *Iterator) Next() (Entry, bool) {
	it.check()
	for it.current != nil {
		n := it.current
		ok := false
		it.pin()
		n.decompressForUse()
		if it.p < 0 {
			it.p, ok = ziplist.Index(n.data, it.offset)
		} else if it.direction == Head {
			it.p, ok = ziplist.Next(n.data, it.p)
			it.offset++
		} else {
			it.p, ok = ziplist.Prev(n.data, it.p)
			it.offset--
		}
		if ok {
			v, _ := ziplist.Get(n.data, it.p)
			offset := it.offset
			if offset < 0 {
				offset += n.count
			}
			return Entry{Value: v, node: n, offset: offset, version: it.version}, true
		}

		it.unpin()
		it.ql.compressNode(n)
		it.p = -1
		if it.direction == Head {
			it.current = n.next()
			it.offset = 0
		} else {
			it.current = n.prev()
			it.offset = -1
		}
	}
	return Entry{}, false
}

// Release hands the current node back to the compression policy. The
// iterator must not be used afterwards.
func (it *Iterator) Release() {
	if it.current == nil {
		return
	}
	it.unpin()
	if it.version == it.ql.version {
		it.ql.compressNode(it.current)
	}
	it.current = nil
}

// DelEntry deletes the element e that it just returned. The iterator stays
// valid and continues with the element that followed e.
func (ql *Quicklist) DelEntry(it *Iterator, e *Entry) {
	it.check()
	ql.checkEntry(e)
	if it.ql != ql || e.node != it.current || it.p < 0 {
		panic(ErrStaleEntry)
	}
	n := e.node
	if cur := it.offset; cur != e.offset && cur+n.count != e.offset {
		panic(ErrStaleEntry)
	}
	prev, next := n.prev(), n.next()
	if ql.delIndex(n, it.p) {
		it.unpin()
		if it.direction == Head {
			it.current, it.offset = next, 0
		} else {
			it.current, it.offset = prev, -1
		}
	}
	// the next element now sits at the same index, counted from the
	// iteration side
	it.p = -1
	ql.modified()
	it.version = ql.version
}
