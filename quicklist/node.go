package quicklist

import (
	"bytes"
	"fmt"

	"github.com/pengdafu/zlcore/adlist"
	"github.com/pengdafu/zlcore/ziplist"
	"github.com/pierrec/lz4/v4"
)

const (
	encodingRaw = 1
	encodingLZF = 2
)

const (
	// nodes smaller than this are never compressed
	minCompressBytes = 48
	// compression must save at least this many bytes to be kept
	minCompressImprove = 8
)

// node owns either a raw ziplist or its compressed form, never both.
type node struct {
	el       *adlist.ListNode[*node]
	data     []byte // ziplist when encodingRaw, LZ4 block when encodingLZF
	sz       int    // uncompressed ziplist size
	count    int
	encoding uint8

	// recompress marks a node inflated only for the duration of an access.
	recompress bool
	// attemptedCompress records that compression was tried and not worth it;
	// cleared whenever the contents change.
	attemptedCompress bool
	// iters counts the iterators positioned on the node. A pinned node is
	// never compressed.
	iters int
}

func newNode() *node {
	return &node{data: ziplist.New(), sz: ziplist.HeaderSize + ziplist.EndSize, encoding: encodingRaw}
}

func (n *node) prev() *node {
	return n.el.Prev().NodeValue()
}

func (n *node) next() *node {
	return n.el.Next().NodeValue()
}

// updateSz must follow every change to the ziplist.
func (n *node) updateSz() {
	n.sz = len(n.data)
	n.attemptedCompress = false
}

func compressBlob(raw []byte) ([]byte, bool) {
	if len(raw) < minCompressBytes {
		return nil, false
	}
	dst := make([]byte, lz4.CompressBlockBound(len(raw)))
	c, err := lz4.CompressBlock(raw, dst, nil)
	if err != nil || c == 0 || c+minCompressImprove >= len(raw) {
		return nil, false
	}
	return bytes.Clone(dst[:c]), true
}

func decompressBlob(blob []byte, sz int) ([]byte, error) {
	raw := make([]byte, sz)
	d, err := lz4.UncompressBlock(blob, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptNode, err)
	}
	if d != sz {
		return nil, fmt.Errorf("%w: inflated to %d bytes, want %d", ErrCorruptNode, d, sz)
	}
	return raw, nil
}

// compress reports whether the node ends up compressed. A pinned node keeps
// its recompress mark so the last iterator leaving it compresses it.
func (n *node) compress() bool {
	if n.encoding == encodingLZF {
		return true
	}
	if n.iters > 0 {
		return false
	}
	n.recompress = false
	if n.attemptedCompress {
		return false
	}
	blob, ok := compressBlob(n.data)
	if !ok {
		n.attemptedCompress = true
		return false
	}
	n.data = blob
	n.encoding = encodingLZF
	return true
}

func (n *node) decompress() {
	n.recompress = false
	if n.encoding != encodingLZF {
		return
	}
	raw, err := decompressBlob(n.data, n.sz)
	if err != nil {
		panic(err)
	}
	n.data = raw
	n.encoding = encodingRaw
}

// decompressForUse inflates the node for one access; recompressOnly undoes it.
func (n *node) decompressForUse() {
	if n.encoding == encodingLZF {
		n.decompress()
		n.recompress = true
	}
}

func (n *node) recompressOnly() {
	if n.recompress {
		n.compress()
	}
}

// pushedSize is the node size after pushing value at where. Compressed nodes
// are not inflated for this; the worst-case record overhead is assumed.
func (n *node) pushedSize(value []byte, where int) int {
	if n.encoding == encodingLZF {
		return n.sz + len(value) + maxRecordOverhead
	}
	p := ziplist.HeaderSize
	if where == Tail {
		p = len(n.data) - ziplist.EndSize
	}
	return ziplist.InsertedSize(n.data, p, value)
}

// prevlen, string header, widened successor prevlen
const maxRecordOverhead = 5 + 5 + 4

// NodeStat describes one node for inspection.
type NodeStat struct {
	Count             int
	Size              int
	CompressedSize    int
	Compressed        bool
	AttemptedCompress bool
}
