package quicklist

import (
	"encoding/binary"

	"github.com/dchest/siphash"
)

const digestKeySize = 16

// digestKey zero pads or truncates seed to a siphash key.
func digestKey(seed []byte) []byte {
	key := make([]byte, digestKeySize)
	copy(key, seed)
	return key
}

// Digest fingerprints the list contents in order. It depends only on the
// element values and the list's digest seed, not on how the values are split
// across nodes or encoded.
func (ql *Quicklist) Digest() uint64 {
	h := siphash.New(ql.digestKey)
	var l [4]byte
	it := ql.Iterator(Head)
	defer it.Release()
	for e, ok := it.Next(); ok; e, ok = it.Next() {
		b := e.Value.Bytes()
		binary.LittleEndian.PutUint32(l[:], uint32(len(b)))
		h.Write(l[:])
		h.Write(b)
	}
	return h.Sum64()
}
