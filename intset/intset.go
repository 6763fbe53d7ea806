// Package intset is a sorted set of integers packed into one byte buffer
// using the narrowest element width that fits every member.
//
// Serialized layout, little endian:
//
//	u32 encoding | u32 length | length * encoding bytes
package intset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand"
)

const (
	EncInt16 = 2
	EncInt32 = 4
	EncInt64 = 8
)

// HeaderSize is the size of the encoding and length fields.
const HeaderSize = 8

var ErrCorrupt = errors.New("intset: corrupt buffer")

type IntSet struct {
	length   uint32
	contents []byte
	encoding uint8
}

func New() *IntSet {
	return &IntSet{encoding: EncInt16}
}

func _intsetValueEncoding(v int64) uint8 {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return EncInt64
	} else if v < math.MinInt16 || v > math.MaxInt16 {
		return EncInt32
	} else {
		return EncInt16
	}
}

func (is *IntSet) set(pos int, value int64) {
	switch is.encoding {
	case EncInt64:
		binary.LittleEndian.PutUint64(is.contents[pos*EncInt64:], uint64(value))
	case EncInt32:
		binary.LittleEndian.PutUint32(is.contents[pos*EncInt32:], uint32(int32(value)))
	default:
		binary.LittleEndian.PutUint16(is.contents[pos*EncInt16:], uint16(int16(value)))
	}
}

func (is *IntSet) resize(_len uint32) {
	contents := make([]byte, int(_len)*int(is.encoding))
	copy(contents, is.contents)
	is.contents = contents
}

func getEncoded(contents []byte, pos int, enc uint8) int64 {
	switch enc {
	case EncInt64:
		return int64(binary.LittleEndian.Uint64(contents[pos*EncInt64:]))
	case EncInt32:
		return int64(int32(binary.LittleEndian.Uint32(contents[pos*EncInt32:])))
	default:
		return int64(int16(binary.LittleEndian.Uint16(contents[pos*EncInt16:])))
	}
}

func (is *IntSet) get(pos int) int64 {
	return getEncoded(is.contents, pos, is.encoding)
}

// upgradeAndAdd widens every member to the encoding of value, which lies
// outside the current range and so goes to one of the ends.
func (is *IntSet) upgradeAndAdd(value int64) {
	old := is.contents
	curEnc := is.encoding
	length := int(is.length)
	prepend := 0
	if value < 0 {
		prepend = 1
	}

	is.encoding = _intsetValueEncoding(value)
	is.contents = make([]byte, (length+1)*int(is.encoding))
	for i := length - 1; i >= 0; i-- {
		is.set(i+prepend, getEncoded(old, i, curEnc))
	}

	if prepend > 0 {
		is.set(0, value)
	} else {
		is.set(length, value)
	}
	is.length++
}

// search returns the position of value, or where it would be inserted.
func (is *IntSet) search(value int64) (int, bool) {
	if is.length == 0 {
		return 0, false
	}
	min, max := 0, int(is.length)-1
	if value > is.get(max) {
		return int(is.length), false
	} else if value < is.get(0) {
		return 0, false
	}

	for max >= min {
		mid := int(uint(min+max) >> 1)
		cur := is.get(mid)
		if value > cur {
			min = mid + 1
		} else if value < cur {
			max = mid - 1
		} else {
			return mid, true
		}
	}
	return min, false
}

func (is *IntSet) moveTail(from, to int) {
	enc := int(is.encoding)
	n := (int(is.length) - from) * enc
	copy(is.contents[to*enc:to*enc+n], is.contents[from*enc:from*enc+n])
}

// Add inserts value and reports whether it was not already present.
func (is *IntSet) Add(value int64) bool {
	if _intsetValueEncoding(value) > is.encoding {
		is.upgradeAndAdd(value)
		return true
	}
	pos, found := is.search(value)
	if found {
		return false
	}
	is.resize(is.length + 1)
	if pos < int(is.length) {
		is.moveTail(pos, pos+1)
	}
	is.set(pos, value)
	is.length++
	return true
}

// Remove deletes value and reports whether it was present. The encoding is
// never narrowed.
func (is *IntSet) Remove(value int64) bool {
	if _intsetValueEncoding(value) > is.encoding {
		return false
	}
	pos, found := is.search(value)
	if !found {
		return false
	}
	if pos < int(is.length)-1 {
		is.moveTail(pos+1, pos)
	}
	is.length--
	is.resize(is.length)
	return true
}

func (is *IntSet) Find(value int64) bool {
	if _intsetValueEncoding(value) > is.encoding {
		return false
	}
	_, found := is.search(value)
	return found
}

// Get returns the member at pos in ascending order.
func (is *IntSet) Get(pos int) (int64, bool) {
	if pos < 0 || pos >= int(is.length) {
		return 0, false
	}
	return is.get(pos), true
}

func (is *IntSet) Len() int {
	return int(is.length)
}

// Encoding is the width in bytes of every member.
func (is *IntSet) Encoding() int {
	return int(is.encoding)
}

// BlobLen is the size of the serialized form.
func (is *IntSet) BlobLen() int {
	return HeaderSize + int(is.length)*int(is.encoding)
}

func (is *IntSet) Min() (int64, bool) {
	return is.Get(0)
}

func (is *IntSet) Max() (int64, bool) {
	return is.Get(int(is.length) - 1)
}

// Random returns a uniformly chosen member.
func (is *IntSet) Random(rnd *rand.Rand) (int64, bool) {
	if is.length == 0 {
		return 0, false
	}
	return is.get(rnd.Intn(int(is.length))), true
}

// Bytes serializes the set.
func (is *IntSet) Bytes() []byte {
	b := make([]byte, is.BlobLen())
	binary.LittleEndian.PutUint32(b, uint32(is.encoding))
	binary.LittleEndian.PutUint32(b[4:], is.length)
	copy(b[HeaderSize:], is.contents)
	return b
}

// Load parses a serialized set. Sizes are always checked; members must be
// strictly ascending. A persisted set is never empty.
func Load(b []byte) (*IntSet, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, len(b))
	}
	enc := binary.LittleEndian.Uint32(b)
	if enc != EncInt16 && enc != EncInt32 && enc != EncInt64 {
		return nil, fmt.Errorf("%w: unknown encoding %d", ErrCorrupt, enc)
	}
	length := binary.LittleEndian.Uint32(b[4:])
	if length == 0 {
		return nil, fmt.Errorf("%w: empty set", ErrCorrupt)
	}
	if uint64(len(b)-HeaderSize) != uint64(length)*uint64(enc) {
		return nil, fmt.Errorf("%w: %d members of %d bytes in %d bytes", ErrCorrupt, length, enc, len(b)-HeaderSize)
	}

	is := &IntSet{length: length, encoding: uint8(enc), contents: append([]byte(nil), b[HeaderSize:]...)}
	prev := is.get(0)
	for i := 1; i < int(length); i++ {
		cur := is.get(i)
		if cur <= prev {
			return nil, fmt.Errorf("%w: member %d out of order", ErrCorrupt, i)
		}
		prev = cur
	}
	return is, nil
}
