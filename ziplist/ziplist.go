// Package ziplist implements the compact record buffer: a single contiguous
// byte slice holding a header, a sequence of self-describing records and an
// end marker.
//
//	<zlbytes u32> <zltail u32> <zllen u16> <entry> ... <entry> <0xff>
//
// Every record is prefixed with the encoded length of its predecessor so the
// buffer can be walked in both directions. Positions inside a buffer are byte
// offsets; an offset is only meaningful for the buffer returned by the most
// recent mutation.
package ziplist

import (
	"bytes"
	"encoding/binary"
	"math"
)

const (
	bytesOffset  = 0
	tailOffset   = 4
	lengthOffset = 8
)

const (
	// HeaderSize 两个32bit分别表示总共占用的字节数和最后一个item的偏移量，一个16bit表示一共有多少item
	HeaderSize = 4*2 + 2

	// EndSize 1个字节表示ziplist的结束标记
	EndSize = 1
)

const (
	Head = 0
	Tail = 1
)

// MaxSafetySize bounds the byte size of a single buffer.
const MaxSafetySize = 1 << 30

func ziplistBytes(zl []byte) int {
	return int(binary.LittleEndian.Uint32(zl[bytesOffset:]))
}

func setZiplistBytes(zl []byte, n int) {
	binary.LittleEndian.PutUint32(zl[bytesOffset:], uint32(n))
}

func ziplistTailOffset(zl []byte) int {
	return int(binary.LittleEndian.Uint32(zl[tailOffset:]))
}

func setZiplistTailOffset(zl []byte, off int) {
	binary.LittleEndian.PutUint32(zl[tailOffset:], uint32(off))
}

func ziplistLength(zl []byte) int {
	return int(binary.LittleEndian.Uint16(zl[lengthOffset:]))
}

func setZiplistLength(zl []byte, n int) {
	binary.LittleEndian.PutUint16(zl[lengthOffset:], uint16(n))
}

// ziplistIncrLength leaves the counter alone once it saturated; Len has to
// rescan from then on.
func ziplistIncrLength(zl []byte, incr int) {
	l := ziplistLength(zl)
	if l >= math.MaxUint16 {
		return
	}
	l += incr
	if l > math.MaxUint16 {
		l = math.MaxUint16
	}
	setZiplistLength(zl, l)
}

func ziplistEntryEnd(zl []byte) int {
	return len(zl) - 1
}

// ziplistResize changes the buffer to exactly n bytes and rewrites the total
// length and end marker. Growth beyond the capacity allocates a new block.
func ziplistResize(zl []byte, n int) []byte {
	if n <= cap(zl) {
		zl = zl[:n]
	} else {
		nz := make([]byte, n)
		copy(nz, zl)
		zl = nz
	}
	setZiplistBytes(zl, n)
	zl[n-1] = zipEnd
	return zl
}

// zipDecodePrevLen returns the width and value of the prevlen field at p.
func zipDecodePrevLen(zl []byte, p int) (int, int) {
	if zl[p] < zipBigPrevLen {
		return 1, int(zl[p])
	}
	if p+5 > len(zl) {
		panic(corruptf(p, "prevlen exceeds buffer"))
	}
	return 5, int(binary.LittleEndian.Uint32(zl[p+1:]))
}

// New creates an empty buffer.
func New() []byte {
	n := HeaderSize + EndSize
	zl := make([]byte, n)
	setZiplistBytes(zl, n)
	setZiplistTailOffset(zl, HeaderSize)
	setZiplistLength(zl, 0)
	zl[n-1] = zipEnd
	return zl
}

// SafeToAdd reports whether the buffer may grow by add bytes.
func SafeToAdd(zl []byte, add int) bool {
	l := 0
	if len(zl) > 0 {
		l = ziplistBytes(zl)
	}
	return l+add <= MaxSafetySize
}

// BlobLen is the total byte size of the buffer.
func BlobLen(zl []byte) int {
	return ziplistBytes(zl)
}

// Len returns the number of records. Once the 16 bit counter saturated the
// buffer is scanned, and the counter restored if the count fits again.
func Len(zl []byte) int {
	if l := ziplistLength(zl); l < math.MaxUint16 {
		return l
	}
	l := 0
	for p := HeaderSize; zl[p] != zipEnd; p += zipRawEntryLength(zl, p) {
		l++
	}
	if l < math.MaxUint16 {
		setZiplistLength(zl, l)
	}
	return l
}

type insertPlan struct {
	enc        encoded
	prevlen    int
	reqlen     int
	nextdiff   int
	forceLarge bool
}

// planInsert sizes a new record for s placed at p. The successor's prevlen
// is never narrowed: when it is wider than needed it keeps its 5 byte form.
func planInsert(zl []byte, p int, s []byte) insertPlan {
	var pl insertPlan
	if zl[p] != zipEnd {
		_, pl.prevlen = zipDecodePrevLen(zl, p)
	} else if t := ziplistTailOffset(zl); zl[t] != zipEnd {
		pl.prevlen = zipRawEntryLength(zl, t)
	}
	pl.enc = encodeValue(s)
	pl.reqlen = zipStorePrevEntryLengthSize(pl.prevlen) + pl.enc.payloadSize()
	if zl[p] != zipEnd {
		pl.nextdiff = zipPrevLenByteDiff(zl, p, pl.reqlen)
		if pl.nextdiff < 0 {
			pl.nextdiff = 0
			pl.forceLarge = true
		}
	}
	return pl
}

func __ziplistInsert(zl []byte, p int, s []byte) ([]byte, error) { // p 是要被插入的位置
	curlen := len(zl)
	pl := planInsert(zl, p, s)
	if !SafeToAdd(zl, pl.reqlen+pl.nextdiff) {
		return zl, ErrTooLarge
	}
	atEnd := zl[p] == zipEnd
	reqlen, nextdiff := pl.reqlen, pl.nextdiff

	zl = ziplistResize(zl, curlen+reqlen+nextdiff)
	if !atEnd {
		// the successor's prevlen grows by nextdiff, so take that many bytes
		// from before p along with it
		copy(zl[p+reqlen:], zl[p-nextdiff:curlen-1])
		q := p + reqlen
		if pl.forceLarge || nextdiff > 0 {
			zipStorePrevEntryLengthLarge(zl[q:], reqlen)
		} else {
			zipStorePrevEntryLength(zl[q:], reqlen)
		}

		tail := ziplistTailOffset(zl) + reqlen
		if zl[q+zipRawEntryLength(zl, q)] != zipEnd {
			tail += nextdiff
		}
		setZiplistTailOffset(zl, tail)
	} else {
		setZiplistTailOffset(zl, p)
	}

	if nextdiff != 0 {
		zl = cascadeUpdate(zl, p+reqlen)
	}

	n := zipStorePrevEntryLength(zl[p:], pl.prevlen)
	pl.enc.write(zl[p+n:])
	ziplistIncrLength(zl, 1)
	return zl, nil
}

// __ziplistDelete removes up to num records starting at p.
func __ziplistDelete(zl []byte, p int, num int) []byte {
	if num <= 0 || zl[p] == zipEnd {
		return zl
	}
	curlen := len(zl)
	first := zipEntry(zl, p)
	q, deleted := p, 0
	for zl[q] != zipEnd && deleted < num {
		q += zipRawEntryLength(zl, q)
		deleted++
	}
	totlen := q - p
	nextdiff := 0

	if zl[q] != zipEnd {
		width, _ := zipDecodePrevLen(zl, q)
		nextdiff = zipPrevLenByteDiff(zl, q, first.prevRawLen)
		if nextdiff < 0 {
			nextdiff = 0
		}
		// the deleted span is at least 6 bytes whenever nextdiff is 4
		q -= nextdiff
		if width+nextdiff == 5 {
			zipStorePrevEntryLengthLarge(zl[q:], first.prevRawLen)
		} else {
			zl[q] = byte(first.prevRawLen)
		}

		tail := ziplistTailOffset(zl) - totlen
		if zl[q+zipRawEntryLength(zl, q)] != zipEnd {
			tail += nextdiff
		}
		setZiplistTailOffset(zl, tail)
		copy(zl[p:], zl[q:curlen-1])
	} else {
		setZiplistTailOffset(zl, p-first.prevRawLen)
	}

	zl = ziplistResize(zl, curlen-(totlen-nextdiff))
	ziplistIncrLength(zl, -deleted)
	if nextdiff != 0 {
		zl = cascadeUpdate(zl, p)
	}
	return zl
}

// Push appends s at the head or tail.
func Push(zl, s []byte, where int) ([]byte, error) {
	p := ziplistEntryEnd(zl)
	if where == Head {
		p = HeaderSize
	}
	return __ziplistInsert(zl, p, s)
}

// Insert places s before the record at p; p may be the end marker offset.
// s must not alias zl.
func Insert(zl []byte, p int, s []byte) ([]byte, error) {
	return __ziplistInsert(zl, p, s)
}

// InsertedSize is the exact byte size zl would have after Insert(zl, p, s),
// cascading prevlen growth included.
func InsertedSize(zl []byte, p int, s []byte) int {
	pl := planInsert(zl, p, s)
	size := len(zl) + pl.reqlen + pl.nextdiff
	if pl.nextdiff > 0 {
		next := zipRawEntryLength(zl, p)
		grow, _, _ := cascadeScan(zl, p+next, next+pl.nextdiff, nil)
		size += 4 * len(grow)
	}
	return size
}

// Delete removes the record at p. The record that followed it, if any, now
// starts at p.
func Delete(zl []byte, p int) []byte {
	return __ziplistDelete(zl, p, 1)
}

// DeleteRange removes num records starting at index.
func DeleteRange(zl []byte, index, num int) []byte {
	p, ok := Index(zl, index)
	if !ok {
		return zl
	}
	return __ziplistDelete(zl, p, num)
}

// Replace overwrites the record at p with s. When the encoded size does not
// change the record is patched in place.
func Replace(zl []byte, p int, s []byte) ([]byte, error) {
	e := zipEntry(zl, p)
	enc := encodeValue(s)
	if e.prevRawLenSize+enc.payloadSize() == e.rawLen() {
		enc.write(zl[p+e.prevRawLenSize:])
		return zl, nil
	}
	if !SafeToAdd(zl, enc.payloadSize()+5+4) {
		return zl, ErrTooLarge
	}
	zl = __ziplistDelete(zl, p, 1)
	return __ziplistInsert(zl, p, s)
}

// Index returns the offset of the record at index; negative indexes count
// from the tail.
func Index(zl []byte, index int) (int, bool) {
	var p int
	if index < 0 {
		index = -index - 1
		p = ziplistTailOffset(zl)
		if zl[p] == zipEnd {
			return 0, false
		}
		_, prevlen := zipDecodePrevLen(zl, p)
		for prevlen > 0 && index > 0 {
			p -= prevlen
			_, prevlen = zipDecodePrevLen(zl, p)
			index--
		}
	} else {
		p = HeaderSize
		for zl[p] != zipEnd && index > 0 {
			p += zipRawEntryLength(zl, p)
			index--
		}
	}
	if zl[p] == zipEnd || index > 0 {
		return 0, false
	}
	return p, true
}

// Next returns the offset of the record after p.
func Next(zl []byte, p int) (int, bool) {
	if zl[p] == zipEnd {
		return 0, false
	}
	p += zipRawEntryLength(zl, p)
	if zl[p] == zipEnd {
		return 0, false
	}
	return p, true
}

// Prev returns the offset of the record before p. From the end marker it
// returns the tail record.
func Prev(zl []byte, p int) (int, bool) {
	if zl[p] == zipEnd {
		t := ziplistTailOffset(zl)
		if zl[t] == zipEnd {
			return 0, false
		}
		return t, true
	}
	if p == HeaderSize {
		return 0, false
	}
	_, prevlen := zipDecodePrevLen(zl, p)
	return p - prevlen, true
}

// Get decodes the record at p.
func Get(zl []byte, p int) (Value, bool) {
	if p < HeaderSize || p >= len(zl) || zl[p] == zipEnd {
		return Value{}, false
	}
	e := zipEntry(zl, p)
	return entryValue(zl, &e), true
}

// Compare reports whether the record at p equals s.
func Compare(zl []byte, p int, s []byte) bool {
	v, ok := Get(zl, p)
	return ok && v.Equal(s)
}

// Find scans forward from p for a record equal to v, checking one record and
// then skipping skip records.
func Find(zl []byte, p int, v []byte, skip int) (int, bool) {
	skipCnt := 0
	var vll int64
	vIsInt, vEncoded := false, false

	for zl[p] != zipEnd {
		e := zipEntry(zl, p)
		q := p + e.headerSize
		if skipCnt == 0 {
			if zipIsStr(e.encoding) {
				if e.len == len(v) && bytes.Equal(zl[q:q+e.len], v) {
					return p, true
				}
			} else {
				if !vEncoded {
					vll, _, vIsInt = zipTryEncoding(v)
					vEncoded = true
				}
				if vIsInt && zipLoadInteger(zl[q:], e.encoding) == vll {
					return p, true
				}
			}
			skipCnt = skip
		} else {
			skipCnt--
		}
		p = q + e.len
	}
	return 0, false
}

// Merge appends the records of second to first. Both inputs are consumed;
// only the returned buffer may be used afterwards.
func Merge(first, second []byte) ([]byte, error) {
	if ziplistLength(second) == 0 {
		return first, nil
	}
	if ziplistLength(first) == 0 {
		return second, nil
	}
	if !SafeToAdd(first, len(second)-HeaderSize-EndSize) {
		return first, ErrTooLarge
	}
	firstBytes := len(first)
	firstTail := ziplistTailOffset(first)
	count := ziplistLength(first) + ziplistLength(second)

	zl := ziplistResize(first, firstBytes+len(second)-HeaderSize-EndSize)
	copy(zl[firstBytes-EndSize:], second[HeaderSize:])
	setZiplistTailOffset(zl, ziplistTailOffset(second)-HeaderSize+firstBytes-EndSize)
	if count > math.MaxUint16 {
		count = math.MaxUint16
	}
	setZiplistLength(zl, count)
	// second's head still claims prevlen 0
	return cascadeUpdate(zl, firstTail), nil
}
