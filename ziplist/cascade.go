package ziplist

// prevLenGrowth is a record whose 1 byte prevlen has to become 5 bytes.
type prevLenGrowth struct {
	off     int // offset before any shifting
	rawLen  int // encoded length before growing
	prevLen int // value the widened field must hold
}

// cascadeScan walks forward from the record at q, whose predecessor is now
// prevlen bytes long, and collects the run of records whose prevlen field is
// too narrow. Every widened record is 4 bytes longer, which is what its own
// successor must then store. The walk ends at the first record whose field is
// already wide enough, or at the end marker; it returns that offset and the
// prevlen value the record there must hold.
func cascadeScan(zl []byte, q, prevlen int, grow []prevLenGrowth) ([]prevLenGrowth, int, int) {
	for zl[q] != zipEnd {
		e := zipEntry(zl, q)
		if e.prevRawLen == prevlen || e.prevRawLenSize >= zipStorePrevEntryLengthSize(prevlen) {
			break
		}
		grow = append(grow, prevLenGrowth{off: q, rawLen: e.rawLen(), prevLen: prevlen})
		prevlen = e.rawLen() + 4
		q += e.rawLen()
	}
	return grow, q, prevlen
}

// cascadeUpdate fixes the prevlen fields after the record at p changed its
// length. The whole run of widened records is moved with one resize: the
// untouched suffix is shifted once, then the run is rebuilt back to front.
// Fields are never narrowed; a 5 byte field keeps its width even when the
// value would fit in one.
func cascadeUpdate(zl []byte, p int) []byte {
	if zl[p] == zipEnd {
		return zl
	}
	first := zipRawEntryLength(zl, p)
	grow, q, prevlen := cascadeScan(zl, p+first, first, nil)

	if zl[q] != zipEnd {
		width, cur := zipDecodePrevLen(zl, q)
		if cur != prevlen {
			if width == 5 {
				zipStorePrevEntryLengthLarge(zl[q:], prevlen)
			} else {
				zl[q] = byte(prevlen)
			}
		}
	}
	if len(grow) == 0 {
		return zl
	}

	extra := 4 * len(grow)
	last := grow[len(grow)-1].off
	tail := ziplistTailOffset(zl)
	if tail == last {
		tail += extra - 4
	} else {
		tail += extra
	}

	curlen := len(zl)
	zl = ziplistResize(zl, curlen+extra)
	copy(zl[q+extra:], zl[q:curlen-1])
	for i := len(grow) - 1; i >= 0; i-- {
		g := grow[i]
		dst := g.off + 4*i
		body := g.rawLen - 1
		copy(zl[dst+5:dst+5+body], zl[g.off+1:g.off+1+body])
		zipStorePrevEntryLengthLarge(zl[dst:], g.prevLen)
	}
	setZiplistTailOffset(zl, tail)
	return zl
}
