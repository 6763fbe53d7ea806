package ziplist

import "math"

// Validate checks a buffer that did not come from this package, e.g. one
// loaded from a snapshot. The header is always checked; deep also walks every
// record, verifying bounds, prevlen chaining, the tail offset and the count.
func Validate(zl []byte, deep bool) error {
	if len(zl) < HeaderSize+EndSize {
		return corruptf(0, "buffer of %d bytes is shorter than the header", len(zl))
	}
	if n := ziplistBytes(zl); n != len(zl) {
		return corruptf(bytesOffset, "header claims %d bytes, buffer has %d", n, len(zl))
	}
	if zl[len(zl)-1] != zipEnd {
		return corruptf(len(zl)-1, "missing end marker")
	}
	tail := ziplistTailOffset(zl)
	if tail < HeaderSize || tail > len(zl)-EndSize {
		return corruptf(tailOffset, "tail offset %d out of range", tail)
	}
	if !deep {
		return nil
	}

	p, prev, prevRawLen, count := HeaderSize, -1, 0, 0
	for zl[p] != zipEnd {
		e, err := decodeEntry(zl, p)
		if err != nil {
			return err
		}
		if e.prevRawLen != prevRawLen {
			return corruptf(p, "prevlen %d does not match previous entry length %d", e.prevRawLen, prevRawLen)
		}
		prevRawLen = e.rawLen()
		prev = p
		p += e.rawLen()
		count++
	}
	if p != len(zl)-EndSize {
		return corruptf(p, "end marker before end of buffer")
	}
	if prev == -1 {
		prev = HeaderSize
	}
	if tail != prev {
		return corruptf(tailOffset, "tail offset %d, last entry at %d", tail, prev)
	}
	if header := ziplistLength(zl); header != math.MaxUint16 && header != count {
		return corruptf(lengthOffset, "header count %d, found %d entries", header, count)
	}
	return nil
}

// Entries decodes every record of a validated buffer.
func Entries(zl []byte) ([]EntryInfo, error) {
	if err := Validate(zl, true); err != nil {
		return nil, err
	}
	var out []EntryInfo
	for p := HeaderSize; zl[p] != zipEnd; {
		info, err := Decode(zl, p)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
		p += info.RawLen()
	}
	return out, nil
}
