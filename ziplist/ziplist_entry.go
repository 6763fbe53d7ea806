package ziplist

import (
	"encoding/binary"
	"math"

	"github.com/pengdafu/zlcore/util"
)

const (
	zipEnd        = 255
	zipBigPrevLen = 254
)

const (
	zipStrMask    = 0xc0
	zipStr06B     = 0 << 6
	zipStr14B     = 1 << 6
	zipStr32B     = 2 << 6
	zipInt16B     = zipStrMask | 0<<4
	zipInt32B     = zipStrMask | 1<<4
	zipInt64B     = zipStrMask | 2<<4
	zipInt24B     = zipStrMask | 3<<4
	zipInt8B      = 0xfe
	zipIntImmMin  = 0xf1
	zipIntImmMax  = 0xfd
	zipIntImmMask = 0x0f
)

const (
	int24Max = 1<<23 - 1
	int24Min = -int24Max - 1
)

// zlentry 是一个记录解码后的视图，不会被持久化
type zlentry struct {
	prevRawLenSize int   // 前一个元素长度编码字节
	prevRawLen     int   // 前一个元素长度
	lenSize        int   // 当前元素长度编码字节
	len            int   // 当前元素长度
	headerSize     int   // prevRawLenSize + lenSize
	encoding       uint8 // zipStr* 或者 zipInt*
	p              int   // 在 ziplist 中的偏移
}

func (e *zlentry) rawLen() int {
	return e.headerSize + e.len
}

func zipIsStr(enc uint8) bool {
	return enc&zipStrMask < zipStrMask
}

func zipEntryEncoding(b uint8) uint8 {
	if b < zipStrMask {
		return b & zipStrMask
	}
	return b
}

// zipIntSize returns the payload size of an integer encoding, ok=false when
// the byte is not a valid integer encoding.
func zipIntSize(encoding uint8) (int, bool) {
	switch encoding {
	case zipInt8B:
		return 1, true
	case zipInt16B:
		return 2, true
	case zipInt24B:
		return 3, true
	case zipInt32B:
		return 4, true
	case zipInt64B:
		return 8, true
	}
	if encoding >= zipIntImmMin && encoding <= zipIntImmMax {
		return 0, true
	}
	return 0, false
}

func zipStorePrevEntryLengthSize(l int) int {
	if l < zipBigPrevLen {
		return 1
	}
	return 5
}

func zipStorePrevEntryLengthLarge(p []byte, l int) int {
	p[0] = zipBigPrevLen
	binary.LittleEndian.PutUint32(p[1:5], uint32(l))
	return 5
}

// zipStorePrevEntryLength writes l in the smallest width and returns it.
func zipStorePrevEntryLength(p []byte, l int) int {
	if l < zipBigPrevLen {
		p[0] = byte(l)
		return 1
	}
	return zipStorePrevEntryLengthLarge(p, l)
}

func zipEncodingSize(encoding uint8, rawlen int) int {
	if !zipIsStr(encoding) {
		return 1
	}
	switch {
	case rawlen <= 0x3f:
		return 1
	case rawlen <= 0x3fff:
		return 2
	default:
		return 5
	}
}

func zipStoreEntryEncoding(p []byte, encoding uint8, rawlen int) int {
	if !zipIsStr(encoding) {
		p[0] = encoding
		return 1
	}
	switch {
	case rawlen <= 0x3f:
		p[0] = zipStr06B | byte(rawlen)
		return 1
	case rawlen <= 0x3fff:
		p[0] = zipStr14B | byte((rawlen>>8)&0x3f)
		p[1] = byte(rawlen)
		return 2
	default:
		p[0] = zipStr32B
		binary.BigEndian.PutUint32(p[1:5], uint32(rawlen))
		return 5
	}
}

// zipTryEncoding checks whether entry is the canonical decimal form of an
// integer and picks the smallest integer encoding able to hold it.
func zipTryEncoding(entry []byte) (int64, uint8, bool) {
	if len(entry) >= 32 || len(entry) == 0 {
		return 0, 0, false
	}
	var value int64
	if !util.String2Int64(entry, &value) {
		return 0, 0, false
	}
	return value, zipIntEncoding(value), true
}

func zipIntEncoding(value int64) uint8 {
	switch {
	case value >= 0 && value <= 12:
		return zipIntImmMin + uint8(value)
	case value >= math.MinInt8 && value <= math.MaxInt8:
		return zipInt8B
	case value >= math.MinInt16 && value <= math.MaxInt16:
		return zipInt16B
	case value >= int24Min && value <= int24Max:
		return zipInt24B
	case value >= math.MinInt32 && value <= math.MaxInt32:
		return zipInt32B
	default:
		return zipInt64B
	}
}

func zipSaveInteger(p []byte, value int64, encoding uint8) {
	switch encoding {
	case zipInt8B:
		p[0] = byte(int8(value))
	case zipInt16B:
		binary.LittleEndian.PutUint16(p, uint16(int16(value)))
	case zipInt24B:
		v := uint32(int32(value))
		p[0], p[1], p[2] = byte(v), byte(v>>8), byte(v>>16)
	case zipInt32B:
		binary.LittleEndian.PutUint32(p, uint32(int32(value)))
	case zipInt64B:
		binary.LittleEndian.PutUint64(p, uint64(value))
	}
}

func zipLoadInteger(p []byte, encoding uint8) int64 {
	switch encoding {
	case zipInt8B:
		return int64(int8(p[0]))
	case zipInt16B:
		return int64(int16(binary.LittleEndian.Uint16(p)))
	case zipInt24B:
		v := uint32(p[0])<<8 | uint32(p[1])<<16 | uint32(p[2])<<24
		return int64(int32(v) >> 8)
	case zipInt32B:
		return int64(int32(binary.LittleEndian.Uint32(p)))
	case zipInt64B:
		return int64(binary.LittleEndian.Uint64(p))
	}
	if encoding >= zipIntImmMin && encoding <= zipIntImmMax {
		return int64(encoding&zipIntImmMask) - 1
	}
	panic(corruptf(0, "invalid integer encoding 0x%02x", encoding))
}

// encoded is a value ready to be written as a record payload.
type encoded struct {
	str      []byte
	value    int64
	encoding uint8
}

func encodeValue(s []byte) encoded {
	if v, enc, ok := zipTryEncoding(s); ok {
		return encoded{value: v, encoding: enc}
	}
	return encoded{str: s, encoding: zipStr06B}
}

// payloadSize is encoding header plus data, without prevlen.
func (e *encoded) payloadSize() int {
	if zipIsStr(e.encoding) {
		return zipEncodingSize(e.encoding, len(e.str)) + len(e.str)
	}
	n, _ := zipIntSize(e.encoding)
	return 1 + n
}

func (e *encoded) write(p []byte) int {
	n := zipStoreEntryEncoding(p, e.encoding, len(e.str))
	if zipIsStr(e.encoding) {
		n += copy(p[n:], e.str)
	} else {
		zipSaveInteger(p[n:], e.value, e.encoding)
		sz, _ := zipIntSize(e.encoding)
		n += sz
	}
	return n
}

// decodeEntry decodes the record at offset p, checking every length against
// the buffer bounds.
func decodeEntry(zl []byte, p int) (zlentry, error) {
	var e zlentry
	e.p = p
	end := len(zl)
	if p < HeaderSize || p >= end {
		return e, corruptf(p, "entry offset out of range")
	}
	if zl[p] < zipBigPrevLen {
		e.prevRawLenSize = 1
		e.prevRawLen = int(zl[p])
	} else {
		if zl[p] == zipEnd {
			return e, corruptf(p, "unexpected end marker")
		}
		if p+5 > end {
			return e, corruptf(p, "prevlen exceeds buffer")
		}
		e.prevRawLenSize = 5
		e.prevRawLen = int(binary.LittleEndian.Uint32(zl[p+1 : p+5]))
	}

	q := p + e.prevRawLenSize
	if q >= end {
		return e, corruptf(p, "encoding exceeds buffer")
	}
	e.encoding = zipEntryEncoding(zl[q])
	switch {
	case e.encoding == zipStr06B:
		e.lenSize = 1
		e.len = int(zl[q] & 0x3f)
	case e.encoding == zipStr14B:
		if q+2 > end {
			return e, corruptf(p, "string length exceeds buffer")
		}
		e.lenSize = 2
		e.len = int(zl[q]&0x3f)<<8 | int(zl[q+1])
	case e.encoding == zipStr32B:
		if q+5 > end {
			return e, corruptf(p, "string length exceeds buffer")
		}
		e.lenSize = 5
		e.len = int(binary.BigEndian.Uint32(zl[q+1 : q+5]))
	case e.encoding < zipStrMask:
		return e, corruptf(p, "invalid string encoding 0x%02x", zl[q])
	default:
		n, ok := zipIntSize(e.encoding)
		if !ok {
			return e, corruptf(p, "invalid integer encoding 0x%02x", e.encoding)
		}
		e.lenSize = 1
		e.len = n
	}
	e.headerSize = e.prevRawLenSize + e.lenSize
	// the end marker must still follow the record
	if e.len < 0 || e.len > end || p+e.headerSize+e.len >= end {
		return e, corruptf(p, "entry of %d bytes exceeds buffer", e.headerSize+e.len)
	}
	return e, nil
}

// zipEntry is decodeEntry for buffers that are trusted to be well formed;
// a malformed record is fatal.
func zipEntry(zl []byte, p int) zlentry {
	e, err := decodeEntry(zl, p)
	if err != nil {
		panic(err)
	}
	return e
}

func zipRawEntryLength(zl []byte, p int) int {
	e := zipEntry(zl, p)
	return e.rawLen()
}

// zipPrevLenByteDiff is the change in prevlen width at p if it had to store l.
func zipPrevLenByteDiff(zl []byte, p int, l int) int {
	cur := 1
	if zl[p] >= zipBigPrevLen {
		cur = 5
	}
	return zipStorePrevEntryLengthSize(l) - cur
}

// EntryInfo describes one decoded record.
type EntryInfo struct {
	Offset     int
	PrevLen    int
	PrevLenLen int
	HeaderLen  int
	Encoding   uint8
	PayloadLen int
	Value      Value
}

// RawLen is the full encoded length of the record.
func (e EntryInfo) RawLen() int {
	return e.HeaderLen + e.PayloadLen
}

// Decode returns the layout of the record at offset p.
func Decode(zl []byte, p int) (EntryInfo, error) {
	e, err := decodeEntry(zl, p)
	if err != nil {
		return EntryInfo{}, err
	}
	return EntryInfo{
		Offset:     p,
		PrevLen:    e.prevRawLen,
		PrevLenLen: e.prevRawLenSize,
		HeaderLen:  e.headerSize,
		Encoding:   e.encoding,
		PayloadLen: e.len,
		Value:      entryValue(zl, &e),
	}, nil
}

func entryValue(zl []byte, e *zlentry) Value {
	data := e.p + e.headerSize
	if zipIsStr(e.encoding) {
		return Value{Str: zl[data : data+e.len]}
	}
	return Value{Int: zipLoadInteger(zl[data:], e.encoding), IsInt: true}
}

// EncodingName names an encoding byte as reported in EntryInfo.Encoding.
func EncodingName(enc uint8) string {
	switch {
	case enc == zipStr06B:
		return "str6"
	case enc == zipStr14B:
		return "str14"
	case enc == zipStr32B:
		return "str32"
	case enc == zipInt16B:
		return "int16"
	case enc == zipInt32B:
		return "int32"
	case enc == zipInt64B:
		return "int64"
	case enc == zipInt24B:
		return "int24"
	case enc == zipInt8B:
		return "int8"
	case enc >= zipIntImmMin && enc <= zipIntImmMax:
		return "imm"
	}
	return "unknown"
}
