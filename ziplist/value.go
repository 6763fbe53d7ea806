package ziplist

import (
	"bytes"
	"strconv"

	"github.com/pengdafu/zlcore/util"
)

// Value is a decoded record payload. Str aliases the buffer it was read from
// and is only valid until the next mutation of that buffer.
type Value struct {
	Str   []byte
	Int   int64
	IsInt bool
}

// Bytes returns the value in its string form; integers are formatted in decimal.
func (v Value) Bytes() []byte {
	if v.IsInt {
		return strconv.AppendInt(nil, v.Int, 10)
	}
	return v.Str
}

func (v Value) String() string {
	if v.IsInt {
		return strconv.FormatInt(v.Int, 10)
	}
	return string(v.Str)
}

// Clone detaches the value from the buffer it was read from.
func (v Value) Clone() Value {
	if v.IsInt {
		return v
	}
	return Value{Str: bytes.Clone(v.Str)}
}

// Equal reports whether the value matches s in its canonical string form.
func (v Value) Equal(s []byte) bool {
	if !v.IsInt {
		return bytes.Equal(v.Str, s)
	}
	var n int64
	return util.String2Int64(s, &n) && n == v.Int
}
