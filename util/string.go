package util

import (
	"math/rand"
	"strconv"
)

// GetRandomBytes returns needLen pseudo random bytes.
func GetRandomBytes(needLen int) []byte {
	ret := make([]byte, needLen)
	for i := 0; i < needLen; i++ {
		ret[i] = byte(rand.Intn(255))
	}
	return ret
}

// String2Int64 parses str only when it is the canonical decimal form of an
// int64, so that formatting the result gives back exactly str: no sign
// prefix other than '-', no leading zeros, no spaces, and no "-0".
func String2Int64[T []byte | string](str T, v *int64) bool {
	n := len(str)
	if n == 0 || n > 20 {
		return false
	}
	if n == 1 && str[0] == '0' {
		if v != nil {
			*v = 0
		}
		return true
	}
	i := 0
	if str[0] == '-' {
		i++
		if n == 1 {
			return false
		}
	}
	if str[i] < '1' || str[i] > '9' {
		return false
	}
	for j := i + 1; j < n; j++ {
		if str[j] < '0' || str[j] > '9' {
			return false
		}
	}

	parsed, err := strconv.ParseInt(string(str), 10, 64)
	if err != nil {
		return false
	}
	if v != nil {
		*v = parsed
	}
	return true
}
