package quicklist

import (
	"io"
	"log/slog"
)

const (
	// FillMax is the largest entries-per-node cap.
	FillMax = 1<<15 - 1
	// FillMin selects the largest size class, 64KB.
	FillMin = -5
	// CompressMax is the largest compress depth.
	CompressMax = 1<<16 - 1
)

// optimizationLevel holds the node byte limits selected by fill -1 to -5.
var optimizationLevel = [...]int{4096, 8192, 16384, 32768, 65536}

// sizeSafetyLimit caps nodes under a positive (entry count) fill.
const sizeSafetyLimit = 8192

// Options configures a Quicklist at construction.
type Options struct {
	// Fill is negative to pick a byte size class (-1: 4KB ... -5: 64KB) or
	// positive for a maximum number of entries per node.
	Fill int
	// CompressDepth is how many nodes at each end stay uncompressed. 0
	// disables compression.
	CompressDepth int
	// Logger receives debug records about node splits, merges and
	// compression. Nil discards them.
	Logger *slog.Logger
	// DigestSeed keys Digest. Only the first 16 bytes are used and shorter
	// seeds are zero padded.
	DigestSeed []byte
}

// DefaultOptions returns 8KB nodes without compression.
func DefaultOptions() Options {
	return Options{Fill: -2}
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func clampFill(fill int) int {
	if fill > FillMax {
		return FillMax
	}
	if fill < FillMin {
		return FillMin
	}
	return fill
}

func clampDepth(depth int) int {
	if depth > CompressMax {
		return CompressMax
	}
	if depth < 0 {
		return 0
	}
	return depth
}
