package ziplist

import (
	"errors"
	"fmt"
)

var (
	// ErrCorrupt indicates the buffer violates the ziplist layout.
	ErrCorrupt = errors.New("ziplist: corrupt buffer")
	// ErrTooLarge indicates a mutation would grow the buffer past MaxSafetySize.
	ErrTooLarge = errors.New("ziplist: buffer too large")
)

// CorruptionError locates a layout violation. Operations on trusted buffers
// panic with it; Validate returns it.
type CorruptionError struct {
	Offset int
	Reason string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("ziplist: corrupt buffer at offset %d: %s", e.Offset, e.Reason)
}

func (e *CorruptionError) Unwrap() error {
	return ErrCorrupt
}

func corruptf(off int, format string, args ...interface{}) *CorruptionError {
	return &CorruptionError{Offset: off, Reason: fmt.Sprintf(format, args...)}
}
