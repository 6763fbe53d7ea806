package quicklist

import "errors"

var (
	// ErrIteratorInvalidated is the panic value when an iterator is used after
	// the list was changed through anything but that iterator.
	ErrIteratorInvalidated = errors.New("quicklist: iterator used after the list was modified")
	// ErrStaleEntry is the panic value when an Entry outlives a modification.
	ErrStaleEntry = errors.New("quicklist: entry used after the list was modified")
	// ErrCorruptNode reports a compressed node that does not inflate to its
	// recorded size.
	ErrCorruptNode = errors.New("quicklist: corrupt compressed node")
)
