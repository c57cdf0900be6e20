package memocache

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/memocache/keys"
)

// ErrInvalidArgument matches key derivation failures (see keys.ArgumentError).
var ErrInvalidArgument = keys.ErrInvalidArgument

var ErrNilFunc = errors.New("memocache: nil compute func")

// BackendError is a provider or codec failure around Get/Set/Del.
// Op is one of "get", "set", "del" or "encode".
type BackendError struct {
	Op  string
	Key string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("memocache: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// VersionError is a failure of the configured version source.
type VersionError struct {
	Err error
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("memocache: version marker: %v", e.Err)
}

func (e *VersionError) Unwrap() error { return e.Err }
