package keys

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports a descriptor that cannot take part in key
	// derivation. Match with errors.Is; the concrete error is *ArgumentError.
	ErrInvalidArgument = errors.New("keys: invalid argument")

	ErrUnknownAlgorithm = errors.New("keys: unknown hash algorithm")
)

// ArgumentError describes where and why a descriptor was rejected.
type ArgumentError struct {
	// Path locates the value, e.g. "owner", "args[1]", `args[0].Filter["k"]`.
	Path   string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("keys: invalid argument at %s: %s", e.Path, e.Reason)
}

func (e *ArgumentError) Is(target error) bool { return target == ErrInvalidArgument }
