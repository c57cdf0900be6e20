// Package keys derives stable cache keys from call descriptors.
//
// A Descriptor names a computation by its owner (type or module), operation
// (method or function), ordered arguments, and a version marker (build or
// deployment generation). Derive validates the arguments, serializes the
// 4-tuple canonically, and hashes it:
//
//	key, err := keys.Derive(keys.Descriptor{
//		Owner:     "UserRepo",
//		Operation: "GetByID",
//		Args:      []any{42},
//		Version:   "3f9c2e1",
//	})
//
// Keys are hex digests, SHA-256 by default. Other algorithms are selected with
// WithAlgorithm and new ones can be added with RegisterAlgorithm.
//
// Arguments may be any value made of basic types, strings, byte slices,
// slices, arrays, maps, pointers, interfaces, and structs (exported fields
// only). Callables, channels and unsafe pointers cannot be serialized and are
// rejected with ErrInvalidArgument, at any nesting depth. Values may nest up
// to 32 levels of slices, arrays, maps and structs; pointers and interfaces
// do not count as levels. A value that refers back to itself is rejected.
// Nil pointers, slices and maps keep their type, so f([]int(nil)) and f(nil)
// derive different keys.
//
// Values can supply their own key material by implementing Keyer. Protobuf
// messages are marshaled deterministically and encoding.BinaryMarshaler
// implementations (time.Time among them) contribute their binary form.
package keys
