package keys

import (
	"encoding"
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"
)

// maxDepth bounds container nesting (slices, arrays, maps, structs) of
// argument values. Pointers and interfaces are transparent and do not count.
const maxDepth = 32

// Keyer is implemented by values that provide their own key material.
// The returned string must be stable across processes.
type Keyer interface {
	CacheKey() string
}

var (
	keyerType           = reflect.TypeOf((*Keyer)(nil)).Elem()
	protoMessageType    = reflect.TypeOf((*proto.Message)(nil)).Elem()
	binaryMarshalerType = reflect.TypeOf((*encoding.BinaryMarshaler)(nil)).Elem()
)

// selfEncoding reports whether values of t supply their own serialized form.
func selfEncoding(t reflect.Type) bool {
	return t.Implements(keyerType) || t.Implements(protoMessageType) || t.Implements(binaryMarshalerType)
}

func scalarKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	default:
		return false
	}
}

// Validate checks that d can be serialized: owner and operation must be set
// and no argument may contain a callable, channel, or unsafe pointer.
func (d Descriptor) Validate() error {
	if d.Owner == "" {
		return &ArgumentError{Path: "owner", Reason: "must not be empty"}
	}
	if d.Operation == "" {
		return &ArgumentError{Path: "operation", Reason: "must not be empty"}
	}
	for i, arg := range d.Args {
		if err := validate(reflect.ValueOf(arg), 0, path{}); err != nil {
			err.Path = fmt.Sprintf("args[%d]", i) + err.Path
			return err
		}
	}
	return nil
}

// validate walks rv and returns an error whose Path is relative to rv.
// Parents prepend their own segment while unwinding. depth counts the
// containers (slices, arrays, maps, structs) above rv; a container with
// maxDepth containers above it is rejected.
func validate(rv reflect.Value, depth int, seen path) *ArgumentError {
	if !rv.IsValid() {
		return nil
	}

	switch rv.Kind() {
	case reflect.Func:
		return &ArgumentError{Reason: "callable values cannot be serialized"}
	case reflect.Chan:
		return &ArgumentError{Reason: "channels cannot be serialized"}
	case reflect.UnsafePointer:
		return &ArgumentError{Reason: "unsafe pointers cannot be serialized"}
	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return validate(rv.Elem(), depth, seen)
	}

	if selfEncoding(rv.Type()) {
		return nil
	}

	leave, ok := seen.enter(rv)
	if !ok {
		return cycleError()
	}
	defer leave()

	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return validate(rv.Elem(), depth, seen)

	case reflect.Slice, reflect.Array:
		if depth >= maxDepth {
			return nestingError()
		}
		if scalarKind(rv.Type().Elem().Kind()) {
			return nil
		}
		for i := 0; i < rv.Len(); i++ {
			if err := validate(rv.Index(i), depth+1, seen); err != nil {
				err.Path = fmt.Sprintf("[%d]", i) + err.Path
				return err
			}
		}

	case reflect.Map:
		if depth >= maxDepth {
			return nestingError()
		}
		iter := rv.MapRange()
		for iter.Next() {
			if err := validate(iter.Key(), depth+1, seen); err != nil {
				err.Path = fmt.Sprintf("[%#v](key)", iter.Key()) + err.Path
				return err
			}
			if err := validate(iter.Value(), depth+1, seen); err != nil {
				err.Path = fmt.Sprintf("[%#v]", iter.Key()) + err.Path
				return err
			}
		}

	case reflect.Struct:
		if depth >= maxDepth {
			return nestingError()
		}
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			if err := validate(rv.Field(i), depth+1, seen); err != nil {
				err.Path = "." + f.Name + err.Path
				return err
			}
		}
	}
	return nil
}
