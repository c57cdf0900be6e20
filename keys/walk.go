package keys

import (
	"fmt"
	"reflect"
)

// visit identifies a reference value on the current walk path.
type visit struct {
	ptr uintptr
	n   int
	typ reflect.Type
}

// path tracks the references entered between the root and the current value,
// so a value that reaches itself is reported instead of recursing.
type path map[visit]struct{}

// enter records rv if it is a non-empty reference. ok is false when rv is
// already on the path. leave must be called once the subtree is done.
func (p path) enter(rv reflect.Value) (leave func(), ok bool) {
	var v visit
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map:
		if rv.IsNil() {
			return func() {}, true
		}
		v = visit{ptr: rv.Pointer(), typ: rv.Type()}
	case reflect.Slice:
		if rv.Len() == 0 {
			return func() {}, true
		}
		v = visit{ptr: rv.Pointer(), n: rv.Len(), typ: rv.Type()}
	default:
		return func() {}, true
	}
	if _, seen := p[v]; seen {
		return nil, false
	}
	p[v] = struct{}{}
	return func() { delete(p, v) }, true
}

func cycleError() *ArgumentError {
	return &ArgumentError{Reason: "cyclic reference"}
}

// nestingError is reported on the container whose children would sit deeper
// than maxDepth.
func nestingError() *ArgumentError {
	return &ArgumentError{Reason: fmt.Sprintf("nesting deeper than %d levels", maxDepth)}
}
