package keys

import (
	"bytes"
	"encoding"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"sort"

	"google.golang.org/protobuf/proto"
)

// Encoder turns a validated descriptor into the bytes that get hashed.
// Implementations must be deterministic across processes and platforms.
type Encoder interface {
	Encode(d Descriptor) ([]byte, error)
}

// Canonical layout:
//
//	magic(4) | ver(1) | owner | operation | list(args) | version
//
// Every value is tag(1) followed by a tag-specific body. Lengths and counts
// are u32 be, integers are 64-bit be. Numeric bodies start with the
// reflect.Kind byte so int(1), int64(1) and uint(1) stay distinct.
// Nil pointers, slices and maps carry their type name (tagTypedNil); only an
// untyped or interface nil is a bare tagNil.
const canonVersion byte = 2

const (
	tagNil byte = iota
	tagFalse
	tagTrue
	tagInt
	tagUint
	tagFloat
	tagComplex
	tagString
	tagBytes
	tagList
	tagArray
	tagMap
	tagStruct
	tagKeyer
	tagProto
	tagBinary
	tagTypedNil
)

var (
	canonMagic = [...]byte{'M', 'K', 'E', 'Y'}

	// all NaNs encode as one quiet NaN
	canonicalNaN = math.Float64bits(math.NaN())
)

var protoMarshal = proto.MarshalOptions{Deterministic: true}

// Canonical is the default Encoder: a type-tagged, length-prefixed binary
// encoding. Maps are ordered by the encoded bytes of their keys, structs
// contribute their type name and exported fields in declaration order.
type Canonical struct{}

var _ Encoder = Canonical{}

func (Canonical) Encode(d Descriptor) ([]byte, error) {
	var e canonEncoder
	e.buf.Grow(64)
	e.buf.Write(canonMagic[:])
	e.buf.WriteByte(canonVersion)

	e.str(tagString, d.Owner)
	e.str(tagString, d.Operation)

	e.buf.WriteByte(tagList)
	e.u32(len(d.Args))
	e.seen = path{}
	for i, arg := range d.Args {
		if err := e.value(reflect.ValueOf(arg), 0); err != nil {
			err.Path = fmt.Sprintf("args[%d]", i) + err.Path
			return nil, err
		}
	}

	e.str(tagString, d.Version)
	return e.buf.Bytes(), nil
}

type canonEncoder struct {
	buf  bytes.Buffer
	seen path // shared with map key/value sub-encoders
}

func (e *canonEncoder) u32(n int) {
	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(n))
	e.buf.Write(u4[:])
}

func (e *canonEncoder) u64(n uint64) {
	var u8 [8]byte
	binary.BigEndian.PutUint64(u8[:], n)
	e.buf.Write(u8[:])
}

func (e *canonEncoder) str(tag byte, s string) {
	e.buf.WriteByte(tag)
	e.u32(len(s))
	e.buf.WriteString(s)
}

func (e *canonEncoder) raw(tag byte, b []byte) {
	e.buf.WriteByte(tag)
	e.u32(len(b))
	e.buf.Write(b)
}

func (e *canonEncoder) float(f float64) {
	switch {
	case math.IsNaN(f):
		e.u64(canonicalNaN)
	case f == 0:
		e.u64(0) // -0 == 0
	default:
		e.u64(math.Float64bits(f))
	}
}

func typeName(t reflect.Type) string {
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

// value encodes rv. depth counts the containers above rv, as in validate.
func (e *canonEncoder) value(rv reflect.Value, depth int) *ArgumentError {
	if !rv.IsValid() {
		e.buf.WriteByte(tagNil)
		return nil
	}

	k := rv.Kind()
	if k == reflect.Interface {
		if rv.IsNil() {
			e.buf.WriteByte(tagNil)
			return nil
		}
		return e.value(rv.Elem(), depth)
	}
	if (k == reflect.Pointer || k == reflect.Slice || k == reflect.Map) && rv.IsNil() {
		e.str(tagTypedNil, typeName(rv.Type()))
		return nil
	}

	if selfEncoding(rv.Type()) {
		return e.custom(rv)
	}

	if e.seen == nil {
		e.seen = path{}
	}
	leave, ok := e.seen.enter(rv)
	if !ok {
		return cycleError()
	}
	defer leave()

	switch k {
	case reflect.Bool:
		if rv.Bool() {
			e.buf.WriteByte(tagTrue)
		} else {
			e.buf.WriteByte(tagFalse)
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.buf.WriteByte(tagInt)
		e.buf.WriteByte(byte(k))
		e.u64(uint64(rv.Int()))

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		e.buf.WriteByte(tagUint)
		e.buf.WriteByte(byte(k))
		e.u64(rv.Uint())

	case reflect.Float32, reflect.Float64:
		e.buf.WriteByte(tagFloat)
		e.buf.WriteByte(byte(k))
		e.float(rv.Float())

	case reflect.Complex64, reflect.Complex128:
		c := rv.Complex()
		e.buf.WriteByte(tagComplex)
		e.buf.WriteByte(byte(k))
		e.float(real(c))
		e.float(imag(c))

	case reflect.String:
		e.str(tagString, rv.String())

	case reflect.Pointer:
		return e.value(rv.Elem(), depth)

	case reflect.Slice:
		if depth >= maxDepth {
			return nestingError()
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			e.raw(tagBytes, rv.Bytes())
			return nil
		}
		return e.seq(tagList, rv, depth)

	case reflect.Array:
		if depth >= maxDepth {
			return nestingError()
		}
		return e.seq(tagArray, rv, depth)

	case reflect.Map:
		if depth >= maxDepth {
			return nestingError()
		}
		return e.mapping(rv, depth)

	case reflect.Struct:
		if depth >= maxDepth {
			return nestingError()
		}
		return e.structure(rv, depth)

	case reflect.Func:
		return &ArgumentError{Reason: "callable values cannot be serialized"}
	case reflect.Chan:
		return &ArgumentError{Reason: "channels cannot be serialized"}
	default:
		return &ArgumentError{Reason: fmt.Sprintf("%s values cannot be serialized", k)}
	}
	return nil
}

func (e *canonEncoder) seq(tag byte, rv reflect.Value, depth int) *ArgumentError {
	n := rv.Len()
	e.buf.WriteByte(tag)
	e.u32(n)
	for i := 0; i < n; i++ {
		if err := e.value(rv.Index(i), depth+1); err != nil {
			err.Path = fmt.Sprintf("[%d]", i) + err.Path
			return err
		}
	}
	return nil
}

type encodedPair struct {
	key, val []byte
}

func (e *canonEncoder) mapping(rv reflect.Value, depth int) *ArgumentError {
	pairs := make([]encodedPair, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		ke, ve := canonEncoder{seen: e.seen}, canonEncoder{seen: e.seen}
		if err := ke.value(iter.Key(), depth+1); err != nil {
			err.Path = fmt.Sprintf("[%#v](key)", iter.Key()) + err.Path
			return err
		}
		if err := ve.value(iter.Value(), depth+1); err != nil {
			err.Path = fmt.Sprintf("[%#v]", iter.Key()) + err.Path
			return err
		}
		pairs = append(pairs, encodedPair{key: ke.buf.Bytes(), val: ve.buf.Bytes()})
	}

	// NaN keys may repeat, so ties fall back to the value bytes.
	sort.Slice(pairs, func(i, j int) bool {
		if c := bytes.Compare(pairs[i].key, pairs[j].key); c != 0 {
			return c < 0
		}
		return bytes.Compare(pairs[i].val, pairs[j].val) < 0
	})

	e.buf.WriteByte(tagMap)
	e.u32(len(pairs))
	for _, p := range pairs {
		e.buf.Write(p.key)
		e.buf.Write(p.val)
	}
	return nil
}

func (e *canonEncoder) structure(rv reflect.Value, depth int) *ArgumentError {
	t := rv.Type()
	fields := make([]int, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			fields = append(fields, i)
		}
	}

	e.str(tagStruct, typeName(t))
	e.u32(len(fields))
	for _, i := range fields {
		name := t.Field(i).Name
		e.u32(len(name))
		e.buf.WriteString(name)
		if err := e.value(rv.Field(i), depth+1); err != nil {
			err.Path = "." + name + err.Path
			return err
		}
	}
	return nil
}

func (e *canonEncoder) custom(rv reflect.Value) *ArgumentError {
	v := rv.Interface()

	if k, ok := v.(Keyer); ok {
		e.str(tagKeyer, k.CacheKey())
		return nil
	}

	if m, ok := v.(proto.Message); ok {
		b, err := protoMarshal.Marshal(m)
		if err != nil {
			return &ArgumentError{Reason: "proto marshal: " + err.Error()}
		}
		e.str(tagProto, string(m.ProtoReflect().Descriptor().FullName()))
		e.u32(len(b))
		e.buf.Write(b)
		return nil
	}

	if m, ok := v.(encoding.BinaryMarshaler); ok {
		b, err := m.MarshalBinary()
		if err != nil {
			return &ArgumentError{Reason: "binary marshal: " + err.Error()}
		}
		e.str(tagBinary, typeName(rv.Type()))
		e.u32(len(b))
		e.buf.Write(b)
		return nil
	}

	return &ArgumentError{Reason: fmt.Sprintf("%s has no serialized form", rv.Type())}
}
