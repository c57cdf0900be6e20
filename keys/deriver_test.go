package keys

import (
	"crypto/sha512"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func desc(args ...any) Descriptor {
	return Descriptor{Owner: "A", Operation: "f", Args: args, Version: "v1"}
}

func mustDerive(t *testing.T, d Descriptor) string {
	t.Helper()
	k, err := Derive(d)
	require.NoError(t, err)
	return k
}

func TestDeriveDeterministic(t *testing.T) {
	type filter struct {
		Status string
		Tags   []string
		Limit  *int
	}
	limit := 10
	d := desc(1, "hello", []int{1, 2, 3}, map[string]int{"a": 1, "b": 2, "c": 3},
		filter{Status: "active", Tags: []string{"x"}, Limit: &limit})

	first := mustDerive(t, d)
	require.Len(t, first, 64)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, mustDerive(t, d))
	}

	limit2 := 10
	same := desc(1, "hello", []int{1, 2, 3}, map[string]int{"c": 3, "b": 2, "a": 1},
		filter{Status: "active", Tags: []string{"x"}, Limit: &limit2})
	assert.Equal(t, first, mustDerive(t, same), "structurally equal descriptors must share a key")
}

func TestDeriveSensitivity(t *testing.T) {
	base := Descriptor{Owner: "A", Operation: "f", Args: []any{1}, Version: "v1"}
	baseKey := mustDerive(t, base)

	cases := []struct {
		name string
		d    Descriptor
	}{
		{"owner", Descriptor{Owner: "B", Operation: "f", Args: []any{1}, Version: "v1"}},
		{"operation", Descriptor{Owner: "A", Operation: "g", Args: []any{1}, Version: "v1"}},
		{"argument value", Descriptor{Owner: "A", Operation: "f", Args: []any{2}, Version: "v1"}},
		{"argument type", Descriptor{Owner: "A", Operation: "f", Args: []any{"1"}, Version: "v1"}},
		{"argument width", Descriptor{Owner: "A", Operation: "f", Args: []any{int64(1)}, Version: "v1"}},
		{"argument sign", Descriptor{Owner: "A", Operation: "f", Args: []any{uint(1)}, Version: "v1"}},
		{"extra argument", Descriptor{Owner: "A", Operation: "f", Args: []any{1, nil}, Version: "v1"}},
		{"no arguments", Descriptor{Owner: "A", Operation: "f", Version: "v1"}},
		{"version", Descriptor{Owner: "A", Operation: "f", Args: []any{1}, Version: "v2"}},
		{"boundary shift", Descriptor{Owner: "Af", Operation: "", Args: []any{1}, Version: "v1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			k, err := Derive(tc.d)
			if err != nil {
				// empty operation is rejected, which also keeps it from colliding
				require.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			assert.NotEqual(t, baseKey, k)
		})
	}
}

func TestDeriveArgumentOrder(t *testing.T) {
	assert.NotEqual(t, mustDerive(t, desc(1, 2)), mustDerive(t, desc(2, 1)))
	assert.NotEqual(t, mustDerive(t, desc([]string{"a", "b"})), mustDerive(t, desc([]string{"b", "a"})))
	assert.NotEqual(t, mustDerive(t, desc("ab", "c")), mustDerive(t, desc("a", "bc")))
}

func TestDeriveRejectsCallables(t *testing.T) {
	type query struct {
		Filter map[string]any
	}

	cases := []struct {
		name string
		args []any
		path string
	}{
		{"top level", []any{1, func() {}}, "args[1]"},
		{"in slice", []any{[]any{"x", func() int { return 1 }}}, "args[0][1]"},
		{"in struct map", []any{query{Filter: map[string]any{"k": func() {}}}}, `args[0].Filter["k"]`},
		{"behind pointer", []any{&query{Filter: map[string]any{"k": func() {}}}}, `args[0].Filter["k"]`},
		{"channel", []any{make(chan int)}, "args[0]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Derive(desc(tc.args...))
			require.ErrorIs(t, err, ErrInvalidArgument)

			var aerr *ArgumentError
			require.True(t, errors.As(err, &aerr))
			assert.Equal(t, tc.path, aerr.Path)
		})
	}
}

type countingEncoder struct {
	calls int
}

func (c *countingEncoder) Encode(d Descriptor) ([]byte, error) {
	c.calls++
	return Canonical{}.Encode(d)
}

func TestDeriveRejectsBeforeEncoding(t *testing.T) {
	enc := &countingEncoder{}
	d, err := New(WithEncoder(enc))
	require.NoError(t, err)

	_, err = d.Derive(desc(func() {}))
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Zero(t, enc.calls)

	_, err = d.Derive(desc(1))
	require.NoError(t, err)
	assert.Equal(t, 1, enc.calls)
}

func TestDeriveRejectsEmptyIdentity(t *testing.T) {
	_, err := Derive(Descriptor{Operation: "f"})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Derive(Descriptor{Owner: "A"})
	require.ErrorIs(t, err, ErrInvalidArgument)

	// the version marker may legitimately be empty
	_, err = Derive(Descriptor{Owner: "A", Operation: "f"})
	require.NoError(t, err)
}

func TestDeriveRejectsCycles(t *testing.T) {
	type node struct {
		Next *node
	}
	n := &node{}
	n.Next = n

	_, err := Derive(desc(n))
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "cyclic")

	var aerr *ArgumentError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "args[0].Next", aerr.Path)

	m := map[string]any{}
	m["self"] = m
	_, err = Derive(desc(m))
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, `args[0]["self"]`, aerr.Path)
}

func TestDeriveSharedReferencesAreNotCycles(t *testing.T) {
	shared := &struct{ Tags []string }{Tags: []string{"a"}}
	list := []any{"x"}
	_, err := Derive(desc(shared, shared, []any{list, list}, map[string]any{"a": list, "b": list}))
	require.NoError(t, err)
}

// nestedMaps builds map[string]any{"k": map[string]any{"k": ... "leaf"}} with
// the given number of map levels.
func nestedMaps(levels int) any {
	var v any = "leaf"
	for i := 0; i < levels; i++ {
		v = map[string]any{"k": v}
	}
	return v
}

func TestDeriveNestingLimit(t *testing.T) {
	_, err := Derive(desc(nestedMaps(maxDepth)))
	require.NoError(t, err, "%d container levels are allowed", maxDepth)

	_, err = Derive(desc(nestedMaps(maxDepth + 1)))
	require.ErrorIs(t, err, ErrInvalidArgument)
	var aerr *ArgumentError
	require.ErrorAs(t, err, &aerr)
	assert.Contains(t, aerr.Reason, "nesting")
	assert.Equal(t, "args[0]"+strings.Repeat(`["k"]`, maxDepth), aerr.Path)
	assert.NotContains(t, aerr.Path, "(key)")

	// the same limit holds for the encoder on its own
	_, err = Canonical{}.Encode(desc(nestedMaps(maxDepth)))
	require.NoError(t, err)
	_, err = Canonical{}.Encode(desc(nestedMaps(maxDepth + 1)))
	require.Error(t, err)
}

func TestDerivePointersDoNotCountTowardsNesting(t *testing.T) {
	type wrap struct{ Next any }
	var v any = 1
	for i := 0; i < maxDepth; i++ {
		inner := v
		p := &inner // pointer and interface hops are transparent
		v = wrap{Next: &p}
	}
	_, err := Derive(desc(v))
	require.NoError(t, err)

	_, err = Derive(desc(wrap{Next: v}))
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDeriveTypedNils(t *testing.T) {
	nilSlice := mustDerive(t, desc([]int(nil)))
	nilMap := mustDerive(t, desc(map[string]string(nil)))
	nilPtr := mustDerive(t, desc((*int)(nil)))
	untyped := mustDerive(t, desc(nil))

	keys := []string{nilSlice, nilMap, nilPtr, untyped}
	for i := range keys {
		for j := i + 1; j < len(keys); j++ {
			assert.NotEqual(t, keys[i], keys[j], "nil values %d and %d collide", i, j)
		}
	}
	assert.Equal(t, nilSlice, mustDerive(t, desc([]int(nil))))
	assert.Equal(t, untyped, mustDerive(t, desc(any(nil))))
}

func TestDeriveStructIdentity(t *testing.T) {
	type userQuery struct{ ID int }
	type orderQuery struct{ ID int }
	type withPrivate struct {
		ID     int
		secret string
	}

	assert.NotEqual(t, mustDerive(t, desc(userQuery{1})), mustDerive(t, desc(orderQuery{1})))
	assert.Equal(t,
		mustDerive(t, desc(withPrivate{ID: 1, secret: "a"})),
		mustDerive(t, desc(withPrivate{ID: 1, secret: "b"})),
		"unexported fields do not take part in the key")
}

func TestDeriveFloats(t *testing.T) {
	assert.Equal(t, mustDerive(t, desc(math.Copysign(0, -1))), mustDerive(t, desc(0.0)))
	assert.Equal(t, mustDerive(t, desc(math.NaN())), mustDerive(t, desc(math.NaN())))
	assert.NotEqual(t, mustDerive(t, desc(float32(1.5))), mustDerive(t, desc(1.5)))
}

type tenant struct {
	Slug   string
	Loader func() string // not serializable on its own
}

func (t tenant) CacheKey() string { return "tenant:" + t.Slug }

func TestDeriveKeyer(t *testing.T) {
	a := mustDerive(t, desc(tenant{Slug: "acme", Loader: func() string { return "x" }}))
	b := mustDerive(t, desc(tenant{Slug: "acme"}))
	c := mustDerive(t, desc(tenant{Slug: "globex"}))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, mustDerive(t, desc("tenant:acme")), "keyer output is tagged apart from plain strings")
}

func TestDeriveProtoAndTime(t *testing.T) {
	p1 := mustDerive(t, desc(wrapperspb.String("x")))
	p2 := mustDerive(t, desc(wrapperspb.String("x")))
	p3 := mustDerive(t, desc(wrapperspb.String("y")))
	assert.Equal(t, p1, p2)
	assert.NotEqual(t, p1, p3)
	assert.NotEqual(t, p1, mustDerive(t, desc(wrapperspb.Bytes([]byte("x")))))

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, mustDerive(t, desc(ts)), mustDerive(t, desc(ts.Add(0))))
	assert.NotEqual(t, mustDerive(t, desc(ts)), mustDerive(t, desc(ts.Add(time.Nanosecond))))
}

func TestAlgorithms(t *testing.T) {
	lengths := map[string]int{
		"sha256":      64,
		"sha224":      56,
		"sha384":      96,
		"sha512":      128,
		"sha512/256":  64,
		"sha1":        40,
		"md5":         32,
		"sha3-256":    64,
		"blake2b-256": 64,
		"xxh64":       16,
	}
	d := desc(1, "two", []byte{3})
	seen := make(map[string]string)
	for name, n := range lengths {
		der, err := New(WithAlgorithm(name))
		require.NoError(t, err, name)
		assert.Equal(t, name, der.Algorithm())

		k, err := der.Derive(d)
		require.NoError(t, err, name)
		assert.Len(t, k, n, name)

		if other, dup := seen[k]; dup {
			t.Fatalf("%s and %s produced the same key", name, other)
		}
		seen[k] = name
	}

	def, err := New()
	require.NoError(t, err)
	assert.Equal(t, DefaultAlgorithm, def.Algorithm())
	assert.Equal(t, mustDerive(t, d), mustKey(t, def, d))
}

func mustKey(t *testing.T, d *Deriver, desc Descriptor) string {
	t.Helper()
	k, err := d.Derive(desc)
	require.NoError(t, err)
	return k
}

func TestUnknownAlgorithm(t *testing.T) {
	_, err := New(WithAlgorithm("crc7"))
	require.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestRegisterAlgorithm(t *testing.T) {
	RegisterAlgorithm("test-sha512", sha512.New)
	assert.Contains(t, Algorithms(), "test-sha512")

	d, err := New(WithAlgorithm("test-sha512"))
	require.NoError(t, err)
	k := mustKey(t, d, desc(1))
	assert.Len(t, k, 128)
}

func TestCBOREncoder(t *testing.T) {
	enc, err := NewCBOR()
	require.NoError(t, err)
	d, err := New(WithEncoder(enc))
	require.NoError(t, err)

	m1 := map[string]int{"a": 1, "b": 2, "c": 3}
	m2 := map[string]int{"c": 3, "a": 1, "b": 2}
	assert.Equal(t, mustKey(t, d, desc(m1)), mustKey(t, d, desc(m2)))
	assert.NotEqual(t, mustKey(t, d, desc("1")), mustKey(t, d, desc(1)))
	assert.NotEqual(t, mustKey(t, d, desc(1, 2)), mustKey(t, d, desc(2, 1)))
	assert.NotEqual(t, mustKey(t, d, desc(1)), mustDerive(t, desc(1)), "encoders produce different key spaces")

	_, err = d.Derive(desc(func() {}))
	require.ErrorIs(t, err, ErrInvalidArgument)
}
