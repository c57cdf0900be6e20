// Package memocache implements cache-aside memoization over a pluggable byte
// store. A computation is identified by its call site (owner, operation,
// arguments) plus a global version marker; the first call computes and stores
// the result, later identical calls return the stored value.
//
// Components:
//   - keys.Deriver: deterministic key derivation with argument validation.
//   - Provider: byte store with TTL (e.g. memory, Ristretto, BigCache, Redis).
//   - Codec[V]: (de)serializes V <-> []byte.
//   - version.Source: the marker folded into every key (build revision by
//     default). Changing it moves all results to a fresh key space.
//
// Keys:
//
//	<hex digest>             - without a namespace
//	<namespace>:<hex digest> - with Options.Namespace
//
// Typical use:
//
//	u, err := memo.Remember(ctx, memocache.On("users", "ByID", id),
//	    func(ctx context.Context) (User, error) { return db.UserByID(ctx, id) })
package memocache
