package memocache

import (
	"context"
	"time"
)

// Call identifies one invocation of a computation. Owner and Operation name
// the call site (e.g. a type and method); Args are order-significant.
type Call struct {
	Owner     string
	Operation string
	Args      []any
}

func On(owner, operation string, args ...any) Call {
	return Call{Owner: owner, Operation: operation, Args: args}
}

type CallOption func(*callOptions)

type callOptions struct {
	ttl    time.Duration
	hasTTL bool
}

// WithTTL overrides the TTL for this call only. The value is passed to the
// provider as is, including zero and negative durations.
func WithTTL(ttl time.Duration) CallOption {
	return func(o *callOptions) {
		o.ttl = ttl
		o.hasTTL = true
	}
}

// Func binds fn to a fixed owner and operation. Each call of the returned
// function is memoized under its argument.
func Func[A, V any](m Memo[V], owner, operation string, fn func(context.Context, A) (V, error), opts ...CallOption) func(context.Context, A) (V, error) {
	return func(ctx context.Context, arg A) (V, error) {
		return m.Remember(ctx, On(owner, operation, arg), func(ctx context.Context) (V, error) {
			return fn(ctx, arg)
		}, opts...)
	}
}
