package memocache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The memoizer calls them on hot paths.
type Hooks interface {
	// A stored result was returned.
	Hit(storageKey string)

	// No usable stored result; the computation runs.
	Miss(storageKey string)

	// The caller shared another caller's lookup (Options.Coalesce).
	Coalesced(storageKey string)

	// An entry was deleted by the memoizer on read.
	// reason ∈ {"corrupt", "value_decode"}
	SelfHeal(storageKey, reason string)

	// Provider returned ok=false on Set (backpressure/eviction).
	StoreRejected(storageKey string)

	// Provider or codec failed. op ∈ {"get", "set", "del", "encode"}
	// Reported even when Options.FailOpen swallows the error.
	BackendError(op, storageKey string, err error)

	// The version source failed; nothing was read or computed.
	VersionError(err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Hit(string)                         {}
func (NopHooks) Miss(string)                        {}
func (NopHooks) Coalesced(string)                   {}
func (NopHooks) SelfHeal(string, string)            {}
func (NopHooks) StoreRejected(string)               {}
func (NopHooks) BackendError(string, string, error) {}
func (NopHooks) VersionError(error)                 {}
