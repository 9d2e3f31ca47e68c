package optcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; they run while the store
// lock may be held.
type Hooks interface {
	// A stored entry was deleted on read.
	// reason ∈ {"corrupt", "value_decode"}
	SelfHeal(storageKey, reason string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	// GenStore failed to bump a generation.
	GenBumpError(storageKey string, err error)

	// A read completed under a superseded token and was dropped.
	StaleReadDiscarded(key string, token, current Token)

	// The injected read function failed.
	ReadFailed(key string, err error)

	// A mutation call settled. id is the call's ID.
	MutationCommitted(key, name, id string)
	MutationRolledBack(key, name, id string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string)                          {}
func (NopHooks) ProviderSetRejected(string)                       {}
func (NopHooks) GenBumpError(string, error)                       {}
func (NopHooks) StaleReadDiscarded(string, Token, Token)          {}
func (NopHooks) ReadFailed(string, error)                         {}
func (NopHooks) MutationCommitted(string, string, string)         {}
func (NopHooks) MutationRolledBack(string, string, string, error) {}
