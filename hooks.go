package assetcache

import "time"

// Hooks lightweight callbacks for lifecycle events.
// Implementations MUST be cheap and non-blocking; Resolve calls them on
// every request. Wrap slow sinks with hooks/async.
type Hooks interface {
	// Install wrote every manifest entry into gen.
	InstallCompleted(gen string, entries int, took time.Duration)
	// Install failed; url is empty when the failure was not tied to one asset.
	InstallFailed(gen, url string, err error)

	// Activate removed a stale generation.
	StaleDeleted(gen string)
	// Activate could not remove a stale generation. The generation stays in
	// the store until a later Activate succeeds.
	StaleDeleteFailed(gen string, err error)

	// Resolve answered from the cache / forwarded to the network.
	ResolveHit(url string)
	ResolveMiss(url string)

	// A provider-backed store dropped an unreadable entry on read.
	// reason ∈ {"corrupt", "gen_mismatch", "url_mismatch", "value_decode"}
	SelfHeal(storageKey, reason string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) InstallCompleted(string, int, time.Duration) {}
func (NopHooks) InstallFailed(string, string, error)         {}
func (NopHooks) StaleDeleted(string)                         {}
func (NopHooks) StaleDeleteFailed(string, error)             {}
func (NopHooks) ResolveHit(string)                           {}
func (NopHooks) ResolveMiss(string)                          {}
func (NopHooks) SelfHeal(string, string)                     {}

// MultiHooks fans every event out to each member in order.
type MultiHooks []Hooks

var _ Hooks = MultiHooks(nil)

func (m MultiHooks) InstallCompleted(gen string, entries int, took time.Duration) {
	for _, h := range m {
		h.InstallCompleted(gen, entries, took)
	}
}

func (m MultiHooks) InstallFailed(gen, url string, err error) {
	for _, h := range m {
		h.InstallFailed(gen, url, err)
	}
}

func (m MultiHooks) StaleDeleted(gen string) {
	for _, h := range m {
		h.StaleDeleted(gen)
	}
}

func (m MultiHooks) StaleDeleteFailed(gen string, err error) {
	for _, h := range m {
		h.StaleDeleteFailed(gen, err)
	}
}

func (m MultiHooks) ResolveHit(url string) {
	for _, h := range m {
		h.ResolveHit(url)
	}
}

func (m MultiHooks) ResolveMiss(url string) {
	for _, h := range m {
		h.ResolveMiss(url)
	}
}

func (m MultiHooks) SelfHeal(storageKey, reason string) {
	for _, h := range m {
		h.SelfHeal(storageKey, reason)
	}
}
