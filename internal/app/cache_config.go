package app

import (
	"github.com/rafflewave/lottosync/internal/cache"
)

// TTLOverrides converts configured family overrides into the cache package
// representation. Unknown family names are ignored.
func (c CacheConfig) TTLOverrides() map[cache.Family]cache.TTLPair {
	if len(c.Families) == 0 {
		return nil
	}

	known := make(map[string]cache.Family, len(cache.Families()))
	for _, family := range cache.Families() {
		known[string(family)] = family
	}

	overrides := make(map[cache.Family]cache.TTLPair, len(c.Families))
	for name, ttls := range c.Families {
		family, ok := known[name]
		if !ok {
			continue
		}
		overrides[family] = cache.TTLPair{Memory: ttls.Memory, Persist: ttls.Persist}
	}
	return overrides
}
