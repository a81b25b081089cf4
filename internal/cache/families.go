package cache

import (
	"strings"
	"time"
)

// Family is a named category of cached data sharing one TTL pair and one
// storage key scheme.
type Family string

const (
	FamilyHousesList    Family = "houses_list"
	FamilyHouse         Family = "house"
	FamilyFavorites     Family = "favorites"
	FamilyActiveEntries Family = "active_entries"
	FamilyUserStats     Family = "user_stats"
	FamilyGamification  Family = "gamification"
)

const storageKeyPrefix = "lottosync:"

// Families lists every known cache family.
func Families() []Family {
	return []Family{
		FamilyHousesList,
		FamilyHouse,
		FamilyFavorites,
		FamilyActiveEntries,
		FamilyUserStats,
		FamilyGamification,
	}
}

// TTLPair layers a short in-memory TTL (bounds staleness under normal
// operation) over a long persisted TTL (only avoids a cold flash on restart;
// always superseded by a successful network fetch).
type TTLPair struct {
	Memory  time.Duration
	Persist time.Duration
}

// DefaultTTLs returns the per-family TTL policy.
func DefaultTTLs() map[Family]TTLPair {
	return map[Family]TTLPair{
		FamilyHousesList:    {Memory: 2 * time.Minute, Persist: 30 * time.Minute},
		FamilyHouse:         {Memory: 2 * time.Minute, Persist: 30 * time.Minute},
		FamilyFavorites:     {Memory: 5 * time.Minute, Persist: time.Hour},
		FamilyActiveEntries: {Memory: time.Minute, Persist: 15 * time.Minute},
		FamilyUserStats:     {Memory: 5 * time.Minute, Persist: time.Hour},
		FamilyGamification:  {Memory: 10 * time.Minute, Persist: time.Hour},
	}
}

// IsKeyed reports whether the family stores one record per entity rather than
// a single document.
func (f Family) IsKeyed() bool {
	return f == FamilyHouse
}

// StorageKey builds the namespaced durable-tier key for a family entry.
func (f Family) StorageKey(key string) string {
	if f.IsKeyed() && key != "" {
		return storageKeyPrefix + string(f) + ":" + key
	}
	return storageKeyPrefix + string(f)
}

// StoragePrefix is the durable-tier prefix covering every entry of a keyed
// family.
func (f Family) StoragePrefix() string {
	if f.IsKeyed() {
		return storageKeyPrefix + string(f) + ":"
	}
	return f.StorageKey("")
}

// ParseFamily maps a storage key back to its family, primarily for logging.
func ParseFamily(storageKey string) (Family, bool) {
	trimmed := strings.TrimPrefix(storageKey, storageKeyPrefix)
	for _, family := range Families() {
		if trimmed == string(family) || strings.HasPrefix(trimmed, string(family)+":") {
			return family, true
		}
	}
	return "", false
}
