package state

import (
	"github.com/rafflewave/lottosync/internal/models"
)

// Store holds the authoritative in-memory domain state. Cache tiers and the
// durable store only ever hold derived, expendable copies of these
// collections; evicting them never loses information.
//
// Writes are funnelled: only the lottery refresh paths and the favorite
// coordinator mutate these holders.
type Store struct {
	Houses           *Value[[]models.House]
	FavoriteHouseIDs *Value[map[string]struct{}]
	ActiveEntries    *Value[[]models.ActiveEntry]
	UserStats        *Value[*models.UserStats]
	Gamification     *Value[*models.Gamification]
}

// NewStore constructs an empty state store.
func NewStore() *Store {
	return &Store{
		Houses:           NewValue[[]models.House](nil),
		FavoriteHouseIDs: NewValue(map[string]struct{}{}),
		ActiveEntries:    NewValue[[]models.ActiveEntry](nil),
		UserStats:        NewValue[*models.UserStats](nil),
		Gamification:     NewValue[*models.Gamification](nil),
	}
}

// Reset restores every collection to its initial value. This is the sole
// teardown path, invoked on logout.
func (s *Store) Reset() {
	s.Houses.Reset()
	s.FavoriteHouseIDs.Reset()
	s.ActiveEntries.Reset()
	s.UserStats.Reset()
	s.Gamification.Reset()
}

// IsFavorite reports whether houseID is currently favorited.
func (s *Store) IsFavorite(houseID string) bool {
	_, ok := s.FavoriteHouseIDs.Get()[houseID]
	return ok
}

// FavoriteIDs returns the favorite set as a sorted-insensitive slice copy.
func (s *Store) FavoriteIDs() []string {
	current := s.FavoriteHouseIDs.Get()
	ids := make([]string, 0, len(current))
	for id := range current {
		ids = append(ids, id)
	}
	return ids
}

// AddFavorite inserts houseID into the favorite set. The set never holds
// duplicates; re-adding is a no-op.
func (s *Store) AddFavorite(houseID string) {
	s.FavoriteHouseIDs.Update(func(current map[string]struct{}) map[string]struct{} {
		if _, ok := current[houseID]; ok {
			return current
		}
		next := make(map[string]struct{}, len(current)+1)
		for id := range current {
			next[id] = struct{}{}
		}
		next[houseID] = struct{}{}
		return next
	})
}

// RemoveFavorite drops houseID from the favorite set. Removing an absent id is
// a no-op.
func (s *Store) RemoveFavorite(houseID string) {
	s.FavoriteHouseIDs.Update(func(current map[string]struct{}) map[string]struct{} {
		if _, ok := current[houseID]; !ok {
			return current
		}
		next := make(map[string]struct{}, len(current))
		for id := range current {
			if id != houseID {
				next[id] = struct{}{}
			}
		}
		return next
	})
}

// SetFavorites replaces the favorite set wholesale with the authoritative ids.
func (s *Store) SetFavorites(ids []string) {
	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}
	s.FavoriteHouseIDs.Set(next)
}

// PatchHouse applies fn to the house with the given id, if present.
func (s *Store) PatchHouse(houseID string, fn func(*models.House)) {
	s.Houses.Update(func(current []models.House) []models.House {
		for i := range current {
			if current[i].ID == houseID {
				next := make([]models.House, len(current))
				copy(next, current)
				fn(&next[i])
				return next
			}
		}
		return current
	})
}

// PatchEntry applies fn to the entry with the given ticket id, if present.
func (s *Store) PatchEntry(ticketID string, fn func(*models.ActiveEntry)) {
	s.ActiveEntries.Update(func(current []models.ActiveEntry) []models.ActiveEntry {
		for i := range current {
			if current[i].TicketID == ticketID {
				next := make([]models.ActiveEntry, len(current))
				copy(next, current)
				fn(&next[i])
				return next
			}
		}
		return current
	})
}

// HouseByID returns a copy of the house with the given id.
func (s *Store) HouseByID(houseID string) (models.House, bool) {
	for _, house := range s.Houses.Get() {
		if house.ID == houseID {
			return house, true
		}
	}
	return models.House{}, false
}
