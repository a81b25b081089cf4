package events

import (
	"encoding/json"
	"fmt"

	"github.com/rafflewave/lottosync/internal/models"
)

// Type discriminates pushed domain events.
type Type string

const (
	TypeFavoriteUpdate    Type = "favorite_update"
	TypeInventoryUpdate   Type = "inventory_update"
	TypeEntryStatusChange Type = "entry_status_change"
	TypeDrawStarted       Type = "draw_started"
	TypeDrawCompleted     Type = "draw_completed"
	TypeTicketPurchased   Type = "ticket_purchased"
	TypeCountdownUpdate   Type = "countdown_update"
)

// Event is the tagged union of pushed domain events. Exactly one payload
// field is non-nil, matching Kind.
type Event struct {
	Kind              Type
	FavoriteUpdate    *FavoriteUpdate
	InventoryUpdate   *InventoryUpdate
	EntryStatusChange *EntryStatusChange
	DrawStarted       *DrawStarted
	DrawCompleted     *DrawCompleted
	TicketPurchased   *TicketPurchased
	CountdownUpdate   *CountdownUpdate
}

// FavoriteUpdateType distinguishes external favorite additions from removals.
type FavoriteUpdateType string

const (
	FavoriteAdded   FavoriteUpdateType = "added"
	FavoriteRemoved FavoriteUpdateType = "removed"
)

// FavoriteUpdate signals a favorite change made elsewhere (another device or
// session) for the same user.
type FavoriteUpdate struct {
	HouseID    string             `json:"house_id"`
	UpdateType FavoriteUpdateType `json:"update_type"`
}

// InventoryUpdate carries the latest sold-ticket counter for a house.
type InventoryUpdate struct {
	HouseID     string `json:"house_id"`
	SoldTickets int    `json:"sold_tickets"`
}

// EntryStatusChange signals a status transition on one of the user's tickets.
type EntryStatusChange struct {
	TicketID  string             `json:"ticket_id"`
	NewStatus models.EntryStatus `json:"new_status"`
}

// DrawStarted signals that a house's draw has begun.
type DrawStarted struct {
	HouseID string `json:"house_id"`
}

// DrawCompleted signals that a house's draw finished.
type DrawCompleted struct {
	HouseID string `json:"house_id"`
}

// TicketPurchased signals a ticket purchase for a house (any user).
type TicketPurchased struct {
	HouseID string `json:"house_id"`
	UserID  string `json:"user_id"`
}

// CountdownUpdate ticks the lottery countdown for a house.
type CountdownUpdate struct {
	HouseID string `json:"house_id"`
	IsEnded bool   `json:"is_ended"`
}

// Decode parses a wire event (type tag + raw payload) into the tagged union.
func Decode(kind string, payload json.RawMessage) (Event, error) {
	event := Event{Kind: Type(kind)}

	var target any
	switch event.Kind {
	case TypeFavoriteUpdate:
		event.FavoriteUpdate = &FavoriteUpdate{}
		target = event.FavoriteUpdate
	case TypeInventoryUpdate:
		event.InventoryUpdate = &InventoryUpdate{}
		target = event.InventoryUpdate
	case TypeEntryStatusChange:
		event.EntryStatusChange = &EntryStatusChange{}
		target = event.EntryStatusChange
	case TypeDrawStarted:
		event.DrawStarted = &DrawStarted{}
		target = event.DrawStarted
	case TypeDrawCompleted:
		event.DrawCompleted = &DrawCompleted{}
		target = event.DrawCompleted
	case TypeTicketPurchased:
		event.TicketPurchased = &TicketPurchased{}
		target = event.TicketPurchased
	case TypeCountdownUpdate:
		event.CountdownUpdate = &CountdownUpdate{}
		target = event.CountdownUpdate
	default:
		return Event{}, fmt.Errorf("events: unknown event type %q", kind)
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, target); err != nil {
			return Event{}, fmt.Errorf("events: decode %s payload: %w", kind, err)
		}
	}
	return event, nil
}
