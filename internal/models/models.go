package models

import "time"

// HouseStatus enumerates lifecycle states of a raffle house.
type HouseStatus string

const (
	HouseStatusActive    HouseStatus = "active"
	HouseStatusDrawing   HouseStatus = "drawing"
	HouseStatusCompleted HouseStatus = "completed"
	HouseStatusEnded     HouseStatus = "ended"
)

// House identifies a raffle property together with its ticket inventory and
// lottery window.
type House struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Location     string      `json:"location"`
	TicketPrice  float64     `json:"ticket_price"`
	TotalTickets int         `json:"total_tickets"`
	SoldTickets  int         `json:"sold_tickets"`
	Status       HouseStatus `json:"status"`
	LotteryStart time.Time   `json:"lottery_start"`
	LotteryEnd   time.Time   `json:"lottery_end"`
	ImageURL     string      `json:"image_url,omitempty"`
}

// Remaining reports how many tickets are still available.
func (h House) Remaining() int {
	remaining := h.TotalTickets - h.SoldTickets
	if remaining < 0 {
		return 0
	}
	return remaining
}

// EntryStatus enumerates states of a lottery entry the user holds.
type EntryStatus string

const (
	EntryStatusActive   EntryStatus = "active"
	EntryStatusWinner   EntryStatus = "winner"
	EntryStatusRefunded EntryStatus = "refunded"
)

// ActiveEntry is a ticket the user holds in an active lottery.
type ActiveEntry struct {
	TicketID    string      `json:"ticket_id"`
	HouseID     string      `json:"house_id"`
	HouseTitle  string      `json:"house_title,omitempty"`
	Status      EntryStatus `json:"status"`
	Quantity    int         `json:"quantity"`
	PurchasedAt time.Time   `json:"purchased_at"`
	DrawAt      time.Time   `json:"draw_at,omitempty"`
}

// UserStats holds aggregate counters for the user. The document is only ever
// replaced wholesale, never patched.
type UserStats struct {
	TotalEntries  int       `json:"total_entries"`
	ActiveEntries int       `json:"active_entries"`
	TotalWins     int       `json:"total_wins"`
	TotalSpend    float64   `json:"total_spend"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Gamification aggregates streak/achievement progress shown alongside stats.
type Gamification struct {
	Level        int      `json:"level"`
	Points       int      `json:"points"`
	Streak       int      `json:"streak"`
	Achievements []string `json:"achievements,omitempty"`
}

// FavoriteAnalytics summarises favorite activity as reported by the backend.
type FavoriteAnalytics struct {
	TotalFavorites int            `json:"total_favorites"`
	ByStatus       map[string]int `json:"by_status,omitempty"`
	AddedThisWeek  int            `json:"added_this_week"`
}

// ParticipantStats describes aggregate participation for a single house.
type ParticipantStats struct {
	HouseID        string  `json:"house_id"`
	Participants   int     `json:"participants"`
	TicketsPerUser float64 `json:"tickets_per_user"`
}

// Eligibility answers "can the user enter this lottery".
type Eligibility struct {
	HouseID  string `json:"house_id"`
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

// PurchaseReceipt confirms a ticket purchase.
type PurchaseReceipt struct {
	TicketID string    `json:"ticket_id"`
	HouseID  string    `json:"house_id"`
	Quantity int       `json:"quantity"`
	Total    float64   `json:"total"`
	IssuedAt time.Time `json:"issued_at"`
}
