package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rafflewave/lottosync/internal/models"
)

func TestDecodeFavoriteUpdate(t *testing.T) {
	payload := json.RawMessage(`{"house_id":"h1","update_type":"added"}`)

	event, err := Decode("favorite_update", payload)
	require.NoError(t, err)
	require.Equal(t, TypeFavoriteUpdate, event.Kind)
	require.NotNil(t, event.FavoriteUpdate)
	require.Equal(t, "h1", event.FavoriteUpdate.HouseID)
	require.Equal(t, FavoriteAdded, event.FavoriteUpdate.UpdateType)
	require.Nil(t, event.InventoryUpdate)
}

func TestDecodeEveryKind(t *testing.T) {
	tests := []struct {
		kind    string
		payload string
		check   func(t *testing.T, event Event)
	}{
		{
			kind:    "inventory_update",
			payload: `{"house_id":"h1","sold_tickets":42}`,
			check: func(t *testing.T, event Event) {
				require.Equal(t, 42, event.InventoryUpdate.SoldTickets)
			},
		},
		{
			kind:    "entry_status_change",
			payload: `{"ticket_id":"t1","new_status":"winner"}`,
			check: func(t *testing.T, event Event) {
				require.Equal(t, "t1", event.EntryStatusChange.TicketID)
				require.Equal(t, models.EntryStatusWinner, event.EntryStatusChange.NewStatus)
			},
		},
		{
			kind:    "draw_started",
			payload: `{"house_id":"h1"}`,
			check: func(t *testing.T, event Event) {
				require.Equal(t, "h1", event.DrawStarted.HouseID)
			},
		},
		{
			kind:    "draw_completed",
			payload: `{"house_id":"h1"}`,
			check: func(t *testing.T, event Event) {
				require.Equal(t, "h1", event.DrawCompleted.HouseID)
			},
		},
		{
			kind:    "ticket_purchased",
			payload: `{"house_id":"h1","user_id":"u9"}`,
			check: func(t *testing.T, event Event) {
				require.Equal(t, "u9", event.TicketPurchased.UserID)
			},
		},
		{
			kind:    "countdown_update",
			payload: `{"house_id":"h1","is_ended":true}`,
			check: func(t *testing.T, event Event) {
				require.True(t, event.CountdownUpdate.IsEnded)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.kind, func(t *testing.T) {
			event, err := Decode(tc.kind, json.RawMessage(tc.payload))
			require.NoError(t, err)
			require.Equal(t, Type(tc.kind), event.Kind)
			tc.check(t, event)
		})
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := Decode("unknown_event", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown event type")
}

func TestDecodeMalformedPayload(t *testing.T) {
	_, err := Decode("inventory_update", json.RawMessage(`{"sold_tickets":"not a number"}`))
	require.Error(t, err)
}

func TestDecodeEmptyPayload(t *testing.T) {
	event, err := Decode("draw_started", nil)
	require.NoError(t, err)
	require.NotNil(t, event.DrawStarted)
	require.Empty(t, event.DrawStarted.HouseID)
}
