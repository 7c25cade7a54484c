package events

import (
	"encoding/json"
	"time"
)

type Envelope struct {
	Event      string          `json:"event"`
	RoomID     string          `json:"room_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}
