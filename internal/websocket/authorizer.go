package websocket

import (
	"context"
	"errors"
	"strings"

	"teamline/internal/events"
	"teamline/internal/repository"
	teamline_errors "teamline/pkg/errors"

	"github.com/google/uuid"
)

// ChannelAuthorizer decides whether a user may subscribe to a channel.
// Room channels require a membership row that is still active.
type ChannelAuthorizer struct {
	rooms repository.RoomRepository
}

func NewChannelAuthorizer(rooms repository.RoomRepository) *ChannelAuthorizer {
	return &ChannelAuthorizer{rooms: rooms}
}

// CanSubscribe checks if a user is authorized to subscribe to a channel
func (a *ChannelAuthorizer) CanSubscribe(ctx context.Context, userID string, channel string) (bool, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return false, nil
	}

	if strings.HasPrefix(channel, events.ChannelPrefixRoom) {
		roomIDStr := strings.TrimPrefix(channel, events.ChannelPrefixRoom)
		roomID, err := uuid.Parse(roomIDStr)
		if err != nil {
			return false, nil
		}
		m, err := a.rooms.GetMembership(ctx, roomID, userUUID)
		if err != nil {
			if errors.Is(err, teamline_errors.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		return m.Active(), nil
	}

	// Default deny
	return false, nil
}
