package events

import (
	"fmt"

	"github.com/google/uuid"
)

// Outbound event names. One logical channel per room; every payload is flat
// and JSON-serializable.
const (
	EventMessage         = "message"
	EventMessageUpdated  = "message_updated"
	EventMessageDeleted  = "message_deleted"
	EventReactionUpdated = "reaction_updated"
	EventPollVoted       = "poll_voted"
	EventMessagePinned   = "message_pinned"
	EventMessageUnpinned = "message_unpinned"
	EventRoomRead        = "room_read"
	EventMembersAdded    = "members_added"
	EventMemberLeft      = "member_left"
)

// Redis channel prefix for room fan-out.
const ChannelPrefixRoom = "channel:room:"

// RoomChannel resolves the pub/sub channel for a room.
func RoomChannel(roomID uuid.UUID) string {
	return fmt.Sprintf("%s%s", ChannelPrefixRoom, roomID)
}
