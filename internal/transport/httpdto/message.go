package httpdto

import "time"

// AttachmentMeta is metadata only; the bytes live in external storage.
// Size stays a fixed-width integer across the wire so values above 2^53
// never silently lose precision.
type AttachmentMeta struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// EventMeta is calendar-event metadata carried on a message.
type EventMeta struct {
	Title string    `json:"title"`
	At    time.Time `json:"at"`
}

type SendMessageRequest struct {
	Content    string          `json:"content"`
	ReplyToID  string          `json:"reply_to_id,omitempty"`
	Attachment *AttachmentMeta `json:"attachment,omitempty"`
	Event      *EventMeta      `json:"event,omitempty"`
}

type EditMessageRequest struct {
	Content string `json:"content"`
}

type ToggleReactionRequest struct {
	Emoji string `json:"emoji"`
}

type PinRequest struct {
	MessageID string `json:"message_id"`
}

// ReactionGroup is the per-emoji aggregate, always a full snapshot.
type ReactionGroup struct {
	Emoji    string   `json:"emoji"`
	Count    int      `json:"count"`
	VoterIDs []string `json:"voter_ids"`
}

// MessageView is the normalized message shape used by the timeline, threads,
// pins and realtime events. Tombstoned messages carry the sentinel content.
type MessageView struct {
	ID         string          `json:"id"`
	RoomID     string          `json:"room_id"`
	SenderID   string          `json:"sender_id"`
	Type       string          `json:"type"`
	Content    string          `json:"content"`
	ReplyToID  string          `json:"reply_to_id,omitempty"`
	Attachment *AttachmentMeta `json:"attachment,omitempty"`
	Event      *EventMeta      `json:"event,omitempty"`
	Poll       *PollView       `json:"poll,omitempty"`
	Reactions  []ReactionGroup `json:"reactions"`
	ReadCount  int             `json:"read_count"`
	Deleted    bool            `json:"deleted"`
	CreatedAt  time.Time       `json:"created_at"`
	EditedAt   *time.Time      `json:"edited_at,omitempty"`
}

type ThreadView struct {
	Parent  MessageView   `json:"parent"`
	Replies []MessageView `json:"replies"`
}

type PinView struct {
	RoomID   string      `json:"room_id"`
	PinnedBy string      `json:"pinned_by"`
	PinnedAt time.Time   `json:"pinned_at"`
	Message  MessageView `json:"message"`
}

// Realtime patch payloads. Receivers patch in place; deleted rows keep their
// position and relations.

type MessageUpdatedPayload struct {
	ID       string    `json:"id"`
	RoomID   string    `json:"room_id"`
	Content  string    `json:"content"`
	EditedAt time.Time `json:"edited_at"`
}

type MessageDeletedPayload struct {
	ID     string `json:"id"`
	RoomID string `json:"room_id"`
}

type ReactionUpdatedPayload struct {
	MessageID string          `json:"message_id"`
	Reactions []ReactionGroup `json:"reactions"`
}

type RoomReadPayload struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

type PinPayload struct {
	RoomID    string `json:"room_id"`
	MessageID string `json:"message_id"`
}

type MembersAddedPayload struct {
	RoomID    string   `json:"room_id"`
	MemberIDs []string `json:"member_ids"`
}

type MemberLeftPayload struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}
