package message

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Message types
const (
	TypeText   = "TEXT"
	TypeSystem = "SYSTEM"
	TypePoll   = "POLL"
	TypeEvent  = "EVENT"
)

// Tombstone replaces the content of a soft-deleted message on every read path.
const Tombstone = "[message deleted]"

// Message represents the messages table. Rows are never hard-deleted; DeletedAt
// marks the tombstone while reactions, pins and thread children stay attached.
type Message struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoomID   uuid.UUID `gorm:"type:uuid;index:idx_messages_room_created,priority:1"`
	SenderID uuid.UUID `gorm:"type:uuid"`
	Type     string    `gorm:"not null;default:TEXT"`
	Content  string

	ReplyToID uuid.NullUUID `gorm:"type:uuid;index"`
	PollID    uuid.NullUUID `gorm:"type:uuid"`

	// Attachment metadata only; upload mechanics live outside this service.
	// Size is a fixed-width integer all the way to the wire.
	AttachmentName sql.NullString
	AttachmentType sql.NullString
	AttachmentSize sql.NullInt64

	// Calendar-event metadata carried on EVENT messages.
	EventTitle sql.NullString
	EventAt    sql.NullTime

	CreatedAt time.Time `gorm:"index:idx_messages_room_created,priority:2"`
	EditedAt  sql.NullTime
	DeletedAt sql.NullTime
}

// Deleted reports whether the message has been tombstoned.
func (m Message) Deleted() bool {
	return m.DeletedAt.Valid
}

// DisplayContent honors the tombstone rule.
func (m Message) DisplayContent() string {
	if m.Deleted() {
		return Tombstone
	}
	return m.Content
}

// Reaction represents message_reactions. Presence of a row means "voted";
// toggling deletes or inserts it.
type Reaction struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	MessageID uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_reactions_msg_user_emoji,priority:1"`
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_reactions_msg_user_emoji,priority:2"`
	Emoji     string    `gorm:"uniqueIndex:ux_reactions_msg_user_emoji,priority:3"`
	CreatedAt time.Time
}

// ReadReceipt represents read_receipts, unique per (message, user).
type ReadReceipt struct {
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	ReadAt    time.Time
}

// PinnedMessage represents pinned_messages, unique per (room, message).
type PinnedMessage struct {
	RoomID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey"`
	PinnedBy  uuid.UUID `gorm:"type:uuid"`
	PinnedAt  time.Time
}

func (Message) TableName() string {
	return "messages"
}

func (Reaction) TableName() string {
	return "message_reactions"
}

func (ReadReceipt) TableName() string {
	return "read_receipts"
}

func (PinnedMessage) TableName() string {
	return "pinned_messages"
}
