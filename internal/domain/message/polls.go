package message

import (
	"time"

	"github.com/google/uuid"
)

// Poll represents polls. A poll belongs to exactly one message and is created
// atomically with it.
type Poll struct {
	ID             uuid.UUID     `gorm:"type:uuid;primaryKey"`
	MessageID      uuid.NullUUID `gorm:"type:uuid;uniqueIndex"`
	Question       string        `gorm:"not null"`
	AllowsMultiple bool          `gorm:"not null;default:false"`
	CreatedBy      uuid.UUID     `gorm:"type:uuid"`
	CreatedAt      time.Time
}

// PollOption represents poll_options.
type PollOption struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	PollID   uuid.UUID `gorm:"type:uuid;index"`
	Text     string    `gorm:"not null"`
	Position int       `gorm:"not null"`
}

// PollVote represents poll_votes, unique per (option, user). PollID is carried
// so single-choice clearing stays a single delete.
type PollVote struct {
	OptionID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	PollID   uuid.UUID `gorm:"type:uuid;index"`
	VotedAt  time.Time
}

func (Poll) TableName() string {
	return "polls"
}

func (PollOption) TableName() string {
	return "poll_options"
}

func (PollVote) TableName() string {
	return "poll_votes"
}
