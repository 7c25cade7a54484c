package room

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Room kinds
const (
	KindDirect = "DIRECT"
	KindGroup  = "GROUP"
)

// View modes
const (
	ViewModeChat  = "CHAT"
	ViewModeBoard = "BOARD"
)

// Room represents the rooms table. Group rooms are immutable member-set
// snapshots once created; inviting produces a brand-new room.
type Room struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Kind        string    `gorm:"not null"`
	Name        sql.NullString
	Description sql.NullString
	ViewMode    string `gorm:"not null;default:CHAT"`
	IsPublic    bool   `gorm:"not null;default:false"`
	CreatedBy   uuid.NullUUID
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Members []Membership `gorm:"foreignKey:RoomID"`
}

// Membership represents the memberships table. Rows are never hard-deleted:
// leaving sets LeftAt, re-joining clears it.
type Membership struct {
	RoomID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	JoinedAt   time.Time
	LeftAt     sql.NullTime
	LastReadAt sql.NullTime
	IsFavorite bool `gorm:"not null;default:false"`
	FolderID   uuid.NullUUID
}

// Active reports whether the member currently belongs to the room.
func (m Membership) Active() bool {
	return !m.LeftAt.Valid
}

// Folder groups rooms in a user's sidebar.
type Folder struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;index"`
	Name      string    `gorm:"not null"`
	CreatedAt time.Time
}

func (Room) TableName() string {
	return "rooms"
}

func (Membership) TableName() string {
	return "memberships"
}

func (Folder) TableName() string {
	return "folders"
}
