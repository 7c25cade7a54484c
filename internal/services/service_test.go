package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"teamline/internal/domain/message"
	"teamline/internal/domain/room"
	"teamline/internal/repository"
	"teamline/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&room.Room{},
		&room.Membership{},
		&room.Folder{},
		&message.Message{},
		&message.Reaction{},
		&message.ReadReceipt{},
		&message.PinnedMessage{},
		&message.Poll{},
		&message.PollOption{},
		&message.PollVote{},
	))
	return db
}

type publishedEvent struct {
	RoomID  uuid.UUID
	Event   string
	Payload any
}

// recordingPublisher captures broadcasts so tests can assert on them.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, roomID uuid.UUID, event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{RoomID: roomID, Event: event, Payload: payload})
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Event)
	}
	return out
}

func (p *recordingPublisher) last() publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return publishedEvent{}
	}
	return p.events[len(p.events)-1]
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type fixture struct {
	db       *gorm.DB
	rooms    repository.RoomRepository
	messages repository.MessageRepository
	polls    repository.PollRepository
	pub      *recordingPublisher

	roomSvc    *RoomService
	messageSvc *MessageService
	pollSvc    *PollService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	rooms := repository.NewRoomRepository(db)
	messages := repository.NewMessageRepository(db)
	polls := repository.NewPollRepository(db)
	pub := &recordingPublisher{}
	log := logger.NewNop()

	return &fixture{
		db:         db,
		rooms:      rooms,
		messages:   messages,
		polls:      polls,
		pub:        pub,
		roomSvc:    NewRoomService(db, rooms, messages, pub, log),
		messageSvc: NewMessageService(db, rooms, messages, polls, pub, log),
		pollSvc:    NewPollService(db, rooms, messages, polls, pub, log),
	}
}

// seedRoom inserts a group room with active memberships for the given users.
func (f *fixture) seedRoom(t *testing.T, members ...uuid.UUID) uuid.UUID {
	t.Helper()
	now := time.Now().Add(-time.Hour)
	rm := room.Room{
		ID:        uuid.New(),
		Kind:      room.KindGroup,
		Name:      sql.NullString{String: "general", Valid: true},
		ViewMode:  room.ViewModeChat,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.db.Create(&rm).Error)
	for _, userID := range members {
		m := room.Membership{RoomID: rm.ID, UserID: userID, JoinedAt: now}
		require.NoError(t, f.db.Create(&m).Error)
	}
	return rm.ID
}

// backdateMessage rewinds a message's creation time.
func (f *fixture) backdateMessage(t *testing.T, id uuid.UUID, age time.Duration) {
	t.Helper()
	res := f.db.Model(&message.Message{}).
		Where("id = ?", id).
		Update("created_at", time.Now().Add(-age))
	require.NoError(t, res.Error)
	require.EqualValues(t, 1, res.RowsAffected)
}
