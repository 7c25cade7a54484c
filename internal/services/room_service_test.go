package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"teamline/internal/domain/message"
	"teamline/internal/domain/room"
	"teamline/internal/events"
	teamline_errors "teamline/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectRoomIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	first, err := f.roomSvc.CreateDirectRoom(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, room.KindDirect, first.Kind)

	// Same pair from either side resolves to the same room.
	again, err := f.roomSvc.CreateDirectRoom(ctx, bob, alice)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	// A third user gets a different room.
	carol := uuid.New()
	other, err := f.roomSvc.CreateDirectRoom(ctx, alice, carol)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestSelfChatIsSingleMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := uuid.New()

	v, err := f.roomSvc.CreateDirectRoom(ctx, alice, alice)
	require.NoError(t, err)
	require.Len(t, v.Members, 1)

	again, err := f.roomSvc.CreateDirectRoom(ctx, alice, alice)
	require.NoError(t, err)
	assert.Equal(t, v.ID, again.ID)

	// The self-chat must not collide with a real pair containing alice.
	bob := uuid.New()
	pair, err := f.roomSvc.CreateDirectRoom(ctx, alice, bob)
	require.NoError(t, err)
	assert.NotEqual(t, v.ID, pair.ID)
}

func TestDirectRoomReactivation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	first, err := f.roomSvc.CreateDirectRoom(ctx, alice, bob)
	require.NoError(t, err)
	roomID := uuid.MustParse(first.ID)

	require.NoError(t, f.roomSvc.Leave(ctx, roomID, alice))

	again, err := f.roomSvc.CreateDirectRoom(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	m, err := f.rooms.GetMembership(ctx, roomID, alice)
	require.NoError(t, err)
	assert.True(t, m.Active())
}

func TestCreateTopicRoomValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := uuid.New()

	cases := []struct {
		name string
		in   CreateTopicRoomInput
	}{
		{"empty name", CreateTopicRoomInput{Name: "  "}},
		{"name too long", CreateTopicRoomInput{Name: strings.Repeat("x", 61)}},
		{"description too long", CreateTopicRoomInput{Name: "ok", Description: strings.Repeat("y", 301)}},
		{"bad view mode", CreateTopicRoomInput{Name: "ok", ViewMode: "kanban"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.roomSvc.CreateTopicRoom(ctx, creator, tc.in)
			assert.ErrorIs(t, err, teamline_errors.ErrValidation)
		})
	}

	// Exactly at the limits passes, and rune count is what matters.
	v, err := f.roomSvc.CreateTopicRoom(ctx, creator, CreateTopicRoomInput{
		Name:        strings.Repeat("é", 60),
		Description: strings.Repeat("ü", 300),
		ViewMode:    "board",
	})
	require.NoError(t, err)
	assert.Equal(t, room.ViewModeBoard, v.ViewMode)
}

func TestCreateTopicRoomPostsSystemMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator, bob := uuid.New(), uuid.New()

	v, err := f.roomSvc.CreateTopicRoom(ctx, creator, CreateTopicRoomInput{
		Name:      "launch plan",
		MemberIDs: []uuid.UUID{bob, creator, bob}, // dupes collapse
	})
	require.NoError(t, err)
	require.Len(t, v.Members, 2)

	var msgs []message.Message
	require.NoError(t, f.db.Where("room_id = ?", v.ID).Find(&msgs).Error)
	require.Len(t, msgs, 1)
	assert.Equal(t, message.TypeSystem, msgs[0].Type)
	assert.Contains(t, msgs[0].Content, "created the room")
}

func TestInviteCreatesNewRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()

	source, err := f.roomSvc.CreateTopicRoom(ctx, alice, CreateTopicRoomInput{
		Name:      "core team",
		MemberIDs: []uuid.UUID{bob},
	})
	require.NoError(t, err)
	sourceID := uuid.MustParse(source.ID)

	_, err = f.messageSvc.Send(ctx, sourceID, alice, SendInput{Content: "private history"})
	require.NoError(t, err)
	f.pub.reset()

	next, err := f.roomSvc.Invite(ctx, sourceID, alice, []uuid.UUID{carol})
	require.NoError(t, err)
	assert.NotEqual(t, source.ID, next.ID)
	assert.Equal(t, source.Name, next.Name)
	require.Len(t, next.Members, 3)

	// The source room's membership and history are untouched.
	sourceAfter, err := f.roomSvc.GetRoom(ctx, sourceID, alice)
	require.NoError(t, err)
	assert.Len(t, sourceAfter.Members, 2)

	var count int64
	require.NoError(t, f.db.Model(&message.Message{}).
		Where("room_id = ? AND type = ?", source.ID, message.TypeText).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)

	// Carol cannot see the source room's history.
	_, err = f.messageSvc.ListMessages(ctx, sourceID, carol, uuid.NullUUID{}, 10)
	assert.ErrorIs(t, err, teamline_errors.ErrForbidden)

	// The members_added event lands on the NEW room's channel.
	last := f.pub.last()
	assert.Equal(t, events.EventMembersAdded, last.Event)
	assert.Equal(t, next.ID, last.RoomID.String())
}

func TestInviteRequiresActiveMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, mallory := uuid.New(), uuid.New(), uuid.New()
	roomID := f.seedRoom(t, alice, bob)

	_, err := f.roomSvc.Invite(ctx, roomID, mallory, []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, teamline_errors.ErrForbidden)

	require.NoError(t, f.roomSvc.Leave(ctx, roomID, bob))
	_, err = f.roomSvc.Invite(ctx, roomID, bob, []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, teamline_errors.ErrForbidden)
}

func TestLeaveTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	roomID := f.seedRoom(t, alice, bob)

	require.NoError(t, f.roomSvc.Leave(ctx, roomID, bob))
	assert.ErrorIs(t, f.roomSvc.Leave(ctx, roomID, bob), teamline_errors.ErrConflict)

	// History stays visible to the departed member.
	_, err := f.messageSvc.ListMessages(ctx, roomID, bob, uuid.NullUUID{}, 10)
	assert.NoError(t, err)
}

func TestListRoomsOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	quiet := f.seedRoom(t, alice, bob)
	busy := f.seedRoom(t, alice, bob)
	favorite := f.seedRoom(t, alice, bob)

	_, err := f.messageSvc.Send(ctx, busy, bob, SendInput{Content: "recent"})
	require.NoError(t, err)
	require.NoError(t, f.roomSvc.ToggleFavorite(ctx, favorite, alice, true))

	items, err := f.roomSvc.ListRooms(ctx, alice)
	require.NoError(t, err)
	require.Len(t, items, 3)

	// Favorites first, then most recent activity.
	assert.Equal(t, favorite.String(), items[0].Room.ID)
	assert.Equal(t, busy.String(), items[1].Room.ID)
	assert.Equal(t, quiet.String(), items[2].Room.ID)

	assert.EqualValues(t, 1, items[1].UnreadCount)
	require.NotNil(t, items[1].LastMessage)
	assert.Equal(t, "recent", items[1].LastMessage.Content)
}

func TestFolderAssignmentOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	roomID := f.seedRoom(t, alice, bob)

	folder, err := f.roomSvc.CreateFolder(ctx, alice, "work")
	require.NoError(t, err)
	folderID := uuid.MustParse(folder.ID)

	require.NoError(t, f.roomSvc.AssignFolder(ctx, roomID, alice, uuid.NullUUID{UUID: folderID, Valid: true}))

	// Folders are private; bob cannot use alice's.
	err = f.roomSvc.AssignFolder(ctx, roomID, bob, uuid.NullUUID{UUID: folderID, Valid: true})
	assert.ErrorIs(t, err, teamline_errors.ErrForbidden)

	// Clearing works.
	require.NoError(t, f.roomSvc.AssignFolder(ctx, roomID, alice, uuid.NullUUID{}))
	m, err := f.rooms.GetMembership(ctx, roomID, alice)
	require.NoError(t, err)
	assert.False(t, m.FolderID.Valid)
}

func TestGetRoomRequiresMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, mallory := uuid.New(), uuid.New()
	roomID := f.seedRoom(t, alice)

	_, err := f.roomSvc.GetRoom(ctx, roomID, mallory)
	assert.ErrorIs(t, err, teamline_errors.ErrForbidden)

	_, err = f.roomSvc.GetRoom(ctx, roomID, alice)
	assert.NoError(t, err)
}

func TestSendBumpsRoomActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := uuid.New()
	roomID := f.seedRoom(t, alice)

	before, err := f.rooms.GetByID(ctx, roomID)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = f.messageSvc.Send(ctx, roomID, alice, SendInput{Content: "bump"})
	require.NoError(t, err)

	after, err := f.rooms.GetByID(ctx, roomID)
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
}

func TestMembershipMutationsHideUnknownRooms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, mallory := uuid.New(), uuid.New()
	roomID := f.seedRoom(t, alice)

	// Non-members get the same answer whether or not the room exists.
	assert.ErrorIs(t, f.roomSvc.Leave(ctx, roomID, mallory), teamline_errors.ErrForbidden)
	assert.ErrorIs(t, f.roomSvc.ToggleFavorite(ctx, roomID, mallory, true), teamline_errors.ErrForbidden)
	assert.ErrorIs(t, f.roomSvc.AssignFolder(ctx, roomID, mallory, uuid.NullUUID{}), teamline_errors.ErrForbidden)
	assert.ErrorIs(t, f.roomSvc.Leave(ctx, uuid.New(), mallory), teamline_errors.ErrForbidden)
}

func TestListFolders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	work, err := f.roomSvc.CreateFolder(ctx, alice, "work")
	require.NoError(t, err)
	home, err := f.roomSvc.CreateFolder(ctx, alice, "home")
	require.NoError(t, err)
	_, err = f.roomSvc.CreateFolder(ctx, bob, "bob's")
	require.NoError(t, err)

	views, err := f.roomSvc.ListFolders(ctx, alice)
	require.NoError(t, err)
	require.Len(t, views, 2)
	// Oldest first, and only alice's own folders.
	assert.Equal(t, work.ID, views[0].ID)
	assert.Equal(t, home.ID, views[1].ID)

	views, err = f.roomSvc.ListFolders(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, views)
}
