package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"teamline/internal/domain/message"
	"teamline/internal/events"
	"teamline/internal/transport/httpdto"
	teamline_errors "teamline/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	roomID := f.seedRoom(t, alice, bob)

	first, err := f.messageSvc.Send(ctx, roomID, alice, SendInput{Content: "hello"})
	require.NoError(t, err)
	_, err = f.messageSvc.Send(ctx, roomID, bob, SendInput{Content: "hi back"})
	require.NoError(t, err)

	views, err := f.messageSvc.ListMessages(ctx, roomID, alice, uuid.NullUUID{}, 10)
	require.NoError(t, err)
	require.Len(t, views, 2)
	// Newest first.
	assert.Equal(t, "hi back", views[0].Content)
	assert.Equal(t, "hello", views[1].Content)
	assert.Equal(t, first.ID, views[1].ID)

	assert.Equal(t, []string{events.EventMessage, events.EventMessage}, f.pub.names())
	assert.Equal(t, roomID, f.pub.last().RoomID)
}

func TestSendRejectsNonMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, mallory := uuid.New(), uuid.New()
	roomID := f.seedRoom(t, alice)

	_, err := f.messageSvc.Send(ctx, roomID, mallory, SendInput{Content: "let me in"})
	assert.ErrorIs(t, err, teamline_errors.ErrForbidden)

	require.NoError(t, f.roomSvc.Leave(ctx, roomID, alice))
	_, err = f.messageSvc.Send(ctx, roomID, alice, SendInput{Content: "i left"})
	assert.ErrorIs(t, err, teamline_errors.ErrForbidden)
}

func TestSendRejectsEmptyContent(t *testing.T) {
	f := newFixture(t)
	alice := uuid.New()
	roomID := f.seedRoom(t, alice)

	_, err := f.messageSvc.Send(context.Background(), roomID, alice, SendInput{Content: "   "})
	assert.ErrorIs(t, err, teamline_errors.ErrValidation)
}

func TestSendAttachmentOnly(t *testing.T) {
	f := newFixture(t)
	alice := uuid.New()
	roomID := f.seedRoom(t, alice)

	// A size above 2^53 must survive untouched.
	meta := httpdto.AttachmentMeta{Name: "dump.bin", Type: "application/octet-stream", Size: 1<<53 + 1}
	view, err := f.messageSvc.Send(context.Background(), roomID, alice, SendInput{
		Attachment: &meta,
	})
	require.NoError(t, err)
	require.NotNil(t, view.Attachment)
	assert.Equal(t, meta.Size, view.Attachment.Size)
}

func TestEditWithinWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := uuid.New()
	roomID := f.seedRoom(t, alice)

	sent, err := f.messageSvc.Send(ctx, roomID, alice, SendInput{Content: "typo"})
	require.NoError(t, err)
	f.backdateMessage(t, uuid.MustParse(sent.ID), 4*time.Minute+59*time.Second)

	patch, err := f.messageSvc.Edit(ctx, uuid.MustParse(sent.ID), alice, "fixed")
	require.NoError(t, err)
	assert.Equal(t, "fixed", patch.Content)
	assert.Equal(t, events.EventMessageUpdated, f.pub.last().Event)

	got, err := f.messages.GetByID(ctx, uuid.MustParse(sent.ID))
	require.NoError(t, err)
	assert.Equal(t, "fixed", got.Content)
	assert.True(t, got.EditedAt.Valid)
}

func TestEditWindowClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := uuid.New()
	roomID := f.seedRoom(t, alice)

	sent, err := f.messageSvc.Send(ctx, roomID, alice, SendInput{Content: "old"})
	require.NoError(t, err)
	f.backdateMessage(t, uuid.MustParse(sent.ID), 5*time.Minute+time.Second)

	_, err = f.messageSvc.Edit(ctx, uuid.MustParse(sent.ID), alice, "too late")
	assert.ErrorIs(t, err, ErrEditWindowClosed)

	_, err = f.messageSvc.SoftDelete(ctx, uuid.MustParse(sent.ID), alice)
	assert.ErrorIs(t, err, ErrEditWindowClosed)
}

func TestEditRequiresOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	roomID := f.seedRoom(t, alice, bob)

	sent, err := f.messageSvc.Send(ctx, roomID, alice, SendInput{Content: "mine"})
	require.NoError(t, err)

	_, err = f.messageSvc.Edit(ctx, uuid.MustParse(sent.ID), bob, "stolen")
	assert.ErrorIs(t, err, teamline_errors.ErrForbidden)
	_, err = f.messageSvc.SoftDelete(ctx, uuid.MustParse(sent.ID), bob)
	assert.ErrorIs(t, err, teamline_errors.ErrForbidden)
}

func TestSoftDeleteTombstonesEverywhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	roomID := f.seedRoom(t, alice, bob)

	parent, err := f.messageSvc.Send(ctx, roomID, alice, SendInput{Content: "secret"})
	require.NoError(t, err)
	parentID := uuid.MustParse(parent.ID)

	_, err = f.messageSvc.ToggleReaction(ctx, parentID, bob, "👍")
	require.NoError(t, err)
	_, err = f.messageSvc.Send(ctx, roomID, bob, SendInput{
		Content:   "a reply",
		ReplyToID: uuid.NullUUID{UUID: parentID, Valid: true},
	})
	require.NoError(t, err)
	require.NoError(t, f.messageSvc.Pin(ctx, roomID, parentID, bob))

	_, err = f.messageSvc.SoftDelete(ctx, parentID, alice)
	require.NoError(t, err)

	// Double delete conflicts.
	_, err = f.messageSvc.SoftDelete(ctx, parentID, alice)
	assert.ErrorIs(t, err, teamline_errors.ErrConflict)

	views, err := f.messageSvc.ListMessages(ctx, roomID, bob, uuid.NullUUID{}, 10)
	require.NoError(t, err)
	for _, v := range views {
		if v.ID == parent.ID {
			assert.True(t, v.Deleted)
			assert.Equal(t, message.Tombstone, v.Content)
			// Reactions survive the tombstone.
			require.Len(t, v.Reactions, 1)
		}
	}

	thread, err := f.messageSvc.GetThread(ctx, roomID, parentID, bob)
	require.NoError(t, err)
	assert.Equal(t, message.Tombstone, thread.Parent.Content)
	require.Len(t, thread.Replies, 1)

	pins, err := f.messageSvc.ListPins(ctx, roomID, bob)
	require.NoError(t, err)
	require.Len(t, pins, 1)
	assert.Equal(t, message.Tombstone, pins[0].Message.Content)
}

func TestMarkReadIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	roomID := f.seedRoom(t, alice, bob)

	for i := 0; i < 3; i++ {
		_, err := f.messageSvc.Send(ctx, roomID, alice, SendInput{Content: "ping"})
		require.NoError(t, err)
	}

	unread, err := f.messages.CountUnread(ctx, roomID, bob, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 3, unread)

	require.NoError(t, f.messageSvc.MarkRead(ctx, roomID, bob))
	require.NoError(t, f.messageSvc.MarkRead(ctx, roomID, bob))

	items, err := f.roomSvc.ListRooms(ctx, bob)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.EqualValues(t, 0, items[0].UnreadCount)

	views, err := f.messageSvc.ListMessages(ctx, roomID, alice, uuid.NullUUID{}, 10)
	require.NoError(t, err)
	for _, v := range views {
		assert.Equal(t, 1, v.ReadCount)
	}
}

func TestReadCountExcludesSender(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	roomID := f.seedRoom(t, alice, bob, carol)

	sent, err := f.messageSvc.Send(ctx, roomID, alice, SendInput{Content: "hello all"})
	require.NoError(t, err)

	require.NoError(t, f.messageSvc.MarkRead(ctx, roomID, bob))

	views, err := f.messageSvc.ListMessages(ctx, roomID, alice, uuid.NullUUID{}, 10)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, sent.ID, views[0].ID)
	// Bob read it; alice authored it and carol has not.
	assert.Equal(t, 1, views[0].ReadCount)
}

func TestToggleReactionRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	roomID := f.seedRoom(t, alice, bob)

	sent, err := f.messageSvc.Send(ctx, roomID, alice, SendInput{Content: "react to me"})
	require.NoError(t, err)
	msgID := uuid.MustParse(sent.ID)

	snap, err := f.messageSvc.ToggleReaction(ctx, msgID, bob, "🔥")
	require.NoError(t, err)
	require.Len(t, snap.Reactions, 1)
	assert.Equal(t, 1, snap.Reactions[0].Count)
	assert.Equal(t, []string{bob.String()}, snap.Reactions[0].VoterIDs)

	snap, err = f.messageSvc.ToggleReaction(ctx, msgID, alice, "🔥")
	require.NoError(t, err)
	require.Len(t, snap.Reactions, 1)
	assert.Equal(t, 2, snap.Reactions[0].Count)

	snap, err = f.messageSvc.ToggleReaction(ctx, msgID, bob, "🔥")
	require.NoError(t, err)
	require.Len(t, snap.Reactions, 1)
	assert.Equal(t, []string{alice.String()}, snap.Reactions[0].VoterIDs)

	assert.Equal(t, events.EventReactionUpdated, f.pub.last().Event)
}

func TestThreadIsFlat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	roomID := f.seedRoom(t, alice, bob)

	parent, err := f.messageSvc.Send(ctx, roomID, alice, SendInput{Content: "root"})
	require.NoError(t, err)
	parentID := uuid.MustParse(parent.ID)

	reply, err := f.messageSvc.Send(ctx, roomID, bob, SendInput{
		Content:   "first reply",
		ReplyToID: uuid.NullUUID{UUID: parentID, Valid: true},
	})
	require.NoError(t, err)

	// A reply to the reply belongs to the reply's thread, not the root's.
	_, err = f.messageSvc.Send(ctx, roomID, alice, SendInput{
		Content:   "nested",
		ReplyToID: uuid.NullUUID{UUID: uuid.MustParse(reply.ID), Valid: true},
	})
	require.NoError(t, err)

	thread, err := f.messageSvc.GetThread(ctx, roomID, parentID, alice)
	require.NoError(t, err)
	assert.Equal(t, parent.ID, thread.Parent.ID)
	require.Len(t, thread.Replies, 1)
	assert.Equal(t, reply.ID, thread.Replies[0].ID)

	nestedThread, err := f.messageSvc.GetThread(ctx, roomID, uuid.MustParse(reply.ID), alice)
	require.NoError(t, err)
	require.Len(t, nestedThread.Replies, 1)
	assert.Equal(t, "nested", nestedThread.Replies[0].Content)
}

func TestReplyMustTargetSameRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := uuid.New()
	roomA := f.seedRoom(t, alice)
	roomB := f.seedRoom(t, alice)

	parent, err := f.messageSvc.Send(ctx, roomA, alice, SendInput{Content: "in A"})
	require.NoError(t, err)

	_, err = f.messageSvc.Send(ctx, roomB, alice, SendInput{
		Content:   "cross-room reply",
		ReplyToID: uuid.NullUUID{UUID: uuid.MustParse(parent.ID), Valid: true},
	})
	assert.ErrorIs(t, err, teamline_errors.ErrNotFound)
}

func TestPinIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	roomID := f.seedRoom(t, alice, bob)

	sent, err := f.messageSvc.Send(ctx, roomID, alice, SendInput{Content: "important"})
	require.NoError(t, err)
	msgID := uuid.MustParse(sent.ID)

	// Anyone in the room may pin, not just the author.
	require.NoError(t, f.messageSvc.Pin(ctx, roomID, msgID, bob))
	require.NoError(t, f.messageSvc.Pin(ctx, roomID, msgID, bob))

	pins, err := f.messageSvc.ListPins(ctx, roomID, alice)
	require.NoError(t, err)
	require.Len(t, pins, 1)
	assert.Equal(t, sent.ID, pins[0].Message.ID)

	require.NoError(t, f.messageSvc.Unpin(ctx, roomID, msgID, bob))
	require.NoError(t, f.messageSvc.Unpin(ctx, roomID, msgID, bob))

	pins, err = f.messageSvc.ListPins(ctx, roomID, alice)
	require.NoError(t, err)
	assert.Empty(t, pins)
}

func TestListMessagesCursor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := uuid.New()
	roomID := f.seedRoom(t, alice)

	var ids []string
	for i := 0; i < 5; i++ {
		v, err := f.messageSvc.Send(ctx, roomID, alice, SendInput{Content: "msg"})
		require.NoError(t, err)
		f.backdateMessage(t, uuid.MustParse(v.ID), time.Duration(5-i)*time.Minute)
		ids = append(ids, v.ID)
	}

	page, err := f.messageSvc.ListMessages(ctx, roomID, alice, uuid.NullUUID{}, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[4], page[0].ID)
	assert.Equal(t, ids[3], page[1].ID)

	cursor := uuid.NullUUID{UUID: uuid.MustParse(page[1].ID), Valid: true}
	page, err = f.messageSvc.ListMessages(ctx, roomID, alice, cursor, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)
}

func TestMarkReadRequiresActiveMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	roomID := f.seedRoom(t, alice, bob)

	require.NoError(t, f.roomSvc.Leave(ctx, roomID, bob))
	err := f.messageSvc.MarkRead(ctx, roomID, bob)
	assert.True(t, errors.Is(err, teamline_errors.ErrForbidden))
}
