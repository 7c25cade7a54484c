package services

import (
	"context"
	"testing"

	"teamline/internal/domain/message"
	"teamline/internal/events"
	"teamline/internal/transport/httpdto"
	teamline_errors "teamline/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createPoll(t *testing.T, f *fixture, roomID, creator uuid.UUID, multiple bool) httpdto.MessageView {
	t.Helper()
	view, err := f.pollSvc.CreatePoll(context.Background(), roomID, creator,
		"lunch?", []string{"pizza", "sushi", "salad"}, multiple)
	require.NoError(t, err)
	return view
}

func optionID(t *testing.T, pv *httpdto.PollView, text string) uuid.UUID {
	t.Helper()
	for _, o := range pv.Options {
		if o.Text == text {
			return uuid.MustParse(o.ID)
		}
	}
	t.Fatalf("option %q not found", text)
	return uuid.Nil
}

func TestCreatePollValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := uuid.New()
	roomID := f.seedRoom(t, alice)

	_, err := f.pollSvc.CreatePoll(ctx, roomID, alice, " ", []string{"a", "b"}, false)
	assert.ErrorIs(t, err, teamline_errors.ErrValidation)

	_, err = f.pollSvc.CreatePoll(ctx, roomID, alice, "q", []string{"only one"}, false)
	assert.ErrorIs(t, err, teamline_errors.ErrValidation)

	eleven := make([]string, 11)
	for i := range eleven {
		eleven[i] = "opt"
	}
	_, err = f.pollSvc.CreatePoll(ctx, roomID, alice, "q", eleven, false)
	assert.ErrorIs(t, err, teamline_errors.ErrValidation)

	_, err = f.pollSvc.CreatePoll(ctx, roomID, alice, "q", []string{"a", " "}, false)
	assert.ErrorIs(t, err, teamline_errors.ErrValidation)

	_, err = f.pollSvc.CreatePoll(ctx, roomID, uuid.New(), "q", []string{"a", "b"}, false)
	assert.ErrorIs(t, err, teamline_errors.ErrForbidden)
}

func TestCreatePollPostsCarrierMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	roomID := f.seedRoom(t, alice, bob)

	view := createPoll(t, f, roomID, alice, false)
	assert.Equal(t, message.TypePoll, view.Type)
	require.NotNil(t, view.Poll)
	require.Len(t, view.Poll.Options, 3)
	for _, o := range view.Poll.Options {
		assert.Zero(t, o.VoteCount)
		assert.Empty(t, o.VoterIDs)
	}

	// The poll shows up embedded in the timeline.
	msgs, err := f.messageSvc.ListMessages(ctx, roomID, bob, uuid.NullUUID{}, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].Poll)
	assert.Equal(t, "lunch?", msgs[0].Poll.Question)

	assert.Equal(t, events.EventMessage, f.pub.last().Event)
}

func TestSingleChoiceExclusivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	roomID := f.seedRoom(t, alice, bob)

	view := createPoll(t, f, roomID, alice, false)
	pollID := uuid.MustParse(view.Poll.ID)
	pizza := optionID(t, view.Poll, "pizza")
	sushi := optionID(t, view.Poll, "sushi")

	snap, err := f.pollSvc.Vote(ctx, pollID, bob, pizza)
	require.NoError(t, err)
	assert.Equal(t, 1, totalVotes(snap))
	assert.Equal(t, []string{bob.String()}, votersOf(snap, "pizza"))

	// Switching moves the single vote.
	snap, err = f.pollSvc.Vote(ctx, pollID, bob, sushi)
	require.NoError(t, err)
	assert.Equal(t, 1, totalVotes(snap))
	assert.Empty(t, votersOf(snap, "pizza"))
	assert.Equal(t, []string{bob.String()}, votersOf(snap, "sushi"))

	// Re-clicking the selected option clears the vote.
	snap, err = f.pollSvc.Vote(ctx, pollID, bob, sushi)
	require.NoError(t, err)
	assert.Zero(t, totalVotes(snap))

	assert.Equal(t, events.EventPollVoted, f.pub.last().Event)
}

func TestMultipleChoiceToggles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	roomID := f.seedRoom(t, alice, bob)

	view := createPoll(t, f, roomID, alice, true)
	pollID := uuid.MustParse(view.Poll.ID)
	pizza := optionID(t, view.Poll, "pizza")
	sushi := optionID(t, view.Poll, "sushi")

	_, err := f.pollSvc.Vote(ctx, pollID, bob, pizza)
	require.NoError(t, err)
	snap, err := f.pollSvc.Vote(ctx, pollID, bob, sushi)
	require.NoError(t, err)
	assert.Equal(t, 2, totalVotes(snap))

	// Toggling one off leaves the other in place.
	snap, err = f.pollSvc.Vote(ctx, pollID, bob, pizza)
	require.NoError(t, err)
	assert.Equal(t, 1, totalVotes(snap))
	assert.Equal(t, []string{bob.String()}, votersOf(snap, "sushi"))
}

func TestVoteRequiresMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := uuid.New()
	roomID := f.seedRoom(t, alice)

	view := createPoll(t, f, roomID, alice, false)
	pollID := uuid.MustParse(view.Poll.ID)
	pizza := optionID(t, view.Poll, "pizza")

	_, err := f.pollSvc.Vote(ctx, pollID, uuid.New(), pizza)
	assert.ErrorIs(t, err, teamline_errors.ErrForbidden)
}

func TestVoteRejectsForeignOption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := uuid.New()
	roomID := f.seedRoom(t, alice)

	one := createPoll(t, f, roomID, alice, false)
	two := createPoll(t, f, roomID, alice, false)

	// Option from poll two used against poll one.
	_, err := f.pollSvc.Vote(ctx, uuid.MustParse(one.Poll.ID), alice, optionID(t, two.Poll, "pizza"))
	assert.ErrorIs(t, err, teamline_errors.ErrNotFound)
}

func TestGetPollSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	roomID := f.seedRoom(t, alice, bob)

	view := createPoll(t, f, roomID, alice, true)
	pollID := uuid.MustParse(view.Poll.ID)
	pizza := optionID(t, view.Poll, "pizza")

	_, err := f.pollSvc.Vote(ctx, pollID, alice, pizza)
	require.NoError(t, err)
	_, err = f.pollSvc.Vote(ctx, pollID, bob, pizza)
	require.NoError(t, err)

	snap, err := f.pollSvc.GetPoll(ctx, pollID, bob)
	require.NoError(t, err)
	assert.Equal(t, 2, len(votersOf(snap, "pizza")))

	_, err = f.pollSvc.GetPoll(ctx, pollID, uuid.New())
	assert.ErrorIs(t, err, teamline_errors.ErrForbidden)
}

func totalVotes(pv httpdto.PollView) int {
	total := 0
	for _, o := range pv.Options {
		total += o.VoteCount
	}
	return total
}

func votersOf(pv httpdto.PollView, text string) []string {
	for _, o := range pv.Options {
		if o.Text == text {
			return o.VoterIDs
		}
	}
	return nil
}
