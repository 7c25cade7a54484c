package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"teamline/internal/domain/message"
	"teamline/internal/events"
	"teamline/internal/repository"
	"teamline/internal/transport/httpdto"
	teamline_errors "teamline/pkg/errors"
	"teamline/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	minPollOptions = 2
	maxPollOptions = 10
)

// PollService owns poll creation and vote toggling. A poll and its carrier
// message are created atomically; for single-choice polls at most one active
// vote per (user, poll) holds after any sequence of calls.
type PollService struct {
	db        *gorm.DB
	rooms     repository.RoomRepository
	messages  repository.MessageRepository
	polls     repository.PollRepository
	publisher events.Publisher
	log       *logger.Logger
}

func NewPollService(db *gorm.DB, rooms repository.RoomRepository, messages repository.MessageRepository, polls repository.PollRepository, publisher events.Publisher, log *logger.Logger) *PollService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &PollService{
		db:        db,
		rooms:     rooms,
		messages:  messages,
		polls:     polls,
		publisher: publisher,
		log:       log,
	}
}

// CreatePoll creates the placeholder message, the poll and its options in one
// transaction, then broadcasts the composite message event with every option
// at zero votes.
func (s *PollService) CreatePoll(ctx context.Context, roomID, creatorID uuid.UUID, question string, options []string, isMultiple bool) (httpdto.MessageView, error) {
	m, err := s.rooms.GetMembership(ctx, roomID, creatorID)
	if err != nil {
		if err == teamline_errors.ErrNotFound {
			return httpdto.MessageView{}, teamline_errors.ErrForbidden
		}
		return httpdto.MessageView{}, err
	}
	if !m.Active() {
		return httpdto.MessageView{}, teamline_errors.ErrForbidden
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return httpdto.MessageView{}, fmt.Errorf("%w: poll question must not be empty", teamline_errors.ErrValidation)
	}
	if len(options) < minPollOptions || len(options) > maxPollOptions {
		return httpdto.MessageView{}, fmt.Errorf("%w: polls need %d-%d options", teamline_errors.ErrValidation, minPollOptions, maxPollOptions)
	}
	for i := range options {
		options[i] = strings.TrimSpace(options[i])
		if options[i] == "" {
			return httpdto.MessageView{}, fmt.Errorf("%w: poll options must not be empty", teamline_errors.ErrValidation)
		}
	}

	now := time.Now()
	pollID := uuid.New()
	msg := message.Message{
		ID:        uuid.New(),
		RoomID:    roomID,
		SenderID:  creatorID,
		Type:      message.TypePoll,
		Content:   fmt.Sprintf("[poll] %s", question),
		PollID:    uuid.NullUUID{UUID: pollID, Valid: true},
		CreatedAt: now,
	}
	poll := message.Poll{
		ID:             pollID,
		MessageID:      uuid.NullUUID{UUID: msg.ID, Valid: true},
		Question:       question,
		AllowsMultiple: isMultiple,
		CreatedBy:      creatorID,
		CreatedAt:      now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txMessages := repository.NewMessageRepository(tx)
		txRooms := repository.NewRoomRepository(tx)
		txPolls := repository.NewPollRepository(tx)

		if err := txMessages.Create(ctx, &msg); err != nil {
			return err
		}
		if err := txPolls.Create(ctx, &poll); err != nil {
			return err
		}
		for i, text := range options {
			o := message.PollOption{
				ID:       uuid.New(),
				PollID:   pollID,
				Text:     text,
				Position: i,
			}
			if err := txPolls.CreateOption(ctx, &o); err != nil {
				return err
			}
		}
		return txRooms.Touch(ctx, roomID, now)
	})
	if err != nil {
		return httpdto.MessageView{}, err
	}

	view := baseView(msg)
	pv, err := buildPollView(ctx, s.polls, poll)
	if err != nil {
		return httpdto.MessageView{}, err
	}
	view.Poll = &pv

	s.publish(ctx, roomID, events.EventMessage, view)
	return view, nil
}

// Vote toggles the user's vote on an option. Single-choice polls clear the
// user's other votes first, so re-clicking the already-selected option clears
// the vote entirely. Broadcasts the full per-option snapshot.
func (s *PollService) Vote(ctx context.Context, pollID, userID, optionID uuid.UUID) (httpdto.PollView, error) {
	poll, err := s.polls.GetByID(ctx, pollID)
	if err != nil {
		return httpdto.PollView{}, err
	}
	option, err := s.polls.GetOption(ctx, optionID)
	if err != nil {
		return httpdto.PollView{}, err
	}
	if option.PollID != pollID {
		return httpdto.PollView{}, teamline_errors.ErrNotFound
	}
	if !poll.MessageID.Valid {
		return httpdto.PollView{}, teamline_errors.ErrNotFound
	}
	msg, err := s.messages.GetByID(ctx, poll.MessageID.UUID)
	if err != nil {
		return httpdto.PollView{}, err
	}
	m, err := s.rooms.GetMembership(ctx, msg.RoomID, userID)
	if err != nil {
		if err == teamline_errors.ErrNotFound {
			return httpdto.PollView{}, teamline_errors.ErrForbidden
		}
		return httpdto.PollView{}, err
	}
	if !m.Active() {
		return httpdto.PollView{}, teamline_errors.ErrForbidden
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txPolls := repository.NewPollRepository(tx)

		if !poll.AllowsMultiple {
			existing, err := txPolls.GetUserVotes(ctx, pollID, userID)
			if err != nil {
				return err
			}
			hadThis := false
			for _, v := range existing {
				if v.OptionID == optionID {
					hadThis = true
					break
				}
			}
			if err := txPolls.DeleteUserVotes(ctx, pollID, userID); err != nil {
				return err
			}
			if hadThis {
				// Re-clicking the selected option is the explicit
				// "no selection" affordance.
				return nil
			}
			return txPolls.CreateVote(ctx, &message.PollVote{
				OptionID: optionID,
				UserID:   userID,
				PollID:   pollID,
				VotedAt:  time.Now(),
			})
		}

		err := txPolls.DeleteVote(ctx, optionID, userID)
		if err == teamline_errors.ErrNotFound {
			return txPolls.CreateVote(ctx, &message.PollVote{
				OptionID: optionID,
				UserID:   userID,
				PollID:   pollID,
				VotedAt:  time.Now(),
			})
		}
		return err
	})
	if err != nil {
		return httpdto.PollView{}, err
	}

	view, err := buildPollView(ctx, s.polls, poll)
	if err != nil {
		return httpdto.PollView{}, err
	}
	s.publish(ctx, msg.RoomID, events.EventPollVoted, view)
	return view, nil
}

// GetPoll returns the full snapshot for a poll the user can see.
func (s *PollService) GetPoll(ctx context.Context, pollID, userID uuid.UUID) (httpdto.PollView, error) {
	poll, err := s.polls.GetByID(ctx, pollID)
	if err != nil {
		return httpdto.PollView{}, err
	}
	if poll.MessageID.Valid {
		msg, err := s.messages.GetByID(ctx, poll.MessageID.UUID)
		if err != nil {
			return httpdto.PollView{}, err
		}
		if _, err := s.rooms.GetMembership(ctx, msg.RoomID, userID); err != nil {
			if err == teamline_errors.ErrNotFound {
				return httpdto.PollView{}, teamline_errors.ErrForbidden
			}
			return httpdto.PollView{}, err
		}
	}
	return buildPollView(ctx, s.polls, poll)
}

func (s *PollService) publish(ctx context.Context, roomID uuid.UUID, event string, payload any) {
	if err := s.publisher.Publish(ctx, roomID, event, payload); err != nil && s.log != nil {
		s.log.Errorf("publish %s failed: %s", event, err)
	}
}
