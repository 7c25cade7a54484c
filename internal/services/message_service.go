package services

import (
	"context"
	"database/sql"
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

// DefaultEditWindow bounds how long a sender may edit or delete a message.
const DefaultEditWindow = 5 * time.Minute

var (
	ErrEditWindowClosed = fmt.Errorf("%w: the time window for changing this message has passed", teamline_errors.ErrValidation)
	ErrEmptyContent     = fmt.Errorf("%w: message content must not be empty", teamline_errors.ErrValidation)
)

// MessageService owns the message lifecycle: send, time-boxed edit and soft
// delete, read receipts, reactions, threads and pins. Every mutation commits
// before its event is published.
type MessageService struct {
	db         *gorm.DB
	rooms      repository.RoomRepository
	messages   repository.MessageRepository
	polls      repository.PollRepository
	publisher  events.Publisher
	log        *logger.Logger
	editWindow time.Duration
}

func NewMessageService(db *gorm.DB, rooms repository.RoomRepository, messages repository.MessageRepository, polls repository.PollRepository, publisher events.Publisher, log *logger.Logger) *MessageService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &MessageService{
		db:         db,
		rooms:      rooms,
		messages:   messages,
		polls:      polls,
		publisher:  publisher,
		log:        log,
		editWindow: DefaultEditWindow,
	}
}

// SetEditWindow overrides the edit/delete window.
func (s *MessageService) SetEditWindow(d time.Duration) {
	if d > 0 {
		s.editWindow = d
	}
}

type SendInput struct {
	Content    string
	ReplyToID  uuid.NullUUID
	Attachment *httpdto.AttachmentMeta
	Event      *httpdto.EventMeta
}

// Send persists a message from an active member, bumps room activity and
// broadcasts the full normalized message. The sender is treated as caught-up
// with their own send.
func (s *MessageService) Send(ctx context.Context, roomID, senderID uuid.UUID, in SendInput) (httpdto.MessageView, error) {
	membership, err := s.activeMembership(ctx, roomID, senderID)
	if err != nil {
		return httpdto.MessageView{}, err
	}

	content := strings.TrimSpace(in.Content)
	if content == "" && in.Attachment == nil && in.Event == nil {
		return httpdto.MessageView{}, ErrEmptyContent
	}

	if in.ReplyToID.Valid {
		parent, err := s.messages.GetByID(ctx, in.ReplyToID.UUID)
		if err != nil {
			return httpdto.MessageView{}, err
		}
		if parent.RoomID != roomID {
			return httpdto.MessageView{}, teamline_errors.ErrNotFound
		}
	}

	msg := message.Message{
		ID:        uuid.New(),
		RoomID:    roomID,
		SenderID:  senderID,
		Type:      message.TypeText,
		Content:   content,
		ReplyToID: in.ReplyToID,
		CreatedAt: time.Now(),
	}
	if in.Attachment != nil {
		msg.AttachmentName = sql.NullString{String: in.Attachment.Name, Valid: true}
		msg.AttachmentType = sql.NullString{String: in.Attachment.Type, Valid: true}
		msg.AttachmentSize = sql.NullInt64{Int64: in.Attachment.Size, Valid: true}
	}
	if in.Event != nil {
		msg.Type = message.TypeEvent
		msg.EventTitle = sql.NullString{String: in.Event.Title, Valid: true}
		msg.EventAt = sql.NullTime{Time: in.Event.At, Valid: true}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txMessages := repository.NewMessageRepository(tx)
		txRooms := repository.NewRoomRepository(tx)

		if err := txMessages.Create(ctx, &msg); err != nil {
			return err
		}
		if err := txRooms.Touch(ctx, roomID, msg.CreatedAt); err != nil {
			return err
		}
		membership.LastReadAt = sql.NullTime{Time: msg.CreatedAt, Valid: true}
		return txRooms.UpdateMembership(ctx, membership)
	})
	if err != nil {
		return httpdto.MessageView{}, err
	}

	view := baseView(msg)
	s.publish(ctx, roomID, events.EventMessage, view)
	return view, nil
}

// Edit mutates content iff the requester is the sender, the edit window is
// still open and the message is not deleted. Broadcasts a partial patch.
func (s *MessageService) Edit(ctx context.Context, messageID, requesterID uuid.UUID, newContent string) (httpdto.MessageUpdatedPayload, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return httpdto.MessageUpdatedPayload{}, err
	}
	if msg.SenderID != requesterID {
		return httpdto.MessageUpdatedPayload{}, teamline_errors.ErrForbidden
	}
	if msg.Deleted() {
		return httpdto.MessageUpdatedPayload{}, teamline_errors.ErrConflict
	}
	newContent = strings.TrimSpace(newContent)
	if newContent == "" {
		return httpdto.MessageUpdatedPayload{}, ErrEmptyContent
	}
	if time.Since(msg.CreatedAt) > s.editWindow {
		return httpdto.MessageUpdatedPayload{}, ErrEditWindowClosed
	}

	now := time.Now()
	msg.Content = newContent
	msg.EditedAt = sql.NullTime{Time: now, Valid: true}
	if err := s.messages.Update(ctx, msg); err != nil {
		return httpdto.MessageUpdatedPayload{}, err
	}

	payload := httpdto.MessageUpdatedPayload{
		ID:       msg.ID.String(),
		RoomID:   msg.RoomID.String(),
		Content:  msg.Content,
		EditedAt: now,
	}
	s.publish(ctx, msg.RoomID, events.EventMessageUpdated, payload)
	return payload, nil
}

// SoftDelete tombstones the message under the same ownership and window rules
// as Edit. The row and all relations stay put; receivers patch in place.
func (s *MessageService) SoftDelete(ctx context.Context, messageID, requesterID uuid.UUID) (httpdto.MessageDeletedPayload, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return httpdto.MessageDeletedPayload{}, err
	}
	if msg.SenderID != requesterID {
		return httpdto.MessageDeletedPayload{}, teamline_errors.ErrForbidden
	}
	if msg.Deleted() {
		return httpdto.MessageDeletedPayload{}, teamline_errors.ErrConflict
	}
	if time.Since(msg.CreatedAt) > s.editWindow {
		return httpdto.MessageDeletedPayload{}, ErrEditWindowClosed
	}

	msg.Content = message.Tombstone
	msg.DeletedAt = sql.NullTime{Time: time.Now(), Valid: true}
	if err := s.messages.Update(ctx, msg); err != nil {
		return httpdto.MessageDeletedPayload{}, err
	}

	payload := httpdto.MessageDeletedPayload{
		ID:     msg.ID.String(),
		RoomID: msg.RoomID.String(),
	}
	s.publish(ctx, msg.RoomID, events.EventMessageDeleted, payload)
	return payload, nil
}

// MarkRead moves the member's read cursor and upserts a receipt for every
// unread message authored by someone else, all in one transaction. Safe to
// call repeatedly.
func (s *MessageService) MarkRead(ctx context.Context, roomID, userID uuid.UUID) error {
	membership, err := s.activeMembership(ctx, roomID, userID)
	if err != nil {
		return err
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txMessages := repository.NewMessageRepository(tx)
		txRooms := repository.NewRoomRepository(tx)

		membership.LastReadAt = sql.NullTime{Time: now, Valid: true}
		if err := txRooms.UpdateMembership(ctx, membership); err != nil {
			return err
		}

		ids, err := txMessages.GetUnreadMessageIDs(ctx, roomID, userID)
		if err != nil {
			return err
		}
		receipts := make([]message.ReadReceipt, 0, len(ids))
		for _, id := range ids {
			receipts = append(receipts, message.ReadReceipt{
				MessageID: id,
				UserID:    userID,
				ReadAt:    now,
			})
		}
		return txMessages.CreateReceipts(ctx, receipts)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, roomID, events.EventRoomRead, httpdto.RoomReadPayload{
		RoomID: roomID.String(),
		UserID: userID.String(),
	})
	return nil
}

// ToggleReaction flips the (message, user, emoji) row, then broadcasts the
// full per-emoji aggregate for the message, never a delta.
func (s *MessageService) ToggleReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (httpdto.ReactionUpdatedPayload, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return httpdto.ReactionUpdatedPayload{}, fmt.Errorf("%w: emoji must not be empty", teamline_errors.ErrValidation)
	}

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return httpdto.ReactionUpdatedPayload{}, err
	}
	if _, err := s.activeMembership(ctx, msg.RoomID, userID); err != nil {
		return httpdto.ReactionUpdatedPayload{}, err
	}

	existing, err := s.messages.GetReaction(ctx, messageID, userID, emoji)
	switch {
	case err == nil:
		if err := s.messages.RemoveReaction(ctx, existing.ID); err != nil {
			return httpdto.ReactionUpdatedPayload{}, err
		}
	case err == teamline_errors.ErrNotFound:
		reaction := message.Reaction{
			ID:        uuid.New(),
			MessageID: messageID,
			UserID:    userID,
			Emoji:     emoji,
			CreatedAt: time.Now(),
		}
		if err := s.messages.AddReaction(ctx, &reaction); err != nil && err != teamline_errors.ErrAlreadyExists {
			return httpdto.ReactionUpdatedPayload{}, err
		}
	default:
		return httpdto.ReactionUpdatedPayload{}, err
	}

	reactions, err := s.messages.GetMessageReactions(ctx, messageID)
	if err != nil {
		return httpdto.ReactionUpdatedPayload{}, err
	}
	payload := httpdto.ReactionUpdatedPayload{
		MessageID: messageID.String(),
		Reactions: aggregateReactions(reactions),
	}
	s.publish(ctx, msg.RoomID, events.EventReactionUpdated, payload)
	return payload, nil
}

// ListMessages pages the room timeline newest-first with normalized views.
func (s *MessageService) ListMessages(ctx context.Context, roomID, userID uuid.UUID, beforeID uuid.NullUUID, limit int) ([]httpdto.MessageView, error) {
	if _, err := s.membership(ctx, roomID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var before *message.Message
	if beforeID.Valid {
		cursor, err := s.messages.GetByID(ctx, beforeID.UUID)
		if err != nil {
			return nil, err
		}
		before = &cursor
	}

	msgs, err := s.messages.ListRoomMessages(ctx, roomID, before, limit)
	if err != nil {
		return nil, err
	}
	return buildMessageViews(ctx, s.messages, s.polls, msgs)
}

// GetThread returns the parent and its direct replies, oldest first.
// Threading is flat: a reply-to-a-reply shows up only under its own parent.
func (s *MessageService) GetThread(ctx context.Context, roomID, parentID, userID uuid.UUID) (httpdto.ThreadView, error) {
	if _, err := s.membership(ctx, roomID, userID); err != nil {
		return httpdto.ThreadView{}, err
	}

	parent, err := s.messages.GetByID(ctx, parentID)
	if err != nil {
		return httpdto.ThreadView{}, err
	}
	if parent.RoomID != roomID {
		return httpdto.ThreadView{}, teamline_errors.ErrNotFound
	}

	replies, err := s.messages.GetThreadReplies(ctx, parentID)
	if err != nil {
		return httpdto.ThreadView{}, err
	}

	all := append([]message.Message{parent}, replies...)
	views, err := buildMessageViews(ctx, s.messages, s.polls, all)
	if err != nil {
		return httpdto.ThreadView{}, err
	}
	return httpdto.ThreadView{Parent: views[0], Replies: views[1:]}, nil
}

// Pin marks a message in its room. Idempotent; ownership of the message is
// irrelevant.
func (s *MessageService) Pin(ctx context.Context, roomID, messageID, userID uuid.UUID) error {
	if _, err := s.activeMembership(ctx, roomID, userID); err != nil {
		return err
	}
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.RoomID != roomID {
		return teamline_errors.ErrNotFound
	}

	pin := message.PinnedMessage{
		RoomID:    roomID,
		MessageID: messageID,
		PinnedBy:  userID,
		PinnedAt:  time.Now(),
	}
	if err := s.messages.Pin(ctx, &pin); err != nil {
		return err
	}

	s.publish(ctx, roomID, events.EventMessagePinned, httpdto.PinPayload{
		RoomID:    roomID.String(),
		MessageID: messageID.String(),
	})
	return nil
}

// Unpin removes the marker. Idempotent.
func (s *MessageService) Unpin(ctx context.Context, roomID, messageID, userID uuid.UUID) error {
	if _, err := s.activeMembership(ctx, roomID, userID); err != nil {
		return err
	}
	if err := s.messages.Unpin(ctx, roomID, messageID); err != nil {
		return err
	}

	s.publish(ctx, roomID, events.EventMessageUnpinned, httpdto.PinPayload{
		RoomID:    roomID.String(),
		MessageID: messageID.String(),
	})
	return nil
}

// ListPins returns pins newest-first with tombstone-honoring summaries.
func (s *MessageService) ListPins(ctx context.Context, roomID, userID uuid.UUID) ([]httpdto.PinView, error) {
	if _, err := s.membership(ctx, roomID, userID); err != nil {
		return nil, err
	}

	pins, err := s.messages.ListPins(ctx, roomID)
	if err != nil {
		return nil, err
	}

	views := make([]httpdto.PinView, 0, len(pins))
	for _, p := range pins {
		msg, err := s.messages.GetByID(ctx, p.MessageID)
		if err != nil {
			return nil, err
		}
		mv, err := buildMessageViews(ctx, s.messages, s.polls, []message.Message{msg})
		if err != nil {
			return nil, err
		}
		views = append(views, httpdto.PinView{
			RoomID:   p.RoomID.String(),
			PinnedBy: p.PinnedBy.String(),
			PinnedAt: p.PinnedAt,
			Message:  mv[0],
		})
	}
	return views, nil
}

func (s *MessageService) membership(ctx context.Context, roomID, userID uuid.UUID) (roomMembership, error) {
	m, err := s.rooms.GetMembership(ctx, roomID, userID)
	if err != nil {
		if err == teamline_errors.ErrNotFound {
			return roomMembership{}, teamline_errors.ErrForbidden
		}
		return roomMembership{}, err
	}
	return m, nil
}

func (s *MessageService) activeMembership(ctx context.Context, roomID, userID uuid.UUID) (roomMembership, error) {
	m, err := s.membership(ctx, roomID, userID)
	if err != nil {
		return roomMembership{}, err
	}
	if !m.Active() {
		return roomMembership{}, teamline_errors.ErrForbidden
	}
	return m, nil
}

func (s *MessageService) publish(ctx context.Context, roomID uuid.UUID, event string, payload any) {
	if err := s.publisher.Publish(ctx, roomID, event, payload); err != nil && s.log != nil {
		s.log.Errorf("publish %s failed: %s", event, err)
	}
}
