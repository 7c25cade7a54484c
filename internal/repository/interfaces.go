package repository

import (
	"context"
	"time"

	"teamline/internal/domain/message"
	"teamline/internal/domain/room"

	"github.com/google/uuid"
)

// RoomRepository persists rooms, memberships and folders.
type RoomRepository interface {
	Create(ctx context.Context, r *room.Room) error
	GetByID(ctx context.Context, id uuid.UUID) (room.Room, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	// FindDirectRoomByMembers locates the direct room whose full membership
	// set (active and inactive) equals exactly userIDs.
	FindDirectRoomByMembers(ctx context.Context, userIDs []uuid.UUID) (room.Room, error)

	CreateMembership(ctx context.Context, m *room.Membership) error
	GetMembership(ctx context.Context, roomID, userID uuid.UUID) (room.Membership, error)
	UpdateMembership(ctx context.Context, m room.Membership) error
	GetActiveMemberships(ctx context.Context, roomID uuid.UUID) ([]room.Membership, error)
	GetUserMemberships(ctx context.Context, userID uuid.UUID) ([]room.Membership, error)

	CreateFolder(ctx context.Context, f *room.Folder) error
	GetFolder(ctx context.Context, id uuid.UUID) (room.Folder, error)
	GetUserFolders(ctx context.Context, userID uuid.UUID) ([]room.Folder, error)
}

// MessageRepository persists messages, reactions, receipts and pins.
type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	Update(ctx context.Context, m message.Message) error
	ListRoomMessages(ctx context.Context, roomID uuid.UUID, before *message.Message, limit int) ([]message.Message, error)
	GetLatestMessage(ctx context.Context, roomID uuid.UUID) (message.Message, error)
	GetThreadReplies(ctx context.Context, parentID uuid.UUID) ([]message.Message, error)

	CountUnread(ctx context.Context, roomID, userID uuid.UUID, since time.Time) (int64, error)
	GetUnreadMessageIDs(ctx context.Context, roomID, userID uuid.UUID) ([]uuid.UUID, error)
	CreateReceipts(ctx context.Context, receipts []message.ReadReceipt) error
	GetReceiptsForMessages(ctx context.Context, messageIDs []uuid.UUID) ([]message.ReadReceipt, error)

	GetReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (message.Reaction, error)
	AddReaction(ctx context.Context, r *message.Reaction) error
	RemoveReaction(ctx context.Context, id uuid.UUID) error
	GetMessageReactions(ctx context.Context, messageID uuid.UUID) ([]message.Reaction, error)
	GetReactionsForMessages(ctx context.Context, messageIDs []uuid.UUID) ([]message.Reaction, error)

	Pin(ctx context.Context, p *message.PinnedMessage) error
	Unpin(ctx context.Context, roomID, messageID uuid.UUID) error
	ListPins(ctx context.Context, roomID uuid.UUID) ([]message.PinnedMessage, error)
}

// PollRepository persists polls, options and votes.
type PollRepository interface {
	Create(ctx context.Context, p *message.Poll) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Poll, error)
	CreateOption(ctx context.Context, o *message.PollOption) error
	GetOption(ctx context.Context, id uuid.UUID) (message.PollOption, error)
	GetOptions(ctx context.Context, pollID uuid.UUID) ([]message.PollOption, error)
	GetPollVotes(ctx context.Context, pollID uuid.UUID) ([]message.PollVote, error)
	GetUserVotes(ctx context.Context, pollID, userID uuid.UUID) ([]message.PollVote, error)
	CreateVote(ctx context.Context, v *message.PollVote) error
	DeleteVote(ctx context.Context, optionID, userID uuid.UUID) error
	DeleteUserVotes(ctx context.Context, pollID, userID uuid.UUID) error
}
