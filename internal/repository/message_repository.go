package repository

import (
	"context"
	"errors"
	"time"

	"teamline/internal/domain/message"
	teamline_errors "teamline/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	res := r.db.WithContext(ctx).Create(m)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return teamline_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, teamline_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

func (r *PostgresMessageRepository) Update(ctx context.Context, m message.Message) error {
	res := r.db.WithContext(ctx).Save(&m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return teamline_errors.ErrNotFound
	}
	return nil
}

// ListRoomMessages pages the room timeline newest-first. Ordering is
// created_at with id as tiebreak; before is an exclusive cursor.
func (r *PostgresMessageRepository) ListRoomMessages(ctx context.Context, roomID uuid.UUID, before *message.Message, limit int) ([]message.Message, error) {
	var messages []message.Message
	q := r.db.WithContext(ctx).Where("room_id = ?", roomID)

	if before != nil {
		q = q.Where("created_at < ? OR (created_at = ? AND id < ?)",
			before.CreatedAt, before.CreatedAt, before.ID)
	}

	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) GetLatestMessage(ctx context.Context, roomID uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC, id DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, teamline_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

func (r *PostgresMessageRepository) GetThreadReplies(ctx context.Context, parentID uuid.UUID) ([]message.Message, error) {
	var messages []message.Message
	err := r.db.WithContext(ctx).
		Where("reply_to_id = ?", parentID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) CountUnread(ctx context.Context, roomID, userID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("room_id = ? AND sender_id != ? AND deleted_at IS NULL AND created_at > ?",
			roomID, userID, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// GetUnreadMessageIDs returns ids of messages authored by someone else that
// the user has no receipt for yet.
func (r *PostgresMessageRepository) GetUnreadMessageIDs(ctx context.Context, roomID, userID uuid.UUID) ([]uuid.UUID, error) {
	subQuery := r.db.Model(&message.ReadReceipt{}).
		Select("message_id").
		Where("user_id = ?", userID)

	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("room_id = ? AND sender_id != ? AND id NOT IN (?)", roomID, userID, subQuery).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// CreateReceipts bulk-inserts receipts, ignoring rows that already exist so
// mark-read stays idempotent.
func (r *PostgresMessageRepository) CreateReceipts(ctx context.Context, receipts []message.ReadReceipt) error {
	if len(receipts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&receipts).Error
}

func (r *PostgresMessageRepository) GetReceiptsForMessages(ctx context.Context, messageIDs []uuid.UUID) ([]message.ReadReceipt, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var receipts []message.ReadReceipt
	err := r.db.WithContext(ctx).
		Where("message_id IN (?)", messageIDs).
		Find(&receipts).Error
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

func (r *PostgresMessageRepository) GetReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (message.Reaction, error) {
	var reaction message.Reaction
	err := r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		First(&reaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Reaction{}, teamline_errors.ErrNotFound
		}
		return message.Reaction{}, err
	}
	return reaction, nil
}

func (r *PostgresMessageRepository) AddReaction(ctx context.Context, reaction *message.Reaction) error {
	res := r.db.WithContext(ctx).Create(reaction)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return teamline_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresMessageRepository) RemoveReaction(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&message.Reaction{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return teamline_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) GetMessageReactions(ctx context.Context, messageID uuid.UUID) ([]message.Reaction, error) {
	var reactions []message.Reaction
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Find(&reactions).Error
	if err != nil {
		return nil, err
	}
	return reactions, nil
}

func (r *PostgresMessageRepository) GetReactionsForMessages(ctx context.Context, messageIDs []uuid.UUID) ([]message.Reaction, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var reactions []message.Reaction
	err := r.db.WithContext(ctx).
		Where("message_id IN (?)", messageIDs).
		Find(&reactions).Error
	if err != nil {
		return nil, err
	}
	return reactions, nil
}

// Pin is an idempotent upsert on the (room, message) marker.
func (r *PostgresMessageRepository) Pin(ctx context.Context, p *message.PinnedMessage) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(p).Error
}

func (r *PostgresMessageRepository) Unpin(ctx context.Context, roomID, messageID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&message.PinnedMessage{}, "room_id = ? AND message_id = ?", roomID, messageID).Error
}

func (r *PostgresMessageRepository) ListPins(ctx context.Context, roomID uuid.UUID) ([]message.PinnedMessage, error) {
	var pins []message.PinnedMessage
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("pinned_at DESC").
		Find(&pins).Error
	if err != nil {
		return nil, err
	}
	return pins, nil
}
