package repository

import (
	"context"
	"errors"

	"teamline/internal/domain/message"
	teamline_errors "teamline/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresPollRepository struct {
	db *gorm.DB
}

func NewPollRepository(db *gorm.DB) PollRepository {
	return &PostgresPollRepository{db: db}
}

func (r *PostgresPollRepository) Create(ctx context.Context, p *message.Poll) error {
	res := r.db.WithContext(ctx).Create(p)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return teamline_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresPollRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Poll, error) {
	var p message.Poll
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Poll{}, teamline_errors.ErrNotFound
		}
		return message.Poll{}, err
	}
	return p, nil
}

func (r *PostgresPollRepository) CreateOption(ctx context.Context, o *message.PollOption) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *PostgresPollRepository) GetOption(ctx context.Context, id uuid.UUID) (message.PollOption, error) {
	var o message.PollOption
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.PollOption{}, teamline_errors.ErrNotFound
		}
		return message.PollOption{}, err
	}
	return o, nil
}

func (r *PostgresPollRepository) GetOptions(ctx context.Context, pollID uuid.UUID) ([]message.PollOption, error) {
	var options []message.PollOption
	err := r.db.WithContext(ctx).
		Where("poll_id = ?", pollID).
		Order("position ASC").
		Find(&options).Error
	if err != nil {
		return nil, err
	}
	return options, nil
}

func (r *PostgresPollRepository) GetPollVotes(ctx context.Context, pollID uuid.UUID) ([]message.PollVote, error) {
	var votes []message.PollVote
	err := r.db.WithContext(ctx).
		Where("poll_id = ?", pollID).
		Find(&votes).Error
	if err != nil {
		return nil, err
	}
	return votes, nil
}

func (r *PostgresPollRepository) GetUserVotes(ctx context.Context, pollID, userID uuid.UUID) ([]message.PollVote, error) {
	var votes []message.PollVote
	err := r.db.WithContext(ctx).
		Where("poll_id = ? AND user_id = ?", pollID, userID).
		Find(&votes).Error
	if err != nil {
		return nil, err
	}
	return votes, nil
}

func (r *PostgresPollRepository) CreateVote(ctx context.Context, v *message.PollVote) error {
	res := r.db.WithContext(ctx).Create(v)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return teamline_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresPollRepository) DeleteVote(ctx context.Context, optionID, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Delete(&message.PollVote{}, "option_id = ? AND user_id = ?", optionID, userID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return teamline_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresPollRepository) DeleteUserVotes(ctx context.Context, pollID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&message.PollVote{}, "poll_id = ? AND user_id = ?", pollID, userID).Error
}
