package repository

import (
	"context"
	"errors"
	"time"

	"teamline/internal/domain/room"
	teamline_errors "teamline/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresRoomRepository struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &PostgresRoomRepository{db: db}
}

func (r *PostgresRoomRepository) Create(ctx context.Context, rm *room.Room) error {
	res := r.db.WithContext(ctx).Create(rm)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return teamline_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresRoomRepository) GetByID(ctx context.Context, id uuid.UUID) (room.Room, error) {
	var rm room.Room
	err := r.db.WithContext(ctx).
		Preload("Members").
		Where("id = ?", id).
		First(&rm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return room.Room{}, teamline_errors.ErrNotFound
		}
		return room.Room{}, err
	}
	return rm, nil
}

func (r *PostgresRoomRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&room.Room{}).
		Where("id = ?", id).
		Update("updated_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return teamline_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresRoomRepository) FindDirectRoomByMembers(ctx context.Context, userIDs []uuid.UUID) (room.Room, error) {
	var rm room.Room

	// Rooms whose whole membership set equals exactly userIDs, regardless of
	// left_at state. Direct-room identity is the member pair itself.
	subQuery := r.db.Model(&room.Membership{}).
		Select("room_id").
		Group("room_id").
		Having("COUNT(DISTINCT user_id) = ?", len(userIDs)).
		Having("SUM(CASE WHEN user_id IN (?) THEN 0 ELSE 1 END) = 0", userIDs)

	err := r.db.WithContext(ctx).
		Preload("Members").
		Where("id IN (?) AND kind = ?", subQuery, room.KindDirect).
		First(&rm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return room.Room{}, teamline_errors.ErrNotFound
		}
		return room.Room{}, err
	}
	return rm, nil
}

func (r *PostgresRoomRepository) CreateMembership(ctx context.Context, m *room.Membership) error {
	res := r.db.WithContext(ctx).Create(m)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return teamline_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresRoomRepository) GetMembership(ctx context.Context, roomID, userID uuid.UUID) (room.Membership, error) {
	var m room.Membership
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return room.Membership{}, teamline_errors.ErrNotFound
		}
		return room.Membership{}, err
	}
	return m, nil
}

func (r *PostgresRoomRepository) UpdateMembership(ctx context.Context, m room.Membership) error {
	res := r.db.WithContext(ctx).
		Model(&room.Membership{}).
		Where("room_id = ? AND user_id = ?", m.RoomID, m.UserID).
		Select("LeftAt", "LastReadAt", "IsFavorite", "FolderID").
		Updates(m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return teamline_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresRoomRepository) GetActiveMemberships(ctx context.Context, roomID uuid.UUID) ([]room.Membership, error) {
	var members []room.Membership
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND left_at IS NULL", roomID).
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *PostgresRoomRepository) GetUserMemberships(ctx context.Context, userID uuid.UUID) ([]room.Membership, error) {
	var members []room.Membership
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND left_at IS NULL", userID).
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *PostgresRoomRepository) CreateFolder(ctx context.Context, f *room.Folder) error {
	res := r.db.WithContext(ctx).Create(f)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return teamline_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresRoomRepository) GetFolder(ctx context.Context, id uuid.UUID) (room.Folder, error) {
	var f room.Folder
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&f).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return room.Folder{}, teamline_errors.ErrNotFound
		}
		return room.Folder{}, err
	}
	return f, nil
}

func (r *PostgresRoomRepository) GetUserFolders(ctx context.Context, userID uuid.UUID) ([]room.Folder, error) {
	var folders []room.Folder
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&folders).Error
	if err != nil {
		return nil, err
	}
	return folders, nil
}
