package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"teamline/internal/domain/message"
	"teamline/internal/domain/room"
	"teamline/internal/events"
	"teamline/internal/repository"
	"teamline/internal/transport/httpdto"
	teamline_errors "teamline/pkg/errors"
	"teamline/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type roomMembership = room.Membership

const (
	maxRoomNameLen        = 60
	maxRoomDescriptionLen = 300
)

// RoomService owns room identity and membership lifecycle. A room's member
// set is an immutable snapshot once created: inviting produces a brand-new
// room rather than mutating the source.
type RoomService struct {
	db        *gorm.DB
	rooms     repository.RoomRepository
	messages  repository.MessageRepository
	publisher events.Publisher
	log       *logger.Logger
}

func NewRoomService(db *gorm.DB, rooms repository.RoomRepository, messages repository.MessageRepository, publisher events.Publisher, log *logger.Logger) *RoomService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &RoomService{
		db:        db,
		rooms:     rooms,
		messages:  messages,
		publisher: publisher,
		log:       log,
	}
}

// CreateDirectRoom returns the direct room identified by the unordered member
// pair, reactivating the caller's membership if they previously left. A
// self-chat (caller == other) is a single-member direct room.
func (s *RoomService) CreateDirectRoom(ctx context.Context, callerID, otherID uuid.UUID) (httpdto.RoomView, error) {
	members := []uuid.UUID{callerID}
	if otherID != callerID {
		members = append(members, otherID)
	}

	existing, err := s.rooms.FindDirectRoomByMembers(ctx, members)
	if err == nil {
		m, err := s.rooms.GetMembership(ctx, existing.ID, callerID)
		if err != nil {
			return httpdto.RoomView{}, err
		}
		if !m.Active() {
			m.LeftAt = sql.NullTime{}
			if err := s.rooms.UpdateMembership(ctx, m); err != nil {
				return httpdto.RoomView{}, err
			}
		}
		return s.roomView(ctx, existing.ID)
	}
	if err != teamline_errors.ErrNotFound {
		return httpdto.RoomView{}, err
	}

	rm := room.Room{
		ID:        uuid.New(),
		Kind:      room.KindDirect,
		ViewMode:  room.ViewModeChat,
		CreatedBy: uuid.NullUUID{UUID: callerID, Valid: true},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRooms := repository.NewRoomRepository(tx)
		if err := txRooms.Create(ctx, &rm); err != nil {
			return err
		}
		for _, userID := range members {
			m := room.Membership{
				RoomID:   rm.ID,
				UserID:   userID,
				JoinedAt: rm.CreatedAt,
			}
			if err := txRooms.CreateMembership(ctx, &m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return httpdto.RoomView{}, err
	}
	return s.roomView(ctx, rm.ID)
}

type CreateTopicRoomInput struct {
	Name        string
	Description string
	ViewMode    string
	MemberIDs   []uuid.UUID
	FolderID    uuid.NullUUID
}

// CreateTopicRoom creates a group room with its member snapshot and a system
// message announcing it.
func (s *RoomService) CreateTopicRoom(ctx context.Context, creatorID uuid.UUID, in CreateTopicRoomInput) (httpdto.RoomView, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || utf8.RuneCountInString(name) > maxRoomNameLen {
		return httpdto.RoomView{}, fmt.Errorf("%w: room name must be 1-%d characters", teamline_errors.ErrValidation, maxRoomNameLen)
	}
	if utf8.RuneCountInString(in.Description) > maxRoomDescriptionLen {
		return httpdto.RoomView{}, fmt.Errorf("%w: description must be at most %d characters", teamline_errors.ErrValidation, maxRoomDescriptionLen)
	}
	viewMode := strings.ToUpper(strings.TrimSpace(in.ViewMode))
	if viewMode == "" {
		viewMode = room.ViewModeChat
	}
	if viewMode != room.ViewModeChat && viewMode != room.ViewModeBoard {
		return httpdto.RoomView{}, fmt.Errorf("%w: view mode must be chat or board", teamline_errors.ErrValidation)
	}
	if in.FolderID.Valid {
		folder, err := s.rooms.GetFolder(ctx, in.FolderID.UUID)
		if err != nil {
			return httpdto.RoomView{}, err
		}
		if folder.UserID != creatorID {
			return httpdto.RoomView{}, teamline_errors.ErrForbidden
		}
	}

	memberIDs := dedupeWith(creatorID, in.MemberIDs)
	now := time.Now()
	rm := room.Room{
		ID:        uuid.New(),
		Kind:      room.KindGroup,
		Name:      sql.NullString{String: name, Valid: true},
		ViewMode:  viewMode,
		CreatedBy: uuid.NullUUID{UUID: creatorID, Valid: true},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if desc := strings.TrimSpace(in.Description); desc != "" {
		rm.Description = sql.NullString{String: desc, Valid: true}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRooms := repository.NewRoomRepository(tx)
		txMessages := repository.NewMessageRepository(tx)

		if err := txRooms.Create(ctx, &rm); err != nil {
			return err
		}
		for _, userID := range memberIDs {
			m := room.Membership{
				RoomID:   rm.ID,
				UserID:   userID,
				JoinedAt: now,
			}
			if userID == creatorID {
				m.FolderID = in.FolderID
			}
			if err := txRooms.CreateMembership(ctx, &m); err != nil {
				return err
			}
		}
		sys := systemMessage(rm.ID, creatorID, fmt.Sprintf("%s created the room %q", creatorID, name))
		return txMessages.Create(ctx, &sys)
	})
	if err != nil {
		return httpdto.RoomView{}, err
	}
	return s.roomView(ctx, rm.ID)
}

// Invite never mutates the source room. It snapshots the union of current
// active members and the invitees into a brand-new group room, leaving the
// original's history and membership untouched.
func (s *RoomService) Invite(ctx context.Context, roomID, inviterID uuid.UUID, userIDs []uuid.UUID) (httpdto.RoomView, error) {
	if len(userIDs) == 0 {
		return httpdto.RoomView{}, fmt.Errorf("%w: at least one user to invite", teamline_errors.ErrValidation)
	}
	inviter, err := s.membership(ctx, roomID, inviterID)
	if err != nil {
		return httpdto.RoomView{}, err
	}
	if !inviter.Active() {
		return httpdto.RoomView{}, teamline_errors.ErrForbidden
	}

	source, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return httpdto.RoomView{}, err
	}
	active, err := s.rooms.GetActiveMemberships(ctx, roomID)
	if err != nil {
		return httpdto.RoomView{}, err
	}

	union := make([]uuid.UUID, 0, len(active)+len(userIDs))
	for _, m := range active {
		union = append(union, m.UserID)
	}
	union = dedupeWith(union[0], append(union[1:], userIDs...))

	invited := make([]string, 0, len(userIDs))
	for _, id := range dedupe(userIDs) {
		invited = append(invited, id.String())
	}

	now := time.Now()
	next := room.Room{
		ID:        uuid.New(),
		Kind:      room.KindGroup,
		Name:      source.Name,
		ViewMode:  source.ViewMode,
		CreatedBy: uuid.NullUUID{UUID: inviterID, Valid: true},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRooms := repository.NewRoomRepository(tx)
		txMessages := repository.NewMessageRepository(tx)

		if err := txRooms.Create(ctx, &next); err != nil {
			return err
		}
		for _, userID := range union {
			m := room.Membership{
				RoomID:   next.ID,
				UserID:   userID,
				JoinedAt: now,
			}
			if err := txRooms.CreateMembership(ctx, &m); err != nil {
				return err
			}
		}
		sys := systemMessage(next.ID, inviterID, fmt.Sprintf("%s invited %s", inviterID, strings.Join(invited, ", ")))
		return txMessages.Create(ctx, &sys)
	})
	if err != nil {
		return httpdto.RoomView{}, err
	}

	memberIDs := make([]string, 0, len(union))
	for _, id := range union {
		memberIDs = append(memberIDs, id.String())
	}
	s.publish(ctx, next.ID, events.EventMembersAdded, httpdto.MembersAddedPayload{
		RoomID:    next.ID.String(),
		MemberIDs: memberIDs,
	})
	return s.roomView(ctx, next.ID)
}

// Leave soft-ends the membership and posts a system message. Authorship of
// past messages is untouched.
func (s *RoomService) Leave(ctx context.Context, roomID, userID uuid.UUID) error {
	m, err := s.membership(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !m.Active() {
		return teamline_errors.ErrConflict
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRooms := repository.NewRoomRepository(tx)
		txMessages := repository.NewMessageRepository(tx)

		m.LeftAt = sql.NullTime{Time: now, Valid: true}
		if err := txRooms.UpdateMembership(ctx, m); err != nil {
			return err
		}
		sys := systemMessage(roomID, userID, fmt.Sprintf("%s left the room", userID))
		return txMessages.Create(ctx, &sys)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, roomID, events.EventMemberLeft, httpdto.MemberLeftPayload{
		RoomID: roomID.String(),
		UserID: userID.String(),
	})
	return nil
}

// ToggleFavorite flips the per-member favorite flag.
func (s *RoomService) ToggleFavorite(ctx context.Context, roomID, userID uuid.UUID, value bool) error {
	m, err := s.membership(ctx, roomID, userID)
	if err != nil {
		return err
	}
	m.IsFavorite = value
	return s.rooms.UpdateMembership(ctx, m)
}

// AssignFolder points the membership at a sidebar folder, or clears it.
func (s *RoomService) AssignFolder(ctx context.Context, roomID, userID uuid.UUID, folderID uuid.NullUUID) error {
	if folderID.Valid {
		folder, err := s.rooms.GetFolder(ctx, folderID.UUID)
		if err != nil {
			return err
		}
		if folder.UserID != userID {
			return teamline_errors.ErrForbidden
		}
	}
	m, err := s.membership(ctx, roomID, userID)
	if err != nil {
		return err
	}
	m.FolderID = folderID
	return s.rooms.UpdateMembership(ctx, m)
}

// CreateFolder makes a sidebar folder for the user.
func (s *RoomService) CreateFolder(ctx context.Context, userID uuid.UUID, name string) (httpdto.FolderView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return httpdto.FolderView{}, fmt.Errorf("%w: folder name must not be empty", teamline_errors.ErrValidation)
	}
	f := room.Folder{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := s.rooms.CreateFolder(ctx, &f); err != nil {
		return httpdto.FolderView{}, err
	}
	return httpdto.FolderView{ID: f.ID.String(), Name: f.Name}, nil
}

// ListFolders returns the user's sidebar folders, oldest first.
func (s *RoomService) ListFolders(ctx context.Context, userID uuid.UUID) ([]httpdto.FolderView, error) {
	folders, err := s.rooms.GetUserFolders(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]httpdto.FolderView, 0, len(folders))
	for _, f := range folders {
		views = append(views, httpdto.FolderView{ID: f.ID.String(), Name: f.Name})
	}
	return views, nil
}

// ListRooms returns the sidebar: favorites first, then most recent activity
// descending, each with its unread count and last message summary.
func (s *RoomService) ListRooms(ctx context.Context, userID uuid.UUID) ([]httpdto.RoomListItem, error) {
	memberships, err := s.rooms.GetUserMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]httpdto.RoomListItem, 0, len(memberships))
	for _, m := range memberships {
		rm, err := s.rooms.GetByID(ctx, m.RoomID)
		if err != nil {
			return nil, err
		}

		item := httpdto.RoomListItem{
			Room:         toRoomView(rm),
			IsFavorite:   m.IsFavorite,
			LastActivity: rm.UpdatedAt,
		}
		if m.FolderID.Valid {
			item.FolderID = m.FolderID.UUID.String()
		}

		since := m.JoinedAt
		if m.LastReadAt.Valid && m.LastReadAt.Time.After(since) {
			since = m.LastReadAt.Time
		}
		unread, err := s.messages.CountUnread(ctx, m.RoomID, userID, since)
		if err != nil {
			return nil, err
		}
		item.UnreadCount = unread

		last, err := s.messages.GetLatestMessage(ctx, m.RoomID)
		if err == nil {
			v := baseView(last)
			item.LastMessage = &v
			if last.CreatedAt.After(item.LastActivity) {
				item.LastActivity = last.CreatedAt
			}
		} else if err != teamline_errors.ErrNotFound {
			return nil, err
		}

		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].IsFavorite != items[j].IsFavorite {
			return items[i].IsFavorite
		}
		return items[i].LastActivity.After(items[j].LastActivity)
	})
	return items, nil
}

// GetRoom returns the room with its members; any membership row, active or
// not, grants visibility into history.
func (s *RoomService) GetRoom(ctx context.Context, roomID, userID uuid.UUID) (httpdto.RoomView, error) {
	if _, err := s.membership(ctx, roomID, userID); err != nil {
		return httpdto.RoomView{}, err
	}
	return s.roomView(ctx, roomID)
}

// membership hides whether the room exists from non-members.
func (s *RoomService) membership(ctx context.Context, roomID, userID uuid.UUID) (room.Membership, error) {
	m, err := s.rooms.GetMembership(ctx, roomID, userID)
	if err != nil {
		if err == teamline_errors.ErrNotFound {
			return room.Membership{}, teamline_errors.ErrForbidden
		}
		return room.Membership{}, err
	}
	return m, nil
}

func (s *RoomService) roomView(ctx context.Context, roomID uuid.UUID) (httpdto.RoomView, error) {
	rm, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return httpdto.RoomView{}, err
	}
	return toRoomView(rm), nil
}

func (s *RoomService) publish(ctx context.Context, roomID uuid.UUID, event string, payload any) {
	if err := s.publisher.Publish(ctx, roomID, event, payload); err != nil && s.log != nil {
		s.log.Errorf("publish %s failed: %s", event, err)
	}
}

func toRoomView(rm room.Room) httpdto.RoomView {
	v := httpdto.RoomView{
		ID:        rm.ID.String(),
		Kind:      rm.Kind,
		Name:      rm.Name.String,
		ViewMode:  rm.ViewMode,
		IsPublic:  rm.IsPublic,
		CreatedAt: rm.CreatedAt,
	}
	if rm.Description.Valid {
		v.Description = rm.Description.String
	}
	if !rm.Name.Valid {
		// Direct rooms derive their display name from the member list.
		names := make([]string, 0, len(rm.Members))
		for _, m := range rm.Members {
			names = append(names, m.UserID.String())
		}
		sort.Strings(names)
		v.Name = strings.Join(names, ", ")
	}
	for _, m := range rm.Members {
		mv := httpdto.MemberView{
			UserID:     m.UserID.String(),
			JoinedAt:   m.JoinedAt,
			IsFavorite: m.IsFavorite,
		}
		if m.LeftAt.Valid {
			t := m.LeftAt.Time
			mv.LeftAt = &t
		}
		v.Members = append(v.Members, mv)
	}
	return v
}

func systemMessage(roomID, senderID uuid.UUID, content string) message.Message {
	return message.Message{
		ID:        uuid.New(),
		RoomID:    roomID,
		SenderID:  senderID,
		Type:      message.TypeSystem,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func dedupeWith(first uuid.UUID, rest []uuid.UUID) []uuid.UUID {
	return dedupe(append([]uuid.UUID{first}, rest...))
}
