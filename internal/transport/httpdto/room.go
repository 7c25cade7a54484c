package httpdto

import "time"

type CreateDirectRoomRequest struct {
	UserID string `json:"user_id"`
}

type CreateTopicRoomRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	ViewMode    string   `json:"view_mode,omitempty"`
	MemberIDs   []string `json:"member_ids"`
	FolderID    string   `json:"folder_id,omitempty"`
}

type InviteRequest struct {
	UserIDs []string `json:"user_ids"`
}

type FavoriteRequest struct {
	Value bool `json:"value"`
}

type AssignFolderRequest struct {
	FolderID string `json:"folder_id,omitempty"`
}

type CreateFolderRequest struct {
	Name string `json:"name"`
}

type MemberView struct {
	UserID     string     `json:"user_id"`
	JoinedAt   time.Time  `json:"joined_at"`
	LeftAt     *time.Time `json:"left_at,omitempty"`
	IsFavorite bool       `json:"is_favorite"`
}

type RoomView struct {
	ID          string       `json:"id"`
	Kind        string       `json:"kind"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	ViewMode    string       `json:"view_mode"`
	IsPublic    bool         `json:"is_public"`
	CreatedAt   time.Time    `json:"created_at"`
	Members     []MemberView `json:"members,omitempty"`
}

// RoomListItem carries the per-user decoration for the sidebar: favorites
// first, then most recent activity.
type RoomListItem struct {
	Room        RoomView     `json:"room"`
	IsFavorite  bool         `json:"is_favorite"`
	FolderID    string       `json:"folder_id,omitempty"`
	UnreadCount int64        `json:"unread_count"`
	LastMessage *MessageView `json:"last_message,omitempty"`
	LastActivity time.Time   `json:"last_activity"`
}

type FolderView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
