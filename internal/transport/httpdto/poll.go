package httpdto

type CreatePollRequest struct {
	RoomID     string   `json:"room_id"`
	Question   string   `json:"question"`
	Options    []string `json:"options"`
	IsMultiple bool     `json:"is_multiple"`
}

type VoteRequest struct {
	OptionID string `json:"option_id"`
}

type PollOptionView struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	VoteCount int      `json:"vote_count"`
	VoterIDs  []string `json:"voter_ids"`
}

// PollView doubles as the poll_voted payload: always a full snapshot.
type PollView struct {
	ID         string           `json:"id"`
	MessageID  string           `json:"message_id"`
	Question   string           `json:"question"`
	IsMultiple bool             `json:"is_multiple"`
	Options    []PollOptionView `json:"options"`
}
