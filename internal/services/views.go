package services

import (
	"context"
	"errors"
	"sort"

	"teamline/internal/domain/message"
	"teamline/internal/repository"
	"teamline/internal/transport/httpdto"
	teamline_errors "teamline/pkg/errors"

	"github.com/google/uuid"
)

// baseView maps the entity to its wire shape, honoring the tombstone rule.
// Aggregates (reactions, read count, poll embed) are filled by buildMessageViews.
func baseView(m message.Message) httpdto.MessageView {
	v := httpdto.MessageView{
		ID:        m.ID.String(),
		RoomID:    m.RoomID.String(),
		SenderID:  m.SenderID.String(),
		Type:      m.Type,
		Content:   m.DisplayContent(),
		Reactions: []httpdto.ReactionGroup{},
		Deleted:   m.Deleted(),
		CreatedAt: m.CreatedAt,
	}
	if m.ReplyToID.Valid {
		v.ReplyToID = m.ReplyToID.UUID.String()
	}
	if m.EditedAt.Valid {
		t := m.EditedAt.Time
		v.EditedAt = &t
	}
	if m.AttachmentName.Valid {
		v.Attachment = &httpdto.AttachmentMeta{
			Name: m.AttachmentName.String,
			Type: m.AttachmentType.String,
			Size: m.AttachmentSize.Int64,
		}
	}
	if m.EventTitle.Valid {
		v.Event = &httpdto.EventMeta{Title: m.EventTitle.String}
		if m.EventAt.Valid {
			v.Event.At = m.EventAt.Time
		}
	}
	return v
}

// aggregateReactions groups reaction rows by emoji into full snapshots.
// Group order is sorted here for determinism but unspecified for clients.
func aggregateReactions(reactions []message.Reaction) []httpdto.ReactionGroup {
	byEmoji := make(map[string][]string)
	for _, r := range reactions {
		byEmoji[r.Emoji] = append(byEmoji[r.Emoji], r.UserID.String())
	}

	groups := make([]httpdto.ReactionGroup, 0, len(byEmoji))
	for emoji, voters := range byEmoji {
		groups = append(groups, httpdto.ReactionGroup{
			Emoji:    emoji,
			Count:    len(voters),
			VoterIDs: voters,
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Emoji < groups[j].Emoji })
	return groups
}

// buildPollView assembles the full per-option snapshot for a poll.
func buildPollView(ctx context.Context, polls repository.PollRepository, p message.Poll) (httpdto.PollView, error) {
	options, err := polls.GetOptions(ctx, p.ID)
	if err != nil {
		return httpdto.PollView{}, err
	}
	votes, err := polls.GetPollVotes(ctx, p.ID)
	if err != nil {
		return httpdto.PollView{}, err
	}

	votersByOption := make(map[uuid.UUID][]string)
	for _, v := range votes {
		votersByOption[v.OptionID] = append(votersByOption[v.OptionID], v.UserID.String())
	}

	view := httpdto.PollView{
		ID:         p.ID.String(),
		Question:   p.Question,
		IsMultiple: p.AllowsMultiple,
		Options:    make([]httpdto.PollOptionView, 0, len(options)),
	}
	if p.MessageID.Valid {
		view.MessageID = p.MessageID.UUID.String()
	}
	for _, o := range options {
		voters := votersByOption[o.ID]
		if voters == nil {
			voters = []string{}
		}
		view.Options = append(view.Options, httpdto.PollOptionView{
			ID:        o.ID.String(),
			Text:      o.Text,
			VoteCount: len(voters),
			VoterIDs:  voters,
		})
	}
	return view, nil
}

// buildMessageViews normalizes a batch of messages identically to the
// timeline: tombstone honored, reactions aggregated, read count excluding the
// sender, polls embedded with vote counts.
func buildMessageViews(ctx context.Context, messages repository.MessageRepository, polls repository.PollRepository, msgs []message.Message) ([]httpdto.MessageView, error) {
	if len(msgs) == 0 {
		return []httpdto.MessageView{}, nil
	}

	ids := make([]uuid.UUID, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}

	reactions, err := messages.GetReactionsForMessages(ctx, ids)
	if err != nil {
		return nil, err
	}
	reactionsByMsg := make(map[uuid.UUID][]message.Reaction)
	for _, r := range reactions {
		reactionsByMsg[r.MessageID] = append(reactionsByMsg[r.MessageID], r)
	}

	receipts, err := messages.GetReceiptsForMessages(ctx, ids)
	if err != nil {
		return nil, err
	}
	receiptsByMsg := make(map[uuid.UUID][]message.ReadReceipt)
	for _, rc := range receipts {
		receiptsByMsg[rc.MessageID] = append(receiptsByMsg[rc.MessageID], rc)
	}

	views := make([]httpdto.MessageView, 0, len(msgs))
	for _, m := range msgs {
		v := baseView(m)
		v.Reactions = aggregateReactions(reactionsByMsg[m.ID])
		for _, rc := range receiptsByMsg[m.ID] {
			if rc.UserID != m.SenderID {
				v.ReadCount++
			}
		}
		if m.PollID.Valid {
			p, err := polls.GetByID(ctx, m.PollID.UUID)
			switch {
			case err == nil:
				pv, err := buildPollView(ctx, polls, p)
				if err != nil {
					return nil, err
				}
				v.Poll = &pv
			case errors.Is(err, teamline_errors.ErrNotFound):
				// A dangling poll id renders as a plain message.
			default:
				return nil, err
			}
		}
		views = append(views, v)
	}
	return views, nil
}
