package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"teamline/internal/events"
	"teamline/internal/middleware"
	"teamline/internal/redis"
	"teamline/internal/services"
	"teamline/internal/transport/httpdto"
	"teamline/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// inboundFrame is the client-to-server protocol. Sends travel over the
// socket; everything else clients do goes through the REST surface.
type inboundFrame struct {
	Action     string                  `json:"action"` // subscribe | unsubscribe | send
	RoomID     string                  `json:"room_id"`
	Content    string                  `json:"content,omitempty"`
	ReplyToID  string                  `json:"reply_to_id,omitempty"`
	Attachment *httpdto.AttachmentMeta `json:"attachment,omitempty"`
	Event      *httpdto.EventMeta      `json:"event,omitempty"`
}

type errorFrame struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

type Handler struct {
	secret     string
	hub        *Hub
	authorizer *ChannelAuthorizer
	messages   *services.MessageService
	limiter    *redis.RateLimiter
	log        *logger.Logger
}

func NewHandler(secret string, hub *Hub, authorizer *ChannelAuthorizer, messages *services.MessageService, limiter *redis.RateLimiter, log *logger.Logger) *Handler {
	return &Handler{
		secret:     secret,
		hub:        hub,
		authorizer: authorizer,
		messages:   messages,
		limiter:    limiter,
		log:        log,
	}
}

func (h *Handler) Connect(c *gin.Context) {
	userID, err := middleware.ParseAccessToken(c.Query("token"), h.secret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn, userID.String())
	ctx, cancel := context.WithCancel(services.WithUserID(context.Background(), userID))
	defer cancel()

	h.hub.Register(client)
	go client.WriteLoop(ctx)

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		h.handleFrame(ctx, client, userID, data)
	}

	h.hub.Unregister(client)
}

func (h *Handler) handleFrame(ctx context.Context, client *Client, userID uuid.UUID, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.sendError(client, "malformed frame")
		return
	}

	roomID, err := uuid.Parse(frame.RoomID)
	if err != nil {
		h.sendError(client, "invalid room_id")
		return
	}
	channel := events.RoomChannel(roomID)

	switch frame.Action {
	case "subscribe":
		ok, err := h.authorizer.CanSubscribe(ctx, client.UserID, channel)
		if err != nil || !ok {
			h.sendError(client, "subscription denied")
			return
		}
		h.hub.Subscribe(client, channel)
	case "unsubscribe":
		h.hub.Unsubscribe(client, channel)
	case "send":
		h.handleSend(ctx, client, userID, roomID, frame)
	default:
		h.sendError(client, "unknown action")
	}
}

func (h *Handler) handleSend(ctx context.Context, client *Client, userID, roomID uuid.UUID, frame inboundFrame) {
	if h.limiter != nil {
		result, err := h.limiter.AllowMessage(ctx, client.UserID)
		if err == nil && !result.Allowed {
			h.sendError(client, "message rate limit exceeded")
			return
		}
	}

	in := services.SendInput{
		Content:    frame.Content,
		Attachment: frame.Attachment,
		Event:      frame.Event,
	}
	if frame.ReplyToID != "" {
		replyID, err := uuid.Parse(frame.ReplyToID)
		if err != nil {
			h.sendError(client, "invalid reply_to_id")
			return
		}
		in.ReplyToID = uuid.NullUUID{UUID: replyID, Valid: true}
	}

	if _, err := h.messages.Send(ctx, roomID, userID, in); err != nil {
		if h.log != nil {
			h.log.Warnf("ws send rejected: %s", err.Error())
		}
		h.sendError(client, err.Error())
	}
}

func (h *Handler) sendError(client *Client, msg string) {
	body, err := json.Marshal(errorFrame{Event: "error", Message: msg})
	if err != nil {
		return
	}
	client.SendMessage(body)
}
