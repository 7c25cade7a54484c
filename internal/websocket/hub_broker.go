package websocket

import (
	"context"
)

// HubBroker delivers envelopes straight into the local hub. It backs the
// event publisher when no redis instance is configured, so a single-node
// deployment still gets realtime fan-out.
type HubBroker struct {
	hub *Hub
}

func NewHubBroker(hub *Hub) *HubBroker {
	return &HubBroker{hub: hub}
}

func (b *HubBroker) Publish(_ context.Context, channel string, payload []byte) error {
	b.hub.Broadcast(channel, payload)
	return nil
}
