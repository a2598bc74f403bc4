// Package gateway streams emitted signals to WebSocket clients.
//
// Every signal is wrapped in an envelope carrying a hub-wide sequence number.
// Clients may filter by instrument and, after a reconnect, ask for the
// envelopes they missed; the hub keeps the most recent ones in a ReplayBuffer.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"fxsignal/internal/strategy"
)

const defaultReplayCapacity = 500

// Envelope is one message on the feed.
type Envelope struct {
	Channel string           `json:"channel"`
	Seq     int64            `json:"seq"`
	TS      time.Time        `json:"ts"`
	Signal  *strategy.Signal `json:"signal"`
}

// Hub manages WebSocket clients and signal fan-out.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	seq     int64

	replay *ReplayBuffer

	// OnClientCount is called with the new count whenever a client joins or leaves.
	OnClientCount func(n int)
}

// NewHub creates a Hub keeping replayCapacity envelopes for backfill.
func NewHub(replayCapacity int) *Hub {
	if replayCapacity <= 0 {
		replayCapacity = defaultReplayCapacity
	}
	return &Hub{
		clients: make(map[*Client]bool),
		replay:  NewReplayBuffer(replayCapacity),
	}
}

// SignalChannel is the feed channel name for an instrument.
func SignalChannel(instrument string) string { return "signal:" + instrument }

func (h *Hub) Name() string { return "ws" }

// Notify broadcasts sig to every client subscribed to its instrument.
// Sequencing, buffering and fan-out happen under one lock, so the replay
// buffer stays in seq order and a joining client sees each envelope once.
func (h *Hub) Notify(ctx context.Context, sig *strategy.Signal) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	env := Envelope{
		Channel: SignalChannel(sig.Instrument),
		Seq:     h.seq + 1,
		TS:      time.Now().UTC(),
		Signal:  sig,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("ws marshal: %w", err)
	}
	h.seq = env.Seq
	h.replay.Push(env.Seq, sig.Instrument, data)

	for c := range h.clients {
		if !c.wants(sig.Instrument) {
			continue
		}
		select {
		case c.send <- data:
		default:
			log.Printf("[gateway] dropping seq %d for slow client", env.Seq)
		}
	}
	return nil
}

// FeedStats is a snapshot of the hub.
type FeedStats struct {
	Seq      int64 `json:"seq"`      // last sequence number issued
	Clients  int   `json:"clients"`  // connected peers
	Buffered int   `json:"buffered"` // envelopes available for replay
}

// Stats returns the current FeedStats.
func (h *Hub) Stats() FeedStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return FeedStats{Seq: h.seq, Clients: len(h.clients), Buffered: h.replay.Len()}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// AddClient registers a client. When lastSeq >= 0 the buffered envelopes
// after lastSeq that c wants are queued first.
func (h *Hub) AddClient(c *Client, lastSeq int64) {
	h.mu.Lock()
	if lastSeq >= 0 {
		h.backfill(c, lastSeq)
	}
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	if h.OnClientCount != nil {
		h.OnClientCount(n)
	}
}

// RemoveClient unregisters a client and closes its send channel.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()
	if h.OnClientCount != nil {
		h.OnClientCount(n)
	}
}

// backfill queues every buffered envelope after lastSeq that c wants.
// Callers hold h.mu.
func (h *Hub) backfill(c *Client, lastSeq int64) {
	for _, e := range h.replay.Since(lastSeq) {
		if !c.wants(e.Instrument) {
			continue
		}
		select {
		case c.send <- e.Data:
		default:
			return
		}
	}
}
