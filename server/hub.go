package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codecollab/codecollab/ot"
	"github.com/codecollab/codecollab/store"
)

type joinRequest struct {
	client *Client
	roomID string
}

// HubConfig tunes room lifecycle behavior.
type HubConfig struct {
	// IdleTimeout is how long an empty room stays resident before teardown.
	IdleTimeout time.Duration
	// OpLogRetention bounds the in-memory rebase window per room; older base
	// versions force a full client resync. 0 means unlimited.
	OpLogRetention int
	// PresenceTimeout is the participant liveness window.
	PresenceTimeout time.Duration
}

func DefaultHubConfig() HubConfig {
	return HubConfig{
		IdleTimeout:     5 * time.Minute,
		OpLogRetention:  1000,
		PresenceTimeout: 30 * time.Second,
	}
}

// Hub manages room sessions and routes clients to the right room. Rooms are
// created on first join and torn down after the last participant leaves and
// the idle timeout elapses.
type Hub struct {
	store    store.SessionStore
	engine   ot.Engine
	presence *PresenceTracker
	logger   zerolog.Logger
	cfg      HubConfig

	mu    sync.RWMutex
	rooms map[string]*Room

	joinRoom chan joinRequest
	stopCh   chan struct{}
}

func NewHub(st store.SessionStore, engine ot.Engine, cfg HubConfig, logger zerolog.Logger) *Hub {
	return &Hub{
		store:    st,
		engine:   engine,
		presence: NewPresenceTracker(cfg.PresenceTimeout, logger),
		logger:   logger.With().Str("component", "hub").Logger(),
		cfg:      cfg,
		rooms:    make(map[string]*Room),
		joinRoom: make(chan joinRequest, 64),
		stopCh:   make(chan struct{}),
	}
}

// Presence exposes the tracker for the gateway and rooms.
func (h *Hub) Presence() *PresenceTracker { return h.presence }

// Run is the hub's main loop: it dispatches joins and reaps idle rooms.
// Dispatch and reaping share one goroutine so a join can never race a
// teardown of the same room.
func (h *Hub) Run() {
	go h.presence.Run(h.cfg.PresenceTimeout/2, h.stopCh)

	reap := time.NewTicker(h.cfg.IdleTimeout / 2)
	defer reap.Stop()

	for {
		select {
		case req := <-h.joinRoom:
			h.handleJoin(req)
		case <-reap.C:
			h.reapIdle()
		case <-h.stopCh:
			return
		}
	}
}

// Stop shuts down the hub loop and the presence janitor.
func (h *Hub) Stop() {
	close(h.stopCh)
}

func (h *Hub) handleJoin(req joinRequest) {
	room, err := h.roomFor(req.roomID)
	if err != nil {
		h.logger.Error().Err(err).Str("room", req.roomID).Msg("join failed")
		req.client.sendError(ErrCodeInternal, "failed to open room")
		return
	}
	room.population.Add(1)
	room.join <- req.client
}

// roomFor returns the live session for a room id, creating and loading it on
// first join.
func (h *Hub) roomFor(roomID string) (*Room, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.rooms[roomID]; ok {
		return room, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	info, err := h.store.GetRoom(ctx, roomID)
	if errors.Is(err, store.ErrRoomNotFound) {
		if err := h.store.CreateRoom(ctx, roomID, ""); err != nil && !errors.Is(err, store.ErrRoomExists) {
			return nil, err
		}
		info, err = h.store.GetRoom(ctx, roomID)
	}
	if err != nil {
		return nil, err
	}

	history, err := h.store.Operations(ctx, roomID, 0)
	if err != nil {
		return nil, err
	}

	doc := ot.NewDocumentAt(info.Content, info.Version, history)
	doc.SetRetention(h.cfg.OpLogRetention)

	room := newRoom(roomID, doc, h.engine, h.store, h.presence, h.logger)
	h.rooms[roomID] = room
	activeRooms.Inc()
	go room.Run()
	return room, nil
}

// GetRoom returns the live session for a room, if any.
func (h *Hub) GetRoom(roomID string) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[roomID]
}

func (h *Hub) reapIdle() {
	now := time.Now()

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, room := range h.rooms {
		if room.population.Load() != 0 {
			continue
		}
		if now.Sub(time.Unix(0, room.emptySince.Load())) < h.cfg.IdleTimeout {
			continue
		}
		delete(h.rooms, id)
		close(room.stop)
		activeRooms.Dec()
		h.logger.Info().Str("room", id).Msg("idle room torn down")
	}
}
