package server

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codecollab/codecollab/store"
)

type presenceEntry struct {
	client     *Client
	cursor     store.Position
	selection  store.Range
	lastActive time.Time
}

// PresenceTracker maintains per-participant cursor/selection/liveness state.
// It owns its state under its own lock, disjoint from the per-room document
// critical section: presence updates never block document synchronization
// and carry no ordering guarantee relative to operations.
type PresenceTracker struct {
	mu      sync.Mutex
	rooms   map[string]map[string]*presenceEntry
	timeout time.Duration
	logger  zerolog.Logger
}

func NewPresenceTracker(timeout time.Duration, logger zerolog.Logger) *PresenceTracker {
	return &PresenceTracker{
		rooms:   make(map[string]map[string]*presenceEntry),
		timeout: timeout,
		logger:  logger.With().Str("component", "presence").Logger(),
	}
}

// Join registers a participant for presence fan-out in a room.
func (t *PresenceTracker) Join(roomID string, c *Client) {
	t.mu.Lock()
	defer t.mu.Unlock()

	room := t.rooms[roomID]
	if room == nil {
		room = make(map[string]*presenceEntry)
		t.rooms[roomID] = room
	}
	room[c.ID] = &presenceEntry{client: c, lastActive: time.Now()}
}

// Leave drops a participant's presence state without broadcasting; the room
// announces the departure itself.
func (t *PresenceTracker) Leave(roomID, participantID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if room := t.rooms[roomID]; room != nil {
		delete(room, participantID)
		if len(room) == 0 {
			delete(t.rooms, roomID)
		}
	}
}

// Touch refreshes a participant's liveness; edit activity counts too.
func (t *PresenceTracker) Touch(roomID, participantID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if room := t.rooms[roomID]; room != nil {
		if e := room[participantID]; e != nil {
			e.lastActive = time.Now()
		}
	}
}

// Update overwrites a participant's cursor/selection and broadcasts the new
// presence to every other participant in the room. Fire-and-forget.
func (t *PresenceTracker) Update(roomID string, c *Client, cursor store.Position, selection store.Range) {
	msg := ServerMessage{
		Type:          MsgPresenceUpdate,
		RoomID:        roomID,
		ParticipantID: c.ID,
		Name:          c.Name,
		Color:         c.Color,
		Cursor:        cursor,
		Selection:     selection,
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	room := t.rooms[roomID]
	if room == nil {
		return
	}
	e := room[c.ID]
	if e == nil {
		e = &presenceEntry{client: c}
		room[c.ID] = e
	}
	e.cursor = cursor
	e.selection = selection
	e.lastActive = time.Now()

	for id, other := range room {
		if id != c.ID {
			other.client.sendMsg(msg)
		}
	}
}

// Presence returns a participant's current presence state, if tracked.
func (t *PresenceTracker) Presence(roomID, participantID string) (store.Position, store.Range, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if room := t.rooms[roomID]; room != nil {
		if e := room[participantID]; e != nil {
			return e.cursor, e.selection, true
		}
	}
	return store.Position{}, store.Range{}, false
}

// ExpireStale drops participants silent for longer than the liveness timeout
// and routes each through its room's leave path, so the roster, the store and
// the population count stay consistent with an ordinary departure. Returns
// the number of expired entries.
func (t *PresenceTracker) ExpireStale(now time.Time) int {
	t.mu.Lock()
	var expired []*Client
	for roomID, room := range t.rooms {
		for id, e := range room {
			if now.Sub(e.lastActive) <= t.timeout {
				continue
			}
			delete(room, id)
			expired = append(expired, e.client)
			t.logger.Debug().Str("room", roomID).Str("participant", id).Msg("presence expired")
		}
		if len(room) == 0 {
			delete(t.rooms, roomID)
		}
	}
	t.mu.Unlock()

	// The leave is dispatched outside the lock: the room goroutine calls back
	// into Leave while processing it.
	for _, c := range expired {
		if room := c.Room(); room != nil {
			room.leave <- c
		}
	}
	return len(expired)
}

// Run expires stale presence on a fixed cadence until stop is closed.
func (t *PresenceTracker) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			t.ExpireStale(now)
		case <-stop:
			return
		}
	}
}
