package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codecollab/codecollab/ot"
)

// dirtyState tracks what needs flushing for a single room.
type dirtyState struct {
	contentDirty bool // content/version needs writing to the backing store
	flushedOps   int  // number of ops already flushed (index into history)
	created      bool // room created locally but not yet in the backing store
}

// CachedStore wraps a backing SessionStore with an in-memory cache. Document
// reads and writes are served from the cache; dirty rooms are flushed to the
// backing store periodically in the background. Participant changes are
// written through immediately since they are low-rate.
type CachedStore struct {
	cache         *MemoryStore
	backing       SessionStore
	logger        zerolog.Logger
	mu            sync.Mutex
	dirty         map[string]*dirtyState
	flushInterval time.Duration
	stop          chan struct{}
	done          chan struct{}
}

// NewCachedStore creates a CachedStore flushing dirty rooms to the backing
// store every flushInterval.
func NewCachedStore(backing SessionStore, flushInterval time.Duration, logger zerolog.Logger) *CachedStore {
	cs := &CachedStore{
		cache:         NewMemoryStore(),
		backing:       backing,
		logger:        logger.With().Str("component", "cached_store").Logger(),
		dirty:         make(map[string]*dirtyState),
		flushInterval: flushInterval,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go cs.flushLoop()
	return cs
}

func (cs *CachedStore) CreateRoom(ctx context.Context, id, content string) error {
	if err := cs.cache.CreateRoom(ctx, id, content); err != nil {
		return err
	}
	cs.mu.Lock()
	cs.dirty[id] = &dirtyState{contentDirty: true, created: true}
	cs.mu.Unlock()
	return nil
}

func (cs *CachedStore) GetRoom(ctx context.Context, id string) (*RoomInfo, error) {
	info, err := cs.cache.GetRoom(ctx, id)
	if err == nil {
		return info, nil
	}
	// Cache miss: load from the backing store.
	if err := cs.loadFromBacking(ctx, id); err != nil {
		return nil, err
	}
	return cs.cache.GetRoom(ctx, id)
}

func (cs *CachedStore) ListRooms(ctx context.Context) ([]RoomInfo, error) {
	return cs.backing.ListRooms(ctx)
}

func (cs *CachedStore) DeleteRoom(ctx context.Context, id string) error {
	cs.mu.Lock()
	delete(cs.dirty, id)
	cs.mu.Unlock()
	// Ignore a cache miss; the room may only exist in the backing store.
	_ = cs.cache.DeleteRoom(ctx, id)
	return cs.backing.DeleteRoom(ctx, id)
}

func (cs *CachedStore) UpdateContent(ctx context.Context, id, content string, version int) error {
	if _, err := cs.GetRoom(ctx, id); err != nil {
		return err
	}
	if err := cs.cache.UpdateContent(ctx, id, content, version); err != nil {
		return err
	}
	cs.mu.Lock()
	ds := cs.dirty[id]
	if ds == nil {
		cs.cache.mu.RLock()
		flushed := len(cs.cache.rooms[id].history)
		cs.cache.mu.RUnlock()
		ds = &dirtyState{flushedOps: flushed}
		cs.dirty[id] = ds
	}
	ds.contentDirty = true
	cs.mu.Unlock()
	return nil
}

func (cs *CachedStore) AppendOperation(ctx context.Context, id string, op ot.Operation, version int) error {
	if _, err := cs.GetRoom(ctx, id); err != nil {
		return err
	}

	// Snapshot history length before the append so we know how many ops were
	// already flushed if this room was previously clean.
	cs.cache.mu.RLock()
	prevLen := len(cs.cache.rooms[id].history)
	cs.cache.mu.RUnlock()

	if err := cs.cache.AppendOperation(ctx, id, op, version); err != nil {
		return err
	}
	cs.mu.Lock()
	if cs.dirty[id] == nil {
		cs.dirty[id] = &dirtyState{flushedOps: prevLen}
	}
	cs.mu.Unlock()
	return nil
}

func (cs *CachedStore) Operations(ctx context.Context, id string, fromVersion int) ([]ot.Operation, error) {
	if _, err := cs.GetRoom(ctx, id); err != nil {
		return nil, err
	}
	return cs.cache.Operations(ctx, id, fromVersion)
}

func (cs *CachedStore) AddParticipant(ctx context.Context, roomID string, p Participant) error {
	if _, err := cs.GetRoom(ctx, roomID); err != nil {
		return err
	}
	if err := cs.cache.AddParticipant(ctx, roomID, p); err != nil {
		return err
	}
	if err := cs.backing.AddParticipant(ctx, roomID, p); err != nil {
		cs.logger.Warn().Err(err).Str("room", roomID).Str("participant", p.ID).
			Msg("failed to write participant through to backing store")
	}
	return nil
}

func (cs *CachedStore) RemoveParticipant(ctx context.Context, roomID, participantID string) error {
	if err := cs.cache.RemoveParticipant(ctx, roomID, participantID); err != nil {
		return err
	}
	if err := cs.backing.RemoveParticipant(ctx, roomID, participantID); err != nil {
		cs.logger.Warn().Err(err).Str("room", roomID).Str("participant", participantID).
			Msg("failed to remove participant from backing store")
	}
	return nil
}

func (cs *CachedStore) Participants(ctx context.Context, roomID string) ([]Participant, error) {
	if _, err := cs.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return cs.cache.Participants(ctx, roomID)
}

// loadFromBacking loads a room and its op log from the backing store into
// the cache, setting flushedOps so already-persisted ops are not re-flushed.
func (cs *CachedStore) loadFromBacking(ctx context.Context, id string) error {
	info, err := cs.backing.GetRoom(ctx, id)
	if err != nil {
		return err
	}
	ops, err := cs.backing.Operations(ctx, id, 0)
	if err != nil {
		return err
	}
	participants, err := cs.backing.Participants(ctx, id)
	if err != nil {
		return err
	}

	cs.cache.mu.Lock()
	if _, exists := cs.cache.rooms[id]; !exists {
		rec := &roomRecord{
			info:         *info,
			history:      ops,
			participants: make(map[string]Participant, len(participants)),
		}
		for _, p := range participants {
			rec.participants[p.ID] = p
		}
		cs.cache.rooms[id] = rec
	}
	cs.cache.mu.Unlock()

	cs.mu.Lock()
	if cs.dirty[id] == nil {
		cs.dirty[id] = &dirtyState{flushedOps: len(ops)}
	}
	cs.mu.Unlock()

	return nil
}

func (cs *CachedStore) flushLoop() {
	ticker := time.NewTicker(cs.flushInterval)
	defer ticker.Stop()
	defer close(cs.done)

	for {
		select {
		case <-ticker.C:
			cs.flush()
		case <-cs.stop:
			cs.flush()
			return
		}
	}
}

// flush writes all dirty rooms to the backing store.
func (cs *CachedStore) flush() {
	cs.mu.Lock()
	snapshot := make(map[string]*dirtyState, len(cs.dirty))
	for id, ds := range cs.dirty {
		cp := *ds
		snapshot[id] = &cp
	}
	cs.mu.Unlock()

	ctx := context.Background()

	for id, ds := range snapshot {
		cs.cache.mu.RLock()
		rec, ok := cs.cache.rooms[id]
		if !ok {
			cs.cache.mu.RUnlock()
			continue
		}
		info := rec.info
		totalOps := len(rec.history)
		var newOps []ot.Operation
		if ds.flushedOps < totalOps {
			newOps = make([]ot.Operation, totalOps-ds.flushedOps)
			copy(newOps, rec.history[ds.flushedOps:])
		}
		cs.cache.mu.RUnlock()

		if ds.created {
			if err := cs.backing.CreateRoom(ctx, id, ""); err != nil {
				cs.logger.Error().Err(err).Str("room", id).Msg("failed to create room in backing store")
				continue
			}
		}

		// Flush ops before content, so crash recovery can replay.
		for i, op := range newOps {
			version := ds.flushedOps + i + 1
			if err := cs.backing.AppendOperation(ctx, id, op, version); err != nil {
				cs.logger.Error().Err(err).Str("room", id).Int("version", version).
					Msg("failed to flush operation, will retry next cycle")
				break
			}
			ds.flushedOps++
		}

		if ds.contentDirty {
			if err := cs.backing.UpdateContent(ctx, id, info.Content, info.Version); err != nil {
				cs.logger.Error().Err(err).Str("room", id).Msg("failed to flush content")
			} else {
				ds.contentDirty = false
			}
		}

		ds.created = false

		cs.mu.Lock()
		cur := cs.dirty[id]
		if cur != nil {
			cur.flushedOps = ds.flushedOps
			cur.created = ds.created
			if !ds.contentDirty {
				cur.contentDirty = false
			}
			if !cur.contentDirty && !cur.created && cur.flushedOps >= totalOps {
				// Re-check current length; new ops may have arrived since the snapshot.
				cs.cache.mu.RLock()
				if r, ok := cs.cache.rooms[id]; ok && cur.flushedOps >= len(r.history) {
					delete(cs.dirty, id)
				}
				cs.cache.mu.RUnlock()
			}
		}
		cs.mu.Unlock()
	}
}

// Close performs a final flush and waits for the flush loop to exit.
func (cs *CachedStore) Close() error {
	close(cs.stop)
	<-cs.done
	return cs.backing.Close()
}
