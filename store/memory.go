package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/codecollab/codecollab/ot"
)

type roomRecord struct {
	info         RoomInfo
	history      []ot.Operation
	participants map[string]Participant
}

// MemoryStore is an in-memory SessionStore. It is the default backend and
// the cache layer inside CachedStore.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]*roomRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]*roomRecord)}
}

func (s *MemoryStore) CreateRoom(_ context.Context, id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[id]; exists {
		return fmt.Errorf("room %q: %w", id, ErrRoomExists)
	}
	now := time.Now()
	s.rooms[id] = &roomRecord{
		info: RoomInfo{
			ID:        id,
			Content:   content,
			Version:   0,
			CreatedAt: now,
			UpdatedAt: now,
		},
		participants: make(map[string]Participant),
	}
	return nil
}

func (s *MemoryStore) GetRoom(_ context.Context, id string) (*RoomInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %q: %w", id, ErrRoomNotFound)
	}
	info := rec.info
	return &info, nil
}

func (s *MemoryStore) ListRooms(_ context.Context) ([]RoomInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]RoomInfo, 0, len(s.rooms))
	for _, rec := range s.rooms {
		result = append(result, rec.info)
	}
	return result, nil
}

func (s *MemoryStore) DeleteRoom(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[id]; !ok {
		return fmt.Errorf("room %q: %w", id, ErrRoomNotFound)
	}
	delete(s.rooms, id)
	return nil
}

func (s *MemoryStore) UpdateContent(_ context.Context, id, content string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.rooms[id]
	if !ok {
		return fmt.Errorf("room %q: %w", id, ErrRoomNotFound)
	}
	rec.info.Content = content
	rec.info.Version = version
	rec.info.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) AppendOperation(_ context.Context, id string, op ot.Operation, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.rooms[id]
	if !ok {
		return fmt.Errorf("room %q: %w", id, ErrRoomNotFound)
	}
	rec.history = append(rec.history, op)
	rec.info.Version = version
	rec.info.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) Operations(_ context.Context, id string, fromVersion int) ([]ot.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %q: %w", id, ErrRoomNotFound)
	}
	if fromVersion < 0 || fromVersion > len(rec.history) {
		return nil, fmt.Errorf("invalid version %d", fromVersion)
	}
	ops := make([]ot.Operation, len(rec.history)-fromVersion)
	copy(ops, rec.history[fromVersion:])
	return ops, nil
}

func (s *MemoryStore) AddParticipant(_ context.Context, roomID string, p Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.rooms[roomID]
	if !ok {
		return fmt.Errorf("room %q: %w", roomID, ErrRoomNotFound)
	}
	rec.participants[p.ID] = p
	return nil
}

func (s *MemoryStore) RemoveParticipant(_ context.Context, roomID, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.rooms[roomID]
	if !ok {
		return fmt.Errorf("room %q: %w", roomID, ErrRoomNotFound)
	}
	delete(rec.participants, participantID)
	return nil
}

func (s *MemoryStore) Participants(_ context.Context, roomID string) ([]Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("room %q: %w", roomID, ErrRoomNotFound)
	}
	result := make([]Participant, 0, len(rec.participants))
	for _, p := range rec.participants {
		result = append(result, p)
	}
	return result, nil
}

func (s *MemoryStore) Close() error { return nil }
