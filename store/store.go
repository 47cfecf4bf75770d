package store

import (
	"context"
	"errors"
	"time"

	"github.com/codecollab/codecollab/ot"
)

var (
	// ErrRoomNotFound is returned when operating on a missing room id.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomExists is returned when creating a room whose id is taken.
	ErrRoomExists = errors.New("room already exists")
)

// Position is a cursor location in a document.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Range is a selection span between two positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Participant is one connected editor in a room. Mutated on every edit or
// presence message, removed on disconnect or liveness timeout.
type Participant struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Color      string    `json:"color"`
	Cursor     Position  `json:"cursor"`
	Selection  Range     `json:"selection"`
	LastActive time.Time `json:"lastActive"`
}

// RoomInfo holds a room's metadata and current document state.
type RoomInfo struct {
	ID        string
	Content   string
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionStore is the durable mapping from room id to document state,
// operation log, and participant roster. It is the only component permitted
// to persist room state.
type SessionStore interface {
	CreateRoom(ctx context.Context, id, content string) error
	GetRoom(ctx context.Context, id string) (*RoomInfo, error)
	ListRooms(ctx context.Context) ([]RoomInfo, error)
	DeleteRoom(ctx context.Context, id string) error

	UpdateContent(ctx context.Context, id, content string, version int) error
	AppendOperation(ctx context.Context, id string, op ot.Operation, version int) error
	// Operations returns the ops applied after fromVersion, oldest first.
	Operations(ctx context.Context, id string, fromVersion int) ([]ot.Operation, error)

	AddParticipant(ctx context.Context, roomID string, p Participant) error
	RemoveParticipant(ctx context.Context, roomID, participantID string) error
	Participants(ctx context.Context, roomID string) ([]Participant, error)

	Close() error
}
