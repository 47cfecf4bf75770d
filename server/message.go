package server

import (
	"encoding/json"

	"github.com/codecollab/codecollab/ot"
	"github.com/codecollab/codecollab/store"
)

// Message types exchanged over the realtime channel.
const (
	// client -> server
	MsgJoin     = "join"
	MsgEdit     = "edit"
	MsgPresence = "presence"
	MsgLeave    = "leave"

	// server -> client
	MsgDoc            = "doc" // full document snapshot (join and resync)
	MsgAck            = "ack"
	MsgEditApplied    = "edit-applied"
	MsgPresenceUpdate = "presence-update"
	MsgJoined         = "participant-joined"
	MsgLeft           = "participant-left"
	MsgError          = "error"
)

// Error codes carried on MsgError.
const (
	ErrCodeRoomNotFound  = "room_not_found"
	ErrCodeVersionTooOld = "version_too_old"
	ErrCodeBadMessage    = "bad_message"
	ErrCodeInternal      = "internal"
)

// ClientMessage is a message from client to server.
type ClientMessage struct {
	Type        string         `json:"type"`
	RoomID      string         `json:"roomId,omitempty"`
	Name        string         `json:"name,omitempty"`
	BaseVersion int            `json:"baseVersion"`
	Seq         int            `json:"seq,omitempty"` // client-assigned sequence number
	Op          ot.Operation   `json:"op,omitempty"`
	Cursor      store.Position `json:"cursor,omitempty"`
	Selection   store.Range    `json:"selection,omitempty"`
}

// ServerMessage is a message from server to client.
type ServerMessage struct {
	Type          string              `json:"type"`
	RoomID        string              `json:"roomId,omitempty"`
	Content       string              `json:"content,omitempty"`
	Version       int                 `json:"version"`
	Seq           int                 `json:"seq,omitempty"`
	Op            ot.Operation        `json:"op,omitempty"`
	ParticipantID string              `json:"participantId,omitempty"`
	Name          string              `json:"name,omitempty"`
	Color         string              `json:"color,omitempty"`
	Cursor        store.Position      `json:"cursor,omitempty"`
	Selection     store.Range         `json:"selection,omitempty"`
	Code          string              `json:"code,omitempty"`    // error code
	Message       string              `json:"message,omitempty"` // error detail
	Resync        bool                `json:"resync,omitempty"`  // client must reload from the doc snapshot
	Participants  []store.Participant `json:"participants,omitempty"`
}

// Encode serializes a ServerMessage to JSON bytes.
func (m ServerMessage) Encode() []byte {
	b, _ := json.Marshal(m)
	return b
}
