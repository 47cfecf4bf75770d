package server

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/codecollab/codecollab/ot"
	"github.com/codecollab/codecollab/store"
)

const storeTimeout = 5 * time.Second

type editMessage struct {
	client *Client
	msg    ClientMessage
}

// Room manages collaboration for a single document. All operations are
// serialized through one goroutine: exactly one edit is rebased and applied
// at a time, while different rooms run fully independently.
type Room struct {
	id       string
	doc      *ot.Document
	engine   ot.Engine
	store    store.SessionStore
	presence *PresenceTracker
	logger   zerolog.Logger
	clients  map[*Client]bool

	incoming chan editMessage
	join     chan *Client
	leave    chan *Client
	stop     chan struct{}

	// population counts joined clients plus joins dispatched by the hub but
	// not yet processed; the hub reaps the room only when it reaches zero.
	population atomic.Int32
	emptySince atomic.Int64 // unix nanos of the moment population last hit zero
}

func newRoom(id string, doc *ot.Document, engine ot.Engine, st store.SessionStore, presence *PresenceTracker, logger zerolog.Logger) *Room {
	r := &Room{
		id:       id,
		doc:      doc,
		engine:   engine,
		store:    st,
		presence: presence,
		logger:   logger.With().Str("room", id).Logger(),
		clients:  make(map[*Client]bool),
		incoming: make(chan editMessage, 64),
		join:     make(chan *Client, 16),
		leave:    make(chan *Client, 16),
		stop:     make(chan struct{}),
	}
	r.emptySince.Store(time.Now().UnixNano())
	return r
}

// Run is the room's main loop, the per-room critical section.
func (r *Room) Run() {
	for {
		select {
		case c := <-r.join:
			r.handleJoin(c)
		case c := <-r.leave:
			r.handleLeave(c)
		case em := <-r.incoming:
			r.handleEdit(em)
		case <-r.stop:
			return
		}
	}
}

func (r *Room) handleJoin(c *Client) {
	r.clients[c] = true
	c.setRoom(r)
	r.presence.Join(r.id, c)

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	p := store.Participant{
		ID:         c.ID,
		Name:       c.Name,
		Color:      c.Color,
		LastActive: time.Now(),
	}
	if err := r.store.AddParticipant(ctx, r.id, p); err != nil {
		r.logger.Warn().Err(err).Str("participant", c.ID).Msg("failed to persist participant")
	}

	c.sendMsg(ServerMessage{
		Type:         MsgDoc,
		RoomID:       r.id,
		Content:      r.doc.Content,
		Version:      r.doc.Version,
		Participants: r.roster(),
	})

	for other := range r.clients {
		if other != c {
			other.sendMsg(ServerMessage{
				Type:          MsgJoined,
				RoomID:        r.id,
				ParticipantID: c.ID,
				Name:          c.Name,
				Color:         c.Color,
			})
		}
	}
	participantsConnected.Inc()
}

func (r *Room) handleLeave(c *Client) {
	if _, ok := r.clients[c]; !ok {
		return
	}
	delete(r.clients, c)
	c.setRoom(nil)
	// Drop the presence entry before closing the channel so a concurrent
	// presence broadcast cannot target a departing client.
	r.presence.Leave(r.id, c.ID)
	c.closeSend()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := r.store.RemoveParticipant(ctx, r.id, c.ID); err != nil {
		r.logger.Warn().Err(err).Str("participant", c.ID).Msg("failed to remove participant")
	}

	for other := range r.clients {
		other.sendMsg(ServerMessage{
			Type:          MsgLeft,
			RoomID:        r.id,
			ParticipantID: c.ID,
		})
	}
	participantsConnected.Dec()

	if r.population.Add(-1) == 0 {
		r.emptySince.Store(time.Now().UnixNano())
	}
}

func (r *Room) handleEdit(em editMessage) {
	msg := em.msg
	if msg.BaseVersion > r.doc.Version {
		em.client.sendError(ErrCodeBadMessage, "base version ahead of document")
		return
	}

	transformed, err := r.engine.TransformIncoming(msg.Op, msg.BaseVersion, r.doc)
	if err != nil {
		if errors.Is(err, ot.ErrVersionTooOld) {
			// The base precedes the retained log; the client cannot be
			// rebased and must reload from the snapshot that follows.
			em.client.sendMsg(ServerMessage{
				Type:    MsgError,
				RoomID:  r.id,
				Code:    ErrCodeVersionTooOld,
				Message: err.Error(),
				Resync:  true,
			})
			em.client.sendMsg(ServerMessage{
				Type:    MsgDoc,
				RoomID:  r.id,
				Content: r.doc.Content,
				Version: r.doc.Version,
			})
			return
		}
		r.logger.Error().Err(err).Msg("rebase failed")
		em.client.sendError(ErrCodeBadMessage, "rebase failed: "+err.Error())
		return
	}

	newContent, err := ot.Apply(r.doc.Content, transformed)
	if err != nil {
		r.logger.Error().Err(err).Msg("apply failed")
		em.client.sendError(ErrCodeBadMessage, "apply failed: "+err.Error())
		return
	}
	newVersion := r.doc.Version + 1

	// Persist before acknowledging; never the other way around.
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := r.store.AppendOperation(ctx, r.id, transformed, newVersion); err != nil {
		r.logger.Error().Err(err).Msg("failed to persist operation")
		em.client.sendError(ErrCodeInternal, "failed to persist operation")
		return
	}
	if err := r.store.UpdateContent(ctx, r.id, newContent, newVersion); err != nil {
		r.logger.Error().Err(err).Msg("failed to persist content")
	}

	if err := r.doc.Apply(transformed); err != nil {
		// Cannot happen after the staging Apply above succeeded.
		r.logger.Error().Err(err).Msg("commit failed")
		return
	}
	r.presence.Touch(r.id, em.client.ID)
	opsApplied.Inc()

	// The author applied its edit optimistically and only needs its version.
	em.client.sendMsg(ServerMessage{
		Type:    MsgAck,
		RoomID:  r.id,
		Version: r.doc.Version,
		Seq:     msg.Seq,
	})

	for c := range r.clients {
		if c != em.client {
			c.sendMsg(ServerMessage{
				Type:          MsgEditApplied,
				RoomID:        r.id,
				Version:       r.doc.Version,
				Op:            transformed,
				ParticipantID: em.client.ID,
			})
		}
	}
}

func (r *Room) roster() []store.Participant {
	result := make([]store.Participant, 0, len(r.clients))
	for c := range r.clients {
		p := store.Participant{ID: c.ID, Name: c.Name, Color: c.Color}
		if cursor, selection, ok := r.presence.Presence(r.id, c.ID); ok {
			p.Cursor = cursor
			p.Selection = selection
		}
		result = append(result, p)
	}
	return result
}
