// Package room implements C9: the room coordinator, the state machine that
// owns every socket event inside a joined room.
//
// ARCHITECTURAL DISCOVERY: the source's Hub is a single goroutine serializing
// every room in the process behind one channel. That collapses naturally
// ordered, causally unrelated rooms onto one another. This coordinator keeps
// the source's channel-actor idiom but regranularizes it to one actor per
// active room: a room's events are still strictly ordered against each
// other, but two different rooms never wait on one another's backlog.
package room

import (
	"context"
	"sync"
	"time"

	"roomcoordinator/internal/gateway"
	"roomcoordinator/internal/offlinequeue"
	"roomcoordinator/internal/registry"
	"roomcoordinator/pkg/interfaces"
)

// Logger is the narrow structured-logging surface the coordinator needs.
type Logger interface {
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// Coordinator owns every room actor and the cross-cutting stores each actor
// calls into. It never touches a socket directly; internal/websocket hands
// it raw connections at Connect and routes frames to it via Dispatch.
type Coordinator struct {
	rooms    interfaces.RoomStore
	messages interfaces.MessageStore
	verifier interfaces.TokenVerifier
	gateway  *gateway.Gateway
	registry *registry.Registry
	queue    *offlinequeue.Queue
	logger   Logger

	actorsMu sync.Mutex
	actors   map[string]*roomActor

	connMu      sync.Mutex
	connections map[string]interfaces.Connection

	audioMu  sync.Mutex
	audioBuf map[string][]byte // socket-id -> accumulated chunks for the in-flight utterance
}

func New(rooms interfaces.RoomStore, messages interfaces.MessageStore, verifier interfaces.TokenVerifier, gw *gateway.Gateway, reg *registry.Registry, queue *offlinequeue.Queue, logger Logger) *Coordinator {
	return &Coordinator{
		rooms:       rooms,
		messages:    messages,
		verifier:    verifier,
		gateway:     gw,
		registry:    reg,
		queue:       queue,
		logger:      logger,
		actors:      make(map[string]*roomActor),
		connections: make(map[string]interfaces.Connection),
		audioBuf:    make(map[string][]byte),
	}
}

// roomActor is one room's serial event queue. FUNCTIONAL DISCOVERY: a
// buffered inbox absorbs bursts (e.g. chunked audio) without blocking the
// websocket read loop that feeds it.
type roomActor struct {
	roomID string
	inbox  chan func()
}

func (c *Coordinator) runActor(a *roomActor) {
	for fn := range a.inbox {
		fn()
	}
}

// enqueue hands fn to roomID's actor, spawning its goroutine on first use.
// TECHNICAL DISCOVERY: creation, send, and retirement (retireActorIfEmpty)
// all hold actorsMu for their full duration, so a send can never land on an
// inbox that retirement has already closed — the lock is the single point
// that orders "one more event" against "nobody left, shut down".
func (c *Coordinator) enqueue(roomID string, fn func()) {
	c.actorsMu.Lock()
	defer c.actorsMu.Unlock()

	a, ok := c.actors[roomID]
	if !ok {
		a = &roomActor{roomID: roomID, inbox: make(chan func(), 64)}
		c.actors[roomID] = a
		go c.runActor(a)
	}
	a.inbox <- fn
}

// retireActorIfEmpty tears an actor down once its room has no members left.
func (c *Coordinator) retireActorIfEmpty(roomID string) {
	c.actorsMu.Lock()
	defer c.actorsMu.Unlock()

	if len(c.registry.Room(roomID)) > 0 {
		return
	}
	if a, ok := c.actors[roomID]; ok {
		delete(c.actors, roomID)
		close(a.inbox)
	}
}

// Connect registers a raw connection immediately after the websocket
// handshake, before any join_room event has arrived.
func (c *Coordinator) Connect(socketID string, conn interfaces.Connection) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.connections[socketID] = conn
}

func (c *Coordinator) connFor(socketID string) interfaces.Connection {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.connections[socketID]
}

func (c *Coordinator) dropConn(socketID string) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	delete(c.connections, socketID)
}

// Dispatch routes one inbound frame to the owning room actor. join_room is
// special: the room is named in the payload itself, so it can spawn an
// actor before any session exists. Every other event routes by the
// socket's already-registered session.
func (c *Coordinator) Dispatch(ctx context.Context, socketID string, env Envelope) {
	conn := c.connFor(socketID)
	if conn == nil {
		return // connection already torn down; nothing to reply on.
	}

	if env.Event == EventJoinRoom {
		var payload JoinRoomPayload
		if err := unmarshalPayload(env.Data, &payload); err != nil {
			c.sendError(conn, "malformed join_room payload")
			return
		}
		c.enqueue(payload.RoomID, func() {
			c.handleJoinRoom(ctx, socketID, conn, payload)
			c.retireActorIfEmpty(payload.RoomID) // no-op unless the join above failed validation
		})
		return
	}

	session := c.registry.Get(socketID)
	if session == nil {
		c.sendError(conn, "no active room session")
		return
	}
	roomID := session.RoomID

	switch env.Event {
	case EventSendMessage:
		var payload SendMessagePayload
		if err := unmarshalPayload(env.Data, &payload); err != nil {
			c.sendError(conn, "malformed send_message payload")
			return
		}
		c.enqueue(roomID, func() { c.handleSendMessage(ctx, socketID, conn, payload) })
	case EventAudioChunk:
		var payload AudioChunkPayload
		if err := unmarshalPayload(env.Data, &payload); err != nil {
			c.sendError(conn, "malformed audio_chunk payload")
			return
		}
		c.enqueue(roomID, func() { c.handleAudioChunk(ctx, socketID, conn, payload) })
	case EventRequestTTS:
		var payload RequestTTSPayload
		if err := unmarshalPayload(env.Data, &payload); err != nil {
			c.sendError(conn, "malformed request_tts payload")
			return
		}
		c.enqueue(roomID, func() { c.handleRequestTTS(ctx, socketID, conn, payload) })
	case EventUpdateLanguage:
		var payload UpdateLanguagePayload
		if err := unmarshalPayload(env.Data, &payload); err != nil {
			c.sendError(conn, "malformed update_language payload")
			return
		}
		c.enqueue(roomID, func() { c.handleUpdateLanguage(socketID, conn, payload) })
	case EventLeaveRoom:
		c.enqueue(roomID, func() { c.handleDeparture(socketID, ReasonParticipantLeft) })
	default:
		c.logger.Info("ignoring unknown event", "event", env.Event, "socket_id", socketID)
	}
}

// Disconnect handles a socket dropping without an explicit leave_room frame
// (TCP reset, client crash, network loss). Safe to call more than once.
func (c *Coordinator) Disconnect(socketID string) {
	c.dropConn(socketID)
	c.audioMu.Lock()
	delete(c.audioBuf, socketID)
	c.audioMu.Unlock()

	session := c.registry.Get(socketID)
	if session == nil {
		return
	}
	c.enqueue(session.RoomID, func() { c.handleDeparture(socketID, ReasonParticipantDisconnected) })
}

func (c *Coordinator) send(conn interfaces.Connection, event string, data interface{}) {
	if err := conn.WriteJSON(Envelope{Event: event, Data: marshalPayload(data)}); err != nil {
		c.logger.Warn("write failed", "event", event, "error", err)
	}
}

func (c *Coordinator) sendError(conn interfaces.Connection, message string) {
	c.send(conn, EventError, ErrorPayload{Message: message})
}

// broadcast delivers event/data to every session in roomID except
// excludeSocketID (pass "" to include everyone).
func (c *Coordinator) broadcast(roomID, excludeSocketID, event string, data interface{}) {
	for _, s := range c.registry.Room(roomID) {
		if s.SocketID == excludeSocketID {
			continue
		}
		if conn := c.connFor(s.SocketID); conn != nil {
			c.send(conn, event, data)
		}
	}
}

func timestamp(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }
