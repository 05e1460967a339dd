// Package registry implements C7: the in-memory session index mapping
// socket-id to session and room-id to the set of joined sockets.
//
// ARCHITECTURAL DISCOVERY: the source's three-level map structure
// (global + per-session-role) is regeneralized here into a two-level one
// (room -> set of sessions) since this domain has exactly two roles per
// room rather than an open instructor/student roster.
package registry

import (
	"sync"

	"roomcoordinator/pkg/types"
)

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*types.Session            // socket-id -> session
	rooms    map[string]map[string]*types.Session // room-id -> socket-id -> session
}

func New() *Registry {
	return &Registry{
		sessions: make(map[string]*types.Session),
		rooms:    make(map[string]map[string]*types.Session),
	}
}

// Put registers a session and adds it to its room's membership set.
// FUNCTIONAL DISCOVERY: a socket-id already present is overwritten, mirroring
// the source's "replace on reconnect" behavior — the caller is responsible
// for tearing down any prior connection on the same socket-id first.
func (r *Registry) Put(session *types.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.SocketID] = session

	room, ok := r.rooms[session.RoomID]
	if !ok {
		room = make(map[string]*types.Session)
		r.rooms[session.RoomID] = room
	}
	room[session.SocketID] = session
}

// Get returns the session for a socket, or nil if none is registered.
func (r *Registry) Get(socketID string) *types.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[socketID]
}

// Remove deletes the session and prunes its room's membership set if it
// becomes empty.
func (r *Registry) Remove(socketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[socketID]
	if !ok {
		return
	}
	delete(r.sessions, socketID)

	if room, ok := r.rooms[session.RoomID]; ok {
		delete(room, socketID)
		if len(room) == 0 {
			delete(r.rooms, session.RoomID)
		}
	}
}

// Room returns a snapshot of the sessions currently joined to roomID.
// Order is insignificant.
func (r *Registry) Room(roomID string) []*types.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[roomID]
	sessions := make([]*types.Session, 0, len(room))
	for _, s := range room {
		sessions = append(sessions, s)
	}
	return sessions
}

// BothPresent reports whether roomID currently has at least one patient
// session and at least one doctor session.
func (r *Registry) BothPresent(roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var patient, doctor bool
	for _, s := range r.rooms[roomID] {
		switch s.Role {
		case types.RolePatient:
			patient = true
		case types.RoleDoctor:
			doctor = true
		}
		if patient && doctor {
			return true
		}
	}
	return false
}

// Stats reports coarse counts for the health endpoint, mirroring the
// source's GetStats shape.
type Stats struct {
	TotalSessions int
	ActiveRooms   int
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{TotalSessions: len(r.sessions), ActiveRooms: len(r.rooms)}
}
