// Package app wires the room registry, the session binding table and the
// signaling engine that drives both.
package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/qing-wang/WebRTC-SS/internal/core"
)

// RoomInfo is a read-only room summary for APIs (no transport fields).
type RoomInfo struct {
	ID          int64 `json:"id"`
	MemberCount int   `json:"member_count"`
}

// Registry owns the set of all rooms and the binding of each live
// connection to the room it joined. Both maps share one mutex domain;
// each Room guards its own fields. Lock order is registry then room.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[int64]*core.Room
	bindings map[core.SessionID]*core.Room
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:    make(map[int64]*core.Room),
		bindings: make(map[core.SessionID]*core.Room),
	}
}

// CreateRoom inserts a new empty room under id. An existing room under the
// same id is replaced; connections still bound to the old room keep their
// old binding until they leave or disconnect. Callers that want conflict
// semantics check FindRoom first.
func (r *Registry) CreateRoom(id int64) *core.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := core.NewRoom(id)
	r.rooms[id] = room
	log.Info().Str("module", "app.registry").Int64("room", id).Msg("room created")
	return room
}

func (r *Registry) FindRoom(id int64) (*core.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	return room, ok
}

func (r *Registry) ListRooms() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoomInfo, 0, len(r.rooms))
	for id, room := range r.rooms {
		out = append(out, RoomInfo{ID: id, MemberCount: room.MemberCount()})
	}
	return out
}

// AnyMembers reports whether any room currently has members.
func (r *Registry) AnyMembers() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, room := range r.rooms {
		if room.MemberCount() > 0 {
			return true
		}
	}
	return false
}

func (r *Registry) Bind(sid core.SessionID, room *core.Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[sid] = room
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Int64("room", room.ID()).Msg("bound session")
}

// Unbind removes the binding and returns the room it pointed at, so a
// close event can clean up membership without re-supplying the room id.
func (r *Registry) Unbind(sid core.SessionID) (*core.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.bindings[sid]
	if ok {
		delete(r.bindings, sid)
		log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbound session")
	}
	return room, ok
}

func (r *Registry) Lookup(sid core.SessionID) (*core.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.bindings[sid]
	return room, ok
}
