package core

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Room is a threadsafe in-memory room: the membership set plus the cached
// negotiation state handed to late joiners. It never closes adapter-owned
// connections; tear-down decisions belong to the engine.
type Room struct {
	id int64

	mu          sync.RWMutex
	members     map[string]SignalConnection
	initiator   string
	cachedOffer string
}

func NewRoom(id int64) *Room {
	return &Room{
		id:      id,
		members: make(map[string]SignalConnection),
	}
}

func (r *Room) ID() int64 { return r.id }

func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// AddMember inserts or overwrites the entry for name. A duplicate name
// silently replaces the prior connection, which matches the historical
// behavior of this relay.
func (r *Room) AddMember(name string, conn SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[name] = conn
	log.Info().Str("module", "core.room").Int64("room", r.id).Str("name", name).Str("sid", string(conn.ID())).Msg("member added")
}

// MemberNameBySession resolves the display name registered for a connection.
func (r *Room) MemberNameBySession(sid SessionID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, conn := range r.members {
		if conn.ID() == sid {
			return name, true
		}
	}
	return "", false
}

func (r *Room) RemoveMemberByName(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, name)
	r.resetWhenEmptyLocked()
	log.Info().Str("module", "core.room").Int64("room", r.id).Str("name", name).Msg("member removed")
}

// RemoveMemberBySession scans membership for the entry whose connection
// matches and removes it. Removal is driven by the transport close event,
// which knows the connection but not the name.
func (r *Room) RemoveMemberBySession(sid SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, conn := range r.members {
		if conn.ID() == sid {
			delete(r.members, name)
			log.Info().Str("module", "core.room").Int64("room", r.id).Str("name", name).Msg("member removed")
			break
		}
	}
	r.resetWhenEmptyLocked()
}

// SetOfferIfAbsent records the first cached payload and its sender. First
// offer wins: once set, later calls are no-ops until the room drains empty.
// Reports whether this call won.
func (r *Room) SetOfferIfAbsent(name, payload string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cachedOffer != "" {
		return false
	}
	r.cachedOffer = payload
	r.initiator = name
	log.Debug().Str("module", "core.room").Int64("room", r.id).Str("initiator", name).Msg("cached offer set")
	return true
}

func (r *Room) Initiator() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initiator
}

// CachedOffer returns the stored payload, or ok=false while negotiation
// has not started.
func (r *Room) CachedOffer() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cachedOffer, r.cachedOffer != ""
}

// PeersExcept snapshots every member connection except the named sender.
// Callers send outside the room lock so one slow peer cannot stall the room.
func (r *Room) PeersExcept(name string) []SignalConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SignalConnection, 0, len(r.members))
	for n, conn := range r.members {
		if n == name {
			continue
		}
		out = append(out, conn)
	}
	return out
}

// Drain atomically empties the room and clears the negotiation cache,
// returning the evicted connections for the caller to close. Used for the
// initiator-leave tear-down.
func (r *Room) Drain() []SignalConnection {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SignalConnection, 0, len(r.members))
	for _, conn := range r.members {
		out = append(out, conn)
	}
	r.members = make(map[string]SignalConnection)
	r.initiator = ""
	r.cachedOffer = ""
	return out
}

// resetWhenEmptyLocked drops the negotiation cache the moment the last
// member is gone, so the next joiner starts from a clean room.
func (r *Room) resetWhenEmptyLocked() {
	if len(r.members) == 0 {
		r.initiator = ""
		r.cachedOffer = ""
	}
}
