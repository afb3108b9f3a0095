package room

import (
	"time"

	"party-rooms/internal/game"
	"party-rooms/internal/store"
)

type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusLeft         Status = "left"
)

// Player is one participant. The identity is stable across reconnects for
// the room's lifetime; connections come and go underneath it.
type Player struct {
	ID       string
	Name     string
	Role     game.Role
	Status   Status
	JoinedAt time.Time

	connID string
	// cursor is the last event seq delivered on the player's most recent
	// connection; replay after reconnect resumes from here.
	cursor int64
	// graceSeq invalidates grace timers from superseded disconnects.
	graceSeq int
}

// Registry is a room's player roster. It is only touched from the room's
// serialized loop and needs no locking.
type Registry struct {
	players map[string]*Player
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{players: map[string]*Player{}}
}

func (r *Registry) Get(id string) *Player {
	return r.players[id]
}

func (r *Registry) ByConn(connID string) *Player {
	if connID == "" {
		return nil
	}
	for _, p := range r.players {
		if p.connID == connID {
			return p
		}
	}
	return nil
}

// Upsert returns the existing player for id, or registers a new one. New
// non-spectators become host when the room has none. The bool reports
// whether an existing identity was reused.
func (r *Registry) Upsert(id, name string, roleHint game.Role, now time.Time) (*Player, bool) {
	if p := r.players[id]; p != nil {
		if p.Status != StatusLeft {
			if name != "" {
				p.Name = name
			}
			return p, true
		}
		// Left identities are never resurrected; the late returner starts
		// over as a fresh player.
		id = ""
	}
	if id == "" {
		id = store.NewID()
	}
	role := roleHint
	if role != game.RoleSpectator {
		role = game.RolePlayer
		if r.Host() == nil {
			role = game.RoleHost
		}
	}
	p := &Player{
		ID:       id,
		Name:     name,
		Role:     role,
		Status:   StatusConnected,
		JoinedAt: now,
	}
	r.players[id] = p
	r.order = append(r.order, id)
	return p, false
}

func (r *Registry) Host() *Player {
	for _, id := range r.order {
		if p := r.players[id]; p != nil && p.Role == game.RoleHost && p.Status != StatusLeft {
			return p
		}
	}
	return nil
}

// PromoteHost hands host to the earliest-joined connected non-spectator and
// returns the new host, if any.
func (r *Registry) PromoteHost() *Player {
	for _, id := range r.order {
		p := r.players[id]
		if p == nil || p.Role == game.RoleSpectator || p.Status != StatusConnected {
			continue
		}
		p.Role = game.RoleHost
		return p
	}
	return nil
}

// Players returns the roster in join order.
func (r *Registry) Players() []*Player {
	out := make([]*Player, 0, len(r.order))
	for _, id := range r.order {
		if p := r.players[id]; p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Active returns the non-spectator players whose submissions gate early
// phase advancement. A disconnected player still blocks all-submitted until
// the reconnect grace expires; a left player never does.
func (r *Registry) Active() []*Player {
	var out []*Player
	for _, id := range r.order {
		p := r.players[id]
		if p != nil && p.Role != game.RoleSpectator && p.Status != StatusLeft {
			out = append(out, p)
		}
	}
	return out
}

func (r *Registry) ConnectedCount() int {
	n := 0
	for _, p := range r.players {
		if p.Status == StatusConnected {
			n++
		}
	}
	return n
}

// Empty reports that nobody is connected and nobody is inside a reconnect
// grace window.
func (r *Registry) Empty() bool {
	for _, p := range r.players {
		if p.Status == StatusConnected || p.Status == StatusDisconnected {
			return false
		}
	}
	return true
}
