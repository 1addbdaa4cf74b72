package game

import (
	"sort"
	"sync"
)

// PlayerInfo is a point-in-time view of a registered player.
type PlayerInfo struct {
	ID        int  `json:"id"`
	Gems      int  `json:"gems"`
	Connected bool `json:"connected"`
}

// Registry maps player ids to players. Players are created on first use and
// never evicted. A player can be attached to at most one session at a time.
type Registry struct {
	mu          sync.Mutex
	players     map[int]*Player
	initialGems int
}

// NewRegistry creates an empty registry whose new players start with
// initialGems.
func NewRegistry(initialGems int) *Registry {
	return &Registry{
		players:     make(map[int]*Player),
		initialGems: initialGems,
	}
}

// GetOrCreate returns the player for id, creating it if needed.
func (r *Registry) GetOrCreate(id int) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreate(id)
}

func (r *Registry) getOrCreate(id int) *Player {
	p, ok := r.players[id]
	if !ok {
		p = NewPlayer(id, r.initialGems)
		r.players[id] = p
	}
	return p
}

// Attach marks the player for id as connected to a session. It fails with
// an ActionError if the player is already attached elsewhere.
func (r *Registry) Attach(id int) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.getOrCreate(id)
	if p.connected {
		return nil, actionError(ReasonAlreadyPlaying)
	}
	p.connected = true
	return p, nil
}

// Release detaches p from its session. Releasing nil is a no-op.
func (r *Registry) Release(p *Player) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p.connected = false
}

// Connected reports whether p is attached to a session.
func (r *Registry) Connected(p *Player) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return p.connected
}

// Snapshot lists every known player ordered by id.
func (r *Registry) Snapshot() []PlayerInfo {
	r.mu.Lock()
	infos := make([]PlayerInfo, 0, len(r.players))
	for _, p := range r.players {
		infos = append(infos, PlayerInfo{ID: p.ID, Gems: p.Gems(), Connected: p.connected})
	}
	r.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}
