package room

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"party-rooms/internal/game"
)

const codeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
const codeLength = 6

// Directory maps room codes to live coordinators. It is the only state
// shared across rooms and is guarded by its own mutex; everything per-room
// stays inside the coordinator.
type Directory struct {
	mu       sync.Mutex
	rooms    map[string]*Coordinator
	maxRooms int

	settings   Settings
	emptyGrace time.Duration
	gameCfg    game.Config
	content    game.Content
	observer   Observer
	rnd        *rand.Rand
}

func NewDirectory(maxRooms int, settings Settings, emptyGrace time.Duration, gameCfg game.Config, content game.Content, observer Observer) *Directory {
	if maxRooms <= 0 {
		maxRooms = 512
	}
	if emptyGrace <= 0 {
		emptyGrace = time.Minute
	}
	return &Directory{
		rooms:      map[string]*Coordinator{},
		maxRooms:   maxRooms,
		settings:   settings,
		emptyGrace: emptyGrace,
		gameCfg:    gameCfg,
		content:    content,
		observer:   observer,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GetOrCreate routes a room code to its coordinator, creating one on first
// use. An empty code creates a room under a fresh generated code.
func (d *Directory) GetOrCreate(code, gameType string) (*Coordinator, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	d.mu.Lock()
	defer d.mu.Unlock()

	if code != "" {
		if c, ok := d.rooms[code]; ok {
			select {
			case <-c.Done():
				delete(d.rooms, code)
			default:
				return c, nil
			}
		}
	}
	if len(d.rooms) >= d.maxRooms {
		return nil, ErrDirectoryFull
	}

	policy, err := game.New(gameType, d.gameCfg, d.content)
	if err != nil {
		return nil, err
	}
	if code == "" {
		code = d.newCodeLocked()
	}
	c := New(code, gameType, policy, d.settings, d.observer)
	d.rooms[code] = c
	log.Info().Str("room_code", code).Str("game_type", gameType).Msg("room created")
	return c, nil
}

func (d *Directory) Get(code string) (*Coordinator, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.rooms[code]
	if !ok {
		return nil, false
	}
	select {
	case <-c.Done():
		delete(d.rooms, code)
		return nil, false
	default:
		return c, true
	}
}

// Rooms lists live rooms for the public directory endpoint.
func (d *Directory) Rooms() []Info {
	d.mu.Lock()
	coords := make([]*Coordinator, 0, len(d.rooms))
	for _, c := range d.rooms {
		coords = append(coords, c)
	}
	d.mu.Unlock()

	out := make([]Info, 0, len(coords))
	for _, c := range coords {
		select {
		case <-c.Done():
		default:
			out = append(out, c.Info())
		}
	}
	return out
}

// StartJanitor sweeps the directory, discarding rooms that stayed empty past
// the grace period and entries whose coordinator already died.
func (d *Directory) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				d.sweep(now)
			}
		}
	}()
}

func (d *Directory) sweep(now time.Time) {
	d.mu.Lock()
	type entry struct {
		code string
		c    *Coordinator
	}
	entries := make([]entry, 0, len(d.rooms))
	for code, c := range d.rooms {
		entries = append(entries, entry{code, c})
	}
	d.mu.Unlock()

	for _, e := range entries {
		select {
		case <-e.c.Done():
			d.remove(e.code)
			continue
		default:
		}
		info := e.c.Info()
		if !info.EmptySince.IsZero() && now.Sub(info.EmptySince) > d.emptyGrace {
			log.Info().Str("room_code", e.code).Msg("room empty past grace, destroying")
			e.c.Stop()
			d.remove(e.code)
		}
	}
}

func (d *Directory) remove(code string) {
	d.mu.Lock()
	delete(d.rooms, code)
	d.mu.Unlock()
}

func (d *Directory) newCodeLocked() string {
	for {
		b := make([]byte, codeLength)
		for i := range b {
			b[i] = codeLetters[d.rnd.Intn(len(codeLetters))]
		}
		code := string(b)
		if _, taken := d.rooms[code]; !taken {
			return code
		}
	}
}
