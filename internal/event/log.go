package event

import (
	"sync"
	"time"
)

// Event types every game shares on the wire.
const (
	TypePlayerJoined   = "player_joined"
	TypePlayerLeft     = "player_left"
	TypePhaseChanged   = "phase_changed"
	TypeActionApplied  = "action_applied"
	TypeActionRejected = "action_rejected"
	TypeRoundResult    = "round_result"
	TypeGameEnded      = "game_ended"
	TypeSnapshot       = "snapshot"
)

// Event is one immutable fact in a room's ordered log. Seq is the room-log
// position clients use to detect gaps.
type Event struct {
	Seq      int64  `json:"seq"`
	Type     string `json:"type"`
	Room     string `json:"room"`
	ServerTS int64  `json:"server_ts"`
	Payload  any    `json:"payload,omitempty"`
}

// Log is a room's append-only event log. It retains a bounded window for
// replay to reconnecting clients and fans new events out to subscribers.
// Every subscriber observes events in the same total order.
type Log struct {
	mu      sync.Mutex
	room    string
	nextSeq int64
	window  int
	events  []Event
	subs    map[chan Event]struct{}
	closed  bool
}

func NewLog(room string, window int) *Log {
	return NewLogAt(room, window, 0)
}

// NewLogAt starts a log whose next event gets sequence seq+1. Used when a
// room is rebuilt from a snapshot so clients never observe the seq reset.
func NewLogAt(room string, window int, seq int64) *Log {
	if window <= 0 {
		window = 500
	}
	return &Log{
		room:    room,
		window:  window,
		nextSeq: seq,
		subs:    map[chan Event]struct{}{},
	}
}

func (l *Log) Append(typ string, payload any) Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return Event{}
	}
	l.nextSeq++
	ev := Event{
		Seq:      l.nextSeq,
		Type:     typ,
		Room:     l.room,
		ServerTS: time.Now().UnixMilli(),
		Payload:  payload,
	}
	l.events = append(l.events, ev)
	if len(l.events) > l.window {
		l.events = l.events[len(l.events)-l.window:]
	}
	for ch := range l.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return ev
}

// Head returns the sequence number of the most recent event.
func (l *Log) Head() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextSeq
}

// ReplayAfter returns every retained event with Seq > after, in order. The
// second return is false when the window no longer reaches back to after+1,
// meaning the caller must fall back to a full snapshot instead of a replay.
func (l *Log) ReplayAfter(after int64) ([]Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if after >= l.nextSeq {
		return nil, true
	}
	if len(l.events) > 0 && l.events[0].Seq > after+1 {
		return nil, false
	}
	if len(l.events) == 0 {
		return nil, false
	}
	out := make([]Event, 0, len(l.events))
	for _, ev := range l.events {
		if ev.Seq > after {
			out = append(out, ev)
		}
	}
	return out, true
}

func (l *Log) Subscribe() chan Event {
	ch := make(chan Event, 32)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		close(ch)
		return ch
	}
	l.subs[ch] = struct{}{}
	return ch
}

func (l *Log) Unsubscribe(ch chan Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.subs[ch]; ok {
		delete(l.subs, ch)
		close(ch)
	}
}

func (l *Log) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for ch := range l.subs {
		close(ch)
		delete(l.subs, ch)
	}
}
