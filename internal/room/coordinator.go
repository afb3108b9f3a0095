package room

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"party-rooms/internal/event"
	"party-rooms/internal/game"
)

// Conn is one live transport binding to a participant. Send must never
// block; it reports false when the connection is dead or its buffer
// overflowed, at which point the coordinator treats it as disconnected.
type Conn interface {
	ID() string
	Send(data []byte) bool
	Close()
}

// Observer receives room facts worth pushing outside the room (webhook
// notifications, archiving). Calls happen on the room's loop; implementations
// must not block.
type Observer interface {
	RoomEvent(roomCode, gameType string, ev event.Event)
}

// Settings is the per-deployment tuning for a coordinator.
type Settings struct {
	ReconnectGrace time.Duration
	ReplayWindow   int
}

// Info is a point-in-time public summary of a room, safe to read from any
// goroutine.
type Info struct {
	Code       string    `json:"code"`
	GameType   string    `json:"game_type"`
	Phase      string    `json:"phase"`
	Round      int       `json:"round"`
	Players    int       `json:"players"`
	Connected  int       `json:"connected"`
	Ended      bool      `json:"ended"`
	CreatedAt  time.Time `json:"created_at"`
	EmptySince time.Time `json:"-"`
}

// ConnectResult is what a joining connection learns synchronously.
type ConnectResult struct {
	PlayerID    string    `json:"player_id"`
	Name        string    `json:"name"`
	Role        game.Role `json:"role"`
	Phase       string    `json:"phase"`
	Round       int       `json:"round"`
	Seq         int64     `json:"seq"`
	Reconnected bool      `json:"reconnected"`
}

type cmdKind int

const (
	cmdConnect cmdKind = iota
	cmdAction
	cmdForceAdvance
	cmdDisconnect
	cmdLeave
	cmdTimer
	cmdGrace
	cmdSnapshot
)

type command struct {
	kind     cmdKind
	playerID string
	name     string
	roleHint game.Role
	conn     Conn
	connID   string
	action   game.Action
	lastSeq  int64
	version  int64
	graceSeq int
	reply    chan any
}

// Coordinator is the single-writer actor owning one room. Every mutation
// (connects, actions, disconnects, timer fires) funnels through one command
// channel drained by one goroutine, so the registry, phase machine, and game
// policy are never touched concurrently.
type Coordinator struct {
	code     string
	gameType string
	policy   game.Policy
	settings Settings
	observer Observer

	machine   *Machine
	registry  *Registry
	log       *event.Log
	conns     map[string]Conn
	submitted map[string]bool
	createdAt time.Time

	phaseTimer *time.Timer
	ended      bool

	cmdCh    chan command
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	infoMu sync.Mutex
	info   Info
}

func New(code, gameType string, policy game.Policy, settings Settings, observer Observer) *Coordinator {
	c := newCoordinator(code, gameType, policy, settings, observer)
	c.machine = NewMachine(policy.Phases(), policy.Rounds(), policy.LoopStart())
	c.log = event.NewLog(code, settings.ReplayWindow)
	c.enterCurrentPhase(Trigger("created"))
	c.updateInfo()
	metricRoomsCreated.Add(1)
	go c.run()
	return c
}

func newCoordinator(code, gameType string, policy game.Policy, settings Settings, observer Observer) *Coordinator {
	if settings.ReconnectGrace <= 0 {
		settings.ReconnectGrace = 30 * time.Second
	}
	return &Coordinator{
		code:      code,
		gameType:  gameType,
		policy:    policy,
		settings:  settings,
		observer:  observer,
		registry:  NewRegistry(),
		conns:     map[string]Conn{},
		submitted: map[string]bool{},
		createdAt: time.Now(),
		cmdCh:     make(chan command, 64),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (c *Coordinator) Code() string        { return c.code }
func (c *Coordinator) GameType() string    { return c.gameType }
func (c *Coordinator) Events() *event.Log  { return c.log }
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Connect registers a transport for a player, assigning or reusing the
// identity, and replays whatever the player missed.
func (c *Coordinator) Connect(playerID, name string, roleHint game.Role, conn Conn, lastSeq int64) (ConnectResult, error) {
	reply := make(chan any, 1)
	ok := c.post(command{
		kind:     cmdConnect,
		playerID: playerID,
		name:     name,
		roleHint: roleHint,
		conn:     conn,
		lastSeq:  lastSeq,
		reply:    reply,
	})
	if !ok {
		return ConnectResult{}, ErrRoomGone
	}
	select {
	case v := <-reply:
		return v.(ConnectResult), nil
	case <-c.done:
		return ConnectResult{}, ErrRoomGone
	}
}

// SubmitAction queues a player action. Rejections are delivered to the
// acting player's connection, never to the room.
func (c *Coordinator) SubmitAction(playerID string, act game.Action) {
	c.post(command{kind: cmdAction, playerID: playerID, action: act})
}

// ForceAdvance is the host override that skips the current phase.
func (c *Coordinator) ForceAdvance(playerID string) {
	c.post(command{kind: cmdForceAdvance, playerID: playerID})
}

// Disconnect reports a transport loss. The player keeps their identity for
// the reconnect grace window.
func (c *Coordinator) Disconnect(connID string) {
	c.post(command{kind: cmdDisconnect, connID: connID})
}

// Leave removes a player immediately, skipping the grace window.
func (c *Coordinator) Leave(playerID string) {
	c.post(command{kind: cmdLeave, playerID: playerID})
}

// Snapshot serializes the room's full state.
func (c *Coordinator) Snapshot() (Snapshot, error) {
	reply := make(chan any, 1)
	if !c.post(command{kind: cmdSnapshot, reply: reply}) {
		return Snapshot{}, ErrRoomGone
	}
	select {
	case v := <-reply:
		return v.(Snapshot), nil
	case <-c.done:
		return Snapshot{}, ErrRoomGone
	}
}

func (c *Coordinator) Info() Info {
	c.infoMu.Lock()
	defer c.infoMu.Unlock()
	return c.info
}

// Stop shuts the room down, closing every connection and the event log.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Coordinator) post(cmd command) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.cmdCh <- cmd:
		return true
	case <-c.done:
		return false
	}
}

func (c *Coordinator) run() {
	defer close(c.done)
	defer c.cleanup()
	defer func() {
		if r := recover(); r != nil {
			// The serialized mutation path hit an internal invariant
			// violation; the room is gone rather than running on rotted
			// state.
			log.Error().Interface("panic", r).Str("room_code", c.code).Msg("room coordinator died")
		}
	}()
	for {
		select {
		case cmd := <-c.cmdCh:
			c.handle(cmd)
		case <-c.stopCh:
			return
		}
	}
}

func (c *Coordinator) cleanup() {
	c.cancelTimer()
	for id, conn := range c.conns {
		delete(c.conns, id)
		conn.Close()
	}
	c.log.Close()
	c.updateInfo()
	metricRoomsDestroyed.Add(1)
}

func (c *Coordinator) handle(cmd command) {
	switch cmd.kind {
	case cmdConnect:
		c.handleConnect(cmd)
	case cmdAction:
		c.handleAction(cmd)
	case cmdForceAdvance:
		c.handleForceAdvance(cmd)
	case cmdDisconnect:
		c.handleDisconnect(cmd.connID)
	case cmdLeave:
		c.handleLeave(cmd)
	case cmdTimer:
		c.handleTimerFired(cmd)
	case cmdGrace:
		c.handleGraceExpired(cmd)
	case cmdSnapshot:
		cmd.reply <- c.buildSnapshot()
	}
	c.updateInfo()
}

func (c *Coordinator) handleConnect(cmd command) {
	now := time.Now()
	p, reused := c.registry.Upsert(cmd.playerID, cmd.name, cmd.roleHint, now)

	// A surviving connection for the same player is superseded.
	if p.connID != "" {
		if old := c.conns[p.connID]; old != nil {
			delete(c.conns, p.connID)
			old.Close()
		}
	}
	wasDisconnected := p.Status == StatusDisconnected
	p.graceSeq++
	p.Status = StatusConnected
	p.connID = cmd.conn.ID()

	after := cmd.lastSeq
	if after <= 0 {
		after = p.cursor
	}

	c.emit(event.TypePlayerJoined, map[string]any{
		"player_id":   p.ID,
		"name":        p.Name,
		"role":        p.Role,
		"reconnected": reused && wasDisconnected,
	})

	// Replay happens before the connection joins live fanout so the
	// backlog (including the join just emitted) arrives exactly once and
	// in order.
	if missed, ok := c.log.ReplayAfter(after); ok {
		for _, ev := range missed {
			if frame, err := json.Marshal(ev); err == nil {
				cmd.conn.Send(frame)
			}
		}
	} else {
		c.sendPrivate(cmd.conn, event.TypeSnapshot, c.buildSnapshot())
		metricSnapshotsServed.Add(1)
	}
	p.cursor = c.log.Head()
	c.conns[cmd.conn.ID()] = cmd.conn

	cmd.reply <- ConnectResult{
		PlayerID:    p.ID,
		Name:        p.Name,
		Role:        p.Role,
		Phase:       c.machine.Current().Name,
		Round:       c.machine.Round(),
		Seq:         c.log.Head(),
		Reconnected: reused,
	}
}

func (c *Coordinator) handleAction(cmd command) {
	p := c.registry.Get(cmd.playerID)
	if p == nil || p.Status == StatusLeft {
		return
	}
	if c.machine.Terminal() {
		c.reject(p, ErrPhaseMismatch)
		return
	}
	if err := c.machine.Accept(cmd.action.Type); err != nil {
		c.reject(p, err)
		return
	}

	act := cmd.action
	act.Player = p.ID
	act.Role = p.Role
	cur := c.machine.Current()
	out, err := c.policy.Apply(cur.Name, c.machine.Round(), act)
	if err != nil {
		c.reject(p, err)
		return
	}

	metricActionsApplied.Add(1)
	c.emit(event.TypeActionApplied, map[string]any{
		"player_id": p.ID,
		"action":    act.Type,
	})
	for _, d := range out.Events {
		c.emit(d.Type, d.Payload)
	}
	if out.Submitted && p.Role != game.RoleSpectator {
		c.submitted[p.ID] = true
		c.maybeAllSubmitted()
	}
}

func (c *Coordinator) handleForceAdvance(cmd command) {
	p := c.registry.Get(cmd.playerID)
	if p == nil || p.Status == StatusLeft {
		return
	}
	if p.Role != game.RoleHost {
		c.reject(p, ErrNotAuthorized)
		return
	}
	if c.machine.Terminal() {
		c.reject(p, ErrPhaseMismatch)
		return
	}
	c.advance(TriggerHostForced)
}

func (c *Coordinator) handleDisconnect(connID string) {
	conn := c.conns[connID]
	delete(c.conns, connID)
	if conn != nil {
		conn.Close()
	}
	p := c.registry.ByConn(connID)
	if p == nil || p.Status != StatusConnected {
		return
	}
	p.connID = ""
	p.Status = StatusDisconnected
	p.graceSeq++
	graceSeq := p.graceSeq
	playerID := p.ID

	c.emit("player_disconnected", map[string]any{
		"player_id": p.ID,
		"grace_ms":  c.settings.ReconnectGrace.Milliseconds(),
	})
	time.AfterFunc(c.settings.ReconnectGrace, func() {
		c.post(command{kind: cmdGrace, playerID: playerID, graceSeq: graceSeq})
	})
}

func (c *Coordinator) handleGraceExpired(cmd command) {
	p := c.registry.Get(cmd.playerID)
	if p == nil || p.Status != StatusDisconnected || p.graceSeq != cmd.graceSeq {
		return
	}
	c.markLeft(p, "grace_expired")
}

func (c *Coordinator) handleLeave(cmd command) {
	p := c.registry.Get(cmd.playerID)
	if p == nil || p.Status == StatusLeft {
		return
	}
	if p.connID != "" {
		if conn := c.conns[p.connID]; conn != nil {
			delete(c.conns, p.connID)
			conn.Close()
		}
		p.connID = ""
	}
	p.graceSeq++
	c.markLeft(p, "left")
}

func (c *Coordinator) markLeft(p *Player, reason string) {
	p.Status = StatusLeft
	c.emit(event.TypePlayerLeft, map[string]any{
		"player_id": p.ID,
		"reason":    reason,
	})
	if p.Role == game.RoleHost {
		p.Role = game.RolePlayer
		if next := c.registry.PromoteHost(); next != nil {
			c.emit("host_changed", map[string]any{"player_id": next.ID})
		}
	}
	// A gone player no longer blocks all-submitted.
	c.maybeAllSubmitted()
}

func (c *Coordinator) handleTimerFired(cmd command) {
	if c.machine.Terminal() || cmd.version != c.machine.Version() {
		metricStaleTimers.Add(1)
		return
	}
	c.advance(TriggerDeadline)
}

func (c *Coordinator) maybeAllSubmitted() {
	if c.machine.Terminal() {
		return
	}
	cur := c.machine.Current()
	if !cur.AllSubmit {
		return
	}
	active := c.registry.Active()
	if len(active) == 0 || len(active) < cur.MinPlayers {
		return
	}
	for _, p := range active {
		if !c.submitted[p.ID] {
			return
		}
	}
	c.advance(TriggerAllSubmitted)
}

// advance is the single place phases move. The caller has already validated
// the trigger; a failure here means the machine was driven past terminal,
// which is an invariant violation worth logging loudly.
func (c *Coordinator) advance(trigger Trigger) {
	prev := c.machine.Current()
	prevRound := c.machine.Round()
	c.cancelTimer()

	_, _, err := c.machine.Advance(trigger)
	if err != nil {
		log.Error().
			Str("room_code", c.code).
			Str("phase", prev.Name).
			Str("trigger", string(trigger)).
			Msg("advance from terminal phase")
		return
	}

	if len(prev.Accepts) > 0 {
		payload := c.policy.RoundResult(prevRound)
		ev := c.emit(event.TypeRoundResult, payload)
		c.notify(ev)
	}

	if c.machine.Terminal() {
		c.finish()
		return
	}
	c.enterCurrentPhase(trigger)
}

func (c *Coordinator) enterCurrentPhase(trigger Trigger) {
	cur := c.machine.Current()
	round := c.machine.Round()
	c.submitted = map[string]bool{}
	c.policy.EnterPhase(cur.Name, round)

	payload := map[string]any{
		"phase":   cur.Name,
		"round":   round,
		"trigger": trigger,
	}
	if extra := c.policy.PhasePayload(cur.Name, round); extra != nil {
		payload["detail"] = extra
	}
	if cur.Duration > 0 {
		deadline := time.Now().Add(cur.Duration)
		payload["deadline_ts"] = deadline.UnixMilli()
		c.scheduleTimer(cur.Duration)
	}
	c.emit(event.TypePhaseChanged, payload)
}

// finish emits the room's single game_ended event.
func (c *Coordinator) finish() {
	if c.ended {
		return
	}
	c.ended = true
	ev := c.emit(event.TypeGameEnded, c.policy.FinalResult())
	c.notify(ev)
}

func (c *Coordinator) scheduleTimer(d time.Duration) {
	version := c.machine.Version()
	c.phaseTimer = time.AfterFunc(d, func() {
		c.post(command{kind: cmdTimer, version: version})
	})
}

func (c *Coordinator) cancelTimer() {
	if c.phaseTimer != nil {
		c.phaseTimer.Stop()
		c.phaseTimer = nil
	}
}

// emit appends to the room log and fans the frame out to every live
// connection. A connection that cannot take the frame is dropped and goes
// through the normal disconnect path.
func (c *Coordinator) emit(typ string, payload any) event.Event {
	ev := c.log.Append(typ, payload)
	metricEventsPublished.Add(1)
	frame, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("room_code", c.code).Str("event", typ).Msg("marshal event")
		return ev
	}
	var dead []string
	for id, conn := range c.conns {
		if conn.Send(frame) {
			if p := c.registry.ByConn(id); p != nil {
				p.cursor = ev.Seq
			}
		} else {
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		c.handleDisconnect(id)
	}
	return ev
}

func (c *Coordinator) sendPrivate(conn Conn, typ string, payload any) {
	ev := event.Event{
		Seq:      c.log.Head(),
		Type:     typ,
		Room:     c.code,
		ServerTS: time.Now().UnixMilli(),
		Payload:  payload,
	}
	frame, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("room_code", c.code).Str("event", typ).Msg("marshal private event")
		return
	}
	conn.Send(frame)
}

func (c *Coordinator) reject(p *Player, cause error) {
	metricActionsRejected.Add(1)
	reason := rejectionCode(cause)
	if reason == "internal_error" {
		log.Error().Err(cause).Str("room_code", c.code).Str("player_id", p.ID).Msg("action failed")
	}
	if p.connID == "" {
		return
	}
	conn := c.conns[p.connID]
	if conn == nil {
		return
	}
	c.sendPrivate(conn, event.TypeActionRejected, map[string]any{
		"reason": reason,
		"detail": cause.Error(),
	})
}

func rejectionCode(err error) string {
	switch {
	case errors.Is(err, ErrPhaseMismatch):
		return "phase_mismatch"
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, game.ErrValidationFailed):
		return "validation_failed"
	default:
		return "internal_error"
	}
}

func (c *Coordinator) notify(ev event.Event) {
	if c.observer != nil {
		c.observer.RoomEvent(c.code, c.gameType, ev)
	}
}

func (c *Coordinator) updateInfo() {
	empty := c.registry.Empty() && len(c.conns) == 0
	c.infoMu.Lock()
	defer c.infoMu.Unlock()
	prevEmptySince := c.info.EmptySince
	c.info = Info{
		Code:      c.code,
		GameType:  c.gameType,
		Phase:     c.machine.Current().Name,
		Round:     c.machine.Round(),
		Players:   len(c.registry.Players()),
		Connected: c.registry.ConnectedCount(),
		Ended:     c.machine.Terminal(),
		CreatedAt: c.createdAt,
	}
	if empty {
		if prevEmptySince.IsZero() {
			c.info.EmptySince = time.Now()
		} else {
			c.info.EmptySince = prevEmptySince
		}
	}
}
