package room

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"party-rooms/internal/event"
	"party-rooms/internal/game"
)

type fakeConn struct {
	id string

	mu     sync.Mutex
	frames []event.Event
	closed bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	var ev event.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return false
	}
	f.frames = append(f.frames, ev)
	return true
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeConn) events() []event.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]event.Event, len(f.frames))
	copy(out, f.frames)
	return out
}

func (f *fakeConn) count(typ string) int {
	n := 0
	for _, ev := range f.events() {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, conn *fakeConn, typ string, timeout time.Duration) event.Event {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, ev := range conn.events() {
			if ev.Type == typ {
				return ev
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; got %+v", typ, conn.events())
	return event.Event{}
}

func newTestRoom(t *testing.T, rounds int, submit, reveal, grace time.Duration) *Coordinator {
	t.Helper()
	policy, err := game.New(game.TypePredict, game.Config{
		Rounds:         rounds,
		MinPlayers:     2,
		SubmitDeadline: submit,
		RevealDeadline: reveal,
	}, game.Content{})
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	c := New("ABCDEF", game.TypePredict, policy, Settings{
		ReconnectGrace: grace,
		ReplayWindow:   100,
	}, nil)
	t.Cleanup(c.Stop)
	return c
}

func join(t *testing.T, c *Coordinator, playerID, name string, role game.Role) (ConnectResult, *fakeConn) {
	t.Helper()
	conn := newFakeConn("conn-" + name + "-" + fmt.Sprint(time.Now().UnixNano()))
	res, err := c.Connect(playerID, name, role, conn, 0)
	if err != nil {
		t.Fatalf("connect %s: %v", name, err)
	}
	return res, conn
}

func vote(c *Coordinator, playerID string, choice int) {
	payload, _ := json.Marshal(map[string]int{"choice": choice})
	c.SubmitAction(playerID, game.Action{Type: "vote", Payload: payload})
}

func payloadMap(t *testing.T, ev event.Event) map[string]any {
	t.Helper()
	m, ok := ev.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload of %s is %T, want map", ev.Type, ev.Payload)
	}
	return m
}

func TestDeadlineAdvancesWithAbsentSubmitter(t *testing.T) {
	c := newTestRoom(t, 1, 120*time.Millisecond, 60*time.Millisecond, time.Second)
	host, _ := join(t, c, "", "ana", game.RolePlayer)
	p2, conn2 := join(t, c, "", "ben", game.RolePlayer)
	p3, _ := join(t, c, "", "cleo", game.RolePlayer)

	c.ForceAdvance(host.PlayerID)
	waitFor(t, conn2, event.TypePhaseChanged, time.Second)

	vote(c, host.PlayerID, 0)
	vote(c, p2.PlayerID, 1)
	// cleo never submits; the deadline must still resolve the phase.

	result := waitFor(t, conn2, event.TypeRoundResult, time.Second)
	votes := payloadMap(t, result)["votes"].(map[string]any)
	if len(votes) != 2 {
		t.Fatalf("votes = %v, want exactly the two submitters", votes)
	}
	if _, present := votes[p3.PlayerID]; present {
		t.Fatal("non-submitter must be absent, not recorded")
	}

	waitFor(t, conn2, event.TypeGameEnded, time.Second)
	if n := conn2.count(event.TypeGameEnded); n != 1 {
		t.Fatalf("game_ended count = %d, want 1", n)
	}
}

func TestAllSubmittedAdvancesBeforeDeadline(t *testing.T) {
	c := newTestRoom(t, 1, 10*time.Second, 10*time.Second, time.Second)
	host, conn1 := join(t, c, "", "ana", game.RolePlayer)
	p2, _ := join(t, c, "", "ben", game.RolePlayer)

	c.ForceAdvance(host.PlayerID)
	waitFor(t, conn1, event.TypePhaseChanged, time.Second)

	start := time.Now()
	vote(c, host.PlayerID, 0)
	vote(c, p2.PlayerID, 1)
	waitFor(t, conn1, event.TypeRoundResult, time.Second)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("all-submitted advance took %v; deadline should not have been the trigger", elapsed)
	}
}

func TestSupersededDeadlineFireIsIgnored(t *testing.T) {
	c := newTestRoom(t, 1, 10*time.Second, 10*time.Second, time.Second)
	host, conn1 := join(t, c, "", "ana", game.RolePlayer)
	p2, _ := join(t, c, "", "ben", game.RolePlayer)

	c.ForceAdvance(host.PlayerID)
	waitFor(t, conn1, event.TypePhaseChanged, time.Second)

	before, err := c.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	vote(c, host.PlayerID, 0)
	vote(c, p2.PlayerID, 1)
	waitFor(t, conn1, event.TypeRoundResult, time.Second)

	// The vote-phase deadline fires after all-submitted already advanced
	// the machine. The version it was scheduled under is now stale.
	stale := metricStaleTimers.Value()
	c.post(command{kind: cmdTimer, version: before.PhaseVersion})

	// The snapshot command queues behind the timer fire, so once it
	// returns the fire has been handled.
	after, err := c.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if after.Phase != "reveal" {
		t.Fatalf("phase = %s, want reveal untouched by the stale deadline", after.Phase)
	}
	if got := metricStaleTimers.Value(); got != stale+1 {
		t.Fatalf("stale timer fires = %d, want %d", got, stale+1)
	}
	if n := conn1.count(event.TypeRoundResult); n != 1 {
		t.Fatalf("round_result count = %d, want 1", n)
	}
	if n := conn1.count(event.TypeGameEnded); n != 0 {
		t.Fatal("stale deadline must not end the game")
	}
}

func TestSpectatorActionVisibleButNotGating(t *testing.T) {
	c := newTestRoom(t, 1, 10*time.Second, 50*time.Millisecond, time.Second)
	host, conn1 := join(t, c, "", "ana", game.RolePlayer)
	spec, _ := join(t, c, "", "watcher", game.RoleSpectator)

	c.ForceAdvance(host.PlayerID)
	waitFor(t, conn1, event.TypePhaseChanged, time.Second)

	vote(c, spec.PlayerID, 0)
	waitFor(t, conn1, event.TypeActionApplied, time.Second)
	if n := conn1.count(event.TypeRoundResult); n != 0 {
		t.Fatal("spectator vote must not complete all-submitted")
	}

	vote(c, host.PlayerID, 1)
	result := waitFor(t, conn1, event.TypeRoundResult, time.Second)
	votes := payloadMap(t, result)["votes"].(map[string]any)
	if _, present := votes[spec.PlayerID]; present {
		t.Fatal("spectator vote leaked into official results")
	}
	if _, present := votes[host.PlayerID]; !present {
		t.Fatal("host vote missing from results")
	}
}

func TestHostReconnectWithinGraceKeepsRole(t *testing.T) {
	c := newTestRoom(t, 1, 10*time.Second, 10*time.Second, 2*time.Second)
	host, hostConn := join(t, c, "", "ana", game.RolePlayer)
	_, conn2 := join(t, c, "", "ben", game.RolePlayer)

	c.Disconnect(hostConn.ID())
	waitFor(t, conn2, "player_disconnected", time.Second)
	if c.Info().Phase != "waiting" {
		t.Fatalf("phase = %s; room must not start while host is away", c.Info().Phase)
	}

	res, _ := join(t, c, host.PlayerID, "ana", game.RolePlayer)
	if !res.Reconnected {
		t.Fatal("expected identity reuse within grace")
	}
	if res.PlayerID != host.PlayerID || res.Role != game.RoleHost {
		t.Fatalf("reconnect = %+v, want same identity with host role", res)
	}
}

func TestGraceExpiryPromotesNewHost(t *testing.T) {
	c := newTestRoom(t, 1, 10*time.Second, 10*time.Second, 40*time.Millisecond)
	_, hostConn := join(t, c, "", "ana", game.RolePlayer)
	_, conn2 := join(t, c, "", "ben", game.RolePlayer)

	c.Disconnect(hostConn.ID())
	left := waitFor(t, conn2, event.TypePlayerLeft, time.Second)
	if payloadMap(t, left)["reason"] != "grace_expired" {
		t.Fatalf("left reason = %v, want grace_expired", payloadMap(t, left)["reason"])
	}
	waitFor(t, conn2, "host_changed", time.Second)
}

func TestReconnectReplaysMissedEvents(t *testing.T) {
	c := newTestRoom(t, 1, 10*time.Second, 10*time.Second, 5*time.Second)
	host, conn1 := join(t, c, "", "ana", game.RolePlayer)
	p2, conn2 := join(t, c, "", "ben", game.RolePlayer)

	c.Disconnect(conn2.ID())
	waitFor(t, conn1, "player_disconnected", time.Second)

	c.ForceAdvance(host.PlayerID)
	vote(c, host.PlayerID, 0)
	waitFor(t, conn1, event.TypeActionApplied, time.Second)

	lastSeen := conn2.events()[len(conn2.events())-1].Seq
	res, conn2b := join(t, c, p2.PlayerID, "ben", game.RolePlayer)
	if !res.Reconnected {
		t.Fatal("expected reconnect")
	}
	waitFor(t, conn2b, event.TypeActionApplied, time.Second)

	evs := conn2b.events()
	if evs[0].Seq != lastSeen+1 {
		t.Fatalf("replay starts at %d, want %d", evs[0].Seq, lastSeen+1)
	}
	for i := 1; i < len(evs); i++ {
		if evs[i].Seq != evs[i-1].Seq+1 {
			t.Fatalf("replay has a gap at %d: %+v", i, evs)
		}
	}
}

func TestReconnectBeyondWindowGetsSnapshot(t *testing.T) {
	policy, err := game.New(game.TypeCounties, game.Config{
		Rounds:         1,
		MinPlayers:     1,
		SubmitDeadline: 10 * time.Second,
	}, game.Content{})
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	c := New("WINDOW", game.TypeCounties, policy, Settings{
		ReconnectGrace: 5 * time.Second,
		ReplayWindow:   4,
	}, nil)
	t.Cleanup(c.Stop)

	host, hostConn := join(t, c, "", "ana", game.RolePlayer)
	p2, conn2 := join(t, c, "", "ben", game.RolePlayer)
	c.Disconnect(conn2.ID())
	waitFor(t, hostConn, "player_disconnected", time.Second)

	c.ForceAdvance(host.PlayerID)
	for _, county := range []string{"Cork", "Galway", "Mayo", "Kerry", "Clare"} {
		payload, _ := json.Marshal(map[string]string{"name": county})
		c.SubmitAction(host.PlayerID, game.Action{Type: "name_county", Payload: payload})
	}
	waitFor(t, hostConn, "county_named", time.Second)

	_, conn2b := join(t, c, p2.PlayerID, "ben", game.RolePlayer)
	snap := waitFor(t, conn2b, event.TypeSnapshot, time.Second)
	full := payloadMap(t, snap)
	if full["phase"] != "naming" {
		t.Fatalf("snapshot phase = %v, want naming", full["phase"])
	}
}

func TestExactlyOneGameEnded(t *testing.T) {
	c := newTestRoom(t, 1, 10*time.Second, 10*time.Second, time.Second)
	host, conn1 := join(t, c, "", "ana", game.RolePlayer)
	join(t, c, "", "ben", game.RolePlayer)

	c.ForceAdvance(host.PlayerID) // waiting -> vote
	c.ForceAdvance(host.PlayerID) // vote -> reveal
	c.ForceAdvance(host.PlayerID) // reveal -> ended
	waitFor(t, conn1, event.TypeGameEnded, time.Second)

	// Extra advances against the ended room are rejected, not re-applied.
	c.ForceAdvance(host.PlayerID)
	waitFor(t, conn1, event.TypeActionRejected, time.Second)
	if n := conn1.count(event.TypeGameEnded); n != 1 {
		t.Fatalf("game_ended count = %d, want exactly 1", n)
	}
}

func TestActionRejectionIsPrivateAndHarmless(t *testing.T) {
	c := newTestRoom(t, 1, 10*time.Second, 10*time.Second, time.Second)
	_, conn1 := join(t, c, "", "ana", game.RolePlayer)
	p2, conn2 := join(t, c, "", "ben", game.RolePlayer)

	// Vote during waiting: phase mismatch, sender only.
	vote(c, p2.PlayerID, 0)
	rej := waitFor(t, conn2, event.TypeActionRejected, time.Second)
	if payloadMap(t, rej)["reason"] != "phase_mismatch" {
		t.Fatalf("reason = %v, want phase_mismatch", payloadMap(t, rej)["reason"])
	}
	if n := conn1.count(event.TypeActionRejected); n != 0 {
		t.Fatal("rejection leaked to another player")
	}

	// Non-host force advance: not authorized.
	c.ForceAdvance(p2.PlayerID)
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		found := false
		for _, ev := range conn2.events() {
			if ev.Type == event.TypeActionRejected {
				if payloadMap(t, ev)["reason"] == "not_authorized" {
					found = true
				}
			}
		}
		if found {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if c.Info().Phase != "waiting" {
		t.Fatalf("phase = %s; rejected force must not advance", c.Info().Phase)
	}
}

func TestSnapshotRestoreReproducesBehavior(t *testing.T) {
	c := newTestRoom(t, 1, 10*time.Second, 10*time.Second, time.Second)
	host, conn1 := join(t, c, "", "ana", game.RolePlayer)
	p2, _ := join(t, c, "", "ben", game.RolePlayer)

	c.ForceAdvance(host.PlayerID)
	waitFor(t, conn1, event.TypePhaseChanged, time.Second)
	vote(c, host.PlayerID, 0)
	waitFor(t, conn1, event.TypeActionApplied, time.Second)

	snap, err := c.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	c.Stop()

	policy, err := game.New(game.TypePredict, game.Config{
		Rounds:         1,
		MinPlayers:     2,
		SubmitDeadline: 10 * time.Second,
		RevealDeadline: 10 * time.Second,
	}, game.Content{})
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	restored, err := Restore(snap, policy, Settings{ReconnectGrace: 5 * time.Second, ReplayWindow: 100}, nil)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	t.Cleanup(restored.Stop)

	if restored.Info().Phase != "vote" || restored.Info().Round != 1 {
		t.Fatalf("restored info = %+v, want vote round 1", restored.Info())
	}

	// ben reconnects with the same identity and completes the round; the
	// result must include ana's pre-snapshot vote.
	res, conn2b := join(t, restored, p2.PlayerID, "ben", game.RolePlayer)
	if !res.Reconnected {
		t.Fatal("expected identity restore from snapshot")
	}
	vote(restored, p2.PlayerID, 1)
	result := waitFor(t, conn2b, event.TypeRoundResult, time.Second)
	votes := payloadMap(t, result)["votes"].(map[string]any)
	if len(votes) != 2 {
		t.Fatalf("votes after restore = %v, want both players", votes)
	}
	if _, present := votes[host.PlayerID]; !present {
		t.Fatal("pre-snapshot vote lost in restore")
	}
}

func TestStoppedRoomRefusesConnects(t *testing.T) {
	c := newTestRoom(t, 1, 10*time.Second, 10*time.Second, time.Second)
	c.Stop()
	<-c.Done()

	conn := newFakeConn("late")
	if _, err := c.Connect("", "late", game.RolePlayer, conn, 0); err != ErrRoomGone {
		t.Fatalf("err = %v, want ErrRoomGone", err)
	}
}
