package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"party-rooms/internal/event"
	"party-rooms/internal/game"
	"party-rooms/internal/room"
)

func newTestServer(t *testing.T) (*httptest.Server, *room.Directory) {
	t.Helper()
	directory := room.NewDirectory(8, room.Settings{
		ReconnectGrace: 2 * time.Second,
		ReplayWindow:   100,
	}, time.Minute, game.Config{
		Rounds:         1,
		MinPlayers:     1,
		SubmitDeadline: 10 * time.Second,
		RevealDeadline: 10 * time.Second,
	}, game.Content{}, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewServer(directory, 64).HandleWS)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, directory
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, query), nil)
	if err != nil {
		t.Fatalf("dial %s: %v", query, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readWelcome(t *testing.T, conn *websocket.Conn) Welcome {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &base); err != nil {
			t.Fatalf("bad frame %s: %v", msg, err)
		}
		if base.Type == "welcome" {
			var w Welcome
			if err := json.Unmarshal(msg, &w); err != nil {
				t.Fatalf("bad welcome %s: %v", msg, err)
			}
			return w
		}
	}
	t.Fatal("no welcome frame")
	return Welcome{}
}

func readEvent(t *testing.T, conn *websocket.Conn, typ string) event.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read waiting for %s: %v", typ, err)
		}
		var ev event.Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			continue
		}
		if ev.Type == typ {
			return ev
		}
	}
	t.Fatalf("no %s frame", typ)
	return event.Event{}
}

func send(t *testing.T, conn *websocket.Conn, msg ClientMessage) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", msg.Type, err)
	}
}

func TestHandleWSRejectsBadRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/ws?room=ABCDEF&game=checkbox")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing name: status %d, want 400", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/ws?room=ABCDEF&game=roulette&name=ana")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown game: status %d, want 400", resp.StatusCode)
	}
}

func TestHandleWSPlaysARound(t *testing.T) {
	srv, directory := newTestServer(t)

	host := dial(t, srv, "room=PARTY1&game=predict&name=ana")
	hostWelcome := readWelcome(t, host)
	if hostWelcome.Role != game.RoleHost || hostWelcome.Room != "PARTY1" {
		t.Fatalf("welcome = %+v, want host of PARTY1", hostWelcome)
	}

	guest := dial(t, srv, "room=PARTY1&game=predict&name=ben")
	guestWelcome := readWelcome(t, guest)
	if guestWelcome.Role != game.RolePlayer {
		t.Fatalf("welcome = %+v, want plain player", guestWelcome)
	}

	send(t, host, ClientMessage{Type: "advance"})
	readEvent(t, guest, event.TypePhaseChanged)

	vote := json.RawMessage(`{"choice":1}`)
	send(t, host, ClientMessage{Type: "vote", Payload: vote})
	send(t, guest, ClientMessage{Type: "vote", Payload: vote})
	readEvent(t, guest, event.TypeRoundResult)

	coord, ok := directory.Get("PARTY1")
	if !ok {
		t.Fatal("room missing from directory")
	}
	if coord.Info().Players != 2 {
		t.Fatalf("players = %d, want 2", coord.Info().Players)
	}
}

func TestHandleWSReconnectReplays(t *testing.T) {
	srv, _ := newTestServer(t)

	host := dial(t, srv, "room=PARTY2&game=counties&name=ana")
	readWelcome(t, host)

	guest := dial(t, srv, "room=PARTY2&game=counties&name=ben")
	guestWelcome := readWelcome(t, guest)
	readEvent(t, host, event.TypePlayerJoined)
	_ = guest.Close()

	send(t, host, ClientMessage{Type: "advance"})
	send(t, host, ClientMessage{Type: "name_county", Payload: json.RawMessage(`{"name":"Cork"}`)})
	readEvent(t, host, "county_named")

	back := dial(t, srv, "room=PARTY2&game=counties&name=ben&player="+guestWelcome.PlayerID)
	backWelcome := readWelcome(t, back)
	if !backWelcome.Reconnected || backWelcome.PlayerID != guestWelcome.PlayerID {
		t.Fatalf("welcome = %+v, want reconnect as %s", backWelcome, guestWelcome.PlayerID)
	}
	readEvent(t, back, "county_named")
}

func TestHandleWSSpectatorRole(t *testing.T) {
	srv, _ := newTestServer(t)

	player := dial(t, srv, "room=PARTY3&game=checkbox&name=ana")
	readWelcome(t, player)

	watcher := dial(t, srv, "room=PARTY3&game=checkbox&name=eye&role=spectator")
	w := readWelcome(t, watcher)
	if w.Role != game.RoleSpectator {
		t.Fatalf("role = %s, want spectator", w.Role)
	}
}
