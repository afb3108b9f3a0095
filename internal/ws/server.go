package ws

import (
	"encoding/json"
	"expvar"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"party-rooms/internal/game"
	"party-rooms/internal/room"
	"party-rooms/internal/store"
)

var (
	metricConnectsTotal   = expvar.NewInt("ws_connects_total")
	metricConnectsActive  = expvar.NewInt("ws_connections_active")
	metricFramesDropped   = expvar.NewInt("ws_frames_dropped_total")
	metricBadClientFrames = expvar.NewInt("ws_bad_frames_total")
)

const writeDeadline = 10 * time.Second

// Client is one websocket binding into a room. The send channel decouples
// the room loop from the socket; a client that cannot drain its buffer is
// killed rather than allowed to stall the room.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	dead     chan struct{}
	killOnce sync.Once
}

func newClient(conn *websocket.Conn, buffer int) *Client {
	if buffer <= 0 {
		buffer = 64
	}
	return &Client{
		id:   store.NewID(),
		conn: conn,
		send: make(chan []byte, buffer),
		dead: make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) Send(data []byte) bool {
	select {
	case <-c.dead:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		metricFramesDropped.Add(1)
		c.kill()
		return false
	}
}

func (c *Client) Close() { c.kill() }

func (c *Client) kill() {
	c.killOnce.Do(func() { close(c.dead) })
}

func (c *Client) writeLoop() {
	defer func() { _ = c.conn.Close() }()
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.kill()
				return
			}
		case <-c.dead:
			return
		}
	}
}

// Server upgrades websocket requests and binds them into room coordinators.
type Server struct {
	directory  *room.Directory
	upgrader   websocket.Upgrader
	sendBuffer int
}

func NewServer(directory *room.Directory, sendBuffer int) *Server {
	return &Server{
		directory:  directory,
		upgrader:   websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		sendBuffer: sendBuffer,
	}
}

// HandleWS joins a participant to a room. Identity and room routing travel
// in the query string so the first websocket frame the client ever sees is
// already room traffic: ?room=CODE&game=checkbox&name=ana&player=ID&last_seq=N.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("name")
	if name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}
	gameType := q.Get("game")
	if gameType == "" {
		gameType = game.TypeCheckbox
	}
	roleHint := game.RolePlayer
	if q.Get("role") == string(game.RoleSpectator) {
		roleHint = game.RoleSpectator
	}
	lastSeq, _ := strconv.ParseInt(q.Get("last_seq"), 10, 64)

	coord, err := s.directory.GetOrCreate(q.Get("room"), gameType)
	if err != nil {
		status := http.StatusBadRequest
		if err == room.ErrDirectoryFull {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := newClient(conn, s.sendBuffer)
	metricConnectsTotal.Add(1)
	metricConnectsActive.Add(1)
	go client.writeLoop()

	res, err := coord.Connect(q.Get("player"), name, roleHint, client, lastSeq)
	if err != nil {
		frame, _ := json.Marshal(ErrorFrame{Type: "error", Reason: "room_gone"})
		client.Send(frame)
		client.Close()
		metricConnectsActive.Add(-1)
		return
	}
	welcome, _ := json.Marshal(Welcome{Type: "welcome", Room: coord.Code(), ConnectResult: res})
	client.Send(welcome)

	log.Info().
		Str("room_code", coord.Code()).
		Str("player_id", res.PlayerID).
		Str("role", string(res.Role)).
		Bool("reconnected", res.Reconnected).
		Msg("ws connected")

	s.readLoop(client, coord, res.PlayerID)
}

func (s *Server) readLoop(c *Client, coord *room.Coordinator, playerID string) {
	defer func() {
		coord.Disconnect(c.id)
		c.kill()
		metricConnectsActive.Add(-1)
		log.Info().Str("room_code", coord.Code()).Str("player_id", playerID).Msg("ws disconnected")
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame ClientMessage
		if err := json.Unmarshal(msg, &frame); err != nil || frame.Type == "" {
			metricBadClientFrames.Add(1)
			continue
		}
		switch frame.Type {
		case "advance":
			coord.ForceAdvance(playerID)
		case "leave":
			coord.Leave(playerID)
			return
		default:
			coord.SubmitAction(playerID, game.Action{Type: frame.Type, Payload: frame.Payload})
		}
	}
}
