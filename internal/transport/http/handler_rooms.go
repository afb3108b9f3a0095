package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"party-rooms/internal/room"
)

type RoomHandlers struct {
	directory *room.Directory
}

func NewRoomHandlers(directory *room.Directory) *RoomHandlers {
	return &RoomHandlers{directory: directory}
}

// List is the public room directory, newest rooms first.
func (h *RoomHandlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms := h.directory.Rooms()
		sort.Slice(rooms, func(i, j int) bool {
			return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
		})
		writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
	}
}

type createRoomRequest struct {
	Code     string `json:"code"`
	GameType string `json:"game_type"`
}

// Create opens a room ahead of any websocket joining it. An omitted code
// gets a generated one; an existing code returns the live room.
func (h *RoomHandlers) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			metricRoomCreateErrors.Add(1)
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		coord, err := h.directory.GetOrCreate(req.Code, req.GameType)
		if err != nil {
			metricRoomCreateErrors.Add(1)
			switch {
			case errors.Is(err, room.ErrDirectoryFull):
				WriteHTTPError(w, http.StatusServiceUnavailable, "directory_full")
			default:
				WriteHTTPError(w, http.StatusBadRequest, "unknown_game_type")
			}
			return
		}
		metricRoomCreateTotal.Add(1)
		writeJSON(w, http.StatusCreated, coord.Info())
	}
}

func (h *RoomHandlers) Info() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		coord, ok := h.directory.Get(chi.URLParam(r, "code"))
		if !ok {
			WriteHTTPError(w, http.StatusNotFound, "room_not_found")
			return
		}
		writeJSON(w, http.StatusOK, coord.Info())
	}
}

// State serves the full room snapshot for late-joining UIs.
func (h *RoomHandlers) State() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		coord, ok := h.directory.Get(chi.URLParam(r, "code"))
		if !ok {
			WriteHTTPError(w, http.StatusNotFound, "room_not_found")
			return
		}
		snap, err := coord.Snapshot()
		if err != nil {
			WriteHTTPError(w, http.StatusNotFound, "room_not_found")
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}
