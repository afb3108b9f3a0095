package httptransport

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"party-rooms/internal/store"
)

// ArchiveHandlers serves finished game results out of the store. The server
// runs without a database too; then these endpoints answer 503.
type ArchiveHandlers struct {
	store *store.Store
}

func NewArchiveHandlers(st *store.Store) *ArchiveHandlers {
	return &ArchiveHandlers{store: st}
}

func (h *ArchiveHandlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.store == nil {
			WriteHTTPError(w, http.StatusServiceUnavailable, "archive_disabled")
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		games, err := h.store.ListFinishedGames(r.Context(), r.URL.Query().Get("room"), limit)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"games": games})
	}
}

func (h *ArchiveHandlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.store == nil {
			WriteHTTPError(w, http.StatusServiceUnavailable, "archive_disabled")
			return
		}
		g, err := h.store.GetFinishedGame(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				WriteHTTPError(w, http.StatusNotFound, "not_found")
				return
			}
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

// Health reports process liveness, plus database reachability when a store
// is configured.
func Health(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if st != nil {
			if err := st.Ping(r.Context()); err != nil {
				WriteHTTPError(w, http.StatusServiceUnavailable, "db_unreachable")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}
