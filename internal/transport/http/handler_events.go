package httptransport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"party-rooms/internal/event"
	"party-rooms/internal/room"
)

var ssePingInterval = 15 * time.Second

// EventsSSE streams a room's event log as server-sent events. Last-Event-ID
// resumes from the given sequence; a client behind the replay window gets a
// snapshot event first and the live tail after it.
func EventsSSE(directory *room.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		coord, ok := directory.Get(chi.URLParam(r, "code"))
		if !ok {
			WriteHTTPError(w, http.StatusNotFound, "room_not_found")
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		metricSSEConnectionsTotal.Add(1)
		metricSSEConnectionsActive.Add(1)
		defer metricSSEConnectionsActive.Add(-1)

		lastSeq, _ := strconv.ParseInt(r.Header.Get("Last-Event-ID"), 10, 64)
		evlog := coord.Events()

		// Subscribe before replaying so nothing falls between the backlog
		// and the live tail. Duplicates are filtered by sequence below.
		ch := evlog.Subscribe()
		defer evlog.Unsubscribe(ch)

		cursor := lastSeq
		backlog, within := evlog.ReplayAfter(lastSeq)
		if !within {
			snap, err := coord.Snapshot()
			if err != nil {
				return
			}
			if err := writeSSE(w, event.Event{
				Seq:      snap.Seq,
				Type:     event.TypeSnapshot,
				Room:     snap.Code,
				ServerTS: time.Now().UnixMilli(),
				Payload:  snap,
			}); err != nil {
				return
			}
			cursor = snap.Seq
		}
		for _, ev := range backlog {
			if err := writeSSE(w, ev); err != nil {
				return
			}
			cursor = ev.Seq
		}
		flusher.Flush()

		ticker := time.NewTicker(ssePingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if ev.Seq <= cursor {
					continue
				}
				cursor = ev.Seq
				if err := writeSSE(w, ev); err != nil {
					return
				}
				flusher.Flush()
			case <-ticker.C:
				if _, err := fmt.Fprintf(w, "event: ping\ndata: {\"ts\":%d}\n\n", time.Now().UnixMilli()); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, ev event.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if ev.Seq > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", ev.Seq); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", ev.Type); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
