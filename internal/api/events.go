package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-frontdesk/internal/events"
)

const (
	streamBuffer    = 32
	streamHeartbeat = 15 * time.Second
)

// streamEventsHandler pushes committed events as server-sent events. Screens
// that used to poll every second subscribe here instead.
func streamEventsHandler(hub *events.Hub, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer cannot flush")
			return
		}

		var filter events.Filter
		if id := r.URL.Query().Get("appointment_id"); id != "" {
			filter = events.ForAppointment(id)
		}

		ch, cancel := hub.Subscribe(filter, streamBuffer)
		defer cancel()

		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "retry: 1000\n\n")
		flusher.Flush()

		heartbeat := time.NewTicker(streamHeartbeat)
		defer heartbeat.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-heartbeat.C:
				fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
			case ev, open := <-ch:
				if !open {
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					log.Error().Err(err).Str("event_id", ev.ID).Msg("encode stream event")
					continue
				}
				fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, data)
				flusher.Flush()
			}
		}
	}
}

func eventHistoryHandler(history events.History) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		evs, err := history.ListByAppointment(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "history_unavailable", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, evs)
	}
}
