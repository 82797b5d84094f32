package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-frontdesk/internal/appointment"
)

func bookAppointmentHandler(s *appointment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if !decodeRequest(w, r, &req) {
			return
		}

		appt, err := s.Book(appointment.BookRequest{
			Name:     req.Name,
			Phone:    req.Phone,
			Date:     req.Date,
			TimeSlot: req.TimeSlot,
			Reason:   req.Reason,
		})
		if err != nil {
			handleStoreError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, appt)
	}
}

func availableSlotsHandler(s *appointment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			writeError(w, http.StatusBadRequest, "invalid_input", "date query parameter is required")
			return
		}

		slots, err := s.AvailableSlots(date)
		if err != nil {
			handleStoreError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, slots)
	}
}

// listAppointmentsHandler filters by ?phone= when given, otherwise ?date=.
func listAppointmentsHandler(s *appointment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("phone") != "":
			writeJSON(w, http.StatusOK, s.ByPhone(q.Get("phone")))
		case q.Get("date") != "":
			writeJSON(w, http.StatusOK, s.ByDate(q.Get("date")))
		default:
			writeError(w, http.StatusBadRequest, "invalid_input", "date or phone query parameter is required")
		}
	}
}

func todayAppointmentsHandler(s *appointment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Today())
	}
}

func todaySummaryHandler(s *appointment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.TodaySummary())
	}
}

func getAppointmentHandler(s *appointment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, err := s.Get(chi.URLParam(r, "id"))
		if err != nil {
			handleStoreError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appt)
	}
}

func appointmentTransitionHandler(apply func(id string) (*appointment.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req IDRequest
		if !decodeRequest(w, r, &req) {
			return
		}

		appt, err := apply(req.ID)
		if err != nil {
			handleStoreError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appt)
	}
}

func completeAppointmentHandler(s *appointment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CompleteAppointmentRequest
		if !decodeRequest(w, r, &req) {
			return
		}

		appt, err := s.Complete(req.ID, req.Notes)
		if err != nil {
			handleStoreError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appt)
	}
}

func getSettingsHandler(s *appointment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Settings())
	}
}

func updateSettingsHandler(s *appointment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch appointment.SettingsPatch
		if err := decodeJSON(r.Body, &patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON: "+err.Error())
			return
		}

		settings, err := s.UpdateSettings(patch)
		if err != nil {
			handleStoreError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, settings)
	}
}
