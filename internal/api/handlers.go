package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-frontdesk/internal/domain"
	"github.com/hackgods/clinic-frontdesk/internal/queue"
)

func handleStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, domain.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", err.Error())
	case errors.Is(err, domain.ErrClinicClosed):
		writeError(w, http.StatusConflict, "clinic_closed", err.Error())
	case errors.Is(err, domain.ErrInvalidSettings):
		writeError(w, http.StatusUnprocessableEntity, "invalid_settings", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func openClinicHandler(q *queue.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, q.OpenClinic())
	}
}

func closeClinicHandler(q *queue.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, q.CloseClinic())
	}
}

func bookTokenHandler(q *queue.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookTokenRequest
		if !decodeRequest(w, r, &req) {
			return
		}

		tok, err := q.BookToken(req.Name, req.Phone)
		if err != nil {
			handleStoreError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, tok)
	}
}

// callNextHandler answers 204 when nobody is waiting.
func callNextHandler(q *queue.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, err := q.CallNext()
		if err != nil {
			handleStoreError(w, err)
			return
		}
		if tok == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, tok)
	}
}

func completeCurrentHandler(q *queue.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, err := q.CompleteCurrent()
		if err != nil {
			handleStoreError(w, err)
			return
		}
		if tok == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, tok)
	}
}

func tokenTransitionHandler(apply func(id string) (*queue.Token, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req IDRequest
		if !decodeRequest(w, r, &req) {
			return
		}

		tok, err := apply(req.ID)
		if err != nil {
			handleStoreError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, tok)
	}
}

func queueStatusHandler(q *queue.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, q.Status())
	}
}

func queueSummaryHandler(q *queue.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, q.Summary())
	}
}

func listTokensHandler(q *queue.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, q.List())
	}
}

func getTokenHandler(q *queue.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, position, wait, err := q.Detail(chi.URLParam(r, "id"))
		if err != nil {
			handleStoreError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, TokenDetailResponse{
			Token:           *tok,
			Position:        position,
			LiveWaitMinutes: wait,
		})
	}
}

func resetQueueHandler(q *queue.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q.ResetDay()
		writeJSON(w, http.StatusOK, q.Status())
	}
}
