package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/localbook/booking/internal/booking"
)

const dateLayout = "2006-01-02"

func createBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		businessID, err := uuid.Parse(req.BusinessID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_business_id", "business_id must be a valid UUID")
			return
		}

		serviceID, err := uuid.Parse(req.ServiceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
			return
		}

		clientID, err := uuid.Parse(req.ClientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_client_id", "client_id must be a valid UUID")
			return
		}

		startTime, err := time.Parse(time.RFC3339, req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time must be RFC 3339")
			return
		}

		appt, err := svc.Reserve(r.Context(), booking.ReserveInput{
			BusinessID: businessID,
			ServiceID:  serviceID,
			ClientID:   clientID,
			StartTime:  startTime,
			Notes:      req.Notes,
		})
		if err != nil {
			handleReserveError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toBookingResponse(appt))
	}
}

func getBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			if errors.Is(err, booking.ErrAppointmentNotFound) {
				writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(appt))
	}
}

func updateBookingStatusHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		var req UpdateBookingStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		to := booking.Status(req.Status)
		if to != booking.StatusCompleted && to != booking.StatusCancelled {
			writeError(w, http.StatusBadRequest, "invalid_status", "status must be completed or cancelled")
			return
		}

		appt, err := svc.Transition(r.Context(), id, to)
		if err != nil {
			switch {
			case errors.Is(err, booking.ErrAppointmentNotFound):
				writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
			case errors.Is(err, booking.ErrInvalidTransition):
				writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(appt))
	}
}

func bookedSlotsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		businessID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_business_id", "id must be a valid UUID")
			return
		}

		day, ok := parseDateParam(w, r)
		if !ok {
			return
		}

		slots, err := svc.BookedSlots(r.Context(), businessID, day)
		if err != nil {
			if errors.Is(err, booking.ErrBusinessNotFound) {
				writeError(w, http.StatusNotFound, "business_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]BookedSlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, BookedSlotResponse{
				AppointmentID:   s.AppointmentID,
				StartTime:       s.StartTime,
				DurationMinutes: s.DurationMinutes,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func freeSlotsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		businessID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_business_id", "id must be a valid UUID")
			return
		}

		serviceID, err := uuid.Parse(r.URL.Query().Get("service_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
			return
		}

		day, ok := parseDateParam(w, r)
		if !ok {
			return
		}

		starts, err := svc.FreeSlots(r.Context(), businessID, serviceID, day)
		if err != nil {
			switch {
			case errors.Is(err, booking.ErrBusinessNotFound):
				writeError(w, http.StatusNotFound, "business_not_found", err.Error())
			case errors.Is(err, booking.ErrServiceNotFound):
				writeError(w, http.StatusNotFound, "service_not_found", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		writeJSON(w, http.StatusOK, FreeSlotsResponse{
			Date:           day.Format(dateLayout),
			ServiceID:      serviceID,
			FreeSlotStarts: starts,
		})
	}
}

func handleReserveError(w http.ResponseWriter, err error) {
	var conflict *booking.ConflictError

	switch {
	case errors.Is(err, booking.ErrClientNotFound):
		writeError(w, http.StatusNotFound, "client_not_found", err.Error())
	case errors.Is(err, booking.ErrBusinessNotFound):
		writeError(w, http.StatusNotFound, "business_not_found", err.Error())
	case errors.Is(err, booking.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service_not_found", err.Error())
	case errors.Is(err, booking.ErrInvalidAlignment):
		writeError(w, http.StatusBadRequest, "start_time_misaligned", err.Error())
	case errors.Is(err, booking.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, "invalid_duration", err.Error())
	case errors.Is(err, booking.ErrCrossesMidnight):
		writeError(w, http.StatusBadRequest, "crosses_midnight", err.Error())
	case errors.As(err, &conflict):
		resp := ErrorResponse{Error: "booking_conflict", Details: err.Error()}
		if conflict.ConflictingID != uuid.Nil {
			id := conflict.ConflictingID
			resp.ConflictingAppointmentID = &id
		}
		writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, booking.ErrBookingConflict):
		writeError(w, http.StatusConflict, "booking_conflict", err.Error())
	case errors.Is(err, booking.ErrBusinessBusy):
		writeError(w, http.StatusConflict, "business_busy", "business calendar is busy, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func parseDateParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	day, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return day, true
}

func toBookingResponse(a *booking.Appointment) BookingResponse {
	return BookingResponse{
		ID:              a.ID,
		BusinessID:      a.BusinessID,
		ServiceID:       a.ServiceID,
		ClientID:        a.ClientID,
		StartTime:       a.StartTime,
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		Notes:           a.Notes,
	}
}
