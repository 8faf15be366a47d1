package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/apperr"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/appointment"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/calendar"
)

func listDoctorsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := svc.ListDoctors(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := make([]DoctorResponse, 0, len(doctors))
		for _, d := range doctors {
			resp = append(resp, DoctorResponse{ID: d.ID, Name: d.Name, Specialty: d.Specialty})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func doctorAvailabilityHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := urlUUID(w, r, "id")
		if !ok {
			return
		}
		date, ok := parseDate(w, "date", r.URL.Query().Get("date"), svc.Location())
		if !ok {
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), doctorID, date)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, AvailabilityResponse{
			DoctorID: doctorID,
			Date:     date.Format(time.DateOnly),
			Slots:    slots,
		})
	}
}

func allDoctorsAvailabilityHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, ok := parseDate(w, "date", r.URL.Query().Get("date"), svc.Location())
		if !ok {
			return
		}

		all, err := svc.AvailableSlotsAllDoctors(r.Context(), date)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := AllDoctorsAvailabilityResponse{
			Date:    date.Format(time.DateOnly),
			Doctors: make([]AvailabilityResponse, 0, len(all)),
		}
		for _, ds := range all {
			resp.Doctors = append(resp.Doctors, AvailabilityResponse{
				DoctorID:   ds.DoctorID,
				DoctorName: ds.DoctorName,
				Date:       resp.Date,
				Slots:      ds.Slots,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createBlockHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := urlUUID(w, r, "id")
		if !ok {
			return
		}

		var req CreateBlockRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		date, ok := parseDate(w, "date", req.Date, svc.Location())
		if !ok {
			return
		}

		in := appointment.BlockInput{
			DoctorID: doctorID,
			Date:     date,
			Kind:     appointment.BlockKind(req.Kind),
			Reason:   req.Reason,
		}
		if in.Kind == appointment.BlockTimeSlot {
			var err error
			if in.Start, err = appointment.ParseClock(req.StartTime); err != nil {
				writeServiceError(w, apperr.Validation("start_time", "must be formatted HH:MM"))
				return
			}
			if in.End, err = appointment.ParseClock(req.EndTime); err != nil {
				writeServiceError(w, apperr.Validation("end_time", "must be formatted HH:MM"))
				return
			}
		}

		block, err := svc.CreateBlock(r.Context(), in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBlockResponse(*block))
	}
}

func listBlocksHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := urlUUID(w, r, "id")
		if !ok {
			return
		}
		date, ok := parseDate(w, "date", r.URL.Query().Get("date"), svc.Location())
		if !ok {
			return
		}

		blocks, err := svc.ListBlocks(r.Context(), doctorID, date)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := make([]BlockResponse, 0, len(blocks))
		for _, b := range blocks {
			resp = append(resp, toBlockResponse(b))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func deleteBlockHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(w, r, "id")
		if !ok {
			return
		}
		if err := svc.DeleteBlock(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func calendarDayHandler(loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, ok := parseDate(w, "date", chi.URLParam(r, "date"), loc)
		if !ok {
			return
		}

		hours := calendar.IsOpen(date)
		writeJSON(w, http.StatusOK, CalendarDayResponse{
			Date:      date.Format(time.DateOnly),
			Open:      hours.Open,
			StartHour: hours.StartHour,
			EndHour:   hours.EndHour,
			Holiday:   hours.Holiday,
		})
	}
}

func holidaysHandler(loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		year, err := strconv.Atoi(r.URL.Query().Get("year"))
		if err != nil || year < 1583 || year > 9999 {
			writeServiceError(w, apperr.Validation("year", "must be a Gregorian year"))
			return
		}

		holidays := calendar.Holidays(year, loc)
		resp := make([]HolidayResponse, 0, len(holidays))
		for _, h := range holidays {
			resp = append(resp, HolidayResponse{Name: h.Name, Date: h.Date.Format(time.DateOnly)})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
