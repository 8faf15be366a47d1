package api

import (
	"net/http"

	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/queue"
)

func enqueueHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EnqueueRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		patientID, ok := parseUUIDField(w, "patient_id", req.PatientID)
		if !ok {
			return
		}
		checkInID, ok := parseUUIDField(w, "check_in_id", req.CheckInID)
		if !ok {
			return
		}
		doctorID, ok := parseUUIDField(w, "doctor_id", req.DoctorID)
		if !ok {
			return
		}

		entry, err := svc.Enqueue(r.Context(), queue.EnqueueInput{
			PatientID: patientID,
			CheckInID: checkInID,
			DoctorID:  doctorID,
			Priority:  queue.Priority(req.Priority),
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toQueueEntryResponse(*entry))
	}
}

func checkInHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CheckInRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		patientID, ok := parseUUIDField(w, "patient_id", req.PatientID)
		if !ok {
			return
		}
		doctorID, ok := parseUUIDField(w, "doctor_id", req.DoctorID)
		if !ok {
			return
		}
		in := queue.CheckInInput{
			PatientID: patientID,
			DoctorID:  doctorID,
			Priority:  queue.Priority(req.Priority),
		}
		if req.AppointmentID != nil {
			apptID, ok := parseUUIDField(w, "appointment_id", *req.AppointmentID)
			if !ok {
				return
			}
			in.AppointmentID = &apptID
		}

		res, err := svc.CheckIn(r.Context(), in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, CheckInResponse{
			CheckInID:     res.CheckIn.ID,
			AppointmentID: res.CheckIn.AppointmentID,
			CheckedInAt:   res.CheckIn.CheckedInAt,
			Entry:         toQueueEntryResponse(res.Entry),
		})
	}
}

func activeQueueHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := optionalUUIDQuery(w, r, "doctor_id")
		if !ok {
			return
		}

		views, err := svc.ActiveQueue(r.Context(), doctorID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := make([]QueueEntryResponse, 0, len(views))
		for _, v := range views {
			resp = append(resp, toQueueViewResponse(v))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getQueueEntryHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(w, r, "id")
		if !ok {
			return
		}

		v, err := svc.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toQueueViewResponse(*v))
	}
}

func advanceQueueEntryHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(w, r, "id")
		if !ok {
			return
		}

		var req StatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		entry, err := svc.Advance(r.Context(), id, queue.Status(req.Status))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toQueueEntryResponse(*entry))
	}
}

func removeQueueEntryHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(w, r, "id")
		if !ok {
			return
		}
		if err := svc.Remove(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func completeConsultationHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(w, r, "id")
		if !ok {
			return
		}
		if err := svc.CompleteConsultation(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
