package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/botlink-core/internal/schedule"
)

// handleListSchedules returns every known schedule.
func (s *Server) handleListSchedules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"schedules": s.scheduler.All(),
	})
}

// handleCreateSchedule validates and stores a new schedule. The
// persistence-assigned id comes back in the response.
func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var sched schedule.Schedule
	if err := json.NewDecoder(r.Body).Decode(&sched); err != nil {
		writeBadRequest(w, "invalid schedule body")
		return
	}

	created, err := s.scheduler.Add(r.Context(), sched)
	if err != nil {
		if errors.Is(err, schedule.ErrInvalidSchedule) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		writeInternalError(w, "creating schedule failed")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// handleEnableSchedule turns a schedule on.
func (s *Server) handleEnableSchedule(w http.ResponseWriter, r *http.Request) {
	s.setScheduleEnabled(w, r, true)
}

// handleDisableSchedule turns a schedule off.
func (s *Server) handleDisableSchedule(w http.ResponseWriter, r *http.Request) {
	s.setScheduleEnabled(w, r, false)
}

func (s *Server) setScheduleEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeBadRequest(w, "schedule id must be an integer")
		return
	}

	if enabled {
		err = s.scheduler.Enable(r.Context(), id)
	} else {
		err = s.scheduler.Disable(r.Context(), id)
	}
	if err != nil {
		if errors.Is(err, schedule.ErrScheduleNotFound) {
			writeNotFound(w, "schedule not found")
			return
		}
		writeInternalError(w, "updating schedule failed")
		return
	}

	sched, err := s.scheduler.Get(id)
	if err != nil {
		writeInternalError(w, "updating schedule failed")
		return
	}
	writeJSON(w, http.StatusOK, sched)
}
