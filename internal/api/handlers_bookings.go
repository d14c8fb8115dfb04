package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"flexiseat/internal/database"
	"flexiseat/internal/export"
	"flexiseat/internal/metrics"
	"flexiseat/internal/models"
)

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		bookings, err := s.bookings.ListBookings(r.Context(), actorFrom(r))
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})

	case http.MethodPost:
		// Assignments map desk id to the member who gets it.
		var body struct {
			Assignments map[string]int64 `json:"assignments"`
			Dates       []string         `json:"dates"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		dates := make([]time.Time, 0, len(body.Dates))
		for _, raw := range body.Dates {
			d, err := time.Parse(database.DateLayout, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid date format: %s", raw))
				return
			}
			dates = append(dates, d)
		}

		bookings, err := s.bookings.CreateAssignments(r.Context(), actorFrom(r), body.Assignments, dates)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"bookings": bookings})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleBookingByID(w http.ResponseWriter, r *http.Request) {
	idStr, rest := pathID(r.URL.Path, "/api/bookings/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	switch rest {
	case "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		booking, err := s.bookings.GetBooking(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)

	case "decision":
		s.handleDecision(w, r, id)

	case "revoke":
		s.handleRevoke(w, r, id)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) handleDecision(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		Accept bool `json:"accept"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := s.bookings.Decide(r.Context(), actorFrom(r), id, body.Accept)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if body.Accept {
		metrics.IncDecision(models.AuditAccepted)
	} else {
		metrics.IncDecision(models.AuditRejected)
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleRevoke(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.bookings.Revoke(r.Context(), actorFrom(r), id, body.Reason); err != nil {
		s.writeServiceError(w, err)
		return
	}
	metrics.IncDecision(models.AuditRevoked)
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleOccupancy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	level, err := strconv.Atoi(r.URL.Query().Get("level"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "level is required")
		return
	}
	date, err := time.Parse(database.DateLayout, r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	occupancy, err := s.bookings.ComputeOccupancy(r.Context(), level, date)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"occupancy": occupancy})
}

func (s *HTTPServer) handleDesks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if levelStr := r.URL.Query().Get("level"); levelStr != "" {
		level, err := strconv.Atoi(levelStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid level")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"desks": s.db.DesksByLevel(level)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"desks": s.db.GetDesks()})
}

func (s *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats, err := s.bookings.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleExport streams the ledger as an xlsx workbook. Defaults to the
// current week when no range is given.
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	now := time.Now()
	start := now.AddDate(0, 0, -int(now.Weekday()))
	end := start.AddDate(0, 0, 6)

	if raw := r.URL.Query().Get("start"); raw != "" {
		d, err := time.Parse(database.DateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start date")
			return
		}
		start = d
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		d, err := time.Parse(database.DateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end date")
			return
		}
		end = d
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end date before start date")
		return
	}

	bookings, err := s.bookings.ListBookings(r.Context(), actorFrom(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	f, err := export.Workbook(bookings, s.db.GetDesks(), start, end)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="bookings.xlsx"`)
	if err := f.Write(w); err != nil {
		s.logger.Error().Err(err).Msg("failed to stream export")
	}
}
