package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"truckplan/internal/calendar"
	"truckplan/internal/dragdrop"
	"truckplan/internal/export"
	"truckplan/internal/model"
	"truckplan/internal/planner"
)

// RangeResponse is the response for GET /api/planner/range.
type RangeResponse struct {
	View  planner.ViewState `json:"view"`
	Start string            `json:"start"`
	End   string            `json:"end"`
	Days  []string          `json:"days"`
}

// DriverIDsRequest is the body for PUT /api/planner/driver-order and
// PUT /api/planner/hidden-drivers.
type DriverIDsRequest struct {
	DriverIDs []int64 `json:"driverIds"`
}

// DropRequest is the body for POST /api/planner/drag/drop.
type DropRequest struct {
	TargetDriverID int64 `json:"targetDriverId"`
}

// ActiveDragResponse is the response for GET /api/planner/drag.
type ActiveDragResponse struct {
	Active  bool              `json:"active"`
	Gesture *dragdrop.Gesture `json:"gesture,omitempty"`
}

// viewFromQuery reads ?view=&anchor=&start=&end=&nav= into a view state.
// nav applies one navigation step after the state is built.
func (s *HTTPServer) viewFromQuery(r *http.Request) (planner.ViewState, error) {
	q := r.URL.Query()
	today := s.svc.Today()

	mode := s.defaultView
	if v := q.Get("view"); v != "" {
		m, err := calendar.ParseViewMode(v)
		if err != nil {
			return planner.ViewState{}, err
		}
		mode = m
	}

	view := planner.NewViewState(mode, today)
	if a := q.Get("anchor"); a != "" {
		view.Anchor = a
	}
	if mode == calendar.ViewCustom {
		start, end := q.Get("start"), q.Get("end")
		if start != "" || end != "" {
			view.CustomStart, view.CustomEnd = start, end
		}
	}
	if err := view.Validate(); err != nil {
		return planner.ViewState{}, err
	}
	if mode == calendar.ViewCustom && view.CustomStart > view.CustomEnd {
		return planner.ViewState{}, fmt.Errorf("start must be before or equal to end")
	}

	switch nav := calendar.Direction(q.Get("nav")); nav {
	case "":
	case calendar.DirPrev, calendar.DirNext, calendar.DirToday:
		view = planner.Reduce(view, planner.Action{Kind: planner.ActionNavigate, Direction: nav}, today)
	default:
		return planner.ViewState{}, fmt.Errorf("unknown nav %q", nav)
	}
	return view, nil
}

// handleRange returns the visible days for a view without fetching data.
// GET /api/planner/range
func (s *HTTPServer) handleRange(w http.ResponseWriter, r *http.Request) {
	view, err := s.viewFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	days := view.Days(s.svc.Today())
	vr := calendar.VisibleRange(days)
	writeJSON(w, http.StatusOK, RangeResponse{
		View:  view,
		Start: vr.Start.Format(model.DateLayout),
		End:   vr.End.Format(model.DateLayout),
		Days:  calendar.Format(days),
	})
}

// handleBoard returns the laid out board.
// GET /api/planner/board
func (s *HTTPServer) handleBoard(w http.ResponseWriter, r *http.Request) {
	view, err := s.viewFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	board, err := s.svc.Board(r.Context(), profileOf(r), view)
	if err != nil {
		s.logger.Warn().Err(err).Msg("board fetch failed")
		writeRetryable(w, http.StatusBadGateway, "planner data unavailable")
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// handleExport streams the board as an xlsx workbook.
// GET /api/planner/export.xlsx
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	view, err := s.viewFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	board, err := s.svc.Board(r.Context(), profileOf(r), view)
	if err != nil {
		s.logger.Warn().Err(err).Msg("board fetch failed")
		writeRetryable(w, http.StatusBadGateway, "planner data unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "planner_"+board.Start+".xlsx"))
	if err := export.WriteBoard(w, board); err != nil {
		s.logger.Error().Err(err).Msg("export failed")
	}
}

// GET /api/planner/driver-order
func (s *HTTPServer) handleGetDriverOrder(w http.ResponseWriter, r *http.Request) {
	ids, err := s.svc.DriverOrder(r.Context(), profileOf(r))
	if err != nil {
		writeRetryable(w, http.StatusServiceUnavailable, "driver order unavailable")
		return
	}
	writeJSON(w, http.StatusOK, DriverIDsRequest{DriverIDs: nonNil(ids)})
}

// PUT /api/planner/driver-order
func (s *HTTPServer) handlePutDriverOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeDriverIDs(w, r)
	if !ok {
		return
	}
	if err := s.svc.SetDriverOrder(r.Context(), profileOf(r), req.DriverIDs); err != nil {
		s.logger.Error().Err(err).Msg("save driver order failed")
		writeRetryable(w, http.StatusServiceUnavailable, "driver order not saved")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// GET /api/planner/hidden-drivers
func (s *HTTPServer) handleGetHiddenDrivers(w http.ResponseWriter, r *http.Request) {
	ids, err := s.svc.HiddenDrivers(r.Context(), profileOf(r))
	if err != nil {
		writeRetryable(w, http.StatusServiceUnavailable, "hidden drivers unavailable")
		return
	}
	writeJSON(w, http.StatusOK, DriverIDsRequest{DriverIDs: nonNil(ids)})
}

// PUT /api/planner/hidden-drivers
func (s *HTTPServer) handlePutHiddenDrivers(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeDriverIDs(w, r)
	if !ok {
		return
	}
	if err := s.svc.SetHiddenDrivers(r.Context(), profileOf(r), req.DriverIDs); err != nil {
		s.logger.Error().Err(err).Msg("save hidden drivers failed")
		writeRetryable(w, http.StatusServiceUnavailable, "hidden drivers not saved")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// GET /api/planner/drag
func (s *HTTPServer) handleActiveDrag(w http.ResponseWriter, r *http.Request) {
	g, ok := s.svc.ActiveDrag(profileOf(r))
	resp := ActiveDragResponse{Active: ok}
	if ok {
		resp.Gesture = &g
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /api/planner/drag/begin
func (s *HTTPServer) handleBeginDrag(w http.ResponseWriter, r *http.Request) {
	var p dragdrop.Payload
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	g, err := s.svc.BeginDrag(profileOf(r), p)
	if err != nil {
		s.writeDragError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// POST /api/planner/drag/drop
func (s *HTTPServer) handleDrop(w http.ResponseWriter, r *http.Request) {
	var req DropRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	out, err := s.svc.Drop(r.Context(), profileOf(r), req.TargetDriverID)
	if err != nil {
		s.writeDragError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /api/planner/drag/cancel
func (s *HTTPServer) handleCancelDrag(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.CancelDrag(profileOf(r))
	if err != nil {
		s.writeDragError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) writeDragError(w http.ResponseWriter, err error) {
	var merr *dragdrop.MutationError
	switch {
	case errors.Is(err, planner.ErrReadOnly):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &merr):
		writeRetryable(w, http.StatusBadGateway, merr.Error())
	case errors.Is(err, dragdrop.ErrGestureActive),
		errors.Is(err, dragdrop.ErrNoGesture),
		errors.Is(err, dragdrop.ErrNotDraft):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, dragdrop.ErrInvalidPayload),
		errors.Is(err, dragdrop.ErrUnknownDriver),
		errors.Is(err, dragdrop.ErrUnknownTruckload):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Msg("drag failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeDriverIDs(w http.ResponseWriter, r *http.Request) (DriverIDsRequest, bool) {
	var req DriverIDsRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	seen := make(map[int64]bool, len(req.DriverIDs))
	for _, id := range req.DriverIDs {
		if id <= 0 || seen[id] {
			writeError(w, http.StatusBadRequest, "driverIds must be unique positive ids")
			return req, false
		}
		seen[id] = true
	}
	req.DriverIDs = nonNil(req.DriverIDs)
	return req, true
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
