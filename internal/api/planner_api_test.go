package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"truckplan/internal/config"
	"truckplan/internal/db"
	"truckplan/internal/dragdrop"
	"truckplan/internal/model"
	"truckplan/internal/planner"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

type fixture struct {
	*httptest.Server
	db    *db.DB
	draft int64
	busy  int64
}

func clock() time.Time {
	return time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)
}

func newTestDB(t *testing.T) (*db.DB, int64, int64) {
	t.Helper()
	ctx := context.Background()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "planner.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, database.SyncDriversFromConfig(ctx, &config.FleetConfig{Drivers: []config.DriverConfig{
		{ID: 1, FullName: "Ann", Color: "#111111", IsActive: true},
		{ID: 2, FullName: "Bob", Color: "#222222", IsActive: true},
		{ID: 3, FullName: "Cy", Color: "#333333", IsActive: true},
	}}))

	draft := &model.Truckload{DriverID: 1, StartDate: "2024-01-02", EndDate: "2024-01-03", Status: model.TruckloadDraft, Description: "Pine to mill"}
	busy := &model.Truckload{DriverID: 2, StartDate: "2024-01-04", EndDate: "2024-01-04", Status: model.TruckloadActive}
	require.NoError(t, database.CreateTruckload(ctx, draft))
	require.NoError(t, database.CreateTruckload(ctx, busy))
	require.NoError(t, database.CreateDriverEvent(ctx, &model.DriverEvent{DriverID: 3, StartDate: "2024-01-01", EndDate: "2024-01-05", EventType: model.EventVacation}))
	return database, draft.ID, busy.ID
}

func setupTestServer(t *testing.T) *fixture {
	t.Helper()
	database, draft, busy := newTestDB(t)
	svc := planner.NewService(planner.Options{
		Source:     database,
		Reassigner: database,
		Prefs:      database.Preferences(),
		RangeTTL:   time.Minute,
		Now:        clock,
	}, zerolog.Nop())

	srv := httptest.NewServer(NewHTTPServer(0, svc, "week", zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)
	return &fixture{Server: srv, db: database, draft: draft, busy: busy}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func rowIDs(b planner.Board) []int64 {
	out := make([]int64, len(b.Rows))
	for i, r := range b.Rows {
		out[i] = r.Driver.ID
	}
	return out
}

func TestHealthz(t *testing.T) {
	f := setupTestServer(t)
	resp := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleRange(t *testing.T) {
	f := setupTestServer(t)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantStart  string
		wantDays   int
	}{
		{name: "default week", query: "", wantStatus: http.StatusOK, wantStart: "2023-12-31", wantDays: 7},
		{name: "two weeks", query: "?view=2week&anchor=2024-01-10", wantStatus: http.StatusOK, wantStart: "2024-01-07", wantDays: 14},
		{name: "navigate next", query: "?view=2week&anchor=2024-01-10&nav=next", wantStatus: http.StatusOK, wantStart: "2024-01-21", wantDays: 14},
		{name: "month", query: "?view=month&anchor=2024-02-29", wantStatus: http.StatusOK, wantStart: "2024-02-25", wantDays: 28},
		{name: "custom", query: "?view=custom&start=2024-03-01&end=2024-03-03", wantStatus: http.StatusOK, wantStart: "2024-03-01", wantDays: 3},
		{name: "custom reversed", query: "?view=custom&start=2024-03-03&end=2024-03-01", wantStatus: http.StatusBadRequest},
		{name: "unknown view", query: "?view=year", wantStatus: http.StatusBadRequest},
		{name: "bad anchor", query: "?anchor=03/01/2024", wantStatus: http.StatusBadRequest},
		{name: "bad nav", query: "?nav=sideways", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, http.MethodGet, "/api/planner/range"+tt.query, nil)
			require.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus != http.StatusOK {
				assert.NotEmpty(t, decode[ErrorResponse](t, resp).Error)
				return
			}
			rr := decode[RangeResponse](t, resp)
			assert.Equal(t, tt.wantStart, rr.Start)
			assert.Len(t, rr.Days, tt.wantDays)
			assert.Equal(t, rr.Days[len(rr.Days)-1], rr.End)
		})
	}
}

func TestHandleBoard(t *testing.T) {
	f := setupTestServer(t)

	resp := f.do(t, http.MethodGet, "/api/planner/board", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b := decode[planner.Board](t, resp)

	assert.Equal(t, "2023-12-31", b.Start)
	assert.Equal(t, "2024-01-06", b.End)
	assert.Equal(t, []int64{1, 2, 3}, rowIDs(b))
	require.Len(t, b.Rows[0].Truckloads, 1)
	assert.True(t, b.Rows[0].Truckloads[0].Draggable)
	assert.False(t, b.Rows[1].Truckloads[0].Draggable)
	require.Len(t, b.Rows[2].Events, 1)
	assert.Equal(t, "vacation", b.Rows[2].Events[0].Label)
}

func TestDriverOrderAndHidden(t *testing.T) {
	f := setupTestServer(t)

	resp := f.do(t, http.MethodGet, "/api/planner/driver-order?profile=ops", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[DriverIDsRequest](t, resp).DriverIDs)

	resp = f.do(t, http.MethodPut, "/api/planner/driver-order?profile=ops", DriverIDsRequest{DriverIDs: []int64{3, 1}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/planner/driver-order?profile=ops", nil)
	assert.Equal(t, []int64{3, 1}, decode[DriverIDsRequest](t, resp).DriverIDs)

	resp = f.do(t, http.MethodGet, "/api/planner/board?profile=ops", nil)
	assert.Equal(t, []int64{3, 1, 2}, rowIDs(decode[planner.Board](t, resp)), "saved ids first, then the rest")

	resp = f.do(t, http.MethodGet, "/api/planner/board?profile=dispatch", nil)
	assert.Equal(t, []int64{1, 2, 3}, rowIDs(decode[planner.Board](t, resp)))

	resp = f.do(t, http.MethodPut, "/api/planner/hidden-drivers?profile=ops", DriverIDsRequest{DriverIDs: []int64{1}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = f.do(t, http.MethodGet, "/api/planner/board?profile=ops", nil)
	assert.Equal(t, []int64{3, 2}, rowIDs(decode[planner.Board](t, resp)))

	resp = f.do(t, http.MethodPut, "/api/planner/driver-order", DriverIDsRequest{DriverIDs: []int64{2, 2}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = f.do(t, http.MethodPut, "/api/planner/driver-order", map[string]any{"ids": []int64{1}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDragReassign(t *testing.T) {
	f := setupTestServer(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/planner/board", nil).StatusCode)

	resp := f.do(t, http.MethodPost, "/api/planner/drag/begin", dragdrop.Payload{Kind: dragdrop.KindReassign, TruckloadID: f.busy})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "only drafts can be reassigned")

	resp = f.do(t, http.MethodPost, "/api/planner/drag/begin", dragdrop.Payload{Kind: dragdrop.KindReassign, TruckloadID: f.draft})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	g := decode[dragdrop.Gesture](t, resp)
	assert.NotEmpty(t, g.ID)

	resp = f.do(t, http.MethodGet, "/api/planner/drag", nil)
	active := decode[ActiveDragResponse](t, resp)
	assert.True(t, active.Active)
	require.NotNil(t, active.Gesture)
	assert.Equal(t, g.ID, active.Gesture.ID)

	resp = f.do(t, http.MethodPost, "/api/planner/drag/begin", dragdrop.Payload{Kind: dragdrop.KindReorder, DriverID: 2})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "one gesture at a time")

	resp = f.do(t, http.MethodPost, "/api/planner/drag/drop", DropRequest{TargetDriverID: 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[dragdrop.Outcome](t, resp)
	assert.Equal(t, "reassigned", out.Action)
	assert.True(t, out.Refetched)

	stored, err := f.db.GetTruckload(context.Background(), f.draft)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.DriverID)

	resp = f.do(t, http.MethodGet, "/api/planner/board", nil)
	b := decode[planner.Board](t, resp)
	row, _, ok := b.Lookup(planner.KindTruckload, f.draft)
	require.True(t, ok)
	assert.Equal(t, int64(3), row.Driver.ID)
}

func TestDragReorderAndCancel(t *testing.T) {
	f := setupTestServer(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/planner/board", nil).StatusCode)

	resp := f.do(t, http.MethodPost, "/api/planner/drag/drop", DropRequest{TargetDriverID: 1})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp = f.do(t, http.MethodPost, "/api/planner/drag/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/planner/drag/begin", dragdrop.Payload{Kind: dragdrop.KindReorder, DriverID: 9})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = f.do(t, http.MethodPost, "/api/planner/drag/begin", map[string]any{"kind": "resize"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/planner/drag/begin", dragdrop.Payload{Kind: dragdrop.KindReorder, DriverID: 3})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = f.do(t, http.MethodPost, "/api/planner/drag/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", decode[dragdrop.Outcome](t, resp).Action)

	resp = f.do(t, http.MethodPost, "/api/planner/drag/begin", dragdrop.Payload{Kind: dragdrop.KindReorder, DriverID: 3})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = f.do(t, http.MethodPost, "/api/planner/drag/drop", DropRequest{TargetDriverID: 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[dragdrop.Outcome](t, resp)
	assert.Equal(t, "reordered", out.Action)
	assert.True(t, out.Persisted)
	assert.Equal(t, []int64{3, 1, 2}, out.DriverOrder)

	resp = f.do(t, http.MethodGet, "/api/planner/driver-order", nil)
	assert.Equal(t, []int64{3, 1, 2}, decode[DriverIDsRequest](t, resp).DriverIDs)
}

func TestExport(t *testing.T) {
	f := setupTestServer(t)

	resp := f.do(t, http.MethodGet, "/api/planner/export.xlsx?anchor=2024-01-03", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "planner_2023-12-31.xlsx")

	wb, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer wb.Close()
	assert.Equal(t, []string{"Schedule 2023-12-31", "Grid"}, wb.GetSheetList())
}

type failingSource struct{}

func (failingSource) FetchRange(context.Context, string, string) (*model.PlannerData, error) {
	return nil, errors.New("erp down")
}

func TestBoardFetchErrorIsRetryable(t *testing.T) {
	svc := planner.NewService(planner.Options{Source: failingSource{}, Now: clock}, zerolog.Nop())
	srv := httptest.NewServer(NewHTTPServer(0, svc, "week", zerolog.Nop()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/planner/board")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	e := decode[ErrorResponse](t, resp)
	assert.True(t, e.Retryable)
	assert.Equal(t, "planner data unavailable", e.Error)
}

func TestReassignWithoutBackendIsForbidden(t *testing.T) {
	database, draft, _ := newTestDB(t)
	svc := planner.NewService(planner.Options{Source: database, Now: clock}, zerolog.Nop())
	srv := httptest.NewServer(NewHTTPServer(0, svc, "week", zerolog.Nop()).Handler())
	defer srv.Close()
	f := &fixture{Server: srv}

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/planner/board", nil).StatusCode)
	resp := f.do(t, http.MethodPost, "/api/planner/drag/begin", dragdrop.Payload{Kind: dragdrop.KindReassign, TruckloadID: draft})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/planner/drag/drop", DropRequest{TargetDriverID: 2})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
