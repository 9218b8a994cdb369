package planner

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truckplan/internal/calendar"
	"truckplan/internal/dragdrop"
	"truckplan/internal/events"
	"truckplan/internal/ordering"
)

func newTestService(t *testing.T, src *fakeSource) (*Service, *events.EventBus, ordering.KV) {
	t.Helper()
	bus := events.NewEventBus(zerolog.Nop())
	kv := ordering.NewMemoryKV()
	svc := NewService(Options{
		Source:     src,
		Reassigner: src,
		Prefs:      kv,
		Bus:        bus,
		RangeTTL:   time.Minute,
		Now:        func() time.Time { return time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC) },
	}, zerolog.Nop())
	return svc, bus, kv
}

func rowIDs(b *Board) []int64 {
	out := make([]int64, len(b.Rows))
	for i, r := range b.Rows {
		out[i] = r.Driver.ID
	}
	return out
}

func TestService_Board(t *testing.T) {
	src := newFakeSource()
	src.data.Truckloads = append(src.data.Truckloads, sampleData().Truckloads[0])
	src.data.Truckloads[len(src.data.Truckloads)-1].ID = 99
	src.data.Truckloads[len(src.data.Truckloads)-1].EndDate = "2023-01-01"

	svc, _, _ := newTestService(t, src)
	view := NewViewState(calendar.ViewWeek, svc.Today())

	b, err := svc.Board(context.Background(), "", view)
	require.NoError(t, err)
	assert.Equal(t, "2023-12-31", b.Start)
	assert.Equal(t, []int64{2, 3, 1}, rowIDs(b))
	require.Len(t, b.Issues, 1, "end before start is dropped")
	assert.Equal(t, int64(99), b.Issues[0].ID)
	assert.True(t, b.Days[3].Today)
	assert.False(t, b.Stale)
}

func TestService_BoardFetchError(t *testing.T) {
	src := newFakeSource()
	src.setErr(errors.New("erp down"))
	svc, _, _ := newTestService(t, src)

	_, err := svc.Board(context.Background(), "ops", NewViewState(calendar.ViewWeek, svc.Today()))
	assert.Error(t, err)
}

func TestService_DriverOrderAndVisibility(t *testing.T) {
	src := newFakeSource()
	svc, bus, kv := newTestService(t, src)
	ctx := context.Background()

	var saved []events.OrderSavedPayload
	bus.Subscribe(events.DriverOrderSaved, func(e events.Event) error {
		var p events.OrderSavedPayload
		require.NoError(t, e.Decode(&p))
		saved = append(saved, p)
		return nil
	})

	require.NoError(t, svc.SetDriverOrder(ctx, "ops", []int64{3, 1}))
	require.NoError(t, svc.SetHiddenDrivers(ctx, "ops", []int64{2}))

	ids, err := svc.DriverOrder(ctx, "ops")
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1}, ids)

	raw, ok, err := kv.Get(ctx, ordering.OrderKey("ops"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "[3,1]", raw)

	b, err := svc.Board(ctx, "ops", NewViewState(calendar.ViewWeek, svc.Today()))
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1}, rowIDs(b))

	other, err := svc.Board(ctx, "dispatch", NewViewState(calendar.ViewWeek, svc.Today()))
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 1}, rowIDs(other), "profiles do not share order")

	require.Len(t, saved, 1)
	assert.Equal(t, "ops", saved[0].Profile)
}

func TestService_DragReorder(t *testing.T) {
	src := newFakeSource()
	svc, _, _ := newTestService(t, src)
	ctx := context.Background()
	view := NewViewState(calendar.ViewWeek, svc.Today())

	_, err := svc.Board(ctx, "", view)
	require.NoError(t, err)

	_, err = svc.BeginDrag("", dragdrop.Payload{Kind: dragdrop.KindReorder, DriverID: 1})
	require.NoError(t, err)
	_, active := svc.ActiveDrag("")
	assert.True(t, active)

	out, err := svc.Drop(ctx, "", 2)
	require.NoError(t, err)
	assert.Equal(t, "reordered", out.Action)
	assert.Equal(t, []int64{1, 2, 3}, out.DriverOrder)

	b, err := svc.Board(ctx, "", view)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, rowIDs(b))
}

func TestService_DragReassignRefetches(t *testing.T) {
	src := newFakeSource()
	svc, _, _ := newTestService(t, src)
	ctx := context.Background()
	view := NewViewState(calendar.ViewWeek, svc.Today())

	_, err := svc.Board(ctx, "", view)
	require.NoError(t, err)
	calls := src.callCount()

	_, err = svc.BeginDrag("", dragdrop.Payload{Kind: dragdrop.KindReassign, TruckloadID: 11})
	assert.ErrorIs(t, err, dragdrop.ErrNotDraft)

	_, err = svc.BeginDrag("", dragdrop.Payload{Kind: dragdrop.KindReassign, TruckloadID: 10})
	require.NoError(t, err)

	out, err := svc.Drop(ctx, "", 3)
	require.NoError(t, err)
	assert.Equal(t, "reassigned", out.Action)
	assert.True(t, out.Refetched)
	assert.Equal(t, calls+1, src.callCount())

	b, err := svc.Board(ctx, "", view)
	require.NoError(t, err)
	row, _, ok := b.Lookup(KindTruckload, 10)
	require.True(t, ok)
	assert.Equal(t, int64(3), row.Driver.ID)
}

func TestService_DragReassignFailure(t *testing.T) {
	src := newFakeSource()
	svc, _, _ := newTestService(t, src)
	ctx := context.Background()

	_, err := svc.Board(ctx, "", NewViewState(calendar.ViewWeek, svc.Today()))
	require.NoError(t, err)
	_, err = svc.BeginDrag("", dragdrop.Payload{Kind: dragdrop.KindReassign, TruckloadID: 10})
	require.NoError(t, err)

	src.setErr(errors.New("conflict"))
	_, err = svc.Drop(ctx, "", 3)
	var merr *dragdrop.MutationError
	assert.ErrorAs(t, err, &merr)

	_, err = svc.CancelDrag("")
	assert.ErrorIs(t, err, dragdrop.ErrNoGesture)
}

func TestService_ReadOnlyWithoutReassigner(t *testing.T) {
	src := newFakeSource()
	svc := NewService(Options{Source: src}, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.Board(ctx, "", NewViewState(calendar.ViewWeek, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	_, err = svc.BeginDrag("", dragdrop.Payload{Kind: dragdrop.KindReassign, TruckloadID: 10})
	require.NoError(t, err)

	_, err = svc.Drop(ctx, "", 2)
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestService_FleetReloadInvalidatesCache(t *testing.T) {
	src := newFakeSource()
	svc, bus, _ := newTestService(t, src)

	_, err := svc.Board(context.Background(), "", NewViewState(calendar.ViewWeek, svc.Today()))
	require.NoError(t, err)
	require.Equal(t, 1, svc.Cache().Len())

	bus.Publish(events.Event{Type: events.FleetReloaded})
	assert.Equal(t, 0, svc.Cache().Len())
}

func TestService_AbandonedDragExpires(t *testing.T) {
	src := newFakeSource()
	svc := NewService(Options{Source: src, Reassigner: src, GestureTTL: time.Millisecond}, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.Board(ctx, "ops", NewViewState(calendar.ViewWeek, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	first, err := svc.BeginDrag("ops", dragdrop.Payload{Kind: dragdrop.KindReorder, DriverID: 1})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, active := svc.ActiveDrag("ops")
		return !active
	}, time.Second, 5*time.Millisecond)

	second, err := svc.BeginDrag("ops", dragdrop.Payload{Kind: dragdrop.KindReorder, DriverID: 2})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

type failingPublisher struct{}

func (failingPublisher) PublishJSON(string, any) error {
	return errors.New("bus closed")
}

func TestPublishingReassigner_PublishFailureIsLogged(t *testing.T) {
	src := newFakeSource()
	var logs bytes.Buffer
	r := &publishingReassigner{inner: src, bus: failingPublisher{}, logger: zerolog.New(&logs)}

	require.NoError(t, r.ReassignTruckload(context.Background(), 10, 3), "the mutation already happened")
	assert.Contains(t, logs.String(), "publish reassign event")
	assert.Contains(t, logs.String(), "bus closed")
	assert.Contains(t, logs.String(), `"truckload_id":10`)
}
