package planner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"truckplan/internal/calendar"
	"truckplan/internal/dragdrop"
	"truckplan/internal/events"
	"truckplan/internal/layout"
	"truckplan/internal/metrics"
	"truckplan/internal/model"
	"truckplan/internal/ordering"
)

// ErrReadOnly is returned for reassignments when no backend accepts them.
var ErrReadOnly = errors.New("planner is read-only")

// Options configures a Service.
type Options struct {
	Source     DataSource
	Reassigner dragdrop.Reassigner
	Prefs      ordering.KV
	Bus        *events.EventBus
	RangeTTL   time.Duration
	GestureTTL time.Duration
	Geometry   layout.Geometry
	Now        func() time.Time
}

// Service builds boards and routes drag gestures for each user profile.
type Service struct {
	cache      *RangeCache
	reassigner dragdrop.Reassigner
	prefs      ordering.KV
	bus        *events.EventBus
	geometry   layout.Geometry
	gestureTTL time.Duration
	now        func() time.Time
	logger     zerolog.Logger

	mu       sync.Mutex
	profiles map[string]*profileState
}

type profileState struct {
	name       string
	orders     *ordering.Store
	hidden     *ordering.Store
	controller *dragdrop.Controller

	mu        sync.Mutex
	lastRange model.VisibleRange
}

// NewService wires the planner. Reassignments published on the bus drop
// every cached range.
func NewService(opts Options, logger zerolog.Logger) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Geometry == (layout.Geometry{}) {
		opts.Geometry = layout.DefaultGeometry()
	}
	if opts.Bus == nil {
		opts.Bus = events.NewEventBus(logger)
	}
	if opts.Prefs == nil {
		opts.Prefs = ordering.NewMemoryKV()
	}

	s := &Service{
		cache:      NewRangeCache(opts.Source, opts.RangeTTL, logger),
		prefs:      opts.Prefs,
		bus:        opts.Bus,
		geometry:   opts.Geometry,
		gestureTTL: opts.GestureTTL,
		now:        opts.Now,
		logger:     logger.With().Str("component", "planner").Logger(),
		profiles:   make(map[string]*profileState),
	}
	s.reassigner = &publishingReassigner{inner: opts.Reassigner, bus: opts.Bus, logger: s.logger}

	invalidate := func(e events.Event) error {
		s.cache.InvalidateAll()
		s.logger.Debug().Str("event", e.Type).Msg("range cache invalidated")
		return nil
	}
	s.bus.Subscribe(events.TruckloadReassigned, invalidate)
	s.bus.Subscribe(events.FleetReloaded, invalidate)
	return s
}

// Cache exposes the range cache.
func (s *Service) Cache() *RangeCache {
	return s.cache
}

// Today is the service clock truncated to a date.
func (s *Service) Today() time.Time {
	return calendar.Day(s.now())
}

func (s *Service) profile(name string) *profileState {
	if name == "" {
		name = "default"
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.profiles[name]; ok {
		return p
	}
	p := &profileState{
		name:   name,
		orders: ordering.NewOrderStore(s.prefs, name, s.logger),
		hidden: ordering.NewVisibilityStore(s.prefs, name, s.logger),
	}
	p.controller = dragdrop.NewController(s.reassigner, &profileRefetcher{svc: s, p: p}, p.orders, s.logger.With().Str("profile", name).Logger())
	if s.gestureTTL > 0 {
		p.controller.SetGestureTTL(s.gestureTTL)
	}
	s.profiles[name] = p
	return p
}

// Board fetches and lays out the range selected by view.
func (s *Service) Board(ctx context.Context, profile string, view ViewState) (*Board, error) {
	started := time.Now()
	p := s.profile(profile)
	today := s.Today()

	days := view.Days(today)
	vr := calendar.VisibleRange(days)

	raw, stale, err := s.cache.Get(ctx, vr)
	if err != nil {
		return nil, err
	}

	data, issues := model.Sanitize(raw)
	for _, issue := range issues {
		s.logger.Warn().Str("kind", issue.Kind).Int64("id", issue.ID).Str("reason", issue.Reason).Msg("dropping malformed planner record")
	}

	saved, err := p.orders.Load(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("driver order unavailable, using default")
		saved = nil
	}
	hidden, err := p.hidden.Load(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("hidden drivers unavailable, showing all")
		hidden = nil
	}

	board := BuildBoard(BoardInput{
		Data:     data,
		Days:     days,
		Saved:    saved,
		Hidden:   hidden,
		Today:    today,
		Geometry: s.geometry,
	})
	board.View = fromSelection(view.Selection(today))
	board.Stale = stale
	board.Issues = issues

	p.controller.SetBoard(ordering.IDs(ordering.Arrange(data.Drivers, saved)), data.Truckloads)
	p.mu.Lock()
	p.lastRange = vr
	p.mu.Unlock()

	metrics.ObserveBoardBuild(time.Since(started).Seconds())
	return board, nil
}

// DriverOrder returns the saved order, nil when none was saved.
func (s *Service) DriverOrder(ctx context.Context, profile string) ([]int64, error) {
	return s.profile(profile).orders.Load(ctx)
}

// SetDriverOrder replaces the saved order.
func (s *Service) SetDriverOrder(ctx context.Context, profile string, ids []int64) error {
	p := s.profile(profile)
	if err := p.orders.Save(ctx, ids); err != nil {
		metrics.IncReorderSave("error")
		return err
	}
	metrics.IncReorderSave("ok")
	p.controller.SetOrder(ids)
	s.publishOrder(p.name, ids)
	return nil
}

// HiddenDrivers returns the hidden driver IDs.
func (s *Service) HiddenDrivers(ctx context.Context, profile string) ([]int64, error) {
	return s.profile(profile).hidden.Load(ctx)
}

// SetHiddenDrivers replaces the hidden driver IDs.
func (s *Service) SetHiddenDrivers(ctx context.Context, profile string, ids []int64) error {
	return s.profile(profile).hidden.Save(ctx, ids)
}

// BeginDrag starts a gesture on the profile's controller.
func (s *Service) BeginDrag(profile string, payload dragdrop.Payload) (dragdrop.Gesture, error) {
	return s.profile(profile).controller.Begin(payload)
}

// Drop completes the profile's gesture over targetDriverID.
func (s *Service) Drop(ctx context.Context, profile string, targetDriverID int64) (dragdrop.Outcome, error) {
	p := s.profile(profile)
	out, err := p.controller.Drop(ctx, targetDriverID)
	if err == nil && out.Action == "reordered" && out.Persisted {
		s.publishOrder(p.name, out.DriverOrder)
	}
	return out, err
}

// CancelDrag abandons the profile's gesture.
func (s *Service) CancelDrag(profile string) (dragdrop.Outcome, error) {
	return s.profile(profile).controller.Cancel()
}

// ActiveDrag returns the profile's in-flight gesture.
func (s *Service) ActiveDrag(profile string) (dragdrop.Gesture, bool) {
	return s.profile(profile).controller.Active()
}

func (s *Service) publishOrder(profile string, ids []int64) {
	if err := s.bus.PublishJSON(events.DriverOrderSaved, events.OrderSavedPayload{Profile: profile, DriverIDs: ids}); err != nil {
		s.logger.Warn().Err(err).Msg("publish driver order event")
	}
}

type profileRefetcher struct {
	svc *Service
	p   *profileState
}

// Refetch reloads the profile's last visible range.
func (r *profileRefetcher) Refetch(ctx context.Context) error {
	r.p.mu.Lock()
	vr := r.p.lastRange
	r.p.mu.Unlock()

	if vr.Start.IsZero() {
		return nil
	}
	r.svc.cache.Invalidate(vr)
	data, err := r.svc.cache.Refresh(ctx, vr)
	if err != nil {
		return err
	}
	sanitized, _ := model.Sanitize(data)
	r.p.controller.SetBoard(r.p.controller.Order(), sanitized.Truckloads)
	return nil
}

type jsonPublisher interface {
	PublishJSON(eventType string, payload any) error
}

type publishingReassigner struct {
	inner  dragdrop.Reassigner
	bus    jsonPublisher
	logger zerolog.Logger
}

func (r *publishingReassigner) ReassignTruckload(ctx context.Context, truckloadID, driverID int64) error {
	if r.inner == nil {
		return ErrReadOnly
	}
	if err := r.inner.ReassignTruckload(ctx, truckloadID, driverID); err != nil {
		return err
	}
	payload := events.ReassignedPayload{TruckloadID: truckloadID, DriverID: driverID}
	if err := r.bus.PublishJSON(events.TruckloadReassigned, payload); err != nil {
		r.logger.Warn().Err(err).Int64("truckload_id", truckloadID).Msg("publish reassign event")
	}
	return nil
}
