package dragdrop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"truckplan/internal/metrics"
	"truckplan/internal/model"
	"truckplan/internal/ordering"
)

var (
	ErrGestureActive    = errors.New("another drag gesture is in progress")
	ErrNoGesture        = errors.New("no drag gesture in progress")
	ErrNotDraft         = errors.New("only draft truckloads can be reassigned")
	ErrUnknownTruckload = errors.New("truckload is not on the board")
	ErrUnknownDriver    = errors.New("driver is not on the board")
	ErrInvalidPayload   = errors.New("invalid drag payload")
)

// PayloadKind tells the drop handler which protocol a gesture uses.
type PayloadKind string

const (
	KindReorder  PayloadKind = "reorder"
	KindReassign PayloadKind = "reassign"
)

// Payload is carried by a gesture from begin to drop.
// DriverID is set for reorder, TruckloadID for reassign.
type Payload struct {
	Kind        PayloadKind `json:"kind"`
	DriverID    int64       `json:"driverId,omitempty"`
	TruckloadID int64       `json:"truckloadId,omitempty"`
}

// Gesture is an in-flight drag.
type Gesture struct {
	ID        string    `json:"id"`
	Payload   Payload   `json:"payload"`
	StartedAt time.Time `json:"startedAt"`
}

// Outcome describes what a drop did.
type Outcome struct {
	GestureID   string      `json:"gestureId"`
	Kind        PayloadKind `json:"kind"`
	Action      string      `json:"action"` // reordered, reassigned, noop, cancelled
	DriverOrder []int64     `json:"driverOrder,omitempty"`
	TruckloadID int64       `json:"truckloadId,omitempty"`
	DriverID    int64       `json:"driverId,omitempty"`
	Persisted   bool        `json:"persisted"`
	Refetched   bool        `json:"refetched"`
}

// MutationError wraps a failed remote update. It is reported to the user
// and leaves the board as it was.
type MutationError struct {
	Op  string
	Err error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// Reassigner moves a truckload to another driver on the backing store.
type Reassigner interface {
	ReassignTruckload(ctx context.Context, truckloadID, driverID int64) error
}

// Refetcher reloads the current board after a remote change.
type Refetcher interface {
	Refetch(ctx context.Context) error
}

// OrderSaver persists the driver order. Failures are swallowed.
type OrderSaver interface {
	SaveQuiet(ctx context.Context, ids []int64) bool
}

var _ OrderSaver = (*ordering.Store)(nil)

// Controller runs one drag gesture at a time over the current board.
type Controller struct {
	mu         sync.Mutex
	fsm        *FSM
	state      State
	gesture    *Gesture
	order      []int64
	truckloads map[int64]model.Truckload

	reassigner Reassigner
	refetcher  Refetcher
	orders     OrderSaver
	logger     zerolog.Logger
	now        func() time.Time
	gestureTTL time.Duration
}

// DefaultGestureTTL is how long a gesture may stay in flight before the
// next Begin abandons it.
const DefaultGestureTTL = 2 * time.Minute

// NewController creates an idle controller.
func NewController(reassigner Reassigner, refetcher Refetcher, orders OrderSaver, logger zerolog.Logger) *Controller {
	return &Controller{
		fsm:        NewFSM(),
		state:      StateIdle,
		truckloads: make(map[int64]model.Truckload),
		reassigner: reassigner,
		refetcher:  refetcher,
		orders:     orders,
		logger:     logger.With().Str("component", "dragdrop").Logger(),
		now:        time.Now,
		gestureTTL: DefaultGestureTTL,
	}
}

// SetGestureTTL changes how long an abandoned gesture blocks new ones.
// Zero or less disables expiry.
func (c *Controller) SetGestureTTL(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gestureTTL = d
}

// SetBoard replaces the rows and truckloads drops are resolved against.
func (c *Controller) SetBoard(order []int64, truckloads []model.Truckload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order = append([]int64(nil), order...)
	c.truckloads = make(map[int64]model.Truckload, len(truckloads))
	for _, t := range truckloads {
		c.truckloads[t.ID] = t
	}
}

// SetOrder applies an externally saved order over the current rows.
func (c *Controller) SetOrder(saved []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = ordering.MergeIDs(c.order, saved)
}

// Order returns the in-memory driver order.
func (c *Controller) Order() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.order...)
}

// State returns the current gesture phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Active returns the in-flight gesture, if any.
func (c *Controller) Active() (Gesture, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked()
	if c.gesture == nil {
		return Gesture{}, false
	}
	return *c.gesture, true
}

func (c *Controller) transition(to State) bool {
	if !c.fsm.CanTransition(c.state, to) {
		return false
	}
	c.state = to
	return true
}

// expireLocked cancels a dragging gesture older than the TTL. Gestures
// waiting on a remote reassignment are left alone.
func (c *Controller) expireLocked() {
	if c.gestureTTL <= 0 || c.state != StateDragging || c.gesture == nil {
		return
	}
	age := c.now().Sub(c.gesture.StartedAt)
	if age <= c.gestureTTL {
		return
	}
	g := *c.gesture
	if _, err := c.cancelLocked(); err == nil {
		c.logger.Info().
			Str("gesture_id", g.ID).
			Str("kind", string(g.Payload.Kind)).
			Dur("age", age).
			Msg("abandoned drag gesture expired")
	}
}

// Begin starts a gesture. Only draft truckloads may be dragged for reassignment.
func (c *Controller) Begin(p Payload) (Gesture, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expireLocked()
	if c.state != StateIdle {
		return Gesture{}, ErrGestureActive
	}

	switch p.Kind {
	case KindReorder:
		if p.DriverID <= 0 {
			return Gesture{}, ErrInvalidPayload
		}
		if !contains(c.order, p.DriverID) {
			return Gesture{}, ErrUnknownDriver
		}
		p.TruckloadID = 0
	case KindReassign:
		if p.TruckloadID <= 0 {
			return Gesture{}, ErrInvalidPayload
		}
		t, ok := c.truckloads[p.TruckloadID]
		if !ok {
			return Gesture{}, ErrUnknownTruckload
		}
		if !t.IsDraft() {
			return Gesture{}, ErrNotDraft
		}
		p.DriverID = 0
	default:
		return Gesture{}, ErrInvalidPayload
	}

	g := &Gesture{ID: uuid.NewString(), Payload: p, StartedAt: c.now()}
	c.transition(StateDragging)
	c.gesture = g
	return *g, nil
}

// Cancel abandons the gesture without any mutation.
func (c *Controller) Cancel() (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelLocked()
}

func (c *Controller) cancelLocked() (Outcome, error) {
	if !c.transition(StateCancelled) {
		return Outcome{}, ErrNoGesture
	}
	out := Outcome{GestureID: c.gesture.ID, Kind: c.gesture.Payload.Kind, Action: "cancelled"}
	c.gesture = nil
	c.transition(StateIdle)
	return out, nil
}

// Drop completes the gesture over a driver row. A target that is not a
// row on the board cancels the gesture.
func (c *Controller) Drop(ctx context.Context, targetDriverID int64) (Outcome, error) {
	c.mu.Lock()
	c.expireLocked()
	if c.state != StateDragging {
		c.mu.Unlock()
		return Outcome{}, ErrNoGesture
	}
	if !contains(c.order, targetDriverID) {
		out, err := c.cancelLocked()
		c.mu.Unlock()
		return out, err
	}

	g := *c.gesture
	c.transition(StateDropped)

	if g.Payload.Kind == KindReorder {
		out := c.reorderLocked(ctx, g, targetDriverID)
		c.finishLocked()
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	out, err := c.reassign(ctx, g, targetDriverID)

	c.mu.Lock()
	c.finishLocked()
	c.mu.Unlock()
	return out, err
}

func (c *Controller) finishLocked() {
	c.gesture = nil
	c.transition(StateIdle)
}

func (c *Controller) reorderLocked(ctx context.Context, g Gesture, target int64) Outcome {
	out := Outcome{GestureID: g.ID, Kind: KindReorder, DriverID: g.Payload.DriverID}

	moved, ok := ordering.MoveID(c.order, g.Payload.DriverID, target)
	if !ok {
		out.Action = "noop"
		out.DriverOrder = append([]int64(nil), c.order...)
		return out
	}

	c.order = moved
	out.Action = "reordered"
	out.DriverOrder = append([]int64(nil), moved...)
	if c.orders != nil {
		out.Persisted = c.orders.SaveQuiet(ctx, moved)
	}
	result := "ok"
	if !out.Persisted {
		result = "error"
	}
	metrics.IncReorderSave(result)

	c.logger.Info().
		Int64("driver_id", g.Payload.DriverID).
		Int64("target_driver_id", target).
		Bool("persisted", out.Persisted).
		Msg("driver rows reordered")
	return out
}

func (c *Controller) reassign(ctx context.Context, g Gesture, target int64) (Outcome, error) {
	out := Outcome{GestureID: g.ID, Kind: KindReassign, TruckloadID: g.Payload.TruckloadID, DriverID: target}

	if err := c.reassigner.ReassignTruckload(ctx, g.Payload.TruckloadID, target); err != nil {
		metrics.IncReassignment("error")
		c.logger.Error().Err(err).
			Int64("truckload_id", g.Payload.TruckloadID).
			Int64("driver_id", target).
			Msg("truckload reassignment failed")
		return out, &MutationError{Op: "reassign truckload", Err: err}
	}
	metrics.IncReassignment("ok")
	out.Action = "reassigned"

	if c.refetcher != nil {
		if err := c.refetcher.Refetch(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("refetch after reassignment failed")
		} else {
			out.Refetched = true
		}
	}

	c.logger.Info().
		Int64("truckload_id", g.Payload.TruckloadID).
		Int64("driver_id", target).
		Msg("truckload reassigned")
	return out, nil
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
