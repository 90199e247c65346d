package usecases

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nlzhang/geopin/internal/core/domain"
	"github.com/nlzhang/geopin/internal/core/ports"
	"github.com/nlzhang/geopin/internal/pkg/coordtx"
)

// ErrSuperseded is returned to a caller whose operation was overtaken by a
// newer start/stop/restore before its helper call finished. The stale result
// was discarded; the newer operation's outcome stands.
var ErrSuperseded = errors.New("operation superseded by a newer request")

// EngineConfig carries the reading parameters attached to every override.
type EngineConfig struct {
	HorizontalAccuracyM float64
	VerticalAccuracyM   float64
}

// SpoofingEngine owns the process-wide spoofing session. It is the only
// component allowed to mutate session state; every mutating operation runs
// as a serialized transaction that snapshots its inputs, performs helper IPC
// without holding session state, and applies the result atomically.
type SpoofingEngine struct {
	helper    ports.HelperChannel
	publisher ports.EventPublisher
	cfg       EngineConfig

	// ops serializes mutating transactions end to end.
	ops sync.Mutex

	// mu guards the fields below and is never held across a helper call.
	mu        sync.Mutex
	snap      domain.SessionSnapshot
	gen       uint64
	cancel    context.CancelFunc
	uncertain bool // a dispatched begin's outcome was never applied
	watchers  map[int]chan domain.SessionSnapshot
	nextWatch int
}

// NewSpoofingEngine creates an engine in the Idle state. publisher may be
// nil; publishing is best-effort.
func NewSpoofingEngine(helper ports.HelperChannel, publisher ports.EventPublisher, cfg EngineConfig) *SpoofingEngine {
	return &SpoofingEngine{
		helper:    helper,
		publisher: publisher,
		cfg:       cfg,
		snap:      domain.SessionSnapshot{State: domain.StateIdle, ChangedAt: time.Now()},
		watchers:  make(map[int]chan domain.SessionSnapshot),
	}
}

// Snapshot returns the current observable session state.
func (e *SpoofingEngine) Snapshot() domain.SessionSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap
}

// Watch returns a channel that receives the current snapshot immediately and
// every subsequent change until ctx ends. Slow consumers lose the oldest
// buffered snapshot, never the newest.
func (e *SpoofingEngine) Watch(ctx context.Context) <-chan domain.SessionSnapshot {
	ch := make(chan domain.SessionSnapshot, 8)

	e.mu.Lock()
	id := e.nextWatch
	e.nextWatch++
	e.watchers[id] = ch
	ch <- e.snap
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.mu.Lock()
		if c, ok := e.watchers[id]; ok {
			delete(e.watchers, id)
			close(c)
		}
		e.mu.Unlock()
	}()
	return ch
}

// SelectPoint stages a selection for the next Start. No helper traffic.
func (e *SpoofingEngine) SelectPoint(ctx context.Context, pt domain.LocationPoint, space domain.CoordinateSpace) (domain.SessionSnapshot, error) {
	if err := validatePoint(pt, space); err != nil {
		return e.recordError(ctx, err.Kind, err.Message), err
	}

	e.mu.Lock()
	e.snap.Selected = &domain.Selection{Point: pt, Space: space}
	e.snap.ChangedAt = time.Now()
	e.notifyLocked()
	snap := e.snap
	e.mu.Unlock()

	e.publish(ctx, snap)
	return snap, nil
}

// Start spoofs at the staged selection. With nothing selected it records
// InvalidCoordinate and leaves the Idle/Running state untouched.
func (e *SpoofingEngine) Start(ctx context.Context) (domain.SessionSnapshot, error) {
	e.mu.Lock()
	sel := e.snap.Selected
	e.mu.Unlock()

	if sel == nil {
		err := domain.NewOpError(domain.KindInvalidCoordinate, "no point selected")
		return e.recordError(ctx, err.Kind, err.Message), err
	}
	return e.StartAt(ctx, sel.Point, sel.Space)
}

// StartAt stages the given point and starts spoofing there in a single
// transaction. Called while Running it replaces the active override; the
// caller observes Running(old) directly to Running(new), never an Idle flash.
func (e *SpoofingEngine) StartAt(ctx context.Context, pt domain.LocationPoint, space domain.CoordinateSpace) (domain.SessionSnapshot, error) {
	if err := validatePoint(pt, space); err != nil {
		return e.recordError(ctx, err.Kind, err.Message), err
	}

	gen := e.claim()
	e.ops.Lock()
	defer e.ops.Unlock()
	if !e.current(gen) {
		return e.Snapshot(), ErrSuperseded
	}

	display, truth := resolveSpaces(pt, space)

	e.mu.Lock()
	mustEnd := e.snap.State == domain.StateRunning || e.uncertain
	e.mu.Unlock()

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !e.armCancel(gen, cancel) {
		return e.Snapshot(), ErrSuperseded
	}

	if mustEnd {
		// The helper cannot stack overrides: replacing means end, then begin.
		if err := e.helper.End(callCtx); err != nil && !e.current(gen) {
			e.disarmCancel()
			e.setUncertain(true)
			return e.Snapshot(), ErrSuperseded
		}
		// Any other end failure: proceed; the begin tells the real story.
	}

	ov := domain.LocationOverride{
		Latitude:           truth.Lat,
		Longitude:          truth.Lon,
		Altitude:           pt.AltitudeOrDefault(),
		HorizontalAccuracy: e.cfg.HorizontalAccuracyM,
		VerticalAccuracy:   e.cfg.VerticalAccuracyM,
		Timestamp:          time.Now(),
	}
	err := e.helper.Begin(callCtx, ov)
	e.disarmCancel()

	if err != nil {
		if !e.current(gen) {
			e.setUncertain(true)
			return e.Snapshot(), ErrSuperseded
		}
		oe := domain.AsOpError(err)
		if oe.Kind != domain.KindHelperRejected {
			// The begin may have landed despite the failed call (e.g. a
			// timeout after delivery). Force the helper back to a known
			// idle state before reporting.
			cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 2*time.Second)
			e.setUncertain(e.helper.End(cleanupCtx) != nil)
			cleanupCancel()
		}
		snap, applied := e.applyIfCurrent(gen, func(s *domain.SessionSnapshot) {
			s.State = domain.StateIdle
			s.DisplayPoint = nil
			s.TruePoint = nil
			s.LastError = oe
		})
		if !applied {
			return snap, ErrSuperseded
		}
		e.publish(ctx, snap)
		return snap, oe
	}

	snap, applied := e.applyIfCurrent(gen, func(s *domain.SessionSnapshot) {
		s.State = domain.StateRunning
		s.DisplayPoint = &display
		s.TruePoint = &truth
		s.Selected = &domain.Selection{Point: pt, Space: space}
		s.LastError = nil
	})
	if !applied {
		// Our begin landed but a newer operation owns the session now.
		e.setUncertain(true)
		return snap, ErrSuperseded
	}
	e.setUncertain(false)
	e.publish(ctx, snap)
	return snap, nil
}

// Stop ends the override and lands Idle whatever the helper says. The staged
// selection is kept so the user can start again at the same point.
func (e *SpoofingEngine) Stop(ctx context.Context) (domain.SessionSnapshot, error) {
	return e.teardown(ctx, false)
}

// Restore is Stop plus clearing the staged selection, for callers that
// re-center on the device's real location afterward.
func (e *SpoofingEngine) Restore(ctx context.Context) (domain.SessionSnapshot, error) {
	return e.teardown(ctx, true)
}

func (e *SpoofingEngine) teardown(ctx context.Context, clearSelection bool) (domain.SessionSnapshot, error) {
	gen := e.claim()
	e.ops.Lock()
	defer e.ops.Unlock()
	if !e.current(gen) {
		return e.Snapshot(), ErrSuperseded
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !e.armCancel(gen, cancel) {
		return e.Snapshot(), ErrSuperseded
	}

	// End is idempotent at the helper, so it is always sent, even from Idle:
	// it also clears any override left behind by a discarded begin.
	err := e.helper.End(callCtx)
	e.disarmCancel()

	if err != nil && !e.current(gen) {
		e.setUncertain(true)
		return e.Snapshot(), ErrSuperseded
	}
	e.setUncertain(err != nil)

	// Fail-open: the helper's answer never blocks the transition to Idle,
	// and teardown failures are not kept in the error slot.
	snap, applied := e.applyIfCurrent(gen, func(s *domain.SessionSnapshot) {
		s.State = domain.StateIdle
		s.DisplayPoint = nil
		s.TruePoint = nil
		s.LastError = nil
		if clearSelection {
			s.Selected = nil
		}
	})
	if !applied {
		return snap, ErrSuperseded
	}
	e.publish(ctx, snap)
	return snap, nil
}

// recordError sets the session's last-error slot without touching the
// Idle/Running state. Used for precondition failures detected before any
// helper traffic.
func (e *SpoofingEngine) recordError(ctx context.Context, kind domain.ErrorKind, message string) domain.SessionSnapshot {
	e.mu.Lock()
	e.snap.LastError = domain.NewOpError(kind, message)
	e.snap.ChangedAt = time.Now()
	e.notifyLocked()
	snap := e.snap
	e.mu.Unlock()

	e.publish(ctx, snap)
	return snap
}

// claim supersedes any in-flight transaction: it bumps the session
// generation and cancels the helper call that transaction is waiting on.
func (e *SpoofingEngine) claim() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	return e.gen
}

func (e *SpoofingEngine) current(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen == gen
}

// armCancel registers cancel so a newer claim can abort this transaction's
// helper call. Reports false when the transaction is already superseded.
func (e *SpoofingEngine) armCancel(gen uint64, cancel context.CancelFunc) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		return false
	}
	e.cancel = cancel
	return true
}

func (e *SpoofingEngine) disarmCancel() {
	e.mu.Lock()
	e.cancel = nil
	e.mu.Unlock()
}

func (e *SpoofingEngine) setUncertain(v bool) {
	e.mu.Lock()
	e.uncertain = v
	e.mu.Unlock()
}

// applyIfCurrent commits a state transition unless the transaction has been
// superseded, in which case the result is discarded (last writer wins).
func (e *SpoofingEngine) applyIfCurrent(gen uint64, mutate func(*domain.SessionSnapshot)) (domain.SessionSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		return e.snap, false
	}
	mutate(&e.snap)
	e.snap.ChangedAt = time.Now()
	e.notifyLocked()
	return e.snap, true
}

func (e *SpoofingEngine) notifyLocked() {
	for _, ch := range e.watchers {
		select {
		case ch <- e.snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- e.snap:
			default:
			}
		}
	}
}

func (e *SpoofingEngine) publish(ctx context.Context, snap domain.SessionSnapshot) {
	if e.publisher == nil {
		return
	}
	// Serialization is left to the publisher implementation.
	_ = e.publisher.PublishSession(ctx, snap)
}

func validatePoint(pt domain.LocationPoint, space domain.CoordinateSpace) *domain.OpError {
	if space != domain.SpaceDisplay && space != domain.SpaceTrue {
		return domain.NewOpError(domain.KindInvalidCoordinate, "coordinate space must be display or true")
	}
	if err := pt.Validate(); err != nil {
		return domain.AsOpError(err)
	}
	return nil
}

// resolveSpaces computes both renditions of a point from whichever space it
// was supplied in. They are always derived together so they cannot drift.
func resolveSpaces(pt domain.LocationPoint, space domain.CoordinateSpace) (display, truth domain.LocationPoint) {
	display, truth = pt, pt
	switch space {
	case domain.SpaceDisplay:
		truth.Lat, truth.Lon = coordtx.ToTrue(pt.Lat, pt.Lon)
	case domain.SpaceTrue:
		display.Lat, display.Lon = coordtx.ToDisplay(pt.Lat, pt.Lon)
	}
	return display, truth
}
