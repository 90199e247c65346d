package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nlzhang/geopin/internal/core/domain"
	"github.com/nlzhang/geopin/internal/core/usecases"
	"github.com/nlzhang/geopin/internal/pkg/coordtx"
)

// --- Mock HelperChannel ---

type mockHelper struct {
	mu      sync.Mutex
	beginFn func(ctx context.Context, ov domain.LocationOverride) error
	endFn   func(ctx context.Context) error
	calls   []string
	begins  []domain.LocationOverride
	active  bool
}

func (m *mockHelper) Begin(ctx context.Context, ov domain.LocationOverride) error {
	m.mu.Lock()
	m.calls = append(m.calls, "begin")
	m.begins = append(m.begins, ov)
	m.mu.Unlock()
	if m.beginFn != nil {
		return m.beginFn(ctx, ov)
	}
	m.mu.Lock()
	m.active = true
	m.mu.Unlock()
	return nil
}

func (m *mockHelper) End(ctx context.Context) error {
	m.mu.Lock()
	m.calls = append(m.calls, "end")
	m.mu.Unlock()
	if m.endFn != nil {
		return m.endFn(ctx)
	}
	m.mu.Lock()
	m.active = false
	m.mu.Unlock()
	return nil
}

func (m *mockHelper) Ping(ctx context.Context) error { return nil }

func (m *mockHelper) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *mockHelper) lastBegin() domain.LocationOverride {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.begins[len(m.begins)-1]
}

func (m *mockHelper) overriding() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func newEngine(helper *mockHelper) *usecases.SpoofingEngine {
	return usecases.NewSpoofingEngine(helper, nil, usecases.EngineConfig{
		HorizontalAccuracyM: 5,
		VerticalAccuracyM:   10,
	})
}

func equalCalls(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --- Tests ---

func TestSpoofingEngine_SelectThenStart_DisplaySpace(t *testing.T) {
	helper := &mockHelper{}
	eng := newEngine(helper)
	ctx := context.Background()

	pt := domain.LocationPoint{Lat: 31.2304, Lon: 121.4737}
	if _, err := eng.SelectPoint(ctx, pt, domain.SpaceDisplay); err != nil {
		t.Fatalf("select: %v", err)
	}

	snap, err := eng.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if snap.State != domain.StateRunning {
		t.Fatalf("expected running, got %s", snap.State)
	}
	if snap.DisplayPoint == nil || snap.DisplayPoint.Lat != 31.2304 || snap.DisplayPoint.Lon != 121.4737 {
		t.Errorf("running must carry the display-space point, got %+v", snap.DisplayPoint)
	}
	if snap.LastError != nil {
		t.Errorf("expected cleared error, got %v", snap.LastError)
	}

	wantLat, wantLon := coordtx.ToTrue(31.2304, 121.4737)
	ov := helper.lastBegin()
	if ov.Latitude != wantLat || ov.Longitude != wantLon {
		t.Errorf("begin got (%v, %v), want true-space (%v, %v)", ov.Latitude, ov.Longitude, wantLat, wantLon)
	}
	if ov.HorizontalAccuracy != 5 || ov.VerticalAccuracy != 10 {
		t.Errorf("accuracies not applied: %+v", ov)
	}

	snap, err = eng.Stop(ctx)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if snap.State != domain.StateIdle {
		t.Fatalf("expected idle after stop, got %s", snap.State)
	}
	if !equalCalls(helper.callLog(), []string{"begin", "end"}) {
		t.Errorf("unexpected helper calls: %v", helper.callLog())
	}
}

func TestSpoofingEngine_StartAt_TrueSpace(t *testing.T) {
	helper := &mockHelper{}
	eng := newEngine(helper)

	pt := domain.LocationPoint{Lat: 39.9042, Lon: 116.4074}
	snap, err := eng.StartAt(context.Background(), pt, domain.SpaceTrue)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// True-space input goes to the helper untouched.
	ov := helper.lastBegin()
	if ov.Latitude != 39.9042 || ov.Longitude != 116.4074 {
		t.Errorf("begin got (%v, %v), want input unchanged", ov.Latitude, ov.Longitude)
	}

	// The display rendition is derived for the UI.
	wantLat, wantLon := coordtx.ToDisplay(39.9042, 116.4074)
	if snap.DisplayPoint.Lat != wantLat || snap.DisplayPoint.Lon != wantLon {
		t.Errorf("display point (%v, %v), want (%v, %v)", snap.DisplayPoint.Lat, snap.DisplayPoint.Lon, wantLat, wantLon)
	}
}

func TestSpoofingEngine_AltitudePassthrough(t *testing.T) {
	helper := &mockHelper{}
	eng := newEngine(helper)
	alt := 123.5

	pt := domain.LocationPoint{Lat: 31.0, Lon: 121.0, Altitude: &alt}
	if _, err := eng.StartAt(context.Background(), pt, domain.SpaceTrue); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := helper.lastBegin().Altitude; got != 123.5 {
		t.Errorf("altitude = %v, want 123.5", got)
	}

	// Absent altitude falls back to the sea-level default.
	pt = domain.LocationPoint{Lat: 31.0, Lon: 121.5}
	if _, err := eng.StartAt(context.Background(), pt, domain.SpaceTrue); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := helper.lastBegin().Altitude; got != domain.DefaultAltitudeMeters {
		t.Errorf("altitude = %v, want default %v", got, domain.DefaultAltitudeMeters)
	}
}

func TestSpoofingEngine_Start_NoSelection(t *testing.T) {
	helper := &mockHelper{}
	eng := newEngine(helper)

	snap, err := eng.Start(context.Background())
	if err == nil {
		t.Fatal("expected error for start without selection")
	}
	oe := domain.AsOpError(err)
	if oe.Kind != domain.KindInvalidCoordinate {
		t.Errorf("expected invalid_coordinate, got %s", oe.Kind)
	}
	if snap.State != domain.StateIdle {
		t.Errorf("state must be untouched, got %s", snap.State)
	}
	if snap.LastError == nil || snap.LastError.Kind != domain.KindInvalidCoordinate {
		t.Errorf("expected recorded last error, got %v", snap.LastError)
	}
	if len(helper.callLog()) != 0 {
		t.Errorf("no helper traffic expected, got %v", helper.callLog())
	}
}

func TestSpoofingEngine_StartAt_OutOfRange(t *testing.T) {
	helper := &mockHelper{}
	eng := newEngine(helper)

	pt := domain.LocationPoint{Lat: 91.0, Lon: 0}
	_, err := eng.StartAt(context.Background(), pt, domain.SpaceTrue)
	if domain.AsOpError(err).Kind != domain.KindInvalidCoordinate {
		t.Fatalf("expected invalid_coordinate, got %v", err)
	}
	if len(helper.callLog()) != 0 {
		t.Errorf("validation must happen before any IPC, got %v", helper.callLog())
	}
}

func TestSpoofingEngine_ValidationKeepsRunningState(t *testing.T) {
	helper := &mockHelper{}
	eng := newEngine(helper)
	ctx := context.Background()

	if _, err := eng.StartAt(ctx, domain.LocationPoint{Lat: 31, Lon: 121}, domain.SpaceTrue); err != nil {
		t.Fatalf("start: %v", err)
	}

	snap, err := eng.StartAt(ctx, domain.LocationPoint{Lat: 200, Lon: 0}, domain.SpaceTrue)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if snap.State != domain.StateRunning {
		t.Errorf("a precondition failure must not tear down the session, got %s", snap.State)
	}
	if snap.LastError == nil {
		t.Error("expected recorded last error")
	}
}

func TestSpoofingEngine_ReentrantStart(t *testing.T) {
	helper := &mockHelper{}
	eng := newEngine(helper)
	ctx := context.Background()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	updates := eng.Watch(watchCtx)
	<-updates // initial idle

	a := domain.LocationPoint{Lat: 31.2304, Lon: 121.4737, Label: "A"}
	b := domain.LocationPoint{Lat: 39.9042, Lon: 116.4074, Label: "B"}

	if _, err := eng.StartAt(ctx, a, domain.SpaceTrue); err != nil {
		t.Fatalf("start A: %v", err)
	}
	snap, err := eng.StartAt(ctx, b, domain.SpaceTrue)
	if err != nil {
		t.Fatalf("start B: %v", err)
	}

	if snap.State != domain.StateRunning || snap.DisplayPoint.Label != "B" {
		t.Fatalf("expected Running(B), got %s %+v", snap.State, snap.DisplayPoint)
	}
	if !equalCalls(helper.callLog(), []string{"begin", "end", "begin"}) {
		t.Fatalf("expected begin, end, begin(B); got %v", helper.callLog())
	}
	if got := helper.lastBegin(); got.Latitude != 39.9042 {
		t.Errorf("second begin carries B, got %+v", got)
	}

	// The replacement is atomic for observers: Running(A) then Running(B),
	// never an intermediate idle.
	first := <-updates
	second := <-updates
	if first.State != domain.StateRunning || first.DisplayPoint.Label != "A" {
		t.Errorf("first update should be Running(A), got %s", first.State)
	}
	if second.State != domain.StateRunning || second.DisplayPoint.Label != "B" {
		t.Errorf("second update should be Running(B), got %s", second.State)
	}
}

func TestSpoofingEngine_StartFailure_Transient(t *testing.T) {
	helper := &mockHelper{
		beginFn: func(ctx context.Context, ov domain.LocationOverride) error {
			return domain.NewOpError(domain.KindHelperUnavailable, "dial unix: connection refused")
		},
	}
	eng := newEngine(helper)

	snap, err := eng.StartAt(context.Background(), domain.LocationPoint{Lat: 31, Lon: 121}, domain.SpaceTrue)
	if err == nil {
		t.Fatal("expected error")
	}
	if snap.State != domain.StateIdle {
		t.Errorf("expected idle, got %s", snap.State)
	}
	if snap.LastError == nil || snap.LastError.Kind != domain.KindHelperUnavailable {
		t.Errorf("expected helper_unavailable recorded, got %v", snap.LastError)
	}
	// An uncertain begin is followed by a cleanup end so the helper cannot
	// be left silently overriding.
	if !equalCalls(helper.callLog(), []string{"begin", "end"}) {
		t.Errorf("expected begin then cleanup end, got %v", helper.callLog())
	}
}

func TestSpoofingEngine_StartFailure_Rejected(t *testing.T) {
	helper := &mockHelper{
		beginFn: func(ctx context.Context, ov domain.LocationOverride) error {
			return domain.NewOpError(domain.KindHelperRejected, "malformed coordinate")
		},
	}
	eng := newEngine(helper)

	snap, err := eng.StartAt(context.Background(), domain.LocationPoint{Lat: 31, Lon: 121}, domain.SpaceTrue)
	if err == nil {
		t.Fatal("expected error")
	}
	if snap.LastError == nil || snap.LastError.Kind != domain.KindHelperRejected {
		t.Errorf("expected helper_rejected recorded, got %v", snap.LastError)
	}
	// A definitive rejection means nothing was applied: no cleanup end.
	if !equalCalls(helper.callLog(), []string{"begin"}) {
		t.Errorf("expected a single begin, got %v", helper.callLog())
	}
}

func TestSpoofingEngine_StartFailure_FromRunning_LandsIdle(t *testing.T) {
	fail := false
	helper := &mockHelper{}
	helper.beginFn = func(ctx context.Context, ov domain.LocationOverride) error {
		if fail {
			return domain.NewOpError(domain.KindHelperUnavailable, "timeout")
		}
		helper.mu.Lock()
		helper.active = true
		helper.mu.Unlock()
		return nil
	}
	eng := newEngine(helper)
	ctx := context.Background()

	if _, err := eng.StartAt(ctx, domain.LocationPoint{Lat: 31, Lon: 121}, domain.SpaceTrue); err != nil {
		t.Fatalf("start A: %v", err)
	}

	fail = true
	snap, err := eng.StartAt(ctx, domain.LocationPoint{Lat: 39, Lon: 116}, domain.SpaceTrue)
	if err == nil {
		t.Fatal("expected error")
	}
	// The previous override was torn down before the failed begin, so the
	// session lands idle with the failure recorded.
	if snap.State != domain.StateIdle {
		t.Errorf("expected idle, got %s", snap.State)
	}
	if snap.LastError == nil || snap.LastError.Kind != domain.KindHelperUnavailable {
		t.Errorf("expected helper_unavailable, got %v", snap.LastError)
	}
}

func TestSpoofingEngine_StopFailOpen(t *testing.T) {
	helper := &mockHelper{}
	eng := newEngine(helper)
	ctx := context.Background()

	if _, err := eng.StartAt(ctx, domain.LocationPoint{Lat: 31, Lon: 121}, domain.SpaceTrue); err != nil {
		t.Fatalf("start: %v", err)
	}

	helper.endFn = func(ctx context.Context) error {
		return domain.NewOpError(domain.KindHelperUnavailable, "helper gone")
	}
	snap, err := eng.Stop(ctx)
	if err != nil {
		t.Fatalf("stop must swallow teardown failures, got %v", err)
	}
	if snap.State != domain.StateIdle {
		t.Errorf("expected idle regardless of helper outcome, got %s", snap.State)
	}
	if snap.LastError != nil {
		t.Errorf("teardown failures are not recorded, got %v", snap.LastError)
	}
}

func TestSpoofingEngine_Stop_WhenIdle(t *testing.T) {
	helper := &mockHelper{}
	eng := newEngine(helper)

	snap, err := eng.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if snap.State != domain.StateIdle {
		t.Errorf("expected idle, got %s", snap.State)
	}
	// End is still sent; it is idempotent at the helper.
	if !equalCalls(helper.callLog(), []string{"end"}) {
		t.Errorf("expected a single end, got %v", helper.callLog())
	}
}

func TestSpoofingEngine_Restore_ClearsSelection(t *testing.T) {
	helper := &mockHelper{}
	eng := newEngine(helper)
	ctx := context.Background()

	pt := domain.LocationPoint{Lat: 31, Lon: 121}
	if _, err := eng.SelectPoint(ctx, pt, domain.SpaceDisplay); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := eng.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	snap, err := eng.Stop(ctx)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if snap.Selected == nil {
		t.Error("stop must keep the staged selection")
	}

	if _, err := eng.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	snap, err = eng.Restore(ctx)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if snap.State != domain.StateIdle {
		t.Errorf("expected idle, got %s", snap.State)
	}
	if snap.Selected != nil {
		t.Error("restore must clear the staged selection")
	}
}

func TestSpoofingEngine_SuccessClearsLastError(t *testing.T) {
	helper := &mockHelper{}
	eng := newEngine(helper)
	ctx := context.Background()

	_, _ = eng.Start(ctx) // no selection, records invalid_coordinate
	if eng.Snapshot().LastError == nil {
		t.Fatal("expected recorded error")
	}

	if _, err := eng.StartAt(ctx, domain.LocationPoint{Lat: 31, Lon: 121}, domain.SpaceTrue); err != nil {
		t.Fatalf("start: %v", err)
	}
	if snap := eng.Snapshot(); snap.LastError != nil {
		t.Errorf("successful transition must clear the error slot, got %v", snap.LastError)
	}
}

func TestSpoofingEngine_SupersededStart_Discarded(t *testing.T) {
	started := make(chan struct{})
	helper := &mockHelper{
		beginFn: func(ctx context.Context, ov domain.LocationOverride) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	}
	eng := newEngine(helper)

	var startErr error
	done := make(chan struct{})
	go func() {
		_, startErr = eng.StartAt(context.Background(), domain.LocationPoint{Lat: 31, Lon: 121}, domain.SpaceTrue)
		close(done)
	}()

	<-started
	snap, err := eng.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	<-done

	if !errors.Is(startErr, usecases.ErrSuperseded) {
		t.Errorf("stale start should report supersession, got %v", startErr)
	}
	if snap.State != domain.StateIdle {
		t.Errorf("the newer stop owns the session, want idle, got %s", snap.State)
	}
	if final := eng.Snapshot(); final.State != domain.StateIdle {
		t.Errorf("discarded result must not be applied later, got %s", final.State)
	}
}

func TestSpoofingEngine_ConcurrentStartStop(t *testing.T) {
	for i := 0; i < 200; i++ {
		helper := &mockHelper{}
		eng := newEngine(helper)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = eng.StartAt(context.Background(), domain.LocationPoint{Lat: 31, Lon: 121}, domain.SpaceTrue)
		}()
		go func() {
			defer wg.Done()
			_, _ = eng.Stop(context.Background())
		}()
		wg.Wait()

		snap := eng.Snapshot()
		if (snap.State == domain.StateRunning) != helper.overriding() {
			t.Fatalf("iteration %d: session %s but helper overriding=%v", i, snap.State, helper.overriding())
		}
	}
}

func TestSpoofingEngine_Watch_DeliversTransitions(t *testing.T) {
	helper := &mockHelper{}
	eng := newEngine(helper)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := eng.Watch(ctx)

	initial := <-updates
	if initial.State != domain.StateIdle {
		t.Fatalf("expected initial idle, got %s", initial.State)
	}

	if _, err := eng.StartAt(context.Background(), domain.LocationPoint{Lat: 31, Lon: 121}, domain.SpaceTrue); err != nil {
		t.Fatalf("start: %v", err)
	}
	running := <-updates
	if running.State != domain.StateRunning {
		t.Fatalf("expected running update, got %s", running.State)
	}

	if _, err := eng.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	idle := <-updates
	if idle.State != domain.StateIdle {
		t.Fatalf("expected idle update, got %s", idle.State)
	}

	cancel()
	select {
	case _, ok := <-updates:
		if ok {
			t.Error("expected channel closed after context cancellation")
		}
	case <-time.After(time.Second):
		t.Error("watch channel not closed")
	}
}
