package desktop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	zapobserver "go.uber.org/zap/zaptest/observer"

	"github.com/mj1618/deskmirror/internal/model"
	"github.com/mj1618/deskmirror/internal/platform"
	"github.com/mj1618/deskmirror/internal/platform/memory"
)

func TestNewAdmitsInitialState(t *testing.T) {
	d := newDesktop(t)
	s := newState(t, d)

	apps := s.RunningApplications()
	require.Len(t, apps, 2)
	assert.Equal(t, platform.AppID("A1"), apps[0].ID())
	assert.Equal(t, platform.AppID("A2"), apps[1].ID())
	assert.Equal(t, 100, apps[0].PID())
	assert.Equal(t, "com.apple.Terminal", apps[0].BundleID())

	windows := s.KnownWindows()
	require.Len(t, windows, 3)
	assert.Equal(t, []platform.WindowID{"W1", "W2", "W3"},
		[]platform.WindowID{windows[0].ID(), windows[1].ID(), windows[2].ID()})

	w1 := windows[0]
	assert.Equal(t, "Terminal", w1.Title().Get())
	assert.Equal(t, model.Point{X: 10, Y: 20}, w1.Position().Get())
	assert.Equal(t, model.Size{Width: 800, Height: 600}, w1.Size().Get())
	assert.Equal(t, apps[0], w1.Application())

	assert.Equal(t, apps[0], s.FrontmostApplication().Get())
	assert.True(t, apps[0].IsFrontmost().Get())
	assert.False(t, apps[1].IsFrontmost().Get())
	assert.Equal(t, windows[1], apps[1].MainWindow().Get())
	assert.Equal(t, windows[1:], apps[1].KnownWindows())
}

func TestNoLifecycleEventsForInitialState(t *testing.T) {
	d := newDesktop(t)
	s := newState(t, d)
	r := record(t, s)

	settle(t, s)
	assert.Empty(t, r.all())
}

func TestIdentity(t *testing.T) {
	d := newDesktop(t)
	s := newState(t, d)

	a := mustWindow(t, s, "W1")
	b := mustWindow(t, s, "W1")
	assert.True(t, a == b)
	assert.True(t, a.Equal(b))
	assert.Equal(t, a, s.KnownWindows()[0])

	other := mustWindow(t, s, "W2")
	assert.False(t, a == other)
	assert.False(t, a.Equal(Window{}))
	assert.True(t, Window{}.IsZero())
	assert.Equal(t, platform.WindowID(""), Window{}.ID())

	// Identity survives property changes.
	require.NoError(t, d.Retitle("W1", "renamed"))
	settle(t, s)
	assert.True(t, a == mustWindow(t, s, "W1"))
	assert.Equal(t, mustApp(t, s, "A1"), a.Application())
}

func TestScenarioTerminalToTerm(t *testing.T) {
	d := newDesktop(t)
	s := newState(t, d)
	r := record(t, s)

	w := mustWindow(t, s, "W1")
	w.Title().Set("Term")
	assert.Equal(t, "Term", w.Title().Get())

	require.Eventually(t, func() bool {
		return len(eventsOf[WindowTitleChangedEvent](r)) == 1
	}, waitFor, tick)
	settle(t, s)

	events := eventsOf[WindowTitleChangedEvent](r)
	require.Len(t, events, 1)
	assert.Equal(t, WindowTitleChangedEvent{External: false, Window: w, OldValue: "Terminal", NewValue: "Term"}, events[0])
	assert.Equal(t, "Term", w.Title().Get())
}

func TestOptimisticConvergence(t *testing.T) {
	d := newDesktop(t)
	s := newState(t, d)

	w := mustWindow(t, s, "W2")
	for _, x := range []int{300, 400, 500} {
		w.Position().Set(model.Point{X: x, Y: 200})
		assert.Equal(t, model.Point{X: x, Y: 200}, w.Position().Get())
	}

	want := model.Point{X: 500, Y: 200}
	require.Eventually(t, func() bool {
		snap, err := d.Snapshot(context.Background())
		return err == nil && snap.Windows[1].Position == want
	}, waitFor, tick)
	require.Eventually(t, func() bool { return w.Position().Get() == want }, waitFor, tick)
}

func TestExternalOverrideClampsPosition(t *testing.T) {
	d := newDesktop(t)
	metrics := newCountingRecorder()
	s := newState(t, d, WithMetrics(metrics))
	r := record(t, s)

	w := mustWindow(t, s, "W1")
	w.Position().Set(model.Point{X: 5000, Y: 5000})
	assert.Equal(t, model.Point{X: 5000, Y: 5000}, w.Position().Get())

	clamped := model.Point{X: 1120, Y: 480}
	require.Eventually(t, func() bool { return len(eventsOf[WindowPositionChangedEvent](r)) == 1 }, waitFor, tick)
	settle(t, s)

	assert.Equal(t, clamped, w.Position().Get())
	assert.Equal(t, []WindowPositionChangedEvent{{
		External: false,
		Window:   w,
		OldValue: model.Point{X: 5000, Y: 5000},
		NewValue: clamped,
	}}, eventsOf[WindowPositionChangedEvent](r))
	assert.Equal(t, 1, metrics.settled(OutcomeOverridden))
}

func TestExternalChange(t *testing.T) {
	d := newDesktop(t)
	s := newState(t, d)
	r := record(t, s)

	w := mustWindow(t, s, "W1")
	require.NoError(t, d.Move("W1", model.Point{X: 50, Y: 60}))
	settle(t, s)

	assert.Equal(t, model.Point{X: 50, Y: 60}, w.Position().Get())
	assert.Equal(t, []Event{WindowPositionChangedEvent{
		External: true,
		Window:   w,
		OldValue: model.Point{X: 10, Y: 20},
		NewValue: model.Point{X: 50, Y: 60},
	}}, r.all())
}

func TestNoDuplicateEvents(t *testing.T) {
	d := newDesktop(t)
	s := newState(t, d)
	r := record(t, s)

	d.Inject(
		platform.WindowPropertyChanged{Window: "W1", Property: platform.WindowTitle, Value: "Terminal", External: true},
		platform.WindowPropertyChanged{Window: "W1", Property: platform.WindowPosition, Value: model.Point{X: 10, Y: 20}, External: true},
		platform.ApplicationPropertyChanged{App: "A2", Property: platform.AppHidden, Value: false, External: true},
	)
	settle(t, s)
	assert.Empty(t, r.all())

	// A refresh that reads the cached value back is silent too.
	w := mustWindow(t, s, "W1")
	w.Title().Refresh()
	require.Eventually(t, func() bool { return idle(w.w.title) }, waitFor, tick)
	settle(t, s)
	assert.Empty(t, r.all())
}

func TestRefreshPublishesExternalChange(t *testing.T) {
	d := newDesktop(t, memory.Quiet())
	s := newState(t, d)
	r := record(t, s)

	w := mustWindow(t, s, "W1")
	require.NoError(t, d.Retitle("W1", "changed behind our back"))
	settle(t, s)
	assert.Equal(t, "Terminal", w.Title().Get())

	w.Title().Refresh()
	require.Eventually(t, func() bool { return len(r.all()) == 1 }, waitFor, tick)
	assert.Equal(t, []Event{WindowTitleChangedEvent{
		External: true, Window: w, OldValue: "Terminal", NewValue: "changed behind our back",
	}}, r.all())
	assert.Equal(t, "changed behind our back", w.Title().Get())
}

func TestLifecycleOrdering(t *testing.T) {
	d := newDesktop(t)
	s := newState(t, d)
	r := record(t, s)

	var presentOnCreate, presentOnDestroy, validOnDestroy bool
	Subscribe(s, func(e WindowCreatedEvent) {
		_, presentOnCreate = s.Window(e.Window.ID())
	})
	Subscribe(s, func(e WindowDestroyedEvent) {
		_, presentOnDestroy = s.Window(e.Window.ID())
		validOnDestroy = e.Window.IsValid()
	})

	require.NoError(t, d.OpenWindow("A1", memory.WindowSpec{
		ID: "W9", Title: "new", Size: model.Size{Width: 300, Height: 200},
	}))
	require.Eventually(t, func() bool { return len(eventsOf[WindowCreatedEvent](r)) == 1 }, waitFor, tick)
	settle(t, s)
	assert.True(t, presentOnCreate)

	w9 := mustWindow(t, s, "W9")
	assert.Equal(t, WindowCreatedEvent{External: true, Window: w9}, eventsOf[WindowCreatedEvent](r)[0])
	assert.Contains(t, mustApp(t, s, "A1").KnownWindows(), w9)
	assert.True(t, w9.IsValid())

	require.NoError(t, d.CloseWindow("W9"))
	settle(t, s)

	assert.True(t, presentOnDestroy)
	assert.False(t, validOnDestroy)
	assert.Equal(t, []WindowDestroyedEvent{{External: true, Window: w9}}, eventsOf[WindowDestroyedEvent](r))
	_, ok := s.Window("W9")
	assert.False(t, ok)
	assert.NotContains(t, mustApp(t, s, "A1").KnownWindows(), w9)
}

func TestTerminateDestroysWindowsFirst(t *testing.T) {
	d := newDesktop(t)
	s := newState(t, d)
	r := record(t, s)

	app := mustApp(t, s, "A2")
	w2, w3 := mustWindow(t, s, "W2"), mustWindow(t, s, "W3")

	require.NoError(t, d.Terminate("A2"))
	settle(t, s)

	var lifecycle []Event
	for _, e := range r.all() {
		switch e.(type) {
		case WindowDestroyedEvent, ApplicationTerminatedEvent:
			lifecycle = append(lifecycle, e)
		}
	}
	assert.Equal(t, []Event{
		WindowDestroyedEvent{External: true, Window: w2},
		WindowDestroyedEvent{External: true, Window: w3},
		ApplicationTerminatedEvent{External: true, Application: app},
	}, lifecycle)

	assert.False(t, app.IsValid())
	assert.False(t, w2.IsValid())
	_, ok := s.Application("A2")
	assert.False(t, ok)
	assert.Len(t, s.KnownWindows(), 1)
	assert.Empty(t, app.KnownWindows())
}

func TestTerminatedEntitiesLeaveNoIndexEntries(t *testing.T) {
	d := newDesktop(t)
	s := newState(t, d)

	require.NoError(t, d.Terminate("A2"))
	require.NoError(t, d.Terminate("A1"))
	settle(t, s)

	s.mu.RLock()
	defer s.mu.RUnlock()
	assert.Empty(t, s.apps)
	assert.Empty(t, s.windows)
	assert.Empty(t, s.appWindows)
	assert.Empty(t, s.pendingApps)
	assert.Empty(t, s.pendingWindows)
	assert.Empty(t, s.deferred)
}

func TestInvalidatedEntityFreezesValues(t *testing.T) {
	d := newDesktop(t)
	s := newState(t, d)

	w := mustWindow(t, s, "W1")
	require.NoError(t, d.CloseWindow("W1"))
	// The backend handle reports the window gone before the notification
	// is handled.
	assert.False(t, w.IsValid())
	settle(t, s)

	before := len(d.Writes())
	w.Title().Set("ignored")
	w.Position().Set(model.Point{X: 1, Y: 1})
	assert.Equal(t, "Terminal", w.Title().Get())
	assert.Equal(t, model.Point{X: 10, Y: 20}, w.Position().Get())
	settle(t, s)
	assert.Len(t, d.Writes(), before)
	assert.False(t, w.IsValid())
}

func TestSupersededWritesAreDiscarded(t *testing.T) {
	d := newDesktop(t)
	metrics := newCountingRecorder()
	s := newState(t, d, WithMetrics(metrics))
	r := record(t, s)

	w := mustWindow(t, s, "W1")
	d.HoldWrites()
	w.Title().Set("v1")
	w.Title().Set("v2")
	w.Title().Set("v3")
	assert.Equal(t, "v3", w.Title().Get())
	d.ReleaseWrites()

	require.Eventually(t, func() bool { return len(d.Writes()) == 2 }, waitFor, tick)
	require.Eventually(t, func() bool { return len(eventsOf[WindowTitleChangedEvent](r)) == 1 }, waitFor, tick)
	settle(t, s)

	var sent []any
	for _, wr := range d.Writes() {
		sent = append(sent, wr.Value)
	}
	assert.Equal(t, []any{"v1", "v3"}, sent)
	assert.Equal(t, []WindowTitleChangedEvent{{External: false, Window: w, OldValue: "Terminal", NewValue: "v3"}},
		eventsOf[WindowTitleChangedEvent](r))
	assert.Equal(t, "v3", w.Title().Get())
	assert.Equal(t, 2, metrics.settled(OutcomeSuperseded))
	assert.Equal(t, 1, metrics.settled(OutcomeConfirmed))
}

func TestWriteFailureRollsBack(t *testing.T) {
	d := newDesktop(t)
	core, logs := zapobserver.New(zap.WarnLevel)
	s := newState(t, d, WithLogger(zap.New(core)))
	r := record(t, s)

	w := mustWindow(t, s, "W1")
	d.FailWrites(errors.New("permission denied"))
	w.Title().Set("nope")
	assert.Equal(t, "nope", w.Title().Get())

	require.Eventually(t, func() bool { return w.Title().Get() == "Terminal" }, waitFor, tick)
	require.Eventually(t, func() bool { return logs.FilterMessage("write failed").Len() == 1 }, waitFor, tick)
	d.FailWrites(nil)
	settle(t, s)

	assert.Empty(t, r.all())
	entry := logs.FilterMessage("write failed").All()[0]
	assert.Equal(t, "window.title", entry.ContextMap()["property"])
}

func TestConstructionFailureYieldsNoEntity(t *testing.T) {
	d := newDesktop(t)
	core, logs := zapobserver.New(zap.WarnLevel)
	s := newState(t, d, WithLogger(zap.New(core)))
	r := record(t, s)

	d.FailReads(errors.New("accessibility error"))
	require.NoError(t, d.Launch(memory.AppSpec{
		ID: "A3", PID: 300,
		Windows: []memory.WindowSpec{{ID: "W9", Title: "x", Size: model.Size{Width: 10, Height: 10}}},
	}))
	require.Eventually(t, func() bool {
		return logs.FilterMessage("application construction failed").Len() == 1
	}, waitFor, tick)
	d.FailReads(nil)
	settle(t, s)

	_, ok := s.Application("A3")
	assert.False(t, ok)
	_, ok = s.Window("W9")
	assert.False(t, ok)
	assert.Empty(t, eventsOf[ApplicationLaunchedEvent](r))
	assert.Empty(t, eventsOf[WindowCreatedEvent](r))

	s.mu.RLock()
	defer s.mu.RUnlock()
	assert.Empty(t, s.pendingWindows)
	assert.Empty(t, s.deferred)
}

func TestLaunchAdmitsApplicationBeforeWindows(t *testing.T) {
	d := newDesktop(t)
	s := newState(t, d)
	r := record(t, s)

	require.NoError(t, d.Launch(memory.AppSpec{
		ID: "A3", PID: 300, BundleID: "com.example.editor",
		Windows: []memory.WindowSpec{
			{ID: "W8", Title: "one", Size: model.Size{Width: 10, Height: 10}},
			{ID: "W9", Title: "two", Size: model.Size{Width: 10, Height: 10}},
		},
	}))
	require.Eventually(t, func() bool { return len(eventsOf[WindowCreatedEvent](r)) == 2 }, waitFor, tick)
	settle(t, s)

	events := r.all()
	require.NotEmpty(t, events)
	launched, ok := events[0].(ApplicationLaunchedEvent)
	require.True(t, ok, "first event is %T", events[0])
	assert.Equal(t, platform.AppID("A3"), launched.Application.ID())
	assert.Equal(t, "com.example.editor", launched.Application.BundleID())

	app := mustApp(t, s, "A3")
	assert.Len(t, app.KnownWindows(), 2)
	assert.Equal(t, app, mustWindow(t, s, "W9").Application())
}

func TestTerminateDuringConstructionIsSilent(t *testing.T) {
	d := newDesktop(t)
	s := newState(t, d)
	r := record(t, s)

	require.NoError(t, d.Launch(memory.AppSpec{ID: "A3", Windows: []memory.WindowSpec{{ID: "W9"}}}))
	require.NoError(t, d.Terminate("A3"))
	settle(t, s)

	// Construction races with termination. Whatever the interleaving, A3
	// is gone and every creation event is matched by a destruction event.
	_, known := s.Application("A3")
	assert.False(t, known)

	assert.Equal(t, len(eventsOf[ApplicationLaunchedEvent](r)), len(eventsOf[ApplicationTerminatedEvent](r)))
	assert.Equal(t, len(eventsOf[WindowCreatedEvent](r)), len(eventsOf[WindowDestroyedEvent](r)))
}

func TestApplicationProperties(t *testing.T) {
	d := newDesktop(t)
	s := newState(t, d)
	r := record(t, s)

	app := mustApp(t, s, "A2")
	w2, w3 := mustWindow(t, s, "W2"), mustWindow(t, s, "W3")

	_, writable := app.FocusedWindow().(WritableProperty[Window])
	assert.False(t, writable)
	assert.Equal(t, w2, app.FocusedWindow().Get())

	app.MainWindow().Set(w3)
	assert.Equal(t, w3, app.MainWindow().Get())
	require.Eventually(t, func() bool {
		return len(eventsOf[ApplicationFocusedWindowChangedEvent](r)) == 1 &&
			len(eventsOf[ApplicationMainWindowChangedEvent](r)) == 1
	}, waitFor, tick)

	assert.Equal(t, ApplicationMainWindowChangedEvent{External: false, Application: app, OldValue: w2, NewValue: w3},
		eventsOf[ApplicationMainWindowChangedEvent](r)[0])
	assert.Equal(t, w3, app.FocusedWindow().Get())

	app.IsHidden().Set(true)
	require.Eventually(t, func() bool { return len(eventsOf[ApplicationHiddenChangedEvent](r)) == 1 }, waitFor, tick)
	assert.Equal(t, ApplicationHiddenChangedEvent{External: false, Application: app, OldValue: false, NewValue: true},
		eventsOf[ApplicationHiddenChangedEvent](r)[0])
}

func TestFrontmostApplication(t *testing.T) {
	d := newDesktop(t)
	s := newState(t, d)
	r := record(t, s)

	a1, a2 := mustApp(t, s, "A1"), mustApp(t, s, "A2")
	s.FrontmostApplication().Set(a2)
	assert.Equal(t, a2, s.FrontmostApplication().Get())

	require.Eventually(t, func() bool { return len(eventsOf[FrontmostApplicationChangedEvent](r)) == 1 }, waitFor, tick)
	require.Eventually(t, func() bool { return a2.IsFrontmost().Get() && !a1.IsFrontmost().Get() }, waitFor, tick)
	assert.Equal(t, FrontmostApplicationChangedEvent{External: false, OldValue: a1, NewValue: a2},
		eventsOf[FrontmostApplicationChangedEvent](r)[0])

	require.NoError(t, d.Activate("A1"))
	settle(t, s)
	events := eventsOf[FrontmostApplicationChangedEvent](r)
	require.Len(t, events, 2)
	assert.Equal(t, FrontmostApplicationChangedEvent{External: true, OldValue: a2, NewValue: a1}, events[1])
}

func TestProtocolErrorsAreCountedAndIgnored(t *testing.T) {
	d := newDesktop(t)
	metrics := newCountingRecorder()
	s := newState(t, d, WithMetrics(metrics))
	r := record(t, s)

	d.Inject(
		platform.WindowPropertyChanged{Window: "nope", Property: platform.WindowTitle, Value: "x"},
		platform.WindowPropertyChanged{Window: "W1", Property: platform.WindowTitle, Value: 42},
		platform.WindowPropertyChanged{Window: "W1", Property: "opacity", Value: 1.0},
		platform.ApplicationPropertyChanged{App: "nope", Property: platform.AppHidden, Value: true},
		platform.WindowDestroyed{Window: "nope"},
		platform.ApplicationTerminated{App: "nope"},
	)
	settle(t, s)

	assert.Equal(t, 2, metrics.protocolErrors("unknown window"))
	assert.Equal(t, 1, metrics.protocolErrors("value type"))
	assert.Equal(t, 1, metrics.protocolErrors("unknown property"))
	assert.Equal(t, 2, metrics.protocolErrors("unknown application"))
	assert.Empty(t, r.all())
	assert.Equal(t, "Terminal", mustWindow(t, s, "W1").Title().Get())
	assert.Len(t, s.KnownWindows(), 3)
}

func TestLoopStopsWhenBackendCloses(t *testing.T) {
	d := newDesktop(t)
	s := newState(t, d)

	require.NoError(t, d.Close())
	require.Eventually(t, func() bool {
		select {
		case <-s.Done():
			return true
		default:
			return false
		}
	}, waitFor, tick)
	assert.ErrorIs(t, s.call(func() {}), ErrClosed)
}

func TestCloseStopsLoop(t *testing.T) {
	d := newDesktop(t)
	s := newState(t, d)

	s.Close()
	_, open := <-s.Done()
	assert.False(t, open)
}

func TestWindowSnapshot(t *testing.T) {
	d := newDesktop(t)
	s := newState(t, d)

	assert.Equal(t, model.Window{
		ID:       "W1",
		App:      "A1",
		PID:      100,
		Title:    "Terminal",
		Position: model.Point{X: 10, Y: 20},
		Size:     model.Size{Width: 800, Height: 600},
		Focused:  true,
	}, mustWindow(t, s, "W1").Snapshot())
	assert.Equal(t, model.App{
		ID:            "A2",
		PID:           200,
		BundleID:      "com.apple.finder",
		MainWindow:    "W2",
		FocusedWindow: "W2",
	}, mustApp(t, s, "A2").Snapshot())
}

func TestStateSnapshot(t *testing.T) {
	d := newDesktop(t)
	s := newState(t, d)

	snap := s.Snapshot()
	assert.Equal(t, "A1", snap.Frontmost)
	require.Len(t, snap.Apps, 2)
	assert.Equal(t, "A1", snap.Apps[0].ID)
	require.Len(t, snap.Windows, 3)
	assert.Equal(t, []string{"W1", "W2", "W3"}, []string{snap.Windows[0].ID, snap.Windows[1].ID, snap.Windows[2].ID})
}

func TestWaitReturnsAfterWritesSettle(t *testing.T) {
	d := newDesktop(t)
	s := newState(t, d)
	r := record(t, s)

	w := mustWindow(t, s, "W1")
	d.HoldWrites()
	w.Title().Set("Term")
	w.Size().Set(model.Size{Width: 5000, Height: 300})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	err := s.Wait(ctx)
	cancel()
	require.ErrorIs(t, err, context.DeadlineExceeded)

	d.ReleaseWrites()
	ctx, cancel = context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, s.Wait(ctx))

	assert.Equal(t, "Term", w.Title().Get())
	assert.Len(t, eventsOf[WindowTitleChangedEvent](r), 1)
	assert.Len(t, eventsOf[WindowSizeChangedEvent](r), 1)
}

func TestWaitAfterClose(t *testing.T) {
	d := newDesktop(t)
	s := newState(t, d)
	s.Close()
	assert.ErrorIs(t, s.Wait(context.Background()), ErrClosed)
}

func TestApplyCollectsEvents(t *testing.T) {
	d := newDesktop(t)
	s := newState(t, d)
	w := mustWindow(t, s, "W3")

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	events, err := s.Apply(ctx,
		func() { w.Title().Set("Archive") },
		func() { w.IsMinimized().Set(true) },
	)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Event{
		WindowTitleChangedEvent{Window: w, OldValue: "Downloads", NewValue: "Archive"},
		WindowMinimizedChangedEvent{Window: w, OldValue: false, NewValue: true},
	}, events)
}

func TestSubscribeLogsHandlerCount(t *testing.T) {
	d := newDesktop(t)
	core, logs := zapobserver.New(zap.DebugLevel)
	s := newState(t, d, WithLogger(zap.New(core)))

	t.Cleanup(Subscribe(s, func(WindowTitleChangedEvent) {}))
	t.Cleanup(Subscribe(s, func(WindowTitleChangedEvent) {}))

	entries := logs.FilterMessage("subscribed").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "WindowTitleChangedEvent", entries[1].ContextMap()["event"])
	assert.Equal(t, int64(2), entries[1].ContextMap()["handlers"])
}
