package surgery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/theatre/internal/adapters/logging"
	"github.com/felixgeelhaar/theatre/internal/domain/procedure"
	"github.com/felixgeelhaar/theatre/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	surgeon EntityID = "surgeon"
	patient EntityID = "patient"
	arm     EntityID = "patient-arm"
	torso   EntityID = "patient-torso"
	heart   EntityID = "heart"
)

// fakeBody is a minimal anatomy: parts owned by bodies, features and organs.
type fakeBody struct {
	mu       sync.Mutex
	owner    map[EntityID]EntityID
	features map[EntityID]map[string]bool
	organs   map[EntityID]map[EntityID]bool
	detached []EntityID
	removed  []EntityID
}

func newFakeBody() *fakeBody {
	return &fakeBody{
		owner:    map[EntityID]EntityID{arm: patient, torso: patient},
		features: map[EntityID]map[string]bool{},
		organs:   map[EntityID]map[EntityID]bool{torso: {heart: true}},
	}
}

func (b *fakeBody) setFeature(part EntityID, feature string, present bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.features[part] == nil {
		b.features[part] = map[string]bool{}
	}
	b.features[part][feature] = present
}

func (b *fakeBody) HasFeature(target EntityID, feature string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.features[target][feature]
}

func (b *fakeBody) BodyOf(part EntityID) (EntityID, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	owner, ok := b.owner[part]
	return owner, ok
}

func (b *fakeBody) Detach(part EntityID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.owner[part]; !ok {
		return false
	}
	delete(b.owner, part)
	b.detached = append(b.detached, part)
	return true
}

func (b *fakeBody) HasOrgan(part, organ EntityID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.organs[part][organ]
}

func (b *fakeBody) RemoveOrgan(part, organ EntityID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.organs[part][organ] {
		return false
	}
	delete(b.organs[part], organ)
	b.removed = append(b.removed, organ)
	return true
}

func (b *fakeBody) detachedParts() []EntityID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]EntityID(nil), b.detached...)
}

type recorder struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) count(kind NotificationKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, note := range r.notes {
		if note.Kind == kind {
			n++
		}
	}
	return n
}

type countingMetrics struct {
	mu        sync.Mutex
	started   int
	completed int
	aborted   int
	outcomes  map[StepOutcome]int
}

func (m *countingMetrics) OperationStarted(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *countingMetrics) OperationEnded(_ string, completed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if completed {
		m.completed++
	} else {
		m.aborted++
	}
}

func (m *countingMetrics) StepResolved(_ BehaviorKind, outcome StepOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = map[StepOutcome]int{}
	}
	m.outcomes[outcome]++
}

func testCatalog(t *testing.T) *procedure.Catalog {
	t.Helper()

	cat := procedure.NewCatalog()
	steps := map[string]procedure.Step{}
	add := func(id string, n procedure.Necessity, selection bool) {
		s := mustStep(t, id, n).WithRequiresSelection(selection)
		require.NoError(t, cat.AddStep(s))
		steps[id] = s
	}
	add("incision", procedure.Always(), false)
	add("vessel-compression", procedure.Always(), false)
	add("retraction", procedure.Always(), false)
	add("amputation", procedure.Always(), false)
	add("stump-closure", procedure.FeaturePresent("stump"), false)
	add("organ-excision", procedure.Always(), true)
	add("suture", procedure.Always(), false)
	add("cauterization", procedure.Always(), false)
	add("organ-selection", procedure.Always(), false)

	addOp := func(id string, effect procedure.Effect, ids ...string) {
		list := make([]procedure.Step, 0, len(ids))
		for _, s := range ids {
			list = append(list, steps[s])
		}
		op, err := procedure.NewOperation(id, "", list)
		require.NoError(t, err)
		require.NoError(t, cat.AddOperation(op.WithEffect(effect)))
	}
	addOp("amputation", procedure.EffectAmputation, "incision", "vessel-compression", "retraction", "amputation")
	addOp("organ-removal", procedure.EffectOrganExtraction, "incision", "retraction", "organ-excision", "suture")
	addOp("stump-revision", procedure.EffectNone, "incision", "stump-closure", "suture")
	require.NoError(t, cat.Validate())
	return cat
}

type fixture struct {
	engine  *Engine
	body    *fakeBody
	notes   *recorder
	metrics *countingMetrics
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	f := fixture{body: newFakeBody(), notes: &recorder{}, metrics: &countingMetrics{}}
	all := append([]Option{WithBody(f.body), WithNotifier(f.notes), WithMetrics(f.metrics)}, opts...)
	e, err := NewEngine(testCatalog(t), all...)
	require.NoError(t, err)
	f.engine = e
	return f
}

func (f fixture) step(ctx context.Context, target EntityID, id string) StepOutcome {
	return f.engine.PerformStep(ctx, surgeon, target, StepTool(procedure.StepID(id), 0))
}

// assertConsistent checks that both records point at each other or neither does.
func assertConsistent(t *testing.T, e *Engine, actor, target EntityID) {
	t.Helper()
	av, _ := e.Actor(actor)
	tv, _ := e.Target(target)
	assert.Equal(t, av.Target == target, tv.Surgeon == actor, "actor/target records diverged")
	if !tv.Busy() {
		assert.Empty(t, tv.Completed)
	}
}

func TestNewEngine_NilCatalog(t *testing.T) {
	t.Parallel()
	_, err := NewEngine(nil)
	assert.ErrorIs(t, err, ErrNilCatalog)
}

func TestEngine_AmputationScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.engine.TryStart(ctx, surgeon, arm, "amputation"))
	assertConsistent(t, f.engine, surgeon, arm)

	err := f.engine.TryStart(ctx, surgeon, arm, "amputation")
	assert.ErrorIs(t, err, ErrAlreadyInProgress)

	assert.Equal(t, OutcomeRejected, f.step(ctx, arm, "amputation"))
	assert.Equal(t, OutcomeCommitted, f.step(ctx, arm, "incision"))
	assert.Equal(t, OutcomeRejected, f.step(ctx, arm, "incision"))

	tv, ok := f.engine.Target(arm)
	require.True(t, ok)
	assert.Equal(t, []procedure.StepID{"incision"}, tv.Completed)

	for _, id := range []string{"vessel-compression", "retraction", "amputation"} {
		assert.Equal(t, OutcomeCommitted, f.step(ctx, arm, id), id)
		assertConsistent(t, f.engine, surgeon, arm)
	}

	assert.Equal(t, []EntityID{arm}, f.body.detachedParts())
	tv, _ = f.engine.Target(arm)
	assert.False(t, tv.Busy())
	assert.Empty(t, tv.Completed)
	assert.False(t, f.engine.IsInProgress(surgeon))
	assert.Equal(t, 1, f.notes.count(KindOperationCompleted))
	assert.Equal(t, 0, f.notes.count(KindOperationStopped))
	assert.Equal(t, 1, f.metrics.completed)
	assert.Equal(t, 0, f.metrics.aborted)

	// The finished operation accepts nothing further.
	assert.Equal(t, OutcomeRejected, f.step(ctx, arm, "amputation"))
	assert.Len(t, f.body.detachedParts(), 1)
}

func TestEngine_CancelScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	cautery := CauteryTool(0)

	assert.Equal(t, OutcomeRejected, f.engine.PerformStep(ctx, surgeon, arm, cautery))

	require.NoError(t, f.engine.TryStart(ctx, surgeon, arm, "amputation"))
	av, ok := f.engine.Actor(surgeon)
	require.True(t, ok)
	assert.Equal(t, arm, av.Target)
	assert.True(t, av.HasCancellation)

	assert.Equal(t, OutcomeCommitted, f.engine.PerformStep(ctx, surgeon, arm, cautery))

	av, _ = f.engine.Actor(surgeon)
	assert.True(t, av.Target.IsZero())
	assert.False(t, av.HasCancellation)
	tv, _ := f.engine.Target(arm)
	assert.True(t, tv.Surgeon.IsZero())
	assert.False(t, tv.Busy())
	assert.Empty(t, f.body.detachedParts())
	assert.Equal(t, 1, f.notes.count(KindOperationStopped))
	assert.Equal(t, 1, f.metrics.aborted)
}

func TestEngine_InterruptionScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.engine.TryStart(ctx, surgeon, arm, "amputation"))
	require.Equal(t, OutcomeCommitted, f.step(ctx, arm, "incision"))

	a := f.engine.AttemptStep(ctx, surgeon, arm, StepTool("vessel-compression", time.Hour))
	require.Equal(t, OutcomeDelayStarted, a.Outcome())
	av, _ := f.engine.Actor(surgeon)
	assert.True(t, av.Pending)

	assert.True(t, f.engine.Interrupt(ctx, surgeon, ReasonMovement))

	outcome, err := a.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInterrupted, outcome)

	tv, _ := f.engine.Target(arm)
	assert.Equal(t, []procedure.StepID{"incision"}, tv.Completed)
	assert.True(t, f.engine.IsPerformingOn(surgeon, arm))
	assert.Equal(t, 1, f.notes.count(KindStepInterrupted))
	assert.False(t, f.engine.Interrupt(ctx, surgeon, ReasonMovement))
}

func TestEngine_DelayedStepCommits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.engine.TryStart(ctx, surgeon, arm, "amputation"))
	a := f.engine.AttemptStep(ctx, surgeon, arm, StepTool("incision", 10*time.Millisecond))
	assert.Equal(t, OutcomeDelayStarted, a.Outcome())
	assert.Equal(t, OutcomeDelayStarted, a.Result())

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	outcome, err := a.Wait(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, outcome)
	assert.Equal(t, OutcomeDelayStarted, a.Outcome())

	tv, _ := f.engine.Target(arm)
	assert.Equal(t, []procedure.StepID{"incision"}, tv.Completed)
	assert.Equal(t, 1, f.notes.count(KindStepDelayBegin))
}

func TestEngine_DelayScaleZeroMakesStepsImmediate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, WithDelayScale(0))

	require.NoError(t, f.engine.TryStart(ctx, surgeon, arm, "amputation"))
	a := f.engine.AttemptStep(ctx, surgeon, arm, StepTool("incision", time.Hour))
	assert.Equal(t, OutcomeCommitted, a.Outcome())
}

func TestEngine_ReentrantAttemptRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.engine.TryStart(ctx, surgeon, arm, "amputation"))
	first := f.engine.AttemptStep(ctx, surgeon, arm, StepTool("incision", time.Hour))
	require.Equal(t, OutcomeDelayStarted, first.Outcome())

	second := f.engine.AttemptStep(ctx, surgeon, arm, StepTool("incision", 0))
	assert.Equal(t, OutcomeRejected, second.Outcome())
	assert.Equal(t, OutcomeRejected, second.Result())

	// Cauterizing while a step is pending is also refused.
	assert.Equal(t, OutcomeRejected, f.engine.AttemptStep(ctx, surgeon, arm, CauteryTool(0)).Outcome())
	assert.True(t, f.engine.IsInProgress(surgeon))

	f.engine.Interrupt(ctx, surgeon, ReasonCancelled)
	<-first.Done()
}

func TestEngine_StopDuringDelayNeverCommits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.engine.TryStart(ctx, surgeon, arm, "amputation"))
	a := f.engine.AttemptStep(ctx, surgeon, arm, StepTool("incision", 20*time.Millisecond))
	require.Equal(t, OutcomeDelayStarted, a.Outcome())

	assert.True(t, f.engine.Stop(ctx, surgeon))
	select {
	case <-a.Done():
	default:
		t.Fatal("stop must settle the pending attempt before returning")
	}
	assert.Equal(t, OutcomeInterrupted, a.Result())

	time.Sleep(50 * time.Millisecond)
	tv, _ := f.engine.Target(arm)
	assert.Empty(t, tv.Completed)
	assert.False(t, tv.Busy())
	assertConsistent(t, f.engine, surgeon, arm)
}

func TestEngine_CallerContextCancelsDelay(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	require.NoError(t, f.engine.TryStart(context.Background(), surgeon, arm, "amputation"))
	ctx, cancel := context.WithCancel(context.Background())
	a := f.engine.AttemptStep(ctx, surgeon, arm, StepTool("incision", time.Hour))
	cancel()

	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("attempt did not resolve after context cancellation")
	}
	assert.Equal(t, OutcomeInterrupted, a.Result())
	assert.True(t, f.engine.IsInProgress(surgeon))
}

func TestEngine_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.engine.TryStart(ctx, surgeon, arm, "amputation"))
	require.Equal(t, OutcomeCommitted, f.step(ctx, arm, "incision"))

	assert.True(t, f.engine.Stop(ctx, surgeon))
	before, _ := f.engine.Target(arm)
	assert.False(t, f.engine.Stop(ctx, surgeon))
	after, _ := f.engine.Target(arm)
	assert.Equal(t, before, after)
	assert.Equal(t, 1, f.notes.count(KindOperationStopped))
}

func TestEngine_StopOnIsGuarded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.engine.TryStart(ctx, surgeon, arm, "amputation"))
	assert.False(t, f.engine.StopOn(ctx, surgeon, torso))
	assert.True(t, f.engine.IsPerformingOn(surgeon, arm))
	assert.True(t, f.engine.StopOn(ctx, surgeon, arm))
	assert.False(t, f.engine.IsPerformingOn(surgeon, arm))
}

func TestEngine_OutOfOrderAttemptsNeverMutate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.engine.TryStart(ctx, surgeon, arm, "amputation"))
	for _, id := range []string{"retraction", "amputation", "vessel-compression", "suture"} {
		assert.Equal(t, OutcomeRejected, f.step(ctx, arm, id), id)
	}
	tv, _ := f.engine.Target(arm)
	assert.Empty(t, tv.Completed)
	assert.Equal(t, 4, f.notes.count(KindStepFailed))
}

func TestEngine_SkipLaw(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unnecessary step is skipped", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.engine.TryStart(ctx, surgeon, arm, "stump-revision"))
		require.Equal(t, OutcomeCommitted, f.step(ctx, arm, "incision"))

		next, ok := f.engine.NextStep(arm)
		require.True(t, ok)
		assert.Equal(t, procedure.StepID("suture"), next)

		assert.Equal(t, OutcomeRejected, f.step(ctx, arm, "stump-closure"))
		assert.Equal(t, OutcomeCommitted, f.step(ctx, arm, "suture"))
		assert.Equal(t, 1, f.notes.count(KindOperationCompleted))
		assert.False(t, f.engine.IsInProgress(surgeon))
	})

	t.Run("necessary step is required", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.body.setFeature(arm, "stump", true)
		require.NoError(t, f.engine.TryStart(ctx, surgeon, arm, "stump-revision"))
		require.Equal(t, OutcomeCommitted, f.step(ctx, arm, "incision"))

		assert.Equal(t, OutcomeRejected, f.step(ctx, arm, "suture"))
		assert.Equal(t, OutcomeCommitted, f.step(ctx, arm, "stump-closure"))
		assert.Equal(t, OutcomeCommitted, f.step(ctx, arm, "suture"))
		assert.Equal(t, 1, f.notes.count(KindOperationCompleted))
	})

	t.Run("necessity is evaluated live", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.engine.TryStart(ctx, surgeon, arm, "stump-revision"))
		require.Equal(t, OutcomeCommitted, f.step(ctx, arm, "incision"))

		f.body.setFeature(arm, "stump", true)
		next, ok := f.engine.NextStep(arm)
		require.True(t, ok)
		assert.Equal(t, procedure.StepID("stump-closure"), next)

		tv, _ := f.engine.Target(arm)
		assert.NotContains(t, tv.Completed, procedure.StepID("stump-closure"))
	})
}

func TestEngine_StartErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	assert.ErrorIs(t, f.engine.TryStart(ctx, surgeon, arm, "transplant"), ErrUnknownOperation)
	assert.ErrorIs(t, f.engine.TryStart(ctx, "", arm, "amputation"), ErrEmptyEntity)

	require.NoError(t, f.engine.TryStart(ctx, surgeon, arm, "amputation"))
	err := f.engine.TryStart(ctx, "assistant", arm, "amputation")
	assert.ErrorIs(t, err, ErrTargetBusy)
	assert.False(t, f.engine.IsInProgress("assistant"))
	assertConsistent(t, f.engine, surgeon, arm)
	assertConsistent(t, f.engine, "assistant", arm)
}

func TestEngine_SelectionGatesExcision(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	assert.ErrorIs(t, f.engine.Select(ctx, surgeon, heart), ErrNotPerforming)

	require.NoError(t, f.engine.TryStart(ctx, surgeon, torso, "organ-removal"))
	require.Equal(t, OutcomeCommitted, f.step(ctx, torso, "incision"))
	require.Equal(t, OutcomeCommitted, f.step(ctx, torso, "retraction"))

	assert.Equal(t, OutcomeRejected, f.step(ctx, torso, "organ-excision"))

	assert.Equal(t, OutcomeCommitted, f.engine.PerformStep(ctx, surgeon, torso, SelectionTool()))
	assert.Equal(t, 1, f.notes.count(KindSelectionRequested))

	assert.ErrorIs(t, f.engine.Select(ctx, surgeon, ""), ErrEmptySelection)
	assert.ErrorIs(t, f.engine.Select(ctx, surgeon, torso), ErrSelfAsOrgan)
	require.NoError(t, f.engine.Select(ctx, surgeon, heart))
	assert.ErrorIs(t, f.engine.Select(ctx, surgeon, heart), ErrSelectionTaken)
	assert.Equal(t, OutcomeRejected, f.engine.PerformStep(ctx, surgeon, torso, SelectionTool()))

	assert.Equal(t, OutcomeCommitted, f.step(ctx, torso, "organ-excision"))
	assert.Equal(t, OutcomeCommitted, f.step(ctx, torso, "suture"))

	assert.False(t, f.body.HasOrgan(torso, heart))
	assert.Equal(t, []EntityID{heart}, f.body.removed)

	av, _ := f.engine.Actor(surgeon)
	assert.True(t, av.Selection.IsZero())
}

func TestEngine_RemovalHooks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("removing the target stops its surgeon", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.engine.TryStart(ctx, surgeon, arm, "amputation"))
		a := f.engine.AttemptStep(ctx, surgeon, arm, StepTool("incision", time.Hour))

		f.engine.RemoveTarget(ctx, arm)
		assert.Equal(t, OutcomeInterrupted, a.Result())
		assert.False(t, f.engine.IsInProgress(surgeon))
		_, ok := f.engine.Target(arm)
		assert.False(t, ok)
	})

	t.Run("removing the surgeon clears the target", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.engine.TryStart(ctx, surgeon, arm, "amputation"))
		require.Equal(t, OutcomeCommitted, f.step(ctx, arm, "incision"))

		f.engine.RemoveActor(ctx, surgeon)
		_, ok := f.engine.Actor(surgeon)
		assert.False(t, ok)
		tv, _ := f.engine.Target(arm)
		assert.False(t, tv.Busy())
		assert.True(t, tv.Surgeon.IsZero())

		require.NoError(t, f.engine.TryStart(ctx, "assistant", arm, "amputation"))
	})
}

func TestEngine_IsSelfTarget(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.engine.TryStart(ctx, patient, arm, "amputation"))
	assert.True(t, f.engine.IsSelfTarget(patient))
	assert.False(t, f.engine.IsSelfTarget(surgeon))

	require.NoError(t, f.engine.TryStart(ctx, surgeon, torso, "organ-removal"))
	assert.False(t, f.engine.IsSelfTarget(surgeon))
}

func TestEngine_PhaseMachineFollowsRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	assert.Equal(t, PhaseIdle, f.engine.Phase(surgeon))
	require.NoError(t, f.engine.TryStart(ctx, surgeon, arm, "amputation"))
	assert.Eventually(t, func() bool {
		return f.engine.Phase(surgeon) == PhaseOperating
	}, time.Second, 5*time.Millisecond)

	a := f.engine.AttemptStep(ctx, surgeon, arm, StepTool("incision", time.Hour))
	assert.Eventually(t, func() bool {
		return f.engine.Phase(surgeon) == PhaseDelaying
	}, time.Second, 5*time.Millisecond)

	f.engine.Interrupt(ctx, surgeon, ReasonDamage)
	<-a.Done()
	assert.Eventually(t, func() bool {
		return f.engine.Phase(surgeon) == PhaseOperating
	}, time.Second, 5*time.Millisecond)

	f.engine.Stop(ctx, surgeon)
	assert.Eventually(t, func() bool {
		return f.engine.Phase(surgeon) == PhaseIdle
	}, time.Second, 5*time.Millisecond)
}

func TestEngine_MetricsAndSpans(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	f := newFixture(t, WithTracer(tp.Tracer("test")))

	require.NoError(t, f.engine.TryStart(ctx, surgeon, arm, "amputation"))
	f.step(ctx, arm, "retraction")
	f.step(ctx, arm, "incision")
	f.engine.Stop(ctx, surgeon)

	assert.Equal(t, 1, f.metrics.started)
	assert.Equal(t, 1, f.metrics.aborted)
	assert.Equal(t, 1, f.metrics.outcomes[OutcomeRejected])
	assert.Equal(t, 1, f.metrics.outcomes[OutcomeCommitted])

	names := make([]string, 0, len(spans.Ended()))
	for _, s := range spans.Ended() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"surgery.TryStart", "surgery.AttemptStep", "surgery.AttemptStep", "surgery.Stop"}, names)
}

func TestEngine_EffectWithNothingToApplyIsLogged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	core, logs := observer.New(zapcore.DebugLevel)
	f := newFixture(t, WithLogger(logging.WrapZap(zap.New(core), ports.LevelDebug)))

	require.NoError(t, f.engine.TryStart(ctx, surgeon, arm, "amputation"))
	for _, id := range []string{"incision", "vessel-compression", "retraction"} {
		require.Equal(t, OutcomeCommitted, f.step(ctx, arm, id))
	}
	require.True(t, f.body.Detach(arm))
	require.Equal(t, OutcomeCommitted, f.step(ctx, arm, "amputation"))

	assert.Equal(t, 1, f.notes.count(KindOperationCompleted))
	warned := logs.FilterMessage("effect had nothing to apply").All()
	require.Len(t, warned, 1)
	assert.Equal(t, zapcore.WarnLevel, warned[0].Level)
	assert.Equal(t, "amputation", warned[0].ContextMap()["effect"])
	assert.Equal(t, 1, logs.FilterMessage("operation completed").Len())
}

func TestEngine_NotifierMayReenter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var e *Engine
	var sawCompleted bool
	notifier := NotifierFunc(func(n Notification) {
		if n.Kind == KindOperationCompleted {
			sawCompleted = true
			assert.False(t, e.IsInProgress(n.Actor))
		}
	})
	e, err := NewEngine(testCatalog(t), WithNotifier(notifier), WithBody(newFakeBody()))
	require.NoError(t, err)

	require.NoError(t, e.TryStart(ctx, surgeon, arm, "amputation"))
	for _, id := range []string{"incision", "vessel-compression", "retraction", "amputation"} {
		require.Equal(t, OutcomeCommitted, e.PerformStep(ctx, surgeon, arm, StepTool(procedure.StepID(id), 0)))
	}
	assert.True(t, sawCompleted)
}
