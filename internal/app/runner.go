package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/felixgeelhaar/theatre/internal/adapters/world"
	"github.com/felixgeelhaar/theatre/internal/domain/procedure"
	"github.com/felixgeelhaar/theatre/internal/domain/surgery"
	"github.com/felixgeelhaar/theatre/internal/ports"
)

// ErrExpectationFailed is returned when a scenario check does not hold.
var ErrExpectationFailed = errors.New("scenario expectation failed")

// Entry records what one scenario action did.
type Entry struct {
	Index  int
	Kind   ActionKind
	Detail string
}

// String formats the entry for reports.
func (e Entry) String() string {
	return fmt.Sprintf("%2d. %-9s %s", e.Index, e.Kind, e.Detail)
}

// Report is the outcome of a scenario run.
type Report struct {
	Scenario string
	Entries  []Entry
	Elapsed  time.Duration
}

// ActionError points at the scenario action that failed.
type ActionError struct {
	Index  int
	Kind   ActionKind
	Reason error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %d (%s): %v", e.Index, e.Kind, e.Reason)
}

func (e *ActionError) Unwrap() error {
	return e.Reason
}

type runner struct {
	theatre  *Theatre
	pending  []*surgery.Attempt
	report   *Report
	sleepFor func(ctx context.Context, d time.Duration) error
}

// Run executes the scenario against the theatre's world. It stops at the
// first failing action and returns the partial report with the error.
func (t *Theatre) Run(ctx context.Context, sc *Scenario) (*Report, error) {
	r := &runner{
		theatre:  t,
		report:   &Report{Scenario: sc.Name},
		sleepFor: sleep,
	}
	start := time.Now()
	defer func() { r.report.Elapsed = time.Since(start) }()

	t.logger.Info(ctx, "scenario started", ports.F("scenario", sc.Name), ports.F("actions", len(sc.Actions)))
	for i, a := range sc.Actions {
		detail, err := r.step(ctx, a)
		if err != nil {
			t.logger.Warn(ctx, "scenario action failed",
				ports.F("scenario", sc.Name), ports.F("index", i+1), ports.Err(err))
			return r.report, &ActionError{Index: i + 1, Kind: a.Kind, Reason: err}
		}
		r.report.Entries = append(r.report.Entries, Entry{Index: i + 1, Kind: a.Kind, Detail: detail})
	}
	if err := r.drain(ctx); err != nil {
		return r.report, err
	}
	t.logger.Info(ctx, "scenario finished", ports.F("scenario", sc.Name))
	return r.report, nil
}

func (r *runner) step(ctx context.Context, a Action) (string, error) {
	switch a.Kind {
	case ActionSpawn:
		return r.spawn(a)
	case ActionDrape:
		return r.drape(ctx, a)
	case ActionUse:
		return r.use(ctx, a)
	case ActionChoose:
		return r.choose(ctx, a)
	case ActionInterrupt:
		return r.interrupt(ctx, a)
	case ActionWait:
		return r.wait(ctx, a)
	case ActionDespawn:
		return r.despawn(ctx, a)
	case ActionExpect:
		return r.expect(a)
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidScenario, a.Kind)
	}
}

func (r *runner) resolve(name string) (surgery.EntityID, error) {
	id, ok := r.theatre.world.Resolve(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", world.ErrUnknownEntity, name)
	}
	return id, nil
}

func (r *runner) spawn(a Action) (string, error) {
	w := r.theatre.world
	body, err := w.SpawnBody(a.Body)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(a.Parts))
	for _, p := range a.Parts {
		part, err := w.AttachPart(body, p.Name, p.Features...)
		if err != nil {
			return "", err
		}
		for _, organ := range p.Organs {
			if _, err := w.AddOrgan(part, organ); err != nil {
				return "", err
			}
		}
		parts = append(parts, p.Name)
	}
	if len(parts) == 0 {
		return a.Body, nil
	}
	return fmt.Sprintf("%s with %s", a.Body, strings.Join(parts, ", ")), nil
}

func (r *runner) drape(ctx context.Context, a Action) (string, error) {
	surgeon, err := r.resolve(a.Surgeon)
	if err != nil {
		return "", err
	}
	target, err := r.resolve(a.Target)
	if err != nil {
		return "", err
	}
	result, err := r.theatre.Drape(ctx, surgeon, target, a.Operation)
	if err := expectError(a.Error, err); err != nil {
		return "", err
	}
	if err != nil {
		return fmt.Sprintf("%s on %s refused: %v", a.Operation, a.Target, err), nil
	}
	if a.Result != "" && a.Result != string(result) {
		return "", fmt.Errorf("%w: drape %s, want %s", ErrExpectationFailed, result, a.Result)
	}
	return fmt.Sprintf("%s on %s: %s", a.Operation, a.Target, result), nil
}

func (r *runner) use(ctx context.Context, a Action) (string, error) {
	surgeon, err := r.resolve(a.Surgeon)
	if err != nil {
		return "", err
	}
	target, err := r.resolve(a.Target)
	if err != nil {
		return "", err
	}
	attempt, err := r.theatre.UseTool(ctx, surgeon, target, a.Tool)
	if err := expectError(a.Error, err); err != nil {
		return "", err
	}
	if err != nil {
		return fmt.Sprintf("%s refused: %v", a.Tool, err), nil
	}

	outcome := attempt.Outcome()
	if a.Await {
		if outcome, err = attempt.Wait(ctx); err != nil {
			return "", err
		}
	} else if !outcome.Final() {
		r.pending = append(r.pending, attempt)
	}
	if a.Outcome != "" && a.Outcome != string(outcome) {
		return "", fmt.Errorf("%w: %s on %s was %s, want %s", ErrExpectationFailed, a.Tool, a.Target, outcome, a.Outcome)
	}
	return fmt.Sprintf("%s on %s: %s", a.Tool, a.Target, outcome), nil
}

func (r *runner) choose(ctx context.Context, a Action) (string, error) {
	surgeon, err := r.resolve(a.Surgeon)
	if err != nil {
		return "", err
	}
	organ, err := r.resolve(a.Organ)
	if err != nil {
		return "", err
	}
	err = r.theatre.ChooseOrgan(ctx, surgeon, organ)
	if err := expectError(a.Error, err); err != nil {
		return "", err
	}
	if err != nil {
		return fmt.Sprintf("%s refused: %v", a.Organ, err), nil
	}
	return a.Organ, nil
}

func (r *runner) interrupt(ctx context.Context, a Action) (string, error) {
	surgeon, err := r.resolve(a.Surgeon)
	if err != nil {
		return "", err
	}
	reason := surgery.InterruptReason(a.Reason)
	if r.theatre.Interrupt(ctx, surgeon, reason) {
		return fmt.Sprintf("%s interrupted (%s)", a.Surgeon, reason), nil
	}
	return fmt.Sprintf("%s had nothing pending", a.Surgeon), nil
}

func (r *runner) wait(ctx context.Context, a Action) (string, error) {
	if a.Duration == "" {
		if err := r.drain(ctx); err != nil {
			return "", err
		}
		return "all pending steps resolved", nil
	}
	d, err := a.waitFor()
	if err != nil {
		return "", err
	}
	if err := r.sleepFor(ctx, d); err != nil {
		return "", err
	}
	return d.String(), nil
}

func (r *runner) drain(ctx context.Context) error {
	for _, attempt := range r.pending {
		if _, err := attempt.Wait(ctx); err != nil {
			return err
		}
	}
	r.pending = nil
	return nil
}

func (r *runner) despawn(ctx context.Context, a Action) (string, error) {
	id, err := r.resolve(a.Target)
	if err != nil {
		return "", err
	}
	removed := r.theatre.Despawn(ctx, id)
	return fmt.Sprintf("%s (%d entities)", a.Target, len(removed)), nil
}

func (r *runner) expect(a Action) (string, error) {
	var checks []string
	fail := func(format string, args ...any) (string, error) {
		return "", fmt.Errorf("%w: %s", ErrExpectationFailed, fmt.Sprintf(format, args...))
	}

	if a.Surgeon != "" {
		surgeon, err := r.resolve(a.Surgeon)
		if err != nil {
			return "", err
		}
		engine := r.theatre.engine
		if a.Performing != nil {
			if got := engine.IsInProgress(surgeon); got != *a.Performing {
				return fail("%s performing is %t, want %t", a.Surgeon, got, *a.Performing)
			}
			checks = append(checks, fmt.Sprintf("performing=%t", *a.Performing))
		}
		if a.Phase != "" {
			if got := engine.Phase(surgeon); string(got) != a.Phase {
				return fail("%s phase is %s, want %s", a.Surgeon, got, a.Phase)
			}
			checks = append(checks, "phase="+a.Phase)
		}
	}

	if a.Target == "" {
		return strings.Join(checks, " "), nil
	}

	id, exists := r.theatre.world.Resolve(a.Target)
	if a.Exists != nil {
		if exists != *a.Exists {
			return fail("%s exists is %t, want %t", a.Target, exists, *a.Exists)
		}
		checks = append(checks, fmt.Sprintf("exists=%t", exists))
	}
	if !exists {
		if a.NextStep != nil || a.Features != nil || a.Organs != nil {
			return fail("%s does not exist", a.Target)
		}
		return strings.Join(checks, " "), nil
	}

	if a.NextStep != nil {
		next, _ := r.theatre.engine.NextStep(id)
		if next != procedure.StepID(*a.NextStep) {
			return fail("%s next step is %q, want %q", a.Target, next, *a.NextStep)
		}
		checks = append(checks, "next_step="+*a.NextStep)
	}
	for _, f := range a.Features {
		if !r.theatre.world.HasFeature(id, f) {
			return fail("%s lacks feature %s", a.Target, f)
		}
		checks = append(checks, "feature="+f)
	}
	if a.Organs != nil {
		got := r.organNames(id)
		want := slices.Clone(a.Organs)
		slices.Sort(want)
		if !slices.Equal(got, want) {
			return fail("%s organs are %v, want %v", a.Target, got, want)
		}
		checks = append(checks, fmt.Sprintf("organs=%v", want))
	}
	return strings.Join(checks, " "), nil
}

func (r *runner) organNames(part surgery.EntityID) []string {
	names := []string{}
	for _, child := range r.theatre.world.Children(part) {
		if child.Kind == world.KindOrgan {
			names = append(names, child.Name)
		}
	}
	return names
}

// expectError checks err against the expected substring. Unexpected errors
// come back unchanged.
func expectError(want string, err error) error {
	switch {
	case want == "" && err != nil:
		return err
	case want != "" && err == nil:
		return fmt.Errorf("%w: expected error containing %q", ErrExpectationFailed, want)
	case want != "" && !strings.Contains(err.Error(), want):
		return fmt.Errorf("%w: error %q does not contain %q", ErrExpectationFailed, err, want)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
