package surgery

import "github.com/felixgeelhaar/theatre/internal/domain/procedure"

// progress is the result of aligning an operation's steps with the steps
// already completed on a target.
type progress struct {
	next     procedure.Step
	hasNext  bool
	consumed int
	skipped  []procedure.StepID
}

// complete reports whether every completed entry lined up with the operation
// and no necessary step remains.
func (p progress) complete(completed int) bool {
	return !p.hasNext && p.consumed == completed
}

// resolveProgress walks the operation once. Entries of completed are matched
// in order; until all of them are consumed, unmatched positions are steps that
// were skipped earlier. After that, the first necessary step is next and
// unnecessary ones are skipped. Necessity is evaluated against the live
// subject on every call.
func resolveProgress(op procedure.Operation, completed []procedure.StepID, subject procedure.Subject) progress {
	var p progress
	steps := op.Steps()
	for _, step := range steps {
		if p.consumed < len(completed) {
			if step.ID() == completed[p.consumed] {
				p.consumed++
			}
			continue
		}
		if !step.Necessary(subject) {
			p.skipped = append(p.skipped, step.ID())
			continue
		}
		p.next = step
		p.hasNext = true
		return p
	}
	return p
}

// bodySubject adapts the Body port to the necessity predicate's view of a target.
type bodySubject struct {
	body   Body
	target EntityID
}

func (s bodySubject) HasFeature(feature string) bool {
	return s.body.HasFeature(s.target, feature)
}
