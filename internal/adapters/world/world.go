// Package world is an in-memory anatomy: bodies made of parts, parts holding
// organs. It implements surgery.Body for the engine and mints identities with
// UUIDs.
package world

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/felixgeelhaar/theatre/internal/domain/surgery"
	"github.com/google/uuid"
)

// World errors.
var (
	ErrNameTaken     = errors.New("entity name already in use")
	ErrUnknownEntity = errors.New("unknown entity")
	ErrWrongKind     = errors.New("entity has the wrong kind")
)

// Kind classifies entities.
type Kind string

// Entity kinds.
const (
	KindBody  Kind = "body"
	KindPart  Kind = "part"
	KindOrgan Kind = "organ"
)

// FeatureDetached is set on a part once it has been amputated.
const FeatureDetached = "detached"

// Entity is a read-only snapshot of a world entity.
type Entity struct {
	ID       surgery.EntityID
	Name     string
	Kind     Kind
	Parent   surgery.EntityID
	Features []string
}

type entity struct {
	id       surgery.EntityID
	name     string
	kind     Kind
	parent   surgery.EntityID
	features map[string]bool
}

func (e *entity) snapshot() Entity {
	features := make([]string, 0, len(e.features))
	for f, ok := range e.features {
		if ok {
			features = append(features, f)
		}
	}
	sort.Strings(features)
	return Entity{ID: e.id, Name: e.name, Kind: e.kind, Parent: e.parent, Features: features}
}

// World holds every entity by identity and by unique name.
type World struct {
	mu       sync.RWMutex
	entities map[surgery.EntityID]*entity
	byName   map[string]surgery.EntityID
	newID    func() string
}

// Option configures a World.
type Option func(*World)

// WithIDSource replaces UUID minting, for deterministic output.
func WithIDSource(next func() string) Option {
	return func(w *World) {
		if next != nil {
			w.newID = next
		}
	}
}

// New creates an empty world.
func New(opts ...Option) *World {
	w := &World{
		entities: make(map[surgery.EntityID]*entity),
		byName:   make(map[string]surgery.EntityID),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SpawnBody creates a body.
func (w *World) SpawnBody(name string) (surgery.EntityID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.addLocked(name, KindBody, "", nil)
}

// AttachPart creates a part on body with the given features.
func (w *World) AttachPart(body surgery.EntityID, name string, features ...string) (surgery.EntityID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.expectLocked(body, KindBody); err != nil {
		return "", err
	}
	return w.addLocked(name, KindPart, body, features)
}

// AddOrgan places an organ inside part.
func (w *World) AddOrgan(part surgery.EntityID, name string) (surgery.EntityID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.expectLocked(part, KindPart); err != nil {
		return "", err
	}
	return w.addLocked(name, KindOrgan, part, nil)
}

func (w *World) addLocked(name string, kind Kind, parent surgery.EntityID, features []string) (surgery.EntityID, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrUnknownEntity)
	}
	if _, taken := w.byName[name]; taken {
		return "", fmt.Errorf("%w: %s", ErrNameTaken, name)
	}
	e := &entity{
		id:       surgery.EntityID(w.newID()),
		name:     name,
		kind:     kind,
		parent:   parent,
		features: make(map[string]bool, len(features)),
	}
	for _, f := range features {
		e.features[f] = true
	}
	w.entities[e.id] = e
	w.byName[name] = e.id
	return e.id, nil
}

func (w *World) expectLocked(id surgery.EntityID, kind Kind) error {
	e, ok := w.entities[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	if e.kind != kind {
		return fmt.Errorf("%w: %s is a %s, not a %s", ErrWrongKind, e.name, e.kind, kind)
	}
	return nil
}

// Resolve finds an entity by name.
func (w *World) Resolve(name string) (surgery.EntityID, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	id, ok := w.byName[name]
	return id, ok
}

// Name returns the entity's name, or its identifier if unknown.
func (w *World) Name(id surgery.EntityID) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if e, ok := w.entities[id]; ok {
		return e.name
	}
	return id.String()
}

// Entity returns a snapshot of id.
func (w *World) Entity(id surgery.EntityID) (Entity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.entities[id]
	if !ok {
		return Entity{}, false
	}
	return e.snapshot(), true
}

// Children lists the entities whose parent is id, by name.
func (w *World) Children(id surgery.EntityID) []Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []Entity
	for _, e := range w.entities {
		if e.parent == id {
			out = append(out, e.snapshot())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetFeature adds or removes a feature.
func (w *World) SetFeature(id surgery.EntityID, feature string, present bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	e.features[feature] = present
	return nil
}

// Despawn removes id and everything inside it. It returns the removed
// identities, deepest first, so callers can run removal hooks.
func (w *World) Despawn(id surgery.EntityID) []surgery.EntityID {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.entities[id]; !ok {
		return nil
	}
	var removed []surgery.EntityID
	var walk func(surgery.EntityID)
	walk = func(cur surgery.EntityID) {
		for childID, child := range w.entities {
			if child.parent == cur {
				walk(childID)
			}
		}
		e := w.entities[cur]
		delete(w.byName, e.name)
		delete(w.entities, cur)
		removed = append(removed, cur)
	}
	walk(id)
	return removed
}

// HasFeature implements surgery.Body.
func (w *World) HasFeature(target surgery.EntityID, feature string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.entities[target]
	return ok && e.features[feature]
}

// BodyOf implements surgery.Body.
func (w *World) BodyOf(part surgery.EntityID) (surgery.EntityID, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.entities[part]
	if !ok || e.kind != KindPart || e.parent.IsZero() {
		return "", false
	}
	return e.parent, true
}

// Detach implements surgery.Body. The part stays in the world, loose, and
// its former body gains a stump.
func (w *World) Detach(part surgery.EntityID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[part]
	if !ok || e.kind != KindPart || e.parent.IsZero() {
		return false
	}
	if body, ok := w.entities[e.parent]; ok {
		body.features["stump"] = true
	}
	e.parent = ""
	e.features[FeatureDetached] = true
	return true
}

// HasOrgan implements surgery.Body.
func (w *World) HasOrgan(part, organ surgery.EntityID) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.entities[organ]
	return ok && e.kind == KindOrgan && e.parent == part
}

// RemoveOrgan implements surgery.Body. The organ stays in the world, loose.
func (w *World) RemoveOrgan(part, organ surgery.EntityID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[organ]
	if !ok || e.kind != KindOrgan || e.parent != part {
		return false
	}
	e.parent = ""
	return true
}

var _ surgery.Body = (*World)(nil)
