package stages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dod-ccpo/atat-sub000/pkg/models"
)

// ErrStageMisconfigured indicates the stage list itself is broken. It is
// fatal at startup and never recoverable at runtime.
var ErrStageMisconfigured = errors.New("stage misconfigured")

// RunFunc executes one stage: it assembles the stage's typed payload from
// the accumulated provisioning data, calls the driver, and returns the
// stage's result keys to merge back into the accumulated data.
type RunFunc func(ctx context.Context, data models.JSONB) (models.JSONB, error)

// Descriptor statically binds a stage name to its execution. The binding is
// explicit registration, not name-based lookup, so a missing pairing is a
// construction-time error.
type Descriptor struct {
	Name StageName
	Run  RunFunc
}

// Registry holds the fixed, ordered stage list and the state/transition
// tables generated from it. One registry is built at process start and
// shared by every state machine instance; only the current state value is
// per-portfolio data.
type Registry struct {
	order   []StageName
	byName  map[StageName]Descriptor
	states  map[string]State
	forward map[string]Transition
}

// NewRegistry builds a registry from an ordered descriptor list.
func NewRegistry(descriptors []Descriptor) (*Registry, error) {
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("%w: empty stage list", ErrStageMisconfigured)
	}

	r := &Registry{
		byName: make(map[StageName]Descriptor, len(descriptors)),
		states: make(map[string]State),
	}

	for _, d := range descriptors {
		if d.Name == "" {
			return nil, fmt.Errorf("%w: descriptor with empty name", ErrStageMisconfigured)
		}
		if d.Run == nil {
			return nil, fmt.Errorf("%w: stage %s has no run binding", ErrStageMisconfigured, d.Name)
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate stage %s", ErrStageMisconfigured, d.Name)
		}
		r.byName[d.Name] = d
		r.order = append(r.order, d.Name)
	}

	for _, sys := range []SystemState{Unstarted, Starting, Started, SystemFailed, Completed} {
		st := SystemStateOf(sys)
		r.states[st.String()] = st
	}
	for _, name := range r.order {
		for _, phase := range []Phase{PhaseInProgress, PhaseCreated, PhaseFailed} {
			st := StageStateOf(name, phase)
			if _, dup := r.states[st.String()]; dup {
				return nil, fmt.Errorf("%w: state collision at %s", ErrStageMisconfigured, st)
			}
			r.states[st.String()] = st
		}
	}

	r.buildTransitions()

	return r, nil
}

// Stages returns the stage order. The slice must not be mutated.
func (r *Registry) Stages() []StageName {
	return r.order
}

// First returns the first stage.
func (r *Registry) First() StageName {
	return r.order[0]
}

// Last returns the final stage.
func (r *Registry) Last() StageName {
	return r.order[len(r.order)-1]
}

// Next returns the stage after name, or false if name is the last stage.
func (r *Registry) Next(name StageName) (StageName, bool) {
	for i, s := range r.order {
		if s == name {
			if i+1 < len(r.order) {
				return r.order[i+1], true
			}
			return "", false
		}
	}
	return "", false
}

// Descriptor returns the descriptor for a stage.
func (r *Registry) Descriptor(name StageName) (Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// StateFor returns the generated state for a (stage, phase) pair. It is
// total over the registry's stages.
func (r *Registry) StateFor(name StageName, phase Phase) State {
	return StageStateOf(name, phase)
}

// ParseState decodes a persisted state string.
func (r *Registry) ParseState(encoded string) (State, error) {
	if st, ok := r.states[encoded]; ok {
		return st, nil
	}
	return State{}, &ErrUnknownState{Encoded: encoded}
}

// StateCount returns the total number of generated states: five system
// states plus three per stage.
func (r *Registry) StateCount() int {
	return len(r.states)
}

// decodePayload assembles a typed payload from accumulated data via its
// JSON field tags.
func decodePayload(data models.JSONB, payload interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal accumulated data: %w", err)
	}
	if err := json.Unmarshal(raw, payload); err != nil {
		return fmt.Errorf("decode stage payload: %w", err)
	}
	return nil
}

// encodeResult flattens a typed stage result into its result keys.
func encodeResult(result interface{}) (models.JSONB, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal stage result: %w", err)
	}
	var out models.JSONB
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("flatten stage result: %w", err)
	}
	return out, nil
}
