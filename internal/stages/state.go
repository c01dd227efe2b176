package stages

import (
	"fmt"
	"strings"
)

// StageName identifies one provisioning stage.
type StageName string

// Phase is the sub-state of a stage.
type Phase int

const (
	PhaseInProgress Phase = iota
	PhaseCreated
	PhaseFailed
)

func (p Phase) Suffix() string {
	switch p {
	case PhaseInProgress:
		return "_IN_PROGRESS"
	case PhaseCreated:
		return "_CREATED"
	case PhaseFailed:
		return "_FAILED"
	default:
		return "_UNKNOWN"
	}
}

// SystemState is one of the five states not tied to any stage.
type SystemState int

const (
	Unstarted SystemState = iota
	Starting
	Started
	SystemFailed
	Completed
)

func (s SystemState) String() string {
	switch s {
	case Unstarted:
		return "UNSTARTED"
	case Starting:
		return "STARTING"
	case Started:
		return "STARTED"
	case SystemFailed:
		return "FAILED"
	case Completed:
		return "COMPLETED"
	default:
		return "UNKNOWN"
	}
}

// State is the provisioning state of one portfolio: either a system state or
// a (stage, phase) pair. The zero value is Unstarted.
type State struct {
	stage   StageName
	phase   Phase
	system  SystemState
	isStage bool
}

// SystemStateOf wraps a system state.
func SystemStateOf(s SystemState) State {
	return State{system: s}
}

// StageStateOf wraps a (stage, phase) pair.
func StageStateOf(name StageName, phase Phase) State {
	return State{stage: name, phase: phase, isStage: true}
}

// IsSystem reports whether the state is a system state.
func (s State) IsSystem() bool {
	return !s.isStage
}

// System returns the system state; only meaningful when IsSystem is true.
func (s State) System() SystemState {
	return s.system
}

// Stage returns the stage name; only meaningful when IsSystem is false.
func (s State) Stage() StageName {
	return s.stage
}

// Phase returns the stage phase; only meaningful when IsSystem is false.
func (s State) Phase() Phase {
	return s.phase
}

// String returns the stable encoding persisted to storage, e.g. "UNSTARTED"
// or "TENANT_IN_PROGRESS".
func (s State) String() string {
	if !s.isStage {
		return s.system.String()
	}
	return strings.ToUpper(string(s.stage)) + s.phase.Suffix()
}

// ErrUnknownState is returned by Registry.ParseState for encodings that do
// not name any generated state.
type ErrUnknownState struct {
	Encoded string
}

func (e *ErrUnknownState) Error() string {
	return fmt.Sprintf("unknown provisioning state %q", e.Encoded)
}
