package stages

// GuardKind names the condition a transition is gated on. Guards are
// interpreted by the state machine; the table itself stays static data.
type GuardKind int

const (
	GuardNone GuardKind = iota
	// GuardDataValid requires the accumulated provisioning data to be a
	// non-empty, well-formed mapping before a stage may finish.
	GuardDataValid
	// GuardReadyToResume gates re-entry from a stage's FAILED state; the
	// state machine applies its resume cooldown here.
	GuardReadyToResume
)

// HookKind names the side effect attached to a transition.
type HookKind int

const (
	HookNone HookKind = iota
	// HookRunStage executes the stage's driver call after entering its
	// IN_PROGRESS state.
	HookRunStage
)

// Transition is one edge of the generated transition table. AnySource marks
// the reset/fail catch-alls, which are valid from every state.
type Transition struct {
	Trigger   string
	Source    State
	Dest      State
	Guard     GuardKind
	After     HookKind
	Stage     StageName
	AnySource bool
}

// Triggers for the system transitions.
const (
	TriggerInit     = "init"
	TriggerStart    = "start"
	TriggerComplete = "complete"
	TriggerReset    = "reset"
	TriggerFail     = "fail"
)

// buildTransitions synthesizes the full table from the stage order:
//
//	UNSTARTED -init-> STARTING -start-> STARTED
//	STARTED -create_<s1>-> S1_IN_PROGRESS
//	Si_IN_PROGRESS -finish_<si>-> Si_CREATED   (guard: data valid)
//	Si_IN_PROGRESS -fail_<si>-> Si_FAILED
//	Si_FAILED -resume_progress_<si>-> Si_IN_PROGRESS (guard: ready to resume)
//	Si_CREATED -create_<si+1>-> Si+1_IN_PROGRESS
//	Sn_CREATED -complete-> COMPLETED
//	* -reset-> UNSTARTED, * -fail-> FAILED
//
// The forward map indexes the one stage-advancing transition per source
// state; fail_<stage> edges are fired from the run hook's error path and
// are deliberately excluded from it.
func (r *Registry) buildTransitions() {
	r.forward = make(map[string]Transition)

	add := func(t Transition) {
		if t.AnySource || t.Trigger == "" {
			return
		}
		key := t.Source.String()
		if _, taken := r.forward[key]; taken {
			return
		}
		r.forward[key] = t
	}

	add(Transition{Trigger: TriggerInit, Source: SystemStateOf(Unstarted), Dest: SystemStateOf(Starting)})
	add(Transition{Trigger: TriggerStart, Source: SystemStateOf(Starting), Dest: SystemStateOf(Started)})

	prevCreated := SystemStateOf(Started)
	for _, name := range r.order {
		inProgress := StageStateOf(name, PhaseInProgress)
		created := StageStateOf(name, PhaseCreated)
		failed := StageStateOf(name, PhaseFailed)

		add(Transition{
			Trigger: "create_" + string(name),
			Source:  prevCreated,
			Dest:    inProgress,
			After:   HookRunStage,
			Stage:   name,
		})
		add(Transition{
			Trigger: "finish_" + string(name),
			Source:  inProgress,
			Dest:    created,
			Guard:   GuardDataValid,
			Stage:   name,
		})
		add(Transition{
			Trigger: "resume_progress_" + string(name),
			Source:  failed,
			Dest:    inProgress,
			Guard:   GuardReadyToResume,
			After:   HookRunStage,
			Stage:   name,
		})

		prevCreated = created
	}

	add(Transition{
		Trigger: TriggerComplete,
		Source:  StageStateOf(r.Last(), PhaseCreated),
		Dest:    SystemStateOf(Completed),
	})
}

// Transitions returns the full generated table in stage order, including
// the fail_<stage> edges and the catch-alls. Used by operational tooling
// and tests; the state machine dispatches through TransitionFrom.
func (r *Registry) Transitions() []Transition {
	var out []Transition

	out = append(out,
		Transition{Trigger: TriggerInit, Source: SystemStateOf(Unstarted), Dest: SystemStateOf(Starting)},
		Transition{Trigger: TriggerStart, Source: SystemStateOf(Starting), Dest: SystemStateOf(Started)},
	)

	prevCreated := SystemStateOf(Started)
	for _, name := range r.order {
		inProgress := StageStateOf(name, PhaseInProgress)
		created := StageStateOf(name, PhaseCreated)
		failed := StageStateOf(name, PhaseFailed)

		out = append(out,
			Transition{Trigger: "create_" + string(name), Source: prevCreated, Dest: inProgress, After: HookRunStage, Stage: name},
			Transition{Trigger: "finish_" + string(name), Source: inProgress, Dest: created, Guard: GuardDataValid, Stage: name},
			Transition{Trigger: "fail_" + string(name), Source: inProgress, Dest: failed, Stage: name},
			Transition{Trigger: "resume_progress_" + string(name), Source: failed, Dest: inProgress, Guard: GuardReadyToResume, After: HookRunStage, Stage: name},
		)
		prevCreated = created
	}

	out = append(out,
		Transition{Trigger: TriggerComplete, Source: StageStateOf(r.Last(), PhaseCreated), Dest: SystemStateOf(Completed)},
		Transition{Trigger: TriggerReset, Dest: SystemStateOf(Unstarted), AnySource: true},
		Transition{Trigger: TriggerFail, Dest: SystemStateOf(SystemFailed), AnySource: true},
	)

	return out
}

// TransitionFrom returns the single stage-advancing transition out of the
// given state, if one exists. COMPLETED, FAILED, and every stage's FAILED
// state resolve as follows: COMPLETED and system FAILED have none; a
// stage's FAILED state resolves to its resume transition.
func (r *Registry) TransitionFrom(st State) (Transition, bool) {
	t, ok := r.forward[st.String()]
	return t, ok
}
