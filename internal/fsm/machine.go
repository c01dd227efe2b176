package fsm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dod-ccpo/atat-sub000/internal/stages"
	"github.com/dod-ccpo/atat-sub000/pkg/logging"
	"github.com/dod-ccpo/atat-sub000/pkg/models"
)

var (
	// ErrNoTransition means the portfolio's current state has no
	// stage-advancing transition: it is COMPLETED or hard-failed.
	ErrNoTransition = errors.New("no transition from current state")

	// ErrNotReadyToResume means the portfolio is in a stage FAILED state
	// but its recovery cooldown has not elapsed yet.
	ErrNotReadyToResume = errors.New("not ready to resume")

	// ErrStageDataInvalid means a stage's driver call returned but the
	// accumulated data failed the finish guard. The portfolio is left in
	// the stage's IN_PROGRESS state for an operator to inspect.
	ErrStageDataInvalid = errors.New("stage result data invalid")
)

// Store persists completed transitions. A state change and the accumulated
// data it produced are written in one transaction.
type Store interface {
	SaveTransition(ctx context.Context, portfolioID string, state string, data models.JSONB) error
}

// Machine drives one portfolio through the shared transition table. The
// registry and table are process-wide; the machine itself holds no
// per-portfolio state between calls.
type Machine struct {
	registry *stages.Registry
	store    Store
	log      logging.Logger

	resumeCooldown time.Duration

	// now is swapped in tests.
	now func() time.Time
}

// NewMachine builds a machine over the given registry and store.
// resumeCooldown is the minimum time a portfolio sits in a stage FAILED
// state before a dispatch may retry it.
func NewMachine(registry *stages.Registry, store Store, log logging.Logger, resumeCooldown time.Duration) *Machine {
	return &Machine{
		registry:       registry,
		store:          store,
		log:            log,
		resumeCooldown: resumeCooldown,
		now:            time.Now,
	}
}

// state decodes a portfolio's persisted state; a portfolio with no state
// machine row yet is UNSTARTED.
func (m *Machine) state(p *models.Portfolio) (stages.State, error) {
	if p.State == "" {
		return stages.SystemStateOf(stages.Unstarted), nil
	}
	return m.registry.ParseState(p.State)
}

// TriggerNextTransition fires the single transition available from the
// portfolio's current state and returns the persisted state:
//
//	UNSTARTED                 -> STARTING
//	STARTING                  -> STARTED
//	STARTED / <stage>_CREATED -> next stage executed, then its CREATED
//	<stage>_FAILED            -> stage re-executed after the cooldown
//	<last>_CREATED            -> COMPLETED
//
// extra is merged into the accumulated data before the stage payload is
// assembled, and persists with the stage result. A driver failure persists
// the stage's FAILED state with the data unchanged and returns the error.
func (m *Machine) TriggerNextTransition(ctx context.Context, p *models.Portfolio, extra models.JSONB) (stages.State, error) {
	current, err := m.state(p)
	if err != nil {
		return stages.State{}, err
	}

	t, ok := m.registry.TransitionFrom(current)
	if !ok {
		return current, fmt.Errorf("%w: %s", ErrNoTransition, current)
	}

	switch t.Guard {
	case stages.GuardReadyToResume:
		if !m.readyToResume(p) {
			return current, ErrNotReadyToResume
		}
	case stages.GuardDataValid:
		// A portfolio sitting in IN_PROGRESS was stuck on this guard at
		// its last run; it can only move on once the data is whole.
		if err := validateStageData(p.CSPData); err != nil {
			return current, fmt.Errorf("%w: stage %s: %v", ErrStageDataInvalid, t.Stage, err)
		}
	}

	log := m.log.WithFields(logging.Fields{
		"portfolio_id": p.ID,
		"trigger":      t.Trigger,
		"source":       current.String(),
	})

	if t.After != stages.HookRunStage {
		dest := t.Dest
		if err := m.store.SaveTransition(ctx, p.ID, dest.String(), p.CSPData); err != nil {
			return current, fmt.Errorf("persist %s: %w", dest, err)
		}
		p.State = dest.String()
		log.WithField("dest", dest.String()).Info("Provisioning state advanced")
		return dest, nil
	}

	return m.runStage(ctx, p, t, extra, log)
}

// runStage executes one stage and persists the outcome. Nothing is written
// until the driver call returns, so a crash mid-stage leaves the portfolio
// at its previous durable state and the stage is simply re-dispatched.
func (m *Machine) runStage(ctx context.Context, p *models.Portfolio, t stages.Transition, extra models.JSONB, log logging.Entry) (stages.State, error) {
	desc, ok := m.registry.Descriptor(t.Stage)
	if !ok {
		return stages.State{}, fmt.Errorf("%w: no descriptor for %s", stages.ErrStageMisconfigured, t.Stage)
	}

	working := p.CSPData.Merge(extra)

	result, runErr := desc.Run(ctx, working)
	if runErr != nil {
		failed := m.registry.StateFor(t.Stage, stages.PhaseFailed)
		if err := m.store.SaveTransition(ctx, p.ID, failed.String(), p.CSPData); err != nil {
			return stages.State{}, fmt.Errorf("persist %s after stage error: %w (stage error: %v)", failed, err, runErr)
		}
		p.State = failed.String()
		log.WithFields(logging.Fields{"dest": failed.String(), "error": runErr.Error()}).Warn("Provisioning stage failed")
		return failed, runErr
	}

	merged := working.Merge(result)

	if err := validateStageData(merged); err != nil {
		// Finish guard rejected the result. Persist IN_PROGRESS so the
		// portfolio is visibly stuck rather than silently re-run.
		inProgress := m.registry.StateFor(t.Stage, stages.PhaseInProgress)
		if perr := m.store.SaveTransition(ctx, p.ID, inProgress.String(), merged); perr != nil {
			return stages.State{}, fmt.Errorf("persist %s after guard rejection: %w", inProgress, perr)
		}
		p.State = inProgress.String()
		p.CSPData = merged
		log.WithField("dest", inProgress.String()).Error("Stage result rejected by finish guard")
		return inProgress, fmt.Errorf("%w: stage %s: %v", ErrStageDataInvalid, t.Stage, err)
	}

	created := m.registry.StateFor(t.Stage, stages.PhaseCreated)
	if err := m.store.SaveTransition(ctx, p.ID, created.String(), merged); err != nil {
		return stages.State{}, fmt.Errorf("persist %s: %w", created, err)
	}
	p.State = created.String()
	p.CSPData = merged
	log.WithField("dest", created.String()).Info("Provisioning stage completed")
	return created, nil
}

// Fail moves the portfolio to the terminal FAILED state from anywhere.
func (m *Machine) Fail(ctx context.Context, p *models.Portfolio) error {
	dest := stages.SystemStateOf(stages.SystemFailed)
	if err := m.store.SaveTransition(ctx, p.ID, dest.String(), p.CSPData); err != nil {
		return fmt.Errorf("persist %s: %w", dest, err)
	}
	p.State = dest.String()
	return nil
}

// Reset moves the portfolio back to UNSTARTED from anywhere. Accumulated
// data is kept so already-created cloud resources stay addressable.
func (m *Machine) Reset(ctx context.Context, p *models.Portfolio) error {
	dest := stages.SystemStateOf(stages.Unstarted)
	if err := m.store.SaveTransition(ctx, p.ID, dest.String(), p.CSPData); err != nil {
		return fmt.Errorf("persist %s: %w", dest, err)
	}
	p.State = dest.String()
	return nil
}

func (m *Machine) readyToResume(p *models.Portfolio) bool {
	if p.StateUpdatedAt == nil {
		return true
	}
	return m.now().Sub(*p.StateUpdatedAt) >= m.resumeCooldown
}

// validateStageData is the finish guard: the accumulated data must be a
// non-empty mapping. Key-level validation happened when the payload was
// assembled; this catches drivers that return nothing at all.
func validateStageData(data models.JSONB) error {
	if len(data) == 0 {
		return errors.New("accumulated provisioning data is empty")
	}
	return nil
}
