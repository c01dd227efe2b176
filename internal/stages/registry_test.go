package stages

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dod-ccpo/atat-sub000/pkg/models"
)

func noopRun(_ context.Context, _ models.JSONB) (models.JSONB, error) {
	return models.JSONB{"ok": true}, nil
}

func testDescriptors(names ...StageName) []Descriptor {
	var out []Descriptor
	for _, n := range names {
		out = append(out, Descriptor{Name: n, Run: noopRun})
	}
	return out
}

func TestNewRegistryRejectsEmptyList(t *testing.T) {
	_, err := NewRegistry(nil)
	if !errors.Is(err, ErrStageMisconfigured) {
		t.Fatalf("expected ErrStageMisconfigured, got %v", err)
	}
}

func TestNewRegistryRejectsMissingRun(t *testing.T) {
	_, err := NewRegistry([]Descriptor{{Name: "tenant"}})
	if !errors.Is(err, ErrStageMisconfigured) {
		t.Fatalf("expected ErrStageMisconfigured, got %v", err)
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(testDescriptors("tenant", "tenant"))
	if !errors.Is(err, ErrStageMisconfigured) {
		t.Fatalf("expected ErrStageMisconfigured, got %v", err)
	}
}

func TestStateCount(t *testing.T) {
	r, err := NewRegistry(testDescriptors("alpha", "beta", "gamma"))
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	// Five system states plus three per stage.
	if got, want := r.StateCount(), 5+3*3; got != want {
		t.Fatalf("StateCount = %d, want %d", got, want)
	}
}

func TestParseStateRoundTrip(t *testing.T) {
	r, err := NewRegistry(testDescriptors("tenant", "policies"))
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	for _, encoded := range []string{
		"UNSTARTED", "STARTING", "STARTED", "FAILED", "COMPLETED",
		"TENANT_IN_PROGRESS", "TENANT_CREATED", "TENANT_FAILED",
		"POLICIES_CREATED",
	} {
		st, err := r.ParseState(encoded)
		if err != nil {
			t.Fatalf("ParseState(%q) failed: %v", encoded, err)
		}
		if st.String() != encoded {
			t.Fatalf("round trip %q -> %q", encoded, st.String())
		}
	}

	if _, err := r.ParseState("TENANT_EXPLODED"); err == nil {
		t.Fatal("expected error for unknown state")
	}
	var unknown *ErrUnknownState
	_, err = r.ParseState("BOGUS")
	if !errors.As(err, &unknown) {
		t.Fatalf("expected ErrUnknownState, got %v", err)
	}
}

func TestForwardDispatchIsSingleValued(t *testing.T) {
	r, err := NewRegistry(testDescriptors("alpha", "beta"))
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	// Every non-terminal state has exactly one forward transition;
	// COMPLETED and the terminal FAILED state have none.
	terminal := map[string]bool{"COMPLETED": true, "FAILED": true}
	for encoded := range map[string]bool{
		"UNSTARTED": true, "STARTING": true, "STARTED": true,
		"FAILED": true, "COMPLETED": true,
		"ALPHA_IN_PROGRESS": true, "ALPHA_CREATED": true, "ALPHA_FAILED": true,
		"BETA_IN_PROGRESS": true, "BETA_CREATED": true, "BETA_FAILED": true,
	} {
		st, err := r.ParseState(encoded)
		if err != nil {
			t.Fatalf("ParseState(%q) failed: %v", encoded, err)
		}
		_, ok := r.TransitionFrom(st)
		if terminal[encoded] && ok {
			t.Fatalf("terminal state %s has a forward transition", encoded)
		}
		if !terminal[encoded] && !ok {
			t.Fatalf("state %s has no forward transition", encoded)
		}
	}
}

func TestForwardPathVisitsEveryStageInOrder(t *testing.T) {
	r, err := NewRegistry(testDescriptors("alpha", "beta", "gamma"))
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	// Walk the happy path from UNSTARTED, taking finish transitions out of
	// IN_PROGRESS states, and record the stages crossed.
	st := SystemStateOf(Unstarted)
	var visited []StageName
	for i := 0; i < 100; i++ {
		t1, ok := r.TransitionFrom(st)
		if !ok {
			break
		}
		if t1.After == HookRunStage {
			visited = append(visited, t1.Stage)
		}
		st = t1.Dest
	}

	if st.String() != "COMPLETED" {
		t.Fatalf("walk ended at %s, want COMPLETED", st)
	}
	if got, want := len(visited), 3; got != want {
		t.Fatalf("visited %d stages, want %d", got, want)
	}
	for i, name := range []StageName{"alpha", "beta", "gamma"} {
		if visited[i] != name {
			t.Fatalf("stage %d = %s, want %s", i, visited[i], name)
		}
	}
}

func TestTransitionsAreForwardOnly(t *testing.T) {
	r, err := NewRegistry(testDescriptors("alpha", "beta"))
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	rank := func(st State) int {
		if st.IsSystem() {
			switch st.System() {
			case Unstarted:
				return 0
			case Starting:
				return 1
			case Started:
				return 2
			case Completed:
				return 1000
			default:
				return -1
			}
		}
		for i, name := range r.Stages() {
			if name == st.Stage() {
				return 10 + i*10 + int(st.Phase())
			}
		}
		return -1
	}

	for _, tr := range r.Transitions() {
		if tr.AnySource {
			continue
		}
		// resume transitions go FAILED -> IN_PROGRESS within one stage,
		// everything else moves strictly forward.
		if strings.HasPrefix(tr.Trigger, "resume_progress_") || strings.HasPrefix(tr.Trigger, "fail_") {
			if tr.Source.Stage() != tr.Dest.Stage() {
				t.Fatalf("%s crosses stages: %s -> %s", tr.Trigger, tr.Source, tr.Dest)
			}
			continue
		}
		if rank(tr.Dest) <= rank(tr.Source) {
			t.Fatalf("%s is not forward: %s -> %s", tr.Trigger, tr.Source, tr.Dest)
		}
	}
}

func TestAzureRegistryStageList(t *testing.T) {
	r, err := NewRegistry(testDescriptors(
		StageTenant, StageBillingProfileCreation, StageBillingProfileVerification,
		StageBillingProfileTenantAccess, StageTaskOrderBillingCreation,
		StageTaskOrderBillingVerification, StageBillingInstruction,
		StageProductPurchase, StageProductPurchaseVerification,
		StageTenantPrincipalApp, StageTenantPrincipal, StageTenantPrincipalCredential,
		StageAdminRoleDefinition, StagePrincipalAdminRole, StageInitialMgmtGroup,
		StageInitialMgmtGroupVerification, StageTenantAdminOwnership,
		StageTenantPrincipalOwnership, StageBillingOwner,
		StageTenantAdminCredentialReset, StagePolicies,
	))
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	if got, want := len(r.Stages()), 21; got != want {
		t.Fatalf("stage count = %d, want %d", got, want)
	}
	if got, want := r.StateCount(), 5+3*21; got != want {
		t.Fatalf("StateCount = %d, want %d", got, want)
	}
	if r.First() != StageTenant {
		t.Fatalf("first stage = %s, want %s", r.First(), StageTenant)
	}
	if r.Last() != StagePolicies {
		t.Fatalf("last stage = %s, want %s", r.Last(), StagePolicies)
	}

	next, ok := r.Next(StageTenant)
	if !ok || next != StageBillingProfileCreation {
		t.Fatalf("Next(tenant) = %s, %v", next, ok)
	}
	if _, ok := r.Next(StagePolicies); ok {
		t.Fatal("Next(policies) should report no successor")
	}
}
