package csp

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestTransientKinds(t *testing.T) {
	transient := map[ErrorKind]bool{
		KindConnection:          true,
		KindUnknownServer:       true,
		KindOperationInProgress: true,
		KindResourceProvisioning: false,
		KindAuthentication:       false,
		KindAuthorization:        false,
		KindUserProvisioning:     false,
		KindDomainName:           false,
	}

	for kind, want := range transient {
		err := NewError(kind, "create_tenant", "boom", nil)
		if got := IsTransient(err); got != want {
			t.Fatalf("IsTransient(%s) = %v, want %v", kind, got, want)
		}
	}
}

func TestIsTransientSeesThroughWrapping(t *testing.T) {
	inner := NewError(KindConnection, "create_tenant", "timeout", nil)
	wrapped := fmt.Errorf("stage tenant: %w", inner)

	if !IsTransient(wrapped) {
		t.Fatal("wrapped transient error not recognized")
	}

	kind, ok := KindOf(wrapped)
	if !ok || kind != KindConnection {
		t.Fatalf("KindOf = %v, %v", kind, ok)
	}
}

func TestPlainErrorsArePermanent(t *testing.T) {
	if IsTransient(errors.New("some error")) {
		t.Fatal("untyped errors must be treated as permanent")
	}
	if _, ok := KindOf(errors.New("some error")); ok {
		t.Fatal("untyped errors have no kind")
	}
}

func TestMockDriverValidatesPayloads(t *testing.T) {
	driver := NewMockDriver()

	_, err := driver.CreateTenant(context.Background(), TenantPayload{})
	if err == nil {
		t.Fatal("expected validation error for empty payload")
	}
	kind, ok := KindOf(err)
	if !ok || kind != KindResourceProvisioning {
		t.Fatalf("validation error kind = %v, %v", kind, ok)
	}
	if driver.Calls("create_tenant") != 0 {
		t.Fatal("invalid payloads must not count as calls")
	}
}

func TestMockDriverFailureInjection(t *testing.T) {
	driver := NewMockDriver()
	injected := NewError(KindOperationInProgress, "create_policies", "still running", nil)
	driver.FailWith("create_policies", injected)

	_, err := driver.CreatePolicies(context.Background(), PoliciesPayload{
		TenantID:                 "t1",
		InitialManagementGroupID: "mg1",
	})
	if !errors.Is(err, injected) {
		t.Fatalf("expected injected error, got %v", err)
	}

	driver.FailWith("create_policies", nil)
	result, err := driver.CreatePolicies(context.Background(), PoliciesPayload{
		TenantID:                 "t1",
		InitialManagementGroupID: "mg1",
	})
	if err != nil {
		t.Fatalf("cleared failure still firing: %v", err)
	}
	if len(result.PolicyAssignmentIDs) == 0 {
		t.Fatal("expected fabricated policy assignments")
	}
	if driver.Calls("create_policies") != 2 {
		t.Fatalf("calls = %d, want 2", driver.Calls("create_policies"))
	}
}
