package csp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// validatable is implemented by every stage payload.
type validatable interface {
	Validate() error
}

// MockDriver is an in-memory Driver used for development and tests. It
// validates payloads like a real driver would, fabricates identifiers, and
// supports per-operation failure injection.
type MockDriver struct {
	mu       sync.Mutex
	calls    map[string]int
	failures map[string]error
}

// NewMockDriver creates a mock driver with no injected failures.
func NewMockDriver() *MockDriver {
	return &MockDriver{
		calls:    make(map[string]int),
		failures: make(map[string]error),
	}
}

// FailWith makes the named operation return err until cleared with a nil err.
func (m *MockDriver) FailWith(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Calls returns how many times the named operation has been invoked,
// counting only invocations that passed payload validation.
func (m *MockDriver) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MockDriver) begin(op string, p validatable) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
	if err, ok := m.failures[op]; ok {
		return err
	}
	return nil
}

func mockID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.New().String())
}

func (m *MockDriver) CreateTenant(_ context.Context, p TenantPayload) (TenantResult, error) {
	if err := m.begin("create_tenant", p); err != nil {
		return TenantResult{}, err
	}
	return TenantResult{
		TenantID:            mockID("tenant"),
		UserObjectID:        mockID("user"),
		DomainName:          fmt.Sprintf("%s.onmicrosoft.test", uuid.New().String()[:8]),
		TenantAdminUsername: "tenantadmin",
		TenantAdminPassword: mockID("pw"),
	}, nil
}

func (m *MockDriver) CreateBillingProfileCreation(_ context.Context, p BillingProfileCreationPayload) (BillingProfileCreationResult, error) {
	if err := m.begin("create_billing_profile_creation", p); err != nil {
		return BillingProfileCreationResult{}, err
	}
	return BillingProfileCreationResult{
		BillingProfileVerifyURL:  fmt.Sprintf("https://mock.csp/billing/%s", uuid.New().String()),
		BillingProfileRetryAfter: 10,
	}, nil
}

func (m *MockDriver) CreateBillingProfileVerification(_ context.Context, p BillingProfileVerificationPayload) (BillingProfileVerificationResult, error) {
	if err := m.begin("create_billing_profile_verification", p); err != nil {
		return BillingProfileVerificationResult{}, err
	}
	return BillingProfileVerificationResult{
		BillingProfileID:   mockID("bp"),
		BillingProfileName: mockID("bp-name"),
	}, nil
}

func (m *MockDriver) CreateBillingProfileTenantAccess(_ context.Context, p BillingProfileTenantAccessPayload) (BillingProfileTenantAccessResult, error) {
	if err := m.begin("create_billing_profile_tenant_access", p); err != nil {
		return BillingProfileTenantAccessResult{}, err
	}
	return BillingProfileTenantAccessResult{BillingRoleAssignmentID: mockID("bra")}, nil
}

func (m *MockDriver) CreateTaskOrderBillingCreation(_ context.Context, p TaskOrderBillingCreationPayload) (TaskOrderBillingCreationResult, error) {
	if err := m.begin("create_task_order_billing_creation", p); err != nil {
		return TaskOrderBillingCreationResult{}, err
	}
	return TaskOrderBillingCreationResult{
		TaskOrderBillingVerifyURL:  fmt.Sprintf("https://mock.csp/to-billing/%s", uuid.New().String()),
		TaskOrderBillingRetryAfter: 10,
	}, nil
}

func (m *MockDriver) CreateTaskOrderBillingVerification(_ context.Context, p TaskOrderBillingVerificationPayload) (TaskOrderBillingVerificationResult, error) {
	if err := m.begin("create_task_order_billing_verification", p); err != nil {
		return TaskOrderBillingVerificationResult{}, err
	}
	return TaskOrderBillingVerificationResult{BillingProfileEnabledPlanDetails: "enabled"}, nil
}

func (m *MockDriver) CreateBillingInstruction(_ context.Context, p BillingInstructionPayload) (BillingInstructionResult, error) {
	if err := m.begin("create_billing_instruction", p); err != nil {
		return BillingInstructionResult{}, err
	}
	return BillingInstructionResult{BillingInstructionID: mockID("bi")}, nil
}

func (m *MockDriver) CreateProductPurchase(_ context.Context, p ProductPurchasePayload) (ProductPurchaseResult, error) {
	if err := m.begin("create_product_purchase", p); err != nil {
		return ProductPurchaseResult{}, err
	}
	return ProductPurchaseResult{
		ProductPurchaseVerifyURL:  fmt.Sprintf("https://mock.csp/purchase/%s", uuid.New().String()),
		ProductPurchaseRetryAfter: 10,
	}, nil
}

func (m *MockDriver) CreateProductPurchaseVerification(_ context.Context, p ProductPurchaseVerificationPayload) (ProductPurchaseVerificationResult, error) {
	if err := m.begin("create_product_purchase_verification", p); err != nil {
		return ProductPurchaseVerificationResult{}, err
	}
	return ProductPurchaseVerificationResult{PremiumPurchaseDate: time.Now().UTC().Format(time.RFC3339)}, nil
}

func (m *MockDriver) CreateTenantPrincipalApp(_ context.Context, p TenantPrincipalAppPayload) (TenantPrincipalAppResult, error) {
	if err := m.begin("create_tenant_principal_app", p); err != nil {
		return TenantPrincipalAppResult{}, err
	}
	return TenantPrincipalAppResult{
		PrincipalAppID:       mockID("app"),
		PrincipalAppObjectID: mockID("app-obj"),
	}, nil
}

func (m *MockDriver) CreateTenantPrincipal(_ context.Context, p TenantPrincipalPayload) (TenantPrincipalResult, error) {
	if err := m.begin("create_tenant_principal", p); err != nil {
		return TenantPrincipalResult{}, err
	}
	return TenantPrincipalResult{PrincipalID: mockID("principal")}, nil
}

func (m *MockDriver) CreateTenantPrincipalCredential(_ context.Context, p TenantPrincipalCredentialPayload) (TenantPrincipalCredentialResult, error) {
	if err := m.begin("create_tenant_principal_credential", p); err != nil {
		return TenantPrincipalCredentialResult{}, err
	}
	return TenantPrincipalCredentialResult{PrincipalCredentialEstablished: true}, nil
}

func (m *MockDriver) CreateAdminRoleDefinition(_ context.Context, p AdminRoleDefinitionPayload) (AdminRoleDefinitionResult, error) {
	if err := m.begin("create_admin_role_definition", p); err != nil {
		return AdminRoleDefinitionResult{}, err
	}
	return AdminRoleDefinitionResult{AdminRoleDefinitionID: mockID("role-def")}, nil
}

func (m *MockDriver) CreatePrincipalAdminRole(_ context.Context, p PrincipalAdminRolePayload) (PrincipalAdminRoleResult, error) {
	if err := m.begin("create_principal_admin_role", p); err != nil {
		return PrincipalAdminRoleResult{}, err
	}
	return PrincipalAdminRoleResult{PrincipalAdminRoleAssignmentID: mockID("para")}, nil
}

func (m *MockDriver) CreateInitialMgmtGroup(_ context.Context, p InitialMgmtGroupPayload) (InitialMgmtGroupResult, error) {
	if err := m.begin("create_initial_mgmt_group", p); err != nil {
		return InitialMgmtGroupResult{}, err
	}
	name := uuid.New().String()
	return InitialMgmtGroupResult{
		InitialManagementGroupID:   fmt.Sprintf("/providers/Microsoft.Management/managementGroups/%s", name),
		InitialManagementGroupName: name,
	}, nil
}

func (m *MockDriver) CreateInitialMgmtGroupVerification(_ context.Context, p InitialMgmtGroupVerificationPayload) (InitialMgmtGroupVerificationResult, error) {
	if err := m.begin("create_initial_mgmt_group_verification", p); err != nil {
		return InitialMgmtGroupVerificationResult{}, err
	}
	return InitialMgmtGroupVerificationResult{InitialManagementGroupVerified: true}, nil
}

func (m *MockDriver) CreateTenantAdminOwnership(_ context.Context, p TenantAdminOwnershipPayload) (TenantAdminOwnershipResult, error) {
	if err := m.begin("create_tenant_admin_ownership", p); err != nil {
		return TenantAdminOwnershipResult{}, err
	}
	return TenantAdminOwnershipResult{AdminOwnershipRoleAssignmentID: mockID("aora")}, nil
}

func (m *MockDriver) CreateTenantPrincipalOwnership(_ context.Context, p TenantPrincipalOwnershipPayload) (TenantPrincipalOwnershipResult, error) {
	if err := m.begin("create_tenant_principal_ownership", p); err != nil {
		return TenantPrincipalOwnershipResult{}, err
	}
	return TenantPrincipalOwnershipResult{PrincipalOwnershipRoleAssignmentID: mockID("pora")}, nil
}

func (m *MockDriver) CreateBillingOwner(_ context.Context, p BillingOwnerPayload) (BillingOwnerResult, error) {
	if err := m.begin("create_billing_owner", p); err != nil {
		return BillingOwnerResult{}, err
	}
	return BillingOwnerResult{BillingOwnerID: mockID("bo")}, nil
}

func (m *MockDriver) CreateTenantAdminCredentialReset(_ context.Context, p TenantAdminCredentialResetPayload) (TenantAdminCredentialResetResult, error) {
	if err := m.begin("create_tenant_admin_credential_reset", p); err != nil {
		return TenantAdminCredentialResetResult{}, err
	}
	return TenantAdminCredentialResetResult{TenantAdminCredentialResetAt: time.Now().UTC().Format(time.RFC3339)}, nil
}

func (m *MockDriver) CreatePolicies(_ context.Context, p PoliciesPayload) (PoliciesResult, error) {
	if err := m.begin("create_policies", p); err != nil {
		return PoliciesResult{}, err
	}
	return PoliciesResult{PolicyAssignmentIDs: []string{mockID("policy"), mockID("policy")}}, nil
}

func (m *MockDriver) CreateApplication(_ context.Context, p ApplicationPayload) (ApplicationResult, error) {
	if err := m.begin("create_application", p); err != nil {
		return ApplicationResult{}, err
	}
	return ApplicationResult{ID: mockID("app-mg")}, nil
}

func (m *MockDriver) CreateEnvironment(_ context.Context, p EnvironmentPayload) (EnvironmentResult, error) {
	if err := m.begin("create_environment", p); err != nil {
		return EnvironmentResult{}, err
	}
	return EnvironmentResult{ID: mockID("env-mg")}, nil
}

func (m *MockDriver) CreateUser(_ context.Context, p UserPayload) (UserResult, error) {
	if err := m.begin("create_user", p); err != nil {
		return UserResult{}, err
	}
	return UserResult{ID: mockID("user")}, nil
}

func (m *MockDriver) CreateUserRole(_ context.Context, p UserRolePayload) (UserRoleResult, error) {
	if err := m.begin("create_user_role", p); err != nil {
		return UserRoleResult{}, err
	}
	return UserRoleResult{ID: mockID("role-assignment")}, nil
}
