package stages

import (
	"context"

	"github.com/dod-ccpo/atat-sub000/internal/csp"
	"github.com/dod-ccpo/atat-sub000/pkg/models"
)

// Azure portfolio stage names, in provisioning order.
const (
	StageTenant                       StageName = "tenant"
	StageBillingProfileCreation       StageName = "billing_profile_creation"
	StageBillingProfileVerification   StageName = "billing_profile_verification"
	StageBillingProfileTenantAccess   StageName = "billing_profile_tenant_access"
	StageTaskOrderBillingCreation     StageName = "task_order_billing_creation"
	StageTaskOrderBillingVerification StageName = "task_order_billing_verification"
	StageBillingInstruction           StageName = "billing_instruction"
	StageProductPurchase              StageName = "product_purchase"
	StageProductPurchaseVerification  StageName = "product_purchase_verification"
	StageTenantPrincipalApp           StageName = "tenant_principal_app"
	StageTenantPrincipal              StageName = "tenant_principal"
	StageTenantPrincipalCredential    StageName = "tenant_principal_credential"
	StageAdminRoleDefinition          StageName = "admin_role_definition"
	StagePrincipalAdminRole           StageName = "principal_admin_role"
	StageInitialMgmtGroup             StageName = "initial_mgmt_group"
	StageInitialMgmtGroupVerification StageName = "initial_mgmt_group_verification"
	StageTenantAdminOwnership         StageName = "tenant_admin_ownership"
	StageTenantPrincipalOwnership     StageName = "tenant_principal_ownership"
	StageBillingOwner                 StageName = "billing_owner"
	StageTenantAdminCredentialReset   StageName = "tenant_admin_credential_reset"
	StagePolicies                     StageName = "policies"
)

// validatable is what every stage payload implements.
type validatable interface {
	Validate() error
}

// bind adapts one typed driver call into a RunFunc: the accumulated
// portfolio data is decoded into the stage's payload, validated, executed,
// and the typed result is encoded back for merging.
func bind[P validatable, R any](call func(context.Context, P) (R, error)) RunFunc {
	return func(ctx context.Context, data models.JSONB) (models.JSONB, error) {
		var payload P
		if err := decodePayload(data, &payload); err != nil {
			return nil, err
		}
		if err := payload.Validate(); err != nil {
			return nil, err
		}
		result, err := call(ctx, payload)
		if err != nil {
			return nil, err
		}
		return encodeResult(result)
	}
}

// AzureStages builds the ordered descriptor list for Azure tenancy
// provisioning, with each stage bound to the given driver.
func AzureStages(driver csp.Driver) []Descriptor {
	return []Descriptor{
		{Name: StageTenant, Run: bind(driver.CreateTenant)},
		{Name: StageBillingProfileCreation, Run: bind(driver.CreateBillingProfileCreation)},
		{Name: StageBillingProfileVerification, Run: bind(driver.CreateBillingProfileVerification)},
		{Name: StageBillingProfileTenantAccess, Run: bind(driver.CreateBillingProfileTenantAccess)},
		{Name: StageTaskOrderBillingCreation, Run: bind(driver.CreateTaskOrderBillingCreation)},
		{Name: StageTaskOrderBillingVerification, Run: bind(driver.CreateTaskOrderBillingVerification)},
		{Name: StageBillingInstruction, Run: bind(driver.CreateBillingInstruction)},
		{Name: StageProductPurchase, Run: bind(driver.CreateProductPurchase)},
		{Name: StageProductPurchaseVerification, Run: bind(driver.CreateProductPurchaseVerification)},
		{Name: StageTenantPrincipalApp, Run: bind(driver.CreateTenantPrincipalApp)},
		{Name: StageTenantPrincipal, Run: bind(driver.CreateTenantPrincipal)},
		{Name: StageTenantPrincipalCredential, Run: bind(driver.CreateTenantPrincipalCredential)},
		{Name: StageAdminRoleDefinition, Run: bind(driver.CreateAdminRoleDefinition)},
		{Name: StagePrincipalAdminRole, Run: bind(driver.CreatePrincipalAdminRole)},
		{Name: StageInitialMgmtGroup, Run: bind(driver.CreateInitialMgmtGroup)},
		{Name: StageInitialMgmtGroupVerification, Run: bind(driver.CreateInitialMgmtGroupVerification)},
		{Name: StageTenantAdminOwnership, Run: bind(driver.CreateTenantAdminOwnership)},
		{Name: StageTenantPrincipalOwnership, Run: bind(driver.CreateTenantPrincipalOwnership)},
		{Name: StageBillingOwner, Run: bind(driver.CreateBillingOwner)},
		{Name: StageTenantAdminCredentialReset, Run: bind(driver.CreateTenantAdminCredentialReset)},
		{Name: StagePolicies, Run: bind(driver.CreatePolicies)},
	}
}

// NewAzureRegistry builds the stage registry for Azure tenancy provisioning.
func NewAzureRegistry(driver csp.Driver) (*Registry, error) {
	return NewRegistry(AzureStages(driver))
}
