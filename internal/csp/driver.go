package csp

import (
	"context"
)

// Driver is the cloud service provider abstraction the provisioning core
// calls. One method per portfolio stage, in provisioning order, plus the
// one-shot operations for applications, environments, and users.
//
// Every method either succeeds with its typed result or returns a *Error;
// drivers never surface untyped failures.
type Driver interface {
	CreateTenant(ctx context.Context, p TenantPayload) (TenantResult, error)
	CreateBillingProfileCreation(ctx context.Context, p BillingProfileCreationPayload) (BillingProfileCreationResult, error)
	CreateBillingProfileVerification(ctx context.Context, p BillingProfileVerificationPayload) (BillingProfileVerificationResult, error)
	CreateBillingProfileTenantAccess(ctx context.Context, p BillingProfileTenantAccessPayload) (BillingProfileTenantAccessResult, error)
	CreateTaskOrderBillingCreation(ctx context.Context, p TaskOrderBillingCreationPayload) (TaskOrderBillingCreationResult, error)
	CreateTaskOrderBillingVerification(ctx context.Context, p TaskOrderBillingVerificationPayload) (TaskOrderBillingVerificationResult, error)
	CreateBillingInstruction(ctx context.Context, p BillingInstructionPayload) (BillingInstructionResult, error)
	CreateProductPurchase(ctx context.Context, p ProductPurchasePayload) (ProductPurchaseResult, error)
	CreateProductPurchaseVerification(ctx context.Context, p ProductPurchaseVerificationPayload) (ProductPurchaseVerificationResult, error)
	CreateTenantPrincipalApp(ctx context.Context, p TenantPrincipalAppPayload) (TenantPrincipalAppResult, error)
	CreateTenantPrincipal(ctx context.Context, p TenantPrincipalPayload) (TenantPrincipalResult, error)
	CreateTenantPrincipalCredential(ctx context.Context, p TenantPrincipalCredentialPayload) (TenantPrincipalCredentialResult, error)
	CreateAdminRoleDefinition(ctx context.Context, p AdminRoleDefinitionPayload) (AdminRoleDefinitionResult, error)
	CreatePrincipalAdminRole(ctx context.Context, p PrincipalAdminRolePayload) (PrincipalAdminRoleResult, error)
	CreateInitialMgmtGroup(ctx context.Context, p InitialMgmtGroupPayload) (InitialMgmtGroupResult, error)
	CreateInitialMgmtGroupVerification(ctx context.Context, p InitialMgmtGroupVerificationPayload) (InitialMgmtGroupVerificationResult, error)
	CreateTenantAdminOwnership(ctx context.Context, p TenantAdminOwnershipPayload) (TenantAdminOwnershipResult, error)
	CreateTenantPrincipalOwnership(ctx context.Context, p TenantPrincipalOwnershipPayload) (TenantPrincipalOwnershipResult, error)
	CreateBillingOwner(ctx context.Context, p BillingOwnerPayload) (BillingOwnerResult, error)
	CreateTenantAdminCredentialReset(ctx context.Context, p TenantAdminCredentialResetPayload) (TenantAdminCredentialResetResult, error)
	CreatePolicies(ctx context.Context, p PoliciesPayload) (PoliciesResult, error)

	CreateApplication(ctx context.Context, p ApplicationPayload) (ApplicationResult, error)
	CreateEnvironment(ctx context.Context, p EnvironmentPayload) (EnvironmentResult, error)
	CreateUser(ctx context.Context, p UserPayload) (UserResult, error)
	CreateUserRole(ctx context.Context, p UserRolePayload) (UserRoleResult, error)
}
