package csp

import (
	"fmt"
	"strings"
)

// Payloads are assembled from the portfolio's accumulated provisioning data
// (plus baseline portfolio fields) immediately before each driver call, so a
// retried stage sees whatever data earlier stages have produced by then.
// Results are merged back into the accumulated data on success; each stage
// only ever writes its own keys.

func requireFields(op string, fields map[string]string) error {
	var missing []string
	for name, value := range fields {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return NewError(KindResourceProvisioning, op,
			fmt.Sprintf("missing required payload fields: %s", strings.Join(missing, ", ")), nil)
	}
	return nil
}

// TenantPayload creates the root tenant for a portfolio.
type TenantPayload struct {
	PortfolioID          string `json:"portfolio_id"`
	PortfolioName        string `json:"portfolio_name"`
	PortfolioDescription string `json:"portfolio_description"`
	OwnerEmail           string `json:"owner_email"`
	OwnerDisplayName     string `json:"owner_display_name"`
}

func (p TenantPayload) Validate() error {
	return requireFields("create_tenant", map[string]string{
		"portfolio_id":   p.PortfolioID,
		"portfolio_name": p.PortfolioName,
		"owner_email":    p.OwnerEmail,
	})
}

type TenantResult struct {
	TenantID            string `json:"tenant_id"`
	UserObjectID        string `json:"user_object_id"`
	DomainName          string `json:"domain_name"`
	TenantAdminUsername string `json:"tenant_admin_username"`
	TenantAdminPassword string `json:"tenant_admin_password"`
}

type BillingProfileCreationPayload struct {
	TenantID           string `json:"tenant_id"`
	PortfolioName      string `json:"portfolio_name"`
	BillingAccountName string `json:"billing_account_name"`
}

func (p BillingProfileCreationPayload) Validate() error {
	return requireFields("create_billing_profile_creation", map[string]string{
		"tenant_id":            p.TenantID,
		"billing_account_name": p.BillingAccountName,
	})
}

type BillingProfileCreationResult struct {
	BillingProfileVerifyURL  string `json:"billing_profile_verify_url"`
	BillingProfileRetryAfter int    `json:"billing_profile_retry_after"`
}

type BillingProfileVerificationPayload struct {
	BillingProfileVerifyURL string `json:"billing_profile_verify_url"`
}

func (p BillingProfileVerificationPayload) Validate() error {
	return requireFields("create_billing_profile_verification", map[string]string{
		"billing_profile_verify_url": p.BillingProfileVerifyURL,
	})
}

type BillingProfileVerificationResult struct {
	BillingProfileID   string `json:"billing_profile_id"`
	BillingProfileName string `json:"billing_profile_name"`
}

type BillingProfileTenantAccessPayload struct {
	TenantID           string `json:"tenant_id"`
	BillingAccountName string `json:"billing_account_name"`
	BillingProfileName string `json:"billing_profile_name"`
}

func (p BillingProfileTenantAccessPayload) Validate() error {
	return requireFields("create_billing_profile_tenant_access", map[string]string{
		"tenant_id":            p.TenantID,
		"billing_profile_name": p.BillingProfileName,
	})
}

type BillingProfileTenantAccessResult struct {
	BillingRoleAssignmentID string `json:"billing_role_assignment_id"`
}

type TaskOrderBillingCreationPayload struct {
	BillingAccountName string `json:"billing_account_name"`
	BillingProfileName string `json:"billing_profile_name"`
}

func (p TaskOrderBillingCreationPayload) Validate() error {
	return requireFields("create_task_order_billing_creation", map[string]string{
		"billing_account_name": p.BillingAccountName,
		"billing_profile_name": p.BillingProfileName,
	})
}

type TaskOrderBillingCreationResult struct {
	TaskOrderBillingVerifyURL  string `json:"task_order_billing_verify_url"`
	TaskOrderBillingRetryAfter int    `json:"task_order_billing_retry_after"`
}

type TaskOrderBillingVerificationPayload struct {
	TaskOrderBillingVerifyURL string `json:"task_order_billing_verify_url"`
}

func (p TaskOrderBillingVerificationPayload) Validate() error {
	return requireFields("create_task_order_billing_verification", map[string]string{
		"task_order_billing_verify_url": p.TaskOrderBillingVerifyURL,
	})
}

type TaskOrderBillingVerificationResult struct {
	BillingProfileEnabledPlanDetails string `json:"billing_profile_enabled_plan_details"`
}

type BillingInstructionPayload struct {
	TenantID           string `json:"tenant_id"`
	BillingAccountName string `json:"billing_account_name"`
	BillingProfileName string `json:"billing_profile_name"`
}

func (p BillingInstructionPayload) Validate() error {
	return requireFields("create_billing_instruction", map[string]string{
		"tenant_id":            p.TenantID,
		"billing_account_name": p.BillingAccountName,
		"billing_profile_name": p.BillingProfileName,
	})
}

type BillingInstructionResult struct {
	BillingInstructionID string `json:"billing_instruction_id"`
}

type ProductPurchasePayload struct {
	TenantID         string `json:"tenant_id"`
	BillingProfileID string `json:"billing_profile_id"`
}

func (p ProductPurchasePayload) Validate() error {
	return requireFields("create_product_purchase", map[string]string{
		"tenant_id":          p.TenantID,
		"billing_profile_id": p.BillingProfileID,
	})
}

type ProductPurchaseResult struct {
	ProductPurchaseVerifyURL  string `json:"product_purchase_verify_url"`
	ProductPurchaseRetryAfter int    `json:"product_purchase_retry_after"`
}

type ProductPurchaseVerificationPayload struct {
	ProductPurchaseVerifyURL string `json:"product_purchase_verify_url"`
}

func (p ProductPurchaseVerificationPayload) Validate() error {
	return requireFields("create_product_purchase_verification", map[string]string{
		"product_purchase_verify_url": p.ProductPurchaseVerifyURL,
	})
}

type ProductPurchaseVerificationResult struct {
	PremiumPurchaseDate string `json:"premium_purchase_date"`
}

type TenantPrincipalAppPayload struct {
	TenantID string `json:"tenant_id"`
}

func (p TenantPrincipalAppPayload) Validate() error {
	return requireFields("create_tenant_principal_app", map[string]string{
		"tenant_id": p.TenantID,
	})
}

type TenantPrincipalAppResult struct {
	PrincipalAppID       string `json:"principal_app_id"`
	PrincipalAppObjectID string `json:"principal_app_object_id"`
}

type TenantPrincipalPayload struct {
	TenantID       string `json:"tenant_id"`
	PrincipalAppID string `json:"principal_app_id"`
}

func (p TenantPrincipalPayload) Validate() error {
	return requireFields("create_tenant_principal", map[string]string{
		"tenant_id":        p.TenantID,
		"principal_app_id": p.PrincipalAppID,
	})
}

type TenantPrincipalResult struct {
	PrincipalID string `json:"principal_id"`
}

type TenantPrincipalCredentialPayload struct {
	TenantID             string `json:"tenant_id"`
	PrincipalAppID       string `json:"principal_app_id"`
	PrincipalAppObjectID string `json:"principal_app_object_id"`
}

func (p TenantPrincipalCredentialPayload) Validate() error {
	return requireFields("create_tenant_principal_credential", map[string]string{
		"tenant_id":               p.TenantID,
		"principal_app_id":        p.PrincipalAppID,
		"principal_app_object_id": p.PrincipalAppObjectID,
	})
}

type TenantPrincipalCredentialResult struct {
	PrincipalCredentialEstablished bool `json:"principal_credential_established"`
}

type AdminRoleDefinitionPayload struct {
	TenantID string `json:"tenant_id"`
}

func (p AdminRoleDefinitionPayload) Validate() error {
	return requireFields("create_admin_role_definition", map[string]string{
		"tenant_id": p.TenantID,
	})
}

type AdminRoleDefinitionResult struct {
	AdminRoleDefinitionID string `json:"admin_role_definition_id"`
}

type PrincipalAdminRolePayload struct {
	TenantID              string `json:"tenant_id"`
	PrincipalID           string `json:"principal_id"`
	AdminRoleDefinitionID string `json:"admin_role_definition_id"`
}

func (p PrincipalAdminRolePayload) Validate() error {
	return requireFields("create_principal_admin_role", map[string]string{
		"tenant_id":                p.TenantID,
		"principal_id":             p.PrincipalID,
		"admin_role_definition_id": p.AdminRoleDefinitionID,
	})
}

type PrincipalAdminRoleResult struct {
	PrincipalAdminRoleAssignmentID string `json:"principal_admin_role_assignment_id"`
}

type InitialMgmtGroupPayload struct {
	TenantID      string `json:"tenant_id"`
	PortfolioName string `json:"portfolio_name"`
}

func (p InitialMgmtGroupPayload) Validate() error {
	return requireFields("create_initial_mgmt_group", map[string]string{
		"tenant_id": p.TenantID,
	})
}

type InitialMgmtGroupResult struct {
	InitialManagementGroupID   string `json:"initial_management_group_id"`
	InitialManagementGroupName string `json:"initial_management_group_name"`
}

type InitialMgmtGroupVerificationPayload struct {
	TenantID                   string `json:"tenant_id"`
	InitialManagementGroupName string `json:"initial_management_group_name"`
}

func (p InitialMgmtGroupVerificationPayload) Validate() error {
	return requireFields("create_initial_mgmt_group_verification", map[string]string{
		"tenant_id":                     p.TenantID,
		"initial_management_group_name": p.InitialManagementGroupName,
	})
}

type InitialMgmtGroupVerificationResult struct {
	InitialManagementGroupVerified bool `json:"initial_management_group_verified"`
}

type TenantAdminOwnershipPayload struct {
	TenantID     string `json:"tenant_id"`
	UserObjectID string `json:"user_object_id"`
}

func (p TenantAdminOwnershipPayload) Validate() error {
	return requireFields("create_tenant_admin_ownership", map[string]string{
		"tenant_id":      p.TenantID,
		"user_object_id": p.UserObjectID,
	})
}

type TenantAdminOwnershipResult struct {
	AdminOwnershipRoleAssignmentID string `json:"admin_ownership_role_assignment_id"`
}

type TenantPrincipalOwnershipPayload struct {
	TenantID    string `json:"tenant_id"`
	PrincipalID string `json:"principal_id"`
}

func (p TenantPrincipalOwnershipPayload) Validate() error {
	return requireFields("create_tenant_principal_ownership", map[string]string{
		"tenant_id":    p.TenantID,
		"principal_id": p.PrincipalID,
	})
}

type TenantPrincipalOwnershipResult struct {
	PrincipalOwnershipRoleAssignmentID string `json:"principal_ownership_role_assignment_id"`
}

type BillingOwnerPayload struct {
	TenantID         string `json:"tenant_id"`
	BillingProfileID string `json:"billing_profile_id"`
}

func (p BillingOwnerPayload) Validate() error {
	return requireFields("create_billing_owner", map[string]string{
		"tenant_id":          p.TenantID,
		"billing_profile_id": p.BillingProfileID,
	})
}

type BillingOwnerResult struct {
	BillingOwnerID string `json:"billing_owner_id"`
}

type TenantAdminCredentialResetPayload struct {
	TenantID            string `json:"tenant_id"`
	TenantAdminUsername string `json:"tenant_admin_username"`
}

func (p TenantAdminCredentialResetPayload) Validate() error {
	return requireFields("create_tenant_admin_credential_reset", map[string]string{
		"tenant_id":             p.TenantID,
		"tenant_admin_username": p.TenantAdminUsername,
	})
}

type TenantAdminCredentialResetResult struct {
	TenantAdminCredentialResetAt string `json:"tenant_admin_credential_reset_at"`
}

type PoliciesPayload struct {
	TenantID                 string `json:"tenant_id"`
	InitialManagementGroupID string `json:"initial_management_group_id"`
}

func (p PoliciesPayload) Validate() error {
	return requireFields("create_policies", map[string]string{
		"tenant_id":                   p.TenantID,
		"initial_management_group_id": p.InitialManagementGroupID,
	})
}

type PoliciesResult struct {
	PolicyAssignmentIDs []string `json:"policy_assignment_ids"`
}

// One-shot targets (not driven by the portfolio state machine).

type ApplicationPayload struct {
	TenantID      string `json:"tenant_id"`
	ApplicationID string `json:"application_id"`
	DisplayName   string `json:"display_name"`
	ParentID      string `json:"parent_id"`
}

func (p ApplicationPayload) Validate() error {
	return requireFields("create_application", map[string]string{
		"tenant_id":      p.TenantID,
		"application_id": p.ApplicationID,
		"display_name":   p.DisplayName,
		"parent_id":      p.ParentID,
	})
}

type ApplicationResult struct {
	ID string `json:"id"`
}

type EnvironmentPayload struct {
	TenantID      string `json:"tenant_id"`
	EnvironmentID string `json:"environment_id"`
	DisplayName   string `json:"display_name"`
	ParentID      string `json:"parent_id"`
}

func (p EnvironmentPayload) Validate() error {
	return requireFields("create_environment", map[string]string{
		"tenant_id":      p.TenantID,
		"environment_id": p.EnvironmentID,
		"display_name":   p.DisplayName,
		"parent_id":      p.ParentID,
	})
}

type EnvironmentResult struct {
	ID string `json:"id"`
}

type UserPayload struct {
	TenantID    string `json:"tenant_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

func (p UserPayload) Validate() error {
	return requireFields("create_user", map[string]string{
		"tenant_id": p.TenantID,
		"email":     p.Email,
	})
}

type UserResult struct {
	ID string `json:"id"`
}

type UserRolePayload struct {
	TenantID          string `json:"tenant_id"`
	UserObjectID      string `json:"user_object_id"`
	ManagementGroupID string `json:"management_group_id"`
	Role              string `json:"role"`
}

func (p UserRolePayload) Validate() error {
	return requireFields("create_user_role", map[string]string{
		"tenant_id":           p.TenantID,
		"user_object_id":      p.UserObjectID,
		"management_group_id": p.ManagementGroupID,
		"role":                p.Role,
	})
}

type UserRoleResult struct {
	ID string `json:"id"`
}
