package kafka

import (
	"fmt"

	"github.com/dod-ccpo/atat-sub000/pkg/models"
)

// Provisioning task topics. One topic per entity kind; tasks are keyed by
// entity ID so retries for the same entity stay on one partition.
const (
	TopicPortfolios   = "provisioning.portfolios"
	TopicApplications = "provisioning.applications"
	TopicEnvironments = "provisioning.environments"
	TopicRoles        = "provisioning.roles"
	TopicDLQ          = "provisioning.dlq"
)

// Task is one unit of provisioning work. Exactly one entity-id field group
// is set, matching the topic the task is published to. Attempt counts
// task-level retries, starting at 1.
type Task struct {
	TaskID string `json:"task_id"`

	PortfolioID   string `json:"portfolio_id,omitempty"`
	ApplicationID string `json:"application_id,omitempty"`
	EnvironmentID string `json:"environment_id,omitempty"`

	// Role tasks carry a group of role assignments for one user in one
	// portfolio so a single cloud user creation can be shared.
	UserID             string   `json:"user_id,omitempty"`
	EnvironmentRoleIDs []string `json:"environment_role_ids,omitempty"`

	Attempt int `json:"attempt"`
}

// Entity returns the entity kind and ID the task declares, used for claim
// scoping and job-failure records.
func (t Task) Entity() (kind, id string) {
	switch {
	case len(t.EnvironmentRoleIDs) > 0:
		return models.EntityKindEnvironmentRole, t.EnvironmentRoleIDs[0]
	case t.EnvironmentID != "":
		return models.EntityKindEnvironment, t.EnvironmentID
	case t.ApplicationID != "":
		return models.EntityKindApplication, t.ApplicationID
	case t.PortfolioID != "":
		return models.EntityKindPortfolio, t.PortfolioID
	default:
		return "", ""
	}
}

// Key is the partition key for the task.
func (t Task) Key() []byte {
	kind, id := t.Entity()
	if kind == models.EntityKindEnvironmentRole {
		// Group by portfolio and user, not by individual role row.
		return []byte(fmt.Sprintf("%s:%s", t.PortfolioID, t.UserID))
	}
	return []byte(id)
}
