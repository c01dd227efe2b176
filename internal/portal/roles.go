package portal

import (
	"errors"
	"net/http"

	"github.com/dod-ccpo/atat-sub000/internal/store"
	"github.com/dod-ccpo/atat-sub000/pkg/middleware"
	"github.com/dod-ccpo/atat-sub000/pkg/models"
)

// CreateUserRequest is the body for POST /users.
type CreateUserRequest struct {
	Email       string `json:"email" binding:"required,email"`
	DisplayName string `json:"display_name" binding:"required"`
}

// CreateUser registers a portal member
func CreateUser(c middleware.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": err.Error()})
		return
	}

	u := &models.User{Email: req.Email, DisplayName: req.DisplayName}
	if err := st.CreateUser(c.Request.Context(), u); err != nil {
		logger.WithError(err).Error("Failed to create user")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, u)
}

// SetUserActiveRequest is the body for PATCH /users/:id/active.
type SetUserActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetUserActive enables or disables a user's portal access
func SetUserActive(c middleware.Context) {
	var req SetUserActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": err.Error()})
		return
	}

	err := st.SetUserActive(c.Request.Context(), c.Param("id"), *req.Active)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, middleware.H{"error": "User not found"})
		return
	}
	if err != nil {
		logger.WithError(err).WithField("user_id", c.Param("id")).Error("Failed to update user")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, middleware.H{"user_id": c.Param("id"), "active": *req.Active})
}

// CreateEnvironmentRoleRequest is the body for POST /environments/:id/roles.
type CreateEnvironmentRoleRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required"`
}

// CreateEnvironmentRole assigns a user a role in an environment
func CreateEnvironmentRole(c middleware.Context) {
	var req CreateEnvironmentRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": err.Error()})
		return
	}

	if _, err := st.GetEnvironment(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, middleware.H{"error": "Environment not found"})
			return
		}
		logger.WithError(err).Error("Failed to get environment")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	r := &models.EnvironmentRole{
		EnvironmentID: c.Param("id"),
		UserID:        req.UserID,
		Role:          req.Role,
		Status:        models.RoleStatusActive,
	}
	if err := st.CreateEnvironmentRole(c.Request.Context(), r); err != nil {
		logger.WithError(err).WithField("environment_id", r.EnvironmentID).Error("Failed to create environment role")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, r)
}

// ListEnvironmentRoles returns an environment's role assignments
func ListEnvironmentRoles(c middleware.Context) {
	roles, err := st.ListEnvironmentRoles(c.Request.Context(), c.Param("id"))
	if err != nil {
		logger.WithError(err).WithField("environment_id", c.Param("id")).Error("Failed to list environment roles")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, middleware.H{"roles": roles})
}

// SetRoleStatusRequest is the body for PATCH /roles/:id/status.
type SetRoleStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active disabled"`
}

// SetEnvironmentRoleStatus toggles a role between active and disabled
func SetEnvironmentRoleStatus(c middleware.Context) {
	var req SetRoleStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": err.Error()})
		return
	}

	err := st.SetEnvironmentRoleStatus(c.Request.Context(), c.Param("id"), req.Status)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, middleware.H{"error": "Role not found"})
		return
	}
	if err != nil {
		logger.WithError(err).WithField("role_id", c.Param("id")).Error("Failed to update role status")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, middleware.H{"role_id": c.Param("id"), "status": req.Status})
}

// ListJobFailures returns failure records for one entity
func ListJobFailures(c middleware.Context) {
	kind := c.Query("entity_kind")
	id := c.Query("entity_id")
	if kind == "" || id == "" {
		c.JSON(http.StatusBadRequest, middleware.H{"error": "entity_kind and entity_id are required"})
		return
	}

	failures, err := st.ListJobFailures(c.Request.Context(), kind, id)
	if err != nil {
		logger.WithError(err).Error("Failed to list job failures")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, middleware.H{"job_failures": failures})
}
