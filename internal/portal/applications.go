package portal

import (
	"errors"
	"net/http"

	"github.com/dod-ccpo/atat-sub000/internal/store"
	"github.com/dod-ccpo/atat-sub000/pkg/middleware"
	"github.com/dod-ccpo/atat-sub000/pkg/models"
)

// CreateApplicationRequest is the body for POST /portfolios/:id/applications.
type CreateApplicationRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CreateApplication adds an application as a pending provisioning target
func CreateApplication(c middleware.Context) {
	var req CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": err.Error()})
		return
	}

	if _, err := st.GetPortfolio(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, middleware.H{"error": "Portfolio not found"})
			return
		}
		logger.WithError(err).Error("Failed to get portfolio")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	a := &models.Application{
		PortfolioID: c.Param("id"),
		Name:        req.Name,
		Description: req.Description,
	}
	if err := st.CreateApplication(c.Request.Context(), a); err != nil {
		logger.WithError(err).WithField("portfolio_id", a.PortfolioID).Error("Failed to create application")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, a)
}

// ListApplications returns a portfolio's applications
func ListApplications(c middleware.Context) {
	apps, err := st.ListApplications(c.Request.Context(), c.Param("id"))
	if err != nil {
		logger.WithError(err).WithField("portfolio_id", c.Param("id")).Error("Failed to list applications")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, middleware.H{"applications": apps})
}

// DeleteApplication soft-deletes an application
func DeleteApplication(c middleware.Context) {
	err := st.DeleteApplication(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, middleware.H{"error": "Application not found"})
		return
	}
	if err != nil {
		logger.WithError(err).WithField("application_id", c.Param("id")).Error("Failed to delete application")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateEnvironmentRequest is the body for POST /applications/:id/environments.
type CreateEnvironmentRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateEnvironment adds an environment under an application
func CreateEnvironment(c middleware.Context) {
	var req CreateEnvironmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": err.Error()})
		return
	}

	if _, err := st.GetApplication(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, middleware.H{"error": "Application not found"})
			return
		}
		logger.WithError(err).Error("Failed to get application")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	e := &models.Environment{
		ApplicationID: c.Param("id"),
		Name:          req.Name,
	}
	if err := st.CreateEnvironment(c.Request.Context(), e); err != nil {
		logger.WithError(err).WithField("application_id", e.ApplicationID).Error("Failed to create environment")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, e)
}

// ListEnvironments returns an application's environments
func ListEnvironments(c middleware.Context) {
	envs, err := st.ListEnvironments(c.Request.Context(), c.Param("id"))
	if err != nil {
		logger.WithError(err).WithField("application_id", c.Param("id")).Error("Failed to list environments")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, middleware.H{"environments": envs})
}
