package portal

import (
	"errors"
	"net/http"

	"github.com/dod-ccpo/atat-sub000/internal/stages"
	"github.com/dod-ccpo/atat-sub000/internal/store"
	"github.com/dod-ccpo/atat-sub000/pkg/middleware"
	"github.com/dod-ccpo/atat-sub000/pkg/models"
)

// CreatePortfolioRequest is the body for POST /portfolios.
type CreatePortfolioRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	OwnerID     *string `json:"owner_id"`
}

// CreatePortfolio creates a portfolio in the UNSTARTED provisioning state
func CreatePortfolio(c middleware.Context) {
	var req CreatePortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": err.Error()})
		return
	}

	p := &models.Portfolio{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     req.OwnerID,
	}
	if err := st.CreatePortfolio(c.Request.Context(), p); err != nil {
		logger.WithError(err).Error("Failed to create portfolio")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, p)
}

// ListPortfolios returns all live portfolios with their provisioning states
func ListPortfolios(c middleware.Context) {
	portfolios, err := st.ListPortfolios(c.Request.Context())
	if err != nil {
		logger.WithError(err).Error("Failed to list portfolios")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, middleware.H{"portfolios": portfolios})
}

// GetPortfolio returns one portfolio with its provisioning state
func GetPortfolio(c middleware.Context) {
	p, err := st.GetPortfolio(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, middleware.H{"error": "Portfolio not found"})
		return
	}
	if err != nil {
		logger.WithError(err).WithField("portfolio_id", c.Param("id")).Error("Failed to get portfolio")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeletePortfolio soft-deletes a portfolio, removing it from dispatch
func DeletePortfolio(c middleware.Context) {
	err := st.DeletePortfolio(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, middleware.H{"error": "Portfolio not found"})
		return
	}
	if err != nil {
		logger.WithError(err).WithField("portfolio_id", c.Param("id")).Error("Failed to delete portfolio")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetProvisioningStatus returns the portfolio's state, funding, and any
// recorded job failures
func GetProvisioningStatus(c middleware.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	p, err := st.GetPortfolio(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, middleware.H{"error": "Portfolio not found"})
		return
	}
	if err != nil {
		logger.WithError(err).WithField("portfolio_id", id).Error("Failed to get portfolio")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	funded, err := st.PortfolioFunded(ctx, id)
	if err != nil {
		logger.WithError(err).WithField("portfolio_id", id).Error("Failed to check funding")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	failures, err := st.ListJobFailures(ctx, models.EntityKindPortfolio, id)
	if err != nil {
		logger.WithError(err).WithField("portfolio_id", id).Error("Failed to list job failures")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	state := p.State
	if state == "" {
		state = stages.SystemStateOf(stages.Unstarted).String()
	}

	c.JSON(http.StatusOK, middleware.H{
		"portfolio_id": p.ID,
		"state":        state,
		"funded":       funded,
		"csp_data":     p.CSPData,
		"job_failures": failures,
	})
}

// ResetProvisioning moves a portfolio back to UNSTARTED so dispatch starts
// its provisioning over. Accumulated data is preserved
func ResetProvisioning(c middleware.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	p, err := st.GetPortfolioForProvisioning(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, middleware.H{"error": "Portfolio not found"})
		return
	}
	if err != nil {
		logger.WithError(err).WithField("portfolio_id", id).Error("Failed to get portfolio")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	unstarted := stages.SystemStateOf(stages.Unstarted).String()
	if err := st.SaveTransition(ctx, id, unstarted, p.CSPData); err != nil {
		logger.WithError(err).WithField("portfolio_id", id).Error("Failed to reset provisioning")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	logger.WithField("portfolio_id", id).Info("Provisioning reset to UNSTARTED")
	c.JSON(http.StatusOK, middleware.H{"portfolio_id": id, "state": unstarted})
}
