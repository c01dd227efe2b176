package portal

import (
	"errors"
	"net/http"
	"time"

	"github.com/dod-ccpo/atat-sub000/internal/store"
	"github.com/dod-ccpo/atat-sub000/pkg/middleware"
	"github.com/dod-ccpo/atat-sub000/pkg/models"
)

// CLINRequest is one funding line item in a task order body.
type CLINRequest struct {
	Number          string  `json:"number" binding:"required"`
	StartDate       string  `json:"start_date" binding:"required"`
	EndDate         string  `json:"end_date" binding:"required"`
	ObligatedAmount float64 `json:"obligated_amount"`
	TotalAmount     float64 `json:"total_amount"`
}

// CreateTaskOrderRequest is the body for POST /portfolios/:id/taskorders.
type CreateTaskOrderRequest struct {
	Number string        `json:"number" binding:"required"`
	Signed bool          `json:"signed"`
	CLINs  []CLINRequest `json:"clins" binding:"required,min=1"`
}

// CreateTaskOrder attaches a task order and its CLINs to a portfolio
func CreateTaskOrder(c middleware.Context) {
	var req CreateTaskOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": err.Error()})
		return
	}

	to := &models.TaskOrder{
		PortfolioID: c.Param("id"),
		Number:      req.Number,
	}
	if req.Signed {
		now := time.Now()
		to.SignedAt = &now
	}
	for _, cl := range req.CLINs {
		start, err := time.Parse("2006-01-02", cl.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, middleware.H{"error": "invalid start_date, expected YYYY-MM-DD"})
			return
		}
		end, err := time.Parse("2006-01-02", cl.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, middleware.H{"error": "invalid end_date, expected YYYY-MM-DD"})
			return
		}
		if !end.After(start) {
			c.JSON(http.StatusBadRequest, middleware.H{"error": "end_date must be after start_date"})
			return
		}
		to.CLINs = append(to.CLINs, models.CLIN{
			Number:          cl.Number,
			StartDate:       start,
			EndDate:         end,
			ObligatedAmount: cl.ObligatedAmount,
			TotalAmount:     cl.TotalAmount,
		})
	}

	if err := st.CreateTaskOrder(c.Request.Context(), to); err != nil {
		logger.WithError(err).WithField("portfolio_id", to.PortfolioID).Error("Failed to create task order")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, to)
}

// SignTaskOrder marks a task order as signed, activating its funding
func SignTaskOrder(c middleware.Context) {
	err := st.SignTaskOrder(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, middleware.H{"error": "Task order not found or already signed"})
		return
	}
	if err != nil {
		logger.WithError(err).WithField("task_order_id", c.Param("id")).Error("Failed to sign task order")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, middleware.H{"task_order_id": c.Param("id"), "signed": true})
}

// ListTaskOrders returns a portfolio's task orders with CLINs
func ListTaskOrders(c middleware.Context) {
	orders, err := st.ListTaskOrders(c.Request.Context(), c.Param("id"))
	if err != nil {
		logger.WithError(err).WithField("portfolio_id", c.Param("id")).Error("Failed to list task orders")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, middleware.H{"task_orders": orders})
}
