package portal

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the portal API.
func RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/users", CreateUser)
		v1.PATCH("/users/:id/active", SetUserActive)

		v1.POST("/portfolios", CreatePortfolio)
		v1.GET("/portfolios", ListPortfolios)
		v1.GET("/portfolios/:id", GetPortfolio)
		v1.DELETE("/portfolios/:id", DeletePortfolio)
		v1.GET("/portfolios/:id/status", GetProvisioningStatus)
		v1.POST("/portfolios/:id/provisioning/reset", ResetProvisioning)

		v1.POST("/portfolios/:id/taskorders", CreateTaskOrder)
		v1.GET("/portfolios/:id/taskorders", ListTaskOrders)
		v1.POST("/taskorders/:id/sign", SignTaskOrder)

		v1.POST("/portfolios/:id/applications", CreateApplication)
		v1.GET("/portfolios/:id/applications", ListApplications)
		v1.DELETE("/applications/:id", DeleteApplication)

		v1.POST("/applications/:id/environments", CreateEnvironment)
		v1.GET("/applications/:id/environments", ListEnvironments)

		v1.POST("/environments/:id/roles", CreateEnvironmentRole)
		v1.GET("/environments/:id/roles", ListEnvironmentRoles)
		v1.PATCH("/roles/:id/status", SetEnvironmentRoleStatus)

		v1.GET("/job-failures", ListJobFailures)
	}
}
