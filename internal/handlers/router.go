// CloudMigrate Pro route table

package handlers

import (
	"cloudmigrate/internal/metrics"
	"cloudmigrate/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RouterOptions controls optional middleware on the route table.
type RouterOptions struct {
	GeneralLimiter *middleware.IPRateLimiter
	AuthLimiter    *middleware.IPRateLimiter
}

// NewRouter builds the full HTTP surface.
func (h *Handler) NewRouter(opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Security())
	router.Use(metrics.PrometheusMiddleware())
	if opts.GeneralLimiter != nil {
		router.Use(middleware.RateLimit(opts.GeneralLimiter))
	}

	router.GET("/healthz", h.Health)
	router.GET("/metrics", metrics.PrometheusHandler())

	api := router.Group("/api")

	authGroup := api.Group("/auth")
	if opts.AuthLimiter != nil {
		authGroup.Use(middleware.RateLimit(opts.AuthLimiter))
	}
	authGroup.POST("/signup", h.Signup)
	authGroup.POST("/login", h.Login)

	// The webhook authenticates with its signature, not a session.
	api.POST("/billing/webhook", h.Webhook)

	session := api.Group("")
	session.Use(middleware.RequireSession(h.JWT))
	{
		session.POST("/auth/logout", h.Logout)
		session.GET("/me", h.Me)

		session.GET("/app/state", h.GetAppState)
		session.PUT("/app/state", h.PutAppState)
		session.POST("/usage/report", h.ReportUsage)

		session.POST("/billing/checkout", h.CreateCheckout)
		session.POST("/billing/portal", h.CreatePortal)

		mspGroup := session.Group("/msp")
		{
			mspGroup.GET("/orgs", h.ListOrgs)
			mspGroup.POST("/orgs", h.CreateOrg)
			mspGroup.PUT("/orgs/:id/branding", h.UpdateBranding)

			mspGroup.GET("/clients", h.ListClients)
			mspGroup.POST("/clients", h.CreateClient)

			mspGroup.GET("/projects", h.ListProjects)
			mspGroup.POST("/projects", h.CreateProject)

			mspGroup.GET("/proposals", h.ListProposals)
			mspGroup.POST("/proposals", h.CreateProposal)
			mspGroup.POST("/proposals/:id/versions", h.BranchProposal)
			mspGroup.POST("/proposals/:id/send", h.SendProposal)
			mspGroup.GET("/proposals/:id/pdf", h.ProposalPDF)
		}
	}

	return router
}
