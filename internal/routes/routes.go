package routes

import (
	"github.com/gin-gonic/gin"

	"loanops/internal/authz"
	"loanops/internal/handlers"
	"loanops/internal/middleware"
)

type Handlers struct {
	Auth       *handlers.AuthHandler
	User       *handlers.UserHandler
	Lead       *handlers.LeadHandler
	Pipeline   *handlers.PipelineHandler
	Ussd       *handlers.UssdHandler
	Accounting *handlers.AccountingHandler
	Report     *handlers.ReportHandler
}

func SetupRoutes(r *gin.Engine, h Handlers, jwtSecret string) *gin.Engine {
	// ---- public
	r.POST("/login", h.Auth.Login)
	r.POST("/refresh", h.Auth.Refresh)
	r.POST("/password/forgot", h.Auth.ForgotPassword)
	r.POST("/password/reset", h.Auth.ResetPassword)
	r.POST("/logout", h.Auth.Logout)

	// ---- protected
	api := r.Group("/", middleware.AuthMiddleware(jwtSecret), middleware.ReadOnlyGuard())

	// USERS
	api.GET("/me", h.User.Me)
	users := api.Group("/users", middleware.RequireRoles(authz.RoleBranchManager, authz.RoleAdmin))
	{
		users.GET("", h.User.List)
		users.POST("", h.User.Create)
		users.PUT("/:id/active", h.User.SetActive)
	}

	// LEADS
	leads := api.Group("/leads")
	{
		leads.GET("", h.Lead.List)
		leads.GET("/export.xlsx", h.Lead.ExportXLSX)
		leads.POST("/autosave", h.Lead.AutoSave)
		leads.PUT("/:id/autosave", h.Lead.AutoSave)
		leads.GET("/:id", h.Lead.GetByID)
		leads.GET("/:id/summary.pdf", h.Lead.SummaryPDF)
		leads.POST("/:id/cancel", h.Lead.Cancel)
		leads.POST("/:id/convert", h.Lead.Convert)
		leads.POST("/:id/submit", h.Lead.Submit)
		leads.POST("/:id/draft", h.Lead.SaveDraft)

		leads.GET("/:id/family", h.Lead.ListFamily)
		leads.POST("/:id/family", h.Lead.AddFamily)
		leads.PUT("/:id/family/:memberId", h.Lead.UpdateFamily)
		leads.DELETE("/:id/family/:memberId", h.Lead.DeleteFamily)

		leads.GET("/:id/validations", h.Pipeline.Validations)
		leads.GET("/:id/timeline", h.Pipeline.Timeline)
		leads.POST("/:id/stage", h.Pipeline.MoveStage)
	}

	// PIPELINE
	pipeline := api.Group("/pipeline")
	{
		pipeline.GET("/stages", h.Pipeline.ListStages)
		pipeline.GET("/funnel", h.Pipeline.Funnel)
		pipeline.GET("/metrics", h.Pipeline.Metrics)

		admin := pipeline.Group("", middleware.RequireRoles(authz.RoleBranchManager, authz.RoleAdmin))
		admin.POST("/stages", h.Pipeline.CreateStage)
		admin.PUT("/stages/:stageId", h.Pipeline.UpdateStage)
	}

	// USSD
	ussd := api.Group("/ussd/applications")
	{
		ussd.GET("", h.Ussd.List)
		ussd.GET("/:id", h.Ussd.Get)
		ussd.GET("/:id/sagas", h.Ussd.Sagas)
		ussd.POST("/:id/status", h.Ussd.UpdateStatus)
		ussd.POST("/:id/promote", h.Ussd.Promote)
	}

	// ACCOUNTING (reads open to all staff; postings to accountants and admins)
	acc := api.Group("/accounting")
	{
		acc.GET("/offices", h.Accounting.Offices)
		acc.GET("/currencies", h.Accounting.Currencies)
		acc.GET("/payment-types", h.Accounting.PaymentTypes)
		acc.GET("/gl-accounts", h.Accounting.GLAccounts)
		acc.GET("/rules", h.Accounting.Rules)
		acc.GET("/journal-entries", h.Accounting.SearchEntries)

		post := acc.Group("", middleware.RequireRoles(authz.RoleAccountant, authz.RoleAdmin))
		post.POST("/journal-entries", h.Accounting.CreateEntry)
		post.POST("/journal-entries/:transactionId/reverse", h.Accounting.ReverseEntry)
		post.POST("/frequent-postings", h.Accounting.FrequentPosting)
	}
	api.GET("/loans/template", h.Accounting.LoanTemplate)

	// REPORTS
	reports := api.Group("/reports")
	{
		reports.GET("", h.Report.List)
		reports.GET("/dashboard", h.Report.Dashboard)
		reports.GET("/options/:param", h.Report.ParameterOptions)
		reports.GET("/:name/parameters", h.Report.Parameters)
		reports.GET("/:name/run", h.Report.Run)
	}

	return r
}
