package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/resqnet/backend/internal/middleware"
	"github.com/resqnet/backend/internal/models"
	"github.com/resqnet/backend/internal/services"
	"github.com/resqnet/backend/internal/storage"
	"gorm.io/gorm"
)

// Dependencies carries everything the HTTP layer needs. Audit may be nil.
type Dependencies struct {
	DB            *gorm.DB
	Media         storage.MediaStore
	Reports       *services.ReportService
	Assignments   *services.AssignmentService
	Matching      *services.MatchingService
	Volunteers    *services.VolunteerService
	Audit         *services.AuditService
	SecureCookies bool
}

func SetupRoutes(app *fiber.App, deps Dependencies) {
	authHandler := NewAuthHandler(deps.DB, deps.Audit, deps.Volunteers, deps.Media, deps.SecureCookies)
	reportHandler := NewReportHandler(deps.Reports, deps.Assignments, deps.Matching, deps.Audit)
	volunteerHandler := NewVolunteerHandler(deps.Volunteers, deps.Matching, deps.Media, deps.Audit)
	usersHandler := NewUsersHandler(deps.DB, deps.Volunteers, deps.Audit)

	authMiddleware := middleware.NewAuthMiddleware(deps.DB)

	app.Get("/health", Health(deps.DB))

	api := app.Group("/api")
	api.Get("/version", GetVersion)

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/refresh", authHandler.Refresh)
	authRoutes.Post("/logout", authHandler.Logout)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Put("/me", authMiddleware.RequireAuth, authHandler.UpdateMe)
	authRoutes.Put("/me/location", authMiddleware.RequireAuth, authHandler.UpdateLocation)
	authRoutes.Post("/me/profile-image", authMiddleware.RequireAuth, authHandler.UploadProfileImage)

	reportRoutes := api.Group("/reports", authMiddleware.RequireAuth)
	reportRoutes.Post("/", reportHandler.Create)
	reportRoutes.Get("/", reportHandler.List)
	reportRoutes.Get("/:id", reportHandler.Get)
	reportRoutes.Patch("/:id/status", middleware.RequireRoles(models.UserRoleAdmin, models.UserRoleVolunteer), reportHandler.UpdateStatus)
	reportRoutes.Get("/:id/candidates", middleware.AdminOnly, reportHandler.Candidates)
	reportRoutes.Get("/:id/history", middleware.AdminOnly, reportHandler.History)

	volunteerRoutes := api.Group("/volunteers", authMiddleware.RequireAuth)
	volunteerRoutes.Post("/register", middleware.RequireRoles(models.UserRoleUser), volunteerHandler.Register)
	volunteerRoutes.Patch("/update", middleware.RequireRoles(models.UserRoleVolunteer), volunteerHandler.Update)
	volunteerRoutes.Get("/", middleware.AdminOnly, volunteerHandler.List)
	volunteerRoutes.Get("/nearby", middleware.AdminOnly, volunteerHandler.Nearby)
	volunteerRoutes.Put("/:id/verify", middleware.AdminOnly, volunteerHandler.Verify)

	userRoutes := api.Group("/users", authMiddleware.RequireAuth, middleware.AdminOnly)
	userRoutes.Get("/", usersHandler.List)
	userRoutes.Get("/:id", usersHandler.Get)
	userRoutes.Put("/:id/role", usersHandler.UpdateRole)
}
