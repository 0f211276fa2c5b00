package routes

import (
	"os"

	authController "visitor-gate/controllers/auth"
	passController "visitor-gate/controllers/pass"
	userController "visitor-gate/controllers/user"
	visitController "visitor-gate/controllers/visit"
	visitorController "visitor-gate/controllers/visitor"
	"visitor-gate/httpServices/mailer"
	"visitor-gate/logger"
	"visitor-gate/middleware"
	"visitor-gate/models/user"
	"visitor-gate/services/notify"
	"visitor-gate/services/pass"
	"visitor-gate/services/visitflow"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, db *gorm.DB) {
	codec := pass.NewCodec(os.Getenv("QR_SECRET"))
	mailClient := mailer.NewClientFromEnv()
	asyncLogger := logger.NewAsyncLogger(db)

	store := visitflow.NewGormStore(db)
	dispatcher := notify.NewService(db, mailClient, codec)
	flow := visitflow.NewService(store, dispatcher, codec)

	auth := authController.NewAuthController(db, asyncLogger)
	users := userController.NewUserController(db)
	visits := visitController.NewVisitController(db, flow, mailClient, asyncLogger)
	visitors := visitorController.NewVisitorController(db, flow, asyncLogger)
	passes := passController.NewPassController(db, codec)

	// Start the async logger processing goroutine
	go asyncLogger.ProcessLog()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	/*=============================================================================
	| Public Routes
	===============================================================================*/
	api := app.Group("/api")
	api.Post("/login", auth.Login)
	api.Post("/register", auth.Register)

	// The registration form link emailed to invited visitors carries the
	// visit id as its credential; no account exists on the visitor side.
	api.Post("/visits/:id/complete-registration", visits.CompleteRegistration)

	/*=============================================================================
	| Authenticated Routes
	===============================================================================*/
	authed := api.Group("/auth").Use(middleware.RequireAuthentication())
	authed.Get("/profile", users.Profile)
	authed.Post("/logout", auth.Logout)

	userGroup := api.Group("/users").Use(middleware.RequireAuthentication())
	userGroup.Get("/hosts", users.ListHosts)

	/*=============================================================================
	| Visit Routes
	===============================================================================*/
	visitGroup := api.Group("/visits")

	visitGroup.Post("/invite", middleware.RequireAuthentication(), visits.CreateInvitation)
	visitGroup.Post("/:id/reinvite", middleware.RequireAuthentication(), visits.Reinvite)
	visitGroup.Post("/walk-in", middleware.RequireRoles(
		user.RoleSecurityGuard, user.RoleSecurityManager, user.RoleAdmin,
	), visits.CreateWalkIn)

	visitGroup.Post("/:id/approve", middleware.RequireRoles(
		user.RoleProcessAdmin, user.RoleSecurityManager, user.RoleAdmin,
	), visits.Approve)
	visitGroup.Post("/:id/reject", middleware.RequireRoles(
		user.RoleProcessAdmin, user.RoleSecurityManager, user.RoleAdmin,
	), visits.Reject)

	visitGroup.Post("/check-in-qr", middleware.RequireRoles(
		user.RoleSecurityGuard, user.RoleSecurityManager, user.RoleAdmin,
	), visits.CheckInByQR)
	visitGroup.Post("/:id/check-in", middleware.RequireRoles(
		user.RoleSecurityGuard, user.RoleSecurityManager, user.RoleAdmin,
	), visits.CheckIn)
	visitGroup.Post("/:id/check-out", middleware.RequireAuthentication(), visits.CheckOut)
	visitGroup.Post("/:id/extend", middleware.RequireAuthentication(), visits.Extend)
	visitGroup.Post("/:id/cancel", middleware.RequireAuthentication(), visits.Cancel)
	visitGroup.Post("/:id/meeting-status", middleware.RequireAuthentication(), visits.UpdateMeetingStatus)

	visitGroup.Get("/today", middleware.RequireRoles(
		user.RoleSecurityGuard, user.RoleSecurityManager, user.RoleAdmin,
	), visits.GetTodaysVisits)
	visitGroup.Get("/pending-approvals", middleware.RequireRoles(
		user.RoleProcessAdmin, user.RoleSecurityManager, user.RoleAdmin,
	), visits.GetPendingApprovals)
	visitGroup.Get("/:id/pass", middleware.RequireAuthentication(), passes.GetEntryPass)
	visitGroup.Get("/:id", middleware.RequireAuthentication(), visits.GetVisit)

	/*=============================================================================
	| Visitor Routes
	===============================================================================*/
	visitorGroup := api.Group("/visitors").Use(middleware.RequireAuthentication())
	visitorGroup.Get("/", visitors.ListVisitors)
	visitorGroup.Get("/:id", visitors.GetVisitor)
	visitorGroup.Post("/:id/blacklist", middleware.RequireRoles(
		user.RoleSecurityManager, user.RoleAdmin,
	), visitors.SetBlacklist)
}
