package visitor

import (
	"fmt"

	"visitor-gate/logger"
	"visitor-gate/middleware"
	visitorModel "visitor-gate/models/visitor"
	"visitor-gate/services/visitflow"
	"visitor-gate/types"
	visitorTypes "visitor-gate/types/visitor"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// VisitorController handles visitor identity HTTP requests.
type VisitorController struct {
	DB     *gorm.DB
	Flow   *visitflow.Service
	Logger *logger.AsyncLogger
}

// NewVisitorController creates a new visitor controller.
func NewVisitorController(db *gorm.DB, flow *visitflow.Service, asyncLogger *logger.AsyncLogger) *VisitorController {
	return &VisitorController{DB: db, Flow: flow, Logger: asyncLogger}
}

// GetVisitor returns a single visitor by id.
func (vc *VisitorController) GetVisitor(c *fiber.Ctx) error {
	id := c.Params("id")

	var v visitorModel.Visitor
	if err := vc.DB.First(&v, "id = ?", id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(types.ApiResponse{
			Status:  fiber.StatusNotFound,
			Error:   "NOT_FOUND",
			Message: "Visitor not found",
		})
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status: fiber.StatusOK,
		Data:   v,
	})
}

// ListVisitors returns visitors, optionally filtered by a search term over
// name, email and company.
func (vc *VisitorController) ListVisitors(c *fiber.Ctx) error {
	query := vc.DB.Model(&visitorModel.Visitor{}).Order("created_at desc")

	if search := c.Query("search"); search != "" {
		like := "%" + search + "%"
		query = query.Where(
			"email ILIKE ? OR first_name ILIKE ? OR last_name ILIKE ? OR company ILIKE ?",
			like, like, like, like)
	}
	if c.Query("blacklisted") == "true" {
		query = query.Where("is_blacklisted = ?", true)
	}

	var visitors []visitorModel.Visitor
	if err := query.Limit(100).Find(&visitors).Error; err != nil {
		logger.Error("Failed to list visitors", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Internal server error",
		})
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status: fiber.StatusOK,
		Data:   visitors,
	})
}

// SetBlacklist toggles the blacklist flag. Turning it on also sweeps the
// visitor's not-yet-started visits into CANCELLED so no stale approval can
// be used at the gate.
func (vc *VisitorController) SetBlacklist(c *fiber.Ctx) error {
	id := c.Params("id")
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
			Status:  fiber.StatusUnauthorized,
			Message: "Invalid user claims",
		})
	}

	var req visitorTypes.BlacklistRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	var v visitorModel.Visitor
	if err := vc.DB.First(&v, "id = ?", id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(types.ApiResponse{
			Status:  fiber.StatusNotFound,
			Error:   "NOT_FOUND",
			Message: "Visitor not found",
		})
	}

	v.IsBlacklisted = req.IsBlacklisted
	if req.IsBlacklisted && req.Reason != "" {
		v.BlacklistReason = &req.Reason
	}
	if !req.IsBlacklisted {
		v.BlacklistReason = nil
	}

	if err := vc.DB.Model(&v).Select("is_blacklisted", "blacklist_reason").Updates(map[string]any{
		"is_blacklisted":   v.IsBlacklisted,
		"blacklist_reason": v.BlacklistReason,
	}).Error; err != nil {
		logger.Error("Failed to update blacklist flag", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Internal server error",
		})
	}

	var cancelled int64
	if req.IsBlacklisted {
		n, err := vc.Flow.CancelAllForBlacklistedVisitor(v.ID)
		if err != nil {
			// The flag itself is already set; the sweep is best effort and
			// check-in re-checks the flag anyway.
			logger.Error("Blacklist cascade failed", err)
		}
		cancelled = n
	}

	action := "VISITOR_BLACKLISTED"
	if !req.IsBlacklisted {
		action = "VISITOR_UNBLACKLISTED"
	}
	vc.Logger.Log(types.ActivityEntry{
		UserID:      actor.ID,
		Action:      action,
		Description: fmt.Sprintf("Blacklist set to %t for %s (%d visits cancelled)", req.IsBlacklisted, v.Email, cancelled),
		IPAddress:   c.IP(),
	})

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Visitor blacklist updated",
		Data: fiber.Map{
			"visitor":          v,
			"cancelled_visits": cancelled,
		},
	})
}
