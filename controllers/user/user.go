package user

import (
	"visitor-gate/middleware"
	userModel "visitor-gate/models/user"
	"visitor-gate/types"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// UserController serves employee account reads.
type UserController struct {
	DB *gorm.DB
}

func NewUserController(db *gorm.DB) *UserController {
	return &UserController{DB: db}
}

// Profile returns the authenticated user's own account.
func (uc *UserController) Profile(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
			Status:  fiber.StatusUnauthorized,
			Message: "Invalid user claims",
		})
	}

	var u userModel.User
	if err := uc.DB.First(&u, "id = ?", actor.ID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(types.ApiResponse{
			Status:  fiber.StatusNotFound,
			Error:   "NOT_FOUND",
			Message: "User not found",
		})
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status: fiber.StatusOK,
		Data:   u,
	})
}

// ListHosts returns active employees that can host a visit, for the
// invitation form's host picker.
func (uc *UserController) ListHosts(c *fiber.Ctx) error {
	var hosts []userModel.User
	err := uc.DB.
		Where("status = ?", "ACTIVE").
		Order("first_name asc").
		Find(&hosts).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Internal server error",
		})
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status: fiber.StatusOK,
		Data:   hosts,
	})
}
