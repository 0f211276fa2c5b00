package visit

import (
	"errors"

	"visitor-gate/httpServices/mailer"
	"visitor-gate/logger"
	visitModel "visitor-gate/models/visit"
	"visitor-gate/services/pass"
	"visitor-gate/services/visitflow"
	"visitor-gate/types"
	visitTypes "visitor-gate/types/visit"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Machine-readable error kinds. Clients dispatch on these, never on the
// human message.
const (
	kindNotFound            = "NOT_FOUND"
	kindInvalidTransition   = "INVALID_TRANSITION"
	kindForbidden           = "FORBIDDEN"
	kindBlacklistedVisitor  = "BLACKLISTED_VISITOR"
	kindInvalidToken        = "INVALID_TOKEN"
	kindTokenVisitMismatch  = "TOKEN_VISIT_MISMATCH"
	kindGuestManifestError  = "GUEST_MANIFEST_INVALID"
	kindStoreConflict       = "STORE_CONFLICT"
	kindExtensionOutOfRange = "EXTENSION_OUT_OF_RANGE"
)

// VisitController handles visit lifecycle HTTP requests.
type VisitController struct {
	DB     *gorm.DB
	Flow   *visitflow.Service
	Mailer *mailer.Client
	Logger *logger.AsyncLogger
}

// NewVisitController creates a new visit controller.
func NewVisitController(db *gorm.DB, flow *visitflow.Service, mailClient *mailer.Client, asyncLogger *logger.AsyncLogger) *VisitController {
	return &VisitController{
		DB:     db,
		Flow:   flow,
		Mailer: mailClient,
		Logger: asyncLogger,
	}
}

// withConflictRetry reruns a transition once when the conditional update
// lost a race; a second conflict is surfaced to the caller as transient.
func withConflictRetry(fn func() (*visitModel.Visit, error)) (*visitModel.Visit, error) {
	v, err := fn()
	if errors.Is(err, visitflow.ErrStoreConflict) {
		v, err = fn()
	}
	return v, err
}

// respondError maps core errors to a stable machine-readable kind plus a
// human message.
func respondError(c *fiber.Ctx, err error) error {
	if ite, ok := visitflow.AsInvalidTransition(err); ok {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Error:   kindInvalidTransition,
			Message: ite.Error(),
			Data:    fiber.Map{"current_status": ite.Current},
		})
	}

	switch {
	case errors.Is(err, visitflow.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(types.ApiResponse{
			Status:  fiber.StatusNotFound,
			Error:   kindNotFound,
			Message: "Visit not found",
		})
	case errors.Is(err, visitflow.ErrVisitorNotFound):
		return c.Status(fiber.StatusNotFound).JSON(types.ApiResponse{
			Status:  fiber.StatusNotFound,
			Error:   kindNotFound,
			Message: "Visitor not found",
		})
	case errors.Is(err, visitflow.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(types.ApiResponse{
			Status:  fiber.StatusForbidden,
			Error:   kindForbidden,
			Message: "Not authorized for this action",
		})
	case errors.Is(err, visitflow.ErrBlacklisted):
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Error:   kindBlacklistedVisitor,
			Message: "Visitor is blacklisted",
		})
	case errors.Is(err, pass.ErrMalformed), errors.Is(err, pass.ErrInvalidSignature), errors.Is(err, pass.ErrExpired):
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Error:   kindInvalidToken,
			Message: "Invalid or expired QR code",
		})
	case errors.Is(err, visitflow.ErrTokenVisitMismatch):
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Error:   kindTokenVisitMismatch,
			Message: "QR code does not match this visit",
		})
	case errors.Is(err, visitflow.ErrExtensionOutOfRange):
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Error:   kindExtensionOutOfRange,
			Message: err.Error(),
		})
	case errors.Is(err, visitflow.ErrStoreConflict):
		return c.Status(fiber.StatusConflict).JSON(types.ApiResponse{
			Status:  fiber.StatusConflict,
			Error:   kindStoreConflict,
			Message: "Visit was modified concurrently, please retry",
		})
	case errors.Is(err, visitTypes.ErrGuestManifestInvalid):
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Error:   kindGuestManifestError,
			Message: err.Error(),
		})
	}

	logger.Error("Unhandled visit error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
		Status:  fiber.StatusInternalServerError,
		Message: "Internal server error",
	})
}
