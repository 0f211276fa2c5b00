package pass

import (
	"visitor-gate/logger"
	visitModel "visitor-gate/models/visit"
	passService "visitor-gate/services/pass"
	"visitor-gate/types"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// PassController serves the printable entry pass for an approved visit.
type PassController struct {
	DB    *gorm.DB
	Codec *passService.Codec
}

func NewPassController(db *gorm.DB, codec *passService.Codec) *PassController {
	return &PassController{DB: db, Codec: codec}
}

// GetEntryPass returns the pass document: visit details, the pass number
// and a QR image the gate scanner accepts. Only visits that have actually
// been approved carry a pass.
func (pc *PassController) GetEntryPass(c *fiber.Ctx) error {
	id := c.Params("id")

	var v visitModel.Visit
	err := pc.DB.Preload("Visitor").Preload("HostEmployee").
		First(&v, "id = ?", id).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(types.ApiResponse{
			Status:  fiber.StatusNotFound,
			Error:   "NOT_FOUND",
			Message: "Visit not found",
		})
	}

	if !v.HasPass() {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Error:   "PASS_NOT_ISSUED",
			Message: "This visit has no entry pass. It may not be approved yet.",
		})
	}

	qrImage, err := pc.Codec.QRDataURL(*v.QRCode)
	if err != nil {
		logger.Error("Failed to render pass QR", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Internal server error",
		})
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status: fiber.StatusOK,
		Data: fiber.Map{
			"pass_number":        *v.PassNumber,
			"qr_image":           qrImage,
			"visitor_name":       v.Visitor.FullName(),
			"visitor_company":    v.Visitor.Company,
			"host_name":          v.HostEmployee.FullName(),
			"host_department":    v.HostEmployee.Department,
			"purpose":            v.Purpose,
			"scheduled_date":     v.ScheduledDate,
			"scheduled_time_in":  v.ScheduledTimeIn,
			"scheduled_time_out": v.ScheduledTimeOut,
			"number_of_guests":   v.NumberOfGuests,
			"vehicle_number":     v.VehicleNumber,
			"status":             v.Status,
		},
	})
}
