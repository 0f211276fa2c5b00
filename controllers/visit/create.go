package visit

import (
	"errors"
	"fmt"
	"os"

	"visitor-gate/httpServices/mailer"
	"visitor-gate/logger"
	"visitor-gate/middleware"
	visitorModel "visitor-gate/models/visitor"
	"visitor-gate/services/visitflow"
	"visitor-gate/types"
	visitTypes "visitor-gate/types/visit"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateInvitation creates a host-initiated visit in INVITED and emails the
// visitor a registration form link.
func (vc *VisitController) CreateInvitation(c *fiber.Ctx) error {
	var req visitTypes.CreateInvitationRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := req.Validate(); err != nil {
		return vc.respondValidation(c, err)
	}

	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
			Status:  fiber.StatusUnauthorized,
			Message: "Invalid user claims",
		})
	}

	vst, err := vc.findOrCreateVisitor(visitorFields{
		Email:     req.VisitorEmail,
		FirstName: req.VisitorFirstName,
		LastName:  req.VisitorLastName,
		Phone:     req.VisitorPhone,
		Company:   req.VisitorCompany,
	})
	if err != nil {
		return respondError(c, err)
	}

	created, err := vc.Flow.CreateFromInvitation(visitflow.CreateInput{
		VisitorID:           vst.ID,
		HostEmployeeID:      actor.ID,
		Purpose:             req.Purpose,
		PurposeDetails:      req.PurposeDetails,
		ScheduledDate:       req.ScheduledDate,
		ScheduledTimeIn:     req.ScheduledTimeIn,
		ScheduledTimeOut:    req.ScheduledTimeOut,
		VehicleNumber:       req.VehicleNumber,
		NumberOfGuests:      req.NumberOfGuests,
		Guests:              visitTypes.ToGuests(req.Guests),
		SpecialInstructions: req.SpecialInstructions,
	})
	if err != nil {
		return respondError(c, err)
	}

	vc.sendInvitationEmail(vst, created.ID)

	vc.Logger.Log(types.ActivityEntry{
		UserID:      actor.ID,
		VisitID:     created.ID,
		Action:      "VISIT_INVITATION_SENT",
		Description: fmt.Sprintf("Invitation sent to %s", vst.Email),
		IPAddress:   c.IP(),
	})

	return c.Status(fiber.StatusCreated).JSON(types.ApiResponse{
		Status:  fiber.StatusCreated,
		Message: "Invitation sent successfully",
		Data:    created,
	})
}

// Reinvite creates a new visit for an existing visitor, skipping the
// registration step and entering the approval pipeline directly.
func (vc *VisitController) Reinvite(c *fiber.Ctx) error {
	var req visitTypes.ReinviteRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := req.Validate(); err != nil {
		return vc.respondValidation(c, err)
	}

	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
			Status:  fiber.StatusUnauthorized,
			Message: "Invalid user claims",
		})
	}

	created, err := vc.Flow.CreateFromReinvite(visitflow.CreateInput{
		VisitorID:           req.VisitorID,
		HostEmployeeID:      actor.ID,
		Purpose:             req.Purpose,
		PurposeDetails:      req.PurposeDetails,
		ScheduledDate:       req.ScheduledDate,
		ScheduledTimeIn:     req.ScheduledTimeIn,
		ScheduledTimeOut:    req.ScheduledTimeOut,
		VehicleNumber:       req.VehicleNumber,
		NumberOfGuests:      req.NumberOfGuests,
		Guests:              visitTypes.ToGuests(req.Guests),
		SpecialInstructions: req.SpecialInstructions,
	})
	if err != nil {
		return respondError(c, err)
	}

	vc.Logger.Log(types.ActivityEntry{
		UserID:      actor.ID,
		VisitID:     created.ID,
		Action:      "VISITOR_REINVITED",
		Description: fmt.Sprintf("Re-invited visitor %s", created.Visitor.Email),
		IPAddress:   c.IP(),
	})

	return c.Status(fiber.StatusCreated).JSON(types.ApiResponse{
		Status:  fiber.StatusCreated,
		Message: "Visitor re-invited successfully",
		Data:    created,
	})
}

// CreateWalkIn registers a visitor already at the reception. The visit
// enters PENDING_APPROVAL and waits for the host.
func (vc *VisitController) CreateWalkIn(c *fiber.Ctx) error {
	var req visitTypes.CreateWalkInRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := req.Validate(); err != nil {
		return vc.respondValidation(c, err)
	}

	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
			Status:  fiber.StatusUnauthorized,
			Message: "Invalid user claims",
		})
	}

	// Verify the host exists before creating anything.
	var hostCount int64
	if err := vc.DB.Table("users").Where("id = ?", req.HostEmployeeID).Count(&hostCount).Error; err != nil {
		logger.Error("Failed to look up host employee", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Internal server error",
		})
	}
	if hostCount == 0 {
		return c.Status(fiber.StatusNotFound).JSON(types.ApiResponse{
			Status:  fiber.StatusNotFound,
			Error:   kindNotFound,
			Message: "Host employee not found",
		})
	}

	vst, err := vc.findOrCreateVisitor(visitorFields{
		Email:     req.VisitorEmail,
		FirstName: req.VisitorFirstName,
		LastName:  req.VisitorLastName,
		Phone:     req.VisitorPhone,
		Company:   req.VisitorCompany,
		IDType:    req.IDType,
		IDNumber:  req.IDNumber,
	})
	if err != nil {
		return respondError(c, err)
	}

	created, err := vc.Flow.CreateFromWalkIn(visitflow.CreateInput{
		VisitorID:      vst.ID,
		HostEmployeeID: req.HostEmployeeID,
		Purpose:        req.Purpose,
		PurposeDetails: req.PurposeDetails,
	}, actor.ID)
	if err != nil {
		return respondError(c, err)
	}

	vc.Logger.Log(types.ActivityEntry{
		UserID:      actor.ID,
		VisitID:     created.ID,
		Action:      "WALKIN_CREATED",
		Description: fmt.Sprintf("Walk-in visitor created: %s for host %s", vst.Email, req.HostEmployeeID),
		IPAddress:   c.IP(),
	})

	return c.Status(fiber.StatusCreated).JSON(types.ApiResponse{
		Status:  fiber.StatusCreated,
		Message: "Walk-in visitor registered. Awaiting host approval.",
		Data:    created,
	})
}

type visitorFields struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
	Company   string
	IDType    string
	IDNumber  string
}

// findOrCreateVisitor resolves the email-keyed visitor identity, refreshing
// contact details on reuse. Blacklisted identities are rejected before any
// visit row exists.
func (vc *VisitController) findOrCreateVisitor(f visitorFields) (*visitorModel.Visitor, error) {
	var existing visitorModel.Visitor
	err := vc.DB.Where("email = ?", f.Email).First(&existing).Error

	if err == nil {
		if existing.IsBlacklisted {
			return nil, visitflow.ErrBlacklisted
		}
		updates := map[string]interface{}{}
		if f.Phone != "" {
			updates["phone"] = f.Phone
		}
		if f.Company != "" {
			updates["company"] = f.Company
		}
		if f.IDType != "" {
			updates["id_type"] = f.IDType
		}
		if f.IDNumber != "" {
			updates["id_number"] = f.IDNumber
		}
		if len(updates) > 0 {
			if err := vc.DB.Model(&existing).Updates(updates).Error; err != nil {
				return nil, err
			}
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := visitorModel.Visitor{
		ID:        uuid.NewString(),
		Email:     f.Email,
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Phone:     f.Phone,
		Company:   f.Company,
		IDType:    f.IDType,
		IDNumber:  f.IDNumber,
	}
	if err := vc.DB.Create(&created).Error; err != nil {
		return nil, err
	}
	return &created, nil
}

func (vc *VisitController) sendInvitationEmail(vst *visitorModel.Visitor, visitID string) {
	if vc.Mailer == nil {
		return
	}
	formURL := fmt.Sprintf("%s/visitor/complete/%s", os.Getenv("FRONTEND_URL"), visitID)

	go func() {
		err := vc.Mailer.Send(mailer.SendRequest{
			To:       vst.Email,
			Template: mailer.TemplateVisitorInvitation,
			Data: map[string]interface{}{
				"visitorName": vst.FullName(),
				"formUrl":     formURL,
			},
		})
		if err != nil {
			logger.Error("Failed to send invitation email to "+vst.Email, err)
		}
	}()
}

func (vc *VisitController) respondValidation(c *fiber.Ctx, err error) error {
	if errors.Is(err, visitTypes.ErrGuestManifestInvalid) {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
		Status:  fiber.StatusBadRequest,
		Message: err.Error(),
	})
}
