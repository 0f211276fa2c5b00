package visit

import (
	"errors"
	"fmt"

	"visitor-gate/logger"
	"visitor-gate/middleware"
	visitModel "visitor-gate/models/visit"
	"visitor-gate/services/visitflow"
	"visitor-gate/types"
	visitTypes "visitor-gate/types/visit"

	"github.com/gofiber/fiber/v2"
	"github.com/jinzhu/now"
	"gorm.io/gorm"
)

// CompleteRegistration is hit from the visitor's registration form link.
// No authentication: the unguessable visit id in the link is the credential,
// as with any emailed form token.
func (vc *VisitController) CompleteRegistration(c *fiber.Ctx) error {
	id := c.Params("id")

	updated, err := withConflictRetry(func() (*visitModel.Visit, error) {
		return vc.Flow.CompleteRegistration(id)
	})
	if err != nil {
		return respondError(c, err)
	}

	vc.Logger.Log(types.ActivityEntry{
		VisitID:     updated.ID,
		Action:      "REGISTRATION_COMPLETED",
		Description: fmt.Sprintf("Visitor %s completed registration", updated.Visitor.Email),
		IPAddress:   c.IP(),
	})

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Registration completed. Awaiting approval.",
		Data:    updated,
	})
}

// Approve moves a pending visit to APPROVED and issues the pass.
func (vc *VisitController) Approve(c *fiber.Ctx) error {
	id := c.Params("id")
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
			Status:  fiber.StatusUnauthorized,
			Message: "Invalid user claims",
		})
	}

	updated, err := withConflictRetry(func() (*visitModel.Visit, error) {
		return vc.Flow.Approve(id, actor)
	})
	if err != nil {
		return respondError(c, err)
	}

	logger.Success(fmt.Sprintf("Visit %s approved, pass %s issued", updated.ID, *updated.PassNumber))
	vc.Logger.Log(types.ActivityEntry{
		UserID:      actor.ID,
		VisitID:     updated.ID,
		Action:      "VISIT_APPROVED",
		Description: fmt.Sprintf("Visit approved for %s", updated.Visitor.Email),
		IPAddress:   c.IP(),
	})

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Visit approved successfully",
		Data:    updated,
	})
}

// Reject moves a pending visit to REJECTED.
func (vc *VisitController) Reject(c *fiber.Ctx) error {
	id := c.Params("id")
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
			Status:  fiber.StatusUnauthorized,
			Message: "Invalid user claims",
		})
	}

	var req visitTypes.RejectRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	updated, err := withConflictRetry(func() (*visitModel.Visit, error) {
		return vc.Flow.Reject(id, actor, req.Reason)
	})
	if err != nil {
		return respondError(c, err)
	}

	reason := req.Reason
	if reason == "" {
		reason = "Not specified"
	}
	vc.Logger.Log(types.ActivityEntry{
		UserID:      actor.ID,
		VisitID:     updated.ID,
		Action:      "VISIT_REJECTED",
		Description: fmt.Sprintf("Visit rejected for %s. Reason: %s", updated.Visitor.Email, reason),
		IPAddress:   c.IP(),
	})

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Visit rejected",
		Data:    updated,
	})
}

// CheckIn is the manual gate-desk path.
func (vc *VisitController) CheckIn(c *fiber.Ctx) error {
	id := c.Params("id")
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
			Status:  fiber.StatusUnauthorized,
			Message: "Invalid user claims",
		})
	}

	updated, err := withConflictRetry(func() (*visitModel.Visit, error) {
		return vc.Flow.CheckIn(id, actor)
	})
	if err != nil {
		return respondError(c, err)
	}

	vc.Logger.Log(types.ActivityEntry{
		UserID:      actor.ID,
		VisitID:     updated.ID,
		Action:      "VISITOR_CHECKED_IN",
		Description: fmt.Sprintf("Visitor checked in: %s", updated.Visitor.Email),
		IPAddress:   c.IP(),
	})

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Visitor checked in successfully",
		Data:    updated,
	})
}

// CheckInByQR verifies a scanned pass token and applies the same check-in
// guard as the manual path.
func (vc *VisitController) CheckInByQR(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
			Status:  fiber.StatusUnauthorized,
			Message: "Invalid user claims",
		})
	}

	var req visitTypes.CheckInByTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: err.Error(),
		})
	}

	updated, err := withConflictRetry(func() (*visitModel.Visit, error) {
		return vc.Flow.CheckInByToken(req.QRData, actor)
	})
	if err != nil {
		return respondError(c, err)
	}

	vc.Logger.Log(types.ActivityEntry{
		UserID:      actor.ID,
		VisitID:     updated.ID,
		Action:      "VISITOR_CHECKED_IN_QR",
		Description: fmt.Sprintf("Visitor checked in via QR: %s", updated.Visitor.Email),
		IPAddress:   c.IP(),
	})

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Visitor checked in successfully",
		Data:    updated,
	})
}

// CheckOut ends the visit. Duplicate gate-scan submissions are tolerated:
// checking out an already checked-out visit succeeds without changes.
func (vc *VisitController) CheckOut(c *fiber.Ctx) error {
	id := c.Params("id")
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
			Status:  fiber.StatusUnauthorized,
			Message: "Invalid user claims",
		})
	}

	updated, err := withConflictRetry(func() (*visitModel.Visit, error) {
		return vc.Flow.CheckOut(id, actor)
	})
	if err != nil {
		return respondError(c, err)
	}

	vc.Logger.Log(types.ActivityEntry{
		UserID:      actor.ID,
		VisitID:     updated.ID,
		Action:      "VISITOR_CHECKED_OUT",
		Description: fmt.Sprintf("Visitor checked out: %s", updated.Visitor.Email),
		IPAddress:   c.IP(),
	})

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Visitor checked out successfully",
		Data:    updated,
	})
}

// Extend pushes the scheduled end of a checked-in visit out by 15–120
// minutes.
func (vc *VisitController) Extend(c *fiber.Ctx) error {
	id := c.Params("id")
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
			Status:  fiber.StatusUnauthorized,
			Message: "Invalid user claims",
		})
	}

	var req visitTypes.ExtendRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: err.Error(),
		})
	}

	updated, err := withConflictRetry(func() (*visitModel.Visit, error) {
		return vc.Flow.Extend(id, req.Minutes)
	})
	if err != nil {
		return respondError(c, err)
	}

	vc.Logger.Log(types.ActivityEntry{
		UserID:      actor.ID,
		VisitID:     updated.ID,
		Action:      "VISIT_EXTENDED",
		Description: fmt.Sprintf("Visit extended by %d minutes", req.Minutes),
		IPAddress:   c.IP(),
	})

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: fmt.Sprintf("Visit extended by %d minutes", req.Minutes),
		Data:    fiber.Map{"new_end_time": updated.ScheduledTimeOut, "extension_count": updated.ExtensionCount},
	})
}

// Cancel moves a not-yet-started visit to CANCELLED.
func (vc *VisitController) Cancel(c *fiber.Ctx) error {
	id := c.Params("id")
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
			Status:  fiber.StatusUnauthorized,
			Message: "Invalid user claims",
		})
	}

	updated, err := withConflictRetry(func() (*visitModel.Visit, error) {
		return vc.Flow.Cancel(id, actor)
	})
	if err != nil {
		return respondError(c, err)
	}

	vc.Logger.Log(types.ActivityEntry{
		UserID:      actor.ID,
		VisitID:     updated.ID,
		Action:      "VISIT_CANCELLED",
		Description: fmt.Sprintf("Visit cancelled for %s", updated.Visitor.Email),
		IPAddress:   c.IP(),
	})

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Visit cancelled",
		Data:    updated,
	})
}

// UpdateMeetingStatus backs the end-of-meeting prompt shown to hosts. It
// reuses check-out and extend verbatim; there is no separate state.
func (vc *VisitController) UpdateMeetingStatus(c *fiber.Ctx) error {
	id := c.Params("id")
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
			Status:  fiber.StatusUnauthorized,
			Message: "Invalid user claims",
		})
	}

	var req visitTypes.MeetingStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	if req.IsOver {
		updated, err := withConflictRetry(func() (*visitModel.Visit, error) {
			return vc.Flow.CheckOut(id, actor)
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
			Status:  fiber.StatusOK,
			Message: "Visitor checked out",
			Data:    updated,
		})
	}

	updated, err := withConflictRetry(func() (*visitModel.Visit, error) {
		return vc.Flow.Extend(id, visitflow.MinExtensionMinutes)
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: fmt.Sprintf("Meeting extended by %d minutes", visitflow.MinExtensionMinutes),
		Data:    fiber.Map{"new_end_time": updated.ScheduledTimeOut},
	})
}

// GetVisit returns a single visit with its parties.
func (vc *VisitController) GetVisit(c *fiber.Ctx) error {
	id := c.Params("id")

	var v visitModel.Visit
	err := vc.DB.Preload("Visitor").Preload("HostEmployee").Preload("ApprovedBy").
		First(&v, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return respondError(c, visitflow.ErrNotFound)
	}
	if err != nil {
		logger.Error("Failed to load visit", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Internal server error",
		})
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status: fiber.StatusOK,
		Data:   v,
	})
}

// GetTodaysVisits returns the guard console view: today's approved visits
// split into scheduled and already checked-in.
func (vc *VisitController) GetTodaysVisits(c *fiber.Ctx) error {
	dayStart := now.BeginningOfDay()
	dayEnd := now.EndOfDay()

	var visits []visitModel.Visit
	err := vc.DB.Preload("Visitor").Preload("HostEmployee").
		Where("scheduled_date BETWEEN ? AND ? AND status IN ?",
			dayStart, dayEnd, []visitModel.Status{visitModel.StatusApproved, visitModel.StatusCheckedIn}).
		Order("scheduled_time_in asc").
		Find(&visits).Error
	if err != nil {
		logger.Error("Failed to load today's visits", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Internal server error",
		})
	}

	scheduled := make([]visitModel.Visit, 0, len(visits))
	checkedIn := make([]visitModel.Visit, 0)
	for _, v := range visits {
		if v.Status == visitModel.StatusCheckedIn {
			checkedIn = append(checkedIn, v)
		} else {
			scheduled = append(scheduled, v)
		}
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status: fiber.StatusOK,
		Data: fiber.Map{
			"scheduled":   scheduled,
			"checked_in":  checkedIn,
			"total_today": len(visits),
		},
	})
}

// GetPendingApprovals returns the approval queue.
func (vc *VisitController) GetPendingApprovals(c *fiber.Ctx) error {
	var visits []visitModel.Visit
	err := vc.DB.Preload("Visitor").Preload("HostEmployee").
		Where("status = ?", visitModel.StatusPendingApproval).
		Order("created_at desc").
		Find(&visits).Error
	if err != nil {
		logger.Error("Failed to load pending approvals", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Internal server error",
		})
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status: fiber.StatusOK,
		Data:   visits,
	})
}
