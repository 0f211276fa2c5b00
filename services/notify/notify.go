package notify

import (
	"encoding/json"
	"fmt"

	"visitor-gate/httpServices/mailer"
	"visitor-gate/logger"
	notificationModel "visitor-gate/models/notification"
	userModel "visitor-gate/models/user"
	visitModel "visitor-gate/models/visit"
	"visitor-gate/services/pass"

	"gorm.io/gorm"
)

// Service delivers effect intents emitted by the state machine: in-app
// notification rows plus templated emails through the mail relay. Every
// delivery runs detached from the transition that produced it — the visit
// row has already committed, so failures here are logged and swallowed,
// never escalated to the caller.
type Service struct {
	DB     *gorm.DB
	Mailer *mailer.Client
	Codec  *pass.Codec
}

func NewService(db *gorm.DB, mailClient *mailer.Client, codec *pass.Codec) *Service {
	return &Service{DB: db, Mailer: mailClient, Codec: codec}
}

// Notify implements visitflow.Dispatcher. Fire-and-forget by contract.
func (s *Service) Notify(kind notificationModel.Kind, v *visitModel.Visit) {
	go s.deliver(kind, v)
}

func (s *Service) deliver(kind notificationModel.Kind, v *visitModel.Visit) {
	switch kind {
	case notificationModel.KindVisitApprovalRequired:
		s.notifyApprovers(kind, v,
			"Visit Pending Approval",
			fmt.Sprintf("%s has a visit awaiting approval, hosted by %s.", v.Visitor.FullName(), v.HostEmployee.FullName()))

	case notificationModel.KindWalkInApprovalRequired:
		s.notifyUser(v.HostEmployeeID, kind, v,
			"Walk-in Visitor Waiting",
			fmt.Sprintf("%s is at the reception and wants to meet you. Please approve or reject.", v.Visitor.FullName()))

	case notificationModel.KindVisitApproved:
		s.notifyUser(v.HostEmployeeID, kind, v,
			"Visit Approved",
			fmt.Sprintf("Visit for %s has been approved.", v.Visitor.FullName()))
		s.emailApprovedVisitor(v)

	case notificationModel.KindVisitRejected:
		reason := ""
		if v.RejectionReason != nil && *v.RejectionReason != "" {
			reason = " Reason: " + *v.RejectionReason
		}
		s.notifyUser(v.HostEmployeeID, kind, v,
			"Visit Rejected",
			fmt.Sprintf("Visit for %s has been rejected.%s", v.Visitor.FullName(), reason))

	case notificationModel.KindVisitorArrived:
		s.notifyUser(v.HostEmployeeID, kind, v,
			"👋 Visitor Arrived",
			fmt.Sprintf("%s has checked in and is waiting for you.", v.Visitor.FullName()))
		s.emailHost(v, mailer.TemplateVisitorArrived)

	case notificationModel.KindVisitorCheckedOut:
		s.notifyUser(v.HostEmployeeID, kind, v,
			"Visitor Checked Out",
			fmt.Sprintf("%s has checked out.", v.Visitor.FullName()))

	default:
		logger.Warning(fmt.Sprintf("Unknown notification kind: %s", kind))
	}
}

// notifyApprovers fans one notification out to every active approver.
func (s *Service) notifyApprovers(kind notificationModel.Kind, v *visitModel.Visit, title, message string) {
	var approvers []userModel.User
	err := s.DB.Where("role IN ? AND status = ?",
		[]userModel.Role{userModel.RoleProcessAdmin, userModel.RoleSecurityManager}, "ACTIVE").
		Find(&approvers).Error
	if err != nil {
		logger.Error("Failed to load approvers for notification", err)
		return
	}

	for i := range approvers {
		s.notifyUser(approvers[i].ID, kind, v, title, message)
	}
}

func (s *Service) notifyUser(userID string, kind notificationModel.Kind, v *visitModel.Visit, title, message string) {
	metadata, _ := json.Marshal(map[string]string{"visitId": v.ID})

	n := notificationModel.Notification{
		UserID:   userID,
		Title:    title,
		Message:  message,
		Kind:     kind,
		Metadata: string(metadata),
	}
	if err := s.DB.Create(&n).Error; err != nil {
		logger.Error(fmt.Sprintf("Failed to create %s notification for user %s", kind, userID), err)
	}
}

// emailApprovedVisitor sends the approval email with the QR pass attached.
func (s *Service) emailApprovedVisitor(v *visitModel.Visit) {
	if s.Mailer == nil || v.QRCode == nil {
		return
	}

	qrDataURL, err := s.Codec.QRDataURL(*v.QRCode)
	if err != nil {
		logger.Error("Failed to render QR for approval email", err)
		return
	}

	err = s.Mailer.Send(mailer.SendRequest{
		To:       v.Visitor.Email,
		Template: mailer.TemplateVisitApproved,
		Data: map[string]interface{}{
			"visitorName":   v.Visitor.FullName(),
			"hostName":      v.HostEmployee.FullName(),
			"scheduledDate": v.ScheduledDate,
			"passNumber":    v.PassNumber,
			"qrCodeDataUrl": qrDataURL,
		},
	})
	if err != nil {
		logger.Error("Failed to send approval email to "+v.Visitor.Email, err)
	}
}

func (s *Service) emailHost(v *visitModel.Visit, template string) {
	if s.Mailer == nil || v.HostEmployee.Email == "" {
		return
	}

	err := s.Mailer.Send(mailer.SendRequest{
		To:       v.HostEmployee.Email,
		Template: template,
		Data: map[string]interface{}{
			"visitorName": v.Visitor.FullName(),
			"hostName":    v.HostEmployee.FullName(),
			"visitId":     v.ID,
		},
	})
	if err != nil {
		logger.Error("Failed to send email to host "+v.HostEmployee.Email, err)
	}
}
