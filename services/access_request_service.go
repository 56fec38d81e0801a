package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/terrahaven/api-server-go/events"
	"github.com/terrahaven/api-server-go/models"
	apierrors "github.com/terrahaven/api-server-go/pkg/errors"
	"github.com/terrahaven/api-server-go/pkg/monitoring"
	"gorm.io/gorm"
)

// AccessRequestService handles membership access-request operations
type AccessRequestService struct {
	db        *gorm.DB
	publisher events.Publisher

	// allowTerminalCorrection permits moving a request out of approved or
	// denied for operator mistakes. Off by default.
	allowTerminalCorrection bool

	now func() time.Time
}

// NewAccessRequestService creates a new access request service
func NewAccessRequestService(db *gorm.DB, publisher events.Publisher) *AccessRequestService {
	return &AccessRequestService{
		db:        db,
		publisher: publisher,
		now:       time.Now,
	}
}

// SetAllowTerminalCorrection toggles correction of terminal statuses
func (s *AccessRequestService) SetAllowTerminalCorrection(allow bool) {
	s.allowTerminalCorrection = allow
}

// CreateAccessRequest records an applicant submission. Requests always start
// at pending; no administrator input is involved.
func (s *AccessRequestService) CreateAccessRequest(req *models.CreateAccessRequestRequest) (*models.AccessRequestResponse, error) {
	if !req.Role.Valid() {
		return nil, apierrors.ValidationErrorWithDetails("INVALID_ROLE", "requested role must be client or broker", string(req.Role))
	}
	if req.FullName == "" || req.Email == "" || req.Phone == "" {
		return nil, apierrors.ValidationError("MISSING_APPLICANT_FIELDS", "name, email and phone are required")
	}
	if req.Role == models.RoleBroker {
		if req.BrokerageName == nil || *req.BrokerageName == "" ||
			req.LicenseNumber == nil || *req.LicenseNumber == "" ||
			req.LicenseState == nil || *req.LicenseState == "" {
			return nil, apierrors.ValidationError("MISSING_BROKER_FIELDS", "brokerage name, license number and license state are required for broker applications")
		}
		if req.BudgetRange != nil {
			return nil, apierrors.ValidationError("BUDGET_RANGE_NOT_APPLICABLE", "budget range applies to client applications only")
		}
	}

	request := models.AccessRequest{
		RequestID:     "req_" + uuid.New().String(),
		Role:          req.Role,
		FullName:      req.FullName,
		Email:         req.Email,
		Phone:         req.Phone,
		BrokerageName: req.BrokerageName,
		LicenseNumber: req.LicenseNumber,
		LicenseState:  req.LicenseState,
		BudgetRange:   req.BudgetRange,
		Status:        models.RequestStatusPending,
	}

	if err := s.db.Create(&request).Error; err != nil {
		monitoring.PersistenceErrors.WithLabelValues("create_access_request").Inc()
		return nil, apierrors.DatabaseError("create access request", err)
	}

	s.publishChange(request.RequestID, events.ActionInsert)

	return request.ToResponse(s.now()), nil
}

// GetAccessRequest retrieves an access request by ID
func (s *AccessRequestService) GetAccessRequest(requestID string) (*models.AccessRequestResponse, error) {
	var request models.AccessRequest
	if err := s.db.First(&request, "request_id = ?", requestID).Error; err != nil {
		return nil, apierrors.HandleDatabaseError(err, "access request", "get access request")
	}
	return request.ToResponse(s.now()), nil
}

// GetAccessRequests retrieves access requests, newest first, narrowed by the
// filter. PendingOnly restricts to the dashboard's pending bucket.
func (s *AccessRequestService) GetAccessRequests(filter *models.AccessRequestFilter) ([]models.AccessRequestResponse, error) {
	query := s.db.Model(&models.AccessRequest{})
	if filter != nil {
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
		if filter.Role != nil {
			query = query.Where("role = ?", *filter.Role)
		}
		if filter.PendingOnly {
			query = query.Where("status IN ?", models.PendingBucket)
		}
	}
	query = query.Order("created_at DESC")

	var requests []models.AccessRequest
	if err := query.Find(&requests).Error; err != nil {
		return nil, apierrors.DatabaseError("list access requests", err)
	}

	now := s.now()
	responses := make([]models.AccessRequestResponse, 0, len(requests))
	for i := range requests {
		responses = append(responses, *requests[i].ToResponse(now))
	}
	return responses, nil
}

// ReviewAccessRequest moves a request to a new status by administrator
// action. Status, reviewed_at and reviewed_by land in a single row write; if
// that write fails the transition has not occurred and the caller must
// re-read before retrying. Records are never deleted, so approved and denied
// requests remain as historical record.
func (s *AccessRequestService) ReviewAccessRequest(requestID string, actor *models.AuthenticatedUser, req *models.ReviewAccessRequestRequest) (*models.AccessRequestResponse, error) {
	if actor == nil || actor.UserID == "" {
		return nil, apierrors.ValidationError("MISSING_ACTOR", "reviewing actor identity is required")
	}
	if !req.Status.Valid() {
		return nil, apierrors.ValidationErrorWithDetails("INVALID_STATUS", "status is not a member of the access-request status set", string(req.Status))
	}

	var request models.AccessRequest
	if err := s.db.First(&request, "request_id = ?", requestID).Error; err != nil {
		return nil, apierrors.HandleDatabaseError(err, "access request", "get access request")
	}

	if !models.CanTransitionRequest(request.Status, req.Status, s.allowTerminalCorrection) {
		return nil, apierrors.ConflictError("TERMINAL_STATUS",
			fmt.Sprintf("request is %s and cannot be moved to %s", request.Status, req.Status))
	}
	if req.BudgetRange != nil && request.Role != models.RoleClient {
		return nil, apierrors.ValidationError("BUDGET_RANGE_NOT_APPLICABLE", "budget range applies to client requests only")
	}

	now := s.now()
	updates := map[string]interface{}{
		"status":      req.Status,
		"reviewed_at": now,
		"reviewed_by": actor.UserID,
		"updated_at":  now,
	}
	if req.AdminNotes != nil {
		updates["admin_notes"] = *req.AdminNotes
	}
	if req.BudgetRange != nil {
		updates["budget_range"] = *req.BudgetRange
	}

	if err := s.db.Model(&models.AccessRequest{}).Where("request_id = ?", requestID).Updates(updates).Error; err != nil {
		monitoring.PersistenceErrors.WithLabelValues("review_access_request").Inc()
		return nil, apierrors.DatabaseError("review access request", err)
	}

	monitoring.AccessRequestReviews.WithLabelValues(string(req.Status)).Inc()
	slog.Info("Access request reviewed",
		"request_id", requestID,
		"from_status", request.Status,
		"to_status", req.Status,
		"reviewed_by", actor.UserID)

	s.publishChange(requestID, events.ActionUpdate)

	request.Status = req.Status
	request.ReviewedAt = &now
	reviewedBy := actor.UserID
	request.ReviewedBy = &reviewedBy
	if req.AdminNotes != nil {
		request.AdminNotes = req.AdminNotes
	}
	if req.BudgetRange != nil {
		request.BudgetRange = req.BudgetRange
	}
	request.UpdatedAt = now

	return request.ToResponse(now), nil
}

// publishChange emits a row-change notification for the access_requests
// table. Publish failures never fail the originating write.
func (s *AccessRequestService) publishChange(requestID, action string) {
	if s.publisher == nil {
		return
	}
	change := events.Change{
		Table:      models.AccessRequest{}.TableName(),
		RecordID:   requestID,
		Action:     action,
		OccurredAt: s.now(),
	}
	if err := s.publisher.Publish(context.Background(), change); err != nil {
		slog.Error("Failed to publish change event", "table", change.Table, "record_id", requestID, "error", err)
	}
}
