package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/terrahaven/api-server-go/events"
	"github.com/terrahaven/api-server-go/models"
	apierrors "github.com/terrahaven/api-server-go/pkg/errors"
	"github.com/terrahaven/api-server-go/pkg/monitoring"
	"gorm.io/gorm"
)

// ListingService handles listing review and the consent publication gate
type ListingService struct {
	db        *gorm.DB
	publisher events.Publisher
	notifier  BrokerNotifier

	// allowExpiredConsent restores the legacy behavior of treating consent
	// expiry as informational only. Off by default: an expired consent blocks
	// approval until re-verified.
	allowExpiredConsent bool

	now func() time.Time
}

// NewListingService creates a new listing service
func NewListingService(db *gorm.DB, publisher events.Publisher, notifier BrokerNotifier) *ListingService {
	return &ListingService{
		db:        db,
		publisher: publisher,
		notifier:  notifier,
		now:       time.Now,
	}
}

// SetAllowExpiredConsent toggles whether expired consent blocks approval
func (s *ListingService) SetAllowExpiredConsent(allow bool) {
	s.allowExpiredConsent = allow
}

// CreateListing creates a draft listing together with its not_verified
// consent record. The consent is the owner's authorization to list and gates
// publication later.
func (s *ListingService) CreateListing(broker *models.AuthenticatedUser, req *models.CreateListingRequest) (*models.ListingResponse, error) {
	if broker == nil || broker.UserID == "" {
		return nil, apierrors.ValidationError("MISSING_ACTOR", "broker identity is required")
	}
	if req.Title == "" || req.Location == "" {
		return nil, apierrors.ValidationError("MISSING_LISTING_FIELDS", "title and location are required")
	}
	if req.Price <= 0 {
		return nil, apierrors.ValidationError("INVALID_PRICE", "price must be positive")
	}
	if req.ClientName == "" || req.ClientEmail == "" {
		return nil, apierrors.ValidationError("MISSING_CONSENT_FIELDS", "client name and email are required for the consent record")
	}

	listing := models.Listing{
		ListingID:     "lst_" + uuid.New().String(),
		BrokerID:      broker.UserID,
		Title:         req.Title,
		Price:         req.Price,
		Acreage:       req.Acreage,
		Location:      req.Location,
		PropertyType:  req.PropertyType,
		Description:   req.Description,
		MediaCount:    req.MediaCount,
		DocumentCount: req.DocumentCount,
		Status:        models.ListingStatusDraft,
	}
	consent := models.ClientConsent{
		ConsentID:   "cons_" + uuid.New().String(),
		ListingID:   listing.ListingID,
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		ClientPhone: req.ClientPhone,
		DocumentURL: req.ConsentDocument,
		Status:      models.ConsentStatusNotVerified,
		ExpiresAt:   req.ConsentExpiresAt,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&listing).Error; err != nil {
			return err
		}
		return tx.Create(&consent).Error
	})
	if err != nil {
		monitoring.PersistenceErrors.WithLabelValues("create_listing").Inc()
		return nil, apierrors.DatabaseError("create listing", err)
	}

	s.publishChange(listing.TableName(), listing.ListingID, events.ActionInsert)
	s.publishChange(consent.TableName(), consent.ConsentID, events.ActionInsert)

	listing.Consent = consent
	return listing.ToResponse(s.now()), nil
}

// GetListing retrieves a listing with its consent record
func (s *ListingService) GetListing(listingID string) (*models.ListingResponse, error) {
	var listing models.Listing
	if err := s.db.Preload("Consent").First(&listing, "listing_id = ?", listingID).Error; err != nil {
		return nil, apierrors.HandleDatabaseError(err, "listing", "get listing")
	}
	return listing.ToResponse(s.now()), nil
}

// GetListings retrieves listings, newest first, narrowed by the filter
func (s *ListingService) GetListings(filter *models.ListingFilter) ([]models.ListingResponse, error) {
	query := s.db.Preload("Consent")
	if filter != nil {
		if filter.BrokerID != nil {
			query = query.Where("broker_id = ?", *filter.BrokerID)
		}
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
	}
	query = query.Order("created_at DESC")

	var listings []models.Listing
	if err := query.Find(&listings).Error; err != nil {
		return nil, apierrors.DatabaseError("list listings", err)
	}

	now := s.now()
	responses := make([]models.ListingResponse, 0, len(listings))
	for i := range listings {
		responses = append(responses, *listings[i].ToResponse(now))
	}
	return responses, nil
}

// SubmitListing moves a draft or revision_requested listing into pending
// review. Only the owning broker may submit.
func (s *ListingService) SubmitListing(listingID string, broker *models.AuthenticatedUser) (*models.ListingResponse, error) {
	if broker == nil || broker.UserID == "" {
		return nil, apierrors.ValidationError("MISSING_ACTOR", "broker identity is required")
	}

	var listing models.Listing
	if err := s.db.First(&listing, "listing_id = ?", listingID).Error; err != nil {
		return nil, apierrors.HandleDatabaseError(err, "listing", "get listing")
	}
	if listing.BrokerID != broker.UserID && !broker.IsAdmin() {
		return nil, apierrors.ForbiddenError("only the owning broker may submit this listing")
	}
	if !models.CanTransitionListing(listing.Status, models.ListingStatusPending) {
		return nil, apierrors.ConflictError("INVALID_TRANSITION",
			fmt.Sprintf("listing is %s and cannot be submitted for review", listing.Status))
	}

	now := s.now()
	updates := map[string]interface{}{
		"status":     models.ListingStatusPending,
		"updated_at": now,
	}
	if err := s.db.Model(&models.Listing{}).Where("listing_id = ?", listingID).Updates(updates).Error; err != nil {
		monitoring.PersistenceErrors.WithLabelValues("submit_listing").Inc()
		return nil, apierrors.DatabaseError("submit listing", err)
	}

	s.publishChange(listing.TableName(), listingID, events.ActionUpdate)

	listing.Status = models.ListingStatusPending
	listing.UpdatedAt = now
	return listing.ToResponse(now), nil
}

// RequestRevision asks the broker for changes. Feedback text is mandatory
// and validated before any write is attempted.
func (s *ListingService) RequestRevision(listingID string, actor *models.AuthenticatedUser, feedback string) (*models.ListingResponse, error) {
	return s.reviewWithFeedback(listingID, actor, feedback, models.ListingStatusRevisionRequested, "request revision")
}

// RejectListing sends the listing back to draft. Feedback text is mandatory
// and validated before any write is attempted.
func (s *ListingService) RejectListing(listingID string, actor *models.AuthenticatedUser, feedback string) (*models.ListingResponse, error) {
	return s.reviewWithFeedback(listingID, actor, feedback, models.ListingStatusDraft, "reject listing")
}

// reviewWithFeedback is the shared path for the feedback-required admin
// transitions
func (s *ListingService) reviewWithFeedback(listingID string, actor *models.AuthenticatedUser, feedback string, target models.ListingStatus, operation string) (*models.ListingResponse, error) {
	if actor == nil || actor.UserID == "" {
		return nil, apierrors.ValidationError("MISSING_ACTOR", "reviewing actor identity is required")
	}
	if strings.TrimSpace(feedback) == "" {
		return nil, apierrors.ValidationError("EMPTY_FEEDBACK", "feedback text is required")
	}

	var listing models.Listing
	if err := s.db.First(&listing, "listing_id = ?", listingID).Error; err != nil {
		return nil, apierrors.HandleDatabaseError(err, "listing", operation)
	}
	if !models.CanTransitionListing(listing.Status, target) {
		return nil, apierrors.ConflictError("INVALID_TRANSITION",
			fmt.Sprintf("listing is %s and cannot be moved to %s", listing.Status, target))
	}

	now := s.now()
	updates := map[string]interface{}{
		"status":         target,
		"admin_feedback": feedback,
		"reviewed_by":    actor.UserID,
		"updated_at":     now,
	}
	if err := s.db.Model(&models.Listing{}).Where("listing_id = ?", listingID).Updates(updates).Error; err != nil {
		monitoring.PersistenceErrors.WithLabelValues(strings.ReplaceAll(operation, " ", "_")).Inc()
		return nil, apierrors.DatabaseError(operation, err)
	}

	slog.Info("Listing review recorded",
		"listing_id", listingID,
		"from_status", listing.Status,
		"to_status", target,
		"reviewed_by", actor.UserID)

	s.publishChange(listing.TableName(), listingID, events.ActionUpdate)

	listing.Status = target
	listing.AdminFeedback = &feedback
	reviewedBy := actor.UserID
	listing.ReviewedBy = &reviewedBy
	listing.UpdatedAt = now
	return listing.ToResponse(now), nil
}

// ApproveListing publishes a pending listing. The one hard invariant of the
// review workflow: a listing may go active only while its linked consent is
// verified. The gate is a precondition of the write, not an after-the-fact
// check.
func (s *ListingService) ApproveListing(listingID string, actor *models.AuthenticatedUser) (*models.ListingResponse, error) {
	if actor == nil || actor.UserID == "" {
		return nil, apierrors.ValidationError("MISSING_ACTOR", "reviewing actor identity is required")
	}

	var listing models.Listing
	if err := s.db.Preload("Consent").First(&listing, "listing_id = ?", listingID).Error; err != nil {
		return nil, apierrors.HandleDatabaseError(err, "listing", "approve listing")
	}
	if !models.CanTransitionListing(listing.Status, models.ListingStatusActive) {
		return nil, apierrors.ConflictError("INVALID_TRANSITION",
			fmt.Sprintf("listing is %s and cannot be approved", listing.Status))
	}

	now := s.now()
	if listing.Consent.Status != models.ConsentStatusVerified {
		monitoring.ConsentGateRefusals.Inc()
		slog.Warn("Listing approval refused: consent not verified",
			"listing_id", listingID,
			"consent_status", listing.Consent.Status,
			"actor", actor.UserID)
		return nil, apierrors.ConflictError("CONSENT_NOT_VERIFIED", "listing cannot be published until client consent is verified")
	}
	if !s.allowExpiredConsent && models.ConsentExpired(listing.Consent.ExpiresAt, now) {
		monitoring.ConsentGateRefusals.Inc()
		return nil, apierrors.ConflictError("CONSENT_EXPIRED", "client consent has expired and must be re-verified before publication")
	}

	updates := map[string]interface{}{
		"status":      models.ListingStatusActive,
		"approved_at": now,
		"reviewed_by": actor.UserID,
		"updated_at":  now,
	}
	if err := s.db.Model(&models.Listing{}).Where("listing_id = ?", listingID).Updates(updates).Error; err != nil {
		monitoring.PersistenceErrors.WithLabelValues("approve_listing").Inc()
		return nil, apierrors.DatabaseError("approve listing", err)
	}

	monitoring.ListingApprovals.Inc()
	slog.Info("Listing approved", "listing_id", listingID, "reviewed_by", actor.UserID)

	s.publishChange(listing.TableName(), listingID, events.ActionUpdate)

	listing.Status = models.ListingStatusActive
	listing.ApprovedAt = &now
	reviewedBy := actor.UserID
	listing.ReviewedBy = &reviewedBy
	listing.UpdatedAt = now
	return listing.ToResponse(now), nil
}

// MarkSold moves an active listing to sold
func (s *ListingService) MarkSold(listingID string, actor *models.AuthenticatedUser) (*models.ListingResponse, error) {
	return s.closeListing(listingID, actor, models.ListingStatusSold, "mark listing sold")
}

// ArchiveListing moves an active listing to archived
func (s *ListingService) ArchiveListing(listingID string, actor *models.AuthenticatedUser) (*models.ListingResponse, error) {
	return s.closeListing(listingID, actor, models.ListingStatusArchived, "archive listing")
}

// closeListing handles the post-publication transitions. Admins or the
// owning broker may close a listing.
func (s *ListingService) closeListing(listingID string, actor *models.AuthenticatedUser, target models.ListingStatus, operation string) (*models.ListingResponse, error) {
	if actor == nil || actor.UserID == "" {
		return nil, apierrors.ValidationError("MISSING_ACTOR", "actor identity is required")
	}

	var listing models.Listing
	if err := s.db.First(&listing, "listing_id = ?", listingID).Error; err != nil {
		return nil, apierrors.HandleDatabaseError(err, "listing", operation)
	}
	if listing.BrokerID != actor.UserID && !actor.IsAdmin() {
		return nil, apierrors.ForbiddenError("only an administrator or the owning broker may close this listing")
	}
	if !models.CanTransitionListing(listing.Status, target) {
		return nil, apierrors.ConflictError("INVALID_TRANSITION",
			fmt.Sprintf("listing is %s and cannot be moved to %s", listing.Status, target))
	}

	now := s.now()
	updates := map[string]interface{}{
		"status":     target,
		"updated_at": now,
	}
	if err := s.db.Model(&models.Listing{}).Where("listing_id = ?", listingID).Updates(updates).Error; err != nil {
		monitoring.PersistenceErrors.WithLabelValues(strings.ReplaceAll(operation, " ", "_")).Inc()
		return nil, apierrors.DatabaseError(operation, err)
	}

	s.publishChange(listing.TableName(), listingID, events.ActionUpdate)

	listing.Status = target
	listing.UpdatedAt = now
	return listing.ToResponse(now), nil
}

// VerifyConsent confirms the uploaded consent document is legitimate. A
// consent cannot be verified without a document reference present. A listing
// already under review moves to verified so the dashboard surfaces it as
// cleared for publication.
func (s *ListingService) VerifyConsent(consentID string, actor *models.AuthenticatedUser) (*models.ConsentResponse, error) {
	if actor == nil || actor.UserID == "" {
		return nil, apierrors.ValidationError("MISSING_ACTOR", "reviewing actor identity is required")
	}

	var consent models.ClientConsent
	if err := s.db.First(&consent, "consent_id = ?", consentID).Error; err != nil {
		return nil, apierrors.HandleDatabaseError(err, "consent", "verify consent")
	}
	if consent.Status == models.ConsentStatusVerified {
		return nil, apierrors.ConflictError("ALREADY_VERIFIED", "consent is already verified")
	}
	if consent.DocumentURL == nil || *consent.DocumentURL == "" {
		return nil, apierrors.ValidationError("MISSING_DOCUMENT", "consent cannot be verified without a document reference")
	}

	now := s.now()
	updates := map[string]interface{}{
		"status":      models.ConsentStatusVerified,
		"reviewed_at": now,
		"reviewed_by": actor.UserID,
		"updated_at":  now,
	}
	if err := s.db.Model(&models.ClientConsent{}).Where("consent_id = ?", consentID).Updates(updates).Error; err != nil {
		monitoring.PersistenceErrors.WithLabelValues("verify_consent").Inc()
		return nil, apierrors.DatabaseError("verify consent", err)
	}

	slog.Info("Client consent verified", "consent_id", consentID, "listing_id", consent.ListingID, "reviewed_by", actor.UserID)

	s.publishChange(consent.TableName(), consentID, events.ActionUpdate)

	s.markListingVerified(consent.ListingID, actor, now)

	consent.Status = models.ConsentStatusVerified
	consent.ReviewedAt = &now
	reviewedBy := actor.UserID
	consent.ReviewedBy = &reviewedBy
	consent.UpdatedAt = now
	return consent.ToResponse(now), nil
}

// markListingVerified promotes a listing under review to verified once its
// consent clears. Listings in any other state are left alone; failure here
// never fails the consent verification that triggered it.
func (s *ListingService) markListingVerified(listingID string, actor *models.AuthenticatedUser, now time.Time) {
	var listing models.Listing
	if err := s.db.First(&listing, "listing_id = ?", listingID).Error; err != nil {
		slog.Error("Failed to load listing after consent verification", "listing_id", listingID, "error", err)
		return
	}
	if !models.CanTransitionListing(listing.Status, models.ListingStatusVerified) {
		return
	}

	updates := map[string]interface{}{
		"status":      models.ListingStatusVerified,
		"reviewed_by": actor.UserID,
		"updated_at":  now,
	}
	if err := s.db.Model(&models.Listing{}).Where("listing_id = ?", listingID).Updates(updates).Error; err != nil {
		monitoring.PersistenceErrors.WithLabelValues("mark_listing_verified").Inc()
		slog.Error("Failed to mark listing verified", "listing_id", listingID, "error", err)
		return
	}

	slog.Info("Listing marked verified", "listing_id", listingID, "reviewed_by", actor.UserID)
	s.publishChange(listing.TableName(), listingID, events.ActionUpdate)
}

// RequestMoreProof asks the broker for additional proof on a consent
// document. The consent status does not change; the review touch is recorded
// and a message is sent to the broker.
func (s *ListingService) RequestMoreProof(consentID string, actor *models.AuthenticatedUser, message string) (*models.ConsentResponse, error) {
	if actor == nil || actor.UserID == "" {
		return nil, apierrors.ValidationError("MISSING_ACTOR", "reviewing actor identity is required")
	}
	if strings.TrimSpace(message) == "" {
		return nil, apierrors.ValidationError("EMPTY_MESSAGE", "a message to the broker is required")
	}

	var consent models.ClientConsent
	if err := s.db.First(&consent, "consent_id = ?", consentID).Error; err != nil {
		return nil, apierrors.HandleDatabaseError(err, "consent", "request more proof")
	}
	if consent.Status == models.ConsentStatusVerified {
		return nil, apierrors.ConflictError("ALREADY_VERIFIED", "consent is already verified")
	}

	var listing models.Listing
	if err := s.db.First(&listing, "listing_id = ?", consent.ListingID).Error; err != nil {
		return nil, apierrors.HandleDatabaseError(err, "listing", "request more proof")
	}

	now := s.now()
	updates := map[string]interface{}{
		"reviewed_at": now,
		"reviewed_by": actor.UserID,
		"updated_at":  now,
	}
	if err := s.db.Model(&models.ClientConsent{}).Where("consent_id = ?", consentID).Updates(updates).Error; err != nil {
		monitoring.PersistenceErrors.WithLabelValues("request_more_proof").Inc()
		return nil, apierrors.DatabaseError("request more proof", err)
	}

	if s.notifier != nil {
		subject := fmt.Sprintf("More proof needed for %q", listing.Title)
		if err := s.notifier.NotifyBroker(listing.BrokerID, subject, message); err != nil {
			slog.Error("Failed to notify broker", "broker_id", listing.BrokerID, "consent_id", consentID, "error", err)
		}
	}

	s.publishChange(consent.TableName(), consentID, events.ActionUpdate)

	consent.ReviewedAt = &now
	reviewedBy := actor.UserID
	consent.ReviewedBy = &reviewedBy
	consent.UpdatedAt = now
	return consent.ToResponse(now), nil
}

// publishChange emits a row-change notification. Publish failures never fail
// the originating write.
func (s *ListingService) publishChange(table, recordID, action string) {
	if s.publisher == nil {
		return
	}
	change := events.Change{
		Table:      table,
		RecordID:   recordID,
		Action:     action,
		OccurredAt: s.now(),
	}
	if err := s.publisher.Publish(context.Background(), change); err != nil {
		slog.Error("Failed to publish change event", "table", table, "record_id", recordID, "error", err)
	}
}
