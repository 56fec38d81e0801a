package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/terrahaven/api-server-go/events"
	"github.com/terrahaven/api-server-go/models"
	apierrors "github.com/terrahaven/api-server-go/pkg/errors"
)

// fakeNotifier records notifications for assertions
type fakeNotifier struct {
	brokerIDs []string
	subjects  []string
	messages  []string
}

func (f *fakeNotifier) NotifyBroker(brokerID, subject, message string) error {
	f.brokerIDs = append(f.brokerIDs, brokerID)
	f.subjects = append(f.subjects, subject)
	f.messages = append(f.messages, message)
	return nil
}

func brokerActor() *models.AuthenticatedUser {
	return &models.AuthenticatedUser{
		UserID: "broker-1",
		Email:  "jordan@wellsrealty.com",
		Groups: []models.UserGroup{models.UserGroupBroker},
	}
}

func newTestListingService(t *testing.T) (*ListingService, *fakeNotifier) {
	db := SetupSQLiteTestDB(t)
	notifier := &fakeNotifier{}
	return NewListingService(db, events.NewNoopPublisher(), notifier), notifier
}

func listingSubmission() *models.CreateListingRequest {
	return &models.CreateListingRequest{
		Title:           "120-acre ranch outside Fredericksburg",
		Price:           2450000,
		Acreage:         120,
		Location:        "Fredericksburg, TX",
		PropertyType:    "ranch",
		ClientName:      "Sam Hollis",
		ClientEmail:     "sam.hollis@example.com",
		ClientPhone:     "+1-555-0144",
		ConsentDocument: strPtr("https://docs.terrahaven.test/consents/hollis.pdf"),
	}
}

// createPendingListing drives a fresh listing through create and submit
func createPendingListing(t *testing.T, service *ListingService) *models.ListingResponse {
	created, err := service.CreateListing(brokerActor(), listingSubmission())
	assert.NoError(t, err)
	submitted, err := service.SubmitListing(created.ListingID, brokerActor())
	assert.NoError(t, err)
	assert.Equal(t, models.ListingStatusPending, submitted.Status)
	return submitted
}

func TestCreateListing_CreatesDraftWithConsent(t *testing.T) {
	service, _ := newTestListingService(t)

	resp, err := service.CreateListing(brokerActor(), listingSubmission())

	assert.NoError(t, err)
	assert.Contains(t, resp.ListingID, "lst_")
	assert.Equal(t, models.ListingStatusDraft, resp.Status)
	assert.Equal(t, "broker-1", resp.BrokerID)
	assert.NotNil(t, resp.Consent)
	assert.Contains(t, resp.Consent.ConsentID, "cons_")
	assert.Equal(t, models.ConsentStatusNotVerified, resp.Consent.Status)
	assert.Equal(t, resp.ListingID, resp.Consent.ListingID)
}

func TestCreateListing_Validation(t *testing.T) {
	service, _ := newTestListingService(t)

	req := listingSubmission()
	req.Price = 0
	resp, err := service.CreateListing(brokerActor(), req)
	assert.Error(t, err)
	assert.Nil(t, resp)

	req = listingSubmission()
	req.Title = ""
	resp, err = service.CreateListing(brokerActor(), req)
	assert.Error(t, err)
	assert.Nil(t, resp)

	req = listingSubmission()
	req.ClientEmail = ""
	resp, err = service.CreateListing(brokerActor(), req)
	assert.Error(t, err)
	assert.Nil(t, resp)

	resp, err = service.CreateListing(nil, listingSubmission())
	assert.Error(t, err)
	assert.Nil(t, resp)
}

func TestSubmitListing_OnlyOwnerMaySubmit(t *testing.T) {
	service, _ := newTestListingService(t)
	created, err := service.CreateListing(brokerActor(), listingSubmission())
	assert.NoError(t, err)

	other := &models.AuthenticatedUser{
		UserID: "broker-2",
		Groups: []models.UserGroup{models.UserGroupBroker},
	}
	resp, err := service.SubmitListing(created.ListingID, other)

	assert.Error(t, err)
	assert.Nil(t, resp)
	apiErr := apierrors.GetAPIError(err)
	assert.NotNil(t, apiErr)
	assert.Equal(t, apierrors.ErrorTypeForbidden, apiErr.Type)
}

func TestApproveListing_RefusedWithoutVerifiedConsent(t *testing.T) {
	service, _ := newTestListingService(t)
	pending := createPendingListing(t, service)

	resp, err := service.ApproveListing(pending.ListingID, adminActor())

	assert.Error(t, err)
	assert.Nil(t, resp)
	apiErr := apierrors.GetAPIError(err)
	assert.NotNil(t, apiErr)
	assert.Equal(t, apierrors.ErrorTypeConflict, apiErr.Type)
	assert.Equal(t, "CONSENT_NOT_VERIFIED", apiErr.Code)

	// Refusal left the listing untouched
	stored, err := service.GetListing(pending.ListingID)
	assert.NoError(t, err)
	assert.Equal(t, models.ListingStatusPending, stored.Status)
	assert.Nil(t, stored.ApprovedAt)
}

func TestApproveListing_AfterConsentVerified(t *testing.T) {
	service, _ := newTestListingService(t)
	pending := createPendingListing(t, service)

	_, err := service.VerifyConsent(pending.Consent.ConsentID, adminActor())
	assert.NoError(t, err)

	resp, err := service.ApproveListing(pending.ListingID, adminActor())

	assert.NoError(t, err)
	assert.Equal(t, models.ListingStatusActive, resp.Status)
	assert.NotNil(t, resp.ApprovedAt)
	assert.NotNil(t, resp.ReviewedBy)
	assert.Equal(t, "admin-1", *resp.ReviewedBy)
}

func TestApproveListing_ExpiredConsentBlocks(t *testing.T) {
	service, _ := newTestListingService(t)

	req := listingSubmission()
	expired := time.Now().Add(-24 * time.Hour)
	req.ConsentExpiresAt = &expired
	created, err := service.CreateListing(brokerActor(), req)
	assert.NoError(t, err)
	_, err = service.SubmitListing(created.ListingID, brokerActor())
	assert.NoError(t, err)
	_, err = service.VerifyConsent(created.Consent.ConsentID, adminActor())
	assert.NoError(t, err)

	resp, err := service.ApproveListing(created.ListingID, adminActor())

	assert.Error(t, err)
	assert.Nil(t, resp)
	apiErr := apierrors.GetAPIError(err)
	assert.NotNil(t, apiErr)
	assert.Equal(t, "CONSENT_EXPIRED", apiErr.Code)

	// The legacy toggle treats expiry as informational only
	service.SetAllowExpiredConsent(true)
	resp, err = service.ApproveListing(created.ListingID, adminActor())
	assert.NoError(t, err)
	assert.Equal(t, models.ListingStatusActive, resp.Status)
}

func TestRequestRevision_EmptyFeedbackRejectedBeforeWrite(t *testing.T) {
	service, _ := newTestListingService(t)
	pending := createPendingListing(t, service)

	resp, err := service.RequestRevision(pending.ListingID, adminActor(), "   ")

	assert.Error(t, err)
	assert.Nil(t, resp)
	apiErr := apierrors.GetAPIError(err)
	assert.NotNil(t, apiErr)
	assert.Equal(t, apierrors.ErrorTypeValidation, apiErr.Type)
	assert.Equal(t, "EMPTY_FEEDBACK", apiErr.Code)

	stored, err := service.GetListing(pending.ListingID)
	assert.NoError(t, err)
	assert.Equal(t, models.ListingStatusPending, stored.Status)
	assert.Nil(t, stored.AdminFeedback)
}

func TestRequestRevision_RecordsFeedback(t *testing.T) {
	service, _ := newTestListingService(t)
	pending := createPendingListing(t, service)

	resp, err := service.RequestRevision(pending.ListingID, adminActor(), "Survey map is missing the easement boundary")

	assert.NoError(t, err)
	assert.Equal(t, models.ListingStatusRevisionRequested, resp.Status)
	assert.NotNil(t, resp.AdminFeedback)
	assert.Equal(t, "Survey map is missing the easement boundary", *resp.AdminFeedback)
	assert.NotNil(t, resp.ReviewedBy)

	// The broker can resubmit after revising
	resubmitted, err := service.SubmitListing(pending.ListingID, brokerActor())
	assert.NoError(t, err)
	assert.Equal(t, models.ListingStatusPending, resubmitted.Status)
}

func TestRejectListing_ReturnsToDraft(t *testing.T) {
	service, _ := newTestListingService(t)
	pending := createPendingListing(t, service)

	resp, err := service.RejectListing(pending.ListingID, adminActor(), "Listing duplicates an existing parcel")

	assert.NoError(t, err)
	assert.Equal(t, models.ListingStatusDraft, resp.Status)
}

func TestCloseListing_Transitions(t *testing.T) {
	service, _ := newTestListingService(t)
	pending := createPendingListing(t, service)
	_, err := service.VerifyConsent(pending.Consent.ConsentID, adminActor())
	assert.NoError(t, err)
	_, err = service.ApproveListing(pending.ListingID, adminActor())
	assert.NoError(t, err)

	resp, err := service.MarkSold(pending.ListingID, brokerActor())
	assert.NoError(t, err)
	assert.Equal(t, models.ListingStatusSold, resp.Status)

	// Sold is final
	resp, err = service.ArchiveListing(pending.ListingID, adminActor())
	assert.Error(t, err)
	assert.Nil(t, resp)
}

func TestCloseListing_RequiresOwnerOrAdmin(t *testing.T) {
	service, _ := newTestListingService(t)
	pending := createPendingListing(t, service)
	_, err := service.VerifyConsent(pending.Consent.ConsentID, adminActor())
	assert.NoError(t, err)
	_, err = service.ApproveListing(pending.ListingID, adminActor())
	assert.NoError(t, err)

	other := &models.AuthenticatedUser{
		UserID: "broker-2",
		Groups: []models.UserGroup{models.UserGroupBroker},
	}
	resp, err := service.MarkSold(pending.ListingID, other)

	assert.Error(t, err)
	assert.Nil(t, resp)
}

func TestVerifyConsent_RequiresDocument(t *testing.T) {
	service, _ := newTestListingService(t)

	req := listingSubmission()
	req.ConsentDocument = nil
	created, err := service.CreateListing(brokerActor(), req)
	assert.NoError(t, err)

	resp, err := service.VerifyConsent(created.Consent.ConsentID, adminActor())

	assert.Error(t, err)
	assert.Nil(t, resp)
	apiErr := apierrors.GetAPIError(err)
	assert.NotNil(t, apiErr)
	assert.Equal(t, "MISSING_DOCUMENT", apiErr.Code)
}

func TestVerifyConsent_AlreadyVerified(t *testing.T) {
	service, _ := newTestListingService(t)
	created, err := service.CreateListing(brokerActor(), listingSubmission())
	assert.NoError(t, err)

	first, err := service.VerifyConsent(created.Consent.ConsentID, adminActor())
	assert.NoError(t, err)
	assert.Equal(t, models.ConsentStatusVerified, first.Status)
	assert.NotNil(t, first.ReviewedAt)
	assert.NotNil(t, first.ReviewedBy)

	resp, err := service.VerifyConsent(created.Consent.ConsentID, adminActor())
	assert.Error(t, err)
	assert.Nil(t, resp)
}

func TestVerifyConsent_PromotesPendingListingToVerified(t *testing.T) {
	service, _ := newTestListingService(t)
	pending := createPendingListing(t, service)

	_, err := service.VerifyConsent(pending.Consent.ConsentID, adminActor())
	assert.NoError(t, err)

	stored, err := service.GetListing(pending.ListingID)
	assert.NoError(t, err)
	assert.Equal(t, models.ListingStatusVerified, stored.Status)
	assert.NotNil(t, stored.ReviewedBy)

	// Verified listings publish through the same gated approval
	approved, err := service.ApproveListing(pending.ListingID, adminActor())
	assert.NoError(t, err)
	assert.Equal(t, models.ListingStatusActive, approved.Status)
}

func TestVerifyConsent_LeavesDraftListingAlone(t *testing.T) {
	service, _ := newTestListingService(t)
	created, err := service.CreateListing(brokerActor(), listingSubmission())
	assert.NoError(t, err)

	_, err = service.VerifyConsent(created.Consent.ConsentID, adminActor())
	assert.NoError(t, err)

	stored, err := service.GetListing(created.ListingID)
	assert.NoError(t, err)
	assert.Equal(t, models.ListingStatusDraft, stored.Status)
}

func TestRequestMoreProof_NotifiesBrokerWithoutStatusChange(t *testing.T) {
	service, notifier := newTestListingService(t)
	created, err := service.CreateListing(brokerActor(), listingSubmission())
	assert.NoError(t, err)

	resp, err := service.RequestMoreProof(created.Consent.ConsentID, adminActor(), "Please upload a notarized copy of the consent form")

	assert.NoError(t, err)
	assert.Equal(t, models.ConsentStatusNotVerified, resp.Status)
	assert.NotNil(t, resp.ReviewedAt)
	assert.NotNil(t, resp.ReviewedBy)

	assert.Len(t, notifier.brokerIDs, 1)
	assert.Equal(t, "broker-1", notifier.brokerIDs[0])
	assert.Contains(t, notifier.subjects[0], "More proof needed")
	assert.Equal(t, "Please upload a notarized copy of the consent form", notifier.messages[0])
}

func TestRequestMoreProof_RequiresMessage(t *testing.T) {
	service, notifier := newTestListingService(t)
	created, err := service.CreateListing(brokerActor(), listingSubmission())
	assert.NoError(t, err)

	resp, err := service.RequestMoreProof(created.Consent.ConsentID, adminActor(), "")

	assert.Error(t, err)
	assert.Nil(t, resp)
	assert.Empty(t, notifier.brokerIDs)
}

func TestGetListings_FilterByBrokerAndStatus(t *testing.T) {
	service, _ := newTestListingService(t)
	_, err := service.CreateListing(brokerActor(), listingSubmission())
	assert.NoError(t, err)
	second := createPendingListing(t, service)

	status := models.ListingStatusPending
	responses, err := service.GetListings(&models.ListingFilter{Status: &status})
	assert.NoError(t, err)
	assert.Len(t, responses, 1)
	assert.Equal(t, second.ListingID, responses[0].ListingID)

	brokerID := "broker-1"
	responses, err = service.GetListings(&models.ListingFilter{BrokerID: &brokerID})
	assert.NoError(t, err)
	assert.Len(t, responses, 2)
	// Consent is preloaded on list reads
	assert.NotNil(t, responses[0].Consent)
}
