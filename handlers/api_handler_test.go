package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/terrahaven/api-server-go/events"
	"github.com/terrahaven/api-server-go/models"
	"github.com/terrahaven/api-server-go/services"
	"github.com/terrahaven/api-server-go/utils"
)

func newTestHandler(t *testing.T) *http.ServeMux {
	db := services.SetupSQLiteTestDB(t)
	publisher := events.NewNoopPublisher()
	accessRequestService := services.NewAccessRequestService(db, publisher)
	listingService := services.NewListingService(db, publisher, services.NewLoggingNotifier())

	mux := http.NewServeMux()
	NewAPIHandler(accessRequestService, listingService).SetupRoutes(mux)
	return mux
}

// performRequest issues a request against the mux, optionally acting as the
// given user. The JWT middleware is not part of the handler under test, so
// the user is planted directly in the request context.
func performRequest(mux *http.ServeMux, method, path string, body interface{}, user *models.AuthenticatedUser) *httptest.ResponseRecorder {
	var reqBody bytes.Buffer
	if body != nil {
		json.NewEncoder(&reqBody).Encode(body)
	}

	req := httptest.NewRequest(method, path, &reqBody)
	if user != nil {
		req = req.WithContext(utils.SetAuthenticatedUser(req.Context(), user))
	}

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, req)
	return recorder
}

func testAdmin() *models.AuthenticatedUser {
	return &models.AuthenticatedUser{
		UserID: "admin-1",
		Email:  "admin@terrahaven.test",
		Groups: []models.UserGroup{models.UserGroupAdmin},
	}
}

func testBroker() *models.AuthenticatedUser {
	return &models.AuthenticatedUser{
		UserID: "broker-1",
		Email:  "jordan@wellsrealty.com",
		Groups: []models.UserGroup{models.UserGroupBroker},
	}
}

func TestCreateAccessRequest_PublicEndpoint(t *testing.T) {
	mux := newTestHandler(t)

	body := map[string]interface{}{
		"role":     "client",
		"fullName": "Avery Stone",
		"email":    "avery@example.com",
		"phone":    "+1-555-0100",
	}
	recorder := performRequest(mux, http.MethodPost, "/api/v1/access-requests", body, nil)

	assert.Equal(t, http.StatusCreated, recorder.Code)

	var resp models.AccessRequestResponse
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Contains(t, resp.RequestID, "req_")
	assert.Equal(t, models.RequestStatusPending, resp.Status)
}

func TestCreateAccessRequest_InvalidBody(t *testing.T) {
	mux := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/access-requests", bytes.NewBufferString("{not json"))
	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestListAccessRequests_RequiresAdmin(t *testing.T) {
	mux := newTestHandler(t)

	recorder := performRequest(mux, http.MethodGet, "/api/v1/access-requests", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = performRequest(mux, http.MethodGet, "/api/v1/access-requests", nil, testBroker())
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	recorder = performRequest(mux, http.MethodGet, "/api/v1/access-requests", nil, testAdmin())
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestReviewAccessRequest_EndToEnd(t *testing.T) {
	mux := newTestHandler(t)

	body := map[string]interface{}{
		"role":     "client",
		"fullName": "Avery Stone",
		"email":    "avery@example.com",
		"phone":    "+1-555-0100",
	}
	recorder := performRequest(mux, http.MethodPost, "/api/v1/access-requests", body, nil)
	assert.Equal(t, http.StatusCreated, recorder.Code)

	var created models.AccessRequestResponse
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &created))

	review := map[string]interface{}{"status": "approved", "adminNotes": "Verified by phone"}
	recorder = performRequest(mux, http.MethodPost, "/api/v1/access-requests/"+created.RequestID+"/review", review, testAdmin())

	assert.Equal(t, http.StatusOK, recorder.Code)

	var reviewed models.AccessRequestResponse
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &reviewed))
	assert.Equal(t, models.RequestStatusApproved, reviewed.Status)
	assert.NotNil(t, reviewed.ReviewedAt)
	assert.NotNil(t, reviewed.ReviewedBy)
}

func TestReviewAccessRequest_InvalidStatus(t *testing.T) {
	mux := newTestHandler(t)

	body := map[string]interface{}{
		"role":     "client",
		"fullName": "Avery Stone",
		"email":    "avery@example.com",
		"phone":    "+1-555-0100",
	}
	recorder := performRequest(mux, http.MethodPost, "/api/v1/access-requests", body, nil)
	var created models.AccessRequestResponse
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &created))

	review := map[string]interface{}{"status": "escalated"}
	recorder = performRequest(mux, http.MethodPost, "/api/v1/access-requests/"+created.RequestID+"/review", review, testAdmin())

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func createTestListing(t *testing.T, mux *http.ServeMux) *models.ListingResponse {
	body := map[string]interface{}{
		"title":              "120-acre ranch outside Fredericksburg",
		"price":              2450000,
		"acreage":            120,
		"location":           "Fredericksburg, TX",
		"propertyType":       "ranch",
		"clientName":         "Sam Hollis",
		"clientEmail":        "sam.hollis@example.com",
		"consentDocumentUrl": "https://docs.terrahaven.test/consents/hollis.pdf",
	}
	recorder := performRequest(mux, http.MethodPost, "/api/v1/listings", body, testBroker())
	assert.Equal(t, http.StatusCreated, recorder.Code)

	var listing models.ListingResponse
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &listing))
	return &listing
}

func TestListingApprovalFlow(t *testing.T) {
	mux := newTestHandler(t)
	listing := createTestListing(t, mux)

	recorder := performRequest(mux, http.MethodPost, "/api/v1/listings/"+listing.ListingID+"/submit", nil, testBroker())
	assert.Equal(t, http.StatusOK, recorder.Code)

	// Approval refused while consent is unverified
	recorder = performRequest(mux, http.MethodPost, "/api/v1/listings/"+listing.ListingID+"/approve", nil, testAdmin())
	assert.Equal(t, http.StatusConflict, recorder.Code)

	recorder = performRequest(mux, http.MethodPost, "/api/v1/consents/"+listing.Consent.ConsentID+"/verify", nil, testAdmin())
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = performRequest(mux, http.MethodPost, "/api/v1/listings/"+listing.ListingID+"/approve", nil, testAdmin())
	assert.Equal(t, http.StatusOK, recorder.Code)

	var approved models.ListingResponse
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &approved))
	assert.Equal(t, models.ListingStatusActive, approved.Status)
	assert.NotNil(t, approved.ApprovedAt)
}

func TestRequestRevision_EmptyFeedback(t *testing.T) {
	mux := newTestHandler(t)
	listing := createTestListing(t, mux)

	recorder := performRequest(mux, http.MethodPost, "/api/v1/listings/"+listing.ListingID+"/submit", nil, testBroker())
	assert.Equal(t, http.StatusOK, recorder.Code)

	body := map[string]interface{}{"feedback": ""}
	recorder = performRequest(mux, http.MethodPost, "/api/v1/listings/"+listing.ListingID+"/request-revision", body, testAdmin())

	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	// The refused action left the listing in review
	recorder = performRequest(mux, http.MethodGet, "/api/v1/listings/"+listing.ListingID, nil, testAdmin())
	assert.Equal(t, http.StatusOK, recorder.Code)
	var stored models.ListingResponse
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &stored))
	assert.Equal(t, models.ListingStatusPending, stored.Status)
}

func TestListingActions_RequireAdmin(t *testing.T) {
	mux := newTestHandler(t)
	listing := createTestListing(t, mux)

	recorder := performRequest(mux, http.MethodPost, "/api/v1/listings/"+listing.ListingID+"/approve", nil, testBroker())
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	recorder = performRequest(mux, http.MethodPost, "/api/v1/consents/"+listing.Consent.ConsentID+"/verify", nil, testBroker())
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestListListings_BrokerSeesOnlyOwn(t *testing.T) {
	mux := newTestHandler(t)
	createTestListing(t, mux)

	other := &models.AuthenticatedUser{
		UserID: "broker-2",
		Groups: []models.UserGroup{models.UserGroupBroker},
	}
	recorder := performRequest(mux, http.MethodGet, "/api/v1/listings", nil, other)
	assert.Equal(t, http.StatusOK, recorder.Code)

	var listings []models.ListingResponse
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &listings))
	assert.Empty(t, listings)

	recorder = performRequest(mux, http.MethodGet, "/api/v1/listings", nil, testBroker())
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &listings))
	assert.Len(t, listings, 1)
}

func TestUnknownEndpoint(t *testing.T) {
	mux := newTestHandler(t)

	recorder := performRequest(mux, http.MethodPost, "/api/v1/listings/lst_1/publish", nil, testAdmin())
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = performRequest(mux, http.MethodDelete, "/api/v1/access-requests", nil, testAdmin())
	assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
}
