package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/terrahaven/api-server-go/middleware"
	"github.com/terrahaven/api-server-go/models"
	"github.com/terrahaven/api-server-go/services"
	"github.com/terrahaven/api-server-go/utils"
)

// APIHandler handles all API routes
type APIHandler struct {
	accessRequestService *services.AccessRequestService
	listingService       *services.ListingService
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(accessRequestService *services.AccessRequestService, listingService *services.ListingService) *APIHandler {
	return &APIHandler{
		accessRequestService: accessRequestService,
		listingService:       listingService,
	}
}

// SetupRoutes configures all API routes
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	// Access request routes
	mux.Handle("/api/v1/access-requests", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleAccessRequests)))
	mux.Handle("/api/v1/access-requests/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleAccessRequests)))

	// Listing routes
	mux.Handle("/api/v1/listings", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleListings)))
	mux.Handle("/api/v1/listings/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleListings)))

	// Consent routes
	mux.Handle("/api/v1/consents/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleConsents)))
}

// handleAccessRequests handles access-request routes
func (h *APIHandler) handleAccessRequests(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/access-requests")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	// Handle collection endpoint: GET /api/v1/access-requests and POST /api/v1/access-requests
	if len(parts) == 1 && parts[0] == "" {
		switch r.Method {
		case http.MethodGet:
			middleware.RequireAdmin(h.getAllAccessRequests)(w, r)
		case http.MethodPost:
			// Applicant submissions are public
			h.createAccessRequest(w, r)
		default:
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	if len(parts) < 1 || parts[0] == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Request ID is required")
		return
	}

	requestID := parts[0]

	// Handle base endpoint: GET /api/v1/access-requests/:requestId
	if len(parts) == 1 {
		if r.Method == http.MethodGet {
			middleware.RequireAdmin(func(w http.ResponseWriter, r *http.Request) {
				h.getAccessRequest(w, r, requestID)
			})(w, r)
		} else {
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	// Handle review action: POST /api/v1/access-requests/:requestId/review
	if len(parts) == 2 && parts[1] == "review" {
		if r.Method == http.MethodPost {
			middleware.RequireAdmin(func(w http.ResponseWriter, r *http.Request) {
				h.reviewAccessRequest(w, r, requestID)
			})(w, r)
		} else {
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
}

// handleListings handles listing routes
func (h *APIHandler) handleListings(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/listings")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	// Handle collection endpoint: GET /api/v1/listings and POST /api/v1/listings
	if len(parts) == 1 && parts[0] == "" {
		switch r.Method {
		case http.MethodGet:
			middleware.RequireGroup(h.getAllListings, models.UserGroupAdmin, models.UserGroupBroker)(w, r)
		case http.MethodPost:
			middleware.RequireGroup(h.createListing, models.UserGroupBroker)(w, r)
		default:
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	if len(parts) < 1 || parts[0] == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Listing ID is required")
		return
	}

	listingID := parts[0]

	// Handle base endpoint: GET /api/v1/listings/:listingId
	if len(parts) == 1 {
		if r.Method == http.MethodGet {
			middleware.RequireGroup(func(w http.ResponseWriter, r *http.Request) {
				h.getListing(w, r, listingID)
			}, models.UserGroupAdmin, models.UserGroupBroker)(w, r)
		} else {
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	// Handle lifecycle actions: POST /api/v1/listings/:listingId/<action>
	if len(parts) == 2 {
		if r.Method != http.MethodPost {
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		switch parts[1] {
		case "submit":
			middleware.RequireGroup(func(w http.ResponseWriter, r *http.Request) {
				h.submitListing(w, r, listingID)
			}, models.UserGroupBroker, models.UserGroupAdmin)(w, r)
		case "request-revision":
			middleware.RequireAdmin(func(w http.ResponseWriter, r *http.Request) {
				h.requestRevision(w, r, listingID)
			})(w, r)
		case "reject":
			middleware.RequireAdmin(func(w http.ResponseWriter, r *http.Request) {
				h.rejectListing(w, r, listingID)
			})(w, r)
		case "approve":
			middleware.RequireAdmin(func(w http.ResponseWriter, r *http.Request) {
				h.approveListing(w, r, listingID)
			})(w, r)
		case "mark-sold":
			middleware.RequireGroup(func(w http.ResponseWriter, r *http.Request) {
				h.markListingSold(w, r, listingID)
			}, models.UserGroupBroker, models.UserGroupAdmin)(w, r)
		case "archive":
			middleware.RequireGroup(func(w http.ResponseWriter, r *http.Request) {
				h.archiveListing(w, r, listingID)
			}, models.UserGroupBroker, models.UserGroupAdmin)(w, r)
		default:
			utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
		}
		return
	}

	utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
}

// handleConsents handles consent review routes
func (h *APIHandler) handleConsents(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/consents")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	if len(parts) < 1 || parts[0] == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Consent ID is required")
		return
	}

	consentID := parts[0]

	// Handle review actions: POST /api/v1/consents/:consentId/<action>
	if len(parts) == 2 {
		if r.Method != http.MethodPost {
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		switch parts[1] {
		case "verify":
			middleware.RequireAdmin(func(w http.ResponseWriter, r *http.Request) {
				h.verifyConsent(w, r, consentID)
			})(w, r)
		case "request-proof":
			middleware.RequireAdmin(func(w http.ResponseWriter, r *http.Request) {
				h.requestMoreProof(w, r, consentID)
			})(w, r)
		default:
			utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
		}
		return
	}

	utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
}

// Access request handlers

func (h *APIHandler) createAccessRequest(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAccessRequestRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	request, err := h.accessRequestService.CreateAccessRequest(&req)
	if err != nil {
		utils.RespondWithAPIError(w, err)
		return
	}

	utils.RespondWithSuccess(w, http.StatusCreated, request)
}

func (h *APIHandler) getAllAccessRequests(w http.ResponseWriter, r *http.Request) {
	filter := &models.AccessRequestFilter{}
	if status := r.URL.Query().Get("status"); status != "" {
		s := models.RequestStatus(status)
		filter.Status = &s
	}
	if role := r.URL.Query().Get("role"); role != "" {
		ro := models.RequestedRole(role)
		filter.Role = &ro
	}
	if r.URL.Query().Get("bucket") == "pending" {
		filter.PendingOnly = true
	}

	requests, err := h.accessRequestService.GetAccessRequests(filter)
	if err != nil {
		utils.RespondWithAPIError(w, err)
		return
	}

	utils.RespondWithSuccess(w, http.StatusOK, requests)
}

func (h *APIHandler) getAccessRequest(w http.ResponseWriter, r *http.Request, requestID string) {
	request, err := h.accessRequestService.GetAccessRequest(requestID)
	if err != nil {
		utils.RespondWithAPIError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, request)
}

func (h *APIHandler) reviewAccessRequest(w http.ResponseWriter, r *http.Request, requestID string) {
	actor, err := utils.GetAuthenticatedUser(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req models.ReviewAccessRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	request, err := h.accessRequestService.ReviewAccessRequest(requestID, actor, &req)
	if err != nil {
		utils.RespondWithAPIError(w, err)
		return
	}

	utils.RespondWithSuccess(w, http.StatusOK, request)
}

// Listing handlers

func (h *APIHandler) createListing(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.GetAuthenticatedUser(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req models.CreateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	listing, err := h.listingService.CreateListing(actor, &req)
	if err != nil {
		utils.RespondWithAPIError(w, err)
		return
	}

	utils.RespondWithSuccess(w, http.StatusCreated, listing)
}

func (h *APIHandler) getAllListings(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.GetAuthenticatedUser(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	filter := &models.ListingFilter{}
	if status := r.URL.Query().Get("status"); status != "" {
		s := models.ListingStatus(status)
		filter.Status = &s
	}
	if brokerID := r.URL.Query().Get("brokerId"); brokerID != "" {
		filter.BrokerID = &brokerID
	}
	// Brokers only ever see their own listings
	if !actor.IsAdmin() {
		filter.BrokerID = &actor.UserID
	}

	listings, err := h.listingService.GetListings(filter)
	if err != nil {
		utils.RespondWithAPIError(w, err)
		return
	}

	utils.RespondWithSuccess(w, http.StatusOK, listings)
}

func (h *APIHandler) getListing(w http.ResponseWriter, r *http.Request, listingID string) {
	listing, err := h.listingService.GetListing(listingID)
	if err != nil {
		utils.RespondWithAPIError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, listing)
}

func (h *APIHandler) submitListing(w http.ResponseWriter, r *http.Request, listingID string) {
	actor, err := utils.GetAuthenticatedUser(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	listing, err := h.listingService.SubmitListing(listingID, actor)
	if err != nil {
		utils.RespondWithAPIError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, listing)
}

func (h *APIHandler) requestRevision(w http.ResponseWriter, r *http.Request, listingID string) {
	h.reviewListingWithFeedback(w, r, listingID, h.listingService.RequestRevision)
}

func (h *APIHandler) rejectListing(w http.ResponseWriter, r *http.Request, listingID string) {
	h.reviewListingWithFeedback(w, r, listingID, h.listingService.RejectListing)
}

func (h *APIHandler) reviewListingWithFeedback(w http.ResponseWriter, r *http.Request, listingID string,
	action func(string, *models.AuthenticatedUser, string) (*models.ListingResponse, error)) {
	actor, err := utils.GetAuthenticatedUser(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req models.ListingFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	listing, err := action(listingID, actor, req.Feedback)
	if err != nil {
		utils.RespondWithAPIError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, listing)
}

func (h *APIHandler) approveListing(w http.ResponseWriter, r *http.Request, listingID string) {
	actor, err := utils.GetAuthenticatedUser(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	listing, err := h.listingService.ApproveListing(listingID, actor)
	if err != nil {
		utils.RespondWithAPIError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, listing)
}

func (h *APIHandler) markListingSold(w http.ResponseWriter, r *http.Request, listingID string) {
	actor, err := utils.GetAuthenticatedUser(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	listing, err := h.listingService.MarkSold(listingID, actor)
	if err != nil {
		utils.RespondWithAPIError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, listing)
}

func (h *APIHandler) archiveListing(w http.ResponseWriter, r *http.Request, listingID string) {
	actor, err := utils.GetAuthenticatedUser(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	listing, err := h.listingService.ArchiveListing(listingID, actor)
	if err != nil {
		utils.RespondWithAPIError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, listing)
}

// Consent handlers

func (h *APIHandler) verifyConsent(w http.ResponseWriter, r *http.Request, consentID string) {
	actor, err := utils.GetAuthenticatedUser(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	consent, err := h.listingService.VerifyConsent(consentID, actor)
	if err != nil {
		utils.RespondWithAPIError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, consent)
}

func (h *APIHandler) requestMoreProof(w http.ResponseWriter, r *http.Request, consentID string) {
	actor, err := utils.GetAuthenticatedUser(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req models.RequestProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	consent, err := h.listingService.RequestMoreProof(consentID, actor, req.Message)
	if err != nil {
		utils.RespondWithAPIError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, consent)
}
