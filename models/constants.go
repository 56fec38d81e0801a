package models

// UserGroup represents different user groups in the platform
type UserGroup string

const (
	UserGroupAdmin  UserGroup = "TerraHaven_Admin"
	UserGroupBroker UserGroup = "TerraHaven_Broker"
	UserGroupClient UserGroup = "TerraHaven_Client"
)

// RequestedRole is the membership role an applicant is asking for
type RequestedRole string

const (
	RoleClient RequestedRole = "client"
	RoleBroker RequestedRole = "broker"
)

// Valid reports whether the role is a member of the defined role set
func (r RequestedRole) Valid() bool {
	return r == RoleClient || r == RoleBroker
}

// RequestStatus is the lifecycle state of an access request.
// The intermediate states are informational workflow markers set by an
// administrator; no ordering among them is enforced.
type RequestStatus string

const (
	RequestStatusPending                  RequestStatus = "pending"
	RequestStatusPendingCall              RequestStatus = "pending_call"
	RequestStatusVerificationCallComplete RequestStatus = "verification_call_complete"
	RequestStatusNDASent                  RequestStatus = "nda_sent"
	RequestStatusAwaitingDocs             RequestStatus = "awaiting_docs"
	RequestStatusDocumentsReceived        RequestStatus = "documents_received"
	RequestStatusPendingVerification      RequestStatus = "pending_verification"
	RequestStatusValidated                RequestStatus = "validated"
	RequestStatusSubmitMoreProof          RequestStatus = "submit_more_proof"
	RequestStatusApproved                 RequestStatus = "approved"
	RequestStatusDenied                   RequestStatus = "denied"
)

// ListingStatus is the lifecycle state of a property listing
type ListingStatus string

const (
	ListingStatusDraft             ListingStatus = "draft"
	ListingStatusPending           ListingStatus = "pending"
	ListingStatusRevisionRequested ListingStatus = "revision_requested"
	ListingStatusVerified          ListingStatus = "verified"
	ListingStatusActive            ListingStatus = "active"
	ListingStatusSold              ListingStatus = "sold"
	ListingStatusArchived          ListingStatus = "archived"
)

// ConsentStatus is the verification state of a consent-to-list record
type ConsentStatus string

const (
	ConsentStatusVerified    ConsentStatus = "verified"
	ConsentStatusNotVerified ConsentStatus = "not_verified"
)

// Field length constraints remain as regular constants
const (
	MaxNameLength        = 255
	MaxDescriptionLength = 4000
	MaxEmailLength       = 320 // RFC 3696 specification
	MaxPhoneLength       = 15  // E.164 format
	MaxNotesLength       = 2000
)
