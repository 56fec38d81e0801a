package models

import "time"

// StaleAfter is how old a non-terminal access request may get before the
// dashboard flags it for follow-up. Staleness is derived at read time and
// never persisted.
const StaleAfter = 48 * time.Hour

// requestStatuses is the closed set of access-request status tags. No other
// value is ever persisted.
var requestStatuses = map[RequestStatus]bool{
	RequestStatusPending:                  true,
	RequestStatusPendingCall:              true,
	RequestStatusVerificationCallComplete: true,
	RequestStatusNDASent:                  true,
	RequestStatusAwaitingDocs:             true,
	RequestStatusDocumentsReceived:        true,
	RequestStatusPendingVerification:      true,
	RequestStatusValidated:                true,
	RequestStatusSubmitMoreProof:          true,
	RequestStatusApproved:                 true,
	RequestStatusDenied:                   true,
}

// Valid reports whether the status is a member of the defined status set
func (s RequestStatus) Valid() bool {
	return requestStatuses[s]
}

// Terminal reports whether the status is absorbing. Approved and denied
// requests are retained as historical record and define no further
// transition.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusApproved || s == RequestStatusDenied
}

// PendingBucket is the set of statuses the admin dashboard groups as
// "waiting on us"
var PendingBucket = []RequestStatus{
	RequestStatusPending,
	RequestStatusPendingCall,
	RequestStatusAwaitingDocs,
	RequestStatusPendingVerification,
}

// InPendingBucket reports whether the status belongs to the pending bucket
func (s RequestStatus) InPendingBucket() bool {
	for _, b := range PendingBucket {
		if s == b {
			return true
		}
	}
	return false
}

// CanTransitionRequest is the single allow-list for access-request
// transitions. Any non-terminal state may move to any other valid state by a
// single administrator action; the intermediate workflow markers carry no
// enforced ordering. allowTerminalCorrection permits moving out of
// approved/denied for operator mistakes.
func CanTransitionRequest(from, to RequestStatus, allowTerminalCorrection bool) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from.Terminal() && !allowTerminalCorrection {
		return false
	}
	return true
}

// IsStale reports whether a request created at createdAt with the given
// status should be flagged stale. A request is stale iff it is non-terminal
// and strictly older than StaleAfter; exactly 48h00m is not stale.
func IsStale(status RequestStatus, createdAt, now time.Time) bool {
	if status.Terminal() {
		return false
	}
	return now.Sub(createdAt) > StaleAfter
}

// listingTransitions is the allow-list for listing status transitions.
// pending -> active is additionally gated on verified consent; that check
// lives in the listing service because it needs the linked consent row.
var listingTransitions = map[ListingStatus][]ListingStatus{
	ListingStatusDraft:             {ListingStatusPending},
	ListingStatusPending:           {ListingStatusRevisionRequested, ListingStatusDraft, ListingStatusVerified, ListingStatusActive},
	ListingStatusRevisionRequested: {ListingStatusPending, ListingStatusDraft},
	ListingStatusVerified:          {ListingStatusActive, ListingStatusDraft},
	ListingStatusActive:            {ListingStatusSold, ListingStatusArchived},
	ListingStatusSold:              {},
	ListingStatusArchived:          {},
}

// Valid reports whether the status is a member of the defined status set
func (s ListingStatus) Valid() bool {
	_, ok := listingTransitions[s]
	return ok
}

// CanTransitionListing reports whether a listing may move from one status to
// another
func CanTransitionListing(from, to ListingStatus) bool {
	for _, next := range listingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ConsentExpired reports whether a consent record has lapsed. Expiry is a
// read-time derived condition, not a stored status value.
func ConsentExpired(expiresAt *time.Time, now time.Time) bool {
	return expiresAt != nil && expiresAt.Before(now)
}
