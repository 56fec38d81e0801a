package models

import "time"

// AccessRequest represents the access_requests table. Rows are created by an
// applicant submission, mutated only by administrator review actions, and
// never deleted.
type AccessRequest struct {
	RequestID string        `gorm:"primarykey;column:request_id" json:"requestId"`
	Role      RequestedRole `gorm:"column:role;not null" json:"role"`

	FullName string `gorm:"column:full_name;not null" json:"fullName"`
	Email    string `gorm:"column:email;not null" json:"email"`
	Phone    string `gorm:"column:phone;not null" json:"phone"`

	// Broker applicants only
	BrokerageName *string `gorm:"column:brokerage_name" json:"brokerageName,omitempty"`
	LicenseNumber *string `gorm:"column:license_number" json:"licenseNumber,omitempty"`
	LicenseState  *string `gorm:"column:license_state" json:"licenseState,omitempty"`

	// Client applicants only. Admin review may overwrite this with a cap on
	// visible listing price for that client.
	BudgetRange *string `gorm:"column:budget_range" json:"budgetRange,omitempty"`

	Status     RequestStatus `gorm:"column:status;not null;default:'pending'" json:"status"`
	AdminNotes *string       `gorm:"column:admin_notes" json:"adminNotes,omitempty"`
	ReviewedAt *time.Time    `gorm:"column:reviewed_at" json:"reviewedAt,omitempty"`
	ReviewedBy *string       `gorm:"column:reviewed_by" json:"reviewedBy,omitempty"`
	BaseModel
}

// TableName sets the table name for GORM
func (AccessRequest) TableName() string {
	return "access_requests"
}

// CreateAccessRequestRequest is the applicant submission payload
type CreateAccessRequestRequest struct {
	Role          RequestedRole `json:"role"`
	FullName      string        `json:"fullName"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone"`
	BrokerageName *string       `json:"brokerageName,omitempty"`
	LicenseNumber *string       `json:"licenseNumber,omitempty"`
	LicenseState  *string       `json:"licenseState,omitempty"`
	BudgetRange   *string       `json:"budgetRange,omitempty"`
}

// ReviewAccessRequestRequest is the administrator review payload
type ReviewAccessRequestRequest struct {
	Status      RequestStatus `json:"status"`
	AdminNotes  *string       `json:"adminNotes,omitempty"`
	BudgetRange *string       `json:"budgetRange,omitempty"`
}

// AccessRequestFilter narrows list reads
type AccessRequestFilter struct {
	Status      *RequestStatus
	Role        *RequestedRole
	PendingOnly bool
}

// AccessRequestResponse is the API representation of an access request.
// Stale is derived from created_at and the current time; it is never stored.
type AccessRequestResponse struct {
	RequestID     string        `json:"requestId"`
	Role          RequestedRole `json:"role"`
	FullName      string        `json:"fullName"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone"`
	BrokerageName *string       `json:"brokerageName,omitempty"`
	LicenseNumber *string       `json:"licenseNumber,omitempty"`
	LicenseState  *string       `json:"licenseState,omitempty"`
	BudgetRange   *string       `json:"budgetRange,omitempty"`
	Status        RequestStatus `json:"status"`
	AdminNotes    *string       `json:"adminNotes,omitempty"`
	ReviewedAt    *string       `json:"reviewedAt,omitempty"`
	ReviewedBy    *string       `json:"reviewedBy,omitempty"`
	Stale         bool          `json:"stale"`
	CreatedAt     string        `json:"createdAt"`
	UpdatedAt     string        `json:"updatedAt"`
}

// ToResponse converts an AccessRequest to its API representation, deriving
// staleness against the supplied clock value
func (r *AccessRequest) ToResponse(now time.Time) *AccessRequestResponse {
	resp := &AccessRequestResponse{
		RequestID:     r.RequestID,
		Role:          r.Role,
		FullName:      r.FullName,
		Email:         r.Email,
		Phone:         r.Phone,
		BrokerageName: r.BrokerageName,
		LicenseNumber: r.LicenseNumber,
		LicenseState:  r.LicenseState,
		BudgetRange:   r.BudgetRange,
		Status:        r.Status,
		AdminNotes:    r.AdminNotes,
		ReviewedBy:    r.ReviewedBy,
		Stale:         IsStale(r.Status, r.CreatedAt, now),
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     r.UpdatedAt.Format(time.RFC3339),
	}
	if r.ReviewedAt != nil {
		reviewedAt := r.ReviewedAt.Format(time.RFC3339)
		resp.ReviewedAt = &reviewedAt
	}
	return resp
}
