package models

import "time"

// Listing represents the listings table. A listing is created by a broker as
// a draft and cycles through admin review before publication.
type Listing struct {
	ListingID string `gorm:"primarykey;column:listing_id" json:"listingId"`
	BrokerID  string `gorm:"column:broker_id;not null" json:"brokerId"`

	Title         string  `gorm:"column:title;not null" json:"title"`
	Price         float64 `gorm:"column:price;not null" json:"price"`
	Acreage       float64 `gorm:"column:acreage" json:"acreage"`
	Location      string  `gorm:"column:location;not null" json:"location"`
	PropertyType  string  `gorm:"column:property_type" json:"propertyType"`
	Description   *string `gorm:"column:description" json:"description,omitempty"`
	MediaCount    int     `gorm:"column:media_count;default:0" json:"mediaCount"`
	DocumentCount int     `gorm:"column:document_count;default:0" json:"documentCount"`

	Status        ListingStatus `gorm:"column:status;not null;default:'draft'" json:"status"`
	AdminFeedback *string       `gorm:"column:admin_feedback" json:"adminFeedback,omitempty"`
	ReviewedBy    *string       `gorm:"column:reviewed_by" json:"reviewedBy,omitempty"`
	ApprovedAt    *time.Time    `gorm:"column:approved_at" json:"approvedAt,omitempty"`
	BaseModel

	// Relationships
	Consent ClientConsent `gorm:"foreignKey:ListingID;references:ListingID" json:"consent"`
}

// TableName sets the table name for GORM
func (Listing) TableName() string {
	return "listings"
}

// ClientConsent represents the client_consents table: the property owner's
// signed authorization permitting the broker to list their property. It is
// created alongside the listing and gates publication.
type ClientConsent struct {
	ConsentID string `gorm:"primarykey;column:consent_id" json:"consentId"`
	ListingID string `gorm:"column:listing_id;not null;uniqueIndex" json:"listingId"`

	ClientName  string  `gorm:"column:client_name;not null" json:"clientName"`
	ClientEmail string  `gorm:"column:client_email;not null" json:"clientEmail"`
	ClientPhone string  `gorm:"column:client_phone" json:"clientPhone"`
	DocumentURL *string `gorm:"column:document_url" json:"documentUrl,omitempty"`

	Status     ConsentStatus `gorm:"column:status;not null;default:'not_verified'" json:"status"`
	ExpiresAt  *time.Time    `gorm:"column:expires_at" json:"expiresAt,omitempty"`
	ReviewedAt *time.Time    `gorm:"column:reviewed_at" json:"reviewedAt,omitempty"`
	ReviewedBy *string       `gorm:"column:reviewed_by" json:"reviewedBy,omitempty"`
	BaseModel
}

// TableName sets the table name for GORM
func (ClientConsent) TableName() string {
	return "client_consents"
}

// CreateListingRequest is the broker submission payload. The consent fields
// create the linked ClientConsent record in the same operation.
type CreateListingRequest struct {
	Title         string  `json:"title"`
	Price         float64 `json:"price"`
	Acreage       float64 `json:"acreage"`
	Location      string  `json:"location"`
	PropertyType  string  `json:"propertyType"`
	Description   *string `json:"description,omitempty"`
	MediaCount    int     `json:"mediaCount"`
	DocumentCount int     `json:"documentCount"`

	ClientName        string     `json:"clientName"`
	ClientEmail       string     `json:"clientEmail"`
	ClientPhone       string     `json:"clientPhone"`
	ConsentDocument   *string    `json:"consentDocumentUrl,omitempty"`
	ConsentExpiresAt  *time.Time `json:"consentExpiresAt,omitempty"`
}

// ListingFeedbackRequest carries the mandatory feedback text for
// request-revision and reject actions
type ListingFeedbackRequest struct {
	Feedback string `json:"feedback"`
}

// RequestProofRequest carries the message sent to the broker when an admin
// asks for more proof on a consent document
type RequestProofRequest struct {
	Message string `json:"message"`
}

// ListingFilter narrows list reads
type ListingFilter struct {
	BrokerID *string
	Status   *ListingStatus
}

// ConsentResponse is the API representation of a consent record. Expired is
// derived at read time from expires_at.
type ConsentResponse struct {
	ConsentID   string        `json:"consentId"`
	ListingID   string        `json:"listingId"`
	ClientName  string        `json:"clientName"`
	ClientEmail string        `json:"clientEmail"`
	ClientPhone string        `json:"clientPhone"`
	DocumentURL *string       `json:"documentUrl,omitempty"`
	Status      ConsentStatus `json:"status"`
	ExpiresAt   *string       `json:"expiresAt,omitempty"`
	Expired     bool          `json:"expired"`
	ReviewedAt  *string       `json:"reviewedAt,omitempty"`
	ReviewedBy  *string       `json:"reviewedBy,omitempty"`
}

// ListingResponse is the API representation of a listing with its consent
type ListingResponse struct {
	ListingID     string           `json:"listingId"`
	BrokerID      string           `json:"brokerId"`
	Title         string           `json:"title"`
	Price         float64          `json:"price"`
	Acreage       float64          `json:"acreage"`
	Location      string           `json:"location"`
	PropertyType  string           `json:"propertyType"`
	Description   *string          `json:"description,omitempty"`
	MediaCount    int              `json:"mediaCount"`
	DocumentCount int              `json:"documentCount"`
	Status        ListingStatus    `json:"status"`
	AdminFeedback *string          `json:"adminFeedback,omitempty"`
	ReviewedBy    *string          `json:"reviewedBy,omitempty"`
	ApprovedAt    *string          `json:"approvedAt,omitempty"`
	Consent       *ConsentResponse `json:"consent,omitempty"`
	CreatedAt     string           `json:"createdAt"`
	UpdatedAt     string           `json:"updatedAt"`
}

// ToResponse converts a ClientConsent to its API representation
func (c *ClientConsent) ToResponse(now time.Time) *ConsentResponse {
	resp := &ConsentResponse{
		ConsentID:   c.ConsentID,
		ListingID:   c.ListingID,
		ClientName:  c.ClientName,
		ClientEmail: c.ClientEmail,
		ClientPhone: c.ClientPhone,
		DocumentURL: c.DocumentURL,
		Status:      c.Status,
		Expired:     ConsentExpired(c.ExpiresAt, now),
		ReviewedBy:  c.ReviewedBy,
	}
	if c.ExpiresAt != nil {
		expiresAt := c.ExpiresAt.Format(time.RFC3339)
		resp.ExpiresAt = &expiresAt
	}
	if c.ReviewedAt != nil {
		reviewedAt := c.ReviewedAt.Format(time.RFC3339)
		resp.ReviewedAt = &reviewedAt
	}
	return resp
}

// ToResponse converts a Listing to its API representation. The consent is
// included when it has been loaded.
func (l *Listing) ToResponse(now time.Time) *ListingResponse {
	resp := &ListingResponse{
		ListingID:     l.ListingID,
		BrokerID:      l.BrokerID,
		Title:         l.Title,
		Price:         l.Price,
		Acreage:       l.Acreage,
		Location:      l.Location,
		PropertyType:  l.PropertyType,
		Description:   l.Description,
		MediaCount:    l.MediaCount,
		DocumentCount: l.DocumentCount,
		Status:        l.Status,
		AdminFeedback: l.AdminFeedback,
		ReviewedBy:    l.ReviewedBy,
		CreatedAt:     l.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     l.UpdatedAt.Format(time.RFC3339),
	}
	if l.ApprovedAt != nil {
		approvedAt := l.ApprovedAt.Format(time.RFC3339)
		resp.ApprovedAt = &approvedAt
	}
	if l.Consent.ConsentID != "" {
		resp.Consent = l.Consent.ToResponse(now)
	}
	return resp
}
