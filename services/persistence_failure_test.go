package services

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/terrahaven/api-server-go/events"
	"github.com/terrahaven/api-server-go/models"
	apierrors "github.com/terrahaven/api-server-go/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupMockDB creates a sqlmock-backed gorm connection for failure-path tests
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	var db *sql.DB
	var mock sqlmock.Sqlmock
	var err error

	db, mock, err = sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		Conn:       db,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open gorm db: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return gormDB, mock, cleanup
}

// A failed row write means the transition has not occurred. The service must
// surface a database error and never report the target status to the caller.
func TestReviewAccessRequest_WriteFailureMeansNoTransition(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	service := NewAccessRequestService(db, events.NewNoopPublisher())

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"request_id", "role", "full_name", "email", "phone", "status", "created_at", "updated_at",
	}).AddRow("req_1", "client", "Avery Stone", "avery@example.com", "+1-555-0100", "pending", now, now)

	mock.ExpectQuery(`SELECT \* FROM "access_requests"`).
		WithArgs("req_1", 1).
		WillReturnRows(rows)
	mock.ExpectExec(`UPDATE "access_requests"`).
		WillReturnError(errors.New("connection reset by peer"))

	resp, err := service.ReviewAccessRequest("req_1", adminActor(), &models.ReviewAccessRequestRequest{
		Status: models.RequestStatusApproved,
	})

	assert.Error(t, err)
	assert.Nil(t, resp)
	apiErr := apierrors.GetAPIError(err)
	assert.NotNil(t, apiErr)
	assert.Equal(t, apierrors.ErrorTypeDatabase, apiErr.Type)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveListing_WriteFailureMeansNoTransition(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	service := NewListingService(db, events.NewNoopPublisher(), &fakeNotifier{})

	now := time.Now()
	listingRows := sqlmock.NewRows([]string{
		"listing_id", "broker_id", "title", "price", "location", "status", "created_at", "updated_at",
	}).AddRow("lst_1", "broker-1", "120-acre ranch", 2450000.0, "Fredericksburg, TX", "pending", now, now)
	consentRows := sqlmock.NewRows([]string{
		"consent_id", "listing_id", "client_name", "client_email", "status", "created_at", "updated_at",
	}).AddRow("cons_1", "lst_1", "Sam Hollis", "sam.hollis@example.com", "verified", now, now)

	mock.ExpectQuery(`SELECT \* FROM "listings"`).
		WithArgs("lst_1", 1).
		WillReturnRows(listingRows)
	mock.ExpectQuery(`SELECT \* FROM "client_consents"`).
		WillReturnRows(consentRows)
	mock.ExpectExec(`UPDATE "listings"`).
		WillReturnError(errors.New("connection reset by peer"))

	resp, err := service.ApproveListing("lst_1", adminActor())

	assert.Error(t, err)
	assert.Nil(t, resp)
	apiErr := apierrors.GetAPIError(err)
	assert.NotNil(t, apiErr)
	assert.Equal(t, apierrors.ErrorTypeDatabase, apiErr.Type)

	assert.NoError(t, mock.ExpectationsWereMet())
}
