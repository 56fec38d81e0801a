package services

import (
	"testing"

	"github.com/terrahaven/api-server-go/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupSQLiteTestDB creates an in-memory SQLite database for testing
func SetupSQLiteTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to SQLite test database: %v", err)
	}

	// Auto-migrate all models
	err = db.AutoMigrate(
		&models.AccessRequest{},
		&models.Listing{},
		&models.ClientConsent{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	CleanupTestData(t, db)

	return db
}

// CleanupTestData removes all test data from the database.
// Exported for use in handler tests.
func CleanupTestData(t *testing.T, db *gorm.DB) {
	// Delete in reverse order of dependencies
	if err := db.Exec("DELETE FROM client_consents").Error; err != nil {
		t.Logf("Warning: failed to cleanup client_consents: %v", err)
	}
	if err := db.Exec("DELETE FROM listings").Error; err != nil {
		t.Logf("Warning: failed to cleanup listings: %v", err)
	}
	if err := db.Exec("DELETE FROM access_requests").Error; err != nil {
		t.Logf("Warning: failed to cleanup access_requests: %v", err)
	}
}
