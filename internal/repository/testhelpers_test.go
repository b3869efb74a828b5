package repository

import (
	"context"
	"testing"
	"time"

	"github.com/maplenou/maplenou-api/internal/models"
	"github.com/maplenou/maplenou-api/pkg/logger"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewSQLiteDB(":memory:", logger.Nop())
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("Failed to auto-migrate tables: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// createTestUser creates a user in the database.
func createTestUser(t *testing.T, db *DB, email, role, institut, parcours string) *models.User {
	t.Helper()

	user := &models.User{
		Nom:      "Test",
		Prenom:   email,
		Email:    email,
		Role:     role,
		Institut: institut,
		Parcours: parcours,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// createTestOrder creates an order in the given status.
func createTestOrder(t *testing.T, db *DB, userID uint, vendorID *uint, day, status string) *models.Order {
	t.Helper()

	order := &models.Order{
		UtilisateurID: userID,
		VendeurID:     vendorID,
		Quantite:      1,
		PrixUnitaire:  500,
		PrixTotal:     500,
		Statut:        status,
		JourCommande:  day,
		DateCommande:  time.Now().UTC(),
	}
	if err := NewOrderRepository(db).Create(context.Background(), order); err != nil {
		t.Fatalf("Failed to create test order: %v", err)
	}
	return order
}
