// Package testdb builds in-memory SQLite stores and fixtures for service tests.
package testdb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/maplenou/maplenou-api/internal/models"
	"github.com/maplenou/maplenou-api/internal/repository"
	"github.com/maplenou/maplenou-api/pkg/logger"
)

// New opens a migrated in-memory database closed at the end of the test.
func New(t *testing.T) *repository.DB {
	t.Helper()

	db, err := repository.NewSQLiteDB(":memory:", logger.Nop())
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("Failed to auto-migrate tables: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// Badges inserts the default six badge definitions.
func Badges(t *testing.T, db *repository.DB) []models.BadgeDefinition {
	t.Helper()

	defs := []models.BadgeDefinition{
		{Niveau: 1, Nom: "Nouveau", JoursRequis: 1},
		{Niveau: 2, Nom: "Débutant", JoursRequis: 7},
		{Niveau: 3, Nom: "Intermédiaire", JoursRequis: 30},
		{Niveau: 4, Nom: "Avancé", JoursRequis: 60},
		{Niveau: 5, Nom: "Expert", JoursRequis: 90},
		{Niveau: 6, Nom: "Champion", JoursRequis: 120},
	}
	repo := repository.NewBadgeRepository(db)
	for i := range defs {
		if err := repo.UpsertDefinition(context.Background(), &defs[i]); err != nil {
			t.Fatalf("Failed to seed badge %d: %v", defs[i].Niveau, err)
		}
	}
	return defs
}

// Product inserts the product with the given price, status and global stock.
func Product(t *testing.T, db *repository.DB, prix int64, statut string, stock int) *models.Product {
	t.Helper()

	product := &models.Product{
		Nom:                "Croissant Premium",
		Prix:               prix,
		Statut:             statut,
		StockTotalDuJour:   stock,
		StockRestantDuJour: stock,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("Failed to create product: %v", err)
	}
	return product
}

// Vendor inserts a vendor for the institute and program.
func Vendor(t *testing.T, db *repository.DB, name, institut, parcours string) *models.User {
	t.Helper()
	return user(t, db, name, models.RoleVendor, institut, parcours)
}

// Client inserts a client with the given profile.
func Client(t *testing.T, db *repository.DB, name, institut, parcours string) *models.User {
	t.Helper()
	return user(t, db, name, models.RoleClient, institut, parcours)
}

// Streak sets the gamification state of a user directly.
func Streak(t *testing.T, db *repository.DB, u *models.User, streak, level int, lastPurchase string) {
	t.Helper()

	var last *string
	if lastPurchase != "" {
		last = &lastPurchase
	}
	err := db.Model(&models.User{}).Where("id = ?", u.ID).Updates(map[string]interface{}{
		"streak_consecutif":  streak,
		"badge_niveau":       level,
		"dernier_achat_date": last,
		"eligible_loterie":   level >= 4,
	}).Error
	if err != nil {
		t.Fatalf("Failed to set streak of user %d: %v", u.ID, err)
	}
}

// Order inserts an order in the given status for day.
func Order(t *testing.T, db *repository.DB, u *models.User, vendor *models.User, day, status string) *models.Order {
	t.Helper()

	order := &models.Order{
		UtilisateurID: u.ID,
		Quantite:      1,
		PrixUnitaire:  500,
		PrixTotal:     500,
		Statut:        status,
		JourCommande:  day,
		DateCommande:  time.Now().UTC(),
	}
	if vendor != nil {
		id := vendor.ID
		order.VendeurID = &id
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}
	return order
}

// Reload reads u back from the store.
func Reload(t *testing.T, db *repository.DB, u *models.User) *models.User {
	t.Helper()

	var fresh models.User
	if err := db.First(&fresh, u.ID).Error; err != nil {
		t.Fatalf("Failed to reload user %d: %v", u.ID, err)
	}
	return &fresh
}

// Clock returns a time source fixed at noon UTC of day.
func Clock(day string) func() time.Time {
	t, err := models.ParseDay(day)
	if err != nil {
		panic(fmt.Sprintf("bad test day %q", day))
	}
	return func() time.Time { return t.Add(12 * time.Hour) }
}

func user(t *testing.T, db *repository.DB, name, role, institut, parcours string) *models.User {
	u := &models.User{
		Nom:      name,
		Prenom:   "Test",
		Email:    name + "@maplenou.test",
		Role:     role,
		Institut: institut,
		Parcours: parcours,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("Failed to create user %s: %v", name, err)
	}
	return u
}
