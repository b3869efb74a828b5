// Package seed loads the reference data (badges, product, vendor accounts)
// applied at startup.
package seed

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/maplenou/maplenou-api/internal/models"
	"github.com/maplenou/maplenou-api/internal/repository"
	"github.com/maplenou/maplenou-api/pkg/logger"
)

// Data is the content of a seed file.
type Data struct {
	Badges  []Badge  `yaml:"badges"`
	Product *Product `yaml:"product"`
	Vendors []Vendor `yaml:"vendors"`
}

// Badge is one badge definition.
type Badge struct {
	Niveau      int    `yaml:"niveau"`
	Nom         string `yaml:"nom"`
	JoursRequis int    `yaml:"jours_requis"`
	Description string `yaml:"description"`
}

// Product is the sellable item created when the catalog is empty.
type Product struct {
	Nom              string `yaml:"nom"`
	Description      string `yaml:"description"`
	Prix             int64  `yaml:"prix"`
	StockTotalDuJour int    `yaml:"stock_total_du_jour"`
}

// Vendor is a vendor account keyed by email.
type Vendor struct {
	Email     string `yaml:"email"`
	Nom       string `yaml:"nom"`
	Prenom    string `yaml:"prenom"`
	Telephone string `yaml:"telephone"`
	Institut  string `yaml:"institut"`
	Parcours  string `yaml:"parcours"`
}

// Default returns the built-in reference data.
func Default() *Data {
	return &Data{
		Badges: []Badge{
			{Niveau: 1, Nom: "Nouveau", JoursRequis: 1, Description: "Première commande servie"},
			{Niveau: 2, Nom: "Débutant", JoursRequis: 7, Description: "Une semaine sans interruption"},
			{Niveau: 3, Nom: "Intermédiaire", JoursRequis: 30, Description: "Un mois sans interruption"},
			{Niveau: 4, Nom: "Avancé", JoursRequis: 60, Description: "Deux mois, éligible à la loterie"},
			{Niveau: 5, Nom: "Expert", JoursRequis: 90, Description: "Trois mois sans interruption"},
			{Niveau: 6, Nom: "Champion", JoursRequis: 120, Description: "Quatre mois sans interruption"},
		},
		Product: &Product{
			Nom:              "Croissant Premium",
			Description:      "Croissant pur beurre du jour",
			Prix:             500,
			StockTotalDuJour: 100,
		},
	}
}

// Load reads a seed file. An empty path returns Default.
func Load(path string) (*Data, error) {
	if path == "" {
		return Default(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var data Data
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("invalid seed file %s: %w", path, err)
	}
	return &data, nil
}

// Validate checks the badge ladder and product.
func (d *Data) Validate() error {
	seen := make(map[int]bool, len(d.Badges))
	for _, b := range d.Badges {
		if b.Niveau <= 0 || b.JoursRequis <= 0 {
			return fmt.Errorf("badge %q: niveau and jours_requis must be positive", b.Nom)
		}
		if seen[b.Niveau] {
			return fmt.Errorf("badge niveau %d defined twice", b.Niveau)
		}
		seen[b.Niveau] = true
	}
	if d.Product != nil && d.Product.Prix <= 0 {
		return fmt.Errorf("product %q: prix must be positive", d.Product.Nom)
	}
	for _, v := range d.Vendors {
		if v.Email == "" || v.Institut == "" {
			return fmt.Errorf("vendor %q: email and institut are required", v.Nom)
		}
	}
	return nil
}

// Apply writes d to the store. It can run on every start: badges are
// upserted, the product is only created when none exists and vendors are
// matched by email.
func Apply(ctx context.Context, db *repository.DB, d *Data, log *logger.Logger) error {
	badgeRepo := repository.NewBadgeRepository(db)
	for _, b := range d.Badges {
		def := &models.BadgeDefinition{
			Niveau:      b.Niveau,
			Nom:         b.Nom,
			JoursRequis: b.JoursRequis,
			Description: b.Description,
		}
		if err := badgeRepo.UpsertDefinition(ctx, def); err != nil {
			return err
		}
	}

	if d.Product != nil {
		productRepo := repository.NewProductRepository(db)
		_, err := productRepo.Get(ctx)
		switch {
		case repository.IsNotFound(err):
			product := &models.Product{
				Nom:                d.Product.Nom,
				Description:        d.Product.Description,
				Prix:               d.Product.Prix,
				Statut:             models.ProductActive,
				StockTotalDuJour:   d.Product.StockTotalDuJour,
				StockRestantDuJour: d.Product.StockTotalDuJour,
			}
			if err := productRepo.Create(ctx, product); err != nil {
				return err
			}
			log.Info().Str("product", product.Nom).Msg("Product created")
		case err != nil:
			return err
		}
	}

	userRepo := repository.NewUserRepository(db)
	for _, v := range d.Vendors {
		vendor := &models.User{
			Email:     v.Email,
			Nom:       v.Nom,
			Prenom:    v.Prenom,
			Telephone: v.Telephone,
			Institut:  v.Institut,
			Parcours:  v.Parcours,
		}
		if err := userRepo.CreateOrUpdateVendor(ctx, vendor); err != nil {
			return err
		}
	}

	log.Info().
		Int("badges", len(d.Badges)).
		Int("vendors", len(d.Vendors)).
		Msg("Seed data applied")
	return nil
}
