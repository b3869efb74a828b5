// Package vendors maps a client to the vendor that fulfils their orders.
package vendors

import (
	"context"
	"fmt"
	"strings"

	"github.com/maplenou/maplenou-api/internal/models"
	"github.com/maplenou/maplenou-api/internal/repository"
	"github.com/maplenou/maplenou-api/pkg/logger"
)

// Program names that registration sometimes stores in the institut field.
var knownPrograms = map[string]bool{
	"Licence 1": true,
	"Licence 2": true,
	"Licence 3": true,
	"Master 1":  true,
	"Master 2":  true,
	"Doctorat":  true,
}

// Institute names that registration sometimes stores in the parcours field.
var knownInstitutes = map[string]bool{
	"ISSJ":    true,
	"ISEG":    true,
	"ESI/DGI": true,
	"HEC":     true,
	"IAEC":    true,
}

// VendorFinder looks vendors up. Both methods return nil, nil when nothing matches.
type VendorFinder interface {
	FindVendor(ctx context.Context, institut, parcours string) (*models.User, error)
	FindVendorByInstitut(ctx context.Context, institut string) (*models.User, error)
}

// Resolver is the single routine used by order placement, stock lookup and
// the daily reset to find a user's vendor.
type Resolver struct {
	finder VendorFinder
	log    *logger.Logger
}

// NewResolver creates a resolver backed by the user repository.
func NewResolver(users *repository.UserRepository, log *logger.Logger) *Resolver {
	return &Resolver{finder: users, log: log}
}

// NewResolverWithInterfaces creates a resolver with interface dependencies (useful for testing).
func NewResolverWithInterfaces(finder VendorFinder, log *logger.Logger) *Resolver {
	return &Resolver{finder: finder, log: log}
}

// Normalize trims both fields and swaps them when a program name sits in
// institut (or an institute name in parcours) and the other field is empty.
func Normalize(institut, parcours string) (string, string) {
	institut = strings.TrimSpace(institut)
	parcours = strings.TrimSpace(parcours)

	if parcours == "" && knownPrograms[institut] {
		return "", institut
	}
	if institut == "" && knownInstitutes[parcours] {
		return parcours, ""
	}
	return institut, parcours
}

// Resolve returns the vendor responsible for user, or nil when none can be
// found. A missing vendor is not an error.
func (r *Resolver) Resolve(ctx context.Context, user *models.User) (*models.User, error) {
	return r.ResolveProfile(ctx, user.Institut, user.Parcours)
}

// ResolveProfile resolves from raw profile fields.
func (r *Resolver) ResolveProfile(ctx context.Context, institut, parcours string) (*models.User, error) {
	institut, parcours = Normalize(institut, parcours)
	if institut == "" {
		return nil, nil
	}

	if parcours != "" {
		vendor, err := r.finder.FindVendor(ctx, institut, parcours)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve vendor: %w", err)
		}
		if vendor != nil {
			return vendor, nil
		}
	}

	vendor, err := r.finder.FindVendorByInstitut(ctx, institut)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vendor: %w", err)
	}

	if vendor == nil {
		r.log.Debug().
			Str("institut", institut).
			Str("parcours", parcours).
			Msg("No vendor for profile")
	}
	return vendor, nil
}
