// Package profile manages customer delivery profiles. Saves are optimistic
// upserts keyed by user ID.
package profile

import (
	"fmt"
	"strings"

	"github.com/scooply/scooply/internal/logging"
	"github.com/scooply/scooply/internal/store"
	"github.com/scooply/scooply/internal/types"
)

// Service reads and upserts customer profiles.
type Service struct {
	store *store.Store
}

// New creates a profile service.
func New(st *store.Store) *Service {
	return &Service{store: st}
}

// Get returns the user's profile.
func (s *Service) Get(userID string) (*types.Profile, error) {
	return s.store.GetProfile(userID)
}

// Upsert saves a profile, inserting or updating as needed. The caller's user
// ID wins over whatever is in the payload.
func (s *Service) Upsert(userID string, p *types.Profile) (*types.Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	p.UserID = userID
	normalize(p)

	if p.DisplayName == "" {
		return nil, fmt.Errorf("display name is required")
	}
	if p.Pincode != "" && !validPincode(p.Pincode) {
		return nil, fmt.Errorf("pincode must be 6 digits")
	}

	if err := s.store.UpsertProfile(p); err != nil {
		return nil, err
	}
	logging.Get(logging.CategoryProfile).Debug("profile saved for %s", userID)
	return s.store.GetProfile(userID)
}

func normalize(p *types.Profile) {
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	p.Phone = strings.TrimSpace(p.Phone)
	p.AddressLine = strings.TrimSpace(p.AddressLine)
	p.City = strings.TrimSpace(p.City)
	p.Pincode = strings.TrimSpace(p.Pincode)
}

// validPincode checks the Indian 6-digit postal code shape.
func validPincode(pin string) bool {
	if len(pin) != 6 || pin[0] == '0' {
		return false
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
