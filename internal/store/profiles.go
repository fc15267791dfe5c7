package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/scooply/scooply/internal/logging"
	"github.com/scooply/scooply/internal/types"
)

// UpsertProfile creates or updates a customer profile in one statement.
// The optimistic upsert mirrors the storefront's save-on-blur flow: last
// write wins, no version checks.
func (s *Store) UpsertProfile(p *types.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Upserting profile for user %s", p.UserID)

	now := time.Now().UTC()
	p.UpdatedAt = now

	_, err := s.db.Exec(
		`INSERT INTO profiles (user_id, display_name, phone, address_line, city, pincode, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			display_name = excluded.display_name,
			phone = excluded.phone,
			address_line = excluded.address_line,
			city = excluded.city,
			pincode = excluded.pincode,
			updated_at = excluded.updated_at`,
		p.UserID, p.DisplayName, p.Phone, p.AddressLine, p.City, p.Pincode, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// GetProfile loads a customer profile.
func (s *Store) GetProfile(userID string) (*types.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p types.Profile
	err := s.db.QueryRow(
		`SELECT user_id, display_name, phone, address_line, city, pincode, created_at, updated_at
		 FROM profiles WHERE user_id = ?`,
		userID,
	).Scan(&p.UserID, &p.DisplayName, &p.Phone, &p.AddressLine, &p.City, &p.Pincode, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

// UpsertMerchant creates or updates a merchant profile. The verified flag is
// platform-managed and deliberately not writable through the upsert: an
// existing row keeps its value and new rows start unverified.
func (s *Store) UpsertMerchant(m *types.Merchant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Upserting merchant for user %s", m.UserID)

	now := time.Now().UTC()
	m.UpdatedAt = now

	_, err := s.db.Exec(
		`INSERT INTO merchants (user_id, shop_name, description, city, verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, FALSE, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			shop_name = excluded.shop_name,
			description = excluded.description,
			city = excluded.city,
			updated_at = excluded.updated_at`,
		m.UserID, m.ShopName, m.Description, m.City, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert merchant: %w", err)
	}
	return nil
}

// GetMerchant loads a merchant profile.
func (s *Store) GetMerchant(userID string) (*types.Merchant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var m types.Merchant
	err := s.db.QueryRow(
		`SELECT user_id, shop_name, description, city, verified, created_at, updated_at
		 FROM merchants WHERE user_id = ?`,
		userID,
	).Scan(&m.UserID, &m.ShopName, &m.Description, &m.City, &m.Verified, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get merchant: %w", err)
	}
	return &m, nil
}

// SetMerchantVerified flips the platform-managed verification flag.
func (s *Store) SetMerchantVerified(userID string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE merchants SET verified = ?, updated_at = ? WHERE user_id = ?`,
		verified, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("set merchant verified: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
