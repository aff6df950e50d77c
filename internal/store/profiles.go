package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/models"

	"github.com/google/uuid"
)

const profileColumns = "id, name, role, phone_number, address, city, state, zip_code, country, photo_url, created_at"

// GetProfile retrieves a profile by user ID
func (s *Store) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	err := s.db.GetContext(ctx, &p, "SELECT "+profileColumns+" FROM profiles WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetRole returns only the role of a profile
func (s *Store) GetRole(ctx context.Context, id uuid.UUID) (models.Role, error) {
	var role models.Role
	err := s.db.GetContext(ctx, &role, "SELECT role FROM profiles WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return role, err
}

// CreateProfile inserts the profile row for a newly registered user
func (s *Store) CreateProfile(ctx context.Context, p *models.Profile) error {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO profiles (id, name, role, phone_number, address, city, state, zip_code, country, photo_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		p.ID, p.Name, p.Role, p.PhoneNumber, p.Address, p.City, p.State, p.ZipCode, p.Country, p.PhotoURL,
	).Scan(&p.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// UpdateProfile overwrites the user-editable profile fields. Role is not editable.
func (s *Store) UpdateProfile(ctx context.Context, p *models.Profile) error {
	err := s.db.QueryRowxContext(ctx, `
		UPDATE profiles
		SET name = $1, phone_number = $2, address = $3, city = $4, state = $5,
			zip_code = $6, country = $7, photo_url = $8
		WHERE id = $9
		RETURNING role, created_at`,
		p.Name, p.PhoneNumber, p.Address, p.City, p.State, p.ZipCode, p.Country, p.PhotoURL, p.ID,
	).Scan(&p.Role, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// ListProfiles returns all profiles, optionally restricted to one role
func (s *Store) ListProfiles(ctx context.Context, role models.Role) ([]models.Profile, error) {
	profiles := []models.Profile{}
	var err error
	if role == "" {
		err = s.db.SelectContext(ctx, &profiles,
			"SELECT "+profileColumns+" FROM profiles ORDER BY created_at DESC")
	} else {
		err = s.db.SelectContext(ctx, &profiles,
			"SELECT "+profileColumns+" FROM profiles WHERE role = $1 ORDER BY created_at DESC", role)
	}
	return profiles, err
}
