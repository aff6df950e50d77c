package service

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProfileService manages user profiles and the admin user directory
type ProfileService struct {
	profiles         ProfileStore
	roles            RoleInvalidator
	allowAdminSignup bool
	logger           *zap.Logger
}

func NewProfileService(profiles ProfileStore, roles RoleInvalidator, allowAdminSignup bool) *ProfileService {
	return &ProfileService{
		profiles:         profiles,
		roles:            roles,
		allowAdminSignup: allowAdminSignup,
		logger:           util.GetLogger(),
	}
}

// ProfileInput carries the user-editable profile fields
type ProfileInput struct {
	Name        string `json:"name" binding:"required"`
	PhoneNumber string `json:"phone_number"`
	Address     string `json:"address"`
	City        string `json:"city"`
	State       string `json:"state"`
	ZipCode     string `json:"zip_code"`
	Country     string `json:"country"`
	PhotoURL    string `json:"photo_url"`
	Role        string `json:"role"`
}

func (in ProfileInput) apply(p *models.Profile) {
	p.Name = strings.TrimSpace(in.Name)
	p.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	p.Address = strings.TrimSpace(in.Address)
	p.City = strings.TrimSpace(in.City)
	p.State = strings.TrimSpace(in.State)
	p.ZipCode = strings.TrimSpace(in.ZipCode)
	p.Country = strings.TrimSpace(in.Country)
	p.PhotoURL = strings.TrimSpace(in.PhotoURL)
}

// UserDetail is the admin view of a single customer
type UserDetail struct {
	Profile       models.Profile `json:"profile"`
	Orders        []OrderView    `json:"orders"`
	WishlistCount int            `json:"wishlist_count"`
	CartCount     int            `json:"cart_count"`
}

// Me returns the caller's profile
func (s *ProfileService) Me(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	return p, translate(err, "profile")
}

// Register creates the caller's profile. The role defaults to client and
// admin is only granted when admin sign-up is enabled.
func (s *ProfileService) Register(ctx context.Context, userID uuid.UUID, in ProfileInput) (*models.Profile, error) {
	ctx, span := util.StartSpan(ctx, "ProfileService.Register")
	defer span.End()

	role := models.Role(strings.ToLower(strings.TrimSpace(in.Role)))
	if role == "" {
		role = models.RoleClient
	}
	if !role.Valid() {
		return nil, validationError("unknown role %q", in.Role)
	}
	if role == models.RoleAdmin && !s.allowAdminSignup {
		return nil, fmt.Errorf("%w: admin sign-up is disabled", ErrForbidden)
	}

	p := &models.Profile{ID: userID, Role: role}
	in.apply(p)
	if p.Name == "" {
		return nil, validationError("name is required")
	}

	if err := s.profiles.CreateProfile(ctx, p); err != nil {
		return nil, translate(err, "profile")
	}
	s.invalidate(ctx, userID)

	s.logger.Info("Profile registered", zap.String("user_id", userID.String()), zap.String("role", string(role)))
	return p, nil
}

// UpdateMe overwrites the caller's editable profile fields
func (s *ProfileService) UpdateMe(ctx context.Context, userID uuid.UUID, in ProfileInput) (*models.Profile, error) {
	ctx, span := util.StartSpan(ctx, "ProfileService.UpdateMe")
	defer span.End()

	p := &models.Profile{ID: userID}
	in.apply(p)
	if p.Name == "" {
		return nil, validationError("name is required")
	}

	if err := s.profiles.UpdateProfile(ctx, p); err != nil {
		return nil, translate(err, "profile")
	}
	s.invalidate(ctx, userID)
	return p, nil
}

func (s *ProfileService) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.roles == nil {
		return
	}
	if err := s.roles.InvalidateRole(ctx, userID); err != nil {
		s.logger.Warn("Failed to invalidate cached role", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

// ListUsers returns profiles, optionally filtered by role
func (s *ProfileService) ListUsers(ctx context.Context, role string) ([]models.Profile, error) {
	r := models.Role(strings.ToLower(strings.TrimSpace(role)))
	if r != "" && !r.Valid() {
		return nil, validationError("unknown role %q", role)
	}
	profiles, err := s.profiles.ListProfiles(ctx, r)
	return profiles, translate(err, "profiles")
}

// UserDetail loads a user's profile, orders, and cart and wishlist sizes concurrently
func (s *ProfileService) UserDetail(ctx context.Context, userID uuid.UUID) (*UserDetail, error) {
	ctx, span := util.StartSpan(ctx, "ProfileService.UserDetail")
	defer span.End()

	var (
		detail UserDetail
		orders []models.Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.profiles.GetProfile(gctx, userID)
		if err != nil {
			return translate(err, "profile")
		}
		detail.Profile = *p
		return nil
	})
	g.Go(func() error {
		var err error
		orders, err = s.profiles.ListOrdersByUser(gctx, userID)
		return translate(err, "orders")
	})
	g.Go(func() error {
		var err error
		detail.WishlistCount, err = s.profiles.CountWishlist(gctx, userID)
		return translate(err, "wishlist count")
	})
	g.Go(func() error {
		var err error
		detail.CartCount, err = s.profiles.CountCart(gctx, userID)
		return translate(err, "cart count")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	detail.Orders = views(orders)
	return &detail, nil
}
