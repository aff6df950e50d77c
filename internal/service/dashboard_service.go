package service

import (
	"context"
	"time"

	"storefront/internal/analytics"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// revenueDays is the number of trailing days charted on the admin dashboard
const revenueDays = 14

// dashboardBuildTimeout bounds a shared build that no longer belongs to any one request
const dashboardBuildTimeout = 30 * time.Second

// AdminDashboard is the admin landing page payload
type AdminDashboard struct {
	Metrics           analytics.OrderMetrics `json:"metrics"`
	CategoryBreakdown []models.CategoryValue `json:"category_breakdown"`
	RevenueByDay      []models.DailyRevenue  `json:"revenue_by_day"`
	InventoryValue    []models.CategoryValue `json:"inventory_value"`
	GeneratedAt       time.Time              `json:"generated_at"`
}

// DashboardService builds the cached admin dashboard
type DashboardService struct {
	store  DashboardStore
	cache  DashboardCache
	loc    *time.Location
	group  singleflight.Group
	logger *zap.Logger
}

func NewDashboardService(s DashboardStore, cache DashboardCache, loc *time.Location) *DashboardService {
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardService{
		store:  s,
		cache:  cache,
		loc:    loc,
		logger: util.GetLogger(),
	}
}

// Dashboard returns the admin dashboard, served from cache when fresh
func (s *DashboardService) Dashboard(ctx context.Context) (*AdminDashboard, error) {
	ctx, span := util.StartSpan(ctx, "DashboardService.Dashboard")
	defer span.End()

	key, err := s.cache.BuildKey(ctx, "storefront", "dashboard", "admin")
	if err != nil {
		s.logger.Warn("Dashboard cache unavailable", zap.Error(err))
		return s.build(ctx)
	}

	// Callers that join the flight must not inherit the first caller's cancellation.
	buildCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		buildCtx, cancel := context.WithTimeout(buildCtx, dashboardBuildTimeout)
		defer cancel()

		var out AdminDashboard
		err := s.cache.FetchJSON(buildCtx, key, &out, func(ctx context.Context) (interface{}, error) {
			return s.build(ctx)
		})
		if err != nil {
			return nil, err
		}
		return &out, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*AdminDashboard), nil
	}
}

func (s *DashboardService) build(ctx context.Context) (*AdminDashboard, error) {
	orders, items, err := s.store.DashboardRows(ctx)
	if err != nil {
		return nil, translate(err, "dashboard")
	}
	products, err := s.store.ListProducts(ctx, store.ProductFilter{})
	if err != nil {
		return nil, translate(err, "dashboard products")
	}

	return &AdminDashboard{
		Metrics:           analytics.Metrics(orders),
		CategoryBreakdown: analytics.CategoryBreakdown(items),
		RevenueByDay:      analytics.RevenueByDay(orders, s.loc, revenueDays),
		InventoryValue:    analytics.CategoryInventoryValue(products),
		GeneratedAt:       time.Now().UTC(),
	}, nil
}
