package dashboard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slipdesk/slipdesk/internal/challan"
)

// Service resolves the filter, runs one aggregation pass and shapes the
// facets into the fixed-label chart arrays.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	cache  *Cache
}

// NewService builds Service instance. Cache may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, cache *Cache) *Service {
	return &Service{logger: logger, repo: repo, cache: cache}
}

// GetReport returns the dashboard report for the filter window.
func (s *Service) GetReport(ctx context.Context, filter Filter) (Report, error) {
	rng := filter.Resolve()

	loader := func(ctx context.Context) (any, error) {
		facets, err := s.repo.Aggregate(ctx, rng)
		if err != nil {
			return nil, err
		}
		return shapeReport(facets), nil
	}

	if s.cache == nil {
		value, err := loader(ctx)
		if err != nil {
			return Report{}, err
		}
		return value.(Report), nil
	}

	key, err := s.cache.BuildKey(ctx, "dashboard", "report", rng.Key())
	if err != nil {
		return Report{}, fmt.Errorf("dashboard: cache key: %w", err)
	}
	var report Report
	if err := s.cache.FetchJSON(ctx, key, &report, loader); err != nil {
		return Report{}, err
	}
	return report, nil
}

// Warm precomputes the all-time report so the first dashboard hit after an
// invalidation stays cheap.
func (s *Service) Warm(ctx context.Context) error {
	_, err := s.GetReport(ctx, Filter{})
	return err
}

// shapeReport fills the fixed label sets. Statuses absent from the data
// report zero; empty facets default every sum to zero.
func shapeReport(facets Facets) Report {
	slipData := make([]Point, 0, len(challan.Statuses)+1)
	slipData = append(slipData, Point{Label: "Total", Value: float64(facets.Slips.Total)})
	for _, status := range challan.Statuses {
		slipData = append(slipData, Point{
			Label: string(status),
			Value: float64(facets.Slips.ByStatus[status]),
		})
	}

	return Report{
		SlipData: slipData,
		CashData: amountPoints(facets.Cash),
		BillData: amountPoints(facets.Bill),
	}
}

func amountPoints(sums AmountSums) []Point {
	return []Point{
		{Label: "Total", Value: sums.Total},
		{Label: "Received", Value: sums.Received},
		{Label: "Pending", Value: sums.Pending()},
		{Label: "Forfeited", Value: sums.Forfeited},
		{Label: "Extra", Value: sums.Extra},
		{Label: "Cancelled", Value: sums.Cancelled},
	}
}
