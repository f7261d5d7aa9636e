package dashboard

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slipdesk/slipdesk/internal/challan"
)

// RepositoryPort defines the aggregation primitive the service depends on.
type RepositoryPort interface {
	Aggregate(ctx context.Context, rng *Range) (Facets, error)
}

// Repository computes the report facets in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// facetQuery walks the filtered slip set exactly once; each FILTER clause is
// an independent facet branch over that same pass.
const facetQuery = `
SELECT
	COUNT(*) FILTER (WHERE last.status IS NOT NULL)                     AS slip_total,
	COUNT(*) FILTER (WHERE last.status = 'Open')                        AS slip_open,
	COUNT(*) FILTER (WHERE last.status = 'Completed')                   AS slip_completed,
	COUNT(*) FILTER (WHERE last.status = 'Partially Completed')         AS slip_partial,
	COUNT(*) FILTER (WHERE last.status = 'Not Completed')               AS slip_not_completed,
	COUNT(*) FILTER (WHERE last.status = 'Postponed')                   AS slip_postponed,
	COUNT(*) FILTER (WHERE last.status = 'Cancelled')                   AS slip_cancelled,
	COALESCE(SUM(c.amount_total)     FILTER (WHERE c.payment_type = ANY($3)), 0) AS cash_total,
	COALESCE(SUM(c.amount_received)  FILTER (WHERE c.payment_type = ANY($3)), 0) AS cash_received,
	COALESCE(SUM(c.amount_forfeited) FILTER (WHERE c.payment_type = ANY($3)), 0) AS cash_forfeited,
	COALESCE(SUM(c.amount_extra)     FILTER (WHERE c.payment_type = ANY($3)), 0) AS cash_extra,
	COALESCE(SUM(c.amount_cancelled) FILTER (WHERE c.payment_type = ANY($3)), 0) AS cash_cancelled,
	COALESCE(SUM(c.amount_total)     FILTER (WHERE c.payment_type = $4), 0) AS bill_total,
	COALESCE(SUM(c.amount_received)  FILTER (WHERE c.payment_type = $4), 0) AS bill_received,
	COALESCE(SUM(c.amount_forfeited) FILTER (WHERE c.payment_type = $4), 0) AS bill_forfeited,
	COALESCE(SUM(c.amount_extra)     FILTER (WHERE c.payment_type = $4), 0) AS bill_extra,
	COALESCE(SUM(c.amount_cancelled) FILTER (WHERE c.payment_type = $4), 0) AS bill_cancelled
FROM challans c
LEFT JOIN LATERAL (
	SELECT status FROM challan_updates u WHERE u.challan_id = c.id ORDER BY u.seq DESC LIMIT 1
) last ON true
WHERE ($1::timestamptz IS NULL OR (c.created_at >= $1 AND c.created_at <= $2))`

// Aggregate produces the three report facets for the window in a single
// filtered scan.
func (r *Repository) Aggregate(ctx context.Context, rng *Range) (Facets, error) {
	var from, to any
	if rng != nil {
		from, to = rng.From, rng.To
	}

	cashTypes := make([]string, len(CashPaymentTypes))
	for i, pt := range CashPaymentTypes {
		cashTypes[i] = string(pt)
	}

	var (
		facets Facets
		counts [6]int64
	)
	err := r.pool.QueryRow(ctx, facetQuery, from, to, cashTypes, string(challan.PaymentBillAfterJob)).Scan(
		&facets.Slips.Total,
		&counts[0], &counts[1], &counts[2], &counts[3], &counts[4], &counts[5],
		&facets.Cash.Total, &facets.Cash.Received, &facets.Cash.Forfeited, &facets.Cash.Extra, &facets.Cash.Cancelled,
		&facets.Bill.Total, &facets.Bill.Received, &facets.Bill.Forfeited, &facets.Bill.Extra, &facets.Bill.Cancelled,
	)
	if err != nil {
		return Facets{}, fmt.Errorf("dashboard: aggregate: %w", err)
	}

	facets.Slips.ByStatus = make(map[challan.Status]int64, len(challan.Statuses))
	for i, status := range challan.Statuses {
		facets.Slips.ByStatus[status] = counts[i]
	}
	return facets, nil
}
