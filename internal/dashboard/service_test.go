package dashboard

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slipdesk/slipdesk/internal/challan"
)

// fakeRepo aggregates an in-memory slip set with the same facet semantics
// the SQL query applies: status counts over the last timeline entry, cash
// and bill sums keyed off the payment type, creation-time window inclusive.
type fakeRepo struct {
	items []challan.Challan
	calls int
}

func (r *fakeRepo) Aggregate(ctx context.Context, rng *Range) (Facets, error) {
	r.calls++
	facets := Facets{Slips: StatusCounts{ByStatus: make(map[challan.Status]int64)}}
	for _, ch := range r.items {
		if rng != nil && (ch.CreatedAt.Before(rng.From) || ch.CreatedAt.After(rng.To)) {
			continue
		}
		if status, ok := ch.CurrentStatus(); ok {
			facets.Slips.Total++
			facets.Slips.ByStatus[status]++
		}
		isCash := false
		for _, pt := range CashPaymentTypes {
			if ch.PaymentType == pt {
				isCash = true
			}
		}
		switch {
		case isCash:
			addSums(&facets.Cash, ch.Amount)
		case ch.PaymentType == challan.PaymentBillAfterJob:
			addSums(&facets.Bill, ch.Amount)
		}
	}
	return facets, nil
}

func addSums(sums *AmountSums, a challan.Amount) {
	sums.Total += a.Total
	sums.Received += a.Received
	sums.Forfeited += a.Forfeited
	sums.Extra += a.Extra
	sums.Cancelled += a.Cancelled
}

func slip(pt challan.PaymentType, status challan.Status, amount challan.Amount, created time.Time) challan.Challan {
	ch := challan.Challan{
		PaymentType: pt,
		Amount:      amount,
		CreatedAt:   created,
	}
	ch.AppendUpdate(challan.Update{Status: status, User: "tester", Date: created})
	return ch
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func pointValue(t *testing.T, points []Point, label string) float64 {
	t.Helper()
	for _, p := range points {
		if p.Label == label {
			return p.Value
		}
	}
	t.Fatalf("missing label %q", label)
	return 0
}

func TestGetReportShapesFixedLabels(t *testing.T) {
	repo := &fakeRepo{items: []challan.Challan{
		slip(challan.PaymentCashToCollect, challan.StatusCompleted,
			challan.Amount{Total: 1000, Received: 800, Forfeited: 200}, day(2025, time.March, 4)),
		slip(challan.PaymentBillAfterJob, challan.StatusOpen,
			challan.Amount{Total: 500}, day(2025, time.March, 5)),
	}}
	svc := NewService(testLogger(), repo, nil)

	report, err := svc.GetReport(context.Background(), Filter{})
	require.NoError(t, err)

	wantLabels := []string{"Total", "Open", "Completed", "Partially Completed", "Not Completed", "Postponed", "Cancelled"}
	require.Len(t, report.SlipData, len(wantLabels))
	for i, label := range wantLabels {
		require.Equal(t, label, report.SlipData[i].Label)
	}
	require.Equal(t, float64(2), pointValue(t, report.SlipData, "Total"))
	require.Equal(t, float64(1), pointValue(t, report.SlipData, "Completed"))
	require.Equal(t, float64(1), pointValue(t, report.SlipData, "Open"))
	require.Equal(t, float64(0), pointValue(t, report.SlipData, "Postponed"))

	require.Equal(t, 1000.0, pointValue(t, report.CashData, "Total"))
	require.Equal(t, 800.0, pointValue(t, report.CashData, "Received"))
	require.Equal(t, 0.0, pointValue(t, report.CashData, "Pending"))
	require.Equal(t, 200.0, pointValue(t, report.CashData, "Forfeited"))

	require.Equal(t, 500.0, pointValue(t, report.BillData, "Total"))
	require.Equal(t, 500.0, pointValue(t, report.BillData, "Pending"))
}

func TestGetReportEmptyWindowDefaultsToZero(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(testLogger(), repo, nil)

	report, err := svc.GetReport(context.Background(), Filter{Year: 2019})
	require.NoError(t, err)

	for _, p := range report.SlipData {
		require.Equal(t, 0.0, p.Value, p.Label)
	}
	for _, p := range append(report.CashData, report.BillData...) {
		require.Equal(t, 0.0, p.Value, p.Label)
	}
}

func TestGetReportPendingClampsAtZero(t *testing.T) {
	repo := &fakeRepo{items: []challan.Challan{
		slip(challan.PaymentUPI, challan.StatusCompleted,
			challan.Amount{Total: 500, Received: 700, Extra: 200}, day(2025, time.June, 1)),
	}}
	svc := NewService(testLogger(), repo, nil)

	report, err := svc.GetReport(context.Background(), Filter{})
	require.NoError(t, err)
	require.Equal(t, 0.0, pointValue(t, report.CashData, "Pending"))
	require.Equal(t, 200.0, pointValue(t, report.CashData, "Extra"))
}

func TestGetReportYearPartitionsAreAdditive(t *testing.T) {
	repo := &fakeRepo{items: []challan.Challan{
		slip(challan.PaymentCashToCollect, challan.StatusCompleted, challan.Amount{Total: 100, Received: 100}, day(2024, time.February, 10)),
		slip(challan.PaymentCashToCollect, challan.StatusOpen, challan.Amount{Total: 250}, day(2024, time.December, 31)),
		slip(challan.PaymentUPI, challan.StatusCompleted, challan.Amount{Total: 400, Received: 400}, day(2025, time.January, 1)),
		slip(challan.PaymentBillAfterJob, challan.StatusOpen, challan.Amount{Total: 900}, day(2025, time.July, 15)),
	}}
	svc := NewService(testLogger(), repo, nil)

	all, err := svc.GetReport(context.Background(), Filter{})
	require.NoError(t, err)
	y2024, err := svc.GetReport(context.Background(), Filter{Year: 2024})
	require.NoError(t, err)
	y2025, err := svc.GetReport(context.Background(), Filter{Year: 2025})
	require.NoError(t, err)

	for _, label := range []string{"Total", "Received", "Forfeited", "Extra", "Cancelled"} {
		require.Equal(t,
			pointValue(t, all.CashData, label),
			pointValue(t, y2024.CashData, label)+pointValue(t, y2025.CashData, label),
			"cash %s", label)
		require.Equal(t,
			pointValue(t, all.BillData, label),
			pointValue(t, y2024.BillData, label)+pointValue(t, y2025.BillData, label),
			"bill %s", label)
	}
	require.Equal(t,
		pointValue(t, all.SlipData, "Total"),
		pointValue(t, y2024.SlipData, "Total")+pointValue(t, y2025.SlipData, "Total"))
}

func TestGetReportDateRangeBoundsAreInclusive(t *testing.T) {
	repo := &fakeRepo{items: []challan.Challan{
		slip(challan.PaymentCashToCollect, challan.StatusOpen, challan.Amount{Total: 10},
			time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)),
		slip(challan.PaymentCashToCollect, challan.StatusOpen, challan.Amount{Total: 20},
			time.Date(2025, time.March, 31, 23, 59, 59, 0, time.UTC)),
		slip(challan.PaymentCashToCollect, challan.StatusOpen, challan.Amount{Total: 40},
			time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)),
	}}
	svc := NewService(testLogger(), repo, nil)

	report, err := svc.GetReport(context.Background(), Filter{
		StartDate: "2025-03-01",
		EndDate:   "2025-03-31",
	})
	require.NoError(t, err)
	require.Equal(t, 30.0, pointValue(t, report.CashData, "Total"))
}

func TestGetReportSkipsSlipsWithoutTimeline(t *testing.T) {
	bare := challan.Challan{
		PaymentType: challan.PaymentCashToCollect,
		Amount:      challan.Amount{Total: 75},
		CreatedAt:   day(2025, time.May, 2),
	}
	repo := &fakeRepo{items: []challan.Challan{bare}}
	svc := NewService(testLogger(), repo, nil)

	report, err := svc.GetReport(context.Background(), Filter{})
	require.NoError(t, err)
	require.Equal(t, 0.0, pointValue(t, report.SlipData, "Total"))
	require.Equal(t, 75.0, pointValue(t, report.CashData, "Total"))
}

func TestWarmPrecomputesAllTime(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(testLogger(), repo, nil)

	require.NoError(t, svc.Warm(context.Background()))
	require.Equal(t, 1, repo.calls)
}
