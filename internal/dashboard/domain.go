package dashboard

import (
	"github.com/slipdesk/slipdesk/internal/challan"
)

// Point is one labelled chart value.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Report is the chart-ready dashboard payload.
type Report struct {
	SlipData []Point `json:"slipData"`
	CashData []Point `json:"cashData"`
	BillData []Point `json:"billData"`
}

// StatusCounts is the slip facet: jobs grouped by their current status.
// Jobs without a timeline entry have no current status and are excluded.
type StatusCounts struct {
	Total    int64                    `json:"total"`
	ByStatus map[challan.Status]int64 `json:"by_status"`
}

// AmountSums is one ledger facet summed over the matched slips.
type AmountSums struct {
	Total     float64 `json:"total"`
	Received  float64 `json:"received"`
	Forfeited float64 `json:"forfeited"`
	Extra     float64 `json:"extra"`
	Cancelled float64 `json:"cancelled"`
}

// Pending derives the outstanding amount from the sums, clamped at zero.
func (a AmountSums) Pending() float64 {
	return challan.Amount{
		Total:     a.Total,
		Received:  a.Received,
		Forfeited: a.Forfeited,
		Extra:     a.Extra,
		Cancelled: a.Cancelled,
	}.Pending()
}

// Facets is the result of one aggregation pass: three independent grouping
// branches over the same filtered slip set.
type Facets struct {
	Slips StatusCounts `json:"slips"`
	Cash  AmountSums   `json:"cash"`
	Bill  AmountSums   `json:"bill"`
}

// CashPaymentTypes are the payment types feeding the cash facet.
var CashPaymentTypes = []challan.PaymentType{
	challan.PaymentCashToCollect,
	challan.PaymentUPI,
	challan.PaymentInvoiced,
}
