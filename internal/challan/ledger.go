package challan

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrSlipCancelled is returned when a reconciliation is attempted on a
// cancelled slip. Cancellation is terminal.
var ErrSlipCancelled = errors.New("challan: slip is cancelled")

// coerceAmount maps bad numeric input to zero. Amounts are never negative.
func coerceAmount(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// settle assigns the balance to exactly one of forfeited or extra. A
// negative balance is an overpayment, a non-negative one a write-off. The
// previous values are discarded, not accumulated.
func (a *Amount) settle(balance float64) {
	if balance < 0 {
		a.Extra = -balance
		a.Forfeited = 0
		return
	}
	a.Forfeited = balance
	a.Extra = 0
}

// VerifyInput carries the payment verification request.
type VerifyInput struct {
	BillAmount  float64
	BillCompany string
	Note        string
	User        string
	At          time.Time
}

// ApplyVerification reconciles the ledger for a payment verification and
// flips the verify flag. The reconciliation branch is selected by the
// slip's payment type:
//
//   - Bill After Job: the bill amount becomes both total and received; the
//     bill company may reroute the slip to NTB, Cash To Collect or Contract.
//   - Cash To Collect / UPI Payment: the amount is an incremental payment
//     confirmation accumulated into received.
//   - Remaining types carry nothing to reconcile; only the flag flips.
//
// Forfeited and extra are recomputed from scratch on every call.
func (c *Challan) ApplyVerification(in VerifyInput) error {
	if c.IsCancelled() {
		return ErrSlipCancelled
	}

	billAmount := coerceAmount(in.BillAmount)
	note := in.Note

	switch c.PaymentType {
	case PaymentBillAfterJob:
		c.Amount.Total = billAmount
		c.Amount.Received = billAmount
		c.Amount.Forfeited = 0
		c.Amount.Extra = 0

		switch in.BillCompany {
		case BillCompanyNTB:
			c.PaymentType = PaymentNTB
		case BillCompanyCash:
			c.PaymentType = PaymentCashToCollect
		case BillCompanyContract:
			c.PaymentType = PaymentContract
		}
		c.BillNo = in.Note
		c.BillCompany = in.BillCompany
		note = fmt.Sprintf("%s / %s", orNA(in.BillCompany), orNA(in.Note))

	case PaymentCashToCollect, PaymentUPI:
		c.Amount.Received += billAmount
		c.Amount.settle(c.Amount.Total - c.Amount.Received)

	case PaymentNTB, PaymentInGuarantee, PaymentContract, PaymentInvoiced:
		// Nothing owed or already finalised; clear any stale balance split.
		c.Amount.Forfeited = 0
		c.Amount.Extra = 0
	}

	c.Verify = Verify{Status: true, Invoice: false}
	if note == "" {
		note = "Verified"
	}
	c.AppendNote(note, in.User, in.At)
	return nil
}

// InvoiceInput carries the billing finalisation request.
type InvoiceInput struct {
	BillAmount float64
	GST        string
	User       string
	At         time.Time
}

// ApplyInvoice finalises billing. The bill amount is authoritative: it
// replaces received rather than accumulating, and the balance against the
// original total settles into forfeited or extra. The slip becomes Invoiced
// only when an advance had already been received.
func (c *Challan) ApplyInvoice(in InvoiceInput) error {
	if c.IsCancelled() {
		return ErrSlipCancelled
	}

	c.Verify = Verify{Status: true, Invoice: true}
	c.AppendNote("Invoice Details Sent", in.User, in.At)

	if c.Amount.Received > 0 {
		c.PaymentType = PaymentInvoiced
	} else {
		c.PaymentType = PaymentBillAfterJob
	}

	if in.GST != "" {
		c.GST = in.GST
	}

	billAmount := coerceAmount(in.BillAmount)
	c.Amount.Received = billAmount
	c.Amount.settle(c.Amount.Total - billAmount)
	return nil
}

// ApplyPartialPayment records an incremental collection reported with a
// field update. Only extra is recomputed here; forfeited is left untouched,
// matching the historical update path (full reconciliation happens at
// verification time).
func (c *Challan) ApplyPartialPayment(amount float64) error {
	if c.IsCancelled() {
		return ErrSlipCancelled
	}
	c.Amount.Received += coerceAmount(amount)
	if balance := c.Amount.Total - c.Amount.Received; balance < 0 {
		c.Amount.Extra = -balance
	}
	return nil
}

// ApplyCancellation zeroes the ledger, snapshots the cancelled total, closes
// both verify stages and appends the terminal Cancelled entry.
func (c *Challan) ApplyCancellation(note, user string, at time.Time) error {
	if c.IsCancelled() {
		return ErrSlipCancelled
	}
	if note == "" {
		note = "Cancelled"
	}
	c.AppendUpdate(Update{
		Status:  StatusCancelled,
		Comment: note,
		User:    user,
		Date:    at,
	})

	c.Amount.Cancelled = c.Amount.Total
	c.Amount.Total = 0
	c.Amount.Received = 0
	c.Amount.Forfeited = 0
	c.Amount.Extra = 0

	c.Verify = Verify{Status: true, Invoice: true}
	return nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
