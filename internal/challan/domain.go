// Package challan implements the service-slip state machine: the amount
// ledger, the append-only status timeline and the verify/invoice/cancel
// transitions that drive them.
package challan

import (
	"time"

	"github.com/google/uuid"
)

// PaymentType is the variant tag that selects the reconciliation branch.
type PaymentType string

const (
	PaymentCashToCollect PaymentType = "Cash To Collect"
	PaymentUPI           PaymentType = "UPI Payment"
	PaymentBillAfterJob  PaymentType = "Bill After Job"
	PaymentNTB           PaymentType = "NTB"
	PaymentInGuarantee   PaymentType = "In Guarantee"
	PaymentContract      PaymentType = "Contract"
	PaymentInvoiced      PaymentType = "Invoiced"
)

// Valid reports whether the payment type is a known variant.
func (p PaymentType) Valid() bool {
	switch p {
	case PaymentCashToCollect, PaymentUPI, PaymentBillAfterJob, PaymentNTB,
		PaymentInGuarantee, PaymentContract, PaymentInvoiced:
		return true
	}
	return false
}

// AutoVerified reports whether slips of this type are created already
// verified and invoiced. NTB and In Guarantee jobs carry no billable amount.
func (p PaymentType) AutoVerified() bool {
	return p == PaymentNTB || p == PaymentInGuarantee
}

// Status is a field status recorded on the timeline.
type Status string

const (
	StatusOpen               Status = "Open"
	StatusCompleted          Status = "Completed"
	StatusPartiallyCompleted Status = "Partially Completed"
	StatusNotCompleted       Status = "Not Completed"
	StatusPostponed          Status = "Postponed"
	StatusCancelled          Status = "Cancelled"
)

// Statuses is the fixed ordered set surfaced on the dashboard.
var Statuses = []Status{
	StatusOpen,
	StatusCompleted,
	StatusPartiallyCompleted,
	StatusNotCompleted,
	StatusPostponed,
	StatusCancelled,
}

// UpdateType distinguishes first-pass work from rework after completion.
type UpdateType string

const (
	UpdateRegular   UpdateType = "Regular"
	UpdateComplaint UpdateType = "Complaint"
)

// BillCompany values accepted during Bill After Job verification.
const (
	BillCompanyNTB      = "NTB"
	BillCompanyCash     = "Cash"
	BillCompanyContract = "Contract"
)

// Amount is the per-slip financial ledger. Forfeited and Extra are mutually
// exclusive: after any reconciliation at most one of them is positive.
type Amount struct {
	Total     float64 `json:"total"`
	Received  float64 `json:"received"`
	Forfeited float64 `json:"forfeited"`
	Extra     float64 `json:"extra"`
	Cancelled float64 `json:"cancelled"`
}

// Pending returns the outstanding amount, clamped at zero.
func (a Amount) Pending() float64 {
	pending := a.Total - a.Received - a.Forfeited + a.Extra - a.Cancelled
	if pending < 0 {
		return 0
	}
	return pending
}

// Verify is the two-stage completion flag; Status marks payment verification
// and Invoice marks billing finalisation.
type Verify struct {
	Status  bool `json:"status"`
	Invoice bool `json:"invoice"`
}

// Update is one timeline entry. Entries are append-only and never reordered.
type Update struct {
	Seq     int        `json:"seq"`
	Status  Status     `json:"status"`
	User    string     `json:"user"`
	Date    time.Time  `json:"date"`
	Comment string     `json:"comment,omitempty"`
	JobDate *time.Time `json:"job_date,omitempty"`
	Images  []string   `json:"images,omitempty"`
	Type    UpdateType `json:"type"`
}

// VerificationNote records who signed off a payment step.
type VerificationNote struct {
	Seq  int       `json:"seq"`
	Note string    `json:"note"`
	User string    `json:"user"`
	Date time.Time `json:"date"`
}

// ShipToDetails identifies the client and the delivery address.
type ShipToDetails struct {
	Prefix       string `json:"prefix,omitempty"`
	Name         string `json:"name"`
	Address      string `json:"address,omitempty"`
	Road         string `json:"road,omitempty"`
	Location     string `json:"location,omitempty"`
	Landmark     string `json:"landmark,omitempty"`
	City         string `json:"city,omitempty"`
	Pincode      string `json:"pincode,omitempty"`
	ContactName  string `json:"contact_name,omitempty"`
	ContactNo    string `json:"contact_no,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
}

// ServiceLine is one service item booked on the slip.
type ServiceLine struct {
	Name   string `json:"name"`
	Detail string `json:"detail,omitempty"`
}

// Challan is the central entity: a service work order tracked through
// completion and payment.
type Challan struct {
	ID           uuid.UUID          `json:"id"`
	Number       string             `json:"number"`
	PaymentType  PaymentType        `json:"payment_type"`
	Amount       Amount             `json:"amount"`
	Updates      []Update           `json:"updates"`
	Verify       Verify             `json:"verify"`
	Notes        []VerificationNote `json:"verification_notes,omitempty"`
	ShipTo       ShipToDetails      `json:"ship_to"`
	Services     []ServiceLine      `json:"services,omitempty"`
	GST          string             `json:"gst,omitempty"`
	BillNo       string             `json:"bill_no,omitempty"`
	BillCompany  string             `json:"bill_company,omitempty"`
	FileURL      string             `json:"file_url,omitempty"`
	Area         string             `json:"area,omitempty"`
	WorkLocation string             `json:"work_location,omitempty"`
	ServiceDate  time.Time          `json:"service_date"`
	CreatedBy    string             `json:"created_by"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// CurrentStatus returns the status of the last timeline entry. The second
// return value is false for an empty timeline, which status-dependent
// callers must treat as a precondition violation.
func (c *Challan) CurrentStatus() (Status, bool) {
	if len(c.Updates) == 0 {
		return "", false
	}
	return c.Updates[len(c.Updates)-1].Status, true
}

// IsCancelled reports whether the slip reached the terminal Cancelled state.
func (c *Challan) IsCancelled() bool {
	status, ok := c.CurrentStatus()
	return ok && status == StatusCancelled
}

// AppendUpdate adds a timeline entry, typing it Complaint when the previous
// entry was Completed. Prior entries are never touched.
func (c *Challan) AppendUpdate(entry Update) {
	entry.Type = UpdateRegular
	if status, ok := c.CurrentStatus(); ok && status == StatusCompleted {
		entry.Type = UpdateComplaint
	}
	entry.Seq = len(c.Updates) + 1
	c.Updates = append(c.Updates, entry)
}

// AppendNote records a verification note.
func (c *Challan) AppendNote(note, user string, at time.Time) {
	c.Notes = append(c.Notes, VerificationNote{
		Seq:  len(c.Notes) + 1,
		Note: note,
		User: user,
		Date: at,
	})
}
