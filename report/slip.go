package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/slipdesk/slipdesk/internal/challan"
)

// slipTemplate is the printable service slip. The QR link points at the
// public slip page so field staff can pull the live record.
const slipTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Service Slip {{.Number}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 13px; margin: 24px; }
h1 { font-size: 18px; border-bottom: 2px solid #222; padding-bottom: 6px; }
table { border-collapse: collapse; width: 100%; margin-top: 12px; }
td, th { border: 1px solid #999; padding: 6px 8px; text-align: left; }
.meta { color: #555; margin-top: 4px; }
.services li { margin-bottom: 2px; }
</style>
</head>
<body>
<h1>Service Slip {{.Number}}</h1>
<p class="meta">Service date: {{.ServiceDate}} &middot; Payment: {{.PaymentType}}</p>
<table>
<tr><th>Client</th><td>{{.ClientName}}</td></tr>
<tr><th>Address</th><td>{{.Address}}</td></tr>
<tr><th>Contact</th><td>{{.Contact}}</td></tr>
{{if .Area}}<tr><th>Area</th><td>{{.Area}}</td></tr>{{end}}
{{if .WorkLocation}}<tr><th>Work location</th><td>{{.WorkLocation}}</td></tr>{{end}}
<tr><th>Amount</th><td>{{printf "%.2f" .Amount}}</td></tr>
</table>
{{if .Services}}
<h1>Services</h1>
<ul class="services">
{{range .Services}}<li>{{.Name}}{{if .Detail}} &mdash; {{.Detail}}{{end}}</li>{{end}}
</ul>
{{end}}
{{if .Link}}<p class="meta">Track this job: {{.Link}}</p>{{end}}
</body>
</html>`

// SlipRenderer turns a challan into a PDF slip via Gotenberg.
type SlipRenderer struct {
	client *Client
	tmpl   *template.Template
}

// NewSlipRenderer constructs a SlipRenderer.
func NewSlipRenderer(client *Client) *SlipRenderer {
	return &SlipRenderer{
		client: client,
		tmpl:   template.Must(template.New("slip").Parse(slipTemplate)),
	}
}

type slipPage struct {
	Number       string
	ServiceDate  string
	PaymentType  string
	ClientName   string
	Address      string
	Contact      string
	Area         string
	WorkLocation string
	Amount       float64
	Services     []challan.ServiceLine
	Link         string
}

// RenderSlip renders the printable document for a slip.
func (r *SlipRenderer) RenderSlip(ctx context.Context, ch *challan.Challan, link string) ([]byte, error) {
	html, err := r.buildHTML(ch, link)
	if err != nil {
		return nil, err
	}
	return r.client.RenderHTML(ctx, html)
}

func (r *SlipRenderer) buildHTML(ch *challan.Challan, link string) (string, error) {
	page := slipPage{
		Number:       ch.Number,
		ServiceDate:  ch.ServiceDate.Format("02 Jan 2006"),
		PaymentType:  string(ch.PaymentType),
		ClientName:   clientName(ch.ShipTo),
		Address:      clientAddress(ch.ShipTo),
		Contact:      clientContact(ch.ShipTo),
		Area:         ch.Area,
		WorkLocation: ch.WorkLocation,
		Amount:       ch.Amount.Total,
		Services:     ch.Services,
		Link:         link,
	}
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, page); err != nil {
		return "", fmt.Errorf("report: slip template: %w", err)
	}
	return buf.String(), nil
}

func clientName(s challan.ShipToDetails) string {
	if s.Prefix != "" {
		return s.Prefix + " " + s.Name
	}
	return s.Name
}

func clientAddress(s challan.ShipToDetails) string {
	parts := []string{s.Address, s.Road, s.Location, s.Landmark, s.City, s.Pincode}
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

func clientContact(s challan.ShipToDetails) string {
	var kept []string
	for _, p := range []string{s.ContactName, s.ContactNo, s.ContactEmail} {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " / ")
}
