package receipt

import (
	"bytes"
	"fmt"
	"html/template"
	"net/mail"

	"github.com/kiwari-pos/terminal/internal/backend"
)

// EmailMessage is a formatted receipt ready for a mail sender.
type EmailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

var emailTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; max-width: 480px;">
{{if .StoreName}}<h2>{{.StoreName}}</h2>{{end}}
<p>Receipt {{.ID}}<br>Order #{{.OrderID}}<br>{{.IssuedAt.Format "2006-01-02 15:04"}}{{if .CustomerLabel}}<br>Customer: {{.CustomerLabel}}{{end}}</p>
<table width="100%" cellpadding="4">
{{range .Lines}}<tr><td>{{.Name}} &times; {{.Quantity}}</td><td align="right">{{$.Money .Subtotal}}</td></tr>
{{end}}<tr><td colspan="2"><hr></td></tr>
<tr><td>Subtotal</td><td align="right">{{.Money .Subtotal}}</td></tr>
{{if .HasDiscount}}<tr><td>Discount ({{.DiscountPercent}}%)</td><td align="right">-{{.Money .DiscountAmount}}</td></tr>
{{end}}<tr><td>Tax ({{.TaxPercent}}%)</td><td align="right">{{.Money .TaxAmount}}</td></tr>
<tr><td><strong>Total</strong></td><td align="right"><strong>{{.Money .Total}}</strong></td></tr>
</table>
<p>Payment: {{.PaymentMethod}} ({{.PaymentStatus}})</p>
<p>{{.Closing}}</p>
</body>
</html>
`))

// RenderForEmail formats the receipt as an email to the given address.
func (r *Renderer) RenderForEmail(to string, order *backend.Order, payment *backend.Payment) (*EmailMessage, error) {
	if to == "" {
		return nil, &MissingDataError{Field: "email recipient"}
	}
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return nil, fmt.Errorf("receipt: invalid email recipient: %w", err)
	}

	rc, err := r.Render(order, payment)
	if err != nil {
		return nil, err
	}

	var html bytes.Buffer
	if err := emailTemplate.Execute(&html, rc); err != nil {
		return nil, fmt.Errorf("receipt: render html: %w", err)
	}

	subject := fmt.Sprintf("Your receipt for order #%d", rc.OrderID)
	if rc.StoreName != "" {
		subject += " - " + rc.StoreName
	}

	return &EmailMessage{
		To:      addr.Address,
		Subject: subject,
		HTML:    html.String(),
		Text:    rc.Text(),
	}, nil
}
