package lifecycle

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GenerateInvoice renders an invoice for a paid order. Generation is a pure,
// repeatable function of the order snapshot: same snapshot, same document,
// and the order itself is never mutated.
func (e *Engine) GenerateInvoice(ctx context.Context, orderID string) (*models.InvoiceDocument, error) {
	ctx, span := util.StartSpan(ctx, "Engine.GenerateInvoice")
	defer span.End()

	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.PaymentStatus != models.PaymentStatusPaid {
		return nil, fmt.Errorf("order %s is %s, invoices attest to paid orders: %w",
			orderID, order.PaymentStatus, ErrPrecondition)
	}

	doc, err := e.renderer.Render(order, e.invoiceNumber(order))
	if err != nil {
		return nil, fmt.Errorf("failed to render invoice: %w", err)
	}

	util.InvoicesGeneratedTotal.Inc()
	return doc, nil
}

// EmailInvoice renders the invoice and hands it to the delivery
// collaborator. Delivery failure surfaces without altering order state.
func (e *Engine) EmailInvoice(ctx context.Context, orderID string) error {
	ctx, span := util.StartSpan(ctx, "Engine.EmailInvoice")
	defer span.End()

	doc, err := e.GenerateInvoice(ctx, orderID)
	if err != nil {
		return err
	}

	if e.delivery == nil {
		return fmt.Errorf("no delivery collaborator configured: %w", ErrDelivery)
	}

	if err := e.delivery.Send(ctx, doc, doc.CustomerEmail); err != nil {
		util.InvoiceDeliveryFailedTotal.Inc()
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	util.InvoicesEmailedTotal.Inc()
	e.publishInvoiceEmailed(ctx, doc)
	e.logger.Info("Invoice emailed",
		zap.String("order_id", orderID),
		zap.String("invoice", doc.Number),
		zap.String("recipient", doc.CustomerEmail))
	return nil
}

// invoiceNumber derives a stable number from the order id; no counters, so
// regeneration always yields the same number.
func (e *Engine) invoiceNumber(order *models.Order) string {
	id := strings.ReplaceAll(order.ID, "-", "")
	if len(id) > 12 {
		id = id[:12]
	}
	return fmt.Sprintf("%s-%s", e.invPrefix, strings.ToUpper(id))
}

const invoiceTextTemplate = `Invoice {{.Number}}
Order: {{.OrderID}}
Issued: {{.IssuedAt.Format "2006-01-02"}}
Billed to: {{.CustomerName}} <{{.CustomerEmail}}>

{{range .Lines}}{{.Description}}  x{{.Quantity}}  {{money .UnitPrice}}  {{money .LineTotal}}
{{end}}
Total: {{money .Total}}
`

const invoiceHTMLTemplate = `<h1>Invoice {{.Number}}</h1>
<p>Order {{.OrderID}}, issued {{.IssuedAt.Format "2006-01-02"}}</p>
<p>Billed to {{.CustomerName}} ({{.CustomerEmail}})</p>
<table>
{{range .Lines}}<tr><td>{{.Description}}</td><td>{{.Quantity}}</td><td>{{money .UnitPrice}}</td><td>{{money .LineTotal}}</td></tr>
{{end}}</table>
<p><strong>Total: {{money .Total}}</strong></p>
`

// TemplateRenderer is the default InvoiceRenderer, backed by text templates.
type TemplateRenderer struct {
	text *template.Template
	html *template.Template
}

// NewTemplateRenderer parses the built-in invoice templates.
func NewTemplateRenderer() *TemplateRenderer {
	funcs := template.FuncMap{
		"money": func(minor int64) string {
			return fmt.Sprintf("%d.%02d", minor/100, minor%100)
		},
	}

	return &TemplateRenderer{
		text: template.Must(template.New("invoice-text").Funcs(funcs).Parse(invoiceTextTemplate)),
		html: template.Must(template.New("invoice-html").Funcs(funcs).Parse(invoiceHTMLTemplate)),
	}
}

// Render builds the invoice document from the order snapshot.
func (r *TemplateRenderer) Render(order *models.Order, number string) (*models.InvoiceDocument, error) {
	issued := order.CreatedAt
	if order.PaidAt != nil {
		issued = *order.PaidAt
	}

	description := order.ProductName
	if order.OptionName != "" {
		description = fmt.Sprintf("%s (%s)", order.ProductName, order.OptionName)
	}

	doc := &models.InvoiceDocument{
		Number:        number,
		OrderID:       order.ID,
		IssuedAt:      issued,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		Lines: []models.InvoiceLine{
			{
				Description: description,
				Quantity:    order.Quantity,
				UnitPrice:   order.UnitPrice,
				LineTotal:   order.TotalPrice,
			},
		},
		Total: order.TotalPrice,
	}

	var textBuf, htmlBuf bytes.Buffer
	if err := r.text.Execute(&textBuf, doc); err != nil {
		return nil, err
	}
	if err := r.html.Execute(&htmlBuf, doc); err != nil {
		return nil, err
	}
	doc.Text = textBuf.String()
	doc.HTML = htmlBuf.String()
	return doc, nil
}

func (e *Engine) publishInvoiceEmailed(ctx context.Context, doc *models.InvoiceDocument) {
	if e.events == nil {
		return
	}

	event := &models.InvoiceEmailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeInvoiceEmailed,
			Timestamp: time.Now(),
		},
		OrderID:       doc.OrderID,
		InvoiceNumber: doc.Number,
		Recipient:     doc.CustomerEmail,
	}

	if err := e.events.PublishInvoiceEmailed(ctx, event); err != nil {
		e.logger.Error("Failed to publish InvoiceEmailed event",
			zap.String("order_id", doc.OrderID), zap.Error(err))
	}
}
