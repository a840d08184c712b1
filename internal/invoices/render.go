package invoices

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/metalyard/metalyard/internal/quotes"
)

//go:embed templates/invoice.html
var templateFS embed.FS

// PDFClient exposes the subset of the report client used by the renderer.
type PDFClient interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Document is everything printed on an invoice.
type Document struct {
	Invoice Detail
	Lines   []quotes.LineItem
}

// Renderer turns invoices into PDF documents via html/template and Gotenberg.
type Renderer struct {
	tpl    *template.Template
	client PDFClient
}

// NewRenderer parses the invoice template and wires the PDF client.
func NewRenderer(client PDFClient) (*Renderer, error) {
	if client == nil {
		return nil, fmt.Errorf("invoices renderer: pdf client required")
	}
	printer := message.NewPrinter(language.AmericanEnglish)
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006")
		},
		"formatMoney": func(d decimal.Decimal) string {
			return printer.Sprintf("%v", number.Decimal(d.InexactFloat64(), number.Scale(2)))
		},
		"formatQuantity": func(q float64) string {
			return printer.Sprintf("%v", number.Decimal(q, number.MaxFractionDigits(3)))
		},
		"formatPercent": func(d decimal.Decimal) string {
			return d.String() + "%"
		},
	}
	tpl, err := template.New("invoice.html").Funcs(funcMap).ParseFS(templateFS, "templates/invoice.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{tpl: tpl, client: client}, nil
}

// HTML executes the template without converting it.
func (r *Renderer) HTML(doc Document) (string, error) {
	buf := &bytes.Buffer{}
	if err := r.tpl.Execute(buf, doc); err != nil {
		return "", fmt.Errorf("invoices: render template: %w", err)
	}
	return buf.String(), nil
}

// Render executes the template and converts the HTML to PDF bytes.
func (r *Renderer) Render(ctx context.Context, doc Document) ([]byte, error) {
	html, err := r.HTML(doc)
	if err != nil {
		return nil, err
	}
	return r.client.RenderHTML(ctx, html)
}
