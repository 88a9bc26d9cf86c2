package pdf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"time"

	"propodocs/models"
)

const baseStyle = `
    * { box-sizing: border-box; }
    body { margin: 0; padding: 32px; font-family: "Helvetica Neue", Arial, sans-serif; color: #111827; }
    .doc { max-width: 820px; margin: 0 auto; }
    .header { border-bottom: 2px solid var(--primary); padding-bottom: 16px; margin-bottom: 24px; }
    .label { color: #6b7280; text-transform: uppercase; letter-spacing: 0.04em; font-size: 11px; }
    table { width: 100%; border-collapse: collapse; font-size: 14px; }
    th, td { padding: 10px; border-bottom: 1px solid #e5e7eb; text-align: left; }
    th { text-transform: uppercase; font-size: 11px; color: #6b7280; }
    .tiers { display: flex; gap: 12px; }
    .tier { flex: 1; border: 1px solid #e5e7eb; padding: 12px; }
    .tier.highlighted { border-color: var(--primary); }
    .totals { margin-top: 12px; text-align: right; font-size: 16px; }
`

const proposalHTMLTemplate = `<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>{{.Proposal.Title}}</title>
  <style>
    :root { --primary: {{.PrimaryColor}}; }
` + baseStyle + `  </style>
</head>
<body>
  <div class="doc">
    <div class="header">
      <h1>{{.Proposal.Title}}</h1>
      <div class="label">Prepared for</div>
      <div>{{.Proposal.ClientName}}{{if .Proposal.ClientEmail}} &lt;{{.Proposal.ClientEmail}}&gt;{{end}}</div>
    </div>
    {{range .Blocks}}
      {{if eq .Type "heading"}}{{if le .Level 1}}<h2>{{.Text}}</h2>{{else}}<h3>{{.Text}}</h3>{{end}}{{end}}
      {{if eq .Type "paragraph"}}<p>{{.Text}}</p>{{end}}
      {{if eq .Type "list-item"}}<ul><li>{{.Text}}</li></ul>{{end}}
      {{if eq .Type "table"}}<table>{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}</table>{{end}}
    {{end}}
    {{with .Calculator}}
    <h2>{{if .Name}}{{.Name}}{{else}}Pricing{{end}}</h2>
    {{if .Tiers}}
    <div class="tiers">
      {{range .Tiers}}
      <div class="tier{{if .Highlighted}} highlighted{{end}}">
        <strong>{{.Name}}</strong>
        <div>{{formatPrice .MonthlyPrice}} / month</div>
        {{if .Description}}<p>{{.Description}}</p>{{end}}
        <ul>{{range .Features}}<li>{{.}}</li>{{end}}</ul>
      </div>
      {{end}}
    </div>
    {{end}}
    {{if .AddOns}}
    <table>
      <thead><tr><th>Add-on</th><th>Category</th><th>Price</th></tr></thead>
      <tbody>
        {{range .AddOns}}<tr><td>{{.Name}}</td><td>{{.Category}}</td><td>{{formatPrice .Price}}{{if .Recurring}} / month{{end}}</td></tr>{{end}}
      </tbody>
    </table>
    {{end}}
    {{end}}
    {{if .HasAnnualTotal}}<div class="totals">Annual total <strong>{{formatPrice .AnnualTotal}}</strong></div>{{end}}
  </div>
</body>
</html>
`

const invoiceHTMLTemplate = `<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Invoice {{.Invoice.Number}}</title>
  <style>
    :root { --primary: {{.PrimaryColor}}; }
` + baseStyle + `  </style>
</head>
<body>
  <div class="doc">
    <div class="header">
      <div class="label">Invoice</div>
      <h1>{{.Invoice.Number}}</h1>
      <div>{{.Invoice.ClientName}}{{if .Invoice.ClientEmail}} &lt;{{.Invoice.ClientEmail}}&gt;{{end}}</div>
      <div>Status: {{.Invoice.Status}}</div>
      <div>Issued: {{formatDate .Invoice.CreatedAt}}</div>
      {{if .Invoice.DueAt}}<div>Due: {{formatDate .Invoice.DueAt}}</div>{{end}}
    </div>
    <table>
      <thead><tr><th>Description</th><th>Quantity</th><th>Unit price</th><th>Amount</th></tr></thead>
      <tbody>
        {{range .Invoice.Items}}
        <tr>
          <td>{{.Description}}</td>
          <td>{{.Quantity}}</td>
          <td>{{formatMoney .UnitAmount $.Invoice.Currency}}</td>
          <td>{{formatMoney (lineAmount .) $.Invoice.Currency}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
    <div class="totals">Total <strong>{{formatMoney .Invoice.Total .Invoice.Currency}}</strong></div>
    {{if .Invoice.PaymentURL}}<p>Pay online: <a href="{{.Invoice.PaymentURL}}">{{.Invoice.PaymentURL}}</a></p>{{end}}
  </div>
</body>
</html>
`

const defaultColor = "#111827"

var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ProposalView содержит данные шаблона предложения
type ProposalView struct {
	Proposal       models.Proposal
	Blocks         []models.ContentBlock
	Calculator     *models.CalculatorSchema
	AnnualTotal    float64
	HasAnnualTotal bool
	PrimaryColor   string
}

// InvoiceView содержит данные шаблона счёта
type InvoiceView struct {
	Invoice      models.Invoice
	PrimaryColor string
}

// Templates хранит разобранные шаблоны документов
type Templates struct {
	proposal *template.Template
	invoice  *template.Template
}

func NewTemplates() *Templates {
	funcs := template.FuncMap{
		"formatMoney": formatMoney,
		"formatPrice": formatPrice,
		"formatDate":  formatDate,
		"lineAmount":  func(it models.LineItem) int64 { return int64(it.Quantity) * it.UnitAmount },
	}
	return &Templates{
		proposal: template.Must(template.New("proposal").Funcs(funcs).Parse(proposalHTMLTemplate)),
		invoice:  template.Must(template.New("invoice").Funcs(funcs).Parse(invoiceHTMLTemplate)),
	}
}

type proposalTheme struct {
	PrimaryColor string `json:"primaryColor"`
}

// ProposalHTML собирает HTML предложения. Нераспознанные content/calculator_data
// не считаются ошибкой: соответствующий раздел просто не выводится.
func (t *Templates) ProposalHTML(p models.Proposal, annualTotal *float64) (string, error) {
	view := ProposalView{Proposal: p, PrimaryColor: themeColor(p.Theme)}
	if len(p.Content) > 0 {
		_ = json.Unmarshal(p.Content, &view.Blocks)
	}
	if len(p.CalculatorData) > 0 {
		var calc models.CalculatorSchema
		if err := json.Unmarshal(p.CalculatorData, &calc); err == nil && (len(calc.Tiers) > 0 || len(calc.AddOns) > 0) {
			view.Calculator = &calc
		}
	}
	if annualTotal != nil {
		view.AnnualTotal = *annualTotal
		view.HasAnnualTotal = true
	}

	var buf bytes.Buffer
	if err := t.proposal.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render proposal html: %w", err)
	}
	return buf.String(), nil
}

// InvoiceHTML собирает HTML счёта
func (t *Templates) InvoiceHTML(inv models.Invoice) (string, error) {
	var buf bytes.Buffer
	if err := t.invoice.Execute(&buf, InvoiceView{Invoice: inv, PrimaryColor: defaultColor}); err != nil {
		return "", fmt.Errorf("render invoice html: %w", err)
	}
	return buf.String(), nil
}

func themeColor(raw json.RawMessage) string {
	var theme proposalTheme
	if len(raw) == 0 || json.Unmarshal(raw, &theme) != nil {
		return defaultColor
	}
	c := strings.TrimSpace(theme.PrimaryColor)
	if hexColorPattern.MatchString(c) {
		return c
	}
	return defaultColor
}

func formatMoney(amount int64, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "USD"
	}
	return fmt.Sprintf("%s %.2f", currency, float64(amount)/100.0)
}

func formatPrice(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format("2006-01-02")
	case *time.Time:
		if t == nil || t.IsZero() {
			return "-"
		}
		return t.UTC().Format("2006-01-02")
	}
	return "-"
}
