package view

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/nimbus-billing/nimbus-billing/web"
)

// Engine renders the embedded HTML documents used for PDF export.
type Engine struct {
	templates *template.Template
}

// NewEngine parses document templates at build-time. Money amounts are
// grouped the Indian way (1,48,990.00) to match the printed invoices the
// business already sends out.
func NewEngine() (*Engine, error) {
	printer := message.NewPrinter(language.MustParse("en-IN"))
	funcMap := template.FuncMap{
		"add": func(a, b int) int { return a + b },
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006")
		},
		"formatMoney": func(d decimal.Decimal) string {
			value, _ := d.Float64()
			return printer.Sprintf("%v", number.Decimal(value,
				number.MinFractionDigits(2), number.MaxFractionDigits(2)))
		},
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "templates/documents/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// RenderDocument executes a named document template into a string ready
// for the PDF converter.
func (e *Engine) RenderDocument(name string, data any) (string, error) {
	if e == nil {
		return "", fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
