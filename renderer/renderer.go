// Package renderer formats schedules, series and sync reports as markdown.
package renderer

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"

	"github.com/Rhymond/go-money"
	"github.com/etnz/treasury/tracker"
	"github.com/shopspring/decimal"
)

//go:embed templates/*.md
var templateFS embed.FS

// templates is the folder of markdown templates.
var templates, _ = fs.Sub(templateFS, "templates")

var funcs = template.FuncMap{
	"money":   Money,
	"percent": Percent,
	"rates":   Rates,
	"amounts": Amounts,
	"sub":     func(a, b decimal.Decimal) decimal.Decimal { return a.Sub(b) },
}

// Money formats an amount in currency, rounded to the currency's minor unit.
func Money(value decimal.Decimal, currency string) string {
	// the constructor never returns a nil currency, even for unknown codes.
	cur := money.New(0, currency).Currency()
	minor := value.Round(int32(cur.Fraction)).Shift(int32(cur.Fraction))
	return cur.Formatter().Format(minor.IntPart())
}

// Percent formats a rate fraction as a percentage.
func Percent(rate decimal.Decimal) string {
	return rate.Shift(2).StringFixed(2) + "%"
}

// Rates formats per period rates, "-" stands for an unpublished rate.
func Rates(rates []decimal.NullDecimal) string {
	return join(rates, Percent)
}

// Amounts formats per period interest amounts, "-" stands for an unpublished amount.
func Amounts(amounts []decimal.NullDecimal) string {
	return join(amounts, func(d decimal.Decimal) string { return d.StringFixed(2) })
}

func join(values []decimal.NullDecimal, format func(decimal.Decimal) string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if !v.Valid {
			parts = append(parts, "-")
			continue
		}
		parts = append(parts, format(v.Decimal))
	}
	return strings.Join(parts, " / ")
}

// RenderSchedule renders the price timeline of a bond.
func RenderSchedule(s *Schedule) string {
	partials := map[string]string{
		"schedule_title":  "schedule_title.md",
		"schedule_points": "schedule_points.md",
	}
	return renderTemplate("schedule", "schedule.md", partials, s)
}

// RenderSeries renders the series published for a bond type.
func RenderSeries(s *SeriesList) string {
	partials := map[string]string{
		"series_layout": "series_layout.md",
	}
	return renderTemplate("series", "series.md", partials, s)
}

// RenderReport renders the outcome of a sync pass.
func RenderReport(r tracker.Report) string {
	partials := map[string]string{
		"report_symbols": "report_symbols.md",
	}
	return renderTemplate("report", "report.md", partials, r)
}

// renderTemplate executes mainFile with data, partials are named templates
// available to it. Errors are rendered in place of the document.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any) string {
	mainContent, err := fs.ReadFile(templates, mainFile)
	if err != nil {
		return fmt.Sprintf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Funcs(funcs).Parse(string(mainContent))
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		content, err := fs.ReadFile(templates, file)
		if err != nil {
			return fmt.Sprintf("error reading partial template %q: %v", file, err)
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Sprintf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, templateName, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", templateName, err)
	}
	return b.String()
}
