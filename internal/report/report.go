/*
Copyright © 2025 Upkeep HQ <info@upkeephq.dev>
*/
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aymerick/raymond"
	runewidth "github.com/mattn/go-runewidth"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/upkeephq/upkeep/internal/assets"
	"github.com/upkeephq/upkeep/pkg/reconcile"
)

// OutputFormat represents the format for upgrade report output
type OutputFormat string

const (
	FormatMarkdown OutputFormat = "markdown"
	FormatJSON     OutputFormat = "json"
	// Concise is a short, colorized summary ideal for terminal output
	FormatConcise OutputFormat = "concise"
)

const markdownTemplate = "report/upgrade-report.md.hbs"

// Report carries the outcome of one reconciliation run together with the
// metadata needed to present it.
type Report struct {
	PackageName string            `json:"packageName"`
	FromVersion string            `json:"fromVersion,omitempty"`
	ToVersion   string            `json:"toVersion"`
	DryRun      bool              `json:"dryRun,omitempty"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Result      *reconcile.Result `json:"result"`
}

// section groups one outcome's paths under its lowercase name.
type section struct {
	name  string
	paths []string
}

// sections returns the outcome groups in presentation order.
func (r *Report) sections() []section {
	res := r.Result
	if res == nil {
		res = &reconcile.Result{}
	}
	return []section{
		{"replaced", res.Replaced},
		{"merged", res.Merged},
		{"added", res.Added},
		{"skipped", res.Skipped},
	}
}

func (r *Report) errors() []string {
	if r.Result == nil {
		return nil
	}
	return r.Result.Errors
}

// Formatter handles formatting upgrade reports
type Formatter struct {
	format OutputFormat
}

// NewFormatter creates a new report formatter
func NewFormatter(format OutputFormat) *Formatter {
	return &Formatter{format: format}
}

// Format formats an upgrade report according to the configured format
func (f *Formatter) Format(r *Report) (string, error) {
	switch f.format {
	case FormatConcise:
		return f.formatConcise(r), nil
	case FormatMarkdown:
		return f.formatMarkdown(r)
	case FormatJSON:
		return f.formatJSON(r)
	default:
		return "", fmt.Errorf("unsupported format: %s", f.format)
	}
}

// Write renders the report and writes it to w.
func (f *Formatter) Write(w io.Writer, r *Report) error {
	output, err := f.Format(r)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(output, "\n") {
		output += "\n"
	}
	_, err = io.WriteString(w, output)
	return err
}

// formatConcise prints a short, colorized summary suitable for terminals
func (f *Formatter) formatConcise(r *Report) string {
	color := func(code string, s string) string {
		if os.Getenv("NO_COLOR") != "" {
			return s
		}
		return "\x1b[" + code + "m" + s + "\x1b[0m"
	}
	bold := func(s string) string { return color("1", s) }
	green := func(s string) string { return color("32", s) }
	yellow := func(s string) string { return color("33", s) }
	red := func(s string) string { return color("31", s) }

	var sb strings.Builder

	header := fmt.Sprintf("%s %s -> %s", r.PackageName, orNone(r.FromVersion), r.ToVersion)
	if r.DryRun {
		header += " (dry run)"
	}
	sb.WriteString(bold(header) + "\n")

	title := cases.Title(language.English)
	secs := r.sections()
	labels := make([]string, len(secs))
	labelWidth := 0
	for i, s := range secs {
		labels[i] = title.String(s.name)
		if w := runewidth.StringWidth(labels[i]); w > labelWidth {
			labelWidth = w
		}
	}

	for i, s := range secs {
		pad := strings.Repeat(" ", labelWidth-runewidth.StringWidth(labels[i]))
		fmt.Fprintf(&sb, " - %s:%s %d\n", labels[i], pad, len(s.paths))

		const maxShow = 5
		shown := s.paths
		if len(shown) > maxShow {
			shown = shown[:maxShow]
		}
		if len(shown) > 0 {
			more := ""
			if len(s.paths) > len(shown) {
				more = fmt.Sprintf(" (+%d more)", len(s.paths)-len(shown))
			}
			fmt.Fprintf(&sb, "   files: %s%s\n", strings.Join(shown, ", "), more)
		}
	}

	errs := r.errors()
	for _, e := range errs {
		fmt.Fprintf(&sb, " %s %s\n", red("!"), e)
	}

	switch {
	case len(errs) > 0:
		sb.WriteString(yellow("⚠️ Completed with errors - see details above"))
	case r.DryRun:
		sb.WriteString(yellow("Dry run: no files were written"))
	default:
		sb.WriteString(green("✅ Upgrade complete"))
	}

	return sb.String()
}

// formatMarkdown renders the embedded Handlebars report template
func (f *Formatter) formatMarkdown(r *Report) (string, error) {
	tpl, ok := assets.GetTemplate(markdownTemplate)
	if !ok {
		return "", fmt.Errorf("embedded template %s not found", markdownTemplate)
	}
	return renderHandlebars(string(tpl), f.templateData(r))
}

// templateData builds the render input. Raymond resolves template paths
// against map keys, so these must stay in sync with upgrade-report.md.hbs.
func (f *Formatter) templateData(r *Report) map[string]interface{} {
	title := cases.Title(language.English)

	sections := make([]map[string]interface{}, 0, 4)
	for _, s := range r.sections() {
		sections = append(sections, map[string]interface{}{
			"title": title.String(s.name),
			"count": len(s.paths),
			"paths": s.paths,
		})
	}

	return map[string]interface{}{
		"package": map[string]interface{}{
			"name": r.PackageName,
			"from": orNone(r.FromVersion),
			"to":   r.ToVersion,
		},
		"generatedAt": r.GeneratedAt.UTC().Format(time.RFC3339),
		"dryRun":      r.DryRun,
		"sections":    sections,
		"errors":      r.errors(),
	}
}

func (f *Formatter) formatJSON(r *Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// renderHandlebars renders a Handlebars template string
func renderHandlebars(tpl string, data interface{}) (string, error) {
	out, err := raymond.Render(tpl, data)
	if err != nil {
		return "", fmt.Errorf("failed to render report template: %w", err)
	}
	return out, nil
}

// orNone substitutes a placeholder for a missing version, which happens on
// first installs where no receipt exists yet.
func orNone(version string) string {
	if version == "" {
		return "none"
	}
	return version
}
