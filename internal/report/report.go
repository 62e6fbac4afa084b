// Package report renders validation results for the operator.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Aman-CERP/servicereport/internal/check"
	"github.com/Aman-CERP/servicereport/internal/plugin"
)

// Column widths of the text report.
const (
	descWidth   = 52
	checkWidth  = 50
	statusWidth = 20
)

// Options controls the text report.
type Options struct {
	// Verbose lists every check from 1 and payload details from 2.
	Verbose int
	// Repair lists every check with its remediation note.
	Repair bool
	Styles Styles
}

// Printer writes reports to one output.
type Printer struct {
	w    io.Writer
	opts Options
}

// New returns a Printer writing to w.
func New(w io.Writer, opts Options) *Printer {
	return &Printer{w: w, opts: opts}
}

func (p *Printer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format, args...)
}

func (p *Printer) status(s check.Status) string {
	switch s {
	case check.StatusPass:
		return p.opts.Styles.Pass.Render(s.String())
	case check.StatusFail:
		return p.opts.Styles.Fail.Render(s.String())
	default:
		return p.opts.Styles.Unknown.Render(s.String())
	}
}

// padStatus renders s padded to width, measured without styling.
func (p *Printer) padStatus(s check.Status, width int) string {
	pad := width - len(s.String())
	if pad < 1 {
		pad = 1
	}
	return p.status(s) + strings.Repeat(" ", pad)
}

// Unknown warns about selected names that matched no applicable plugin.
func (p *Printer) Unknown(names []string) {
	for _, name := range names {
		p.printf("Warning: %s plugin is either invalid or not applicable to this system.\n\n", name)
	}
}

// Results prints one line per plugin and, when verbose or repairing,
// one line per check.
func (p *Printer) Results(results *plugin.Results) {
	for _, g := range results.Groups() {
		p.printf("%-*s%s\n\n", descWidth, g.Description(), p.status(check.FromBool(g.Passed())))

		if p.opts.Verbose < 1 && !p.opts.Repair {
			continue
		}
		for _, inst := range g.Instances {
			p.instance(inst)
		}
		p.printf("\n\n")
	}
}

func (p *Printer) instance(inst *plugin.Instance) {
	if err := inst.Err(); err != nil {
		p.printf("  %s\n", p.opts.Styles.Fail.Render("setup failed: "+err.Error()))
	}
	for _, rec := range inst.Records() {
		if rec.Note == check.NoteNone {
			p.printf("  %-*s%s\n", checkWidth, rec.Name, p.status(rec.Status))
		} else {
			p.printf("  %-*s%s%s\n", checkWidth, rec.Name, p.padStatus(rec.Status, statusWidth),
				p.opts.Styles.Note.Render(string(rec.Note)))
		}
		if p.opts.Verbose >= 2 {
			for _, line := range Details(rec.Payload) {
				p.printf("      %s\n", p.opts.Styles.Detail.Render(line))
			}
		}
	}
	if p.opts.Verbose >= 2 {
		for _, f := range inst.Failures() {
			p.printf("  %s\n", p.opts.Styles.Unknown.Render(fmt.Sprintf("%s not checked: %v", f.Op, f.Err)))
		}
	}
	for _, rec := range inst.Records() {
		if rec.Message != "" {
			p.printf("%s\n", rec.Message)
		}
	}
}

// Details renders a payload as indented detail lines.
func Details(payload check.Payload) []string {
	switch pl := payload.(type) {
	case check.Service:
		return []string{fmt.Sprintf("%s: enabled %s, active %s", pl.Unit, pl.Enabled, pl.Active)}
	case check.Packages:
		lines := make([]string, 0, len(pl.Packages))
		for _, pkg := range pl.Packages {
			lines = append(lines, fmt.Sprintf("%s: installed %s", pkg.Name, pkg.Installed))
		}
		return lines
	case check.File:
		line := pl.Path
		if pl.Expected != "" || pl.Observed != "" {
			line += fmt.Sprintf(": expected %s, observed %s", orNone(pl.Expected), orNone(pl.Observed))
		}
		return []string{line}
	case check.Attributes:
		lines := []string{pl.Path}
		for _, a := range pl.Attrs {
			line := fmt.Sprintf("  %s = %s %s", a.Key, orNone(a.Current), a.Status)
			if !a.Status.Passed() && a.Possible != "" {
				line += " (expected " + a.Possible + ")"
			}
			lines = append(lines, line)
		}
		return lines
	case check.Files:
		lines := make([]string, 0, len(pl.Files))
		for _, f := range pl.Files {
			lines = append(lines, fmt.Sprintf("%s %s", f.Path, check.FromBool(f.OK)))
		}
		return lines
	case check.ConfigList:
		var lines []string
		if pl.Path != "" {
			lines = append(lines, pl.Path)
		}
		for _, it := range pl.Items {
			state := "present"
			if !it.Present {
				state = "missing"
			}
			lines = append(lines, fmt.Sprintf("  %s %s", it.Value, state))
		}
		return lines
	default:
		return nil
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// Document is the JSON form of a run.
type Document struct {
	Version string       `json:"version"`
	Repair  bool         `json:"repair"`
	Passed  bool         `json:"passed"`
	Plugins []PluginJSON `json:"plugins"`
	Unknown []string     `json:"unknown,omitempty"`
}

// PluginJSON is one plugin group in a Document.
type PluginJSON struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Status      string      `json:"status"`
	Checks      []CheckJSON `json:"checks"`
	Errors      []string    `json:"errors,omitempty"`
}

// CheckJSON is one record in a Document.
type CheckJSON struct {
	Name    string        `json:"name"`
	Status  check.Status  `json:"status"`
	Note    check.Note    `json:"note,omitempty"`
	Message string        `json:"message,omitempty"`
	Kind    check.Kind    `json:"kind,omitempty"`
	Payload check.Payload `json:"payload,omitempty"`
}

// NewDocument converts results into a Document.
func NewDocument(results *plugin.Results, version string, repaired bool) Document {
	doc := Document{
		Version: version,
		Repair:  repaired,
		Passed:  results.Passed(),
		Plugins: []PluginJSON{},
		Unknown: results.Unknown,
	}
	for _, g := range results.Groups() {
		pj := PluginJSON{
			Name:        g.Name,
			Description: g.Description(),
			Status:      check.FromBool(g.Passed()).String(),
			Checks:      []CheckJSON{},
		}
		for _, inst := range g.Instances {
			if err := inst.Err(); err != nil {
				pj.Errors = append(pj.Errors, err.Error())
			}
			for _, f := range inst.Failures() {
				pj.Errors = append(pj.Errors, f.Op+": "+f.Err.Error())
			}
			for _, rec := range inst.Records() {
				cj := CheckJSON{
					Name:    rec.Name,
					Status:  rec.Status,
					Note:    rec.Note,
					Message: rec.Message,
					Payload: rec.Payload,
				}
				if rec.Payload != nil {
					cj.Kind = rec.Payload.Kind()
				}
				pj.Checks = append(pj.Checks, cj)
			}
		}
		doc.Plugins = append(doc.Plugins, pj)
	}
	return doc
}

// JSON writes results as an indented JSON document.
func (p *Printer) JSON(results *plugin.Results, version string, repaired bool) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewDocument(results, version, repaired))
}
