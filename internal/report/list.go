package report

import (
	"encoding/json"
	"time"

	"github.com/Aman-CERP/servicereport/internal/check"
	"github.com/Aman-CERP/servicereport/internal/history"
	"github.com/Aman-CERP/servicereport/internal/validate"
)

// List prints the applicable plugins with their tags.
func (p *Printer) List(plugins []validate.Listing) {
	p.printf("The following plugins are applicable:\n\n")
	p.printf("   %-20s%-20s%s\n\n", "Name", "Tags", "Description")
	for _, l := range plugins {
		p.printf("   %-20s%-20s%s\n", l.Name, l.Tag, l.Description)
	}
	p.printf("\nTag Info: \n")
	p.printf("%s: Mandatory plugin (runs by default)\n", validate.TagMandatory)
	p.printf("%s: Optional plugin (use -o option to enable)\n", validate.TagOptional)
}

// ListJSON writes the applicable plugins as JSON.
func (p *Printer) ListJSON(plugins []validate.Listing) error {
	if plugins == nil {
		plugins = []validate.Listing{}
	}
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(plugins)
}

// History prints stored runs, newest first. Failing checks are listed
// under each run.
func (p *Printer) History(runs []history.Run) {
	if len(runs) == 0 {
		p.printf("No runs recorded.\n")
		return
	}
	for _, r := range runs {
		mode := "validate"
		if r.Repair {
			mode = "repair"
		}
		p.printf("%s  %-8s %-10s%s  %s\n",
			r.Started.Local().Format(time.DateTime),
			mode,
			r.Version,
			p.padStatus(check.FromBool(r.Passed), 8),
			p.opts.Styles.Detail.Render(r.ID))
		for _, c := range r.Failed() {
			line := "    " + c.Plugin + ": " + c.Name + " " + c.Status
			if c.Note != "" {
				line += " (" + c.Note + ")"
			}
			p.printf("%s\n", line)
		}
	}
}

// HistoryJSON writes stored runs as JSON.
func (p *Printer) HistoryJSON(runs []history.Run) error {
	if runs == nil {
		runs = []history.Run{}
	}
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(runs)
}
