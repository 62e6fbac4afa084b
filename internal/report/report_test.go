package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/servicereport/internal/check"
	"github.com/Aman-CERP/servicereport/internal/history"
	"github.com/Aman-CERP/servicereport/internal/plugin"
	"github.com/Aman-CERP/servicereport/internal/validate"
)

// instance validates a plugin whose checks return recs in order.
func instance(name, desc string, recs ...*check.Record) *plugin.Instance {
	var ops plugin.Checks
	for i, rec := range recs {
		rec := rec
		ops = append(ops, plugin.Func(string(rune('a'+i)), func(context.Context) (*check.Record, error) {
			return rec, nil
		}))
	}
	def := plugin.Definition{
		Type:        name,
		Description: desc,
		New:         func(plugin.Env) (plugin.Plugin, error) { return ops, nil },
	}
	inst := plugin.NewInstance(def, plugin.Env{})
	inst.Validate(context.Background())
	return inst
}

func sampleResults() *plugin.Results {
	fixed := check.New("irqbalance", check.StatusPass, check.Service{Unit: "irqbalance", Enabled: check.StatusPass, Active: check.StatusPass})
	fixed.SetNote(check.NoteFixed)

	res := plugin.NewResults()
	res.Add(instance("Daemon", "Daemon status", fixed))
	res.Add(instance("Package", "Package availability",
		check.New("sos", check.StatusPass, check.Packages{Packages: []check.PackageState{{Name: "sos", Installed: check.StatusPass}}}),
		check.New("perf", check.StatusFail, check.Packages{Packages: []check.PackageState{{Name: "perf", Installed: check.StatusFail}}}),
	))
	return res
}

func render(opts Options, fn func(p *Printer)) string {
	var buf bytes.Buffer
	opts.Styles = NoColorStyles()
	fn(New(&buf, opts))
	return buf.String()
}

func TestResults_SummaryOnly(t *testing.T) {
	out := render(Options{}, func(p *Printer) { p.Results(sampleResults()) })

	want := "Daemon status" + strings.Repeat(" ", 52-len("Daemon status")) + "PASS\n\n" +
		"Package availability" + strings.Repeat(" ", 52-len("Package availability")) + "FAIL\n\n"
	assert.Equal(t, want, out)
}

func TestResults_RepairShowsNotes(t *testing.T) {
	out := render(Options{Repair: true}, func(p *Printer) { p.Results(sampleResults()) })

	lines := strings.Split(out, "\n")
	assert.Contains(t, lines, "  irqbalance"+strings.Repeat(" ", 50-len("irqbalance"))+"PASS"+strings.Repeat(" ", 16)+"Auto Fixed")
	assert.Contains(t, lines, "  perf"+strings.Repeat(" ", 46)+"FAIL")
	assert.NotContains(t, out, "installed")
}

func TestResults_VerboseDetails(t *testing.T) {
	out := render(Options{Verbose: 2}, func(p *Printer) { p.Results(sampleResults()) })

	assert.Contains(t, out, "      irqbalance: enabled PASS, active PASS\n")
	assert.Contains(t, out, "      perf: installed FAIL\n")
}

func TestResults_MessagesAfterChecks(t *testing.T) {
	rec := check.New("RSCT package check", check.StatusFail, nil)
	rec.SetMessage("install ibm-power-repo first")
	res := plugin.NewResults()
	res.Add(instance("RSCT", "RSCT", rec))

	out := render(Options{Verbose: 1}, func(p *Printer) { p.Results(res) })

	idxCheck := strings.Index(out, "RSCT package check")
	idxMsg := strings.Index(out, "install ibm-power-repo first\n")
	require.NotEqual(t, -1, idxMsg)
	assert.Less(t, idxCheck, idxMsg)
}

func TestUnknown(t *testing.T) {
	out := render(Options{}, func(p *Printer) { p.Unknown([]string{"bogus"}) })
	assert.Equal(t, "Warning: bogus plugin is either invalid or not applicable to this system.\n\n", out)
}

func TestDetails(t *testing.T) {
	tests := []struct {
		name    string
		payload check.Payload
		want    []string
	}{
		{"nil", nil, nil},
		{"file", check.File{Path: "/sys/kernel/kexec_crash_size", Expected: "2048", Observed: "1024"},
			[]string{"/sys/kernel/kexec_crash_size: expected 2048, observed 1024"}},
		{"file without values", check.File{Path: "/proc/vmcore"}, []string{"/proc/vmcore"}},
		{"attributes", check.Attributes{Path: "/etc/sysconfig/kdump", Attrs: []check.Attribute{
			{Key: "KDUMP_FADUMP", Status: check.StatusFail, Current: `"no"`, Possible: `"yes"`},
			{Key: "KDUMP_SAVEDIR", Status: check.StatusPass, Current: "/var/crash"},
		}}, []string{"/etc/sysconfig/kdump", `  KDUMP_FADUMP = "no" FAIL (expected "yes")`, "  KDUMP_SAVEDIR = /var/crash PASS"}},
		{"files", check.Files{Files: []check.FileOutcome{{Path: "/dev/vfio/0", OK: false}}}, []string{"/dev/vfio/0 FAIL"}},
		{"config list", check.ConfigList{Items: []check.Item{{Value: "ctrmc", Present: true}, {Value: "IBM.DRM"}}},
			[]string{"  ctrmc present", "  IBM.DRM missing"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Details(tt.payload))
		})
	}
}

func TestJSON(t *testing.T) {
	// Given: results with a failing op and an unknown name
	res := sampleResults()
	res.Unknown = []string{"bogus"}

	// When: rendering JSON
	var buf bytes.Buffer
	require.NoError(t, New(&buf, Options{}).JSON(res, "1.0.0", true))

	// Then: the document carries statuses, notes and payload kinds
	var doc struct {
		Passed  bool     `json:"passed"`
		Repair  bool     `json:"repair"`
		Unknown []string `json:"unknown"`
		Plugins []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
			Checks []struct {
				Name    string         `json:"name"`
				Status  string         `json:"status"`
				Note    string         `json:"note"`
				Kind    string         `json:"kind"`
				Payload map[string]any `json:"payload"`
			} `json:"checks"`
		} `json:"plugins"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.False(t, doc.Passed)
	assert.True(t, doc.Repair)
	assert.Equal(t, []string{"bogus"}, doc.Unknown)
	require.Len(t, doc.Plugins, 2)
	assert.Equal(t, "PASS", doc.Plugins[0].Status)
	assert.Equal(t, "Auto Fixed", doc.Plugins[0].Checks[0].Note)
	assert.Equal(t, "service", doc.Plugins[0].Checks[0].Kind)
	assert.Equal(t, "PASS", doc.Plugins[0].Checks[0].Payload["active"])
	assert.Equal(t, "FAIL", doc.Plugins[1].Checks[1].Status)
}

func TestNewDocument_Errors(t *testing.T) {
	def := plugin.Definition{
		Type: "Broken",
		New:  func(plugin.Env) (plugin.Plugin, error) { return nil, errors.New("no host") },
	}
	res := plugin.NewResults()
	res.Add(plugin.NewInstance(def, plugin.Env{}))

	doc := NewDocument(res, "dev", false)

	require.Len(t, doc.Plugins, 1)
	assert.Equal(t, "FAIL", doc.Plugins[0].Status)
	assert.Len(t, doc.Plugins[0].Errors, 1)
	assert.Empty(t, doc.Plugins[0].Checks)
}

func TestList(t *testing.T) {
	out := render(Options{}, func(p *Printer) {
		p.List([]validate.Listing{
			{Name: "Daemon", Tag: validate.TagMandatory, Description: "Daemon status"},
			{Name: "HTX", Tag: validate.TagOptional, Description: "HTX"},
		})
	})

	assert.Contains(t, out, "   Daemon              M                   Daemon status\n")
	assert.Contains(t, out, "   HTX                 O                   HTX\n")
	assert.Contains(t, out, "O: Optional plugin (use -o option to enable)\n")
}

func TestHistory(t *testing.T) {
	runs := []history.Run{{
		ID:      "run-1",
		Started: time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local),
		Version: "1.0.0",
		Repair:  true,
		Checks: []history.Check{
			{Plugin: "Kdump", Name: "kexec package", Status: "FAIL", Note: "Unable to Fix"},
			{Plugin: "Daemon", Name: "irqbalance", Status: "PASS"},
		},
	}}

	out := render(Options{}, func(p *Printer) { p.History(runs) })

	assert.True(t, strings.HasPrefix(out, "2026-05-04 10:00:00  repair   1.0.0     FAIL      run-1\n"))
	assert.Contains(t, out, "    Kdump: kexec package FAIL (Unable to Fix)\n")
	assert.NotContains(t, out, "irqbalance")
}

func TestHistory_Empty(t *testing.T) {
	out := render(Options{}, func(p *Printer) { p.History(nil) })
	assert.Equal(t, "No runs recorded.\n", out)
}

func TestUseColor(t *testing.T) {
	var buf bytes.Buffer
	assert.True(t, UseColor("always", &buf))
	assert.False(t, UseColor("never", &buf))
	assert.False(t, UseColor("auto", &buf))
}
