package repair

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/servicereport/internal/check"
	srerrors "github.com/Aman-CERP/servicereport/internal/errors"
	"github.com/Aman-CERP/servicereport/internal/plugin"
)

// Action performs a corrective step for a failing record.
type Action func(ctx context.Context, rec *check.Record) error

// Fixer sequences remediation over the records of one instance. Records
// are addressed by the ID of the operation that produced them.
type Fixer struct {
	ctx    context.Context
	inst   *plugin.Instance
	logger *slog.Logger
}

// NewFixer returns a Fixer for inst.
func NewFixer(ctx context.Context, inst *plugin.Instance) *Fixer {
	return &Fixer{ctx: ctx, inst: inst, logger: inst.Env().Logger}
}

// Context returns the repair context.
func (f *Fixer) Context() context.Context { return f.ctx }

// Record returns the record produced by op, or nil.
func (f *Fixer) Record(op string) *check.Record { return f.inst.Record(op) }

// OK reports whether op is absent or passing. Absent checks do not
// apply on this host and never block dependents.
func (f *Fixer) OK(op string) bool {
	rec := f.inst.Record(op)
	return rec == nil || rec.Status.Passed()
}

// Fix runs action for a failing record, re-checks it on the original
// instance and annotates the outcome. Unknown records are annotated
// without acting. It returns whether the record passes afterwards.
func (f *Fixer) Fix(op string, action Action) bool {
	rec, proceed := f.candidate(op)
	if !proceed {
		return rec == nil || rec.Status.Passed()
	}

	if err := action(f.ctx, rec); err != nil {
		f.failed(rec, err)
		return false
	}
	return f.verify(rec, check.NoteFixed)
}

// FixNeedsReboot is Fix for changes that only take effect after a
// reboot. verify confirms the change was persisted in place of a
// re-check.
func (f *Fixer) FixNeedsReboot(op string, action Action, verify func(ctx context.Context) bool) bool {
	rec, proceed := f.candidate(op)
	if !proceed {
		return rec == nil || rec.Status.Passed()
	}

	if err := action(f.ctx, rec); err != nil {
		f.failed(rec, err)
		return false
	}
	if !verify(f.ctx) {
		rec.SetNote(check.NoteFailedToFix)
		f.logger.Warn("change not persisted", slog.String("check", rec.Name))
		return false
	}
	rec.Status = check.StatusPass
	rec.SetNote(check.NoteFixedNeedsReboot)
	f.logger.Info("check fixed, reboot required", slog.String("check", rec.Name))
	return true
}

// Recheck re-verifies a failing record that earlier fixes may have
// resolved. When it still fails the record gets failNote.
func (f *Fixer) Recheck(op string, failNote check.Note) bool {
	rec, proceed := f.candidate(op)
	if !proceed {
		return rec == nil || rec.Status.Passed()
	}
	if f.verify(rec, check.NoteFixed) {
		return true
	}
	rec.SetNote(failNote)
	return false
}

// Mark annotates a failing or unknown record that cannot be fixed here.
func (f *Fixer) Mark(op string, note check.Note, message string) {
	rec := f.inst.Record(op)
	if rec == nil || rec.Status.Passed() {
		return
	}
	rec.SetNote(note)
	if message != "" {
		rec.SetMessage(message)
	}
}

// Blocked marks op as not fixed because prerequisite still fails.
func (f *Fixer) Blocked(op, prerequisite string) {
	rec := f.inst.Record(op)
	if rec == nil || rec.Status.Passed() {
		return
	}
	rec.SetNote(check.NoteFailedToFix)
	rec.SetMessage("requires " + prerequisite + " to be fixed first")
	f.logger.Info("fix skipped, prerequisite failing",
		slog.String("check", rec.Name),
		slog.String("prerequisite", prerequisite))
}

// candidate reports whether rec should be acted on. Unknown records are
// annotated here.
func (f *Fixer) candidate(op string) (*check.Record, bool) {
	rec := f.inst.Record(op)
	if rec == nil {
		return nil, false
	}
	switch rec.Status {
	case check.StatusPass:
		return rec, false
	case check.StatusUnknown:
		rec.SetNote(check.NoteFailedToFix)
		f.logger.Info("indeterminate check not repaired", slog.String("check", rec.Name))
		return rec, false
	default:
		return rec, true
	}
}

func (f *Fixer) verify(rec *check.Record, note check.Note) bool {
	fresh, err := f.inst.Recheck(f.ctx, rec.Op)
	if err != nil || fresh == nil || !fresh.Status.Passed() {
		rec.SetNote(check.NoteFailedToFix)
		attrs := []any{slog.String("check", rec.Name)}
		if err != nil {
			attrs = append(attrs, srerrors.FormatForLog(err)...)
		}
		f.logger.Warn("check still failing after repair", attrs...)
		return false
	}
	rec.Adopt(fresh)
	rec.SetNote(note)
	f.logger.Info("check fixed", slog.String("check", rec.Name))
	return true
}

func (f *Fixer) failed(rec *check.Record, err error) {
	rec.SetNote(check.NoteFailedToFix)
	f.logger.Warn("corrective action failed",
		append([]any{slog.String("check", rec.Name)}, srerrors.FormatForLog(err)...)...)
}
