package dump

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/servicereport/internal/check"
	"github.com/Aman-CERP/servicereport/internal/fileedit"
	"github.com/Aman-CERP/servicereport/internal/plugin"
	"github.com/Aman-CERP/servicereport/internal/plugins/packages"
	"github.com/Aman-CERP/servicereport/internal/repair"
)

const activeDumpMessage = "Active dump found at /proc/vmcore; save it, then reboot"

// dumpRepair holds the fixes shared by Kdump and FADump.
type dumpRepair struct {
	env    plugin.Env
	editor *fileedit.Editor
}

func newDumpRepair(env plugin.Env) dumpRepair {
	return dumpRepair{env: env, editor: fileedit.New(fileedit.WithLogger(env.Logger), fileedit.WithWarnings(env.Warnings))}
}

// fixPackages installs the kexec and kdump packages. It returns the name
// of a package check still failing afterwards, or "".
func (r dumpRepair) fixPackages(fx *repair.Fixer) string {
	if !fx.Fix(OpKexecPackage, packages.Install(r.env)) {
		fx.Fix(OpKdumpPackage, packages.Install(r.env))
		return fx.Record(OpKexecPackage).Name
	}
	if !fx.Fix(OpKdumpPackage, packages.Install(r.env)) {
		return fx.Record(OpKdumpPackage).Name
	}
	return ""
}

// blocked marks ops as waiting on a failing package check.
func blocked(fx *repair.Fixer, pkg string, ops ...string) {
	for _, op := range ops {
		fx.Blocked(op, pkg)
	}
}

// fixMemory writes the required crashkernel size into the grub defaults
// and regenerates the boot configuration. The new size only applies
// after a reboot.
func (r dumpRepair) fixMemory(fx *repair.Fixer) {
	rec := fx.Record(OpMemory)
	if rec == nil {
		return
	}
	required, err := requiredMB(rec)
	if err != nil && rec.Status.Failed() {
		fx.Mark(OpMemory, check.NoteFailedToFix, "")
		return
	}
	h := r.env.Host
	fx.FixNeedsReboot(OpMemory,
		func(ctx context.Context, _ *check.Record) error {
			if err := updateCrashkernel(h, r.editor, required); err != nil {
				return err
			}
			return regenerateGrub(ctx, h)
		},
		func(context.Context) bool { return crashkernelInGrub(h, required) })
}

// fixService starts the dump service and enables it at boot. A failed
// enable is only logged.
func (r dumpRepair) fixService(fx *repair.Fixer, service string) {
	fx.Fix(OpService, func(ctx context.Context, _ *check.Record) error {
		if err := r.env.Host.StartUnit(ctx, service); err != nil {
			return err
		}
		if r.env.Host.UnitEnabled(ctx, service).Passed() {
			return nil
		}
		if err := r.env.Host.EnableUnit(ctx, service); err != nil {
			r.env.Logger.Warn("service is not configured to start on boot", slog.String("service", service))
		}
		return nil
	})
}

// rebuildInitrd restarts the dump service, which regenerates the capture
// initrd.
func (r dumpRepair) rebuildInitrd(service string, touch string) repair.Action {
	return func(ctx context.Context, _ *check.Record) error {
		if touch != "" {
			_ = r.env.Host.RunChecked(ctx, "touch", r.env.Host.Path(touch))
		}
		return r.env.Host.RestartUnit(ctx, service)
	}
}

// KdumpRepair remediates the Kdump checks. A package that stays missing
// blocks the service, load and initrd fixes that depend on it.
func KdumpRepair(env plugin.Env) repair.Repairer {
	r := newDumpRepair(env)
	return repair.Func(func(ctx context.Context, inst *plugin.Instance) {
		k, ok := inst.Plugin().(*Kdump)
		if !ok {
			return
		}
		fx := repair.NewFixer(ctx, inst)

		missing := r.fixPackages(fx)
		r.fixMemory(fx)
		fx.Recheck(OpSysconfig, check.NoteNotFixable)
		fx.Recheck(OpEtcConf, check.NoteNotFixable)

		if missing != "" {
			blocked(fx, missing, OpService, OpLoaded, OpInitrd)
		} else {
			r.fixService(fx, k.service)
			fx.Recheck(OpLoaded, check.NoteFailedToFix)
			fx.Fix(OpInitrd, r.rebuildInitrd(k.service, ""))
		}

		fx.Mark(OpActiveDump, check.NoteManualFix, activeDumpMessage)
	})
}

// FADumpRepair remediates the FADump checks. FADump cannot be enabled at
// runtime, so a disabled FADump is left to the operator.
func FADumpRepair(env plugin.Env) repair.Repairer {
	r := newDumpRepair(env)
	return repair.Func(func(ctx context.Context, inst *plugin.Instance) {
		f, ok := inst.Plugin().(*FADump)
		if !ok {
			return
		}
		fx := repair.NewFixer(ctx, inst)

		missing := r.fixPackages(fx)
		r.fixMemory(fx)
		fx.Mark(OpFADumpEnabled, check.NoteNotFixable, "")

		if f.sysconfig != "" {
			fx.Fix(OpSysconfig, func(context.Context, *check.Record) error {
				_, err := r.editor.Edit(env.Host.Path(f.sysconfig), fileedit.SetKeyValue("KDUMP_FADUMP", `"yes"`))
				return err
			})
		}

		if missing != "" {
			blocked(fx, missing, OpInitrd, OpFADumpRegistered, OpService)
		} else {
			fx.Fix(OpInitrd, r.rebuildInitrd(f.service, sysconfigKdump))
			fx.Fix(OpFADumpRegistered, func(context.Context, *check.Record) error {
				return env.Host.WriteFile(fadumpRegistered, "1")
			})
			r.fixService(fx, f.service)
		}

		fx.Mark(OpActiveDump, check.NoteManualFix, activeDumpMessage)
	})
}
