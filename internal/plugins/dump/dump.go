// Package dump validates and repairs the crash dump setup: kdump with a
// kexec capture kernel, or firmware-assisted dump (FADump) on Power.
package dump

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Aman-CERP/servicereport/internal/check"
	"github.com/Aman-CERP/servicereport/internal/host"
	"github.com/Aman-CERP/servicereport/internal/logging"
	"github.com/Aman-CERP/servicereport/internal/plugin"
	"github.com/Aman-CERP/servicereport/internal/plugins/packages"
)

// Logical plugin names.
const (
	KdumpName  = "Kdump"
	FADumpName = "FADump"
)

// ForHost returns the logical name of the dump plugin that applies to h:
// FADump when the kernel was booted with fadump=on, Kdump otherwise.
func ForHost(h *host.Host) string {
	if h.HasBootParam(fadumpBootParam) {
		return FADumpName
	}
	return KdumpName
}

// Check operation IDs.
const (
	OpKexecPackage     = "kexec-package"
	OpKdumpPackage     = "kdump-package"
	OpMemory           = "memory"
	OpLoaded           = "capture-kernel-loaded"
	OpSysconfig        = "sysconfig"
	OpEtcConf          = "etc-conf"
	OpService          = "service"
	OpInitrd           = "initrd"
	OpActiveDump       = "active-dump"
	OpFADumpEnabled    = "fadump-enabled"
	OpFADumpRegistered = "fadump-registered"
)

const (
	activeDumpPath     = "/proc/vmcore"
	kexecCrashSize     = "/sys/kernel/kexec_crash_size"
	kexecCrashLoaded   = "/sys/kernel/kexec_crash_loaded"
	fadumpEnabled      = "/sys/kernel/fadump_enabled"
	fadumpRegistered   = "/sys/kernel/fadump_registered"
	fadumpMemReserved  = "/sys/kernel/fadump_mem_reserved"
	fadumpRegion       = "/sys/kernel/debug/powerpc/fadump_region"
	debugfs            = "/sys/kernel/debug"
	sysconfigKdump     = "/etc/sysconfig/kdump"
	defaultKdumpTools  = "/etc/default/kdump-tools"
	etcKdumpConf       = "/etc/kdump.conf"
	fadumpBootParam    = "fadump=on"
	dumpComponent      = "kdump"
	kexecPackage       = "kexec-tools"
	kdumpPackage       = "kdump"
	kdumpService       = "kdump"
	ubuntuKdumpService = "kdump-tools"
)

// flavor holds the distribution specific layout of the dump tooling.
type flavor struct {
	service string
	// initrd is a format string taking the kernel release. Empty skips
	// the initrd component check.
	initrd       string
	sysconfig    string
	etcConf      string
	kdumpPackage bool
	memory       table
	recommend    bool
}

// dumper holds the checks shared by Kdump and FADump.
type dumper struct {
	env plugin.Env
	flavor
}

func (d *dumper) host() *host.Host { return d.env.Host }

func (d *dumper) initrdPath() string {
	if d.initrd == "" {
		return ""
	}
	return fmt.Sprintf(d.initrd, d.host().KernelRelease())
}

// checkService reports the dump service state. Only the active state decides
// the status; the enabled state is kept for the report.
func (d *dumper) checkService(ctx context.Context) (*check.Record, error) {
	svc := d.host().ServiceState(ctx, d.service)
	if !svc.Active.Passed() {
		log := d.env.Logger.With(slog.String("service", d.service))
		log.Error("dump service is not active")
		logging.Recommend(log, "Start the service: systemctl start "+d.service)
		log.Info("the service may stay inactive when memory reservation fails")
	}
	return check.New("Service status", svc.Active, svc), nil
}

// checkInitrd looks for the dump component in the capture initrd.
func (d *dumper) checkInitrd(ctx context.Context) (*check.Record, error) {
	path := d.initrdPath()
	if path == "" {
		return nil, nil
	}
	payload := check.File{Path: path, Expected: dumpComponent}
	rec := func(s check.Status) (*check.Record, error) {
		return check.New("Dump component in initial ramdisk", s, payload), nil
	}

	info, err := d.host().Stat(path)
	switch {
	case err != nil || !info.Mode().IsRegular():
		d.env.Logger.Error("initial ramdisk not found", slog.String("path", path))
		return rec(check.StatusFail)
	case info.Size() < 1:
		d.env.Logger.Error("initial ramdisk is empty", slog.String("path", path))
		return rec(check.StatusFail)
	}

	res, err := d.host().Run(ctx, "lsinitrd", "-m", d.host().Path(path))
	if err != nil {
		d.env.Logger.Warn("unable to list initial ramdisk modules", slog.String("error", err.Error()))
		return rec(check.StatusUnknown)
	}
	if !res.OK() || !strings.Contains(res.Stdout, dumpComponent) {
		d.env.Logger.Error("dump component missing in initial ramdisk", slog.String("path", path))
		return rec(check.StatusFail)
	}
	payload.Observed = dumpComponent
	return rec(check.StatusPass)
}

func (d *dumper) checkKexecPackage(ctx context.Context) (*check.Record, error) {
	return packages.Check(ctx, d.env, "kexec package", kexecPackage), nil
}

func (d *dumper) checkKdumpPackage(ctx context.Context) (*check.Record, error) {
	if !d.kdumpPackage {
		return nil, nil
	}
	return packages.Check(ctx, d.env, "kdump package", kdumpPackage), nil
}

// checkActiveDump fails while an unsaved dump is exposed at /proc/vmcore.
func (d *dumper) checkActiveDump(context.Context) (*check.Record, error) {
	found := d.host().Exists(activeDumpPath)
	if found {
		d.env.Logger.Warn("active dump found", slog.String("path", activeDumpPath))
	}
	return check.New("Active dump", check.FromBool(!found), check.File{Path: activeDumpPath}), nil
}

// sysfsFlag checks that a sysfs file holds 1.
func (d *dumper) sysfsFlag(name, path, failure string) *check.Record {
	payload := check.File{Path: path, Expected: "1"}
	value, err := d.host().ReadTrimmed(path)
	if err != nil {
		d.env.Logger.Error(failure, slog.String("path", path))
		return check.New(name, check.StatusFail, payload)
	}
	payload.Observed = value
	n, err := strconv.Atoi(value)
	if err != nil || n != 1 {
		d.env.Logger.Error(failure, slog.String("path", path), slog.String("value", value))
		return check.New(name, check.StatusFail, payload)
	}
	return check.New(name, check.StatusPass, payload)
}

// requiredMB parses the required reservation stored on a memory record.
func requiredMB(rec *check.Record) (int64, error) {
	f, ok := rec.Payload.(check.File)
	if !ok || f.Expected == "" {
		return 0, errors.New("memory requirement unknown")
	}
	return strconv.ParseInt(f.Expected, 10, 64)
}
