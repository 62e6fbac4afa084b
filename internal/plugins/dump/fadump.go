package dump

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Aman-CERP/servicereport/internal/check"
	"github.com/Aman-CERP/servicereport/internal/logging"
	"github.com/Aman-CERP/servicereport/internal/plugin"
	"github.com/Aman-CERP/servicereport/internal/scheme"
)

var fadumpFlavors = []struct {
	suffix  string
	desc    string
	schemes []scheme.ID
	flavor  flavor
}{
	{"Fedora", "Validates the FADump on Fedora", []scheme.ID{scheme.Fedora}, flavor{
		service: kdumpService, initrd: "/boot/initramfs-%s.img", memory: fadumpTable,
	}},
	{"RHEL", "Validates the FADump on RHEL", []scheme.ID{scheme.RHEL, scheme.PowerPC}, flavor{
		service: kdumpService, initrd: "/boot/initramfs-%s.img", memory: fadumpTable,
	}},
	{"SUSE", "Validates the FADump on SUSE", []scheme.ID{scheme.SUSE, scheme.PowerPC}, flavor{
		service: kdumpService, initrd: "/boot/initrd-%s", sysconfig: sysconfigKdump,
		kdumpPackage: true, memory: fadumpTable,
	}},
	{"Ubuntu", "Validates the FADump on Ubuntu", []scheme.ID{scheme.Ubuntu, scheme.PowerPC}, flavor{
		service: ubuntuKdumpService, memory: fadumpTable,
	}},
}

// FADumpDefinitions returns the FADump variants. FADump applies when the
// kernel was booted with fadump=on.
func FADumpDefinitions() []plugin.Definition {
	defs := make([]plugin.Definition, 0, len(fadumpFlavors))
	for _, v := range fadumpFlavors {
		fl := v.flavor
		defs = append(defs, plugin.Definition{
			Type:        FADumpName + v.suffix,
			Name:        FADumpName,
			Description: v.desc,
			Schemes:     v.schemes,
			Applicable: func(env plugin.Env) bool {
				return env.Host.HasBootParam(fadumpBootParam)
			},
			New: func(env plugin.Env) (plugin.Plugin, error) {
				return newFADump(env, fl), nil
			},
		})
	}
	return defs
}

// FADump validates firmware-assisted dump.
type FADump struct {
	dumper
}

func newFADump(env plugin.Env, fl flavor) *FADump {
	return &FADump{dumper{env: env, flavor: fl}}
}

// Checks implements plugin.Plugin.
func (f *FADump) Checks() []plugin.Op {
	return []plugin.Op{
		plugin.Func(OpKexecPackage, f.checkKexecPackage),
		plugin.Func(OpKdumpPackage, f.checkKdumpPackage),
		plugin.Func(OpMemory, f.checkMemory),
		plugin.Func(OpFADumpEnabled, f.checkEnabled),
		plugin.Func(OpSysconfig, f.checkSysconfig),
		plugin.Func(OpInitrd, f.checkInitrd),
		plugin.Func(OpFADumpRegistered, f.checkRegistered),
		plugin.Func(OpService, f.checkService),
		plugin.Func(OpActiveDump, f.checkActiveDump),
	}
}

func (f *FADump) checkEnabled(context.Context) (*check.Record, error) {
	return f.sysfsFlag("FADump enabled check", fadumpEnabled, "FADump is not enabled"), nil
}

func (f *FADump) checkRegistered(context.Context) (*check.Record, error) {
	return f.sysfsFlag("FADump registration check", fadumpRegistered, "FADump is not registered"), nil
}

// neededMemory returns the reservation needed for this host in MB.
func (f *FADump) neededMemory() (int64, bool) {
	kb, ok := f.host().MemTotalKB()
	if !ok {
		f.env.Logger.Debug("failed to detect total memory")
		return 0, false
	}
	return f.memory.lookup(float64(kb) / 1024 / 1024)
}

// reservedMemory returns the memory reserved by firmware in MB and the
// file it was read from.
func (f *FADump) reservedMemory(ctx context.Context) (float64, string, bool) {
	if f.host().Exists(fadumpMemReserved) {
		raw, err := f.host().ReadTrimmed(fadumpMemReserved)
		if err != nil {
			return 0, fadumpMemReserved, false
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			f.env.Logger.Debug("invalid reserved memory value", slog.String("value", raw))
			return 0, fadumpMemReserved, false
		}
		return float64(n) / mb, fadumpMemReserved, true
	}

	if !f.host().Exists(fadumpRegion) {
		f.env.Logger.Debug("mounting debugfs", slog.String("path", debugfs))
		if err := f.host().RunChecked(ctx, "mount", "-t", "debugfs", "nodev", debugfs); err != nil {
			f.env.Logger.Debug("unable to mount debugfs", slog.String("error", err.Error()))
			return 0, fadumpRegion, false
		}
		if !f.host().Exists(fadumpRegion) {
			return 0, fadumpRegion, false
		}
	}
	content, err := f.host().ReadFile(fadumpRegion)
	if err != nil {
		return 0, fadumpRegion, false
	}
	total, ok := regionSize(content, func(region string) {
		f.env.Logger.Warn("unknown fadump region", slog.String("region", region))
	})
	if !ok {
		f.env.Logger.Debug("unable to parse fadump regions", slog.String("path", fadumpRegion))
		return 0, fadumpRegion, false
	}
	return float64(total) / mb, fadumpRegion, true
}

// checkMemory compares the firmware reservation with the table. Either
// value being unavailable makes the status unknown.
func (f *FADump) checkMemory(ctx context.Context) (*check.Record, error) {
	const name = "Memory reservation"
	needed, neededOK := f.neededMemory()
	reserved, path, reservedOK := f.reservedMemory(ctx)

	payload := check.File{Path: path}
	if neededOK {
		payload.Expected = strconv.FormatInt(needed, 10)
	}
	if reservedOK {
		payload.Observed = strconv.FormatInt(int64(reserved), 10)
	}

	switch {
	case !neededOK || !reservedOK:
		return check.New(name, check.StatusUnknown, payload), nil
	case float64(needed) > reserved:
		f.env.Logger.Error("memory reserved for FADump is insufficient")
		logging.Recommend(f.env.Logger, "Increase the memory reservation to "+payload.Expected+" MB")
		return check.New(name, check.StatusFail, payload), nil
	}
	f.env.Logger.Info("sufficient memory reserved for dump collection")
	return check.New(name, check.StatusPass, payload), nil
}

// checkSysconfig requires every KDUMP_FADUMP assignment to be "yes".
func (f *FADump) checkSysconfig(context.Context) (*check.Record, error) {
	if f.sysconfig == "" {
		return nil, nil
	}
	name := "FADump attributes in " + f.sysconfig
	payload := check.File{Path: f.sysconfig, Expected: "yes"}

	lines, err := f.host().ReadLines(f.sysconfig)
	if err != nil {
		f.env.Logger.Debug("failed to read sysconfig", slog.String("path", f.sysconfig))
		return check.New(name, check.StatusFail, payload), nil
	}

	found, ok := false, true
	for _, line := range lines {
		if !strings.HasPrefix(line, "KDUMP_FADUMP=") {
			continue
		}
		found = true
		value := strings.TrimSpace(strings.TrimPrefix(line, "KDUMP_FADUMP="))
		if len(value) > 2 && (value[0] == '"' || value[0] == '\'') {
			if value[0] != value[len(value)-1] {
				ok = false
			}
			value = value[1 : len(value)-1]
		}
		payload.Observed = value
		if value != "yes" {
			ok = false
		}
	}

	switch {
	case !found:
		f.env.Logger.Error("KDUMP_FADUMP attribute is missing", slog.String("path", f.sysconfig))
		logging.Recommend(f.env.Logger, `Add KDUMP_FADUMP="yes" in `+f.sysconfig)
		return check.New(name, check.StatusFail, payload), nil
	case !ok:
		f.env.Logger.Error("KDUMP_FADUMP attribute has an incorrect value", slog.String("path", f.sysconfig))
		logging.Recommend(f.env.Logger, "Update KDUMP_FADUMP attribute value to yes in "+f.sysconfig)
		return check.New(name, check.StatusFail, payload), nil
	}
	return check.New(name, check.StatusPass, payload), nil
}
