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

var kdumpFlavors = []struct {
	suffix string
	desc   string
	scheme scheme.ID
	flavor flavor
}{
	{"Fedora", "Validates the Kdump configuration on Fedora", scheme.Fedora, flavor{
		service: kdumpService, initrd: "/boot/initramfs-%skdump.img",
		sysconfig: sysconfigKdump, etcConf: etcKdumpConf,
		memory: kdumpDefaultTable, recommend: true,
	}},
	{"RHEL", "Validates the Kdump configuration on RHEL", scheme.RHEL, flavor{
		service: kdumpService, initrd: "/boot/initramfs-%skdump.img",
		sysconfig: sysconfigKdump, etcConf: etcKdumpConf,
		memory: kdumpRHELTable, recommend: true,
	}},
	{"SUSE", "Validates the Kdump configuration on SUSE", scheme.SUSE, flavor{
		service: kdumpService, initrd: "/boot/initrd-%s-kdump",
		sysconfig: sysconfigKdump, kdumpPackage: true,
		memory: kdumpSUSETable,
	}},
	{"Ubuntu", "Validates the Kdump configuration on Ubuntu", scheme.Ubuntu, flavor{
		service: ubuntuKdumpService, sysconfig: defaultKdumpTools,
		memory: kdumpDefaultTable,
	}},
}

// KdumpDefinitions returns the Kdump variants. Kdump applies unless the
// kernel was booted with fadump=on.
func KdumpDefinitions() []plugin.Definition {
	defs := make([]plugin.Definition, 0, len(kdumpFlavors))
	for _, v := range kdumpFlavors {
		fl := v.flavor
		defs = append(defs, plugin.Definition{
			Type:        KdumpName + v.suffix,
			Name:        KdumpName,
			Description: v.desc,
			Schemes:     []scheme.ID{v.scheme},
			Applicable: func(env plugin.Env) bool {
				return !env.Host.HasBootParam(fadumpBootParam)
			},
			New: func(env plugin.Env) (plugin.Plugin, error) {
				return newKdump(env, fl), nil
			},
		})
	}
	return defs
}

// Kdump validates the kexec based dump setup.
type Kdump struct {
	dumper
}

func newKdump(env plugin.Env, fl flavor) *Kdump {
	return &Kdump{dumper{env: env, flavor: fl}}
}

// Checks implements plugin.Plugin.
func (k *Kdump) Checks() []plugin.Op {
	return []plugin.Op{
		plugin.Func(OpKexecPackage, k.checkKexecPackage),
		plugin.Func(OpKdumpPackage, k.checkKdumpPackage),
		plugin.Func(OpMemory, k.checkMemory),
		plugin.Func(OpSysconfig, k.checkSysconfig),
		plugin.Func(OpEtcConf, k.checkEtcConf),
		plugin.Func(OpService, k.checkService),
		plugin.Func(OpLoaded, k.checkLoaded),
		plugin.Func(OpInitrd, k.checkInitrd),
		plugin.Func(OpActiveDump, k.checkActiveDump),
	}
}

// requiredMemory returns the capture kernel reservation this host needs,
// in MB.
func (k *Kdump) requiredMemory(ctx context.Context) (int64, bool) {
	if k.recommend {
		if n, ok := k.recommendedSize(ctx); ok {
			return n, true
		}
	}
	kb, ok := k.host().MemTotalKB()
	if !ok {
		return 0, false
	}
	return k.memory.lookup(float64(kb) / 1024)
}

func (k *Kdump) checkMemory(ctx context.Context) (*check.Record, error) {
	const name = "Memory allocated for capture kernel"
	payload := check.File{Path: kexecCrashSize}

	required, known := k.requiredMemory(ctx)
	if known {
		payload.Expected = strconv.FormatInt(required, 10)
	}

	raw, err := k.host().ReadTrimmed(kexecCrashSize)
	if err != nil {
		k.env.Logger.Error("memory allocation to capture kernel failed")
		return check.New(name, check.StatusFail, payload), nil
	}
	size, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		k.env.Logger.Error("invalid crash size", slog.String("path", kexecCrashSize), slog.String("value", raw))
		return check.New(name, check.StatusFail, payload), nil
	}
	allocated := float64(size) / mb
	payload.Observed = strconv.FormatInt(size/mb, 10)

	switch {
	case !known:
		k.env.Logger.Error("failed to detect memory configuration")
		return check.New(name, check.StatusFail, payload), nil
	case allocated < float64(required):
		k.env.Logger.Error("memory reserved for kdump kernel is insufficient",
			slog.Int64("required_mb", required), slog.String("allocated_mb", payload.Observed))
		logging.Recommend(k.env.Logger, "Please increase the memory to "+payload.Expected+" MB")
		return check.New(name, check.StatusFail, payload), nil
	}
	return check.New(name, check.StatusPass, payload), nil
}

func (k *Kdump) checkLoaded(context.Context) (*check.Record, error) {
	return k.sysfsFlag("Capture kernel load status", kexecCrashLoaded, "capture kernel is unavailable"), nil
}

// rule validates one sysconfig attribute value.
type rule struct {
	possible string
	valid    func(k *Kdump, value string) bool
}

func oneOf(values ...string) func(*Kdump, string) bool {
	return func(_ *Kdump, v string) bool {
		for _, want := range values {
			if v == want {
				return true
			}
		}
		return false
	}
}

func intBetween(lo, hi int) func(*Kdump, string) bool {
	return func(_ *Kdump, v string) bool {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return err == nil && n >= lo && n <= hi
	}
}

var remoteSchemes = []string{"ftp://", "sftp://", "ssh://", "nfs://", "cifs://"}

func (k *Kdump) savedirValid(v string) bool {
	for _, s := range remoteSchemes {
		if strings.HasPrefix(v, s) {
			k.warnRemote(v)
			return true
		}
	}
	return k.host().IsDir(strings.TrimPrefix(v, "file://"))
}

func (k *Kdump) warnRemote(target string) {
	k.env.Logger.Warn("dump target location is remote; ensure the remote machine is accessible and has sufficient storage",
		slog.String("target", target))
}

func isFile(k *Kdump, v string) bool {
	info, err := k.host().Stat(v)
	return err == nil && info.Mode().IsRegular()
}

func isDir(k *Kdump, v string) bool { return k.host().IsDir(v) }

var sysconfigRules = map[string]rule{
	"kdumptool_flags":         {"NOSPARSE, SPLIT, SINGLE, XENALLDOMAINS or empty", oneOf("NOSPARSE", "SPLIT", "SINGLE", "XENALLDOMAINS", "")},
	"kdump_dumpformat":        {"ELF, compressed, lzo, snappy or empty", oneOf("ELF", "compressed", "lzo", "snappy", "")},
	"kdump_copy_kernel":       {"yes or no", oneOf("yes", "no")},
	"kdump_immediate_reboot":  {"yes or no", oneOf("yes", "no")},
	"kdump_verbose":           {"0 to 31", intBetween(0, 31)},
	"kdump_continue_on_error": {"true or false", oneOf("true", "false")},
	"kdump_fadump":            {"no", oneOf("no")},
	"kdump_fadump_shell":      {"no", oneOf("no")},
	"kdump_dumplevel":         {"0 to 31", intBetween(0, 31)},
	"kdump_savedir":           {"existing directory or remote URL", (*Kdump).savedirValid},
	"use_kdump":               {"1", intBetween(1, 1)},
	"kdump_initrd":            {"existing file", isFile},
	"kdump_coredir":           {"existing directory", isDir},
	"kdump_kernel":            {"existing file", isFile},
}

// checkSysconfig validates the known KEY=value attributes of the kdump
// sysconfig file. Unknown keys are ignored.
func (k *Kdump) checkSysconfig(context.Context) (*check.Record, error) {
	name := "Kdump attributes in " + k.sysconfig
	payload := check.Attributes{Path: k.sysconfig}

	lines, err := k.host().ReadLines(k.sysconfig)
	if err != nil {
		k.env.Logger.Error("failed to read kdump config", slog.String("path", k.sysconfig))
		return check.New(name, check.StatusFail, payload), nil
	}

	for _, line := range lines {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		r, known := sysconfigRules[strings.ToLower(key)]
		if strings.HasPrefix(value, `"`) != strings.HasSuffix(value, `"`) || value == `"` {
			k.env.Logger.Error("kdump attribute is not formatted properly", slog.String("key", key))
			logging.Recommend(k.env.Logger, "Fix the "+key+" attribute and restart the kdump service")
			payload.Attrs = append(payload.Attrs, check.Attribute{Key: key, Status: check.StatusFail, Current: value, Possible: r.possible})
			continue
		}
		if !known {
			continue
		}
		value = strings.TrimSuffix(strings.TrimPrefix(value, `"`), `"`)
		status := check.FromBool(r.valid(k, value))
		if status.Failed() {
			k.env.Logger.Error("kdump attribute is not configured correctly", slog.String("key", key))
		}
		payload.Attrs = append(payload.Attrs, check.Attribute{Key: key, Status: status, Current: value, Possible: r.possible})
	}
	return check.New(name, payload.Status(), payload), nil
}

// checkEtcConf validates the "key value" lines of /etc/kdump.conf.
func (k *Kdump) checkEtcConf(context.Context) (*check.Record, error) {
	if k.etcConf == "" {
		return nil, nil
	}
	name := "Kdump attributes in " + k.etcConf
	payload := check.Attributes{Path: k.etcConf}

	lines, err := k.host().ReadLines(k.etcConf)
	if err != nil {
		k.env.Logger.Error("failed to read kdump config", slog.String("path", k.etcConf))
		return check.New(name, check.StatusFail, payload), nil
	}

	for _, line := range lines {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		var attr check.Attribute
		switch strings.ToLower(key) {
		case "path":
			attr = check.Attribute{Key: key, Status: check.FromBool(k.host().IsDir(value)), Current: value, Possible: "existing directory"}
		case "ssh", "nfs":
			k.warnRemote(value)
			attr = check.Attribute{Key: key, Status: check.StatusPass, Current: value}
		default:
			continue
		}
		if attr.Status.Failed() {
			k.env.Logger.Error("kdump attribute is not configured correctly", slog.String("key", key))
		}
		payload.Attrs = append(payload.Attrs, attr)
	}
	return check.New(name, payload.Status(), payload), nil
}
