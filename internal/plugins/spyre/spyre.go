// Package spyre checks the host setup an IBM Spyre accelerator needs for
// user space access through VFIO, and repairs it.
package spyre

import (
	"context"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/Aman-CERP/servicereport/internal/check"
	"github.com/Aman-CERP/servicereport/internal/fileedit"
	"github.com/Aman-CERP/servicereport/internal/plugin"
	"github.com/Aman-CERP/servicereport/internal/repair"
)

// Name is the logical plugin name.
const Name = "Spyre"

// Check operation IDs.
const (
	OpDriverConfig = "driver-config"
	OpUdevRule     = "udev-rule"
	OpMemlock      = "memlock"
	OpModulesLoad  = "modules-load"
	OpUserGroup    = "user-group"
	OpModule       = "vfio-module"
	OpPermissions  = "device-permissions"
)

const (
	ibmVendor     = "0x1014"
	modprobeConf  = "/etc/modprobe.d/vfio-pci.conf"
	udevRules     = "/etc/udev/rules.d/95-vfio-3.rules"
	udevRule      = `SUBSYSTEM=="vfio", MODE="0666"`
	memlockConf   = "/etc/security/limits.d/memlock.conf"
	memlockLimit  = "@sentient - memlock 134217728"
	modulesLoad   = "/etc/modules-load.d/vfio-pci.conf"
	group         = "sentient"
	vfioModule    = "vfio_pci"
	vfioDir       = "/dev/vfio"
	deviceMode    = fs.FileMode(0o666)
	driverModule  = "vfio-pci"
	spyreDeviceID = "1014:06a7,1014:06a8"
)

var (
	spyreDevices = []string{"0x06a7", "0x06a8"}
	moduleDeps   = []string{"vfio-pci", "vfio_iommu_spapr_tce"}

	optionsLine = regexp.MustCompile(`^options\s+(\S+)\s+(.+)$`)
	optionPair  = regexp.MustCompile(`(\w+)=([^=\s]+)`)
)

// driverOption is a required modprobe option of the vfio-pci driver.
type driverOption struct {
	key, value string
}

var driverOptions = []driverOption{
	{"ids", spyreDeviceID},
	{"disable_idle_d3", "yes"},
}

// isCharDevice is replaced in tests, which cannot create device nodes.
var isCharDevice = func(mode fs.FileMode) bool { return mode&fs.ModeCharDevice != 0 }

// Definitions returns the Spyre plugin. It applies when a Spyre card is
// present on the PCI bus.
func Definitions() []plugin.Definition {
	return []plugin.Definition{{
		Type:        Name,
		Description: "Spyre configuration checks",
		Applicable: func(env plugin.Env) bool {
			return env.Host.Facts().HasPCIDevice(ibmVendor, spyreDevices...)
		},
		New: func(env plugin.Env) (plugin.Plugin, error) {
			return New(env), nil
		},
	}}
}

// Spyre holds the Spyre checks.
type Spyre struct {
	env plugin.Env
}

// New returns the Spyre checks.
func New(env plugin.Env) *Spyre { return &Spyre{env: env} }

// Checks implements plugin.Plugin.
func (s *Spyre) Checks() []plugin.Op {
	return []plugin.Op{
		plugin.Func(OpDriverConfig, s.checkDriverConfig),
		plugin.Func(OpUdevRule, s.lines("VFIO udev rules configuration", udevRules, udevRule)),
		plugin.Func(OpMemlock, s.lines("User memlock configuration", memlockConf, memlockLimit)),
		plugin.Func(OpModulesLoad, s.lines("VFIO module dep configuration", modulesLoad, moduleDeps...)),
		plugin.Func(OpUserGroup, s.checkUserGroup),
		plugin.Func(OpModule, s.checkModule),
		plugin.Func(OpPermissions, s.checkPermissions),
	}
}

// checkDriverConfig looks for the required vfio-pci options in the
// modprobe configuration.
func (s *Spyre) checkDriverConfig(context.Context) (*check.Record, error) {
	const name = "VFIO Driver configuration"
	found := make(map[string]string)

	lines, err := s.env.Host.ReadLines(modprobeConf)
	if err != nil {
		s.env.Logger.Error("file not found", slog.String("path", modprobeConf))
	}
	for _, line := range lines {
		m := optionsLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil || m[1] != driverModule {
			continue
		}
		for _, pair := range optionPair.FindAllStringSubmatch(m[2], -1) {
			found[pair[1]] = pair[2]
		}
	}

	payload := check.Attributes{Path: modprobeConf}
	for _, opt := range driverOptions {
		current := found[opt.key]
		payload.Attrs = append(payload.Attrs, check.Attribute{
			Key:      driverModule + " " + opt.key,
			Status:   check.FromBool(current == opt.value),
			Current:  current,
			Possible: opt.value,
		})
	}
	return check.New(name, payload.Status(), payload), nil
}

// lines checks that a file contains each wanted line.
func (s *Spyre) lines(name, file string, wanted ...string) func(context.Context) (*check.Record, error) {
	return func(context.Context) (*check.Record, error) {
		present := make(map[string]bool)
		lines, err := s.env.Host.ReadLines(file)
		if err != nil {
			s.env.Logger.Error("file not found", slog.String("path", file))
		}
		for _, line := range lines {
			present[strings.TrimSpace(line)] = true
		}
		payload := check.ConfigList{Path: file}
		for _, w := range wanted {
			payload.Items = append(payload.Items, check.Item{Value: w, Present: present[w]})
		}
		return check.New(name, payload.Status(), payload), nil
	}
}

// checkUserGroup looks for the sentient group in the group database.
func (s *Spyre) checkUserGroup(ctx context.Context) (*check.Record, error) {
	const name = "User group configuration"
	payload := check.ConfigList{}
	res, err := s.env.Host.Run(ctx, "getent", "group")
	if err != nil {
		s.env.Logger.Warn("unable to list groups", slog.String("error", err.Error()))
		return check.New(name, check.StatusUnknown, payload), nil
	}
	exists := false
	for _, line := range strings.Split(res.Stdout, "\n") {
		g, _, _ := strings.Cut(strings.TrimSpace(line), ":")
		if g == group {
			exists = true
			break
		}
	}
	payload.Items = []check.Item{{Value: group, Present: exists}}
	return check.New(name, payload.Status(), payload), nil
}

// checkModule looks for vfio_pci in the loaded modules. Without lsmod
// the state is unknown.
func (s *Spyre) checkModule(ctx context.Context) (*check.Record, error) {
	const name = "VFIO kernel module loaded"
	res, err := s.env.Host.Run(ctx, "lsmod")
	if err != nil {
		return check.New(name, check.StatusUnknown, nil), nil
	}
	loaded := false
	for _, line := range strings.Split(res.Stdout, "\n") {
		if f := strings.Fields(line); len(f) > 0 && f[0] == vfioModule {
			loaded = true
			break
		}
	}
	payload := check.ConfigList{Items: []check.Item{{Value: vfioModule, Present: loaded}}}
	return check.New(name, payload.Status(), payload), nil
}

// checkPermissions requires every VFIO character device to be readable
// and writable by all users. Without /dev/vfio the state is unknown.
func (s *Spyre) checkPermissions(context.Context) (*check.Record, error) {
	const name = "VFIO device permission"
	if !s.env.Host.IsDir(vfioDir) {
		s.env.Logger.Error("no VFIO device directory", slog.String("path", vfioDir))
		return check.New(name, check.StatusUnknown, check.Files{}), nil
	}
	devices, err := s.devices()
	if err != nil {
		return check.New(name, check.StatusUnknown, check.Files{}), nil
	}
	payload := check.Files{}
	status := check.StatusPass
	for _, dev := range devices {
		info, err := s.env.Host.Stat(dev)
		if err != nil {
			s.env.Logger.Error("failed to access device", slog.String("path", dev))
			continue
		}
		ok := info.Mode().Perm()&deviceMode == deviceMode
		if !ok {
			status = check.StatusFail
		}
		payload.Files = append(payload.Files, check.FileOutcome{Path: dev, OK: ok})
	}
	return check.New(name, status, payload), nil
}

// devices lists the character devices under /dev/vfio.
func (s *Spyre) devices() ([]string, error) {
	entries, err := s.env.Host.Glob(path.Join(vfioDir, "*"))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range entries {
		info, err := s.env.Host.Stat(p)
		if err == nil && isCharDevice(info.Mode()) {
			out = append(out, p)
		}
	}
	return out, nil
}

// memlockMessage tells the operator how to grant a user the memlock limit.
const memlockMessage = "Memlock limit is set for the sentient group. " +
	"Spyre user must be in the sentient group. " +
	"To add run: sudo usermod -aG sentient <user> (example: sudo usermod -aG sentient abc). " +
	"Re-login as <user>."

// Repair returns the Spyre repairer. Configuration files are completed
// with the missing lines, the group is created, the driver loaded and
// device permissions widened.
func Repair(env plugin.Env) repair.Repairer {
	editor := fileedit.New(fileedit.WithLogger(env.Logger), fileedit.WithWarnings(env.Warnings))
	appendLines := func(file string, lines ...string) repair.Action {
		return func(context.Context, *check.Record) error {
			_, err := editor.Edit(env.Host.Path(file), fileedit.AppendMissing(lines...))
			return err
		}
	}

	return repair.Func(func(ctx context.Context, inst *plugin.Instance) {
		fx := repair.NewFixer(ctx, inst)

		fx.Fix(OpDriverConfig, func(ctx context.Context, rec *check.Record) error {
			attrs, _ := rec.Payload.(check.Attributes)
			var missing []string
			for _, a := range attrs.Attrs {
				if !a.Status.Passed() {
					missing = append(missing, "options "+a.Key+"="+a.Possible)
				}
			}
			return appendLines(modprobeConf, missing...)(ctx, rec)
		})
		fx.Fix(OpUdevRule, appendLines(udevRules, udevRule))
		fx.Fix(OpMemlock, appendLines(memlockConf, memlockLimit))
		fx.Fix(OpModulesLoad, func(ctx context.Context, rec *check.Record) error {
			list, _ := rec.Payload.(check.ConfigList)
			return appendLines(modulesLoad, list.Absent()...)(ctx, rec)
		})
		fx.Fix(OpUserGroup, func(ctx context.Context, _ *check.Record) error {
			return env.Host.RunChecked(ctx, "groupadd", group)
		})
		fx.Fix(OpModule, func(ctx context.Context, _ *check.Record) error {
			return env.Host.RunChecked(ctx, "modprobe", vfioModule)
		})

		if rec := fx.Record(OpPermissions); rec != nil && rec.Status == check.StatusUnknown {
			fx.Mark(OpPermissions, check.NoteNotFixable, "no VFIO devices found in "+vfioDir)
		} else {
			fx.Fix(OpPermissions, func(_ context.Context, rec *check.Record) error {
				files, _ := rec.Payload.(check.Files)
				for _, dev := range files.Failing() {
					info, err := env.Host.Stat(dev)
					if err != nil {
						return err
					}
					if err := env.Host.Chmod(dev, info.Mode().Perm()|deviceMode); err != nil {
						return err
					}
				}
				return nil
			})
		}

		if fx.OK(OpUserGroup) && fx.OK(OpMemlock) {
			if rec := fx.Record(OpMemlock); rec != nil {
				rec.SetMessage(memlockMessage)
			}
		}
	})
}
