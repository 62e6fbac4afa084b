package dump

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/servicereport/internal/check"
	"github.com/Aman-CERP/servicereport/internal/host"
	"github.com/Aman-CERP/servicereport/internal/host/hosttest"
	"github.com/Aman-CERP/servicereport/internal/plugin"
	"github.com/Aman-CERP/servicereport/internal/repair"
)

const (
	gib        = 1024 * 1024 * 1024
	rhelGrub   = "GRUB_TIMEOUT=5\nGRUB_CMDLINE_LINUX=\"rhgb quiet crashkernel=1G-4G:384M\"\nGRUB_DISABLE_RECOVERY=\"true\"\n"
	rhelInitrd = "/boot/initramfs-6.12.0kdump.img"
)

func envFor(h *host.Host) plugin.Env { return plugin.Env{Host: h} }

// healthyKdump returns the files and commands of a RHEL host whose kdump
// setup passes every check.
func healthyKdump() (map[string]string, *hosttest.Runner) {
	files := map[string]string{
		"/etc/os-release": hosttest.OSRelease("Red Hat Enterprise Linux 9.4 (Plow)"),
		"/proc/meminfo":   "MemTotal:       102400000 kB\n",
		kexecCrashSize:    strconv.Itoa(2048 * mb),
		kexecCrashLoaded:  "1\n",
		sysconfigKdump:    "# kdump sysconfig\nKDUMP_COMMANDLINE_APPEND=\"irqpoll\"\nKDUMP_IMG=\"vmlinuz\"\n",
		etcKdumpConf:      "path /var/crash\ncore_collector makedumpfile -l\n",
		"/var/crash/":     "",
		rhelInitrd:        "initrd",
		grubDefaults:      rhelGrub,
	}
	r := hosttest.NewRunner().
		On("rpm -q kexec-tools", hosttest.OK("kexec-tools-2.0.28")).
		On("bash -c "+recommendScript, hosttest.OK("2G\n")).
		On("systemctl is-enabled kdump", hosttest.OK("enabled")).
		On("systemctl is-active kdump", hosttest.OK("active"))
	return files, r
}

func definition(t *testing.T, defs []plugin.Definition, typ string) plugin.Definition {
	t.Helper()
	for _, def := range defs {
		if def.Type == typ {
			return def
		}
	}
	t.Fatalf("no definition %s", typ)
	return plugin.Definition{}
}

// kdumpInstance validates KdumpRHEL against the host. The initrd listing
// is scripted once the root path is known.
func kdumpInstance(t *testing.T, files map[string]string, r *hosttest.Runner) (*plugin.Instance, *host.Host) {
	t.Helper()
	h := hosttest.New(t, files, r)
	r.On("lsinitrd -m "+h.Path(rhelInitrd), hosttest.OK("dracut modules:\nkdumpbase\n"))
	inst := plugin.NewInstance(definition(t, KdumpDefinitions(), "KdumpRHEL"), envFor(h))
	inst.Validate(context.Background())
	return inst, h
}

func repaired(t *testing.T, inst *plugin.Instance, name string, f repair.Factory) {
	t.Helper()
	reg := repair.NewRegistry()
	require.NoError(t, reg.Register(name, f))
	res := plugin.NewResults()
	res.Add(inst)
	repair.NewEngine(reg).RepairAll(context.Background(), res)
}

func TestKdump_HealthyHostPasses(t *testing.T) {
	files, r := healthyKdump()

	inst, _ := kdumpInstance(t, files, r)

	for _, rec := range inst.Records() {
		assert.Equal(t, check.StatusPass, rec.Status, rec.Name)
	}
	assert.Nil(t, inst.Record(OpKdumpPackage), "RHEL has no separate kdump package")
	assert.True(t, inst.Passed())
}

func TestKdump_Applicability(t *testing.T) {
	def := definition(t, KdumpDefinitions(), "KdumpRHEL")
	fa := definition(t, FADumpDefinitions(), "FADumpRHEL")

	plain := hosttest.New(t, map[string]string{"/proc/cmdline": "root=/dev/sda2 quiet\n"}, nil)
	assert.True(t, def.Applicable(envFor(plain)))
	assert.False(t, fa.Applicable(envFor(plain)))

	fadump := hosttest.New(t, map[string]string{"/proc/cmdline": "root=/dev/sda2 fadump=on\n"}, nil)
	assert.False(t, def.Applicable(envFor(fadump)))
	assert.True(t, fa.Applicable(envFor(fadump)))
}

func TestKdump_InsufficientMemoryFixedNeedsReboot(t *testing.T) {
	// Given: 2048 MB required but only 1024 MB reserved
	files, r := healthyKdump()
	files[kexecCrashSize] = strconv.Itoa(1024 * mb)
	r.On("grub2-mkconfig -h", hosttest.OK("--update-bls-cmdline")).
		On("grub2-mkconfig -o /boot/grub2/grub.cfg --update-bls-cmdline", hosttest.OK(""))
	inst, h := kdumpInstance(t, files, r)

	rec := inst.Record(OpMemory)
	require.Equal(t, check.StatusFail, rec.Status)
	assert.Equal(t, check.File{Path: kexecCrashSize, Expected: "2048", Observed: "1024"}, rec.Payload)

	// When: repairing
	repaired(t, inst, KdumpName, KdumpRepair)

	// Then: the boot parameters are rewritten and a reboot is pending
	assert.Equal(t, check.StatusPass, rec.Status)
	assert.Equal(t, check.NoteFixedNeedsReboot, rec.Note)
	assert.Equal(t, "1024", rec.Payload.(check.File).Observed, "payload keeps the pre-reboot value")

	grub, err := h.ReadFile(grubDefaults)
	require.NoError(t, err)
	assert.Equal(t, "GRUB_TIMEOUT=5\nGRUB_CMDLINE_LINUX=\"rhgb quiet\"\nGRUB_DISABLE_RECOVERY=\"true\"\n"+
		"GRUB_CMDLINE_LINUX_DEFAULT=\"crashkernel=2048M\"\n", grub)

	backup, err := h.ReadFile("/etc/default/.grub.sa.backup")
	require.NoError(t, err)
	assert.Equal(t, rhelGrub, backup)
	assert.True(t, r.Called("grub2-mkconfig -o /boot/grub2/grub.cfg --update-bls-cmdline"))
}

func TestKdump_MissingKexecToolsBlocksDependents(t *testing.T) {
	// Given: kexec-tools is missing, cannot be installed, and kdump is down
	files, r := healthyKdump()
	r.On("rpm -q kexec-tools", hosttest.Exit(1)).
		On("yum install -y kexec-tools", hosttest.Exit(1)).
		On("systemctl is-active kdump", hosttest.Exit(3))
	inst, _ := kdumpInstance(t, files, r)

	// When: repairing
	repaired(t, inst, KdumpName, KdumpRepair)

	// Then: the package is unable to fix and the service is not touched
	pkg := inst.Record(OpKexecPackage)
	assert.Equal(t, check.StatusFail, pkg.Status)
	assert.Equal(t, check.NoteFailedToFix, pkg.Note)

	svc := inst.Record(OpService)
	assert.Equal(t, check.StatusFail, svc.Status)
	assert.Equal(t, check.NoteFailedToFix, svc.Note)
	assert.Equal(t, "requires kexec package to be fixed first", svc.Message)
	assert.False(t, r.Called("systemctl start kdump"))
}

func TestKdump_ServiceStartedAndEnabled(t *testing.T) {
	files, r := healthyKdump()
	active := false
	r.OnFunc("systemctl is-active kdump", func() (host.Result, error) {
		if active {
			return hosttest.OK("active"), nil
		}
		return hosttest.Exit(3), nil
	}).
		On("systemctl is-enabled kdump", hosttest.Exit(1)).
		OnFunc("systemctl start kdump", func() (host.Result, error) {
			active = true
			return hosttest.OK(""), nil
		}).
		On("systemctl enable kdump", hosttest.OK(""))
	inst, _ := kdumpInstance(t, files, r)

	repaired(t, inst, KdumpName, KdumpRepair)

	svc := inst.Record(OpService)
	assert.Equal(t, check.StatusPass, svc.Status)
	assert.Equal(t, check.NoteFixed, svc.Note)
	assert.True(t, r.Called("systemctl enable kdump"))
}

func TestKdump_SysconfigAttributes(t *testing.T) {
	files, r := healthyKdump()
	files[sysconfigKdump] = "KDUMP_DUMPFORMAT=\"snappy\"\n" +
		"KDUMP_VERBOSE=42\n" +
		"KDUMP_SAVEDIR=\"file:///var/crash\"\n" +
		"KDUMP_COPY_KERNEL=\"yes\n"
	inst, _ := kdumpInstance(t, files, r)

	rec := inst.Record(OpSysconfig)
	require.NotNil(t, rec)
	assert.Equal(t, check.StatusFail, rec.Status)
	attrs := rec.Payload.(check.Attributes)

	format, _ := attrs.Lookup("KDUMP_DUMPFORMAT")
	assert.Equal(t, check.StatusPass, format.Status)
	assert.Equal(t, "snappy", format.Current)
	verbose, _ := attrs.Lookup("KDUMP_VERBOSE")
	assert.Equal(t, check.StatusFail, verbose.Status)
	savedir, _ := attrs.Lookup("KDUMP_SAVEDIR")
	assert.Equal(t, check.StatusPass, savedir.Status)
	quoted, _ := attrs.Lookup("KDUMP_COPY_KERNEL")
	assert.Equal(t, check.StatusFail, quoted.Status)

	// Attribute problems need an operator.
	repaired(t, inst, KdumpName, KdumpRepair)
	assert.Equal(t, check.NoteNotFixable, rec.Note)
}

func TestKdump_ActiveDumpNeedsManualFix(t *testing.T) {
	files, r := healthyKdump()
	files[activeDumpPath] = "ELF"
	inst, _ := kdumpInstance(t, files, r)

	repaired(t, inst, KdumpName, KdumpRepair)

	rec := inst.Record(OpActiveDump)
	assert.Equal(t, check.StatusFail, rec.Status)
	assert.Equal(t, check.NoteManualFix, rec.Note)
	assert.NotEmpty(t, rec.Message)
}

func TestKdump_RepairIsIdempotent(t *testing.T) {
	files, r := healthyKdump()
	inst, _ := kdumpInstance(t, files, r)
	before := len(r.Calls())

	repaired(t, inst, KdumpName, KdumpRepair)

	assert.Equal(t, before, len(r.Calls()), "passing instances are not repaired")
}

// fadumpHost returns a SUSE host booted with fadump=on.
func fadumpHost() (map[string]string, *hosttest.Runner) {
	files := map[string]string{
		"/etc/os-release":     hosttest.OSRelease("SUSE Linux Enterprise Server 15 SP6"),
		"/proc/cmdline":       "root=/dev/sda2 fadump=on\n",
		"/proc/meminfo":       "MemTotal:       268435456 kB\n",
		fadumpEnabled:         "1\n",
		fadumpRegistered:      "1\n",
		fadumpMemReserved:     strconv.Itoa(4 * gib),
		sysconfigKdump:        "KDUMP_FADUMP=\"no\"\nKDUMP_SAVEDIR=\"/var/crash\"\n",
		"/boot/initrd-6.12.0": "initrd",
	}
	r := hosttest.NewRunner().
		On("rpm -q kexec-tools", hosttest.OK("kexec-tools")).
		On("rpm -q kdump", hosttest.OK("kdump")).
		On("systemctl is-enabled kdump", hosttest.OK("enabled")).
		On("systemctl is-active kdump", hosttest.OK("active"))
	return files, r
}

func fadumpInstance(t *testing.T, files map[string]string, r *hosttest.Runner) (*plugin.Instance, *host.Host) {
	t.Helper()
	h := hosttest.New(t, files, r)
	r.On("lsinitrd -m "+h.Path("/boot/initrd-6.12.0"), hosttest.OK("kdump\n"))
	inst := plugin.NewInstance(definition(t, FADumpDefinitions(), "FADumpSUSE"), envFor(h))
	inst.Validate(context.Background())
	return inst, h
}

func TestFADump_MemoryReservation(t *testing.T) {
	files, r := fadumpHost()

	inst, _ := fadumpInstance(t, files, r)

	rec := inst.Record(OpMemory)
	require.NotNil(t, rec)
	assert.Equal(t, "Memory reservation", rec.Name)
	assert.Equal(t, check.StatusPass, rec.Status)
	assert.Equal(t, check.File{Path: fadumpMemReserved, Expected: "4096", Observed: "4096"}, rec.Payload)
}

func TestFADump_MemoryUnknownWithoutReservationData(t *testing.T) {
	// Given: no reserved-memory file and debugfs cannot be mounted
	files, r := fadumpHost()
	delete(files, fadumpMemReserved)
	r.On("mount -t debugfs nodev /sys/kernel/debug", hosttest.Exit(32))

	inst, _ := fadumpInstance(t, files, r)

	assert.Equal(t, check.StatusUnknown, inst.Record(OpMemory).Status)
}

func TestFADump_MemoryFromRegions(t *testing.T) {
	files, r := fadumpHost()
	delete(files, fadumpMemReserved)
	files[fadumpRegion] = "CPU : [0x0-0xffff] 0x10000 bytes, Dumped: 0x0\n" +
		"DUMP: [0x0-0xffffffff] 0x100000000 bytes\n"

	inst, _ := fadumpInstance(t, files, r)

	rec := inst.Record(OpMemory)
	assert.Equal(t, check.StatusPass, rec.Status)
	assert.Equal(t, "4096", rec.Payload.(check.File).Observed)
}

func TestFADump_SysconfigRepaired(t *testing.T) {
	// Given: KDUMP_FADUMP is disabled in sysconfig
	files, r := fadumpHost()
	inst, h := fadumpInstance(t, files, r)
	rec := inst.Record(OpSysconfig)
	require.Equal(t, check.StatusFail, rec.Status)

	// When: repairing
	repaired(t, inst, FADumpName, FADumpRepair)

	// Then: only the KDUMP_FADUMP line changes
	assert.Equal(t, check.StatusPass, rec.Status)
	assert.Equal(t, check.NoteFixed, rec.Note)
	content, err := h.ReadFile(sysconfigKdump)
	require.NoError(t, err)
	assert.Equal(t, "KDUMP_FADUMP=\"yes\"\nKDUMP_SAVEDIR=\"/var/crash\"\n", content)
}

func TestFADump_DisabledIsNotFixable(t *testing.T) {
	files, r := fadumpHost()
	files[fadumpEnabled] = "0\n"
	inst, _ := fadumpInstance(t, files, r)

	repaired(t, inst, FADumpName, FADumpRepair)

	rec := inst.Record(OpFADumpEnabled)
	assert.Equal(t, check.StatusFail, rec.Status)
	assert.Equal(t, check.NoteNotFixable, rec.Note)
}

func TestFADump_RegistrationWritten(t *testing.T) {
	files, r := fadumpHost()
	files[fadumpRegistered] = "0\n"
	inst, h := fadumpInstance(t, files, r)

	repaired(t, inst, FADumpName, FADumpRepair)

	rec := inst.Record(OpFADumpRegistered)
	assert.Equal(t, check.StatusPass, rec.Status)
	assert.Equal(t, check.NoteFixed, rec.Note)
	value, _ := h.ReadTrimmed(fadumpRegistered)
	assert.Equal(t, "1", value)
}

func TestForHost(t *testing.T) {
	kdump := hosttest.New(t, map[string]string{"/proc/cmdline": "root=/dev/sda2 crashkernel=2G\n"}, nil)
	fadump := hosttest.New(t, map[string]string{"/proc/cmdline": "root=/dev/sda2 fadump=on\n"}, nil)
	bare := hosttest.New(t, nil, nil)

	assert.Equal(t, KdumpName, ForHost(kdump))
	assert.Equal(t, FADumpName, ForHost(fadump))
	assert.Equal(t, KdumpName, ForHost(bare), "unreadable cmdline means no fadump")
}
