package host_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/servicereport/internal/host"
	"github.com/Aman-CERP/servicereport/internal/host/hosttest"
)

func TestFacts_Distro(t *testing.T) {
	h := hosttest.New(t, map[string]string{
		"/etc/os-release": hosttest.OSRelease("Red Hat Enterprise Linux 9.4 (Plow)"),
	}, nil)

	assert.Equal(t, "Red Hat Enterprise Linux 9.4 (Plow)", h.Facts().Distro())
}

func TestFacts_MissingFilesYieldEmpty(t *testing.T) {
	// Given: an empty host root
	h := hosttest.New(t, nil, nil)

	// Then: every probe degrades to an empty value
	assert.Empty(t, h.Facts().Distro())
	assert.Empty(t, h.Facts().Platform())
	assert.Empty(t, h.Facts().ServiceProcessor())
	assert.False(t, h.Facts().HasPCIDevice("0x1014", "0x06a7"))
}

func TestFacts_PlatformAndServiceProcessor(t *testing.T) {
	h := hosttest.New(t, map[string]string{
		"/proc/cpuinfo":         "processor\t: 0\ncpu\t\t: POWER10\nplatform\t: PowerNV\nmodel\t\t: 9105-22A\n",
		"/proc/device-tree/bmc/": "",
	}, nil)

	assert.Equal(t, "powernv", h.Facts().Platform())
	assert.Equal(t, host.ServiceProcessorBMC, h.Facts().ServiceProcessor())
	assert.Equal(t, "ppc64le", h.Facts().Machine())
}

func TestFacts_ProbesAreMemoized(t *testing.T) {
	// Given: a distro probe that has already run
	h := hosttest.New(t, map[string]string{"/etc/os-release": hosttest.OSRelease("Fedora Linux 40")}, nil)
	assert.Equal(t, "Fedora Linux 40", h.Facts().Distro())

	// When: the underlying file changes
	err := os.WriteFile(filepath.Join(h.Root(), "etc/os-release"), []byte(hosttest.OSRelease("Ubuntu 24.04 LTS")), 0o644)
	assert.NoError(t, err)

	// Then: the cached value is returned
	assert.Equal(t, "Fedora Linux 40", h.Facts().Distro())
}

func TestFacts_HasPCIDevice(t *testing.T) {
	h := hosttest.New(t, map[string]string{
		"/sys/bus/pci/devices/0000:00:00.0/vendor": "0x8086\n",
		"/sys/bus/pci/devices/0000:00:00.0/device": "0x06a7\n",
		"/sys/bus/pci/devices/0001:01:00.0/vendor": "0x1014\n",
		"/sys/bus/pci/devices/0001:01:00.0/device": "0x06a8\n",
	}, nil)

	assert.True(t, h.Facts().HasPCIDevice("0x1014", "0x06a7", "0x06a8"))
	assert.False(t, h.Facts().HasPCIDevice("0x1014", "0x0000"))
}

func TestHost_BootParamsAndMemory(t *testing.T) {
	h := hosttest.New(t, map[string]string{
		"/proc/cmdline": "BOOT_IMAGE=/vmlinuz root=/dev/sda2 fadump=on crashkernel=2048M\n",
		"/proc/meminfo": "MemTotal:       16777216 kB\nMemFree:         1024 kB\n",
	}, nil)

	assert.True(t, h.HasBootParam("fadump=on"))
	assert.False(t, h.HasBootParam("fadump=off"))

	kb, ok := h.MemTotalKB()
	assert.True(t, ok)
	assert.Equal(t, int64(16777216), kb)
}

func TestHost_Glob_StripsRoot(t *testing.T) {
	h := hosttest.New(t, map[string]string{"/dev/vfio/0": "", "/dev/vfio/vfio": ""}, nil)

	paths, err := h.Glob("/dev/vfio/*")

	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"/dev/vfio/0", "/dev/vfio/vfio"}, paths)
}
