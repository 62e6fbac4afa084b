package host

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const factCacheSize = 64

// Facts exposes host facts used by capability schemes and applicability
// predicates. Each probe runs at most once per Facts value.
type Facts struct {
	h     *Host
	cache *lru.Cache[string, string]
}

func newFacts(h *Host) *Facts {
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, string](factCacheSize)
	return &Facts{h: h, cache: cache}
}

func (f *Facts) probe(key string, fn func() string) string {
	if v, ok := f.cache.Get(key); ok {
		return v
	}
	v := fn()
	f.cache.Add(key, v)
	return v
}

// Distro returns PRETTY_NAME from /etc/os-release, unquoted.
func (f *Facts) Distro() string {
	return f.probe("distro", func() string {
		lines, err := f.h.ReadLines("/etc/os-release")
		if err != nil {
			f.h.logger.Debug("os-release unreadable", "error", err)
			return ""
		}
		for _, line := range lines {
			key, value, ok := strings.Cut(line, "=")
			if ok && strings.TrimSpace(key) == "PRETTY_NAME" {
				return strings.Trim(strings.TrimSpace(value), `"'`)
			}
		}
		return ""
	})
}

// Machine returns the CPU architecture string.
func (f *Facts) Machine() string {
	return f.probe("machine", f.h.Machine)
}

// Platform returns the lowercased "platform" line of /proc/cpuinfo,
// e.g. "pseries" or "powernv".
func (f *Facts) Platform() string {
	return f.probe("platform", func() string {
		lines, err := f.h.ReadLines("/proc/cpuinfo")
		if err != nil {
			return ""
		}
		for _, line := range lines {
			key, value, ok := strings.Cut(line, ":")
			if ok && strings.TrimSpace(key) == "platform" {
				return strings.ToLower(strings.TrimSpace(value))
			}
		}
		return ""
	})
}

// Service processor types.
const (
	ServiceProcessorFSP = "fsps"
	ServiceProcessorBMC = "bmc"
)

// ServiceProcessor returns "fsps", "bmc" or "" depending on which
// device-tree node is present.
func (f *Facts) ServiceProcessor() string {
	return f.probe("service_processor", func() string {
		switch {
		case f.h.IsDir("/proc/device-tree/fsps"):
			return ServiceProcessorFSP
		case f.h.IsDir("/proc/device-tree/bmc"):
			return ServiceProcessorBMC
		default:
			return ""
		}
	})
}

// HasPCIDevice reports whether a PCI device with the vendor ID and one
// of the device IDs is present. IDs use sysfs notation, e.g. "0x1014".
func (f *Facts) HasPCIDevice(vendor string, devices ...string) bool {
	key := "pci:" + vendor + ":" + strings.Join(devices, ",")
	return f.probe(key, func() string {
		dirs, err := f.h.Glob("/sys/bus/pci/devices/*")
		if err != nil {
			return ""
		}
		for _, dir := range dirs {
			v, err := f.h.ReadTrimmed(dir + "/vendor")
			if err != nil || v != vendor {
				continue
			}
			d, err := f.h.ReadTrimmed(dir + "/device")
			if err != nil {
				continue
			}
			for _, want := range devices {
				if d == want {
					return "1"
				}
			}
		}
		return ""
	}) == "1"
}
