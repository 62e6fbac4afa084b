package host

import (
	"golang.org/x/sys/unix"
)

// TriggerCrash enables the magic SysRq key and crashes the kernel so the
// configured dump mechanism captures a vmcore. It only returns on error.
func (h *Host) TriggerCrash() error {
	if err := h.WriteFile("/proc/sys/kernel/sysrq", "1"); err != nil {
		return err
	}
	unix.Sync()
	return h.WriteFile("/proc/sysrq-trigger", "c")
}
