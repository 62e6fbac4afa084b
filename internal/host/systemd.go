package host

import (
	"context"

	"github.com/Aman-CERP/servicereport/internal/check"
	srerrors "github.com/Aman-CERP/servicereport/internal/errors"
)

// UnitEnabled reports whether a systemd unit is enabled at boot.
func (h *Host) UnitEnabled(ctx context.Context, unit string) check.Status {
	return h.systemctlStatus(ctx, "is-enabled", unit)
}

// UnitActive reports whether a systemd unit is running.
func (h *Host) UnitActive(ctx context.Context, unit string) check.Status {
	return h.systemctlStatus(ctx, "is-active", unit)
}

// ServiceState probes both states of a unit.
func (h *Host) ServiceState(ctx context.Context, unit string) check.Service {
	return check.Service{
		Unit:    unit,
		Enabled: h.UnitEnabled(ctx, unit),
		Active:  h.UnitActive(ctx, unit),
	}
}

func (h *Host) systemctlStatus(ctx context.Context, verb, unit string) check.Status {
	res, err := h.Run(ctx, "systemctl", verb, unit)
	if err != nil {
		return check.StatusUnknown
	}
	return check.FromBool(res.OK())
}

// EnableUnit enables a unit at boot.
func (h *Host) EnableUnit(ctx context.Context, unit string) error {
	return h.systemctl(ctx, "enable", unit)
}

// StartUnit starts a unit.
func (h *Host) StartUnit(ctx context.Context, unit string) error {
	return h.systemctl(ctx, "start", unit)
}

// RestartUnit restarts a unit.
func (h *Host) RestartUnit(ctx context.Context, unit string) error {
	return h.systemctl(ctx, "restart", unit)
}

func (h *Host) systemctl(ctx context.Context, verb, unit string) error {
	return h.RunChecked(ctx, "systemctl", verb, unit)
}

// RunChecked runs a command and turns a non-zero exit into an error.
func (h *Host) RunChecked(ctx context.Context, name string, args ...string) error {
	res, err := h.Run(ctx, name, args...)
	if err != nil {
		return err
	}
	if !res.OK() {
		return srerrors.New(srerrors.ErrCodeCommandFailed, name+" exited with a non-zero status", nil).
			WithDetail("command", name).
			WithDetail("stderr", res.Stderr)
	}
	return nil
}
