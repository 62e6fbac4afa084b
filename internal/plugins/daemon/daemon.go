// Package daemon checks that the platform service daemons are enabled at
// boot and running, and repairs them by enabling and starting the unit.
package daemon

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/servicereport/internal/check"
	"github.com/Aman-CERP/servicereport/internal/logging"
	"github.com/Aman-CERP/servicereport/internal/plugin"
	"github.com/Aman-CERP/servicereport/internal/repair"
	"github.com/Aman-CERP/servicereport/internal/scheme"
)

// Name is the logical plugin name.
const Name = "Daemon"

// variants lists the daemons expected under each scheme.
var variants = []struct {
	suffix  string
	desc    string
	scheme  scheme.ID
	daemons []string
}{
	{"Fedora", "Evaluates the daemons on Fedora", scheme.Fedora, []string{"irqbalance"}},
	{"RHEL", "Evaluates the daemons on RHEL", scheme.RHEL, []string{"irqbalance"}},
	{"SUSE", "Evaluates the daemons on SUSE", scheme.SUSE, []string{"irqbalance"}},
	{"Ubuntu", "Evaluates the daemons on Ubuntu", scheme.Ubuntu, []string{"irqbalance"}},
	{"PSeries", "Evaluates the daemons on the PowerPC PSeries platform", scheme.PSeries, []string{"rtas_errd"}},
	{"FSPSPowerNV", "Evaluates the daemons on FSP based PowerNV machines", scheme.FSPSPowerNV, []string{"opal_errd"}},
	{"BMCPowerNV", "Evaluates the daemons on BMC based PowerNV machines", scheme.BMCPowerNV, []string{"opal-prd"}},
}

// Definitions returns one definition per scheme variant.
func Definitions() []plugin.Definition {
	defs := make([]plugin.Definition, 0, len(variants))
	for _, v := range variants {
		daemons := v.daemons
		defs = append(defs, plugin.Definition{
			Type:        Name + v.suffix,
			Name:        Name,
			Description: v.desc,
			Schemes:     []scheme.ID{v.scheme},
			New: func(env plugin.Env) (plugin.Plugin, error) {
				return New(env, daemons...), nil
			},
		})
	}
	return defs
}

// New returns a plugin checking each daemon. The op ID is the unit name.
func New(env plugin.Env, daemons ...string) plugin.Plugin {
	return plugin.ListChecker{
		Targets: daemons,
		Probe: func(ctx context.Context, unit string) *check.Record {
			return probe(ctx, env, unit)
		},
	}
}

func probe(ctx context.Context, env plugin.Env, unit string) *check.Record {
	svc := env.Host.ServiceState(ctx, unit)
	log := env.Logger.With(slog.String("daemon", unit))

	switch svc.Enabled {
	case check.StatusUnknown:
		log.Warn("unable to find daemon status")
	case check.StatusFail:
		log.Error("daemon is not enabled")
	}
	if svc.Active.Passed() {
		log.Info("daemon is active")
	} else {
		log.Error("daemon is not active")
		logging.Recommend(log, "Start the service: systemctl start "+unit)
	}
	return check.New(unit, svc.Status(), svc)
}

// Repair enables and starts every failing daemon.
func Repair(env plugin.Env) repair.Repairer {
	return repair.Func(func(ctx context.Context, inst *plugin.Instance) {
		fx := repair.NewFixer(ctx, inst)
		for _, rec := range inst.Records() {
			unit := rec.Op
			fx.Fix(unit, func(ctx context.Context, _ *check.Record) error {
				if err := env.Host.EnableUnit(ctx, unit); err != nil {
					return err
				}
				return env.Host.StartUnit(ctx, unit)
			})
		}
	})
}
