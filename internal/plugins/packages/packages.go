// Package packages checks that the diagnostic and platform support
// packages are installed, and installs missing ones.
package packages

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/servicereport/internal/check"
	"github.com/Aman-CERP/servicereport/internal/plugin"
	"github.com/Aman-CERP/servicereport/internal/repair"
	"github.com/Aman-CERP/servicereport/internal/scheme"
)

// Name is the logical plugin name.
const Name = "Package"

var variants = []struct {
	suffix   string
	desc     string
	schemes  []scheme.ID
	packages []string
}{
	{"RHEL", "Evaluates the packages on RHEL", []scheme.ID{scheme.RHEL}, []string{"sos", "perf"}},
	{"Fedora", "Evaluates the packages on Fedora", []scheme.ID{scheme.Fedora}, []string{"sos", "perf"}},
	{"Ubuntu", "Evaluates the packages on Ubuntu", []scheme.ID{scheme.Ubuntu},
		[]string{"sosreport", "linux-tools-generic", "linux-tools-common"}},
	{"SUSE", "Evaluates the packages on SUSE", []scheme.ID{scheme.SUSE}, []string{"supportutils", "perf"}},
	{"PowerPC", "Evaluates the packages on PowerPC", []scheme.ID{scheme.PowerPC}, []string{"ppc64-diag"}},
	{"RHELPowerPC", "Evaluates the RHEL packages on PowerPC",
		[]scheme.ID{scheme.PowerPC, scheme.RHEL}, []string{"powerpc-utils"}},
	{"FedoraPowerPC", "Evaluates the Fedora packages on PowerPC",
		[]scheme.ID{scheme.PowerPC, scheme.Fedora}, []string{"powerpc-utils"}},
	{"SUSEPowerPC", "Evaluates the SUSE packages on PowerPC",
		[]scheme.ID{scheme.PowerPC, scheme.SUSE}, []string{"powerpc-utils"}},
	{"UbuntuPowerPC", "Evaluates the Ubuntu packages on PowerPC",
		[]scheme.ID{scheme.PowerPC, scheme.Ubuntu}, []string{"powerpc-ibm-utils"}},
	{"PowerNV", "Evaluates the packages on the PowerNV platform",
		[]scheme.ID{scheme.PowerNV}, []string{"opal-prd"}},
}

// Definitions returns one definition per scheme combination.
func Definitions() []plugin.Definition {
	defs := make([]plugin.Definition, 0, len(variants))
	for _, v := range variants {
		pkgs := v.packages
		defs = append(defs, plugin.Definition{
			Type:        Name + v.suffix,
			Name:        Name,
			Description: v.desc,
			Schemes:     v.schemes,
			New: func(env plugin.Env) (plugin.Plugin, error) {
				return New(env, pkgs...), nil
			},
		})
	}
	return defs
}

// New returns a plugin with one record per package, named after it.
func New(env plugin.Env, pkgs ...string) plugin.Plugin {
	return plugin.ListChecker{
		Targets: pkgs,
		Probe: func(ctx context.Context, pkg string) *check.Record {
			return Check(ctx, env, pkg, pkg)
		},
	}
}

// Check builds a record named name over the install state of pkgs.
func Check(ctx context.Context, env plugin.Env, name string, pkgs ...string) *check.Record {
	payload := env.Host.PackageStates(ctx, pkgs...)
	for _, p := range payload.Packages {
		log := env.Logger.With(slog.String("package", p.Name))
		switch p.Installed {
		case check.StatusUnknown:
			log.Warn("unable to find package status")
		case check.StatusFail:
			log.Error("package is not present")
		default:
			log.Info("package is present")
		}
	}
	return check.New(name, payload.Status(), payload)
}

// Install returns an action installing the packages a record reports
// missing. Packages of unknown state are attempted too.
func Install(env plugin.Env) repair.Action {
	return func(ctx context.Context, rec *check.Record) error {
		payload, ok := rec.Payload.(check.Packages)
		if !ok {
			return nil
		}
		for _, p := range payload.Packages {
			if p.Installed.Passed() {
				continue
			}
			if err := env.Host.InstallPackage(ctx, p.Name); err != nil {
				return err
			}
		}
		return nil
	}
}

// Repair installs every missing package and re-checks it.
func Repair(env plugin.Env) repair.Repairer {
	return repair.Func(func(ctx context.Context, inst *plugin.Instance) {
		fx := repair.NewFixer(ctx, inst)
		for _, rec := range inst.Records() {
			fx.Fix(rec.Op, Install(env))
		}
	})
}
