// Package rsct checks the Reliable Scalable Cluster Technology stack that
// PowerVM partitions need for dynamic resource management with the HMC.
package rsct

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/servicereport/internal/check"
	"github.com/Aman-CERP/servicereport/internal/host"
	"github.com/Aman-CERP/servicereport/internal/plugin"
	"github.com/Aman-CERP/servicereport/internal/plugins/packages"
	"github.com/Aman-CERP/servicereport/internal/repair"
	"github.com/Aman-CERP/servicereport/internal/scheme"
)

// Name is the logical plugin name.
const Name = "RSCT"

// Check operation IDs.
const (
	OpPowerRepo   = "power-repo"
	OpInstallPath = "install-path"
	OpPackages    = "packages"
	OpSubsystems  = "subsystems"
)

const (
	installPath   = "/opt/rsct/bin"
	powerRepo     = "ibm-power-repo"
	lopConfigure  = "/opt/ibm/lop/configure"
	toolsSupport  = "https://www.ibm.com/support/pages/service-and-productivity-tools"
	activeMarker  = "active"
	subsystemsRec = "RSCT service status"
)

var (
	rsctPackages = []string{"rsct.core", "rsct.core.utils", "rsct.basic", "src",
		"devices.chrp.base.ServiceRM", "DynamicRM"}
	subsystems = []string{"ctrmc", "IBM.DRM", "IBM.HostRM", "IBM.ServiceRM", "IBM.MgmtDomainRM"}
)

// Definitions returns the RSCT plugin, which must be requested
// explicitly.
func Definitions() []plugin.Definition {
	return []plugin.Definition{{
		Type:        Name,
		Description: "RSCT configuration check",
		Optional:    true,
		Schemes:     []scheme.ID{scheme.PSeries},
		New: func(env plugin.Env) (plugin.Plugin, error) {
			return New(env), nil
		},
	}}
}

// New returns the RSCT checks.
func New(env plugin.Env) plugin.Plugin {
	return plugin.Checks{
		plugin.Func(OpPowerRepo, func(ctx context.Context) (*check.Record, error) {
			return packages.Check(ctx, env, "IBM Power Repo Package Check", powerRepo), nil
		}),
		plugin.Func(OpInstallPath, func(context.Context) (*check.Record, error) {
			ok := env.Host.IsDir(installPath)
			if !ok {
				env.Logger.Error("missing RSCT installation directory", slog.String("path", installPath))
			}
			return check.New("RSCT Installation path", check.FromBool(ok), check.File{Path: installPath}), nil
		}),
		plugin.Func(OpPackages, func(ctx context.Context) (*check.Record, error) {
			return packages.Check(ctx, env, "RSCT package check", rsctPackages...), nil
		}),
		plugin.Func(OpSubsystems, func(ctx context.Context) (*check.Record, error) {
			return checkSubsystems(ctx, env), nil
		}),
	}
}

// checkSubsystems queries every SRC subsystem with lssrc. The item
// Present flag means the subsystem is active.
func checkSubsystems(ctx context.Context, env plugin.Env) *check.Record {
	payload := check.ConfigList{Items: make([]check.Item, 0, len(subsystems))}
	for _, sub := range subsystems {
		active, err := subsystemActive(ctx, env, sub)
		if errors.Is(err, host.ErrCommandNotFound) {
			env.Logger.Warn("unable to query subsystems, lssrc not available")
			return check.New(subsystemsRec, check.StatusUnknown, payload)
		}
		if !active {
			env.Logger.Debug("subsystem is not active", slog.String("subsystem", sub))
		}
		payload.Items = append(payload.Items, check.Item{Value: sub, Present: active})
	}
	return check.New(subsystemsRec, payload.Status(), payload)
}

func subsystemActive(ctx context.Context, env plugin.Env, sub string) (bool, error) {
	res, err := env.Host.Run(ctx, "lssrc", "-s", sub)
	if err != nil {
		return false, err
	}
	for _, f := range strings.Fields(res.Stdout) {
		if f == activeMarker {
			return true, nil
		}
	}
	return false, nil
}

// repoMessage tells the operator how to enable the repository that
// ships the RSCT packages.
const repoMessage = "WARNING: the ibm-power-repo package must be enabled to install RSCT packages on this machine. " +
	"1. Download and install the ibm-power-repo package. " +
	"2. Run " + lopConfigure + " to accept the license. " +
	"See " + toolsSupport + " for details."

// Repair installs the RSCT packages and starts inactive subsystems. When
// the packages are missing and the IBM Power repository is not set up,
// nothing can be installed and the repair stops there.
func Repair(env plugin.Env) repair.Repairer {
	return repair.Func(func(ctx context.Context, inst *plugin.Instance) {
		fx := repair.NewFixer(ctx, inst)

		if !fx.OK(OpPackages) {
			if !fx.OK(OpPowerRepo) {
				fx.Mark(OpPowerRepo, check.NoteNotFixable, repoMessage)
				return
			}
			fx.Fix(OpPackages, packages.Install(env))
		}
		fx.Recheck(OpInstallPath, check.NoteFailedToFix)
		fx.Fix(OpSubsystems, func(ctx context.Context, rec *check.Record) error {
			list, _ := rec.Payload.(check.ConfigList)
			for _, sub := range list.Absent() {
				if err := env.Host.RunChecked(ctx, "startsrc", "-s", sub); err != nil {
					env.Logger.Warn("failed to start subsystem", slog.String("subsystem", sub))
				}
			}
			return nil
		})
	})
}
