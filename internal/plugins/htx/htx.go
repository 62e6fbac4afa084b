// Package htx checks the Hardware Test eXecutive installation on Power.
// HTX problems are reported only; there is no repair.
package htx

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/servicereport/internal/check"
	"github.com/Aman-CERP/servicereport/internal/plugin"
	"github.com/Aman-CERP/servicereport/internal/scheme"
)

// Name is the logical plugin name.
const Name = "HTX"

const (
	service     = "htxd"
	installFile = "/var/log/htx_install_path"
)

// Definitions returns the HTX plugin, which must be requested explicitly.
func Definitions() []plugin.Definition {
	return []plugin.Definition{{
		Type:        Name,
		Description: "HTX configuration check",
		Optional:    true,
		Schemes:     []scheme.ID{scheme.PowerPC},
		New: func(env plugin.Env) (plugin.Plugin, error) {
			return New(env), nil
		},
	}}
}

// New returns the HTX checks.
func New(env plugin.Env) plugin.Plugin {
	return plugin.Checks{
		plugin.Func("install-path", func(context.Context) (*check.Record, error) {
			return installPath(env), nil
		}),
		plugin.Func("service", func(ctx context.Context) (*check.Record, error) {
			svc := env.Host.ServiceState(ctx, service)
			if !svc.Active.Passed() {
				env.Logger.Debug("HTX service is not active", slog.String("service", service))
			}
			return check.New("HTX service status", svc.Active, svc), nil
		}),
	}
}

// installPath checks that the directory recorded by the HTX installer
// exists.
func installPath(env plugin.Env) *check.Record {
	const name = "HTX Installation path"
	payload := check.File{Path: installFile}

	dir, err := env.Host.ReadTrimmed(installFile)
	if err != nil {
		env.Logger.Error("unable to locate HTX install path file", slog.String("path", installFile))
		return check.New(name, check.StatusFail, payload)
	}
	payload.Observed = dir
	if dir == "" || !env.Host.IsDir(dir) {
		env.Logger.Error("missing HTX installation directory", slog.String("dir", dir))
		return check.New(name, check.StatusFail, payload)
	}
	return check.New(name, check.StatusPass, payload)
}
