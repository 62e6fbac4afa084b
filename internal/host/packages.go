package host

import (
	"context"
	"strings"

	"github.com/Aman-CERP/servicereport/internal/check"
	srerrors "github.com/Aman-CERP/servicereport/internal/errors"
)

// PackageManager queries and installs distribution packages.
type PackageManager struct {
	Name    string
	query   []string
	install []string
	// installedMarker, when set, must appear in query output.
	installedMarker string
}

var (
	rpmYum = PackageManager{Name: "yum", query: []string{"rpm", "-q"}, install: []string{"yum", "install", "-y"}}
	rpmDnf = PackageManager{Name: "dnf", query: []string{"rpm", "-q"}, install: []string{"dnf", "install", "-y"}}
	zypper = PackageManager{Name: "zypper", query: []string{"rpm", "-q"}, install: []string{"zypper", "--non-interactive", "install"}}
	apt    = PackageManager{
		Name:            "apt",
		query:           []string{"dpkg", "-s"},
		install:         []string{"apt-get", "install", "-y"},
		installedMarker: "Status: install ok installed",
	}
)

// PackageManager selects the package manager for the host distribution.
func (h *Host) PackageManager() (PackageManager, bool) {
	distro := h.facts.Distro()
	switch {
	case strings.Contains(distro, "Red Hat"):
		return rpmYum, true
	case strings.Contains(distro, "Fedora"):
		return rpmDnf, true
	case strings.Contains(distro, "SUSE"):
		return zypper, true
	case strings.Contains(distro, "Ubuntu"):
		return apt, true
	default:
		return PackageManager{}, false
	}
}

// PackageInstalled reports whether a package is installed.
func (h *Host) PackageInstalled(ctx context.Context, name string) check.Status {
	pm, ok := h.PackageManager()
	if !ok {
		return check.StatusUnknown
	}
	args := append(append([]string{}, pm.query[1:]...), name)
	res, err := h.Run(ctx, pm.query[0], args...)
	if err != nil {
		return check.StatusUnknown
	}
	if !res.OK() {
		return check.StatusFail
	}
	if pm.installedMarker != "" {
		return check.FromBool(strings.Contains(res.Stdout, pm.installedMarker))
	}
	return check.StatusPass
}

// PackageStates probes several packages in order.
func (h *Host) PackageStates(ctx context.Context, names ...string) check.Packages {
	p := check.Packages{Packages: make([]check.PackageState, 0, len(names))}
	for _, name := range names {
		p.Packages = append(p.Packages, check.PackageState{Name: name, Installed: h.PackageInstalled(ctx, name)})
	}
	return p
}

// InstallPackage installs a package non-interactively.
func (h *Host) InstallPackage(ctx context.Context, name string) error {
	pm, ok := h.PackageManager()
	if !ok {
		return srerrors.New(srerrors.ErrCodeProbeFailed, "no package manager for this distribution", nil).
			WithDetail("package", name)
	}
	args := append(append([]string{}, pm.install[1:]...), name)
	return h.RunChecked(ctx, pm.install[0], args...)
}
