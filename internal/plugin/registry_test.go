package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/servicereport/internal/scheme"
)

func newDef(typ, name string, schemes ...scheme.ID) Definition {
	return Definition{
		Type:    typ,
		Name:    name,
		Schemes: schemes,
		New:     func(Env) (Plugin, error) { return Checks(nil), nil },
	}
}

func TestRegistry_DiscoverSkipsMalformed(t *testing.T) {
	known := scheme.NewSet(scheme.RHEL, scheme.PowerPC)
	r := NewRegistry(WithKnownSchemes(known.Has))

	// When: discovering a mix of good and broken definitions
	n := r.Discover(
		newDef("KdumpRHEL", "Kdump", scheme.RHEL),
		Definition{Type: "NoFactory"},
		newDef("", "Nameless"),
		newDef("Bogus", "", "Solaris"),
		newDef("KdumpRHEL", "Kdump", scheme.RHEL),
		newDef("HTX", "", scheme.PowerPC),
	)

	// Then: only the well-formed, unique ones survive
	assert.Equal(t, 2, n)
	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "KdumpRHEL", defs[0].Type)
	assert.Equal(t, "HTX", defs[1].LogicalName())
}

func TestRegistry_ApplicableKeepsVariants(t *testing.T) {
	r := NewRegistry()
	r.Discover(
		newDef("PackageRHEL", "Package", scheme.RHEL),
		newDef("PackagePowerPC", "Package", scheme.PowerPC),
		newDef("PackageUbuntu", "Package", scheme.Ubuntu),
		newDef("PowerNVDaemon", "Daemon", scheme.PowerNV, scheme.PowerPC),
	)

	defs := r.Applicable(scheme.NewSet(scheme.RHEL, scheme.PowerPC), Env{})

	var types []string
	for _, d := range defs {
		types = append(types, d.Type)
	}
	assert.Equal(t, []string{"PackageRHEL", "PackagePowerPC"}, types)
}

func TestRegistry_ApplicablePredicate(t *testing.T) {
	gated := newDef("FADumpRHEL", "FADump", scheme.RHEL)
	gated.Applicable = func(Env) bool { return false }
	panicky := newDef("Spyre", "")
	panicky.Applicable = func(Env) bool { panic("no sysfs") }
	open := newDef("KdumpRHEL", "Kdump", scheme.RHEL)
	open.Applicable = func(Env) bool { return true }

	r := NewRegistry()
	r.Discover(gated, panicky, open)

	defs := r.Applicable(scheme.NewSet(scheme.RHEL), Env{})

	require.Len(t, defs, 1)
	assert.Equal(t, "KdumpRHEL", defs[0].Type)
}

func TestResults_GroupsByNameInOrder(t *testing.T) {
	res := NewResults()
	res.Add(NewInstance(newDef("PackageRHEL", "Package"), Env{}))
	res.Add(NewInstance(newDef("Kdump", ""), Env{}))
	res.Add(NewInstance(newDef("PackagePowerPC", "Package"), Env{}))

	assert.Equal(t, []string{"Package", "Kdump"}, res.Names())
	assert.Len(t, res.Get("package"), 2)
	assert.Len(t, res.Get("KDUMP"), 1)
	assert.Nil(t, res.Get("htx"))
	assert.Equal(t, 2, res.Len())
}
