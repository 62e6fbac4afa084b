package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/servicereport/internal/plugin"
	"github.com/Aman-CERP/servicereport/internal/scheme"
)

func TestValidation_AllDefinitionsLoad(t *testing.T) {
	// Given: the built-in catalogue and the built-in schemes
	known := scheme.NewSet()
	for _, s := range scheme.Builtin() {
		known[s.ID] = struct{}{}
	}
	reg := plugin.NewRegistry(plugin.WithKnownSchemes(known.Has))

	// When: discovering every definition
	defs := Validation()
	accepted := reg.Discover(defs...)

	// Then: none is rejected
	assert.Equal(t, len(defs), accepted)
}

func TestRepair_NamesMatchPlugins(t *testing.T) {
	names := make(map[string]bool)
	for _, def := range Validation() {
		names[def.Key()] = true
	}

	reg := Repair()
	assert.Len(t, reg.Names(), 6)
	for _, name := range reg.Names() {
		assert.True(t, names[plugin.Key(name)], "repairer %s has no plugin", name)
	}
}

func TestRepair_ValidateOnlyPlugins(t *testing.T) {
	_, ok := Repair().Lookup("htx")
	assert.False(t, ok)
}
