// Package catalog lists the built-in validation plugins and their
// repairers.
package catalog

import (
	"github.com/Aman-CERP/servicereport/internal/plugin"
	"github.com/Aman-CERP/servicereport/internal/plugins/daemon"
	"github.com/Aman-CERP/servicereport/internal/plugins/dump"
	"github.com/Aman-CERP/servicereport/internal/plugins/htx"
	"github.com/Aman-CERP/servicereport/internal/plugins/packages"
	"github.com/Aman-CERP/servicereport/internal/plugins/rsct"
	"github.com/Aman-CERP/servicereport/internal/plugins/spyre"
	"github.com/Aman-CERP/servicereport/internal/repair"
)

// Validation returns every built-in plugin definition.
func Validation() []plugin.Definition {
	var defs []plugin.Definition
	for _, group := range [][]plugin.Definition{
		daemon.Definitions(),
		packages.Definitions(),
		dump.KdumpDefinitions(),
		dump.FADumpDefinitions(),
		htx.Definitions(),
		rsct.Definitions(),
		spyre.Definitions(),
	} {
		defs = append(defs, group...)
	}
	return defs
}

// Repair returns the repairer registry. Plugins without an entry are
// only validated.
func Repair() *repair.Registry {
	reg := repair.NewRegistry()
	for _, r := range []struct {
		name    string
		factory repair.Factory
	}{
		{daemon.Name, daemon.Repair},
		{packages.Name, packages.Repair},
		{dump.KdumpName, dump.KdumpRepair},
		{dump.FADumpName, dump.FADumpRepair},
		{rsct.Name, rsct.Repair},
		{spyre.Name, spyre.Repair},
	} {
		if err := reg.Register(r.name, r.factory); err != nil {
			panic(err)
		}
	}
	return reg
}
