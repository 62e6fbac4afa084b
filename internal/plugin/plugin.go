package plugin

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/servicereport/internal/check"
	"github.com/Aman-CERP/servicereport/internal/host"
	"github.com/Aman-CERP/servicereport/internal/scheme"
)

// Env is passed to every plugin and repair invocation. Logger is already
// tagged with the plugin name.
type Env struct {
	Host   *host.Host
	Logger *slog.Logger
	// Warnings receives critical operator warnings. Nil means stderr.
	Warnings io.Writer
}

// WithPlugin returns a copy of env whose logger is tagged with name.
func (e Env) WithPlugin(name string) Env {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e.Logger = logger.With(slog.String("plugin", name))
	return e
}

// Op is one named check operation. A nil record, or a record without a
// name, means the check does not apply on this host.
type Op struct {
	ID  string
	Run func(ctx context.Context) (*check.Record, error)
}

// Plugin is an instantiated validation plugin.
type Plugin interface {
	Checks() []Op
}

// Definition describes a plugin type.
type Definition struct {
	// Type uniquely identifies the definition, e.g. "KdumpRHEL".
	Type string
	// Name is the logical name shared by variants. Defaults to Type.
	Name        string
	Description string
	Optional    bool
	// Schemes must all be valid for the plugin to apply.
	Schemes []scheme.ID
	// Applicable optionally gates on dynamic host conditions.
	Applicable func(env Env) bool
	New        func(env Env) (Plugin, error)
}

// LogicalName returns Name, or Type when Name is empty.
func (d Definition) LogicalName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Type
}

// Key is the case-insensitive lookup key of the logical name.
func (d Definition) Key() string {
	return Key(d.LogicalName())
}

// Key normalizes a plugin name for lookups.
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Func adapts a function to an Op.
func Func(id string, fn func(ctx context.Context) (*check.Record, error)) Op {
	return Op{ID: id, Run: fn}
}

// Checks is a Plugin backed by a fixed list of operations.
type Checks []Op

// Checks implements Plugin.
func (c Checks) Checks() []Op { return c }
