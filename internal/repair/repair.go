// Package repair pairs failing validation plugins with repair plugins of
// the same logical name and lets them remediate and re-verify records.
package repair

import (
	"context"
	"fmt"
	"log/slog"

	srerrors "github.com/Aman-CERP/servicereport/internal/errors"
	"github.com/Aman-CERP/servicereport/internal/plugin"
)

// Repairer remediates the records of one validation plugin instance.
type Repairer interface {
	Repair(ctx context.Context, inst *plugin.Instance)
}

// Factory builds a Repairer for one instance.
type Factory func(env plugin.Env) Repairer

// Func adapts a function to a Repairer.
type Func func(ctx context.Context, inst *plugin.Instance)

// Repair implements Repairer.
func (f Func) Repair(ctx context.Context, inst *plugin.Instance) { f(ctx, inst) }

// Registry maps logical plugin names to repair factories. Repairs are
// matched by name only; schemes are not consulted.
type Registry struct {
	factories map[string]Factory
	names     []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a repair factory for a logical plugin name.
func (r *Registry) Register(name string, f Factory) error {
	key := plugin.Key(name)
	if key == "" || f == nil {
		return srerrors.PluginError(srerrors.ErrCodePluginDefinition, name, "invalid repair plugin", nil)
	}
	if _, dup := r.factories[key]; dup {
		return srerrors.PluginError(srerrors.ErrCodePluginDefinition, name, "duplicate repair plugin", nil)
	}
	r.factories[key] = f
	r.names = append(r.names, name)
	return nil
}

// Lookup returns the factory registered for name, case-insensitively.
func (r *Registry) Lookup(name string) (Factory, bool) {
	f, ok := r.factories[plugin.Key(name)]
	return f, ok
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string { return append([]string(nil), r.names...) }

// Engine runs repairs over validation results.
type Engine struct {
	registry *Registry
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine returns an engine over the repair registry.
func NewEngine(registry *Registry, opts ...Option) *Engine {
	e := &Engine{registry: registry, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RepairAll remediates every non-passing instance in place. Instances
// that already pass are left alone.
func (e *Engine) RepairAll(ctx context.Context, results *plugin.Results) {
	for _, g := range results.Groups() {
		factory, ok := e.registry.Lookup(g.Name)
		if !ok {
			e.logger.Debug("no repair plugin", slog.String("plugin", g.Name))
			continue
		}
		for _, inst := range g.Instances {
			if inst.Passed() || inst.Plugin() == nil {
				continue
			}
			e.repair(ctx, factory, inst)
		}
	}
}

func (e *Engine) repair(ctx context.Context, factory Factory, inst *plugin.Instance) {
	logger := inst.Env().Logger
	defer func() {
		if rec := recover(); rec != nil {
			err := srerrors.PluginError(srerrors.ErrCodePluginSetup, inst.Type(), "repair panicked", fmt.Errorf("%v", rec))
			logger.Error("repair aborted", srerrors.FormatForLog(err)...)
		}
	}()

	logger.Info("repair started", slog.String("type", inst.Type()))
	factory(inst.Env()).Repair(ctx, inst)
	logger.Info("repair finished",
		slog.String("type", inst.Type()),
		slog.String("status", inst.Status().String()))
}
