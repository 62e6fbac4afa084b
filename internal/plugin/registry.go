package plugin

import (
	"fmt"
	"log/slog"

	srerrors "github.com/Aman-CERP/servicereport/internal/errors"
	"github.com/Aman-CERP/servicereport/internal/scheme"
)

// Registry holds the discovered plugin catalogue.
type Registry struct {
	logger *slog.Logger
	known  func(scheme.ID) bool
	defs   []Definition
	types  map[string]struct{}
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithKnownSchemes rejects definitions requiring undeclared schemes.
func WithKnownSchemes(known func(scheme.ID) bool) RegistryOption {
	return func(r *Registry) {
		r.known = known
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		logger: slog.Default(),
		types:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Discover adds well-formed definitions to the catalogue. A malformed
// definition is logged and skipped. Returns the number accepted.
func (r *Registry) Discover(defs ...Definition) int {
	accepted := 0
	for _, def := range defs {
		if err := r.check(def); err != nil {
			r.logger.Error("plugin failed to load", srerrors.FormatForLog(err)...)
			continue
		}
		r.types[def.Type] = struct{}{}
		r.defs = append(r.defs, def)
		accepted++
	}
	return accepted
}

func (r *Registry) check(def Definition) error {
	fail := func(msg string) error {
		return srerrors.PluginError(srerrors.ErrCodePluginDefinition, def.Type, msg, nil)
	}
	switch {
	case def.Type == "":
		return fail("plugin definition has no type")
	case def.New == nil:
		return fail("plugin definition has no factory")
	case def.Key() == "":
		return fail("plugin definition has no name")
	}
	if _, dup := r.types[def.Type]; dup {
		return fail("duplicate plugin type")
	}
	if r.known != nil {
		for _, id := range def.Schemes {
			if !r.known(id) {
				return fail(fmt.Sprintf("unknown scheme %q", id))
			}
		}
	}
	return nil
}

// Definitions returns the catalogue in discovery order.
func (r *Registry) Definitions() []Definition {
	return append([]Definition(nil), r.defs...)
}

// Applicable returns definitions whose schemes are all valid and whose
// dynamic predicate, if any, holds. Variants sharing a name are kept.
func (r *Registry) Applicable(valid scheme.Set, env Env) []Definition {
	var out []Definition
	for _, def := range r.defs {
		if !valid.Contains(def.Schemes...) {
			continue
		}
		if def.Applicable != nil && !r.applicable(def, env) {
			continue
		}
		out = append(out, def)
	}
	return out
}

func (r *Registry) applicable(def Definition, env Env) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("plugin applicability check panicked",
				slog.String("plugin", def.Type),
				slog.Any("panic", rec))
			ok = false
		}
	}()
	return def.Applicable(env)
}
