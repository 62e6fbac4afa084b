// Package validate orders the applicable plugins, runs their checks and
// assembles the name-keyed results.
package validate

import (
	"context"
	"log/slog"
	"sort"

	"github.com/Aman-CERP/servicereport/internal/plugin"
	"github.com/Aman-CERP/servicereport/internal/scheme"
)

// Selection restricts which plugins run.
type Selection struct {
	// Plugins, when non-empty, is the exact ordered list to run.
	Plugins []string
	// Optional enables optional plugins by name.
	Optional []string
	// All runs every applicable plugin, optional ones included.
	All bool
}

// Listing describes an applicable plugin without running it.
type Listing struct {
	Name        string `json:"name"`
	Tag         string `json:"tag"`
	Description string `json:"description"`
}

// Tags used by Listing.
const (
	TagMandatory = "M"
	TagOptional  = "O"
)

// Validator runs validation plugins.
type Validator struct {
	registry *plugin.Registry
	resolver *scheme.Resolver
	env      plugin.Env
	logger   *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the validator logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// New returns a Validator over the registry catalogue.
func New(registry *plugin.Registry, resolver *scheme.Resolver, env plugin.Env, opts ...Option) *Validator {
	v := &Validator{
		registry: registry,
		resolver: resolver,
		env:      env,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.env.Logger == nil {
		v.env.Logger = v.logger
	}
	return v
}

type entry struct {
	name string
	defs []plugin.Definition
}

func (e *entry) optional() bool {
	return len(e.defs) > 0 && e.defs[0].Optional
}

// directory groups the applicable definitions by logical name and
// returns the keys in lexicographic order.
func (v *Validator) directory() (map[string]*entry, []string) {
	valid := v.resolver.Resolve()
	dir := make(map[string]*entry)
	var keys []string
	for _, def := range v.registry.Applicable(valid, v.env) {
		key := def.Key()
		e, ok := dir[key]
		if !ok {
			e = &entry{name: def.LogicalName()}
			dir[key] = e
			keys = append(keys, key)
		}
		e.defs = append(e.defs, def)
	}
	sort.Strings(keys)
	return dir, keys
}

// List returns every applicable plugin in name order.
func (v *Validator) List() []Listing {
	dir, keys := v.directory()
	out := make([]Listing, 0, len(keys))
	for _, key := range keys {
		e := dir[key]
		tag := TagMandatory
		if e.optional() {
			tag = TagOptional
		}
		out = append(out, Listing{Name: e.name, Tag: tag, Description: e.defs[0].Description})
	}
	return out
}

// Validate runs the selected plugins and returns their instances keyed
// by logical name, in execution order.
func (v *Validator) Validate(ctx context.Context, sel Selection) *plugin.Results {
	dir, keys := v.directory()
	results := plugin.NewResults()

	for _, step := range v.plan(dir, keys, sel, results) {
		for _, def := range step.defs {
			inst := plugin.NewInstance(def, v.env)
			inst.Validate(ctx)
			results.Add(inst)
			v.logger.Info("plugin validated",
				slog.String("plugin", inst.Name()),
				slog.String("type", inst.Type()),
				slog.String("status", inst.Status().String()),
				slog.Int("checks", len(inst.Records())),
				slog.Int("failed_ops", len(inst.Failures())))
		}
	}
	return results
}

// plan decides which definitions run and in which order.
func (v *Validator) plan(dir map[string]*entry, keys []string, sel Selection, results *plugin.Results) []*entry {
	enabled := make(map[string]bool, len(sel.Optional))
	for _, name := range sel.Optional {
		enabled[plugin.Key(name)] = true
	}

	if len(sel.Plugins) > 0 {
		var steps []*entry
		seen := make(map[string]bool)
		for _, name := range append(append([]string{}, sel.Plugins...), sel.Optional...) {
			key := plugin.Key(name)
			if seen[key] {
				continue
			}
			seen[key] = true
			e, ok := dir[key]
			if !ok {
				v.warnUnknown(name, results)
				continue
			}
			steps = append(steps, e)
		}
		return steps
	}

	for _, name := range sel.Optional {
		if _, ok := dir[plugin.Key(name)]; !ok {
			v.warnUnknown(name, results)
		}
	}

	var steps []*entry
	for _, key := range keys {
		e := dir[key]
		var defs []plugin.Definition
		for _, def := range e.defs {
			if def.Optional && !sel.All && !enabled[key] {
				v.logger.Debug("optional plugin skipped", slog.String("plugin", def.Type))
				continue
			}
			defs = append(defs, def)
		}
		if len(defs) > 0 {
			steps = append(steps, &entry{name: e.name, defs: defs})
		}
	}
	return steps
}

func (v *Validator) warnUnknown(name string, results *plugin.Results) {
	v.logger.Warn("unknown or inapplicable plugin", slog.String("plugin", name))
	results.Unknown = append(results.Unknown, name)
}
