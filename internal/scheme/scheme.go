// Package scheme declares capability schemes, named predicates over host
// facts that gate which plugins apply to the running machine.
package scheme

import (
	"log/slog"
	"sort"
	"strings"
)

// ID names a capability scheme.
type ID string

// Built-in scheme identifiers.
const (
	RHEL        ID = "RHEL"
	Fedora      ID = "Fedora"
	SUSE        ID = "SUSE"
	Ubuntu      ID = "Ubuntu"
	PowerPC     ID = "PowerPC"
	PowerNV     ID = "PowerNV"
	PSeries     ID = "PSeries"
	FSPSPowerNV ID = "FSPSPowerNV"
	BMCPowerNV  ID = "BMCPowerNV"
)

// Facts is the host information schemes are evaluated against.
type Facts interface {
	Distro() string
	Machine() string
	Platform() string
	ServiceProcessor() string
}

// Scheme is a named predicate, optionally specializing a parent scheme.
type Scheme struct {
	ID          ID
	Description string
	// Parent must be valid for this scheme to be valid.
	Parent ID
	// Valid is a pure function of host facts.
	Valid func(Facts) bool
}

// Set is a set of scheme identifiers.
type Set map[ID]struct{}

// NewSet builds a set from ids.
func NewSet(ids ...ID) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s Set) Has(id ID) bool {
	_, ok := s[id]
	return ok
}

// Contains reports whether every id is in the set.
func (s Set) Contains(ids ...ID) bool {
	for _, id := range ids {
		if !s.Has(id) {
			return false
		}
	}
	return true
}

// Sorted returns the ids in lexicographic order.
func (s Set) Sorted() []ID {
	out := make([]ID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func distroContains(sub string) func(Facts) bool {
	return func(f Facts) bool { return strings.Contains(f.Distro(), sub) }
}

// Builtin returns the built-in scheme catalogue.
func Builtin() []Scheme {
	return []Scheme{
		{ID: RHEL, Description: "Red Hat Enterprise Linux", Valid: distroContains("Red Hat")},
		{ID: Fedora, Description: "Fedora", Valid: distroContains("Fedora")},
		{ID: SUSE, Description: "SUSE Linux", Valid: distroContains("SUSE")},
		{ID: Ubuntu, Description: "Ubuntu", Valid: distroContains("Ubuntu")},
		{
			ID:          PowerPC,
			Description: "64-bit PowerPC",
			Valid:       func(f Facts) bool { return strings.Contains(f.Machine(), "ppc64") },
		},
		{
			ID:          PowerNV,
			Description: "Bare-metal PowerNV platform",
			Parent:      PowerPC,
			Valid:       func(f Facts) bool { return f.Platform() == "powernv" },
		},
		{
			ID:          PSeries,
			Description: "PowerVM pSeries LPAR",
			Parent:      PowerPC,
			Valid:       func(f Facts) bool { return f.Platform() == "pseries" },
		},
		{
			ID:          FSPSPowerNV,
			Description: "PowerNV with an FSP service processor",
			Parent:      PowerNV,
			Valid:       func(f Facts) bool { return f.ServiceProcessor() == "fsps" },
		},
		{
			ID:          BMCPowerNV,
			Description: "PowerNV with a BMC service processor",
			Parent:      PowerNV,
			Valid:       func(f Facts) bool { return f.ServiceProcessor() == "bmc" },
		},
	}
}

// Resolver evaluates schemes against host facts. Results are memoized
// for the lifetime of the Resolver.
type Resolver struct {
	facts   Facts
	logger  *slog.Logger
	schemes map[ID]Scheme
	order   []ID
	memo    map[ID]bool
}

// NewResolver returns a resolver over schemes. Later duplicates of an ID
// replace earlier ones.
func NewResolver(facts Facts, logger *slog.Logger, schemes ...Scheme) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		facts:   facts,
		logger:  logger,
		schemes: make(map[ID]Scheme, len(schemes)),
		memo:    make(map[ID]bool, len(schemes)),
	}
	for _, s := range schemes {
		if _, dup := r.schemes[s.ID]; !dup {
			r.order = append(r.order, s.ID)
		}
		r.schemes[s.ID] = s
	}
	return r
}

// Known reports whether id is declared.
func (r *Resolver) Known(id ID) bool {
	_, ok := r.schemes[id]
	return ok
}

// Valid evaluates one scheme, parent first.
func (r *Resolver) Valid(id ID) bool {
	return r.valid(id, map[ID]bool{})
}

func (r *Resolver) valid(id ID, visiting map[ID]bool) bool {
	if v, ok := r.memo[id]; ok {
		return v
	}
	s, ok := r.schemes[id]
	if !ok {
		r.logger.Debug("unknown scheme", slog.String("scheme", string(id)))
		return false
	}
	if visiting[id] {
		r.logger.Warn("scheme parent cycle", slog.String("scheme", string(id)))
		return false
	}
	visiting[id] = true

	result := true
	if s.Parent != "" {
		result = r.valid(s.Parent, visiting)
	}
	if result {
		result = r.eval(s)
	}
	r.memo[id] = result
	return result
}

func (r *Resolver) eval(s Scheme) (ok bool) {
	if s.Valid == nil {
		return false
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("scheme predicate panicked",
				slog.String("scheme", string(s.ID)),
				slog.Any("panic", rec))
			ok = false
		}
	}()
	return s.Valid(r.facts)
}

// Resolve returns the set of valid schemes.
func (r *Resolver) Resolve() Set {
	valid := make(Set)
	for _, id := range r.order {
		if r.Valid(id) {
			valid[id] = struct{}{}
		}
	}
	r.logger.Debug("schemes resolved", slog.Any("valid", valid.Sorted()))
	return valid
}
