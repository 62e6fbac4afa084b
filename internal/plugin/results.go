package plugin

// Group is every instance recorded under one logical name.
type Group struct {
	Name      string
	Instances []*Instance
}

// Passed reports whether every instance in the group passed.
func (g *Group) Passed() bool {
	for _, inst := range g.Instances {
		if !inst.Passed() {
			return false
		}
	}
	return true
}

// Description returns the description of the first instance.
func (g *Group) Description() string {
	if len(g.Instances) == 0 {
		return ""
	}
	return g.Instances[0].Description()
}

// Results maps plugin names to instances in execution order.
type Results struct {
	groups []*Group
	index  map[string]*Group
	// Unknown lists selected names that matched no applicable plugin.
	Unknown []string
}

// NewResults returns an empty result set.
func NewResults() *Results {
	return &Results{index: make(map[string]*Group)}
}

// Add appends an instance under its logical name.
func (r *Results) Add(inst *Instance) {
	key := Key(inst.Name())
	g, ok := r.index[key]
	if !ok {
		g = &Group{Name: inst.Name()}
		r.index[key] = g
		r.groups = append(r.groups, g)
	}
	g.Instances = append(g.Instances, inst)
}

// Groups returns the groups in execution order.
func (r *Results) Groups() []*Group { return r.groups }

// Names returns the plugin names in execution order.
func (r *Results) Names() []string {
	names := make([]string, 0, len(r.groups))
	for _, g := range r.groups {
		names = append(names, g.Name)
	}
	return names
}

// Get returns the instances recorded under name, case-insensitively.
func (r *Results) Get(name string) []*Instance {
	if g, ok := r.index[Key(name)]; ok {
		return g.Instances
	}
	return nil
}

// Len returns the number of groups.
func (r *Results) Len() int { return len(r.groups) }

// Passed reports whether every recorded instance passed.
func (r *Results) Passed() bool {
	for _, g := range r.groups {
		if !g.Passed() {
			return false
		}
	}
	return true
}
