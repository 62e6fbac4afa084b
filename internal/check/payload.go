package check

// Kind identifies the shape of a record payload.
type Kind string

// Payload kinds.
const (
	KindService    Kind = "service"
	KindPackage    Kind = "package"
	KindFile       Kind = "file"
	KindAttributes Kind = "attributes"
	KindFiles      Kind = "files"
	KindConfigList Kind = "config_list"
)

// Payload is the kind-specific diagnostic data carried by a record.
type Payload interface {
	Kind() Kind
}

// Service describes a systemd unit.
type Service struct {
	Unit    string `json:"unit"`
	Enabled Status `json:"enabled"`
	Active  Status `json:"active"`
}

// Kind implements Payload.
func (Service) Kind() Kind { return KindService }

// Status combines the enabled and active states.
func (s Service) Status() Status { return All(s.Enabled, s.Active) }

// PackageState is the install state of one package.
type PackageState struct {
	Name      string `json:"name"`
	Installed Status `json:"installed"`
}

// Packages lists package install states in check order.
type Packages struct {
	Packages []PackageState `json:"packages"`
}

// Kind implements Payload.
func (Packages) Kind() Kind { return KindPackage }

// Status combines the install states.
func (p Packages) Status() Status {
	statuses := make([]Status, 0, len(p.Packages))
	for _, pkg := range p.Packages {
		statuses = append(statuses, pkg.Installed)
	}
	return All(statuses...)
}

// Missing returns the names of packages known not to be installed.
func (p Packages) Missing() []string {
	var names []string
	for _, pkg := range p.Packages {
		if pkg.Installed == StatusFail {
			names = append(names, pkg.Name)
		}
	}
	return names
}

// File compares an observed file or sysfs value with the expected one.
type File struct {
	Path     string `json:"path"`
	Expected string `json:"expected,omitempty"`
	Observed string `json:"observed,omitempty"`
}

// Kind implements Payload.
func (File) Kind() Kind { return KindFile }

// Attribute is one validated configuration key.
type Attribute struct {
	Key      string `json:"key"`
	Status   Status `json:"status"`
	Current  string `json:"current"`
	Possible string `json:"possible,omitempty"`
}

// Attributes holds the validated keys of one configuration file.
type Attributes struct {
	Path  string      `json:"path"`
	Attrs []Attribute `json:"attributes"`
}

// Kind implements Payload.
func (Attributes) Kind() Kind { return KindAttributes }

// Status combines the attribute statuses. No attributes is a pass.
func (a Attributes) Status() Status {
	statuses := make([]Status, 0, len(a.Attrs))
	for _, attr := range a.Attrs {
		statuses = append(statuses, attr.Status)
	}
	return All(statuses...)
}

// Lookup returns the attribute stored under key.
func (a Attributes) Lookup(key string) (Attribute, bool) {
	for _, attr := range a.Attrs {
		if attr.Key == key {
			return attr, true
		}
	}
	return Attribute{}, false
}

// FileOutcome is the per-file result of a multi-file check.
type FileOutcome struct {
	Path string `json:"path"`
	OK   bool   `json:"ok"`
}

// Files holds per-file outcomes in check order.
type Files struct {
	Files []FileOutcome `json:"files"`
}

// Kind implements Payload.
func (Files) Kind() Kind { return KindFiles }

// Failing returns the paths whose outcome is false.
func (f Files) Failing() []string {
	var paths []string
	for _, fo := range f.Files {
		if !fo.OK {
			paths = append(paths, fo.Path)
		}
	}
	return paths
}

// Item is one entry of a config list.
type Item struct {
	Value   string `json:"item"`
	Present bool   `json:"present"`
}

// ConfigList holds expected items and whether each is present.
type ConfigList struct {
	Path  string `json:"path,omitempty"`
	Items []Item `json:"items"`
}

// Kind implements Payload.
func (ConfigList) Kind() Kind { return KindConfigList }

// Status is a pass when every item is present.
func (c ConfigList) Status() Status {
	for _, it := range c.Items {
		if !it.Present {
			return StatusFail
		}
	}
	return StatusPass
}

// Absent returns the items that are not present.
func (c ConfigList) Absent() []string {
	var out []string
	for _, it := range c.Items {
		if !it.Present {
			out = append(out, it.Value)
		}
	}
	return out
}
