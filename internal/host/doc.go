// Package host gives checks and repairs access to the machine being
// audited: a root-prefixed view of the filesystem, external command
// execution, memoized host facts, systemd unit control and the
// distribution package manager.
//
// Every probe tolerates missing files and commands. Fact probes return
// empty values, status probes return check.StatusUnknown.
package host
