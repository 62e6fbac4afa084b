// Package plugin defines validation plugins and the registry that
// narrows the declared catalogue to the plugins applicable on a host.
//
// A plugin type is described by a Definition: its logical name, the
// capability schemes it requires, an optional dynamic applicability
// predicate and a factory. The factory returns a Plugin exposing an
// ordered list of check operations. Several definitions may share one
// logical name; each applicable one becomes its own Instance.
package plugin
