// Package session houses concrete implementations of the core.Registry.
// The interface itself (and the Session struct) live in the core package to
// centralize domain contracts. Keeping only implementations here prevents
// higher level packages (collector, gateway) from depending on concrete
// storage.
//
// The registry is volatile: a process restart loses all live sessions, and
// long-term storage is delegated to the artifact stores. Alternative
// backends can live in sub-packages without changing any calling code;
// only the wiring layer decides which implementation to instantiate.
package session
