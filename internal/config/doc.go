// Package config loads the small bootstrap configuration a container needs
// before it can construct its dispatcher: queue sizing, the default event
// priority, and an optional fixed container id for reproducible tests.
//
// This is deliberately not a general configuration system — §6 of the
// specification assigns CLI flags, configuration files and environment
// variables to collaborators. What lives here is bootstrap wiring only; no
// service ever reads from it.
package config
