// Package logging provides the structured, subsystem-tagged logging façade
// used across corium.
//
// The core never constructs a concrete logger itself — the core packages
// take a *slog.Logger from their caller (falling back to slog.Default(),
// which Init replaces) and do not import this package. Collaborators such
// as the demo command use the small package-level helpers below or, via
// Logr, a logr.Logger. Swapping the underlying handler (text, JSON, a TUI
// channel, ...) never touches call sites.
package logging
