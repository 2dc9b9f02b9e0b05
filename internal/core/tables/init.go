// Package tables registers the asset and employee table definitions with
// the core registry. Import it for its side effects wherever core.Lookup is
// used.
package tables
