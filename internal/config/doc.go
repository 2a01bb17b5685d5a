// Package config loads, normalizes, and validates imgcompare configuration.
//
// Defaults are declared on the struct fields and applied with go-defaults;
// a TOML file, when present, overrides them. The Config type converts into
// the engine's Parameters, classifier, and progress ticker so callers never
// parse raw values themselves.
package config
