// Package main hosts the imgcompare CLI entrypoint and command graph.
//
// The Cobra command tree compares image files from the terminal, checks
// labels against the special-case triggers, runs the HTTP API, and scaffolds
// configuration. Comparison logic lives in the root imgcompare package; this
// package only resolves configuration and logging and renders results.
package main
