// Package build provides the canonical build entry point for specbuilder.
//
// A build validates its configuration, registers and orders the plugins,
// drives their lifecycle through the pipeline runner, synthesizes index files,
// optionally runs the writeFile phase, and finally records and publishes the
// outcome. All execution paths (CLI, watch mode, tests) route through Service.
//
// Builds share nothing: every Run creates its own registry, file graph and
// event bus.
package build
