// Package main hosts the retake CLI entrypoint and command graph.
//
// The Cobra-based command tree drives rebuild runs, one-off selection traces,
// standalone defect scans, session history rendering, and configuration
// scaffolding. It centralizes configuration resolution and logging setup so
// subcommands can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
