// Package model defines the domain types and value objects for the
// galley CLI.
//
// This package contains pure data structures with no external dependencies.
// The central entity is Recipe — a named shell command with an optional
// environment, prerequisites, and execution options — loaded from the
// project's recipe file and passed between the loader, graph, and executor.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
