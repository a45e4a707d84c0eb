// Package graph resolves recipe prerequisites into execution plans.
//
// The prerequisite relation ("needs") forms a directed acyclic graph.
// This package validates it (unknown references, duplicates, cycles
// reported with the offending path) and produces a deterministic
// dependencies-first execution order for a set of target recipes. The
// graph is immutable once built; the executor gates parallel steps on
// Needs without mutating it.
package graph
