// Package types defines the core data structures for the AI Stream Kit.
// It includes the canonical stream chunk shape, the pull-based chunk stream
// interface, token usage accounting, and the typed errors shared across
// all decoder implementations.
package types
