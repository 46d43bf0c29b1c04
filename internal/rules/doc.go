// Package rules implements the declarative matching engine shared by the
// metadata and playlist jobs.
//
// Two rule families exist: path rules match on a filesystem path prefix,
// pattern rules match a regular expression against a named event field.
// Matches are collected in declaration order (path rules before pattern
// rules) and applied in that order, so a later replacing rule discards the
// effect of earlier merging ones. Applying the same match set twice always
// yields the same value set.
//
// The package also evaluates the restricted condition dialect used by
// playlist assignment: numeric range predicates over runtime and release
// year plus set predicates over genres, tags, and item types. Predicates
// over unavailable values fail closed.
package rules
