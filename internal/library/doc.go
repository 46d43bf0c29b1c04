// Package library locates media files on disk from webhook metadata.
//
// Items live in a "Title (Year)" directory under one of the configured
// media roots, with colons rewritten to " -" by the library manager. The
// lookup contract is strict: exactly one video file must match or the
// lookup fails, so jobs never mutate an ambiguous target.
package library
