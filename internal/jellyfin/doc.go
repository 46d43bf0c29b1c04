// Package jellyfin is a thin HTTP client for the media server API
// operations the pipeline jobs need: reading an item, rewriting its
// metadata fields, and adding it to a playlist.
package jellyfin
