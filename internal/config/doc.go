// Package config loads and validates jellyhook configuration.
//
// Configuration is split in two layers:
//
//   - the daemon config (TOML): broker connection, media roots, scratch
//     space, media server credentials, tool binaries, logging, and
//     timing. Loaded once at start-up with Load.
//
//   - the webhook config (JSON or YAML): which webhooks are enabled,
//     their queue names, and the ordered job list per webhook. Loaded
//     once with LoadWebhooks and validated against an embedded JSON
//     Schema. Job option blocks stay schemaless; each job decodes its
//     own options at dispatch time.
//
// Both layers are immutable after load and safe for concurrent reads.
package config
