// Package event models the webhook payload delivered on the message queues.
//
// Payloads are schemaless JSON objects produced by the media server's
// webhook plugin. Accessors tolerate missing or oddly typed keys so each
// job can pull just the fields it needs and decline cleanly when a field
// is absent.
package event
