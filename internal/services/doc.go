// Package services defines the contract shared by all pipeline jobs.
//
// A job is constructed from a webhook event by its Factory. Construction
// may legitimately decline by returning (nil, nil): the item is not
// eligible and the orchestrator moves on. The Registry maps configured
// job names to definitions; unknown names are a runtime error path, not
// a load failure.
//
// Sentinel errors classify failures for logging and for the orchestrator's
// partial-failure policy. Wrap tags an error with job context while
// preserving the sentinel for errors.Is checks.
package services
