// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video/subtitle stream properties, including
//     disposition flags, language tags, and Dolby Vision side data
//
// Primary entry point:
//   - Inspect: executes ffprobe through a tools.Runner and parses the output
package ffprobe
