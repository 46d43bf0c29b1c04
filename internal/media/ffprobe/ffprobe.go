package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"jellyhook/internal/tools"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int         `json:"index"`
	CodecName    string      `json:"codec_name"`
	CodecType    string      `json:"codec_type"`
	Tags         StreamTags  `json:"tags"`
	Disposition  Disposition `json:"disposition"`
	SideDataList []SideData  `json:"side_data_list"`
}

// StreamTags carries the container-level tags attached to a stream.
type StreamTags struct {
	Language string `json:"language"`
	Title    string `json:"title"`
}

// Disposition carries the stream disposition flags (0/1 in ffprobe output).
type Disposition struct {
	Default  int `json:"default"`
	Original int `json:"original"`
	Forced   int `json:"forced"`
}

// SideData carries per-stream side data; only the Dolby Vision
// configuration record fields are mapped.
type SideData struct {
	SideDataType string `json:"side_data_type"`
	DVProfile    int    `json:"dv_profile"`
	DVLevel      int    `json:"dv_level"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

// Language returns the stream language tag, defaulting to "und" when the
// container carries none.
func (s Stream) Language() string {
	if tag := strings.TrimSpace(s.Tags.Language); tag != "" {
		return tag
	}
	return "und"
}

// IsDefault reports the default disposition flag.
func (s Stream) IsDefault() bool { return s.Disposition.Default != 0 }

// IsOriginal reports the original-language disposition flag.
func (s Stream) IsOriginal() bool { return s.Disposition.Original != 0 }

// DoviProfile returns the Dolby Vision profile of the first video stream,
// or false when the file carries no Dolby Vision configuration record.
func (r Result) DoviProfile() (int, bool) {
	for _, stream := range r.Streams {
		if !strings.EqualFold(stream.CodecType, "video") {
			continue
		}
		for _, side := range stream.SideDataList {
			if side.DVProfile != 0 {
				return side.DVProfile, true
			}
		}
		return 0, false
	}
	return 0, false
}

// Inspect runs ffprobe against the given path and parses all stream and
// format metadata.
func Inspect(ctx context.Context, runner tools.Runner, binary, path string) (Result, error) {
	return inspect(ctx, runner, binary, path, "-show_streams", "-show_format")
}

// InspectVideo runs ffprobe restricted to the primary video stream.
func InspectVideo(ctx context.Context, runner tools.Runner, binary, path string) (Result, error) {
	return inspect(ctx, runner, binary, path, "-show_streams", "-select_streams", "v:0")
}

func inspect(ctx context.Context, runner tools.Runner, binary, path string, selectors ...string) (Result, error) {
	if strings.TrimSpace(path) == "" {
		return Result{}, errors.New("ffprobe: empty path")
	}
	if binary == "" {
		binary = "ffprobe"
	}

	args := append([]string{"-v", "error", "-print_format", "json"}, selectors...)
	args = append(args, path)

	output, err := runner.Run(ctx, binary, args...)
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect %q: %w", path, err)
	}

	var result Result
	if err := json.Unmarshal([]byte(output.Stdout), &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}
