// Package trackclean implements the audio/subtitle track pruning job.
// Video tracks are always kept; audio and subtitle tracks survive only
// when a keep rule claims them. The remux is a stream copy, never a
// re-encode.
package trackclean

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/text/language"

	"jellyhook/internal/config"
	"jellyhook/internal/event"
	"jellyhook/internal/fileutil"
	"jellyhook/internal/library"
	"jellyhook/internal/logging"
	"jellyhook/internal/media/ffprobe"
	"jellyhook/internal/services"
)

// Name is the job name used in webhook configuration.
const Name = "media_track_clean"

// KeepRules decides which audio and subtitle tracks survive.
type KeepRules struct {
	KeepOriginal  bool
	KeepDefault   bool
	AudioLangs    []language.Tag
	SubtitleLangs []language.Tag
}

// Keep reports whether the stream survives pruning.
func (r KeepRules) Keep(stream ffprobe.Stream) bool {
	switch stream.CodecType {
	case "video":
		return true
	case "audio":
		return r.keepFlagged(stream) || langMatches(stream.Language(), r.AudioLangs)
	case "subtitle":
		return r.keepFlagged(stream) || langMatches(stream.Language(), r.SubtitleLangs)
	default:
		return false
	}
}

func (r KeepRules) keepFlagged(stream ffprobe.Stream) bool {
	if r.KeepOriginal && stream.IsOriginal() {
		return true
	}
	return r.KeepDefault && stream.IsDefault()
}

// langMatches compares by canonical base language, so "eng", "en" and
// regional variants all match a configured "en".
func langMatches(tag string, keep []language.Tag) bool {
	parsed := language.Make(tag)
	if parsed == language.Und {
		return false
	}
	base, _ := parsed.Base()
	for _, candidate := range keep {
		candidateBase, _ := candidate.Base()
		if base == candidateBase {
			return true
		}
	}
	return false
}

// ParseRules reads the keep rules from the job's option block. Unknown
// language codes are a configuration error.
func ParseRules(opts config.Options) (KeepRules, error) {
	rules := KeepRules{
		KeepOriginal: opts.Bool("keep_original", true),
		KeepDefault:  opts.Bool("keep_default", true),
	}
	var err error
	if rules.AudioLangs, err = parseLangs(opts.StringSlice("keep_audio_langs")); err != nil {
		return KeepRules{}, fmt.Errorf("keep_audio_langs: %w", err)
	}
	if rules.SubtitleLangs, err = parseLangs(opts.StringSlice("keep_sub_langs")); err != nil {
		return KeepRules{}, fmt.Errorf("keep_sub_langs: %w", err)
	}
	return rules, nil
}

func parseLangs(codes []string) ([]language.Tag, error) {
	tags := make([]language.Tag, 0, len(codes))
	for _, code := range codes {
		tag, err := language.Parse(code)
		if err != nil {
			return nil, fmt.Errorf("language %q: %w", code, err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// Job prunes one file's tracks in place.
type Job struct {
	env     services.Env
	item    library.Item
	rules   KeepRules
	scratch string
	log     *slog.Logger
}

// New builds a track clean job for one event.
func New(ctx context.Context, env services.Env, payload event.Payload, opts config.Options) (services.Job, error) {
	rules, err := ParseRules(opts)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, Name, "parse options", "", err)
	}

	flat := payload.Flattened()
	year, _ := flat.Year()
	item, err := library.Locate(env.Config.Paths.MediaRoots, flat.Name(), year)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, Name, "locate item", "", err)
	}

	scratch, err := os.MkdirTemp(env.Config.Paths.ScratchDir, "trackclean-")
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, Name, "create scratch directory", "", err)
	}

	return &Job{
		env:     env,
		item:    item,
		rules:   rules,
		scratch: scratch,
		log: env.Logger.With(
			logging.FieldJob, Name,
			logging.FieldItemID, flat.ItemID(),
			"title", item.FullTitle(),
		),
	}, nil
}

// Name implements services.Job.
func (j *Job) Name() string { return Name }

// ScratchDir implements services.Job. The orchestrator owns cleanup.
func (j *Job) ScratchDir() string { return j.scratch }

// Execute probes the container, selects survivors, and remuxes only when
// at least one track would actually be dropped.
func (j *Job) Execute(ctx context.Context) error {
	result, err := ffprobe.Inspect(ctx, j.env.Runner, j.env.Config.Tools.FFprobe, j.item.Path)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, Name, "probe streams", "", err)
	}

	considered, kept := j.selectStreams(result.Streams)
	j.log.Info("evaluated track keep rules",
		"streams", len(considered), "kept", len(kept))

	if len(kept) == len(considered) {
		j.log.Info("all tracks kept, nothing to remux")
		return nil
	}
	if len(kept) == 0 {
		return services.Wrap(services.ErrConfiguration, Name, "select streams",
			"keep rules would drop every track", nil)
	}

	cleaned := filepath.Join(j.scratch, "cleaned"+filepath.Ext(j.item.Path))
	if err := j.remux(ctx, kept, cleaned); err != nil {
		return err
	}
	return j.replaceOriginal(cleaned)
}

// selectStreams returns the streams this job reasons about (video, audio,
// subtitle) and the subset that survives.
func (j *Job) selectStreams(streams []ffprobe.Stream) ([]ffprobe.Stream, []ffprobe.Stream) {
	var considered, kept []ffprobe.Stream
	for _, stream := range streams {
		switch stream.CodecType {
		case "video", "audio", "subtitle":
		default:
			continue
		}
		considered = append(considered, stream)
		if j.rules.Keep(stream) {
			kept = append(kept, stream)
		} else {
			j.log.Debug("dropping track",
				"index", stream.Index,
				"type", stream.CodecType,
				"language", stream.Language())
		}
	}
	return considered, kept
}

func (j *Job) remux(ctx context.Context, kept []ffprobe.Stream, output string) error {
	args := []string{"-i", j.item.Path}
	for _, stream := range kept {
		args = append(args, "-map", "0:"+strconv.Itoa(stream.Index))
	}
	args = append(args, "-c", "copy", "-map_metadata", "0", output)

	if _, err := j.env.Runner.Run(ctx, j.env.Config.Tools.FFmpeg, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, Name, "remux", "", err)
	}
	return nil
}

// replaceOriginal swaps the cleaned file in behind a backup so a failed
// move can be rolled back.
func (j *Job) replaceOriginal(cleaned string) error {
	backup := j.item.Path + ".bak"
	if err := os.Rename(j.item.Path, backup); err != nil {
		return services.Wrap(services.ErrExternalTool, Name, "back up original", "", err)
	}
	if err := fileutil.MoveFile(cleaned, j.item.Path); err != nil {
		if restoreErr := os.Rename(backup, j.item.Path); restoreErr != nil {
			j.log.Error("backup restore failed", "error", restoreErr)
		}
		return services.Wrap(services.ErrExternalTool, Name, "install cleaned file", "", err)
	}
	if err := os.Remove(backup); err != nil {
		j.log.Warn("could not remove backup file", "path", backup, "error", err)
	}
	return nil
}
