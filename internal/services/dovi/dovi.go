// Package dovi implements the Dolby Vision profile 7 to 8 remux pipeline.
// The pipeline is a strict stage sequence over external tools; every
// destructive action is gated behind a layer-sync verification so an
// out-of-sync source is left untouched rather than silently corrupted.
package dovi

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"jellyhook/internal/config"
	"jellyhook/internal/event"
	"jellyhook/internal/fileutil"
	"jellyhook/internal/library"
	"jellyhook/internal/logging"
	"jellyhook/internal/media/ffprobe"
	"jellyhook/internal/services"
)

// Name is the job name used in webhook configuration.
const Name = "dovi_conversion"

// TriggerProfile is the only Dolby Vision profile this pipeline rewrites.
const TriggerProfile = 7

// scratchMultiplier sizes the free-space preflight: the scratch directory
// briefly holds the extracted stream, the converted stream, and the
// merged container at the same time.
const scratchMultiplier = 3

// Stage identifies one step of the remux pipeline, in execution order.
type Stage int

const (
	StageProbeProfile Stage = iota
	StageExtractVideo
	StageDemuxEnhancementLayer
	StageExtractBaseRpu
	StageExtractEnhancementRpu
	StageVerifySync
	StageConvertProfile
	StageMergeContainer
	StageCommit
)

var stageNames = map[Stage]string{
	StageProbeProfile:          "probe profile",
	StageExtractVideo:          "extract video",
	StageDemuxEnhancementLayer: "demux enhancement layer",
	StageExtractBaseRpu:        "extract base rpu",
	StageExtractEnhancementRpu: "extract enhancement rpu",
	StageVerifySync:            "verify layer sync",
	StageConvertProfile:        "convert profile",
	StageMergeContainer:        "merge container",
	StageCommit:                "commit",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Job converts one profile-7 file in place.
type Job struct {
	env     services.Env
	item    library.Item
	scratch string
	log     *slog.Logger
}

// New builds a dovi job for one event. The scratch directory is created
// here so the orchestrator can track it for cleanup even when a later
// stage fails.
func New(ctx context.Context, env services.Env, payload event.Payload, opts config.Options) (services.Job, error) {
	flat := payload.Flattened()
	year, _ := flat.Year()
	item, err := library.Locate(env.Config.Paths.MediaRoots, flat.Name(), year)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, Name, "locate item", "", err)
	}

	scratchRoot := opts.String("temp_dir", env.Config.Paths.ScratchDir)
	scratch := filepath.Join(scratchRoot, item.FolderTitle())
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, Name, "create scratch directory", scratch, err)
	}

	return &Job{
		env:     env,
		item:    item,
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

// Execute runs the pipeline to completion. A wrong source profile or an
// out-of-sync layer pair halts cleanly without touching the source file.
func (j *Job) Execute(ctx context.Context) error {
	j.log.Info("starting dolby vision profile conversion")

	profile, ok, err := j.probeProfile(ctx)
	if err != nil {
		return err
	}
	if !ok || profile != TriggerProfile {
		j.log.Info("source is not dolby vision profile 7, nothing to do", "profile", profile)
		return nil
	}

	if err := j.checkScratchSpace(); err != nil {
		return err
	}

	videoPath, err := j.extractVideo(ctx)
	if err != nil {
		return err
	}

	elPath, err := j.demuxEnhancementLayer(ctx, videoPath)
	if err != nil {
		return err
	}

	baseRpu, err := j.extractRpu(ctx, StageExtractBaseRpu, videoPath, "BL_RPU.bin")
	if err != nil {
		return err
	}
	enhancementRpu, err := j.extractRpu(ctx, StageExtractEnhancementRpu, elPath, "EL_RPU.bin")
	if err != nil {
		return err
	}

	inSync, err := j.verifySync(baseRpu, enhancementRpu)
	if err != nil {
		return err
	}
	if !inSync {
		j.log.Warn("base layer out of sync with enhancement layer, aborting before conversion")
		return nil
	}

	convertedPath, err := j.convertProfile(ctx, videoPath)
	if err != nil {
		return err
	}

	mergedPath, err := j.mergeContainer(ctx, convertedPath)
	if err != nil {
		return err
	}

	if err := j.commit(mergedPath); err != nil {
		return err
	}

	j.log.Info("dolby vision conversion complete")
	return nil
}

func (j *Job) probeProfile(ctx context.Context) (int, bool, error) {
	j.log.Info("probing dolby vision profile")
	result, err := ffprobe.InspectVideo(ctx, j.env.Runner, j.env.Config.Tools.FFprobe, j.item.Path)
	if err != nil {
		return 0, false, services.Wrap(services.ErrExternalTool, Name, StageProbeProfile.String(), "", err)
	}
	profile, ok := result.DoviProfile()
	return profile, ok, nil
}

// checkScratchSpace aborts early when scratch storage cannot hold the
// intermediate streams, rather than failing mid-extraction.
func (j *Job) checkScratchSpace() error {
	info, err := os.Stat(j.item.Path)
	if err != nil {
		return services.Wrap(services.ErrNotFound, Name, "stat source", j.item.Path, err)
	}
	need := info.Size() * scratchMultiplier
	if err := fileutil.CheckFreeSpace(j.scratch, need); err != nil {
		return services.Wrap(services.ErrConfiguration, Name, "scratch space preflight", "", err)
	}
	return nil
}

func (j *Job) extractVideo(ctx context.Context) (string, error) {
	j.log.Info("extracting video stream")
	videoPath := filepath.Join(j.scratch, "video.hevc")
	_, err := j.env.Runner.Run(ctx, j.env.Config.Tools.MKVExtract,
		j.item.Path, "tracks", "0:"+videoPath)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, Name, StageExtractVideo.String(), "", err)
	}
	return videoPath, nil
}

func (j *Job) demuxEnhancementLayer(ctx context.Context, videoPath string) (string, error) {
	j.log.Info("demuxing enhancement layer")
	elPath := filepath.Join(j.scratch, "EL.hevc")
	_, err := j.env.Runner.Run(ctx, j.env.Config.Tools.DoviTool,
		"demux", videoPath, "--el-only", "-e", elPath)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, Name, StageDemuxEnhancementLayer.String(), "", err)
	}
	return elPath, nil
}

func (j *Job) extractRpu(ctx context.Context, stage Stage, hevcPath, outputName string) (string, error) {
	rpuPath := filepath.Join(j.scratch, outputName)
	_, err := j.env.Runner.Run(ctx, j.env.Config.Tools.DoviTool,
		"-m", "0", "extract-rpu", hevcPath, "-o", rpuPath)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, Name, stage.String(), "", err)
	}
	return rpuPath, nil
}

func (j *Job) verifySync(baseRpu, enhancementRpu string) (bool, error) {
	j.log.Info("verifying base and enhancement layers are in sync")
	baseSum, err := fileutil.SHA512File(baseRpu)
	if err != nil {
		return false, services.Wrap(services.ErrExternalTool, Name, StageVerifySync.String(), "hash base rpu", err)
	}
	enhancementSum, err := fileutil.SHA512File(enhancementRpu)
	if err != nil {
		return false, services.Wrap(services.ErrExternalTool, Name, StageVerifySync.String(), "hash enhancement rpu", err)
	}
	return baseSum == enhancementSum, nil
}

func (j *Job) convertProfile(ctx context.Context, videoPath string) (string, error) {
	j.log.Info("converting stream to dolby vision profile 8")
	convertedPath := filepath.Join(j.scratch, "P8.hevc")
	_, err := j.env.Runner.Run(ctx, j.env.Config.Tools.DoviTool,
		"-m", "2", "convert", "--discard", videoPath, "-o", convertedPath)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, Name, StageConvertProfile.String(), "", err)
	}
	return convertedPath, nil
}

func (j *Job) mergeContainer(ctx context.Context, convertedPath string) (string, error) {
	j.log.Info("merging converted stream with original container")
	mergedPath := filepath.Join(j.scratch, "final_output.mkv")
	_, err := j.env.Runner.Run(ctx, j.env.Config.Tools.MKVMerge,
		"--output", mergedPath, convertedPath, "--no-video", j.item.Path)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, Name, StageMergeContainer.String(), "", err)
	}
	return mergedPath, nil
}

// commit replaces the source file with the merged output. This is the
// only destructive step; everything before it leaves the source intact.
func (j *Job) commit(mergedPath string) error {
	j.log.Info("replacing original file with converted output")
	if err := os.Remove(j.item.Path); err != nil {
		return services.Wrap(services.ErrExternalTool, Name, StageCommit.String(), "delete original", err)
	}
	if err := fileutil.MoveFile(mergedPath, j.item.Path); err != nil {
		return services.Wrap(services.ErrExternalTool, Name, StageCommit.String(), "move converted file", err)
	}
	return nil
}
