package dovi_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"jellyhook/internal/config"
	"jellyhook/internal/event"
	"jellyhook/internal/logging"
	"jellyhook/internal/services"
	"jellyhook/internal/services/dovi"
	"jellyhook/internal/testsupport"
	"jellyhook/internal/tools"
)

func probeJSON(profile int) string {
	return fmt.Sprintf(`{"streams":[{"index":0,"codec_type":"video","side_data_list":[{"side_data_type":"DOVI configuration record","dv_profile":%d,"dv_level":6}]}]}`, profile)
}

func seedMovie(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "Deep Space (2024)")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	file := filepath.Join(dir, "Deep Space.mkv")
	if err := os.WriteFile(file, []byte("original container"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return root, file
}

func newJob(t *testing.T, root, scratchRoot string, runner tools.Runner) services.Job {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.MediaRoots = []string{root}
	cfg.Paths.ScratchDir = scratchRoot
	env := services.Env{Config: &cfg, Logger: logging.NewNop(), Runner: runner}

	payload := event.Payload{"ItemId": "item-7", "Name": "Deep Space", "Year": float64(2024)}
	job, err := dovi.New(context.Background(), env, payload, nil)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if job == nil {
		t.Fatal("expected a job")
	}
	return job
}

// pipelineHandler simulates the external tools by writing the files each
// invocation is expected to produce. RPU contents are taken from the
// layers map so tests control whether the layers hash identically.
func pipelineHandler(t *testing.T, layers map[string]string) func(string, []string) (tools.Result, error) {
	return func(binary string, args []string) (tools.Result, error) {
		switch binary {
		case "ffprobe":
			return tools.Result{Stdout: probeJSON(7)}, nil
		case "mkvextract":
			path := strings.TrimPrefix(args[2], "0:")
			return tools.Result{}, os.WriteFile(path, []byte("hevc"), 0o644)
		case "dovi_tool":
			switch args[0] {
			case "demux":
				return tools.Result{}, os.WriteFile(args[4], []byte("el"), 0o644)
			case "-m":
				if args[1] == "0" {
					content := layers["base"]
					if strings.HasSuffix(args[3], "EL.hevc") {
						content = layers["enhancement"]
					}
					return tools.Result{}, os.WriteFile(args[5], []byte(content), 0o644)
				}
				return tools.Result{}, os.WriteFile(args[6], []byte("p8"), 0o644)
			}
			t.Fatalf("unexpected dovi_tool args: %v", args)
		case "mkvmerge":
			return tools.Result{}, os.WriteFile(args[1], []byte("converted container"), 0o644)
		}
		t.Fatalf("unexpected binary: %s", binary)
		return tools.Result{}, nil
	}
}

func TestConvertsProfileSevenEndToEnd(t *testing.T) {
	root, file := seedMovie(t)
	runner := &testsupport.FakeRunner{}
	runner.Handler = pipelineHandler(t, map[string]string{"base": "rpu", "enhancement": "rpu"})

	job := newJob(t, root, t.TempDir(), runner)
	if err := job.Execute(context.Background()); err != nil {
		t.Fatalf("execute: %v", err)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	if string(data) != "converted container" {
		t.Fatalf("source not replaced, content %q", data)
	}
	for _, binary := range []string{"ffprobe", "mkvextract", "dovi_tool", "mkvmerge"} {
		if !runner.Invoked(binary) {
			t.Fatalf("%s never invoked", binary)
		}
	}
	if _, err := os.Stat(job.ScratchDir()); err != nil {
		t.Fatal("scratch cleanup belongs to the orchestrator, not the job")
	}
}

func TestWrongProfileHaltsWithoutSideEffects(t *testing.T) {
	root, file := seedMovie(t)
	runner := &testsupport.FakeRunner{
		Handler: func(binary string, args []string) (tools.Result, error) {
			return tools.Result{Stdout: probeJSON(8)}, nil
		},
	}

	job := newJob(t, root, t.TempDir(), runner)
	if err := job.Execute(context.Background()); err != nil {
		t.Fatalf("wrong profile must not be an error: %v", err)
	}
	if runner.Invoked("mkvextract") || runner.Invoked("dovi_tool") {
		t.Fatal("extraction must not run for a non-profile-7 source")
	}
	data, _ := os.ReadFile(file)
	if string(data) != "original container" {
		t.Fatal("source file must be untouched")
	}
}

func TestOutOfSyncLayersHaltBeforeConversion(t *testing.T) {
	root, file := seedMovie(t)
	runner := &testsupport.FakeRunner{}
	runner.Handler = pipelineHandler(t, map[string]string{"base": "rpu-a", "enhancement": "rpu-b"})

	job := newJob(t, root, t.TempDir(), runner)
	if err := job.Execute(context.Background()); err != nil {
		t.Fatalf("out-of-sync layers must halt cleanly: %v", err)
	}

	for _, call := range runner.Calls() {
		if call.Binary == "dovi_tool" && len(call.Args) > 1 && call.Args[0] == "-m" && call.Args[1] == "2" {
			t.Fatal("convert must never run when layer hashes differ")
		}
		if call.Binary == "mkvmerge" {
			t.Fatal("merge must never run when layer hashes differ")
		}
	}
	data, _ := os.ReadFile(file)
	if string(data) != "original container" {
		t.Fatal("source file must be untouched")
	}
}

func TestToolFailureAbortsPipeline(t *testing.T) {
	root, file := seedMovie(t)
	runner := &testsupport.FakeRunner{
		Handler: func(binary string, args []string) (tools.Result, error) {
			if binary == "ffprobe" {
				return tools.Result{Stdout: probeJSON(7)}, nil
			}
			return tools.Result{}, errors.New("exit status 2")
		},
	}

	job := newJob(t, root, t.TempDir(), runner)
	err := job.Execute(context.Background())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	data, _ := os.ReadFile(file)
	if string(data) != "original container" {
		t.Fatal("source file must be untouched after an extraction failure")
	}
}

func TestMissingItemFailsConstruction(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.MediaRoots = []string{t.TempDir()}
	cfg.Paths.ScratchDir = t.TempDir()
	env := services.Env{Config: &cfg, Logger: logging.NewNop(), Runner: &testsupport.FakeRunner{}}

	_, err := dovi.New(context.Background(), env, event.Payload{"Name": "Nothing", "Year": float64(2000)}, nil)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
