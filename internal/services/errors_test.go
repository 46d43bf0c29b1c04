package services_test

import (
	"errors"
	"strings"
	"testing"

	"jellyhook/internal/services"
)

func TestWrapPreservesMarker(t *testing.T) {
	cause := errors.New("exit status 1")
	err := services.Wrap(services.ErrExternalTool, "dovi_conversion", "extract video", "mkvextract failed", cause)

	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatal("marker lost")
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause lost")
	}
	for _, want := range []string{"dovi_conversion", "extract video", "mkvextract failed"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("detail %q missing from %q", want, err.Error())
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "job", "", "", nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatal("nil marker should default to ErrExternalTool")
	}
}

func TestRegistryResolve(t *testing.T) {
	registry := services.NewRegistry()
	registry.Register("metadata_update", services.Definition{})
	registry.Register("dovi_conversion", services.Definition{Critical: true})

	def, ok := registry.Resolve("metadata_update")
	if !ok {
		t.Fatal("registered name should resolve")
	}
	if def.Critical {
		t.Fatal("metadata_update registered as non-critical")
	}
	if _, ok := registry.Resolve("unknown_job"); ok {
		t.Fatal("unknown name must not resolve")
	}
	names := registry.Names()
	if len(names) != 2 || names[0] != "dovi_conversion" {
		t.Fatalf("unexpected names: %v", names)
	}
}
