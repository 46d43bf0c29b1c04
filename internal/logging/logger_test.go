package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"jellyhook/internal/logging"
)

func boolPtr(b bool) *bool { return &b }

func TestConsoleFormatPromotesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Writer: &buf, Color: boolPtr(false)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	logger.Info("message received",
		slog.String(logging.FieldComponent, "consumer"),
		slog.String(logging.FieldQueue, "jellyfin:item_added"))

	line := buf.String()
	if !strings.Contains(line, "consumer") {
		t.Fatalf("component missing from line: %q", line)
	}
	if !strings.Contains(line, "queue=jellyfin:item_added") {
		t.Fatalf("attr missing from line: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should be promoted, not trailed: %q", line)
	}
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("color disabled but escape codes present: %q", line)
	}
}

func TestJSONFormatEmitsValidJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Info("hello", slog.Int(logging.FieldDeliveryTag, 7))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("invalid json output: %v", err)
	}
	if record["msg"] != "hello" || record[logging.FieldDeliveryTag] != float64(7) {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "warn", Writer: &buf, Color: boolPtr(false)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Info("quiet")
	logger.Warn("loud")
	if strings.Contains(buf.String(), "quiet") {
		t.Fatal("info should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "loud") {
		t.Fatal("warn should pass at warn level")
	}
}

func TestUnsupportedFormatRejected(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	logger.Error("nothing happens")
	if logger.Enabled(nil, slog.LevelError) {
		t.Fatal("nop logger should report disabled")
	}
}
