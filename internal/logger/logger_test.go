package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	cfg := Config{
		Level:  "info",
		Format: "text",
	}
	logger := New(cfg)
	if logger == nil {
		t.Error("Expected logger to not be nil")
	}

	cfg.Format = "json"
	logger = New(cfg)
	if logger == nil {
		t.Error("Expected logger to not be nil")
	}

	// Test with invalid level (should default to info)
	cfg.Level = "invalid"
	logger = New(cfg)
	if logger == nil {
		t.Error("Expected logger to not be nil")
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Format: "text", Output: &buf})
	logger.WithComponent("craft").Info("hello")

	if !strings.Contains(buf.String(), "component=craft") {
		t.Errorf("Expected component attribute in output, got %q", buf.String())
	}
}

func TestWithChain(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Format: "json", Output: &buf})
	logger.WithChain("chain-1", "jazz").Info("chain event")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON output, got error: %v", err)
	}
	if entry["chain_id"] != "chain-1" {
		t.Errorf("Expected chain_id chain-1, got %v", entry["chain_id"])
	}
	if entry["ship_key"] != "jazz" {
		t.Errorf("Expected ship_key jazz, got %v", entry["ship_key"])
	}
}

func TestWithSegment(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Format: "text", Output: &buf})
	logger.WithSegment("seg-9", 3).Info("segment event")

	out := buf.String()
	if !strings.Contains(out, "segment_id=seg-9") || !strings.Contains(out, "offset=3") {
		t.Errorf("Expected segment attributes in output, got %q", out)
	}
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "warn", Format: "text", Output: &buf})
	logger.Info("quiet")
	if buf.Len() != 0 {
		t.Errorf("Expected info to be filtered at warn level, got %q", buf.String())
	}
	logger.Warn("loud")
	if !strings.Contains(buf.String(), "loud") {
		t.Errorf("Expected warn message in output, got %q", buf.String())
	}
}

func TestDefault(t *testing.T) {
	if Default() == nil {
		t.Error("Expected default logger to not be nil")
	}
	if Discard() == nil {
		t.Error("Expected discard logger to not be nil")
	}
}
