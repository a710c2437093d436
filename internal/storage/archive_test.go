package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cesargomez89/segmentcraft/internal/constants"
	"github.com/cesargomez89/segmentcraft/internal/domain"
)

func testSegment() *domain.Segment {
	seg := &domain.Segment{
		ID:                 "seg-1",
		ChainID:            "chain-1",
		Offset:             7,
		Type:               domain.SegmentTypeContinue,
		State:              domain.SegmentStateDubbed,
		BeginAt:            time.Date(2026, 3, 1, 12, 0, 28, 0, time.UTC),
		BeginAtChainMicros: 28_000_000,
		StorageKey:         "radio-28000000",
	}
	seg.SetDuration(4_000_000)
	return seg
}

func TestArchive_PathFor(t *testing.T) {
	tests := []struct {
		name    string
		layout  string
		shipKey string
		want    string
		wantErr bool
	}{
		{"default layout", constants.DefaultShipLayout, "radio", "radio/radio-28000000.json", false},
		{"offset layout", "{{.ShipKey}}/{{.Offset}}", "radio", "radio/000007.json", false},
		{"no ship key", "{{.ShipKey}}/{{.Offset}}", "", "chain-chain-1/000007.json", false},
		{"type folder", "{{.Type}}/{{.ChainID}}-{{.Offset}}", "radio", "Continue/chain-1-000007.json", false},
		{"escapes the directory", "../{{.ShipKey}}", "radio", "", true},
		{"unknown field", "{{.Album}}", "radio", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			a, err := NewArchive(dir, tt.layout)
			if err != nil {
				t.Fatalf("NewArchive failed: %v", err)
			}
			got, err := a.PathFor(tt.shipKey, testSegment())
			if (err != nil) != tt.wantErr {
				t.Fatalf("PathFor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if want := filepath.Join(dir, filepath.FromSlash(tt.want)); got != want {
				t.Errorf("Expected %s, got %s", want, got)
			}
		})
	}
}

func TestNewArchive_InvalidLayout(t *testing.T) {
	if _, err := NewArchive(t.TempDir(), "{{.ShipKey"); err == nil || !strings.Contains(err.Error(), "failed to parse template") {
		t.Errorf("Expected parse error, got %v", err)
	}
	if _, err := NewArchive("", constants.DefaultShipLayout); err == nil {
		t.Error("Expected error for an empty directory")
	}
}

func TestArchive_WriteAndRemove(t *testing.T) {
	dir := t.TempDir()
	a, err := NewArchive(dir, constants.DefaultShipLayout)
	if err != nil {
		t.Fatalf("NewArchive failed: %v", err)
	}
	seg := testSegment()
	entities := []domain.SegmentEntity{
		domain.SegmentMeme{ID: "m-1", SegmentID: seg.ID, Name: "WARM"},
		domain.SegmentChord{ID: "c-1", SegmentID: seg.ID, Name: "C", Position: 0},
	}

	shipment, err := a.Write("radio", seg, entities)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if ok, err := VerifyFile(shipment.Path, shipment.SHA256); err != nil || !ok {
		t.Errorf("Expected archived file to match its hash, got %v, %v", ok, err)
	}

	data, err := os.ReadFile(shipment.Path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var doc struct {
		ShipKey  string                       `json:"ship_key"`
		Segment  domain.Segment               `json:"segment"`
		Entities map[string][]json.RawMessage `json:"entities"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if doc.ShipKey != "radio" || doc.Segment.ID != seg.ID {
		t.Errorf("Expected radio/%s, got %s/%s", seg.ID, doc.ShipKey, doc.Segment.ID)
	}
	if len(doc.Entities["meme"]) != 1 || len(doc.Entities["chord"]) != 1 {
		t.Errorf("Expected one meme and one chord, got %v", doc.Entities)
	}

	if err := a.Remove("radio", seg); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "radio")); !os.IsNotExist(err) {
		t.Errorf("Expected empty ship key folder removed, got %v", err)
	}
	if err := a.Remove("radio", seg); err != nil {
		t.Errorf("Expected removing twice to be a no-op, got %v", err)
	}
}
