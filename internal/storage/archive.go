package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"text/template"
	"time"

	"github.com/cesargomez89/segmentcraft/internal/constants"
	"github.com/cesargomez89/segmentcraft/internal/domain"
)

// Archive writes shipped segments as JSON documents below Dir, at the path
// the layout template gives for each segment.
type Archive struct {
	Dir    string
	layout *template.Template
	now    func() time.Time
}

func NewArchive(dir, layout string) (*Archive, error) {
	if dir == "" {
		return nil, fmt.Errorf("archive directory is required")
	}
	tmpl, err := parseLayout(layout)
	if err != nil {
		return nil, err
	}
	if err := EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &Archive{Dir: dir, layout: tmpl, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Shipment locates one archived segment document.
type Shipment struct {
	Path   string
	SHA256 string
}

type segmentDocument struct {
	ShipKey   string                                       `json:"ship_key"`
	ShippedAt time.Time                                    `json:"shipped_at"`
	Segment   *domain.Segment                              `json:"segment"`
	Entities  map[domain.EntityKind][]domain.SegmentEntity `json:"entities"`
}

// PathFor returns where the segment of the chain with the ship key is written.
func (a *Archive) PathFor(shipKey string, seg *domain.Segment) (string, error) {
	rel, err := BuildPath(a.layout, BuildPathTemplateData(shipKey, seg))
	if err != nil {
		return "", err
	}
	return filepath.Join(a.Dir, rel+constants.ShipFileExt), nil
}

// Write stores the segment and its entities, replacing any earlier copy.
func (a *Archive) Write(shipKey string, seg *domain.Segment, entities []domain.SegmentEntity) (*Shipment, error) {
	path, err := a.PathFor(shipKey, seg)
	if err != nil {
		return nil, err
	}

	doc := segmentDocument{
		ShipKey:   shipKey,
		ShippedAt: a.now(),
		Segment:   seg,
		Entities:  make(map[domain.EntityKind][]domain.SegmentEntity),
	}
	for _, e := range entities {
		doc.Entities[e.Kind()] = append(doc.Entities[e.Kind()], e)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode segment %s: %w", seg.ID, err)
	}

	if err := WriteFileAtomic(path, data); err != nil {
		return nil, fmt.Errorf("failed to write segment %s: %w", seg.ID, err)
	}
	hash, err := HashFile(path)
	if err != nil {
		return nil, err
	}
	return &Shipment{Path: path, SHA256: hash}, nil
}

// Remove deletes the archived copy of a segment, if any, and its folder
// once empty.
func (a *Archive) Remove(shipKey string, seg *domain.Segment) error {
	path, err := a.PathFor(shipKey, seg)
	if err != nil {
		return err
	}
	if err := RemoveFile(path); err != nil && !IsNotExist(err) {
		return err
	}
	if dir := filepath.Dir(path); dir != filepath.Clean(a.Dir) {
		return DeleteFolderIfEmpty(dir)
	}
	return nil
}
