package storage

import (
	"bytes"
	"fmt"
	"path/filepath"
	"text/template"

	"github.com/cesargomez89/segmentcraft/internal/domain"
)

// PathTemplateData holds the fields a ship layout may refer to.
type PathTemplateData struct {
	ShipKey    string
	ChainID    string
	StorageKey string
	Offset     string
	Type       string
}

// BuildPathTemplateData sanitizes the segment fields for use in a path.
func BuildPathTemplateData(shipKey string, seg *domain.Segment) *PathTemplateData {
	if shipKey == "" {
		shipKey = "chain-" + seg.ChainID
	}
	return &PathTemplateData{
		ShipKey:    Sanitize(shipKey),
		ChainID:    Sanitize(seg.ChainID),
		StorageKey: Sanitize(seg.StorageKey),
		Offset:     fmt.Sprintf("%06d", seg.Offset),
		Type:       string(seg.Type),
	}
}

func parseLayout(layout string) (*template.Template, error) {
	tmpl, err := template.New("layout").Option("missingkey=error").Parse(layout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return tmpl, nil
}

// BuildPath executes the layout and returns the relative path (without extension)
func BuildPath(tmpl *template.Template, data *PathTemplateData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	rel := filepath.Clean(buf.String())
	if rel == "." || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("layout produced an invalid path %q", buf.String())
	}
	return rel, nil
}
