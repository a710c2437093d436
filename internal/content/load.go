package content

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// LoadYAML decodes a content document and indexes it.
func LoadYAML(r io.Reader) (*SourceMaterial, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode content: %w", err)
	}
	return New(doc)
}

// LoadFile reads a content document from disk.
func LoadFile(path string) (*SourceMaterial, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open content file: %w", err)
	}
	defer f.Close()

	return LoadYAML(f)
}
