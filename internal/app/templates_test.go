package app

import (
	"strings"
	"testing"

	"github.com/cesargomez89/segmentcraft/internal/content"
	"github.com/cesargomez89/segmentcraft/internal/domain"
	"github.com/cesargomez89/segmentcraft/internal/store"
)

func TestTemplateCatalog(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	material, err := content.LoadYAML(strings.NewReader(fixture))
	if err != nil {
		t.Fatalf("LoadYAML failed: %v", err)
	}

	t.Run("lookup errors", func(t *testing.T) {
		c := NewTemplateCatalog(material, nil)
		if _, err := c.Get(""); !domain.IsValidation(err) {
			t.Errorf("Expected validation error for empty id, got %v", err)
		}
		if _, err := c.Get("nope"); !domain.IsExistence(err) {
			t.Errorf("Expected existence error for unknown template, got %v", err)
		}
		if _, err := c.SaveConfig("tmpl-1", domain.DefaultTemplateConfig()); !domain.IsValidation(err) {
			t.Errorf("Expected validation error without overrides, got %v", err)
		}
	})

	t.Run("saved config wins", func(t *testing.T) {
		c := NewTemplateCatalog(material, store.NewTemplateRepo(db))
		base, err := c.Get("tmpl-1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		cfg := domain.DefaultTemplateConfig()
		cfg.DeltaArcEnabled = !base.Config.DeltaArcEnabled
		if _, err := c.SaveConfig("tmpl-1", cfg); err != nil {
			t.Fatalf("SaveConfig failed: %v", err)
		}

		got, err := c.Get("tmpl-1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Config.DeltaArcEnabled != cfg.DeltaArcEnabled {
			t.Errorf("Expected DeltaArcEnabled %v, got %v", cfg.DeltaArcEnabled, got.Config.DeltaArcEnabled)
		}
		if got.Name != "Radio" {
			t.Errorf("Expected name Radio, got %s", got.Name)
		}

		list, err := c.List()
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != 2 {
			t.Errorf("Expected 2 templates, got %d", len(list))
		}

		if _, err := c.SaveConfig("nope", cfg); !domain.IsExistence(err) {
			t.Errorf("Expected existence error for unknown template, got %v", err)
		}
	})

	t.Run("scoped material is cached", func(t *testing.T) {
		c := NewTemplateCatalog(material, nil)
		a, err := c.MaterialFor("tmpl-1")
		if err != nil {
			t.Fatalf("MaterialFor failed: %v", err)
		}
		b, err := c.MaterialFor("tmpl-1")
		if err != nil {
			t.Fatalf("MaterialFor failed: %v", err)
		}
		if a != b {
			t.Error("Expected the same scoped material on repeat calls")
		}
		if _, ok := a.Program("main-1"); !ok {
			t.Error("Expected bound program main-1 in scoped material")
		}
	})
}
