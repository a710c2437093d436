package app

import (
	"fmt"
	"sync"

	"github.com/cesargomez89/segmentcraft/internal/content"
	"github.com/cesargomez89/segmentcraft/internal/domain"
	"github.com/cesargomez89/segmentcraft/internal/store"
)

// TemplateCatalog resolves templates from the loaded content, letting a
// saved override replace the config of a template.
type TemplateCatalog struct {
	Material  *content.SourceMaterial
	Overrides *store.TemplateRepo

	mu     sync.Mutex
	scoped map[string]*content.SourceMaterial
}

func NewTemplateCatalog(material *content.SourceMaterial, overrides *store.TemplateRepo) *TemplateCatalog {
	return &TemplateCatalog{
		Material:  material,
		Overrides: overrides,
		scoped:    make(map[string]*content.SourceMaterial),
	}
}

func (c *TemplateCatalog) Get(id string) (domain.Template, error) {
	if id == "" {
		return domain.Template{}, domain.Validationf("template id is required")
	}
	tmpl, ok := c.Material.Template(id)
	if !ok {
		return domain.Template{}, domain.Existencef("template %s not found", id)
	}
	if c.Overrides == nil {
		return tmpl, nil
	}
	override, err := c.Overrides.Get(id)
	if err != nil {
		return domain.Template{}, fmt.Errorf("failed to read template override: %w", err)
	}
	if override != nil {
		tmpl.Config = override.Config
	}
	return tmpl, nil
}

func (c *TemplateCatalog) List() ([]domain.Template, error) {
	var out []domain.Template
	for _, t := range c.Material.Templates() {
		tmpl, err := c.Get(t.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, tmpl)
	}
	return out, nil
}

// SaveConfig stores a config override for a template known to the content.
func (c *TemplateCatalog) SaveConfig(id string, cfg domain.TemplateConfig) (domain.Template, error) {
	tmpl, ok := c.Material.Template(id)
	if !ok {
		return domain.Template{}, domain.Existencef("template %s not found", id)
	}
	if c.Overrides == nil {
		return domain.Template{}, domain.Validationf("template overrides are not enabled")
	}
	tmpl.Config = cfg
	if err := c.Overrides.Save(&tmpl); err != nil {
		return domain.Template{}, err
	}
	return tmpl, nil
}

// MaterialFor returns the content bound to a template. The scoped view is
// built once per template.
func (c *TemplateCatalog) MaterialFor(id string) (*content.SourceMaterial, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.scoped[id]; ok {
		return m, nil
	}
	m, err := c.Material.ForTemplate(id)
	if err != nil {
		return nil, err
	}
	c.scoped[id] = m
	return m, nil
}
