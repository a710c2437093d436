package meme

import "strings"

// Category is a named set of mutually exclusive memes.
type Category struct {
	Name  string
	Memes []string
}

// Taxonomy maps each categorized meme to its category.
type Taxonomy struct {
	categories []Category
	index      map[string]string
}

func NewTaxonomy(categories ...Category) *Taxonomy {
	t := &Taxonomy{index: make(map[string]string)}
	for _, c := range categories {
		name := strings.ToUpper(strings.TrimSpace(c.Name))
		norm := Category{Name: name}
		for _, m := range c.Memes {
			m = strings.ToUpper(strings.TrimSpace(m))
			norm.Memes = append(norm.Memes, m)
			t.index[m] = name
		}
		t.categories = append(t.categories, norm)
	}
	return t
}

// CategoryOf returns the category a meme belongs to, if any.
func (t *Taxonomy) CategoryOf(meme string) (string, bool) {
	if t == nil {
		return "", false
	}
	c, ok := t.index[strings.ToUpper(meme)]
	return c, ok
}

func (t *Taxonomy) Categories() []Category {
	if t == nil {
		return nil
	}
	return t.categories
}
