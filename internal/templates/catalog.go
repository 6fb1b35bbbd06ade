package templates

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/legal-docs/internal/common"
	"github.com/joseph-ayodele/legal-docs/internal/entity"
)

//go:embed catalog.yaml
var seedCatalog []byte

// Catalog is the read-only set of legal templates, keyed by ID.
type Catalog struct {
	ordered []entity.Template
	byID    map[string]int
}

// NewCatalog builds a catalog from the embedded seed set.
func NewCatalog() (*Catalog, error) {
	return ParseCatalog(seedCatalog)
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Templates []entity.Template `yaml:"templates"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode template catalog: %w", err)
	}
	c := &Catalog{byID: make(map[string]int, len(doc.Templates))}
	for _, t := range doc.Templates {
		if t.ID == "" || t.Body == "" {
			return nil, fmt.Errorf("template %q: id and template body are required", t.Name)
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate template id %q", t.ID)
		}
		c.byID[t.ID] = len(c.ordered)
		c.ordered = append(c.ordered, t)
	}
	return c, nil
}

// All returns every template in seed order.
func (c *Catalog) All() []entity.Template {
	return c.Filter("", "")
}

// Get returns a template or ErrTemplateNotFound.
func (c *Catalog) Get(id string) (entity.Template, error) {
	i, ok := c.byID[id]
	if !ok {
		return entity.Template{}, common.NotFoundError(common.ErrTemplateNotFound, id)
	}
	return clone(c.ordered[i]), nil
}

// Filter returns the templates matching typ and category; an empty filter
// matches everything, so both may be combined or omitted.
func (c *Catalog) Filter(typ, category string) []entity.Template {
	out := make([]entity.Template, 0, len(c.ordered))
	for _, t := range c.ordered {
		if typ != "" && t.Type != typ {
			continue
		}
		if category != "" && t.Category != category {
			continue
		}
		out = append(out, clone(t))
	}
	return out
}

// Types lists the distinct template types, sorted.
func (c *Catalog) Types() []string {
	return c.distinct(func(t entity.Template) string { return t.Type })
}

// Categories lists the distinct template categories, sorted.
func (c *Catalog) Categories() []string {
	return c.distinct(func(t entity.Template) string { return t.Category })
}

func (c *Catalog) distinct(key func(entity.Template) string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, t := range c.ordered {
		k := key(t)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// clone keeps callers from mutating the catalog's required-field slices.
func clone(t entity.Template) entity.Template {
	t.RequiredFields = append([]string(nil), t.RequiredFields...)
	return t
}
