package templates

import (
	"strings"
	"time"

	"github.com/joseph-ayodele/legal-docs/internal/entity"
)

// Generator renders catalog templates from stored fact records, filling
// attorney details from a configured profile when the record has none.
type Generator struct {
	catalog  *Catalog
	defaults map[string]string
	now      func() time.Time
}

// AttorneyProfile holds the fallback attorney values.
type AttorneyProfile struct {
	Name    string
	Address string
	Phone   string
	Email   string
}

func NewGenerator(catalog *Catalog, attorney AttorneyProfile) *Generator {
	defaults := map[string]string{}
	for k, v := range map[string]string{
		"attorneyName":    attorney.Name,
		"attorneyAddress": attorney.Address,
		"attorneyPhone":   attorney.Phone,
		"attorneyEmail":   attorney.Email,
	} {
		if strings.TrimSpace(v) != "" {
			defaults[k] = v
		}
	}
	return &Generator{catalog: catalog, defaults: defaults, now: time.Now}
}

// Generate renders templateID with rec. Missing fields are reported in the
// validation, never as an error; only an unknown template fails.
func (g *Generator) Generate(templateID string, rec *entity.FactRecord) (entity.RenderedDocument, entity.Template, error) {
	t, err := g.catalog.Get(templateID)
	if err != nil {
		return entity.RenderedDocument{}, entity.Template{}, err
	}
	return Render(t, g.values(rec), g.now()), t, nil
}

func (g *Generator) values(rec *entity.FactRecord) map[string]string {
	values := make(map[string]string, len(g.defaults))
	for k, v := range g.defaults {
		values[k] = v
	}
	if rec == nil {
		return values
	}
	for k, v := range rec.Values() {
		if strings.TrimSpace(v) == "" {
			if _, hasDefault := values[k]; hasDefault {
				continue
			}
		}
		values[k] = v
	}
	return values
}
