package templates

import (
	"regexp"
	"strings"
	"time"

	"github.com/joseph-ayodele/legal-docs/internal/entity"
)

const (
	// NotProvided replaces every placeholder left after substitution.
	NotProvided = "[NOT PROVIDED]"
	// CurrentDateField is injected at render time.
	CurrentDateField = "currentDate"
	// DateLayout is the long-form date used for CurrentDateField.
	DateLayout = "January 2, 2006"
)

var placeholder = regexp.MustCompile(`\{\{(.*?)\}\}`)

// Render fills t with facts as of now. Values are substituted literally,
// including sentinel strings such as "null", and are never re-expanded;
// every placeholder without a non-empty value becomes NotProvided. Render
// has no side effects.
func Render(t entity.Template, facts map[string]string, now time.Time) entity.RenderedDocument {
	values := make(map[string]string, len(facts)+1)
	for k, v := range facts {
		values[k] = v
	}
	values[CurrentDateField] = now.Format(DateLayout)

	// one pass, so substituted text is never scanned for placeholders again
	body := placeholder.ReplaceAllStringFunc(t.Body, func(m string) string {
		if v := values[m[2:len(m)-2]]; v != "" {
			return v
		}
		return NotProvided
	})

	return entity.RenderedDocument{
		Document:   body,
		Validation: Validate(t, values),
	}
}

// Validate reports the required fields that are absent or blank, in the
// template's declared order.
func Validate(t entity.Template, facts map[string]string) entity.Validation {
	missing := make([]string, 0)
	for _, field := range t.RequiredFields {
		if strings.TrimSpace(facts[field]) == "" {
			missing = append(missing, field)
		}
	}
	return entity.Validation{
		IsValid:       len(missing) == 0,
		MissingFields: missing,
	}
}
