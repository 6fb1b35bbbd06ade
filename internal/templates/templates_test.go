package templates

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/legal-docs/internal/common"
	"github.com/joseph-ayodele/legal-docs/internal/entity"
)

var fixedNow = time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)

func mustCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog()
	require.NoError(t, err)
	return c
}

func TestCatalog_Seed(t *testing.T) {
	c := mustCatalog(t)
	all := c.All()
	assert.Len(t, all, 18)

	for _, tpl := range all {
		assert.NotEmpty(t, tpl.Name, tpl.ID)
		assert.NotEmpty(t, tpl.RequiredFields, tpl.ID)
		for _, f := range tpl.RequiredFields {
			assert.True(t, entity.IsFactField(f), "%s requires unknown field %s", tpl.ID, f)
		}
	}

	got, err := c.Get("motion-to-dismiss")
	require.NoError(t, err)
	assert.Equal(t, "motion", got.Type)
	assert.Equal(t, "civil", got.Category)
}

func TestCatalog_GetUnknown(t *testing.T) {
	_, err := mustCatalog(t).Get("nope")
	require.Error(t, err)
	assert.True(t, common.IsNotFound(err))
}

func TestCatalog_Filter(t *testing.T) {
	c := mustCatalog(t)

	for _, tpl := range c.Filter("petition", "") {
		assert.Equal(t, "petition", tpl.Type)
	}
	for _, tpl := range c.Filter("", "family") {
		assert.Equal(t, "family", tpl.Category)
	}
	both := c.Filter("motion", "civil")
	require.NotEmpty(t, both)
	for _, tpl := range both {
		assert.Equal(t, "motion", tpl.Type)
		assert.Equal(t, "civil", tpl.Category)
	}
	assert.Empty(t, c.Filter("motion", "probate"))
	assert.Contains(t, c.Types(), "petition")
	assert.Contains(t, c.Categories(), "family")
}

func TestCatalog_GetReturnsCopy(t *testing.T) {
	c := mustCatalog(t)
	a, err := c.Get("motion-to-dismiss")
	require.NoError(t, err)
	a.RequiredFields[0] = "mutated"

	b, err := c.Get("motion-to-dismiss")
	require.NoError(t, err)
	assert.Equal(t, "court", b.RequiredFields[0])
}

func TestParseCatalog_Errors(t *testing.T) {
	_, err := ParseCatalog([]byte("templates:\n  - id: a\n    name: A\n"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("templates:\n  - id: a\n    template: x\n  - id: a\n    template: y\n"))
	assert.Error(t, err)
}

func TestRender_MotionToDismiss(t *testing.T) {
	tpl, err := mustCatalog(t).Get("motion-to-dismiss")
	require.NoError(t, err)

	facts := map[string]string{
		"court":           "Hennepin County",
		"petitionerName":  "Jane Doe",
		"respondentName":  "John Doe",
		"caseNumber":      "24-CV-100",
		"attorneyName":    "A. Smith",
		"attorneyAddress": "1 Main St",
		"attorneyPhone":   "555-0100",
	}
	out := Render(tpl, facts, fixedNow)

	assert.True(t, out.Validation.IsValid)
	assert.NotNil(t, out.Validation.MissingFields)
	assert.Empty(t, out.Validation.MissingFields)
	assert.Contains(t, out.Document, "Hennepin County")
	assert.Contains(t, out.Document, "Case No. 24-CV-100")
	assert.Contains(t, out.Document, "Dated: March 5, 2024")
	assert.NotContains(t, out.Document, "{{")
	assert.NotContains(t, out.Document, NotProvided)
}

func TestRender_MissingField(t *testing.T) {
	tpl, err := mustCatalog(t).Get("motion-to-dismiss")
	require.NoError(t, err)

	facts := map[string]string{
		"court":           "Hennepin County",
		"petitionerName":  "Jane Doe",
		"respondentName":  "John Doe",
		"caseNumber":      "   ",
		"attorneyName":    "A. Smith",
		"attorneyAddress": "1 Main St",
		"attorneyPhone":   "555-0100",
	}
	out := Render(tpl, facts, fixedNow)

	assert.False(t, out.Validation.IsValid)
	assert.Equal(t, []string{"caseNumber"}, out.Validation.MissingFields)
	assert.NotContains(t, out.Document, "{{caseNumber}}")
}

func TestRender_EmptyFactsAcrossCatalog(t *testing.T) {
	placeholder := regexp.MustCompile(`\{\{[A-Za-z_][A-Za-z0-9_]*\}\}`)
	for _, tpl := range mustCatalog(t).All() {
		out := Render(tpl, nil, fixedNow)
		assert.False(t, placeholder.MatchString(out.Document), tpl.ID)
		assert.Equal(t, tpl.RequiredFields, out.Validation.MissingFields, tpl.ID)
		assert.Contains(t, out.Document, NotProvided, tpl.ID)
	}
}

func TestRender_Idempotent(t *testing.T) {
	tpl, err := mustCatalog(t).Get("small-claims-complaint")
	require.NoError(t, err)
	facts := map[string]string{"petitionerName": "Jane Doe", "damageAmount": "$1,200"}

	a := Render(tpl, facts, fixedNow)
	b := Render(tpl, facts, fixedNow)
	assert.Equal(t, a, b)
	assert.Contains(t, a.Document, "$1,200")
}

func TestRender_SentinelStringsVerbatim(t *testing.T) {
	tpl := entity.Template{
		ID:             "t",
		Body:           "A={{a}} B={{b}} C={{c}}",
		RequiredFields: []string{"a", "b", "c"},
	}
	out := Render(tpl, map[string]string{"a": "null", "b": "undefined", "c": ""}, fixedNow)

	assert.Equal(t, "A=null B=undefined C="+NotProvided, out.Document)
	assert.Equal(t, []string{"c"}, out.Validation.MissingFields)
}

func TestRender_UnknownPlaceholder(t *testing.T) {
	tpl := entity.Template{ID: "t", Body: "{{whatever}} on {{currentDate}}"}
	out := Render(tpl, map[string]string{}, fixedNow)
	assert.Equal(t, NotProvided+" on March 5, 2024", out.Document)
	assert.True(t, out.Validation.IsValid)
}

func TestRender_ValuesAreNotReexpanded(t *testing.T) {
	tpl := entity.Template{ID: "t", Body: "A={{a}} B={{b}}"}
	out := Render(tpl, map[string]string{"a": "see {{b}}", "b": "X"}, fixedNow)
	assert.Equal(t, "A=see {{b}} B=X", out.Document)

	out = Render(tpl, map[string]string{"a": "{{currentDate}}", "b": "{{missing}}"}, fixedNow)
	assert.Equal(t, "A={{currentDate}} B={{missing}}", out.Document)
}

func TestGenerator_AttorneyDefaults(t *testing.T) {
	g := NewGenerator(mustCatalog(t), AttorneyProfile{
		Name:    "Default Counsel",
		Address: "2 Court Sq",
		Phone:   "555-0199",
	})
	g.now = func() time.Time { return fixedNow }

	rec := &entity.FactRecord{}
	rec.Set("court", "Ramsey County")
	rec.Set("petitionerName", "Jane Doe")
	rec.Set("respondentName", "John Doe")
	rec.Set("caseNumber", "62-FA-7")
	rec.Set("attorneyName", "Record Counsel")

	out, tpl, err := g.Generate("motion-to-dismiss", rec)
	require.NoError(t, err)
	assert.Equal(t, "motion-to-dismiss", tpl.ID)
	assert.True(t, out.Validation.IsValid)
	assert.Contains(t, out.Document, "Record Counsel")
	assert.NotContains(t, out.Document, "Default Counsel")
	assert.Contains(t, out.Document, "2 Court Sq")
}

func TestGenerator_NilRecordAndUnknownTemplate(t *testing.T) {
	g := NewGenerator(mustCatalog(t), AttorneyProfile{})

	out, _, err := g.Generate("guardianship-petition", nil)
	require.NoError(t, err)
	assert.False(t, out.Validation.IsValid)
	assert.True(t, strings.Contains(out.Document, NotProvided))

	_, _, err = g.Generate("missing", nil)
	assert.True(t, common.IsNotFound(err))
}
