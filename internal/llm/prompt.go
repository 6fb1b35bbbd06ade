package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/legal-docs/constants"
	"github.com/joseph-ayodele/legal-docs/internal/entity"
)

// ClassifyInputChars bounds how much document text goes to the classifier.
const ClassifyInputChars = 2000

const (
	extractSystemPrompt = "You are a legal document analysis expert. Extract information accurately and return only valid JSON."
	clarifySystemPrompt = "You are a legal assistant."
)

// ExtractSystemPrompt is the system message for structured extraction.
func ExtractSystemPrompt() string { return extractSystemPrompt }

// ClarifySystemPrompt is the system message for clarification questions.
func ClarifySystemPrompt() string { return clarifySystemPrompt }

// BuildExtractPrompt asks for every modeled fact as a flat JSON object.
func BuildExtractPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Extract key information from the following legal document text.\n")
	b.WriteString("Return a single JSON object using exactly these keys when the value is present in the text:\n")
	b.WriteString(strings.Join(entity.FactFieldNames(), ", "))
	b.WriteString(".\n")
	b.WriteString("Use a string for every value and null when a value is not present. Keep dates, amounts and phone numbers as written.\n")
	b.WriteString("Put any other relevant legal information under \"additionalInfo\" as an object.\n\n")
	b.WriteString("Document text:\n")
	b.WriteString(text)
	return b.String()
}

// BuildClassifyPrompt asks for type, category and confidence using a bounded prefix of text.
func BuildClassifyPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Analyze this legal document text and determine its type and category.\n\n")
	b.WriteString("Legal document types include: ")
	b.WriteString(strings.Join(constants.ClassifierTypes(), ", "))
	b.WriteString(".\nCategories include: ")
	b.WriteString(strings.Join(constants.ClassifierCategories(), ", "))
	b.WriteString(".\n\n")
	b.WriteString(`Return JSON with {"type": "document type", "category": "legal category", "confidence": 0.95} where confidence is between 0 and 1.`)
	b.WriteString("\n\nDocument text:\n")
	b.WriteString(TruncateRunes(text, ClassifyInputChars))
	return b.String()
}

// BuildClarifyPrompt asks for n clarifying questions, one per line.
func BuildClarifyPrompt(documentType string, confidence float64, facts any, n int) string {
	raw, err := json.Marshal(facts)
	if err != nil {
		raw = []byte("{}")
	}
	return fmt.Sprintf("Document type: %s\nExtracted info: %s\nConfidence: %.2f\n"+
		"Generate %d clarifying questions to complete this legal document.\n"+
		"Keep them concise and relevant. Put each question on its own line.",
		documentType, raw, confidence, n)
}

// TruncateRunes returns at most n runes of s.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
