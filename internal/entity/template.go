package entity

// Template is a legal document body with {{placeholder}} fields.
type Template struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	Type           string   `json:"type" yaml:"type"`
	Category       string   `json:"category" yaml:"category"`
	Body           string   `json:"template" yaml:"template"`
	RequiredFields []string `json:"requiredFields" yaml:"requiredFields"`
}

// Validation is the verdict on a rendered document's required fields.
type Validation struct {
	IsValid       bool     `json:"isValid"`
	MissingFields []string `json:"missingFields"`
}

// RenderedDocument is a filled template; it is never stored.
type RenderedDocument struct {
	Document   string     `json:"document"`
	Validation Validation `json:"validation"`
}
