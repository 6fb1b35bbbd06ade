package constants

import (
	"strings"
)

// DocumentType is the kind of legal document (motion, petition, ...).
type DocumentType string

const (
	TypePetition    DocumentType = "petition"
	TypeMotion      DocumentType = "motion"
	TypeOrder       DocumentType = "order"
	TypeDecree      DocumentType = "decree"
	TypeAgreement   DocumentType = "agreement"
	TypeNotice      DocumentType = "notice"
	TypeBrief       DocumentType = "brief"
	TypeApplication DocumentType = "application"
	TypeComplaint   DocumentType = "complaint"
	TypeSubpoena    DocumentType = "subpoena"
	TypeUnknown     DocumentType = "unknown"
)

// Category is the area of law a document belongs to.
type Category string

const (
	CategoryFamily          Category = "family"
	CategoryCivil           Category = "civil"
	CategoryCriminal        Category = "criminal"
	CategoryProbate         Category = "probate"
	CategoryRealEstate      Category = "real estate"
	CategoryBusiness        Category = "business"
	CategoryHousing         Category = "housing"
	CategoryProtectiveOrder Category = "protective-order"
	CategoryFederalCivil    Category = "federal-civil"
	CategoryFederalCriminal Category = "federal-criminal"
	CategoryFederalAttorney Category = "federal-attorney"
	CategoryGeneral         Category = "general"
)

// classifierTypes and classifierCategories are offered to the classifier.
var classifierTypes = []DocumentType{
	TypePetition, TypeMotion, TypeOrder, TypeDecree, TypeAgreement, TypeNotice, TypeBrief,
}

var classifierCategories = []Category{
	CategoryFamily, CategoryCivil, CategoryCriminal, CategoryProbate, CategoryRealEstate, CategoryBusiness,
}

// ClassifierTypes returns the document types the classifier chooses from.
func ClassifierTypes() []string {
	out := make([]string, len(classifierTypes))
	for i, t := range classifierTypes {
		out[i] = string(t)
	}
	return out
}

// ClassifierCategories returns the legal categories the classifier chooses from.
func ClassifierCategories() []string {
	out := make([]string, len(classifierCategories))
	for i, c := range classifierCategories {
		out[i] = string(c)
	}
	return out
}

// CanonicalType lowercases a free-form type label, mapping blanks to unknown.
func CanonicalType(input string) DocumentType {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return TypeUnknown
	}
	return DocumentType(normalized)
}

// CanonicalCategory lowercases a free-form category label, mapping blanks to general.
func CanonicalCategory(input string) Category {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return CategoryGeneral
	}
	synonyms := map[string]Category{
		"realestate":  CategoryRealEstate,
		"real-estate": CategoryRealEstate,
		"domestic":    CategoryFamily,
		"estate":      CategoryProbate,
	}
	if c, ok := synonyms[normalized]; ok {
		return c
	}
	return Category(normalized)
}
