package entity

import (
	"time"

	"github.com/joseph-ayodele/legal-docs/constants"
)

// Document is an uploaded file and its processing state.
type Document struct {
	ID              string                   `json:"id"`
	FileName        string                   `json:"fileName"` // stored name under the upload dir
	OriginalName    string                   `json:"originalName"`
	FileType        string                   `json:"fileType"` // normalized extension, no dot
	FileSize        int64                    `json:"fileSize"`
	UploadedAt      time.Time                `json:"uploadedAt"`
	Status          constants.DocumentStatus `json:"status"`
	ExtractedText   *string                  `json:"extractedText,omitempty"`
	ProcessingError *string                  `json:"processingError,omitempty"`
	DocumentType    *string                  `json:"documentType,omitempty"`
	Category        *string                  `json:"category,omitempty"`
	Confidence      *float64                 `json:"confidence,omitempty"`
}

// DocumentUpdate carries the pipeline's writes to a document. Nil fields are
// left unchanged except where ClearError/ClearText ask otherwise.
type DocumentUpdate struct {
	Status          *constants.DocumentStatus
	ExtractedText   *string
	ProcessingError *string
	Classification  *Classification
	ClearError      bool
	ClearText       bool
}

// Apply mutates d in place.
func (u DocumentUpdate) Apply(d *Document) {
	if u.Status != nil {
		d.Status = *u.Status
	}
	if u.ClearText {
		d.ExtractedText = nil
	}
	if u.ExtractedText != nil {
		t := *u.ExtractedText
		d.ExtractedText = &t
	}
	if u.ClearError {
		d.ProcessingError = nil
	}
	if u.ProcessingError != nil {
		e := *u.ProcessingError
		d.ProcessingError = &e
	}
	if u.Classification != nil {
		typ, cat, conf := u.Classification.Type, u.Classification.Category, u.Classification.Confidence
		d.DocumentType, d.Category, d.Confidence = &typ, &cat, &conf
	}
}

// Classification is the inferred kind of a document.
type Classification struct {
	Type       string  `json:"type"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// DefaultClassification is returned whenever classification fails.
func DefaultClassification() Classification {
	return Classification{
		Type:       string(constants.TypeUnknown),
		Category:   string(constants.CategoryGeneral),
		Confidence: 0,
	}
}
