package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/legal-docs/internal/entity"
	"github.com/joseph-ayodele/legal-docs/internal/repository"
)

const (
	documentsSheet = "Documents"
	factsSheet     = "Facts"
)

// Service produces XLSX workbooks of documents and their fact records.
type Service struct {
	docs   repository.DocumentRepository
	facts  repository.FactRepository
	logger *slog.Logger
}

func NewService(docs repository.DocumentRepository, facts repository.FactRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, facts: facts, logger: logger}
}

// DocumentsXLSX returns a workbook with one row per document on "Documents"
// and one row per fact record on "Facts". Fact columns are the named facts
// set on at least one record, in declaration order.
func (s *Service) DocumentsXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	docs, err := s.docs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	recs, err := s.facts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", documentsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(factsSheet); err != nil {
		return nil, err
	}
	idx, _ := f.GetSheetIndex(documentsSheet)
	f.SetActiveSheet(idx)

	writeDocuments(f, docs)
	names := make(map[string]string, len(docs))
	for _, d := range docs {
		names[d.ID] = d.OriginalName
	}
	if err := writeFacts(f, recs, names); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"documents", len(docs),
		"fact_records", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeDocuments(f *excelize.File, docs []*entity.Document) {
	headers := []string{
		"Document ID", "Original Name", "File Type", "Size (bytes)", "Uploaded At",
		"Status", "Document Type", "Category", "Confidence", "Processing Error",
	}
	writeRow(f, documentsSheet, 1, toAny(headers))

	for i, d := range docs {
		writeRow(f, documentsSheet, i+2, []any{
			d.ID,
			d.OriginalName,
			d.FileType,
			d.FileSize,
			d.UploadedAt.UTC().Format(time.RFC3339),
			string(d.Status),
			deref(d.DocumentType),
			deref(d.Category),
			confidence(d.Confidence),
			truncate(deref(d.ProcessingError), 240),
		})
	}

	_ = f.SetColWidth(documentsSheet, "A", "A", 38) // id
	_ = f.SetColWidth(documentsSheet, "B", "B", 32) // name
	_ = f.SetColWidth(documentsSheet, "E", "E", 22) // uploaded
	_ = f.SetColWidth(documentsSheet, "J", "J", 60) // error
}

func writeFacts(f *excelize.File, recs []*entity.FactRecord, docNames map[string]string) error {
	used := map[string]bool{}
	for _, r := range recs {
		for k := range r.Facts.Map() {
			used[k] = true
		}
	}
	var columns []string
	for _, name := range entity.FactFieldNames() {
		if used[name] {
			columns = append(columns, name)
		}
	}

	headers := append([]string{"Fact Record ID", "Document ID", "Original Name", "Extracted At"}, columns...)
	headers = append(headers, "Additional Info")
	writeRow(f, factsSheet, 1, toAny(headers))

	for i, r := range recs {
		row := []any{r.ID, r.DocumentID, docNames[r.DocumentID], r.ExtractedAt.UTC().Format(time.RFC3339)}
		for _, name := range columns {
			v, _ := r.Get(name)
			row = append(row, v)
		}
		extra := ""
		if len(r.AdditionalInfo) > 0 {
			b, err := json.Marshal(r.AdditionalInfo)
			if err != nil {
				return fmt.Errorf("encode additional info for %s: %w", r.ID, err)
			}
			extra = string(b)
		}
		writeRow(f, factsSheet, i+2, append(row, extra))
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for col, v := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func confidence(p *float64) any {
	if p == nil {
		return ""
	}
	return *p
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
