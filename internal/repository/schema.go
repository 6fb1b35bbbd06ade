package repository

import (
	"context"
	"database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	documentsTable = "documents"
	factsTable     = "facts"
)

var (
	// DocumentsColumns holds the columns for the "documents" table.
	DocumentsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "file_name", Type: field.TypeString},
		{Name: "original_name", Type: field.TypeString},
		{Name: "file_type", Type: field.TypeString, Size: 16},
		{Name: "file_size", Type: field.TypeInt64},
		{Name: "uploaded_at", Type: field.TypeTime},
		{Name: "status", Type: field.TypeString, Size: 16},
		{Name: "extracted_text", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "processing_error", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "document_type", Type: field.TypeString, Nullable: true},
		{Name: "category", Type: field.TypeString, Nullable: true},
		{Name: "confidence", Type: field.TypeFloat64, Nullable: true},
	}
	// DocumentsTable holds the schema information for the "documents" table.
	DocumentsTable = &schema.Table{
		Name:       documentsTable,
		Columns:    DocumentsColumns,
		PrimaryKey: []*schema.Column{DocumentsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "document_uploaded_at", Columns: []*schema.Column{DocumentsColumns[5]}},
		},
	}
	// FactsColumns holds the columns for the "facts" table.
	FactsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "fields", Type: field.TypeJSON},
		{Name: "additional_info", Type: field.TypeJSON, Nullable: true},
		{Name: "extracted_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "document_id", Type: field.TypeString, Size: 36},
	}
	// FactsTable holds the schema information for the "facts" table.
	FactsTable = &schema.Table{
		Name:       factsTable,
		Columns:    FactsColumns,
		PrimaryKey: []*schema.Column{FactsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "facts_documents_facts",
				Columns:    []*schema.Column{FactsColumns[5]},
				RefColumns: []*schema.Column{DocumentsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "fact_document_id", Unique: true, Columns: []*schema.Column{FactsColumns[5]}},
		},
	}
	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		DocumentsTable,
		FactsTable,
	}

	documentColumns = columnNames(DocumentsColumns)
	factColumns     = columnNames(FactsColumns)
)

func init() {
	FactsTable.ForeignKeys[0].RefTable = DocumentsTable
}

// Migrate creates or updates the tables on db.
func Migrate(ctx context.Context, dialectName string, db *sql.DB) error {
	m, err := schema.NewMigrate(entsql.OpenDB(dialectName, db))
	if err != nil {
		return fmt.Errorf("init migration: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func columnNames(cols []*schema.Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}
