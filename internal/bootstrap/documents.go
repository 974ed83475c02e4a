package bootstrap

import (
	"docrow.io/row-export-backend/internal/cursor"
	"docrow.io/row-export-backend/internal/shape"
)

// DocumentsQuery feeds the documents shape.
const DocumentsQuery = `SELECT * FROM Documents ORDER BY Id`

// DocumentsShape is the example export: mortgage document metadata with a
// nested loan object, a flattened audit group, and tag/comment column groups
// collapsed into arrays.
func DocumentsShape() *shape.Shape {
	return shape.New("documents",
		shape.Col("id", "Id", cursor.Int64),
		shape.Col("documentId", "DocumentId", cursor.UUID),
		shape.Col("fileName", "FileName", cursor.String),
		shape.Col("mimeType", "MimeType", cursor.String),
		shape.Col("sizeBytes", "SizeBytes", cursor.Int64),
		shape.Col("pageCount", "PageCount", cursor.Int16),
		shape.Col("isArchived", "IsArchived", cursor.Bool),
		shape.Obj("loan",
			shape.Col("number", "LoanNumber", cursor.String),
			shape.Col("amount", "LoanAmount", cursor.Decimal),
			shape.Col("borrower", "BorrowerName", cursor.String),
			shape.Col("propertyCity", "PropertyCity", cursor.String),
		),
		shape.Flat(
			shape.Col("createdAt", "CreatedAt", cursor.Timestamp),
			shape.Col("createdBy", "CreatedBy", cursor.String),
			shape.Col("updatedAt", "UpdatedAt", cursor.Timestamp),
			shape.Col("updatedBy", "UpdatedBy", cursor.String),
		),
		shape.Pattern("tags", "Tag_"),
		shape.Pattern("comments", "Comment_"),
	)
}
