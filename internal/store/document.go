package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/fyrsmithlabs/reviewd/internal/model"
)

// PutDocument inserts or replaces a document.
func (s *Store) PutDocument(ctx context.Context, doc *model.Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, matter_id, filename, text, doc_type, created_at)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			matter_id = excluded.matter_id,
			filename = excluded.filename,
			text = excluded.text,
			doc_type = excluded.doc_type`,
		doc.ID, doc.MatterID, doc.Filename, doc.Text, nullable(doc.DocType), doc.CreatedAt)
	return err
}

// GetDocumentsByIDs fetches documents by explicit ID list, preserving store
// order. Missing IDs are silently skipped; callers decide whether an
// incomplete set is an error.
func (s *Store) GetDocumentsByIDs(ctx context.Context, ids []string) ([]*model.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, matter_id, filename, text, doc_type, created_at
		FROM documents WHERE id IN (`+placeholders+`) ORDER BY created_at ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// ListDocumentsByMatter returns all documents of a matter, oldest first.
func (s *Store) ListDocumentsByMatter(ctx context.Context, matterID string) ([]*model.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, matter_id, filename, text, doc_type, created_at
		FROM documents WHERE matter_id = ? ORDER BY created_at ASC`, matterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDocuments(rows)
}

func collectDocuments(rows *sql.Rows) ([]*model.Document, error) {
	var docs []*model.Document
	for rows.Next() {
		var (
			d       model.Document
			docType sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.MatterID, &d.Filename, &d.Text, &docType, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.DocType = docType.String
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}
