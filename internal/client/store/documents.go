package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/seaward/backoffice/internal/client"
	"github.com/seaward/backoffice/internal/database"
)

const selectDocumentColumns = `id, client_id, name, content_type, size_bytes, storage_key, url, uploaded_at`

func scanDocument(s scanner) (*client.Document, error) {
	var d client.Document

	if err := s.Scan(&d.ID, &d.ClientID, &d.Name, &d.ContentType, &d.Size, &d.Key, &d.URL, &d.UploadedAt); err != nil {
		return nil, err
	}

	return &d, nil
}

func (s *Store) CreateDocument(ctx context.Context, d *client.Document) error {
	query := `
		INSERT INTO client_documents (client_id, name, content_type, size_bytes, storage_key, url, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, uploaded_at
	`

	err := s.db.QueryRowContext(ctx, query, d.ClientID, d.Name, d.ContentType, d.Size, d.Key, d.URL).
		Scan(&d.ID, &d.UploadedAt)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return client.ErrNotFound
		}

		return fmt.Errorf("creating document: %w", err)
	}

	return nil
}

func (s *Store) ListDocuments(ctx context.Context, clientID uuid.UUID) ([]*client.Document, error) {
	query := `SELECT ` + selectDocumentColumns + `
		FROM client_documents
		WHERE client_id = $1
		ORDER BY uploaded_at DESC`

	rows, err := s.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	docs := []*client.Document{}

	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}

		docs = append(docs, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

func (s *Store) GetDocument(ctx context.Context, clientID, id uuid.UUID) (*client.Document, error) {
	query := `SELECT ` + selectDocumentColumns + ` FROM client_documents WHERE client_id = $1 AND id = $2`

	d, err := scanDocument(s.db.QueryRowContext(ctx, query, clientID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, client.ErrDocumentNotFound
		}

		return nil, fmt.Errorf("getting document: %w", err)
	}

	return d, nil
}

func (s *Store) DeleteDocument(ctx context.Context, clientID, id uuid.UUID) (*client.Document, error) {
	query := `DELETE FROM client_documents WHERE client_id = $1 AND id = $2 RETURNING ` + selectDocumentColumns

	d, err := scanDocument(s.db.QueryRowContext(ctx, query, clientID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, client.ErrDocumentNotFound
		}

		return nil, fmt.Errorf("deleting document: %w", err)
	}

	return d, nil
}
