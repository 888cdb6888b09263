package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/dbx"
	"github.com/dmitrijs2005/casevault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `id, user_id, COALESCE(case_id, ''), file_name, file_type, file_size,
	storage_key, file_url, encrypted, content_encoding, category, COALESCE(description, ''), status, uploaded_at`

func (r *PostgresRepository) Create(ctx context.Context, d *models.Document) error {
	query := `
		INSERT INTO documents (id, user_id, case_id, file_name, file_type, file_size,
			storage_key, file_url, encrypted, content_encoding, category, description, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING uploaded_at
	`
	if d.ContentEncoding == "" {
		d.ContentEncoding = models.EncodingRaw
	}
	err := r.db.QueryRowContext(ctx, query,
		d.ID, d.UserID, nullString(d.CaseID), d.FileName, d.FileType, d.FileSize,
		d.StorageKey, d.FileURL, d.Encrypted, d.ContentEncoding, d.Category, nullString(d.Description), d.Status,
	).Scan(&d.UploadedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + selectColumns + ` FROM documents WHERE id = $1`

	d, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, userID string) ([]*models.Document, error) {
	query := `SELECT ` + selectColumns + ` FROM documents WHERE user_id = $1 ORDER BY uploaded_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select documents: %w", err)
	}
	defer rows.Close()

	var result []*models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*models.Document, error) {
	d := &models.Document{}
	err := s.Scan(&d.ID, &d.UserID, &d.CaseID, &d.FileName, &d.FileType, &d.FileSize,
		&d.StorageKey, &d.FileURL, &d.Encrypted, &d.ContentEncoding, &d.Category, &d.Description, &d.Status, &d.UploadedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
