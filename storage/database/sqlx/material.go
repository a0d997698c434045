package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/studyhub/core/material"
)

const materialColumns = "id, group_id, user_id, title, content, kind, url, file_path, file_name, file_size, mime_type, created_at, updated_at"

type materialRow struct {
	ID        string    `db:"id"`
	GroupID   string    `db:"group_id"`
	UserID    string    `db:"user_id"`
	Title     string    `db:"title"`
	Content   string    `db:"content"`
	Kind      string    `db:"kind"`
	URL       string    `db:"url"`
	FilePath  string    `db:"file_path"`
	FileName  string    `db:"file_name"`
	FileSize  int64     `db:"file_size"`
	MimeType  string    `db:"mime_type"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r materialRow) toMaterial() material.Material {
	return material.Material{
		ID:        r.ID,
		GroupID:   r.GroupID,
		UserID:    r.UserID,
		Title:     r.Title,
		Content:   r.Content,
		Kind:      r.Kind,
		URL:       r.URL,
		FilePath:  r.FilePath,
		FileName:  r.FileName,
		FileSize:  r.FileSize,
		MimeType:  r.MimeType,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func toMaterials(rows []materialRow) []material.Material {
	materials := make([]material.Material, 0, len(rows))
	for _, r := range rows {
		materials = append(materials, r.toMaterial())
	}
	return materials
}

type materialRepository struct {
	db *sqlx.DB
}

var _ material.Repository = (*materialRepository)(nil) // interface compliance check

func NewMaterialRepository(db *sqlx.DB) material.Repository {
	return &materialRepository{db: db}
}

func (repo *materialRepository) CreateMaterial(ctx context.Context, mat material.Material) (material.Material, error) {
	qb := psql.Insert("material").
		Columns("id", "group_id", "user_id", "title", "content", "kind", "url", "file_path", "file_name", "file_size",
			"mime_type", "created_at", "updated_at").
		Values(mat.ID, mat.GroupID, mat.UserID, mat.Title, mat.Content, mat.Kind, mat.URL, mat.FilePath, mat.FileName,
			mat.FileSize, mat.MimeType, mat.CreatedAt, mat.UpdatedAt)
	if _, err := exec(ctx, repo.db, qb); err != nil {
		return material.Material{}, err
	}
	return mat, nil
}

func (repo *materialRepository) GetMaterial(ctx context.Context, id string) (material.Material, error) {
	var row materialRow
	if err := get(ctx, repo.db, &row, psql.Select(materialColumns).From("material").Where(sq.Eq{"id": id})); err != nil {
		return material.Material{}, notFound(err, material.ErrNotFound)
	}
	return row.toMaterial(), nil
}

func (repo *materialRepository) QueryMaterials(ctx context.Context, groupID, kind string) ([]material.Material, error) {
	qb := psql.Select(materialColumns).From("material").Where(sq.Eq{"group_id": groupID}).OrderBy("created_at DESC")
	if kind != "" {
		qb = qb.Where(sq.Eq{"kind": kind})
	}
	var rows []materialRow
	if err := selectRows(ctx, repo.db, &rows, qb); err != nil {
		return nil, err
	}
	return toMaterials(rows), nil
}

func (repo *materialRepository) DeleteMaterial(ctx context.Context, id string) error {
	n, err := exec(ctx, repo.db, psql.Delete("material").Where(sq.Eq{"id": id}))
	if err != nil {
		return err
	}
	if n == 0 {
		return material.ErrNotFound
	}
	return nil
}

func (repo *materialRepository) DeleteMemberMaterials(ctx context.Context, groupID, userID string) ([]material.Material, error) {
	var rows []materialRow
	qb := psql.Delete("material").
		Where(sq.Eq{"group_id": groupID, "user_id": userID}).
		Suffix("RETURNING " + materialColumns)
	if err := selectRows(ctx, repo.db, &rows, qb); err != nil {
		return nil, err
	}
	return toMaterials(rows), nil
}
