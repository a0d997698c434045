package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/studyhub/core/material"
)

type materialRepository struct {
	db *DB
}

var _ material.Repository = (*materialRepository)(nil) // interface compliance check

func NewMaterialRepository(db *DB) material.Repository {
	return &materialRepository{db: db}
}

func (repo *materialRepository) CreateMaterial(ctx context.Context, mat material.Material) (material.Material, error) {
	defer repo.db.lock(ctx)()
	repo.db.t.materials[mat.ID] = mat
	return mat, nil
}

func (repo *materialRepository) GetMaterial(ctx context.Context, id string) (material.Material, error) {
	defer repo.db.lock(ctx)()

	mat, ok := repo.db.t.materials[id]
	if !ok {
		return material.Material{}, material.ErrNotFound
	}
	return mat, nil
}

func (repo *materialRepository) QueryMaterials(ctx context.Context, groupID, kind string) ([]material.Material, error) {
	defer repo.db.lock(ctx)()

	materials := make([]material.Material, 0)
	for _, mat := range repo.db.t.materials {
		if mat.GroupID == groupID && (kind == "" || mat.Kind == kind) {
			materials = append(materials, mat)
		}
	}
	sort.Slice(materials, func(i, j int) bool { return materials[i].CreatedAt.After(materials[j].CreatedAt) })
	return materials, nil
}

func (repo *materialRepository) DeleteMaterial(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.materials[id]; !ok {
		return material.ErrNotFound
	}
	repo.db.t.deleteMaterial(id)
	return nil
}

func (repo *materialRepository) DeleteMemberMaterials(ctx context.Context, groupID, userID string) ([]material.Material, error) {
	defer repo.db.lock(ctx)()

	deleted := make([]material.Material, 0)
	for id, mat := range repo.db.t.materials {
		if mat.GroupID == groupID && mat.UserID == userID {
			deleted = append(deleted, mat)
			repo.db.t.deleteMaterial(id)
		}
	}
	return deleted, nil
}
