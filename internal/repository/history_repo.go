package repository

import (
	"context"

	"installpro/internal/model"

	"gorm.io/gorm"
)

// HistoryRepository is append-only: there is no update or delete.
type HistoryRepository interface {
	Append(ctx context.Context, entry *model.ProjectHistory) error
	ListByProject(ctx context.Context, projectID uint) ([]model.ProjectHistory, error)
}

type historyRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Append(ctx context.Context, entry *model.ProjectHistory) error {
	return translate(GetDB(ctx, r.db).Create(entry).Error)
}

func (r *historyRepository) ListByProject(ctx context.Context, projectID uint) ([]model.ProjectHistory, error) {
	var entries []model.ProjectHistory
	if err := GetDB(ctx, r.db).
		Where("project_id = ?", projectID).
		Order("created_at asc, id asc").
		Find(&entries).Error; err != nil {
		return nil, translate(err)
	}
	return entries, nil
}
