package repository

import (
	"context"
	"time"

	"installpro/internal/model"
	"installpro/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContractFilter narrows contract listings. PartyID matches either side.
type ContractFilter struct {
	Status    string
	ProjectID uint
	PartyID   *uuid.UUID
}

type ContractRepository interface {
	Create(ctx context.Context, c *model.Contract) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Contract, error)
	FindBySourceHistoryID(ctx context.Context, historyID uuid.UUID) (*model.Contract, error)
	List(ctx context.Context, filter ContractFilter, p pagination.Params) ([]model.Contract, int64, error)
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
}

type contractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) ContractRepository {
	return &contractRepository{db: db}
}

func (r *contractRepository) Create(ctx context.Context, c *model.Contract) error {
	return translate(GetDB(ctx, r.db).Create(c).Error)
}

func (r *contractRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	var c model.Contract
	if err := GetDB(ctx, r.db).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *contractRepository) FindBySourceHistoryID(ctx context.Context, historyID uuid.UUID) (*model.Contract, error) {
	var c model.Contract
	if err := GetDB(ctx, r.db).Where("source_history_id = ?", historyID).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *contractRepository) List(ctx context.Context, filter ContractFilter, p pagination.Params) ([]model.Contract, int64, error) {
	var items []model.Contract
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Contract{})
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.ProjectID != 0 {
		db = db.Where("project_id = ?", filter.ProjectID)
	}
	if filter.PartyID != nil {
		db = db.Where("client_id = ? OR installer_id = ?", *filter.PartyID, *filter.PartyID)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}
	if err := db.Order("created_at desc").Offset(p.Offset).Limit(p.Limit).Find(&items).Error; err != nil {
		return nil, 0, translate(err)
	}
	return items, total, nil
}

// ExpirePending marks unsigned contracts whose validity ended before now.
func (r *contractRepository) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.Contract{}).
		Where("status = ? AND valid_until < ?", model.ContractPendingSignature, now).
		Update("status", model.ContractExpired)
	return res.RowsAffected, translate(res.Error)
}

func (r *contractRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Contract{}).Where("status = ?", status).Count(&count).Error
	return count, translate(err)
}
