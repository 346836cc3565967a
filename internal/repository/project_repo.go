package repository

import (
	"context"
	"fmt"

	"installpro/internal/model"
	"installpro/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProjectFilter narrows project listings. Zero values mean no restriction.
type ProjectFilter struct {
	Status              string
	Search              string
	CreatedByID         *uuid.UUID
	CreatedByName       string // legacy rows without CreatedByID
	AssignedInstallerID *uuid.UUID
}

type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	FindByID(ctx context.Context, id uint) (*model.Project, error)
	Update(ctx context.Context, project *model.Project, expectedVersion int) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter ProjectFilter, p pagination.Params) ([]model.Project, int64, error)
	ListInvoiceNumbers(ctx context.Context) ([]string, error)
	LockInvoiceSequence(ctx context.Context) error
	CountByStatus(ctx context.Context) ([]model.StatusCount, error)
	CountByPriceStatus(ctx context.Context) ([]model.StatusCount, error)
}

type projectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

// Create inserts the project with its items. History is written through
// HistoryRepository.
func (r *projectRepository) Create(ctx context.Context, project *model.Project) error {
	return translate(GetDB(ctx, r.db).Omit("History").Create(project).Error)
}

func (r *projectRepository) FindByID(ctx context.Context, id uint) (*model.Project, error) {
	var project model.Project
	err := GetDB(ctx, r.db).
		Preload("Items").
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at asc, id asc")
		}).
		First(&project, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &project, nil
}

// Update writes the mutable fields only if the stored version still equals
// expectedVersion.
func (r *projectRepository) Update(ctx context.Context, project *model.Project, expectedVersion int) error {
	res := GetDB(ctx, r.db).Model(&model.Project{}).
		Where("id = ? AND version = ?", project.ID, expectedVersion).
		Updates(map[string]interface{}{
			"name":                     project.Name,
			"client_name":              project.ClientName,
			"client_email":             project.ClientEmail,
			"client_phone":             project.ClientPhone,
			"address":                  project.Address,
			"notes":                    project.Notes,
			"status":                   project.Status,
			"assigned_installer_id":    project.AssignedInstallerID,
			"assigned_installer_name":  project.AssignedInstallerName,
			"installer_price_proposal": project.InstallerPriceProposal,
			"installer_price_status":   project.InstallerPriceStatus,
			"scheduled_installation":   project.ScheduledInstallation,
			"last_modified":            project.LastModified,
			"last_modified_by":         project.LastModifiedBy,
			"approved_at":              project.ApprovedAt,
			"approved_by":              project.ApprovedBy,
			"version":                  project.Version,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update project %d: %w", project.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *projectRepository) Delete(ctx context.Context, id uint) error {
	res := GetDB(ctx, r.db).Delete(&model.Project{}, id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *projectRepository) List(ctx context.Context, filter ProjectFilter, p pagination.Params) ([]model.Project, int64, error) {
	var projects []model.Project
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Project{})
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		db = db.Where("name ILIKE ? OR client_name ILIKE ? OR invoice_number ILIKE ?", like, like, like)
	}
	if filter.CreatedByID != nil {
		if filter.CreatedByName != "" {
			db = db.Where("created_by_id = ? OR (created_by_id IS NULL AND created_by_name = ?)", *filter.CreatedByID, filter.CreatedByName)
		} else {
			db = db.Where("created_by_id = ?", *filter.CreatedByID)
		}
	}
	if filter.AssignedInstallerID != nil {
		db = db.Where("assigned_installer_id = ?", *filter.AssignedInstallerID)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	if err := db.Preload("Items").Order("created_at desc, id desc").
		Offset(p.Offset).Limit(p.Limit).Find(&projects).Error; err != nil {
		return nil, 0, translate(err)
	}

	return projects, total, nil
}

// ListInvoiceNumbers returns every invoice number ever issued, soft-deleted
// projects included.
func (r *projectRepository) ListInvoiceNumbers(ctx context.Context) ([]string, error) {
	var numbers []string
	if err := GetDB(ctx, r.db).Unscoped().Model(&model.Project{}).
		Pluck("invoice_number", &numbers).Error; err != nil {
		return nil, translate(err)
	}
	return numbers, nil
}

// LockInvoiceSequence serialises invoice number allocation until the
// surrounding transaction ends.
func (r *projectRepository) LockInvoiceSequence(ctx context.Context) error {
	return translate(GetDB(ctx, r.db).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "projects.invoice_number").Error)
}

func (r *projectRepository) CountByStatus(ctx context.Context) ([]model.StatusCount, error) {
	var rows []model.StatusCount
	if err := GetDB(ctx, r.db).Model(&model.Project{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count projects by status: %w", err)
	}
	return rows, nil
}

func (r *projectRepository) CountByPriceStatus(ctx context.Context) ([]model.StatusCount, error) {
	var rows []model.StatusCount
	if err := GetDB(ctx, r.db).Model(&model.Project{}).
		Select("installer_price_status as status, COUNT(*) as count").
		Where("installer_price_status IS NOT NULL AND assigned_installer_id IS NOT NULL").
		Group("installer_price_status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count projects by price status: %w", err)
	}
	return rows, nil
}
