package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"installpro/internal/events"
	"installpro/internal/model"
	"installpro/internal/repository"
	"installpro/pkg/apperror"
	"installpro/pkg/logger"
	"installpro/pkg/pagination"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ContractHandlerName     = "contracts"
	DefaultContractValidity = 30 * 24 * time.Hour
)

type ContractService interface {
	ListContracts(ctx context.Context, actor model.Actor, status string, p pagination.Params) (pagination.Page[model.Contract], error)
	GetContract(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Contract, error)
	ExpireOverdue(ctx context.Context) (int64, error)
}

type contractService struct {
	repo repository.ContractRepository
	now  func() time.Time
}

func NewContractService(repo repository.ContractRepository) ContractService {
	return &contractService{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

func (s *contractService) ListContracts(ctx context.Context, actor model.Actor, status string, p pagination.Params) (pagination.Page[model.Contract], error) {
	if actor.ID == uuid.Nil {
		return pagination.Page[model.Contract]{}, apperror.Unauthorized("Usuario no autenticado")
	}
	filter := repository.ContractFilter{Status: status}
	if actor.Role == model.RoleVendor || actor.Role == model.RoleInstaller {
		actorID := actor.ID
		filter.PartyID = &actorID
	}
	items, total, err := s.repo.List(ctx, filter, p)
	if err != nil {
		return pagination.Page[model.Contract]{}, apperror.Internal(err, "No se pudieron listar los contratos")
	}
	return pagination.Wrap(items, total, p), nil
}

func (s *contractService) GetContract(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Contract, error) {
	if actor.ID == uuid.Nil {
		return nil, apperror.Unauthorized("Usuario no autenticado")
	}
	c, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("Contrato no encontrado")
	}
	if err != nil {
		return nil, apperror.Internal(err, "No se pudo cargar el contrato")
	}
	if actor.Role == model.RoleVendor || actor.Role == model.RoleInstaller {
		if c.ClientID != actor.ID && c.InstallerID != actor.ID {
			return nil, apperror.Forbidden(apperror.ReasonNotOwner, "No eres parte de este contrato")
		}
	}
	return c, nil
}

// ExpireOverdue moves unsigned contracts past their validity to expired.
func (s *contractService) ExpireOverdue(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpirePending(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("expire contracts: %w", err)
	}
	if n > 0 {
		logger.L().Info("contracts expired", zap.Int64("count", n))
	}
	return n, nil
}

// --- Generator ---

// ContractGenerator creates the contract for an accepted installer price.
// The triggering history entry id is the idempotency key.
type ContractGenerator struct {
	contractRepo  repository.ContractRepository
	projectRepo   repository.ProjectRepository
	userRepo      repository.UserRepository
	notifications NotificationService
	validity      time.Duration
	now           func() time.Time
}

var _ events.Handler = (*ContractGenerator)(nil)

func NewContractGenerator(
	contractRepo repository.ContractRepository,
	projectRepo repository.ProjectRepository,
	userRepo repository.UserRepository,
	notifications NotificationService,
	validity time.Duration,
) *ContractGenerator {
	if validity <= 0 {
		validity = DefaultContractValidity
	}
	return &ContractGenerator{
		contractRepo:  contractRepo,
		projectRepo:   projectRepo,
		userRepo:      userRepo,
		notifications: notifications,
		validity:      validity,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (g *ContractGenerator) Name() string { return ContractHandlerName }

func (g *ContractGenerator) Handle(ctx context.Context, evt events.ProjectEvent) error {
	if evt.Type != events.ProjectUpdated || !evt.IsPriceBeingAccepted {
		return nil
	}
	log := logger.L().With(zap.Uint("project_id", evt.ProjectID), zap.String("history_id", evt.ID.String()))

	if _, err := g.contractRepo.FindBySourceHistoryID(ctx, evt.ID); err == nil {
		log.Info("contract already generated for transition")
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("check existing contract: %w", err)
	}

	project, err := g.projectRepo.FindByID(ctx, evt.ProjectID)
	if err != nil {
		return fmt.Errorf("load project %d: %w", evt.ProjectID, err)
	}

	installer, err := g.resolveUser(ctx, project.AssignedInstallerID, project.AssignedInstallerName, model.RoleInstaller)
	if err != nil {
		log.Warn("contract skipped: installer not resolvable", zap.Error(err))
		return nil
	}
	vendor, err := g.resolveUser(ctx, project.CreatedByID, project.CreatedByName, "")
	if err != nil {
		log.Warn("contract skipped: creator not resolvable", zap.Error(err))
		return nil
	}

	amount := parseNullDecimal(evt.Price)
	if !amount.Valid {
		amount = project.InstallerPriceProposal
	}
	if !amount.Valid {
		log.Warn("contract skipped: no accepted price")
		return nil
	}

	now := g.now()
	contract := &model.Contract{
		ID:             uuid.New(),
		ContractNumber: NewContractNumber(now),
		ProjectID:      project.ID,
		Title:          fmt.Sprintf("Contrato de instalación - %s", project.Name),
		Description: fmt.Sprintf("Instalación del proyecto %q (%s) a cargo de %s para %s. Monto acordado: %s",
			project.Name, project.InvoiceNumber, installer.Name, vendor.Name, FormatPrice(amount)),
		Amount:          amount.Decimal,
		ClientID:        vendor.ID,
		InstallerID:     installer.ID,
		Status:          model.ContractPendingSignature,
		ValidFrom:       now,
		ValidUntil:      now.Add(g.validity),
		SourceHistoryID: evt.ID,
	}
	if err := g.contractRepo.Create(ctx, contract); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			log.Info("contract already generated for transition")
			return nil
		}
		return fmt.Errorf("create contract: %w", err)
	}
	log.Info("contract generated", zap.String("contract_number", contract.ContractNumber))

	_, err = g.notifications.Notify(ctx, NotifyRequest{
		UserID:  vendor.ID,
		Type:    model.NotifContractReady,
		Title:   "Contrato listo para firma",
		Message: fmt.Sprintf("El contrato %s del proyecto %q está listo para firma", contract.ContractNumber, project.Name),
		Data: map[string]interface{}{
			"contract_id":     contract.ID.String(),
			"contract_number": contract.ContractNumber,
			"project_id":      project.ID,
			"amount":          contract.Amount.String(),
			"valid_until":     contract.ValidUntil,
		},
		Key: evt.ID.String(),
	})
	if err != nil {
		logNotifyFailure(model.NotifContractReady, project.ID, err)
	}
	return nil
}

func (g *ContractGenerator) resolveUser(ctx context.Context, id *uuid.UUID, name, role string) (*model.User, error) {
	if id != nil {
		return g.userRepo.GetByID(ctx, *id)
	}
	if name == "" {
		return nil, repository.ErrNotFound
	}
	return g.userRepo.GetByName(ctx, name, role)
}

// NewContractNumber returns CTR-YYYYMMDD-XXXXXXXX with a random suffix.
func NewContractNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("CTR-%s-%s", at.Format("20060102"), suffix)
}
