package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"installpro/internal/events"
	"installpro/internal/model"
	"installpro/internal/repository"
	"installpro/pkg/apperror"
	"installpro/pkg/logger"
	"installpro/pkg/optional"
	"installpro/pkg/pagination"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- DTOs ---

// ProjectPatch is a sparse update. Absent fields keep their stored value,
// null clears optional fields.
type ProjectPatch struct {
	Status                 optional.Field[string]          `json:"status" swaggertype:"string"`
	Comment                optional.Field[string]          `json:"comment" swaggertype:"string"`
	AssignedInstaller      optional.Field[string]          `json:"assigned_installer" swaggertype:"string"`
	AssignedInstallerID    optional.Field[uuid.UUID]       `json:"assigned_installer_id" swaggertype:"string"`
	InstallerPriceProposal optional.Field[decimal.Decimal] `json:"installer_price_proposal" swaggertype:"number"`
	InstallerPriceStatus   optional.Field[string]          `json:"installer_price_status" swaggertype:"string"`
	ScheduledInstallation  optional.Field[time.Time]       `json:"scheduled_installation" swaggertype:"string"`
	Name                   optional.Field[string]          `json:"name" swaggertype:"string"`
	ClientName             optional.Field[string]          `json:"client_name" swaggertype:"string"`
	ClientEmail            optional.Field[string]          `json:"client_email" swaggertype:"string"`
	ClientPhone            optional.Field[string]          `json:"client_phone" swaggertype:"string"`
	Address                optional.Field[string]          `json:"address" swaggertype:"string"`
	Notes                  optional.Field[string]          `json:"notes" swaggertype:"string"`
	// Version, when sent, must match the stored version.
	Version optional.Field[int] `json:"version" swaggertype:"integer"`
}

func (p *ProjectPatch) touchesAssignment() bool {
	return p.AssignedInstaller.Set || p.AssignedInstallerID.Set || p.InstallerPriceProposal.Set
}

// Validate rejects malformed values before anything is loaded.
func (p *ProjectPatch) Validate() error {
	if p.Status.Null {
		return apperror.Invalid("El estado no puede ser nulo")
	}
	if s, ok := p.Status.Get(); ok && !model.IsValidStatus(s) {
		return apperror.Invalid(fmt.Sprintf("Estado inválido: %q", s))
	}
	if s, ok := p.InstallerPriceStatus.Get(); ok && !model.IsValidPriceStatus(s) {
		return apperror.Invalid(fmt.Sprintf("Estado de precio inválido: %q", s))
	}
	if d, ok := p.InstallerPriceProposal.Get(); ok && d.IsNegative() {
		return apperror.Invalid("El precio de instalación no puede ser negativo")
	}
	if p.Name.Set && strings.TrimSpace(p.Name.Value) == "" {
		return apperror.Invalid("El nombre del proyecto es obligatorio")
	}
	if v, ok := p.Version.Get(); ok && v < 1 {
		return apperror.Invalid("Versión inválida")
	}
	return nil
}

type CreateProjectItem struct {
	ProductID   *uuid.UUID       `json:"product_id"`
	ProductName string           `json:"product_name"`
	Quantity    int              `json:"quantity" binding:"required,gt=0"`
	UnitPrice   *decimal.Decimal `json:"unit_price" swaggertype:"number"`
}

type CreateProjectRequest struct {
	Name                  string              `json:"name" binding:"required"`
	ClientName            string              `json:"client_name"`
	ClientEmail           string              `json:"client_email" binding:"omitempty,email"`
	ClientPhone           string              `json:"client_phone"`
	Address               string              `json:"address"`
	Notes                 string              `json:"notes"`
	Status                string              `json:"status" binding:"omitempty,oneof=draft pending_approval"`
	ScheduledInstallation *time.Time          `json:"scheduled_installation"`
	Items                 []CreateProjectItem `json:"items" binding:"dive"`
}

type ProjectListFilter struct {
	Status string
	Search string
}

// --- Interface ---

type ProjectService interface {
	CreateProject(ctx context.Context, actor model.Actor, req CreateProjectRequest) (*model.Project, error)
	ApplyUpdate(ctx context.Context, actor model.Actor, id uint, patch ProjectPatch) (*model.Project, error)
	GetProject(ctx context.Context, actor model.Actor, id uint) (*model.Project, error)
	ListProjects(ctx context.Context, actor model.Actor, filter ProjectListFilter, p pagination.Params) (pagination.Page[model.Project], error)
	DeleteProject(ctx context.Context, actor model.Actor, id uint) error
	GetHistory(ctx context.Context, actor model.Actor, id uint) ([]model.ProjectHistory, error)
	GetStats(ctx context.Context) (*model.ProjectStats, error)
}

type projectService struct {
	txManager    repository.TransactionManager
	projectRepo  repository.ProjectRepository
	historyRepo  repository.HistoryRepository
	userRepo     repository.UserRepository
	productRepo  repository.ProductRepository
	contractRepo repository.ContractRepository
	publisher    events.Publisher
	now          func() time.Time
}

func NewProjectService(
	txManager repository.TransactionManager,
	projectRepo repository.ProjectRepository,
	historyRepo repository.HistoryRepository,
	userRepo repository.UserRepository,
	productRepo repository.ProductRepository,
	contractRepo repository.ContractRepository,
	publisher events.Publisher,
) ProjectService {
	return &projectService{
		txManager:    txManager,
		projectRepo:  projectRepo,
		historyRepo:  historyRepo,
		userRepo:     userRepo,
		productRepo:  productRepo,
		contractRepo: contractRepo,
		publisher:    publisher,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// --- Create ---

func (s *projectService) CreateProject(ctx context.Context, actor model.Actor, req CreateProjectRequest) (*model.Project, error) {
	if actor.IsZero() {
		return nil, apperror.Unauthorized("Usuario no autenticado")
	}
	if actor.Role == model.RoleInstaller || !model.IsKnownRole(actor.Role) {
		return nil, apperror.Forbidden(apperror.ReasonRoleNotAllowed, "Tu rol no puede crear proyectos")
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperror.Invalid("El nombre del proyecto es obligatorio")
	}

	status := req.Status
	if status == "" {
		status = model.StatusPendingApproval
	}
	if status != model.StatusDraft && status != model.StatusPendingApproval {
		return nil, apperror.Invalid(fmt.Sprintf("Estado inicial inválido: %q", status))
	}

	items, total, err := s.buildItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	now := s.now()
	actorID := actor.ID
	project := &model.Project{
		Name:                  req.Name,
		ClientName:            req.ClientName,
		ClientEmail:           req.ClientEmail,
		ClientPhone:           req.ClientPhone,
		Address:               req.Address,
		Notes:                 req.Notes,
		Status:                status,
		CreatedByID:           &actorID,
		CreatedByName:         actor.Name,
		TotalCost:             total,
		ScheduledInstallation: req.ScheduledInstallation,
		LastModified:          now,
		LastModifiedBy:        actor.Name,
		Version:               1,
		Items:                 items,
	}
	entry := &model.ProjectHistory{
		ID:        uuid.New(),
		Status:    status,
		Comment:   fmt.Sprintf("Proyecto creado por %s", actor.Name),
		User:      actor.Name,
		UserID:    &actorID,
		Action:    model.ActionCreated,
		CreatedAt: now,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.projectRepo.LockInvoiceSequence(txCtx); err != nil {
			return fmt.Errorf("lock invoice sequence: %w", err)
		}
		numbers, err := s.projectRepo.ListInvoiceNumbers(txCtx)
		if err != nil {
			return fmt.Errorf("list invoice numbers: %w", err)
		}
		project.InvoiceNumber = NextInvoiceNumber(numbers)

		if err := s.projectRepo.Create(txCtx, project); err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		entry.ProjectID = project.ID
		if err := s.historyRepo.Append(txCtx, entry); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, apperror.Internal(err, "No se pudo crear el proyecto")
	}
	project.History = []model.ProjectHistory{*entry}

	s.publish(ctx, events.ProjectEvent{
		ID:         entry.ID,
		Type:       events.ProjectCreated,
		ProjectID:  project.ID,
		Actor:      actor,
		Status:     project.Status,
		OccurredAt: now,
	})

	return project, nil
}

// buildItems fills missing names and prices from the catalog and sums the
// total cost.
func (s *projectService) buildItems(ctx context.Context, reqs []CreateProjectItem) ([]model.ProjectItem, decimal.Decimal, error) {
	total := decimal.Zero
	var ids []uuid.UUID
	for _, r := range reqs {
		if r.ProductID != nil {
			ids = append(ids, *r.ProductID)
		}
	}
	catalog := map[uuid.UUID]model.Product{}
	if len(ids) > 0 {
		products, err := s.productRepo.FindByIDs(ctx, ids)
		if err != nil {
			return nil, total, apperror.Internal(err, "No se pudo consultar el catálogo")
		}
		for _, p := range products {
			catalog[p.ID] = p
		}
	}

	items := make([]model.ProjectItem, 0, len(reqs))
	for i, r := range reqs {
		if r.Quantity <= 0 {
			return nil, total, apperror.Invalid(fmt.Sprintf("Cantidad inválida en el ítem %d", i+1))
		}
		item := model.ProjectItem{ProductID: r.ProductID, ProductName: r.ProductName, Quantity: r.Quantity}
		if r.UnitPrice != nil {
			if r.UnitPrice.IsNegative() {
				return nil, total, apperror.Invalid(fmt.Sprintf("Precio inválido en el ítem %d", i+1))
			}
			item.UnitPrice = *r.UnitPrice
		}
		if r.ProductID != nil {
			product, ok := catalog[*r.ProductID]
			if !ok {
				return nil, total, apperror.NotFound(fmt.Sprintf("Producto %s no encontrado", *r.ProductID))
			}
			if item.ProductName == "" {
				item.ProductName = product.Name
			}
			if r.UnitPrice == nil {
				item.UnitPrice = product.Price
			}
		}
		if item.ProductName == "" {
			return nil, total, apperror.Invalid(fmt.Sprintf("El ítem %d necesita un producto", i+1))
		}
		total = total.Add(item.Subtotal())
		items = append(items, item)
	}
	return items, total, nil
}

// NextInvoiceNumber returns INV-### one past the highest number in existing.
// Malformed numbers are ignored.
func NextInvoiceNumber(existing []string) string {
	highest := 0
	for _, n := range existing {
		digits, ok := strings.CutPrefix(n, "INV-")
		if !ok {
			continue
		}
		v, err := strconv.Atoi(digits)
		if err != nil || v < 0 {
			continue
		}
		if v > highest {
			highest = v
		}
	}
	return fmt.Sprintf("INV-%03d", highest+1)
}

// --- Update ---

// transition is what a single ApplyUpdate call decided, before it is written.
type transition struct {
	previousStatus        string
	previousPriceStatus   string
	previousProposal      decimal.NullDecimal
	isBeingApproved       bool
	isPriceStatusChanging bool
	isPriceBeingAccepted  bool
}

func (s *projectService) ApplyUpdate(ctx context.Context, actor model.Actor, id uint, patch ProjectPatch) (*model.Project, error) {
	if actor.IsZero() {
		return nil, apperror.Unauthorized("Usuario no autenticado")
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	project, err := s.loadProject(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := EvaluatePolicy(actor, project, &patch).Err(); err != nil {
		return nil, err
	}

	expectedVersion := project.Version
	if v, ok := patch.Version.Get(); ok && v != expectedVersion {
		return nil, apperror.Conflict("El proyecto fue modificado por otro usuario. Recarga e inténtalo de nuevo")
	}

	installer, err := s.resolveInstaller(ctx, &patch)
	if err != nil {
		return nil, err
	}

	now := s.now()
	tr := s.merge(actor, project, &patch, installer, now)

	if patch.InstallerPriceStatus.Present() || patch.InstallerPriceProposal.Present() {
		if project.AssignedInstallerID == nil && project.AssignedInstallerName == "" {
			return nil, apperror.Invalid("No se puede negociar el precio sin un instalador asignado")
		}
	}

	entry := s.synthesizeHistory(actor, project, &patch, tr, now)

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.projectRepo.Update(txCtx, project, expectedVersion); err != nil {
			return err
		}
		return s.historyRepo.Append(txCtx, entry)
	})
	if errors.Is(err, repository.ErrVersionConflict) {
		return nil, apperror.Conflict("El proyecto fue modificado por otro usuario. Recarga e inténtalo de nuevo")
	}
	if err != nil {
		return nil, apperror.Internal(err, "No se pudo actualizar el proyecto")
	}
	project.History = append(project.History, *entry)

	s.publish(ctx, events.ProjectEvent{
		ID:                    entry.ID,
		Type:                  events.ProjectUpdated,
		ProjectID:             project.ID,
		Actor:                 actor,
		PreviousStatus:        tr.previousStatus,
		Status:                project.Status,
		PreviousPriceStatus:   tr.previousPriceStatus,
		PriceStatus:           project.PriceStatus(),
		OriginalPrice:         decimalString(tr.previousProposal),
		Price:                 decimalString(project.InstallerPriceProposal),
		Comment:               patch.Comment.OrElse(""),
		IsBeingApproved:       tr.isBeingApproved,
		IsPriceStatusChanging: tr.isPriceStatusChanging,
		IsPriceBeingAccepted:  tr.isPriceBeingAccepted,
		OccurredAt:            now,
	})

	return project, nil
}

type resolvedInstaller struct {
	clear bool
	id    *uuid.UUID
	name  string
}

// resolveInstaller returns nil when the patch does not touch the assignment.
func (s *projectService) resolveInstaller(ctx context.Context, patch *ProjectPatch) (*resolvedInstaller, error) {
	if patch.AssignedInstallerID.Null || patch.AssignedInstaller.Null {
		return &resolvedInstaller{clear: true}, nil
	}

	if id, ok := patch.AssignedInstallerID.Get(); ok {
		user, err := s.userRepo.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("Instalador no encontrado")
		}
		if err != nil {
			return nil, apperror.Internal(err, "No se pudo consultar el instalador")
		}
		if user.Role != model.RoleInstaller {
			return nil, apperror.Invalid(fmt.Sprintf("%s no es un instalador", user.Name))
		}
		return &resolvedInstaller{id: &user.ID, name: user.Name}, nil
	}

	name, ok := patch.AssignedInstaller.Get()
	if !ok {
		return nil, nil
	}
	user, err := s.userRepo.GetByName(ctx, name, model.RoleInstaller)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound(s.installerNotFoundMessage(ctx, name))
	}
	if err != nil {
		return nil, apperror.Internal(err, "No se pudo consultar el instalador")
	}
	return &resolvedInstaller{id: &user.ID, name: user.Name}, nil
}

func (s *projectService) installerNotFoundMessage(ctx context.Context, name string) string {
	msg := fmt.Sprintf("Instalador %q no encontrado", name)
	installers, err := s.userRepo.ListByRoles(ctx, model.RoleInstaller)
	if err != nil {
		return msg
	}
	names := make([]string, 0, len(installers))
	for _, u := range installers {
		names = append(names, u.Name)
	}
	if suggestion, ok := ClosestName(name, names); ok {
		msg += fmt.Sprintf(". ¿Quisiste decir %q?", suggestion)
	}
	return msg
}

// ClosestName returns the candidate with the smallest edit distance to
// target, provided it is close enough to be a plausible typo.
func ClosestName(target string, candidates []string) (string, bool) {
	target = strings.ToLower(strings.TrimSpace(target))
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(target, strings.ToLower(c))
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	limit := len(target) / 3
	if limit < 2 {
		limit = 2
	}
	if bestDist < 0 || bestDist > limit {
		return "", false
	}
	return best, true
}

// merge applies the patch to project in place and returns the derived flags.
func (s *projectService) merge(actor model.Actor, project *model.Project, patch *ProjectPatch, installer *resolvedInstaller, now time.Time) transition {
	tr := transition{
		previousStatus:      project.Status,
		previousPriceStatus: project.PriceStatus(),
		previousProposal:    project.InstallerPriceProposal,
	}

	if status, ok := patch.Status.Get(); ok {
		tr.isBeingApproved = status == model.StatusApproved && project.Status != model.StatusApproved
		project.Status = status
	}

	mergeString(&project.Name, patch.Name)
	mergeString(&project.ClientName, patch.ClientName)
	mergeString(&project.ClientEmail, patch.ClientEmail)
	mergeString(&project.ClientPhone, patch.ClientPhone)
	mergeString(&project.Address, patch.Address)
	mergeString(&project.Notes, patch.Notes)

	if installer != nil {
		if installer.clear {
			project.AssignedInstallerID = nil
			project.AssignedInstallerName = ""
		} else {
			project.AssignedInstallerID = installer.id
			project.AssignedInstallerName = installer.name
		}
	}

	if patch.InstallerPriceProposal.Set {
		if d, ok := patch.InstallerPriceProposal.Get(); ok {
			project.InstallerPriceProposal = decimal.NewNullDecimal(d)
		} else {
			project.InstallerPriceProposal = decimal.NullDecimal{}
		}
	}

	switch {
	case patch.InstallerPriceStatus.Present():
		ps := patch.InstallerPriceStatus.Value
		tr.isPriceStatusChanging = ps != tr.previousPriceStatus
		project.InstallerPriceStatus = &ps
	case patch.InstallerPriceStatus.Null:
		project.InstallerPriceStatus = nil
	case patch.InstallerPriceProposal.Present():
		ps := model.PriceStatusPending
		project.InstallerPriceStatus = &ps
	}

	if patch.ScheduledInstallation.Set {
		if t, ok := patch.ScheduledInstallation.Get(); ok {
			project.ScheduledInstallation = &t
		} else {
			project.ScheduledInstallation = nil
		}
	}

	tr.isPriceBeingAccepted = tr.isPriceStatusChanging &&
		project.PriceStatus() == model.PriceStatusAccepted &&
		project.Status == model.StatusAssigned

	if tr.isBeingApproved && project.ApprovedAt == nil {
		approvedAt := now
		project.ApprovedAt = &approvedAt
		project.ApprovedBy = actor.Name
	}

	project.LastModified = now
	project.LastModifiedBy = actor.Name
	project.Version++

	return tr
}

func mergeString(dst *string, f optional.Field[string]) {
	if f.Set {
		*dst = f.OrElse("")
	}
}

// synthesizeHistory builds the single ledger entry for the call. Price
// protocol language wins over a status change, which wins over the generic
// description.
func (s *projectService) synthesizeHistory(actor model.Actor, project *model.Project, patch *ProjectPatch, tr transition, now time.Time) *model.ProjectHistory {
	supplied := strings.TrimSpace(patch.Comment.OrElse(""))

	action := model.ActionUpdated
	comment := fmt.Sprintf("Proyecto actualizado por %s", actor.Name)
	if supplied != "" {
		comment = supplied
	}

	if project.Status != tr.previousStatus {
		action = model.ActionStatusChanged
		comment = fmt.Sprintf("Cambio de estado: %s → %s", tr.previousStatus, project.Status)
	}

	if tr.isPriceStatusChanging {
		if label, ok := LabelPriceTransition(project.PriceStatus(), actor.Name, project.InstallerPriceProposal, supplied); ok {
			action = label.Action
			comment = label.Comment
		}
	}

	entry := &model.ProjectHistory{
		ID:        uuid.New(),
		ProjectID: project.ID,
		Status:    project.Status,
		Comment:   comment,
		User:      actor.Name,
		Action:    action,
		CreatedAt: now,
	}
	if actor.ID != uuid.Nil {
		actorID := actor.ID
		entry.UserID = &actorID
	}
	if project.AssignedInstallerID != nil && project.InstallerPriceStatus != nil {
		ps := *project.InstallerPriceStatus
		entry.PriceStatus = &ps
	}
	return entry
}

const publishTimeout = 30 * time.Second

func (s *projectService) publish(ctx context.Context, evt events.ProjectEvent) {
	if s.publisher == nil {
		return
	}
	// Side effects must outlive a client that disconnects after the commit.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, evt); err != nil {
		logger.L().Warn("failed to publish project event",
			zap.String("event", evt.Type),
			zap.Uint("project_id", evt.ProjectID),
			zap.Error(err),
		)
	}
}

// --- Reads ---

func (s *projectService) loadProject(ctx context.Context, id uint) (*model.Project, error) {
	project, err := s.projectRepo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound(fmt.Sprintf("Proyecto %d no encontrado", id))
	}
	if err != nil {
		return nil, apperror.Internal(err, "No se pudo cargar el proyecto")
	}
	return project, nil
}

func canView(actor model.Actor, p *model.Project) bool {
	switch actor.Role {
	case model.RoleVendor:
		return p.IsOwnedBy(actor)
	case model.RoleInstaller:
		return p.IsAssignedTo(actor)
	}
	return model.IsKnownRole(actor.Role)
}

func (s *projectService) GetProject(ctx context.Context, actor model.Actor, id uint) (*model.Project, error) {
	if actor.IsZero() {
		return nil, apperror.Unauthorized("Usuario no autenticado")
	}
	project, err := s.loadProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, project) {
		return nil, apperror.Forbidden(apperror.ReasonNotOwner, "No tienes acceso a este proyecto")
	}
	return project, nil
}

func (s *projectService) ListProjects(ctx context.Context, actor model.Actor, filter ProjectListFilter, p pagination.Params) (pagination.Page[model.Project], error) {
	if actor.IsZero() {
		return pagination.Page[model.Project]{}, apperror.Unauthorized("Usuario no autenticado")
	}
	if filter.Status != "" && !model.IsValidStatus(filter.Status) {
		return pagination.Page[model.Project]{}, apperror.Invalid(fmt.Sprintf("Estado inválido: %q", filter.Status))
	}

	repoFilter := repository.ProjectFilter{Status: filter.Status, Search: filter.Search}
	actorID := actor.ID
	switch actor.Role {
	case model.RoleVendor:
		repoFilter.CreatedByID = &actorID
		repoFilter.CreatedByName = actor.Name
	case model.RoleInstaller:
		repoFilter.AssignedInstallerID = &actorID
	}

	projects, total, err := s.projectRepo.List(ctx, repoFilter, p)
	if err != nil {
		return pagination.Page[model.Project]{}, apperror.Internal(err, "No se pudieron listar los proyectos")
	}
	return pagination.Wrap(projects, total, p), nil
}

func (s *projectService) DeleteProject(ctx context.Context, actor model.Actor, id uint) error {
	if actor.IsZero() {
		return apperror.Unauthorized("Usuario no autenticado")
	}
	if !actor.IsElevated() {
		return apperror.Forbidden(apperror.ReasonRoleNotAllowed, "Solo un administrador puede eliminar proyectos")
	}
	err := s.projectRepo.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound(fmt.Sprintf("Proyecto %d no encontrado", id))
	}
	if err != nil {
		return apperror.Internal(err, "No se pudo eliminar el proyecto")
	}
	logger.L().Info("project deleted", zap.Uint("project_id", id), zap.String("by", actor.Name))
	return nil
}

func (s *projectService) GetHistory(ctx context.Context, actor model.Actor, id uint) ([]model.ProjectHistory, error) {
	if _, err := s.GetProject(ctx, actor, id); err != nil {
		return nil, err
	}
	entries, err := s.historyRepo.ListByProject(ctx, id)
	if err != nil {
		return nil, apperror.Internal(err, "No se pudo cargar el historial")
	}
	if entries == nil {
		entries = []model.ProjectHistory{}
	}
	return entries, nil
}

func (s *projectService) GetStats(ctx context.Context) (*model.ProjectStats, error) {
	byStatus, err := s.projectRepo.CountByStatus(ctx)
	if err != nil {
		return nil, apperror.Internal(err, "No se pudieron calcular las estadísticas")
	}
	byPrice, err := s.projectRepo.CountByPriceStatus(ctx)
	if err != nil {
		return nil, apperror.Internal(err, "No se pudieron calcular las estadísticas")
	}
	pending, err := s.contractRepo.CountByStatus(ctx, model.ContractPendingSignature)
	if err != nil {
		return nil, apperror.Internal(err, "No se pudieron calcular las estadísticas")
	}

	stats := &model.ProjectStats{
		ByStatus:         make(map[string]int64, len(model.ProjectStatuses)),
		ByPriceStatus:    make(map[string]int64, len(model.PriceStatuses)),
		PendingContracts: pending,
	}
	for _, st := range model.ProjectStatuses {
		stats.ByStatus[st] = 0
	}
	for _, row := range byStatus {
		stats.ByStatus[row.Status] = row.Count
		stats.Total += row.Count
	}
	for _, row := range byPrice {
		stats.ByPriceStatus[row.Status] = row.Count
	}
	return stats, nil
}
