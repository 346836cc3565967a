package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"installpro/internal/events"
	"installpro/internal/model"
	"installpro/internal/repository"
	"installpro/pkg/apperror"
	"installpro/pkg/logger"
	"installpro/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// NotificationPusher delivers a stored notification to a connected user.
// Delivery is best effort.
type NotificationPusher interface {
	PushToUser(userID uuid.UUID, payload []byte)
}

// NotifyRequest describes a single addressed notification. Requests sharing
// a Key, recipient and type store at most one notification.
type NotifyRequest struct {
	UserID  uuid.UUID
	Type    string
	Title   string
	Message string
	Data    map[string]interface{}
	Key     string
}

var notificationNamespace = uuid.MustParse("6f1c9a4e-2b7d-4c3a-9e51-8d0f3b6a7c21")

// notificationID is deterministic for keyed requests so redelivered events
// collide on the primary key.
func notificationID(req NotifyRequest) uuid.UUID {
	if req.Key == "" {
		return uuid.New()
	}
	return uuid.NewSHA1(notificationNamespace, []byte(req.Key+"|"+req.UserID.String()+"|"+req.Type))
}

// eventKey is the dedup key for notifications caused by evt.
func eventKey(evt events.ProjectEvent) string {
	if evt.ID == uuid.Nil {
		return ""
	}
	return evt.ID.String()
}

type UnreadCountResponse struct {
	Unread int64 `json:"unread"`
}

type NotificationService interface {
	Notify(ctx context.Context, req NotifyRequest) (*model.Notification, error)
	ListNotifications(ctx context.Context, actor model.Actor, unreadOnly bool, p pagination.Params) (pagination.Page[model.Notification], error)
	UnreadCount(ctx context.Context, actor model.Actor) (*UnreadCountResponse, error)
	MarkRead(ctx context.Context, actor model.Actor, id uuid.UUID) error
	MarkAllRead(ctx context.Context, actor model.Actor) (int64, error)
}

type notificationService struct {
	repo   repository.NotificationRepository
	pusher NotificationPusher
	now    func() time.Time
}

func NewNotificationService(repo repository.NotificationRepository, pusher NotificationPusher) NotificationService {
	return &notificationService{
		repo:   repo,
		pusher: pusher,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Notify persists the notification, then pushes it live.
func (s *notificationService) Notify(ctx context.Context, req NotifyRequest) (*model.Notification, error) {
	if req.UserID == uuid.Nil {
		return nil, fmt.Errorf("notification %s has no recipient", req.Type)
	}
	data, err := json.Marshal(req.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal notification data: %w", err)
	}

	n := &model.Notification{
		ID:        notificationID(req),
		UserID:    req.UserID,
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		Data:      datatypes.JSON(data),
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		if req.Key != "" && errors.Is(err, repository.ErrDuplicate) {
			return n, nil
		}
		return nil, fmt.Errorf("create notification: %w", err)
	}

	if s.pusher != nil {
		if payload, err := json.Marshal(n); err == nil {
			s.pusher.PushToUser(n.UserID, payload)
		}
	}
	return n, nil
}

func (s *notificationService) ListNotifications(ctx context.Context, actor model.Actor, unreadOnly bool, p pagination.Params) (pagination.Page[model.Notification], error) {
	if actor.ID == uuid.Nil {
		return pagination.Page[model.Notification]{}, apperror.Unauthorized("Usuario no autenticado")
	}
	items, total, err := s.repo.ListByUser(ctx, actor.ID, unreadOnly, p)
	if err != nil {
		return pagination.Page[model.Notification]{}, apperror.Internal(err, "No se pudieron cargar las notificaciones")
	}
	return pagination.Wrap(items, total, p), nil
}

func (s *notificationService) UnreadCount(ctx context.Context, actor model.Actor) (*UnreadCountResponse, error) {
	if actor.ID == uuid.Nil {
		return nil, apperror.Unauthorized("Usuario no autenticado")
	}
	count, err := s.repo.CountUnread(ctx, actor.ID)
	if err != nil {
		return nil, apperror.Internal(err, "No se pudieron contar las notificaciones")
	}
	return &UnreadCountResponse{Unread: count}, nil
}

func (s *notificationService) MarkRead(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if actor.ID == uuid.Nil {
		return apperror.Unauthorized("Usuario no autenticado")
	}
	err := s.repo.MarkRead(ctx, actor.ID, id, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("Notificación no encontrada")
	}
	if err != nil {
		return apperror.Internal(err, "No se pudo actualizar la notificación")
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, actor model.Actor) (int64, error) {
	if actor.ID == uuid.Nil {
		return 0, apperror.Unauthorized("Usuario no autenticado")
	}
	n, err := s.repo.MarkAllRead(ctx, actor.ID, s.now())
	if err != nil {
		return 0, apperror.Internal(err, "No se pudieron actualizar las notificaciones")
	}
	return n, nil
}

// --- Dispatcher ---

const NotificationHandlerName = "notifications"

// NotificationDispatcher turns project events into addressed notifications.
type NotificationDispatcher struct {
	notifications NotificationService
	projectRepo   repository.ProjectRepository
	userRepo      repository.UserRepository
}

var _ events.Handler = (*NotificationDispatcher)(nil)

func NewNotificationDispatcher(notifications NotificationService, projectRepo repository.ProjectRepository, userRepo repository.UserRepository) *NotificationDispatcher {
	return &NotificationDispatcher{notifications: notifications, projectRepo: projectRepo, userRepo: userRepo}
}

func (d *NotificationDispatcher) Name() string { return NotificationHandlerName }

func (d *NotificationDispatcher) Handle(ctx context.Context, evt events.ProjectEvent) error {
	submitted := evt.Status == model.StatusPendingApproval &&
		(evt.Type == events.ProjectCreated || evt.PreviousStatus != model.StatusPendingApproval)
	if !submitted && !evt.IsPriceStatusChanging && !evt.IsBeingApproved {
		return nil
	}

	project, err := d.projectRepo.FindByID(ctx, evt.ProjectID)
	if err != nil {
		return fmt.Errorf("load project %d: %w", evt.ProjectID, err)
	}

	var errs []error
	if submitted {
		errs = append(errs, d.notifySubmitted(ctx, evt, project))
	}
	if evt.Type == events.ProjectUpdated && evt.IsPriceStatusChanging {
		errs = append(errs, d.notifyPriceChange(ctx, evt, project))
	}
	if evt.Type == events.ProjectUpdated && evt.IsBeingApproved {
		errs = append(errs, d.notifyApproved(ctx, evt, project))
	}
	return errors.Join(errs...)
}

func (d *NotificationDispatcher) notifySubmitted(ctx context.Context, evt events.ProjectEvent, p *model.Project) error {
	reviewers, err := d.userRepo.ListByRoles(ctx, model.ElevatedRoles...)
	if err != nil {
		return fmt.Errorf("list reviewers: %w", err)
	}

	data := map[string]interface{}{
		"project_id":     p.ID,
		"invoice_number": p.InvoiceNumber,
		"created_by":     p.CreatedByName,
		"total_cost":     p.TotalCost.String(),
	}
	var errs []error
	for _, u := range reviewers {
		_, err := d.notifications.Notify(ctx, NotifyRequest{
			UserID:  u.ID,
			Type:    model.NotifProjectCreated,
			Title:   "Nuevo proyecto pendiente de aprobación",
			Message: fmt.Sprintf("%s creó el proyecto %q por un total de %s", p.CreatedByName, p.Name, FormatPrice(decimal.NewNullDecimal(p.TotalCost))),
			Data:    data,
			Key:     eventKey(evt),
		})
		errs = append(errs, err)
	}

	creatorID, err := d.creatorID(ctx, p)
	if err != nil {
		errs = append(errs, err)
	} else {
		_, err := d.notifications.Notify(ctx, NotifyRequest{
			UserID:  creatorID,
			Type:    model.NotifProjectSubmitted,
			Title:   "Proyecto enviado a aprobación",
			Message: fmt.Sprintf("Tu proyecto %q (%s) fue enviado para aprobación", p.Name, p.InvoiceNumber),
			Data:    data,
			Key:     eventKey(evt),
		})
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (d *NotificationDispatcher) notifyPriceChange(ctx context.Context, evt events.ProjectEvent, p *model.Project) error {
	price := parseNullDecimal(evt.Price)
	label, ok := LabelPriceTransition(evt.PriceStatus, evt.Actor.Name, price, evt.Comment)
	if !ok {
		return nil
	}

	var recipient uuid.UUID
	var err error
	if label.NotifyInstaller {
		recipient, err = d.installerID(ctx, p)
	} else {
		recipient, err = d.creatorID(ctx, p)
	}
	if err != nil {
		return err
	}

	summary := priceSummary(evt.PriceStatus, evt.Actor.Name, FormatPrice(price))
	message := summary
	if evt.Comment != "" {
		message += ". Comentario: " + evt.Comment
	}
	_, err = d.notifications.Notify(ctx, NotifyRequest{
		UserID:  recipient,
		Type:    label.NotificationType,
		Title:   label.Title,
		Message: message,
		Data: map[string]interface{}{
			"project_id":      p.ID,
			"invoice_number":  p.InvoiceNumber,
			"original_price":  evt.OriginalPrice,
			"suggested_price": evt.Price,
			"comment":         evt.Comment,
			"summary":         summary,
			"action":          label.Action,
		},
		Key: eventKey(evt),
	})
	return err
}

func (d *NotificationDispatcher) notifyApproved(ctx context.Context, evt events.ProjectEvent, p *model.Project) error {
	creator, err := d.creatorID(ctx, p)
	if err != nil {
		return err
	}
	_, err = d.notifications.Notify(ctx, NotifyRequest{
		UserID: creator,
		Type:   model.NotifProjectApproved,
		Title:  "Proyecto aprobado",
		Message: fmt.Sprintf("%s aprobó el proyecto %q. Costo final: %s. Nuevo estado: %s",
			evt.Actor.Name, p.Name, FormatPrice(decimal.NewNullDecimal(p.TotalCost)), evt.Status),
		Data: map[string]interface{}{
			"project_id":     p.ID,
			"invoice_number": p.InvoiceNumber,
			"approved_by":    evt.Actor.Name,
			"total_cost":     p.TotalCost.String(),
			"status":         evt.Status,
		},
		Key: eventKey(evt),
	})
	return err
}

func (d *NotificationDispatcher) creatorID(ctx context.Context, p *model.Project) (uuid.UUID, error) {
	return resolveCreator(ctx, d.userRepo, p)
}

func (d *NotificationDispatcher) installerID(ctx context.Context, p *model.Project) (uuid.UUID, error) {
	return resolveInstallerUser(ctx, d.userRepo, p)
}

// resolveCreator finds the creator's user id, by display name for legacy rows.
func resolveCreator(ctx context.Context, users repository.UserRepository, p *model.Project) (uuid.UUID, error) {
	if p.CreatedByID != nil {
		return *p.CreatedByID, nil
	}
	if p.CreatedByName == "" {
		return uuid.Nil, fmt.Errorf("project %d has no creator", p.ID)
	}
	u, err := users.GetByName(ctx, p.CreatedByName, "")
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve creator %q: %w", p.CreatedByName, err)
	}
	return u.ID, nil
}

func resolveInstallerUser(ctx context.Context, users repository.UserRepository, p *model.Project) (uuid.UUID, error) {
	if p.AssignedInstallerID != nil {
		return *p.AssignedInstallerID, nil
	}
	if p.AssignedInstallerName == "" {
		return uuid.Nil, fmt.Errorf("project %d has no installer", p.ID)
	}
	u, err := users.GetByName(ctx, p.AssignedInstallerName, model.RoleInstaller)
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve installer %q: %w", p.AssignedInstallerName, err)
	}
	return u.ID, nil
}

func logNotifyFailure(kind string, projectID uint, err error) {
	logger.L().Warn("notification dispatch failed",
		zap.String("kind", kind),
		zap.Uint("project_id", projectID),
		zap.Error(err),
	)
}
