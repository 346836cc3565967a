package service

import (
	"context"
	"testing"

	"installpro/internal/events"
	"installpro/internal/model"
	"installpro/pkg/apperror"
	"installpro/pkg/pagination"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationInbox(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.admin.Actor()

	h.create(t, h.vendor)
	h.create(t, h.vendor)

	page, err := h.notifications.ListNotifications(ctx, admin, false, pagination.New(1, 20))
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	count, err := h.notifications.UnreadCount(ctx, admin)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count.Unread)

	require.NoError(t, h.notifications.MarkRead(ctx, admin, page.Items[0].ID))
	count, err = h.notifications.UnreadCount(ctx, admin)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count.Unread)

	unread, err := h.notifications.ListNotifications(ctx, admin, true, pagination.New(1, 20))
	require.NoError(t, err)
	assert.Len(t, unread.Items, 1)

	n, err := h.notifications.MarkAllRead(ctx, admin)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	count, err = h.notifications.UnreadCount(ctx, admin)
	require.NoError(t, err)
	assert.Zero(t, count.Unread)
}

func TestMarkReadOnlyOwnNotifications(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.create(t, h.vendor)

	mine := h.store.notificationsFor(h.admin.ID)
	require.Len(t, mine, 1)

	err := h.notifications.MarkRead(ctx, h.vendor.Actor(), mine[0].ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeNotFound))

	err = h.notifications.MarkRead(ctx, h.admin.Actor(), uuid.New())
	assert.True(t, apperror.IsCode(err, apperror.CodeNotFound))

	_, err = h.notifications.UnreadCount(ctx, model.Actor{})
	assert.True(t, apperror.IsCode(err, apperror.CodeUnauthorized))
}

func TestNotifyRequiresRecipient(t *testing.T) {
	h := newHarness(t)
	_, err := h.notifications.Notify(context.Background(), NotifyRequest{Type: model.NotifProjectApproved})
	assert.Error(t, err)
	assert.Empty(t, h.store.notifications)
}

func TestNotifyPushesLive(t *testing.T) {
	h := newHarness(t)
	n, err := h.notifications.Notify(context.Background(), NotifyRequest{
		UserID: h.installer.ID,
		Type:   model.NotifPriceCounterOffered,
		Title:  "t",
		Data:   map[string]interface{}{"project_id": 7},
	})
	require.NoError(t, err)
	assert.Equal(t, testNow, n.CreatedAt)
	assert.False(t, n.IsRead)
	assert.JSONEq(t, `{"project_id":7}`, string(n.Data))
	assert.Equal(t, 1, h.pusher.sent[h.installer.ID])
}

func TestSubmittingDraftNotifiesReviewers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	draft, err := h.projects.CreateProject(ctx, h.vendor.Actor(), CreateProjectRequest{
		Name:   "Baño",
		Status: model.StatusDraft,
	})
	require.NoError(t, err)
	assert.Empty(t, h.store.notificationsFor(h.admin.ID))

	_, err = h.projects.ApplyUpdate(ctx, h.vendor.Actor(), draft.ID, ProjectPatch{
		Status: optStr(model.StatusPendingApproval),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{model.NotifProjectCreated}, notificationTypes(h.store.notificationsFor(h.admin.ID)))
	assert.Equal(t, []string{model.NotifProjectSubmitted}, notificationTypes(h.store.notificationsFor(h.vendor.ID)))

	// staying in pending_approval is not a new submission
	_, err = h.projects.ApplyUpdate(ctx, h.admin.Actor(), draft.ID, ProjectPatch{Notes: optStr("revisando")})
	require.NoError(t, err)
	assert.Len(t, h.store.notificationsFor(h.admin.ID), 1)
}

func TestDispatcherResolvesLegacyCreatorByName(t *testing.T) {
	h := newHarness(t)
	p := h.create(t, h.vendor)

	h.store.mu.Lock()
	stored := h.store.projects[p.ID]
	stored.CreatedByID = nil
	h.store.projects[p.ID] = stored
	h.store.mu.Unlock()

	_, err := h.projects.ApplyUpdate(context.Background(), h.admin.Actor(), p.ID, ProjectPatch{
		Status: optStr(model.StatusApproved),
	})
	require.NoError(t, err)

	vendorNotifs := h.store.notificationsFor(h.vendor.ID)
	assert.Equal(t, model.NotifProjectApproved, vendorNotifs[len(vendorNotifs)-1].Type)
}

func TestDispatcherReportsFailures(t *testing.T) {
	h := newHarness(t)
	p := h.create(t, h.vendor)
	h.store.failNotification = errStoreDown

	d := NewNotificationDispatcher(h.notifications, fakeProjectRepo{h.store}, fakeUserRepo{h.store})
	err := d.Handle(context.Background(), events.ProjectEvent{
		ID:        uuid.New(),
		Type:      events.ProjectCreated,
		ProjectID: p.ID,
		Status:    model.StatusPendingApproval,
	})
	assert.ErrorIs(t, err, errStoreDown)
}

func TestRedeliveredEventNotifiesEachRecipientOnce(t *testing.T) {
	h := newHarness(t)
	p := h.create(t, h.vendor)
	adminBefore := len(h.store.notificationsFor(h.admin.ID))
	superBefore := len(h.store.notificationsFor(h.superAdmin.ID))

	// creator no longer resolves, so every attempt fails after the reviewers
	h.store.mu.Lock()
	stored := h.store.projects[p.ID]
	stored.CreatedByID = nil
	stored.CreatedByName = "Vendedor Borrado"
	h.store.projects[p.ID] = stored
	h.store.mu.Unlock()

	d := NewNotificationDispatcher(h.notifications, fakeProjectRepo{h.store}, fakeUserRepo{h.store})
	task, err := events.NewTask(d.Name(), events.ProjectEvent{
		ID:        uuid.New(),
		Type:      events.ProjectCreated,
		ProjectID: p.ID,
		Status:    model.StatusPendingApproval,
	})
	require.NoError(t, err)

	handle := events.TaskHandler(d)
	assert.Error(t, handle(context.Background(), task))
	assert.Error(t, handle(context.Background(), task))

	assert.Len(t, h.store.notificationsFor(h.admin.ID), adminBefore+1)
	assert.Len(t, h.store.notificationsFor(h.superAdmin.ID), superBefore+1)
}

func TestKeyedNotifyStoresOnce(t *testing.T) {
	h := newHarness(t)
	req := NotifyRequest{
		UserID: h.vendor.ID,
		Type:   model.NotifContractReady,
		Title:  "Contrato listo para firma",
		Key:    uuid.NewString(),
	}

	first, err := h.notifications.Notify(context.Background(), req)
	require.NoError(t, err)
	second, err := h.notifications.Notify(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, h.store.notificationsFor(h.vendor.ID), 1)
	assert.Equal(t, 1, h.pusher.sent[h.vendor.ID])
}
