package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"installpro/internal/events"
	"installpro/internal/model"
	"installpro/internal/repository"
	"installpro/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// memStore is an in-memory stand-in for the relational store. RunInTx
// restores a snapshot when the callback fails.
type memStore struct {
	mu sync.Mutex

	projects      map[uint]model.Project
	deleted       map[uint]bool
	nextProjectID uint
	history       []model.ProjectHistory
	users         []model.User
	products      []model.Product
	notifications []model.Notification
	contracts     []model.Contract

	failHistory      error
	failNotification error
}

func newMemStore() *memStore {
	return &memStore{projects: map[uint]model.Project{}, deleted: map[uint]bool{}}
}

type snapshot struct {
	projects      map[uint]model.Project
	deleted       map[uint]bool
	nextProjectID uint
	history       []model.ProjectHistory
}

func (s *memStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		projects:      map[uint]model.Project{},
		deleted:       map[uint]bool{},
		nextProjectID: s.nextProjectID,
		history:       append([]model.ProjectHistory(nil), s.history...),
	}
	for k, v := range s.projects {
		snap.projects[k] = v
	}
	for k, v := range s.deleted {
		snap.deleted[k] = v
	}
	return snap
}

func (s *memStore) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = snap.projects
	s.deleted = snap.deleted
	s.nextProjectID = snap.nextProjectID
	s.history = snap.history
}

func (s *memStore) addUser(name, role string) model.User {
	u := model.User{
		ID:       uuid.New(),
		Name:     name,
		Username: strings.ToLower(strings.ReplaceAll(name, " ", ".")),
		Email:    strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Role:     role,
	}
	s.users = append(s.users, u)
	return u
}

func (s *memStore) historyFor(id uint) []model.ProjectHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ProjectHistory
	for _, h := range s.history {
		if h.ProjectID == id {
			out = append(out, h)
		}
	}
	return out
}

func (s *memStore) notificationsFor(userID uuid.UUID) []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

func (s *memStore) project(id uint) model.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projects[id]
}

// --- TransactionManager ---

type fakeTx struct{ store *memStore }

func (f fakeTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	snap := f.store.snapshot()
	if err := fn(ctx); err != nil {
		f.store.restore(snap)
		return err
	}
	return nil
}

// --- ProjectRepository ---

type fakeProjectRepo struct{ store *memStore }

func (r fakeProjectRepo) Create(_ context.Context, p *model.Project) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextProjectID++
	p.ID = s.nextProjectID
	p.CreatedAt = testNow
	for i := range p.Items {
		p.Items[i].ID = uuid.New()
		p.Items[i].ProjectID = p.ID
	}
	stored := *p
	stored.History = nil
	s.projects[p.ID] = stored
	return nil
}

func (r fakeProjectRepo) FindByID(_ context.Context, id uint) (*model.Project, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok || s.deleted[id] {
		return nil, repository.ErrNotFound
	}
	p.Items = append([]model.ProjectItem(nil), p.Items...)
	p.History = nil
	for _, h := range s.history {
		if h.ProjectID == id {
			p.History = append(p.History, h)
		}
	}
	return &p, nil
}

func (r fakeProjectRepo) Update(_ context.Context, p *model.Project, expectedVersion int) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.projects[p.ID]
	if !ok || s.deleted[p.ID] || stored.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	updated := *p
	updated.Items = stored.Items
	updated.History = nil
	s.projects[p.ID] = updated
	return nil
}

func (r fakeProjectRepo) Delete(_ context.Context, id uint) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok || s.deleted[id] {
		return repository.ErrNotFound
	}
	s.deleted[id] = true
	return nil
}

func (r fakeProjectRepo) List(_ context.Context, f repository.ProjectFilter, p pagination.Params) ([]model.Project, int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Project
	for id, pr := range s.projects {
		if s.deleted[id] {
			continue
		}
		if f.Status != "" && pr.Status != f.Status {
			continue
		}
		if f.CreatedByID != nil {
			owned := pr.CreatedByID != nil && *pr.CreatedByID == *f.CreatedByID
			legacy := pr.CreatedByID == nil && f.CreatedByName != "" && pr.CreatedByName == f.CreatedByName
			if !owned && !legacy {
				continue
			}
		}
		if f.AssignedInstallerID != nil && (pr.AssignedInstallerID == nil || *pr.AssignedInstallerID != *f.AssignedInstallerID) {
			continue
		}
		out = append(out, pr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := int64(len(out))
	if p.Offset >= len(out) {
		return nil, total, nil
	}
	end := p.Offset + p.Limit
	if end > len(out) {
		end = len(out)
	}
	return out[p.Offset:end], total, nil
}

func (r fakeProjectRepo) ListInvoiceNumbers(_ context.Context) ([]string, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, p := range s.projects {
		out = append(out, p.InvoiceNumber)
	}
	return out, nil
}

func (r fakeProjectRepo) LockInvoiceSequence(context.Context) error { return nil }

func (r fakeProjectRepo) CountByStatus(_ context.Context) ([]model.StatusCount, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]int64{}
	for id, p := range s.projects {
		if !s.deleted[id] {
			counts[p.Status]++
		}
	}
	var out []model.StatusCount
	for st, c := range counts {
		out = append(out, model.StatusCount{Status: st, Count: c})
	}
	return out, nil
}

func (r fakeProjectRepo) CountByPriceStatus(_ context.Context) ([]model.StatusCount, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]int64{}
	for id, p := range s.projects {
		if !s.deleted[id] && p.AssignedInstallerID != nil && p.InstallerPriceStatus != nil {
			counts[*p.InstallerPriceStatus]++
		}
	}
	var out []model.StatusCount
	for st, c := range counts {
		out = append(out, model.StatusCount{Status: st, Count: c})
	}
	return out, nil
}

// --- HistoryRepository ---

type fakeHistoryRepo struct{ store *memStore }

func (r fakeHistoryRepo) Append(_ context.Context, e *model.ProjectHistory) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failHistory != nil {
		return s.failHistory
	}
	s.history = append(s.history, *e)
	return nil
}

func (r fakeHistoryRepo) ListByProject(_ context.Context, id uint) ([]model.ProjectHistory, error) {
	return r.store.historyFor(id), nil
}

// --- UserRepository ---

type fakeUserRepo struct{ store *memStore }

func (r fakeUserRepo) Create(_ context.Context, u *model.User) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	s.users = append(s.users, *u)
	return nil
}

func (r fakeUserRepo) find(match func(model.User) bool) (*model.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			u := u
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.ID == id })
}

func (r fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Username == username })
}

func (r fakeUserRepo) GetByName(_ context.Context, name, role string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Name == name && (role == "" || u.Role == role) })
}

func (r fakeUserRepo) ListByRoles(_ context.Context, roles ...string) ([]model.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.User
	for _, u := range s.users {
		for _, role := range roles {
			if u.Role == role {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

// --- ProductRepository ---

type fakeProductRepo struct{ store *memStore }

func (r fakeProductRepo) Create(_ context.Context, p *model.Product) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.products = append(s.products, *p)
	return nil
}

func (r fakeProductRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r fakeProductRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]model.Product, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Product
	for _, p := range s.products {
		for _, id := range ids {
			if p.ID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (r fakeProductRepo) List(_ context.Context, _ string, p pagination.Params) ([]model.Product, int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Product(nil), s.products...), int64(len(s.products)), nil
}

// --- NotificationRepository ---

type fakeNotificationRepo struct{ store *memStore }

func (r fakeNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNotification != nil {
		return s.failNotification
	}
	for _, existing := range s.notifications {
		if existing.ID == n.ID {
			return repository.ErrDuplicate
		}
	}
	s.notifications = append(s.notifications, *n)
	return nil
}

func (r fakeNotificationRepo) ListByUser(_ context.Context, userID uuid.UUID, unreadOnly bool, p pagination.Params) ([]model.Notification, int64, error) {
	var out []model.Notification
	for _, n := range r.store.notificationsFor(userID) {
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	return out, int64(len(out)), nil
}

func (r fakeNotificationRepo) CountUnread(_ context.Context, userID uuid.UUID) (int64, error) {
	var c int64
	for _, n := range r.store.notificationsFor(userID) {
		if !n.IsRead {
			c++
		}
	}
	return c, nil
}

func (r fakeNotificationRepo) MarkRead(_ context.Context, userID, id uuid.UUID, at time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.notifications {
		if n.ID == id && n.UserID == userID {
			s.notifications[i].IsRead = true
			s.notifications[i].ReadAt = &at
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r fakeNotificationRepo) MarkAllRead(_ context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var c int64
	for i, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			s.notifications[i].IsRead = true
			s.notifications[i].ReadAt = &at
			c++
		}
	}
	return c, nil
}

// --- ContractRepository ---

type fakeContractRepo struct{ store *memStore }

func (r fakeContractRepo) Create(ctx context.Context, c *model.Contract) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.contracts {
		if existing.SourceHistoryID == c.SourceHistoryID || existing.ContractNumber == c.ContractNumber {
			return repository.ErrDuplicate
		}
	}
	s.contracts = append(s.contracts, *c)
	return nil
}

func (r fakeContractRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Contract, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.contracts {
		if c.ID == id {
			c := c
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r fakeContractRepo) FindBySourceHistoryID(_ context.Context, id uuid.UUID) (*model.Contract, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.contracts {
		if c.SourceHistoryID == id {
			c := c
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r fakeContractRepo) List(_ context.Context, f repository.ContractFilter, _ pagination.Params) ([]model.Contract, int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Contract
	for _, c := range s.contracts {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.PartyID != nil && c.ClientID != *f.PartyID && c.InstallerID != *f.PartyID {
			continue
		}
		out = append(out, c)
	}
	return out, int64(len(out)), nil
}

func (r fakeContractRepo) ExpirePending(_ context.Context, now time.Time) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i, c := range s.contracts {
		if c.Status == model.ContractPendingSignature && c.ValidUntil.Before(now) {
			s.contracts[i].Status = model.ContractExpired
			n++
		}
	}
	return n, nil
}

func (r fakeContractRepo) CountByStatus(_ context.Context, status string) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, c := range s.contracts {
		if c.Status == status {
			n++
		}
	}
	return n, nil
}

// --- Pusher / publisher ---

type recordingPusher struct {
	mu   sync.Mutex
	sent map[uuid.UUID]int
}

func (p *recordingPusher) PushToUser(userID uuid.UUID, _ []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sent == nil {
		p.sent = map[uuid.UUID]int{}
	}
	p.sent[userID]++
}

type recordingPublisher struct {
	inner  events.Publisher
	events []events.ProjectEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, evt events.ProjectEvent) error {
	p.events = append(p.events, evt)
	if p.inner != nil {
		return p.inner.Publish(ctx, evt)
	}
	return nil
}

// --- Harness ---

type harness struct {
	store         *memStore
	projects      *projectService
	notifications *notificationService
	contracts     *contractService
	generator     *ContractGenerator
	publisher     *recordingPublisher
	pusher        *recordingPusher

	vendor, otherVendor, admin, superAdmin, installer, purchasing model.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := newMemStore()
	h := &harness{store: store, pusher: &recordingPusher{}}

	h.vendor = store.addUser("Valeria Vendedora", model.RoleVendor)
	h.otherVendor = store.addUser("Otro Vendedor", model.RoleVendor)
	h.admin = store.addUser("Ana Admin", model.RoleAdmin)
	h.superAdmin = store.addUser("Sergio Super", model.RoleSuperAdmin)
	h.installer = store.addUser("Ignacio Instalador", model.RoleInstaller)
	h.purchasing = store.addUser("Pablo Compras", model.RolePurchasing)

	projectRepo := fakeProjectRepo{store}
	userRepo := fakeUserRepo{store}
	contractRepo := fakeContractRepo{store}

	h.notifications = NewNotificationService(fakeNotificationRepo{store}, h.pusher).(*notificationService)
	h.notifications.now = func() time.Time { return testNow }

	h.generator = NewContractGenerator(contractRepo, projectRepo, userRepo, h.notifications, 0)
	h.generator.now = func() time.Time { return testNow }

	bus := events.NewBus(NewNotificationDispatcher(h.notifications, projectRepo, userRepo), h.generator)
	h.publisher = &recordingPublisher{inner: bus}

	h.projects = NewProjectService(fakeTx{store}, projectRepo, fakeHistoryRepo{store}, userRepo,
		fakeProductRepo{store}, contractRepo, h.publisher).(*projectService)
	h.projects.now = func() time.Time { return testNow }

	h.contracts = NewContractService(contractRepo).(*contractService)
	h.contracts.now = func() time.Time { return testNow }
	return h
}

func (h *harness) create(t *testing.T, by model.User) *model.Project {
	t.Helper()
	p, err := h.projects.CreateProject(context.Background(), by.Actor(), CreateProjectRequest{
		Name:       "Cocina Rivera",
		ClientName: "Familia Rivera",
		Items: []CreateProjectItem{
			{ProductName: "Encimera de granito", Quantity: 2, UnitPrice: decPtr("450")},
			{ProductName: "Fregadero", Quantity: 1, UnitPrice: decPtr("120.50")},
		},
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

// assigned returns a project approved by admin and assigned to the installer
// with a 500 proposal.
func (h *harness) assigned(t *testing.T) *model.Project {
	t.Helper()
	ctx := context.Background()
	p := h.create(t, h.vendor)
	if _, err := h.projects.ApplyUpdate(ctx, h.admin.Actor(), p.ID, ProjectPatch{Status: optStr(model.StatusApproved)}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	p, err := h.projects.ApplyUpdate(ctx, h.admin.Actor(), p.ID, ProjectPatch{
		AssignedInstaller:      optStr(h.installer.Name),
		InstallerPriceProposal: optDec("500"),
		Status:                 optStr(model.StatusAssigned),
	})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	return p
}

func (h *harness) contractCount() int {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return len(h.store.contracts)
}

func notificationTypes(ns []model.Notification) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Type)
	}
	return out
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

var errStoreDown = errors.New("store down")
