package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

// mockRecordRepo keeps records in memory; func fields override individual methods
type mockRecordRepo struct {
	mu      sync.Mutex
	records map[int64]*entity.ApprovalRecord
	nextID  int64

	createFunc             func(ctx context.Context, record *entity.ApprovalRecord) error
	getByEvaluationKeyFunc func(ctx context.Context, key string) (*entity.ApprovalRecord, error)
	updateStatusFunc       func(ctx context.Context, id int64, from, to entity.ApprovalStatus, method entity.DecisionMethod) error
}

func newMockRecordRepo() *mockRecordRepo {
	return &mockRecordRepo{records: make(map[int64]*entity.ApprovalRecord)}
}

func (m *mockRecordRepo) Create(ctx context.Context, record *entity.ApprovalRecord) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, record)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.EvaluationKey == record.EvaluationKey {
			return port.ErrDuplicate
		}
	}
	m.nextID++
	record.ID = m.nextID
	stored := *record
	m.records[record.ID] = &stored
	return nil
}

func (m *mockRecordRepo) GetByID(ctx context.Context, id int64) (*entity.ApprovalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	out := *r
	return &out, nil
}

func (m *mockRecordRepo) GetByEvaluationKey(ctx context.Context, key string) (*entity.ApprovalRecord, error) {
	if m.getByEvaluationKeyFunc != nil {
		return m.getByEvaluationKeyFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.EvaluationKey == key {
			out := *r
			return &out, nil
		}
	}
	return nil, port.ErrNotFound
}

func (m *mockRecordRepo) UpdateStatus(ctx context.Context, id int64, from, to entity.ApprovalStatus, method entity.DecisionMethod) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, from, to, method)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return port.ErrNotFound
	}
	if r.Status != from {
		return port.ErrStatusConflict
	}
	r.Status = to
	r.DecisionMethod = method
	return nil
}

func (m *mockRecordRepo) SetApproval(ctx context.Context, id int64, approvedBy string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return port.ErrNotFound
	}
	r.ApprovedBy = &approvedBy
	r.ApprovedAt = &at
	return nil
}

func (m *mockRecordRepo) List(ctx context.Context, limit, offset int) ([]*entity.ApprovalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.ApprovalRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockRecordRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type mockAuditRepo struct {
	mu      sync.Mutex
	entries []*entity.AuditTrailEntry

	appendFunc func(ctx context.Context, entry *entity.AuditTrailEntry) error
}

func (m *mockAuditRepo) Append(ctx context.Context, entry *entity.AuditTrailEntry) error {
	if m.appendFunc != nil {
		return m.appendFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListByRecordID(ctx context.Context, recordID int64) ([]*entity.AuditTrailEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.AuditTrailEntry
	for _, e := range m.entries {
		if e.ApprovalRecordID == recordID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockAuditRepo) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

type mockPathRepo struct {
	mu     sync.Mutex
	paths  map[int64]*entity.EscalationPath
	nextID int64

	createFunc func(ctx context.Context, path *entity.EscalationPath) error
}

func newMockPathRepo() *mockPathRepo {
	return &mockPathRepo{paths: make(map[int64]*entity.EscalationPath)}
}

func (m *mockPathRepo) Create(ctx context.Context, path *entity.EscalationPath) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, path)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	path.ID = m.nextID
	stored := *path
	m.paths[path.ID] = &stored
	return nil
}

func (m *mockPathRepo) GetByID(ctx context.Context, id int64) (*entity.EscalationPath, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.paths[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (m *mockPathRepo) ListByRecordID(ctx context.Context, recordID int64) ([]*entity.EscalationPath, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.EscalationPath
	for _, p := range m.paths {
		if p.ApprovalRecordID == recordID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockPathRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]*entity.EscalationPath, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.EscalationPath
	for _, p := range m.paths {
		if p.Status == entity.EscalationStatusPending && !p.Deadline.After(now) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockPathRepo) Resolve(ctx context.Context, id int64, resolvedBy, resolution, comment string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.paths[id]
	if !ok {
		return port.ErrNotFound
	}
	if p.Status != entity.EscalationStatusPending {
		return port.ErrStatusConflict
	}
	p.Status = entity.EscalationStatusResolved
	p.ResolvedBy = &resolvedBy
	p.ResolvedAt = &at
	p.Resolution = resolution
	p.Comment = comment
	return nil
}

func (m *mockPathRepo) MarkTimeout(ctx context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.paths[id]
	if !ok {
		return port.ErrNotFound
	}
	if p.Status != entity.EscalationStatusPending {
		return port.ErrStatusConflict
	}
	p.Status = entity.EscalationStatusTimeout
	p.UpdatedAt = at
	return nil
}

func (m *mockPathRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.paths)
}

type mockPolicyRepo struct {
	policies      []*entity.ApprovalPolicy
	listActiveErr error
}

func (m *mockPolicyRepo) ListActive(ctx context.Context) ([]*entity.ApprovalPolicy, error) {
	return m.policies, m.listActiveErr
}

func (m *mockPolicyRepo) Upsert(ctx context.Context, policy *entity.ApprovalPolicy) error {
	m.policies = append(m.policies, policy)
	return nil
}

type mockRuleRepo struct {
	rules          []*entity.ApprovalRule
	listActiveFunc func(ctx context.Context) ([]*entity.ApprovalRule, error)
}

func (m *mockRuleRepo) ListActive(ctx context.Context) ([]*entity.ApprovalRule, error) {
	if m.listActiveFunc != nil {
		return m.listActiveFunc(ctx)
	}
	return m.rules, nil
}

func (m *mockRuleRepo) Upsert(ctx context.Context, rule *entity.ApprovalRule) error {
	m.rules = append(m.rules, rule)
	return nil
}

type mockHierarchyRepo struct {
	rows []*entity.ApprovalHierarchy
	err  error
}

func (m *mockHierarchyRepo) ListByDepartmentLevel(ctx context.Context, department string, level entity.EscalationLevel) ([]*entity.ApprovalHierarchy, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*entity.ApprovalHierarchy
	for _, h := range m.rows {
		if h.Department == department && h.Level == level {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *mockHierarchyRepo) Create(ctx context.Context, h *entity.ApprovalHierarchy) error {
	m.rows = append(m.rows, h)
	return nil
}

type mockDelegationRepo struct {
	delegations []*entity.ApprovalDelegation
}

func (m *mockDelegationRepo) ListByDelegators(ctx context.Context, delegatorIDs []string) ([]*entity.ApprovalDelegation, error) {
	want := make(map[string]bool, len(delegatorIDs))
	for _, id := range delegatorIDs {
		want[id] = true
	}
	var out []*entity.ApprovalDelegation
	for _, d := range m.delegations {
		if want[d.DelegatorID] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockDelegationRepo) Create(ctx context.Context, d *entity.ApprovalDelegation) error {
	m.delegations = append(m.delegations, d)
	return nil
}

type mockUserRepo struct {
	users map[string]*entity.User

	getByIDFunc func(ctx context.Context, id string) (*entity.User, error)
}

func newMockUserRepo(users ...*entity.User) *mockUserRepo {
	m := &mockUserRepo{users: make(map[string]*entity.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	u, ok := m.users[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) ListActiveByIDs(ctx context.Context, ids []string) ([]*entity.User, error) {
	var out []*entity.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok && u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUserRepo) Upsert(ctx context.Context, user *entity.User) error {
	m.users[user.ID] = user
	return nil
}

type mockNotificationRepo struct {
	mu     sync.Mutex
	rows   []*entity.Notification
	sent   []int64
	failed map[int64]string

	createFunc func(ctx context.Context, n *entity.Notification) error
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, n)
	return nil
}

func (m *mockNotificationRepo) ListPending(ctx context.Context, limit int) ([]*entity.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Notification
	for _, n := range m.rows {
		if n.Status == entity.NotificationStatusPending {
			out = append(out, n)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockNotificationRepo) MarkSent(ctx context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, id)
	for _, n := range m.rows {
		if n.ID == id {
			n.Status = entity.NotificationStatusSent
			n.SentAt = &at
		}
	}
	return nil
}

func (m *mockNotificationRepo) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed == nil {
		m.failed = make(map[int64]string)
	}
	m.failed[id] = errMsg
	for _, n := range m.rows {
		if n.ID == id {
			n.Status = entity.NotificationStatusFailed
			n.ErrorMessage = errMsg
		}
	}
	return nil
}

// mockSink records notifications handed to it
type mockSink struct {
	mu   sync.Mutex
	sent []*entity.Notification
	err  error
}

func (m *mockSink) CreateNotification(ctx context.Context, n *entity.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return m.err
}

func (m *mockSink) recipients(notificationType string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, n := range m.sent {
		if n.Type == notificationType {
			out = append(out, n.RecipientID)
		}
	}
	return out
}

type mockMessageSender struct {
	sendTextFunc func(ctx context.Context, openID, content string) error
	sent         []string
}

func (m *mockMessageSender) SendText(ctx context.Context, openID, content string) error {
	if m.sendTextFunc != nil {
		return m.sendTextFunc(ctx, openID, content)
	}
	m.sent = append(m.sent, openID)
	return nil
}

// mockTxManager runs fn directly; commits counts successful transactions
type mockTxManager struct {
	commits   int
	rollbacks int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		m.rollbacks++
		return err
	}
	m.commits++
	return nil
}

type mockConfigStore struct {
	mu     sync.Mutex
	values map[string]string

	loadErr error
	saveErr error
}

func (m *mockConfigStore) Load(ctx context.Context, key string) (string, error) {
	if m.loadErr != nil {
		return "", m.loadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", port.ErrNotFound
	}
	return v, nil
}

func (m *mockConfigStore) Save(ctx context.Context, key, value string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return nil
}
