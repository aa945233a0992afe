package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/xbrch/xbrch-saas-platform/internal/api/handler"
	mw "github.com/xbrch/xbrch-saas-platform/internal/api/middleware"
	"github.com/xbrch/xbrch-saas-platform/internal/cache"
	"github.com/xbrch/xbrch-saas-platform/internal/store"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

// memStore is an in-memory implementation of every handler store interface.
type memStore struct {
	mu sync.Mutex

	tenants    map[uuid.UUID]*models.Tenant
	profiles   map[uuid.UUID]*models.BusinessProfile
	keys       map[uuid.UUID]*models.APIKey
	broadcasts map[uuid.UUID]*models.Broadcast
	wall       []*models.WallUpdate
	posts      map[uuid.UUID]*models.WebsitePost
	audit      []*models.AuditEntry

	lastLogin  map[uuid.UUID]time.Time
	lastFilter store.BroadcastFilter
	lastPosts  store.PostFilter
	lastSince  time.Time
	lastMonth  string
	err        error
}

func newMemStore() *memStore {
	return &memStore{
		tenants:    map[uuid.UUID]*models.Tenant{},
		profiles:   map[uuid.UUID]*models.BusinessProfile{},
		keys:       map[uuid.UUID]*models.APIKey{},
		broadcasts: map[uuid.UUID]*models.Broadcast{},
		posts:      map[uuid.UUID]*models.WebsitePost{},
		lastLogin:  map[uuid.UUID]time.Time{},
	}
}

func (m *memStore) auditActions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.audit))
	for _, e := range m.audit {
		out = append(out, e.Action)
	}
	return out
}

func (m *memStore) GetTenant(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	t, ok := m.tenants[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t, nil
}

func (m *memStore) GetTenantByEmail(_ context.Context, email string) (*models.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, t := range m.tenants {
		if strings.EqualFold(t.Email, email) {
			return t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) CreateTenant(_ context.Context, t *models.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tenants {
		if strings.EqualFold(existing.Email, t.Email) {
			return store.ErrDuplicateKey
		}
	}
	m.tenants[t.ID] = t
	return nil
}

func (m *memStore) ListTenants(_ context.Context, f store.TenantFilter) ([]*models.Tenant, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Tenant
	for _, t := range m.tenants {
		if (f.Plan == "" || t.Plan == f.Plan) && (f.Role == "" || t.Role == f.Role) {
			out = append(out, t)
		}
	}
	return out, len(out), nil
}

func (m *memStore) UpdateTenantLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLogin[id] = at
	return nil
}

func (m *memStore) UpdateTenantPassword(_ context.Context, id uuid.UUID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[id].PasswordHash = hash
	return nil
}

func (m *memStore) CreateAuditEntry(_ context.Context, e *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, e)
	return nil
}

func (m *memStore) ListAuditEntries(_ context.Context, f store.AuditFilter) ([]*models.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AuditEntry
	for _, e := range m.audit {
		if e.TenantID != nil && *e.TenantID == f.TenantID {
			out = append(out, e)
		}
	}
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) GetBusinessProfile(_ context.Context, tid uuid.UUID) (*models.BusinessProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[tid]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetBusinessProfileBySlug(_ context.Context, slug string) (*models.BusinessProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.profiles {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) UpsertBusinessProfile(_ context.Context, p *models.BusinessProfile, audit *models.AuditEntry) (*models.BusinessProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.profiles[p.TenantID]; ok {
		p.CreatedAt = old.CreatedAt
	}
	m.profiles[p.TenantID] = p
	m.audit = append(m.audit, audit)
	cp := *p
	return &cp, nil
}

func (m *memStore) CreateAPIKey(_ context.Context, k *models.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[k.ID] = k
	return nil
}

func (m *memStore) ListAPIKeys(_ context.Context, tid uuid.UUID) ([]*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.APIKey
	for _, k := range m.keys {
		if k.TenantID == tid && k.DeletedAt == nil {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *memStore) RevokeAPIKey(_ context.Context, id, tid uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok || k.TenantID != tid || k.DeletedAt != nil {
		return store.ErrNotFound
	}
	now := time.Now()
	k.DeletedAt = &now
	return nil
}

func (m *memStore) GetBroadcast(_ context.Context, id, tid uuid.UUID) (*models.Broadcast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.broadcasts[id]
	if !ok || b.TenantID != tid {
		return nil, store.ErrNotFound
	}
	return b, nil
}

func (m *memStore) ListBroadcasts(_ context.Context, f store.BroadcastFilter) ([]*models.Broadcast, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = f
	var out []*models.Broadcast
	for _, b := range m.broadcasts {
		if b.TenantID == f.TenantID && (f.Status == "" || b.Status == f.Status) {
			out = append(out, b)
		}
	}
	return out, len(out), nil
}

func (m *memStore) DeleteBroadcast(_ context.Context, id, tid uuid.UUID, audit *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.broadcasts[id]
	if !ok || b.TenantID != tid {
		return store.ErrNotFound
	}
	delete(m.broadcasts, id)
	m.audit = append(m.audit, audit)
	return nil
}

func (m *memStore) UpdateBroadcastStatus(_ context.Context, id, tid uuid.UUID, status string, audit *models.AuditEntry) (*models.Broadcast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.broadcasts[id]
	if !ok || b.TenantID != tid {
		return nil, store.ErrNotFound
	}
	if b.Status == models.BroadcastStatusArchived ||
		(b.Status == models.BroadcastStatusPublished && status != models.BroadcastStatusArchived) {
		return nil, store.ErrInvalidTransition
	}
	b.Status = status
	m.audit = append(m.audit, audit)
	return b, nil
}

func (m *memStore) MarkOutputPublished(_ context.Context, p store.PublishParams, audit *models.AuditEntry) (*models.BroadcastOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.broadcasts[p.BroadcastID]
	if !ok || b.TenantID != p.TenantID {
		return nil, store.ErrNotFound
	}
	for _, o := range b.Outputs {
		if o.ID != p.OutputID {
			continue
		}
		if o.PublishedAt != nil {
			return nil, store.ErrAlreadyPublished
		}
		at := p.PublishedAt
		id := p.PlatformPostID
		o.PublishedAt = &at
		o.PlatformPostID = &id
		m.audit = append(m.audit, audit)
		return o, nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) CreateWallUpdate(_ context.Context, u *models.WallUpdate, audit *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wall = append(m.wall, u)
	m.audit = append(m.audit, audit)
	return nil
}

func (m *memStore) ListWallUpdates(_ context.Context, tid uuid.UUID, _, _ int) ([]*models.WallUpdate, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.WallUpdate
	for _, u := range m.wall {
		if u.TenantID == tid {
			out = append(out, u)
		}
	}
	return out, len(out), nil
}

func (m *memStore) ListPublicWallUpdates(_ context.Context, tid uuid.UUID, limit int) ([]*models.WallUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.WallUpdate
	for _, u := range m.wall {
		if u.TenantID == tid && u.IsPublic && len(out) < limit {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) GetWallUpdate(_ context.Context, id, tid uuid.UUID) (*models.WallUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.wall {
		if u.ID == id && u.TenantID == tid {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) UpdateWallUpdate(_ context.Context, p store.WallPatch, audit *models.AuditEntry) (*models.WallUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	orNil := func(v *string) *string {
		if v == nil || *v == "" {
			return nil
		}
		return v
	}
	for _, u := range m.wall {
		if u.ID != p.ID || u.TenantID != p.TenantID {
			continue
		}
		if p.Content != nil {
			u.Content = *p.Content
		}
		if p.ImageURL != nil {
			u.ImageURL = orNil(p.ImageURL)
		}
		if p.LinkURL != nil {
			u.LinkURL = orNil(p.LinkURL)
		}
		if p.LinkTitle != nil {
			u.LinkTitle = orNil(p.LinkTitle)
		}
		if p.IsPublic != nil {
			u.IsPublic = *p.IsPublic
		}
		u.UpdatedAt = p.At
		m.audit = append(m.audit, audit)
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) DeleteWallUpdate(_ context.Context, id, tid uuid.UUID, audit *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, u := range m.wall {
		if u.ID == id && u.TenantID == tid {
			m.wall = append(m.wall[:i], m.wall[i+1:]...)
			m.audit = append(m.audit, audit)
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memStore) WallStats(_ context.Context, tid uuid.UUID, since time.Time) (*models.WallStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSince = since
	st := &models.WallStats{}
	for _, u := range m.wall {
		if u.TenantID != tid {
			continue
		}
		st.TotalUpdates++
		st.TotalViews += u.ViewCount
		if !u.CreatedAt.Before(since) {
			st.RecentUpdates++
		}
	}
	return st, nil
}

func (m *memStore) GetWebsitePost(_ context.Context, id, tid uuid.UUID) (*models.WebsitePost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.TenantID != tid {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (m *memStore) ListWebsitePosts(_ context.Context, f store.PostFilter) ([]*models.WebsitePost, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPosts = f
	out := []*models.WebsitePost{}
	for _, p := range m.posts {
		if p.TenantID == f.TenantID && (f.Type == "" || p.Type == f.Type) && (f.Status == "" || p.Status == f.Status) {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (m *memStore) DeleteWebsitePost(_ context.Context, id, tid uuid.UUID, audit *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.TenantID != tid {
		return store.ErrNotFound
	}
	delete(m.posts, id)
	m.audit = append(m.audit, audit)
	return nil
}

func (m *memStore) WebsiteStats(_ context.Context, tid uuid.UUID, since time.Time) (*models.WebsiteStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSince = since
	byType := map[string]*models.PostTypeStats{}
	st := &models.WebsiteStats{ByType: []models.PostTypeStats{}}
	for _, p := range m.posts {
		if p.TenantID != tid {
			continue
		}
		ts, ok := byType[p.Type]
		if !ok {
			ts = &models.PostTypeStats{Type: p.Type}
			byType[p.Type] = ts
		}
		ts.Count++
		ts.TotalWords += p.WordCount
		if !p.CreatedAt.Before(since) {
			st.RecentPosts++
		}
	}
	for _, ts := range byType {
		st.ByType = append(st.ByType, *ts)
	}
	return st, nil
}

func (m *memStore) TokenUsageReport(_ context.Context, _ uuid.UUID, since time.Time) (*models.TokenReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.lastSince = since
	return &models.TokenReport{Since: since, Rows: []models.TokenUsageRow{}}, nil
}

func (m *memStore) Dashboard(_ context.Context, _ uuid.UUID, month string, since time.Time) (*models.Dashboard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.lastMonth = month
	m.lastSince = since
	return &models.Dashboard{
		Usage: &models.UsageSnapshot{Month: month, Plan: models.PlanFree, Used: 12, Limit: 10, Remaining: -2},
	}, nil
}

func (m *memStore) UpdateTenant(_ context.Context, p store.TenantPatch, audit *models.AuditEntry) (*models.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[p.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if p.Email != nil {
		for _, other := range m.tenants {
			if other.ID != t.ID && strings.EqualFold(other.Email, *p.Email) {
				return nil, store.ErrDuplicateKey
			}
		}
		t.Email = strings.ToLower(*p.Email)
	}
	if p.Role != nil {
		t.Role = *p.Role
	}
	if p.Plan != nil {
		t.Plan = *p.Plan
	}
	if p.MonthlyLimit != nil {
		t.MonthlyLimit = *p.MonthlyLimit
	}
	if p.IsActive != nil {
		t.IsActive = *p.IsActive
	}
	t.UpdatedAt = p.At
	m.audit = append(m.audit, audit)
	return t, nil
}

func (m *memStore) DeleteTenant(_ context.Context, id uuid.UUID, audit *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.tenants, id)
	m.audit = append(m.audit, audit)
	return nil
}

func (m *memStore) TenantStats(_ context.Context, month string, _ time.Time) (*models.TenantStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := &models.TenantStats{Month: month, ByRole: map[string]int{}, ByPlan: map[string]int{}}
	for _, t := range m.tenants {
		st.Total++
		if t.IsActive {
			st.Active++
		}
		st.ByRole[t.Role]++
		st.ByPlan[t.Plan]++
	}
	return st, nil
}

var (
	_ handler.AccountStore     = (*memStore)(nil)
	_ handler.TenantAdminStore = (*memStore)(nil)
	_ handler.APIKeyStore      = (*memStore)(nil)
	_ handler.ProfileStore     = (*memStore)(nil)
	_ handler.WallStore        = (*memStore)(nil)
	_ handler.BroadcastStore   = (*memStore)(nil)
	_ handler.AuditReader      = (*memStore)(nil)
	_ handler.AuditReader      = (*store.PostgresStore)(nil)
	_ handler.WallStore        = (*store.PostgresStore)(nil)
	_ handler.WebsiteStore     = (*memStore)(nil)
	_ handler.WebsiteStore     = (*store.PostgresStore)(nil)
	_ handler.AnalyticsStore   = (*memStore)(nil)
	_ handler.AnalyticsStore   = (*store.PostgresStore)(nil)
	_ handler.TenantAdminStore = (*store.PostgresStore)(nil)
	_ cache.Cache              = (*memCache)(nil)
)

// memCache is an in-memory cache.Cache.
type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Set(_ context.Context, key string, v []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = v
	return nil
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	c.deleted = append(c.deleted, key)
	return nil
}

func (c *memCache) Ping(_ context.Context) error { return nil }

func (c *memCache) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	if v, ok := c.data[key]; ok {
		_ = json.Unmarshal(v, &n)
	}
	n++
	b, _ := json.Marshal(n)
	c.data[key] = b
	return n, nil
}

// --- request helpers ---

func newRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func asTenant(r *http.Request, tid uuid.UUID, scopes ...string) *http.Request {
	if len(scopes) == 0 {
		scopes = []string{mw.ScopeBroadcast}
	}
	ctx := mw.SetTenantID(r.Context(), tid)
	ctx = mw.SetScopes(ctx, scopes)
	return r.WithContext(ctx)
}

func withParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func serve(h http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, r)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Error.Code
}
