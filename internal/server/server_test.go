package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"advocase/internal/access"
	"advocase/internal/cases"
	"advocase/internal/invite"
	"advocase/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore backs the case store, the grant store, and the advocate client
// view, keeping all three consistent the way the SQL schema does.
type memStore struct {
	cases  map[string]*types.Case
	grants map[string]*types.AccessGrant
	clock  time.Time
	seq    int
}

func newMemStore() *memStore {
	return &memStore{
		cases:  make(map[string]*types.Case),
		grants: make(map[string]*types.AccessGrant),
		clock:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) now() time.Time {
	m.seq++
	return m.clock.Add(time.Duration(m.seq) * time.Second)
}

func grantKey(caseID, userID string) string {
	return caseID + "|" + userID
}

func (m *memStore) Case(_ context.Context, caseID string) (*types.Case, error) {
	c, ok := m.cases[caseID]
	if !ok {
		return nil, types.ErrCaseNotFound
	}
	copied := *c
	copied.Application = c.Application.Clone()
	return &copied, nil
}

func (m *memStore) CaseByCreateToken(_ context.Context, ownerID, token string) (*types.Case, error) {
	for _, c := range m.cases {
		if c.OwnerUserID == ownerID && c.CreateToken != nil && *c.CreateToken == token {
			copied := *c
			return &copied, nil
		}
	}
	return nil, types.ErrCaseNotFound
}

func (m *memStore) CreateWithOwnerGrant(_ context.Context, c *types.Case, g *types.AccessGrant) error {
	now := m.now()
	if c.ID == "" {
		c.ID = fmt.Sprintf("case-%d", m.seq)
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	copied := *c
	m.cases[c.ID] = &copied

	g.CaseID = c.ID
	g.CreatedAt = now
	g.UpdatedAt = now
	grantCopy := *g
	m.grants[grantKey(g.CaseID, g.UserID)] = &grantCopy
	return nil
}

func (m *memStore) Update(_ context.Context, caseID string, c *types.Case) error {
	c.ID = caseID
	c.UpdatedAt = m.now()
	copied := *c
	copied.Application = c.Application.Clone()
	m.cases[caseID] = &copied
	return nil
}

func (m *memStore) DeleteCascade(_ context.Context, caseID string) error {
	delete(m.cases, caseID)
	for k, g := range m.grants {
		if g.CaseID == caseID {
			delete(m.grants, k)
		}
	}
	return nil
}

func (m *memStore) CasesForUser(_ context.Context, userID string) ([]*types.CaseWithAccess, error) {
	out := make([]*types.CaseWithAccess, 0)
	for _, c := range m.cases {
		g, ok := m.grants[grantKey(c.ID, userID)]
		if !ok || !g.CanView {
			continue
		}
		copied := *c
		out = append(out, &types.CaseWithAccess{
			Case:    copied,
			Role:    g.Role,
			CanView: g.CanView,
			CanEdit: g.CanEdit,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) CasesSharedByOwner(ctx context.Context, userID, ownerID string) ([]*types.CaseWithAccess, error) {
	all, err := m.CasesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*types.CaseWithAccess, 0)
	for _, c := range all {
		if c.OwnerUserID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) Grant(_ context.Context, caseID, userID string) (*types.AccessGrant, error) {
	g, ok := m.grants[grantKey(caseID, userID)]
	if !ok {
		return nil, types.ErrGrantNotFound
	}
	copied := *g
	return &copied, nil
}

func (m *memStore) Upsert(_ context.Context, g *types.AccessGrant) error {
	now := m.now()
	if existing, ok := m.grants[grantKey(g.CaseID, g.UserID)]; ok {
		existing.Role = g.Role
		existing.CanView = g.CanView
		existing.CanEdit = g.CanEdit
		existing.UpdatedAt = now
		return nil
	}
	copied := *g
	copied.CreatedAt = now
	copied.UpdatedAt = now
	m.grants[grantKey(g.CaseID, g.UserID)] = &copied
	return nil
}

func (m *memStore) ClientsForAdvocate(_ context.Context, advocateID string) ([]*types.ClientSummary, error) {
	byOwner := make(map[string]*types.ClientSummary)
	for _, g := range m.grants {
		if g.UserID != advocateID || g.Role != types.GrantRoleAdvocate || !g.CanView {
			continue
		}
		c, ok := m.cases[g.CaseID]
		if !ok {
			continue
		}
		summary, ok := byOwner[c.OwnerUserID]
		if !ok {
			summary = &types.ClientSummary{UserID: c.OwnerUserID}
			byOwner[c.OwnerUserID] = summary
		}
		summary.CaseCount++
		summary.CanEdit = summary.CanEdit || g.CanEdit
	}
	out := make([]*types.ClientSummary, 0, len(byOwner))
	for _, s := range byOwner {
		out = append(out, s)
	}
	return out, nil
}

type memDocs struct {
	docs map[string]*types.CaseDocument
}

func newMemDocs() *memDocs {
	return &memDocs{docs: make(map[string]*types.CaseDocument)}
}

func (m *memDocs) Document(_ context.Context, caseID, documentID string) (*types.CaseDocument, error) {
	d, ok := m.docs[grantKey(caseID, documentID)]
	if !ok {
		return nil, types.ErrDocumentNotFound
	}
	copied := *d
	return &copied, nil
}

func (m *memDocs) DocumentsByCase(_ context.Context, caseID string) ([]*types.CaseDocument, error) {
	out := make([]*types.CaseDocument, 0)
	for _, d := range m.docs {
		if d.CaseID == caseID {
			copied := *d
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memDocs) Create(_ context.Context, doc *types.CaseDocument) error {
	copied := *doc
	m.docs[grantKey(doc.CaseID, doc.ID)] = &copied
	return nil
}

func (m *memDocs) Delete(_ context.Context, caseID, documentID string) error {
	delete(m.docs, grantKey(caseID, documentID))
	return nil
}

type memObjects struct {
	objects map[string][]byte
}

func newMemObjects() *memObjects {
	return &memObjects{objects: make(map[string][]byte)}
}

func (m *memObjects) Upload(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.objects[key] = data
	return key, nil
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memObjects) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://objects.test/" + key, nil
}

type memClientState struct {
	states map[string]*types.ClientState
}

func newMemClientState() *memClientState {
	return &memClientState{states: make(map[string]*types.ClientState)}
}

func (m *memClientState) Load(_ context.Context, userID string) (*types.ClientState, error) {
	s, ok := m.states[userID]
	if !ok {
		return &types.ClientState{}, nil
	}
	copied := *s
	return &copied, nil
}

func (m *memClientState) Save(_ context.Context, userID string, state *types.ClientState) error {
	copied := *state
	m.states[userID] = &copied
	return nil
}

type fakeDirectory map[string]*types.DirectoryUser

func (d fakeDirectory) LookupByEmail(_ context.Context, email string) (*types.DirectoryUser, error) {
	u, ok := d[email]
	if !ok {
		return nil, types.ErrUserNotFound
	}
	return u, nil
}

type testServer struct {
	svc     *Service
	store   *memStore
	docs    *memDocs
	objects *memObjects
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := newMemStore()
	ledger := access.NewLedger(store)
	caseSvc := cases.NewService(store, ledger, logger)

	directory := fakeDirectory{
		"advocate@example.org": {ID: "adv-1", Email: "advocate@example.org", GivenName: "Dana"},
		"owner-1@example.org":  {ID: "owner-1", Email: "owner-1@example.org"},
	}
	invites := invite.NewService(ledger, directory, "https://app.example.org", logger)

	docs := newMemDocs()
	objects := newMemObjects()

	config := &types.Config{
		Environment:          "test",
		AllowAnonymousExport: true,
		CookieHashKey:        base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef")),
		CookieBlockKey:       base64.StdEncoding.EncodeToString([]byte("0123456789abcdef")),
	}

	svc, err := New(config, logger, caseSvc, invites, docs, store, objects, newMemClientState(), nil, "")
	require.NoError(t, err)

	svc.authenticate = func(r *http.Request) (string, string, string, error) {
		user := r.Header.Get("X-Test-User")
		if user == "" {
			return "", "", "", fmt.Errorf("no credentials")
		}
		return user, user + "@example.org", string(types.UserRoleVictim), nil
	}

	return &testServer{svc: svc, store: store, docs: docs, objects: objects}
}

func (ts *testServer) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}

	rec := httptest.NewRecorder()
	ts.svc.server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func (ts *testServer) createCase(t *testing.T, owner string) *types.Case {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/cases", owner, map[string]any{})
	require.Equal(t, http.StatusCreated, rec.Code)
	envelope := decodeBody[caseEnvelope](t, rec)
	require.NotNil(t, envelope.Case)
	require.NotEmpty(t, envelope.Case.ID)
	return envelope.Case
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateCaseAnonymous(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/cases", "", map[string]any{
		"application": map[string]any{"victim": map[string]any{"first_name": "Ada"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	envelope := decodeBody[caseEnvelope](t, rec)
	require.NotNil(t, envelope.Case)
	assert.Contains(t, envelope.Case.OwnerUserID, "anon:")
	assert.Equal(t, types.CaseStatusDraft, envelope.Case.Status)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, anonCookieName, cookies[0].Name)
}

func TestCreateCaseRejectedWhenAnonymousDisabled(t *testing.T) {
	ts := newTestServer(t)
	ts.svc.config.AllowAnonymousExport = false

	rec := ts.do(t, http.MethodPost, "/cases", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetCaseOwner(t *testing.T) {
	ts := newTestServer(t)
	c := ts.createCase(t, "owner-1")

	rec := ts.do(t, http.MethodGet, "/cases/"+c.ID, "owner-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[caseResponse](t, rec)
	assert.Equal(t, c.ID, resp.Case.ID)
	assert.Equal(t, types.GrantRoleOwner, resp.Access.Role)
	assert.True(t, resp.Access.CanEdit)
}

func TestGetCaseNotSharedIsForbidden(t *testing.T) {
	ts := newTestServer(t)
	c := ts.createCase(t, "owner-1")

	rec := ts.do(t, http.MethodGet, "/cases/"+c.ID, "stranger", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	body := decodeBody[map[string]string](t, rec)
	assert.Contains(t, body["error"], "not shared")
}

func TestGetCaseMissingIsNotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/cases/nope", "owner-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatchCaseMergesAndRenames(t *testing.T) {
	ts := newTestServer(t)
	c := ts.createCase(t, "owner-1")

	rec := ts.do(t, http.MethodPatch, "/cases/"+c.ID, "owner-1", map[string]any{
		"name":        "My application",
		"application": map[string]any{"victim": map[string]any{"first_name": "Ada"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	updated := decodeBody[*types.Case](t, rec)
	require.NotNil(t, updated.Name)
	assert.Equal(t, "My application", *updated.Name)
	assert.Equal(t, "Ada", updated.Application[types.SectionVictim]["first_name"])
}

func TestPatchInvalidStatusRejected(t *testing.T) {
	ts := newTestServer(t)
	c := ts.createCase(t, "owner-1")

	rec := ts.do(t, http.MethodPatch, "/cases/"+c.ID, "owner-1", map[string]any{
		"status": "archived",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteCaseOwnerOnly(t *testing.T) {
	ts := newTestServer(t)
	c := ts.createCase(t, "owner-1")

	rec := ts.do(t, http.MethodDelete, "/cases/"+c.ID, "stranger", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/cases/"+c.ID, "owner-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/cases/"+c.ID, "owner-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInviteGrantsViewAccess(t *testing.T) {
	ts := newTestServer(t)
	c := ts.createCase(t, "owner-1")

	rec := ts.do(t, http.MethodPost, "/case-access/invite", "owner-1", map[string]any{
		"caseId":        c.ID,
		"advocateEmail": "advocate@example.org",
		"canEdit":       false,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "adv-1", body["advocateUserId"])
	assert.Contains(t, body["shareUrl"], c.ID)

	rec = ts.do(t, http.MethodGet, "/cases/"+c.ID, "adv-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[caseResponse](t, rec)
	assert.Equal(t, types.GrantRoleAdvocate, resp.Access.Role)
	assert.False(t, resp.Access.CanEdit)
}

func TestInviteUnknownEmail(t *testing.T) {
	ts := newTestServer(t)
	c := ts.createCase(t, "owner-1")

	rec := ts.do(t, http.MethodPost, "/case-access/invite", "owner-1", map[string]any{
		"caseId":        c.ID,
		"advocateEmail": "nobody@example.org",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decodeBody[map[string]string](t, rec)
	assert.Contains(t, body["error"], "register")
}

func TestInviteOwnEmailRejected(t *testing.T) {
	ts := newTestServer(t)
	c := ts.createCase(t, "owner-1")

	rec := ts.do(t, http.MethodPost, "/case-access/invite", "owner-1", map[string]any{
		"caseId":        c.ID,
		"advocateEmail": "owner-1@example.org",
		"canEdit":       false,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The owner keeps full access.
	rec = ts.do(t, http.MethodPatch, "/cases/"+c.ID, "owner-1", map[string]any{
		"name": "still mine",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInviteByNonOwnerForbidden(t *testing.T) {
	ts := newTestServer(t)
	c := ts.createCase(t, "owner-1")

	rec := ts.do(t, http.MethodPost, "/case-access/invite", "stranger", map[string]any{
		"caseId":        c.ID,
		"advocateEmail": "advocate@example.org",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListCasesFilterByRole(t *testing.T) {
	ts := newTestServer(t)
	c := ts.createCase(t, "owner-1")
	ts.createCase(t, "adv-1")

	rec := ts.do(t, http.MethodPost, "/case-access/invite", "owner-1", map[string]any{
		"caseId": c.ID, "advocateEmail": "advocate@example.org",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/cases", "adv-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decodeBody[casesEnvelope](t, rec)
	assert.Len(t, all.Cases, 2)

	rec = ts.do(t, http.MethodGet, "/cases?role=advocate", "adv-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	shared := decodeBody[casesEnvelope](t, rec)
	require.Len(t, shared.Cases, 1)
	assert.Equal(t, c.ID, shared.Cases[0].ID)
}

func TestAdvocateClientViews(t *testing.T) {
	ts := newTestServer(t)
	c := ts.createCase(t, "owner-1")

	rec := ts.do(t, http.MethodPost, "/case-access/invite", "owner-1", map[string]any{
		"caseId": c.ID, "advocateEmail": "advocate@example.org", "canEdit": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/advocate/clients", "adv-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	clients := decodeBody[[]*types.ClientSummary](t, rec)
	require.Len(t, clients, 1)
	assert.Equal(t, "owner-1", clients[0].UserID)
	assert.Equal(t, 1, clients[0].CaseCount)
	assert.True(t, clients[0].CanEdit)

	rec = ts.do(t, http.MethodGet, "/advocate/clients/owner-1/cases", "adv-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	casesList := decodeBody[[]*types.CaseWithAccess](t, rec)
	require.Len(t, casesList, 1)
	assert.Equal(t, c.ID, casesList[0].ID)
}

func TestClientStateRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPut, "/client-state", "user-1", map[string]any{
		"activeCaseId": "case-9",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/client-state", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeBody[*types.ClientState](t, rec)
	assert.Equal(t, "case-9", state.ActiveCaseID)
}

func (ts *testServer) uploadDocument(t *testing.T, caseID, user string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "police-report.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 test"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("documentType", "police_report"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/cases/"+caseID+"/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Test-User", user)

	rec := httptest.NewRecorder()
	ts.svc.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestDocumentUploadAndDelete(t *testing.T) {
	ts := newTestServer(t)
	c := ts.createCase(t, "owner-1")

	rec := ts.uploadDocument(t, c.ID, "owner-1")
	require.Equal(t, http.StatusCreated, rec.Code)

	doc := decodeBody[types.DocumentView](t, rec)
	assert.Equal(t, "police-report.pdf", doc.FileName)
	assert.Equal(t, "police_report", doc.DocumentType)
	assert.Contains(t, doc.URL, c.ID)
	require.Len(t, ts.objects.objects, 1)

	rec = ts.do(t, http.MethodGet, "/cases/"+c.ID, "owner-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[caseResponse](t, rec)
	require.Len(t, resp.Documents, 1)

	rec = ts.do(t, http.MethodDelete, "/cases/"+c.ID+"/documents/"+doc.ID, "owner-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, ts.objects.objects)
}

func TestDocumentUploadRequiresEdit(t *testing.T) {
	ts := newTestServer(t)
	c := ts.createCase(t, "owner-1")

	rec := ts.do(t, http.MethodPost, "/case-access/invite", "owner-1", map[string]any{
		"caseId": c.ID, "advocateEmail": "advocate@example.org", "canEdit": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.uploadDocument(t, c.ID, "adv-1")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
