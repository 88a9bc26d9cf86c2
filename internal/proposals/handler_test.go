package proposals

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propodocs/internal/middleware"
	"propodocs/models"
	"propodocs/pkg/notify"
	"propodocs/pkg/pdf"
	"propodocs/pkg/storage"
)

type fakeStore struct {
	proposals map[string]*models.Proposal
	filter    storage.ProposalFilter
	contracts []models.Contract
	invoices  []models.Invoice

	statusRace models.ProposalStatus // статус, который «другой запрос» выставит перед записью
}

func newFakeStore(ps ...models.Proposal) *fakeStore {
	s := &fakeStore{proposals: map[string]*models.Proposal{}}
	for i := range ps {
		p := ps[i]
		s.proposals[p.ID] = &p
	}
	return s
}

func (f *fakeStore) get(userID, id string) (*models.Proposal, error) {
	p, ok := f.proposals[id]
	if !ok || p.UserID != userID {
		return nil, storage.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) CreateProposal(ctx context.Context, p models.Proposal) (*models.Proposal, error) {
	p.ID = "new"
	p.Status = models.StatusDraft
	f.proposals[p.ID] = &p
	return &p, nil
}

func (f *fakeStore) GetProposal(ctx context.Context, userID, id string) (*models.Proposal, error) {
	return f.get(userID, id)
}

func (f *fakeStore) ListProposals(ctx context.Context, userID string, filter storage.ProposalFilter) ([]models.Proposal, error) {
	f.filter = filter
	out := []models.Proposal{}
	for _, p := range f.proposals {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateProposal(ctx context.Context, userID, id string, patch storage.ProposalPatch) (*models.Proposal, error) {
	p, err := f.get(userID, id)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	return p, nil
}

func (f *fakeStore) SetProposalStatus(ctx context.Context, userID, id string, from, to models.ProposalStatus) (*models.Proposal, error) {
	p, err := f.get(userID, id)
	if err != nil {
		return nil, err
	}
	if f.statusRace != "" {
		// другой запрос успел сменить статус после чтения
		p.Status = f.statusRace
		f.statusRace = ""
	}
	if p.Status != from {
		return nil, storage.ErrConflict
	}
	p.Status = to
	return p, nil
}

func (f *fakeStore) SetProposalArchived(ctx context.Context, userID, id string, archived bool) error {
	p, err := f.get(userID, id)
	if err != nil {
		return err
	}
	p.Archived = archived
	return nil
}

func (f *fakeStore) EnsureShareToken(ctx context.Context, userID, id string) (string, error) {
	if _, err := f.get(userID, id); err != nil {
		return "", err
	}
	return "tok-1", nil
}

func (f *fakeStore) DeleteProposal(ctx context.Context, userID, id string) error {
	if _, err := f.get(userID, id); err != nil {
		return err
	}
	delete(f.proposals, id)
	return nil
}

func (f *fakeStore) CreateContract(ctx context.Context, c models.Contract) (*models.Contract, error) {
	c.ID = "c1"
	f.contracts = append(f.contracts, c)
	return &c, nil
}

func (f *fakeStore) CreateInvoice(ctx context.Context, inv models.Invoice) (*models.Invoice, error) {
	inv.ID = "i1"
	f.invoices = append(f.invoices, inv)
	return &inv, nil
}

type fakeNotifier struct {
	sent []notify.Message
	err  error
}

func (f *fakeNotifier) Send(ctx context.Context, msg notify.Message) (*models.Notification, error) {
	f.sent = append(f.sent, msg)
	return &models.Notification{ID: "n1"}, f.err
}

type fakeRenderer struct {
	html string
	err  error
}

func (f *fakeRenderer) RenderHTMLToPDF(ctx context.Context, html string, opts pdf.PageOptions) ([]byte, error) {
	f.html = html
	return []byte("%PDF-1.7"), f.err
}

func newRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/proposals", func(c *gin.Context) { c.Set(middleware.UserIDKey, "u1") })
	SetupRoutes(g, h)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func proposal(id string, status models.ProposalStatus) models.Proposal {
	return models.Proposal{
		ID:             id,
		UserID:         "u1",
		Title:          "Website redesign",
		ClientName:     "Acme",
		Status:         status,
		CalculatorData: json.RawMessage(`{"totals":{"annualTotal":1200}}`),
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(models.StatusDraft, models.StatusSent))
	assert.True(t, CanTransition(models.StatusSent, models.StatusViewed))
	assert.True(t, CanTransition(models.StatusSent, models.StatusAccepted))
	assert.True(t, CanTransition(models.StatusViewed, models.StatusRejected))
	assert.True(t, CanTransition(models.StatusAccepted, models.StatusDraft))

	assert.False(t, CanTransition(models.StatusDraft, models.StatusAccepted))
	assert.False(t, CanTransition(models.StatusViewed, models.StatusSent))
	assert.False(t, CanTransition(models.StatusAccepted, models.StatusRejected))
}

func TestCreateAndGet(t *testing.T) {
	store := newFakeStore()
	r := newRouter(NewHandler(store, nil, nil, nil, "", nil))

	w := do(r, http.MethodPost, "/proposals", `{"title":"Q3 retainer","client_email":"ops@acme.test"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "u1", store.proposals["new"].UserID)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/proposals", `{"client_name":"x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/proposals", `{"title":"x","client_email":"nope"}`).Code)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/proposals/new", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/proposals/missing", "").Code)
}

func TestGetForeignProposalIsNotFound(t *testing.T) {
	p := proposal("p1", models.StatusDraft)
	p.UserID = "someone-else"
	r := newRouter(NewHandler(newFakeStore(p), nil, nil, nil, "", nil))
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/proposals/p1", "").Code)
}

func TestListFilters(t *testing.T) {
	store := newFakeStore(proposal("p1", models.StatusSent))
	r := newRouter(NewHandler(store, nil, nil, nil, "", nil))

	w := do(r, http.MethodGet, "/proposals?status=sent&include_archived=true&limit=10&offset=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, store.filter.Status)
	assert.Equal(t, models.StatusSent, *store.filter.Status)
	assert.True(t, store.filter.IncludeArchived)
	assert.Equal(t, storage.Page{Limit: 10, Offset: 5}, store.filter.Page)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/proposals?status=lost", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/proposals?include_archived=maybe", "").Code)
}

func TestUpdateArchiveDelete(t *testing.T) {
	store := newFakeStore(proposal("p1", models.StatusDraft))
	r := newRouter(NewHandler(store, nil, nil, nil, "", nil))

	require.Equal(t, http.StatusOK, do(r, http.MethodPatch, "/proposals/p1", `{"title":"Renamed"}`).Code)
	assert.Equal(t, "Renamed", store.proposals["p1"].Title)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPatch, "/proposals/p1", `{"title":"  "}`).Code)

	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/proposals/p1/archive", "").Code)
	assert.True(t, store.proposals["p1"].Archived)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/proposals/p1/unarchive", "").Code)
	assert.False(t, store.proposals["p1"].Archived)

	require.Equal(t, http.StatusOK, do(r, http.MethodDelete, "/proposals/p1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/proposals/p1", "").Code)
}

func TestShare(t *testing.T) {
	r := newRouter(NewHandler(newFakeStore(proposal("p1", models.StatusDraft)), nil, nil, nil, "https://app.test/", nil))
	w := do(r, http.MethodPost, "/proposals/p1/share", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"share_token":"tok-1","url":"https://app.test/p/tok-1"}`, w.Body.String())
}

func TestSetStatusNotifiesOwner(t *testing.T) {
	store := newFakeStore(proposal("p1", models.StatusDraft))
	n := &fakeNotifier{}
	r := newRouter(NewHandler(store, n, nil, nil, "", nil))

	w := do(r, http.MethodPatch, "/proposals/p1/status", `{"status":"sent"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusSent, store.proposals["p1"].Status)
	require.Len(t, n.sent, 1)
	assert.Equal(t, models.NotifyProposalSent, n.sent[0].Type)
	assert.Equal(t, "u1", n.sent[0].UserID)
	assert.Equal(t, "/proposals/p1", n.sent[0].Link)

	w = do(r, http.MethodPatch, "/proposals/p1/status", `{"status":"accepted"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, n.sent, 2)
	assert.Equal(t, models.NotifyProposalAccepted, n.sent[1].Type)

	w = do(r, http.MethodPatch, "/proposals/p1/status", `{"status":"draft"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, n.sent, 2)
}

func TestSetStatusRejectsInvalidTransition(t *testing.T) {
	store := newFakeStore(proposal("p1", models.StatusDraft))
	n := &fakeNotifier{}
	r := newRouter(NewHandler(store, n, nil, nil, "", nil))

	assert.Equal(t, http.StatusConflict, do(r, http.MethodPatch, "/proposals/p1/status", `{"status":"accepted"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPatch, "/proposals/p1/status", `{"status":"won"}`).Code)
	assert.Equal(t, models.StatusDraft, store.proposals["p1"].Status)
	assert.Empty(t, n.sent)
}

func TestSetStatusConflictsWhenStatusChangedMeanwhile(t *testing.T) {
	store := newFakeStore(proposal("p1", models.StatusViewed))
	store.statusRace = models.StatusRejected
	n := &fakeNotifier{}
	r := newRouter(NewHandler(store, n, nil, nil, "", nil))

	assert.Equal(t, http.StatusConflict, do(r, http.MethodPatch, "/proposals/p1/status", `{"status":"accepted"}`).Code)
	assert.Equal(t, models.StatusRejected, store.proposals["p1"].Status)
	assert.Empty(t, n.sent)
}

func TestSetStatusNotifyFailureDoesNotFailRequest(t *testing.T) {
	store := newFakeStore(proposal("p1", models.StatusViewed))
	r := newRouter(NewHandler(store, &fakeNotifier{err: errors.New("db down")}, nil, nil, "", nil))
	assert.Equal(t, http.StatusOK, do(r, http.MethodPatch, "/proposals/p1/status", `{"status":"rejected"}`).Code)
}

func TestPDF(t *testing.T) {
	store := newFakeStore(proposal("p1", models.StatusSent))

	r := newRouter(NewHandler(store, nil, nil, nil, "", nil))
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/proposals/p1/pdf", "").Code)

	rend := &fakeRenderer{}
	r = newRouter(NewHandler(store, nil, rend, nil, "", nil))
	w := do(r, http.MethodGet, "/proposals/p1/pdf", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "proposal-p1.pdf")
	assert.Contains(t, rend.html, "Website redesign")

	r = newRouter(NewHandler(store, nil, &fakeRenderer{err: errors.New("gotenberg down")}, nil, "", nil))
	assert.Equal(t, http.StatusBadGateway, do(r, http.MethodGet, "/proposals/p1/pdf", "").Code)
}

func TestConvert(t *testing.T) {
	store := newFakeStore(proposal("p1", models.StatusAccepted), proposal("p2", models.StatusSent))
	r := newRouter(NewHandler(store, nil, nil, nil, "", nil))

	w := do(r, http.MethodPost, "/proposals/p1/convert", `{"contract":true,"invoice":true}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, store.contracts, 1)
	require.Len(t, store.invoices, 1)
	assert.Equal(t, int64(120000), store.invoices[0].Total)

	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/proposals/p2/convert", `{"contract":true}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/proposals/p1/convert", `{}`).Code)
}

func TestConvertWithoutTotalCreatesNothing(t *testing.T) {
	p := proposal("p1", models.StatusAccepted)
	p.CalculatorData = nil
	store := newFakeStore(p)
	r := newRouter(NewHandler(store, nil, nil, nil, "", nil))

	w := do(r, http.MethodPost, "/proposals/p1/convert", `{"contract":true,"invoice":true}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Empty(t, store.contracts)
	assert.Empty(t, store.invoices)
}
