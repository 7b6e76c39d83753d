package catalog_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"FileCatalog/internal/auth"
	"FileCatalog/internal/catalog"
	"FileCatalog/pkg/kit"
)

const testSecret = "test-secret-test-secret-test-secret"

type tsOpts struct {
	store        catalog.DocStore
	writes       bool
	strict       bool
	limiter      *kit.IPRateLimiter
	registry     *prometheus.Registry
	metricsToken string
}

func newCatalogTS(t *testing.T, o tsOpts) (*httptest.Server, *catalog.Repository) {
	t.Helper()

	if o.store == nil {
		o.store = catalog.NewMemStore(nil)
	}

	repoOpts := []catalog.Option{
		catalog.WithLogger(zap.NewNop()),
		catalog.WithStrictWrites(o.strict),
	}
	if o.registry != nil {
		repoOpts = append(repoOpts, catalog.WithMetrics(catalog.NewRepoMetrics(o.registry)))
	}
	repo := catalog.NewRepository(o.store, repoOpts...)

	s := &catalog.Server{Repo: repo, Log: zap.NewNop(), WriteLimiter: o.limiter}
	if o.writes {
		s.Tokens = auth.NewTokenMaker(testSecret)
	}

	deps := catalog.HTTPDeps{
		Log:      zap.NewNop(),
		Service:  "catalog",
		Registry: o.registry,
	}
	if o.metricsToken != "" {
		hash, err := kit.HashToken(o.metricsToken)
		require.NoError(t, err)
		deps.MetricsEnabled = true
		deps.MetricsTokenHash = hash
	}

	ts := httptest.NewServer(catalog.NewHandler(s, deps))
	t.Cleanup(ts.Close)
	return ts, repo
}

func adminToken(t *testing.T) string {
	t.Helper()

	tok, err := auth.NewTokenMaker(testSecret).New("tester", auth.RoleAdmin, time.Minute)
	require.NoError(t, err)
	return tok
}

func bearer(tok string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + tok}
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func decodeProducts(t *testing.T, raw []byte) []catalog.Product {
	t.Helper()

	var out []catalog.Product
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func seed(t *testing.T, repo *catalog.Repository, codes ...string) {
	t.Helper()

	for _, c := range codes {
		_, err := repo.Add(context.Background(), sample(c))
		require.NoError(t, err)
	}
}

func TestList_EmptyIsArray(t *testing.T) {
	ts, _ := newCatalogTS(t, tsOpts{})

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/products", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `[]`, string(raw))
}

func TestList_Limit(t *testing.T) {
	ts, repo := newCatalogTS(t, tsOpts{})
	seed(t, repo, "C1", "C2", "C3")

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"C1", "C2", "C3"}},
		{"?limit=1", []string{"C1"}},
		{"?limit=2", []string{"C1", "C2"}},
		{"?limit=10", []string{"C1", "C2", "C3"}},
		{"?limit=0", []string{}},
		{"?limit=-1", []string{"C1", "C2"}},
		{"?limit=-9", []string{}},
		{"?limit=abc", []string{"C1", "C2", "C3"}},
		{"?limit=", []string{"C1", "C2", "C3"}},
		{"?limit=2abc", []string{"C1", "C2"}},
		{"?limit=1.9", []string{"C1"}},
		{"?limit=+2", []string{"C1", "C2"}},
		{"?limit=%202", []string{"C1", "C2"}},
		{"?limit=-", []string{"C1", "C2", "C3"}},
		{"?limit=99999999999999999999", []string{"C1", "C2", "C3"}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, raw := doJSON(t, http.MethodGet, ts.URL+"/products"+tt.query, nil, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			codes := []string{}
			for _, p := range decodeProducts(t, raw) {
				codes = append(codes, p.Code)
			}
			assert.Equal(t, tt.want, codes)
		})
	}
}

func TestGet(t *testing.T) {
	ts, repo := newCatalogTS(t, tsOpts{})
	seed(t, repo, "C1", "C2")

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/products/2", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var p catalog.Product
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, 2, p.ID)
	assert.Equal(t, "C2", p.Code)

	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/products/999", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var er kit.ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &er))
	assert.Equal(t, "not found", er.Error)
	assert.NotEmpty(t, er.RequestID)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/products/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/products/2abc", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, "C2", p.Code)
}

func TestWrites_DisabledWithoutTokens(t *testing.T) {
	ts, repo := newCatalogTS(t, tsOpts{})

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/products", sample("C1"), nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/products/1", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	assert.Empty(t, repo.GetAll(context.Background()))
}

func TestWrites_RequireAdminToken(t *testing.T) {
	ts, _ := newCatalogTS(t, tsOpts{writes: true})
	body := map[string]any{"title": "A", "description": "d", "price": 10, "thumbnail": "t", "code": "C1", "stock": 5}

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/products", body, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/products", body, bearer("garbage"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	viewer, err := auth.NewTokenMaker(testSecret).New("viewer", "viewer", time.Minute)
	require.NoError(t, err)
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/products", body, bearer(viewer))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	foreign, err := auth.NewTokenMaker("another-secret-another-secret-xx").New("x", auth.RoleAdmin, time.Minute)
	require.NoError(t, err)
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/products", body, bearer(foreign))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreate(t *testing.T) {
	ts, repo := newCatalogTS(t, tsOpts{writes: true})
	tok := bearer(adminToken(t))

	body := map[string]any{"title": "A", "description": "d", "price": 10, "thumbnail": "t", "code": "C1", "stock": 5}
	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/products", body, tok)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var created catalog.Product
	require.NoError(t, json.Unmarshal(raw, &created))
	want := sample("C1")
	want.ID = 1
	assert.Equal(t, want, created)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/products", body, tok)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	missing := map[string]any{"title": "A", "description": "d", "price": 0, "thumbnail": "t", "code": "C2"}
	resp, raw = doJSON(t, http.MethodPost, ts.URL+"/products", missing, tok)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var er struct {
		Error   string `json:"error"`
		Details struct {
			Missing []string `json:"missing"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(raw, &er))
	assert.Equal(t, []string{"price", "stock"}, er.Details.Missing)

	withID := map[string]any{"id": 7, "title": "A", "description": "d", "price": 1, "thumbnail": "t", "code": "C3", "stock": 1}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/products", withID, tok)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	unknown := map[string]any{"title": "A", "colour": "red"}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/products", unknown, tok)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Len(t, repo.GetAll(context.Background()), 1)
}

func TestCreate_BadJSON(t *testing.T) {
	ts, _ := newCatalogTS(t, tsOpts{writes: true})

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/products", strings.NewReader(`{"title":`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdate(t *testing.T) {
	ts, repo := newCatalogTS(t, tsOpts{writes: true})
	seed(t, repo, "C1", "C2")
	tok := bearer(adminToken(t))

	resp, raw := doJSON(t, http.MethodPut, ts.URL+"/products/2", map[string]any{"stock": 42}, tok)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var got catalog.Product
	require.NoError(t, json.Unmarshal(raw, &got))
	want := sample("C2")
	want.ID = 2
	want.Stock = 42
	assert.Equal(t, want, got)

	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/products/2", map[string]any{"id": 2, "title": "same id"}, tok)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/products/2", map[string]any{"id": 5}, tok)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/products/2", map[string]any{"code": "C1"}, tok)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/products/999", map[string]any{"stock": 1}, tok)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/products/x", map[string]any{"stock": 1}, tok)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDelete(t *testing.T) {
	ts, repo := newCatalogTS(t, tsOpts{writes: true})
	seed(t, repo, "C1", "C2", "C3")
	tok := bearer(adminToken(t))

	resp, raw := doJSON(t, http.MethodDelete, ts.URL+"/products/2", nil, tok)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, raw)
	assert.Equal(t, []int{1, 3}, ids(repo.GetAll(context.Background())))

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/products/2", nil, tok)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/products/two", nil, tok)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreate_StrictWriteFailureIs500(t *testing.T) {
	store := &failingStore{MemStore: catalog.NewMemStore(nil), err: errors.New("read-only fs")}
	ts, _ := newCatalogTS(t, tsOpts{writes: true, strict: true, store: store})

	body := map[string]any{"title": "A", "description": "d", "price": 10, "thumbnail": "t", "code": "C1", "stock": 5}
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/products", body, bearer(adminToken(t)))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

type panicStore struct{ *catalog.MemStore }

func (panicStore) Read(context.Context) ([]byte, error) { panic("boom") }

func TestList_PanicIs500JSON(t *testing.T) {
	ts, _ := newCatalogTS(t, tsOpts{store: panicStore{catalog.NewMemStore(nil)}})

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/products", nil, nil)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var er kit.ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &er))
	assert.Equal(t, "server error", er.Error)
}

type unreadyStore struct{ *catalog.MemStore }

func (unreadyStore) Ping(context.Context) error { return errors.New("down") }

func TestReadyz(t *testing.T) {
	ts, _ := newCatalogTS(t, tsOpts{})
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/readyz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	down, _ := newCatalogTS(t, tsOpts{store: unreadyStore{catalog.NewMemStore(nil)}})
	resp, _ = doJSON(t, http.MethodGet, down.URL+"/readyz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	ts, repo := newCatalogTS(t, tsOpts{registry: reg, metricsToken: "scrape-me"})
	seed(t, repo, "C1")

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/products/1", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/metrics", nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/metrics", nil, bearer("wrong"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/metrics", nil, bearer("scrape-me"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `catalog_repository_operations_total{op="add",outcome="ok"} 1`)
	assert.Contains(t, string(raw), `path="/products/{id}"`)
}

func TestWrites_RateLimited(t *testing.T) {
	ts, _ := newCatalogTS(t, tsOpts{writes: true, limiter: kit.NewIPRateLimiter(1, time.Minute)})
	tok := bearer(adminToken(t))

	resp, _ := doJSON(t, http.MethodDelete, ts.URL+"/products/1", nil, tok)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/products/1", nil, tok)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/products", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "reads are not limited")
}
