package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lii16com/arkilino/internal/config"
	"github.com/lii16com/arkilino/internal/domain"
	"github.com/lii16com/arkilino/internal/repository/file"
	"github.com/lii16com/arkilino/internal/service"
)

const adminPIN = "7777"

type testServer struct {
	router *gin.Engine
	store  interface {
		Load(ctx context.Context) (*domain.Document, error)
	}
	svc *service.SyncService
}

func setup(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Environment: "test",
		Store: config.StoreConfig{
			Backend:      config.BackendFile,
			Path:         filepath.Join(t.TempDir(), "data.json"),
			WriteTimeout: 5 * time.Second,
		},
		Admin:          config.AdminConfig{PIN: adminPIN, Header: "x-admin-pin"},
		BodyLimitBytes: 3 << 20,
	}
	logger := zap.NewNop()
	store := file.NewDocumentStore(cfg.Store.Path, logger)
	require.NoError(t, store.Ensure(context.Background()))

	writer := service.NewWriter(store, logger)
	t.Cleanup(writer.Close)
	svc := service.NewSyncService(store, writer, nil, false, logger)

	return &testServer{router: NewRouter(cfg, svc, logger), store: store, svc: svc}
}

func (s *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) admin(method, path, body string) *httptest.ResponseRecorder {
	return s.do(method, path, body, map[string]string{"x-admin-pin": adminPIN})
}

func (s *testServer) document(t *testing.T) *domain.Document {
	t.Helper()
	doc, err := s.store.Load(context.Background())
	require.NoError(t, err)
	return doc
}

const orderBody = `{
	"items": [{"title": "Classic", "qty": 2, "price": 10000, "extras": [{"name": "coal", "price": 2000}]}],
	"total": 24000,
	"customer": {"name": "Ali", "phone": "0790000000", "addr": "Amman"}
}`

func TestRoot_ListsEndpoints(t *testing.T) {
	s := setup(t)

	w := s.do(http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		OK        bool     `json:"ok"`
		Service   string   `json:"service"`
		Endpoints []string `json:"endpoints"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.OK)
	assert.Equal(t, serviceName, body.Service)
	assert.Contains(t, body.Endpoints, "POST /orders")

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "", nil).Code)
}

func TestProducts_FreshStoreIsEmptyList(t *testing.T) {
	s := setup(t)

	w := s.do(http.MethodGet, "/products", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestProducts_PushThenPullKeepsOrder(t *testing.T) {
	s := setup(t)

	var products []domain.Product
	for i := 0; i < 12; i++ {
		products = append(products, domain.Product{
			ID:     fmt.Sprintf("p%02d", i),
			Title:  fmt.Sprintf("Product %d", i),
			Price:  int64(i * 100),
			Extras: []domain.Extra{},
		})
	}
	raw, err := json.Marshal(products)
	require.NoError(t, err)

	w := s.admin(http.MethodPost, "/products", string(raw))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"count":12}`, w.Body.String())

	w = s.do(http.MethodGet, "/products", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pulled []domain.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pulled))
	assert.Equal(t, products, pulled)
}

func TestProducts_PutAlias(t *testing.T) {
	s := setup(t)

	w := s.admin(http.MethodPut, "/products", `[{"id":"h1","title":"Classic","price":10000}]`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, s.document(t).Products, 1)
}

func TestProducts_ObjectBodyRejected(t *testing.T) {
	s := setup(t)
	require.Equal(t, http.StatusOK, s.admin(http.MethodPost, "/products", `[{"id":"h1","title":"Classic","price":1}]`).Code)

	w := s.admin(http.MethodPost, "/products", `{"id":"h2","title":"Steel"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"expected array body"}`, w.Body.String())

	doc := s.document(t)
	require.Len(t, doc.Products, 1)
	assert.Equal(t, "h1", doc.Products[0].ID)
}

func TestProducts_InvalidEntryRejected(t *testing.T) {
	s := setup(t)

	w := s.admin(http.MethodPost, "/products", `[{"id":"","title":"x","price":1}]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid product")

	w = s.admin(http.MethodPost, "/products", `[{"id":"a","title":"x","price":"free"}]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, s.document(t).Products)
}

func TestProducts_WriteRequiresPIN(t *testing.T) {
	s := setup(t)

	w := s.do(http.MethodPost, "/products", `[]`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOrders_Guard(t *testing.T) {
	s := setup(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/orders", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/orders", "", map[string]string{"x-admin-pin": "0000"}).Code)

	w := s.admin(http.MethodGet, "/orders", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestOrders_CreateAndList(t *testing.T) {
	s := setup(t)

	w := s.do(http.MethodPost, "/orders", orderBody, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var created struct {
		OK bool   `json:"ok"`
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.True(t, created.OK)
	assert.Len(t, created.ID, 8)

	w = s.admin(http.MethodGet, "/orders", "")
	require.Equal(t, http.StatusOK, w.Code)
	var orders []domain.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, created.ID, orders[0].ID)
	assert.Equal(t, domain.OrderStatusReceived, orders[0].Status)
	assert.Equal(t, int64(24000), orders[0].Total)
}

func TestOrders_EmptyItemsRejected(t *testing.T) {
	s := setup(t)

	w := s.do(http.MethodPost, "/orders", `{"items": [], "total": 0, "customer": {"name": "Ali", "phone": "1", "addr": "x"}}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid order")
	assert.Empty(t, s.document(t).Orders)
}

func TestOrders_WrongTotalRejected(t *testing.T) {
	s := setup(t)

	body := strings.Replace(orderBody, `"total": 24000`, `"total": 1`, 1)
	w := s.do(http.MethodPost, "/orders", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, s.document(t).Orders)
}

func TestOrders_DuplicateIDConflicts(t *testing.T) {
	s := setup(t)

	body := strings.Replace(orderBody, `"items"`, `"id": "A1", "items"`, 1)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/orders", body, nil).Code)

	w := s.do(http.MethodPost, "/orders", body, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"order id already exists"}`, w.Body.String())
	assert.Len(t, s.document(t).Orders, 1)
}

func TestOrders_ConcurrentCreatesAllLand(t *testing.T) {
	s := setup(t)

	const n = 25
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := s.do(http.MethodPost, "/orders", orderBody, nil)
			if !assert.Equal(t, http.StatusOK, w.Code) {
				return
			}
			var created struct {
				ID string `json:"id"`
			}
			if assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &created)) {
				ids <- created.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	unique := map[string]bool{}
	for id := range ids {
		unique[id] = true
	}
	assert.Len(t, unique, n)
	assert.Len(t, s.document(t).Orders, n)
}

func TestOrders_StatusChange(t *testing.T) {
	s := setup(t)

	body := strings.Replace(orderBody, `"items"`, `"id": "A1", "items"`, 1)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/orders", body, nil).Code)

	status := fmt.Sprintf(`{"status": %q}`, domain.OrderStatusOutForDelivery)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/orders/A1/status", status, nil).Code)

	w := s.admin(http.MethodPost, "/orders/A1/status", status)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.OrderStatusOutForDelivery, s.document(t).Orders[0].Status)

	w = s.admin(http.MethodPatch, "/orders/A1/status", fmt.Sprintf(`{"status": %q}`, domain.OrderStatusDelivered))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.OrderStatusDelivered, s.document(t).Orders[0].Status)

	assert.Equal(t, http.StatusNotFound, s.admin(http.MethodPost, "/orders/B2/status", status).Code)
	assert.Equal(t, http.StatusBadRequest, s.admin(http.MethodPost, "/orders/A1/status", `{"status": "lost"}`).Code)
}

func TestOrders_IdempotentRetry(t *testing.T) {
	s := setup(t)
	headers := map[string]string{"Idempotency-Key": "checkout-1"}

	first := s.do(http.MethodPost, "/orders", orderBody, headers)
	require.Equal(t, http.StatusOK, first.Code)
	second := s.do(http.MethodPost, "/orders", orderBody, headers)
	require.Equal(t, http.StatusOK, second.Code)

	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Len(t, s.document(t).Orders, 1)
}

func TestChat_FirstMessageCreatesThread(t *testing.T) {
	s := setup(t)

	w := s.do(http.MethodPost, "/chat", `{"userId":"u1","msg":{"text":"hi"},"name":"Ali"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	w = s.admin(http.MethodGet, "/chat?userId=u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var thread domain.Thread
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &thread))
	assert.Equal(t, "u1", thread.UserID)
	assert.Equal(t, "Ali", thread.Name)
	require.Len(t, thread.Messages, 1)
	assert.Equal(t, "hi", thread.Messages[0].Text)
	assert.False(t, thread.Messages[0].Admin)
	assert.NotZero(t, thread.Messages[0].TS)
}

func TestChat_UnknownThreadIsEmptyShape(t *testing.T) {
	s := setup(t)

	w := s.admin(http.MethodGet, "/chat?userId=ghost", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":"ghost","name":"","phone":"","msgs":[]}`, w.Body.String())
}

func TestChat_Summaries(t *testing.T) {
	s := setup(t)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/chat", `{"userId":"u2","msg":{"text":"a","ts":1}}`, nil).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/chat", `{"userId":"u1","msg":{"text":"b","ts":2},"phone":"079"}`, nil).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/chat", `{"userId":"u1","msg":{"me":true,"text":"c","ts":3}}`, nil).Code)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/chat", "", nil).Code)

	w := s.admin(http.MethodGet, "/chat", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[
		{"userId":"u1","name":"","phone":"079","last":{"me":true,"text":"c","ts":3},"count":2},
		{"userId":"u2","name":"","phone":"","last":{"me":false,"text":"a","ts":1},"count":1}
	]`, w.Body.String())
}

func TestChat_InvalidPayload(t *testing.T) {
	s := setup(t)

	for _, body := range []string{
		`{"msg":{"text":"hi"}}`,
		`{"userId":"u1"}`,
		`{"userId":"u1","msg":{"text":"   "}}`,
		`{"userId":"u1","msg":{"text":42}}`,
		`not json`,
	} {
		w := s.do(http.MethodPost, "/chat", body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Contains(t, w.Body.String(), "invalid payload", body)
	}
	assert.Empty(t, s.document(t).Chats)
}

func TestBodyLimit(t *testing.T) {
	s := setup(t)

	huge := `{"userId":"u1","msg":{"text":"` + strings.Repeat("x", 4<<20) + `"}}`
	w := s.do(http.MethodPost, "/chat", huge, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := setup(t)

	w := s.do(http.MethodOptions, "/orders", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
