package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/bunai-labs/bunai-backend/pkg/logger"
)

type memoryStore struct {
	values map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}}
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, error) {
	value, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (m *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, exists := m.values[key]; exists {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "bunai:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func idempotencyHandler(t *testing.T, store *memoryStore) (http.Handler, *int) {
	t.Helper()
	calls := 0
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":{"reply":"ok"}}`))
	})
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	return Idempotency(store, logg)(inner), &calls
}

func TestIdempotencyRequiresHeaderOnGuardedRoute(t *testing.T) {
	handler, calls := idempotencyHandler(t, newMemoryStore())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages/inbound", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Zero(t, *calls)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newMemoryStore()
	handler, calls := idempotencyHandler(t, store)

	body := `{"phone":"+919800000001","message":"hi"}`
	first := httptest.NewRequest(http.MethodPost, "/api/v1/messages/inbound", strings.NewReader(body))
	first.Header.Set("Idempotency-Key", "abc-123")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, first)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 1, *calls)

	replay := httptest.NewRequest(http.MethodPost, "/api/v1/messages/inbound", strings.NewReader(body))
	replay.Header.Set("Idempotency-Key", "abc-123")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, replay)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"reply":"ok"`)
	require.Equal(t, 1, *calls)
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	store := newMemoryStore()
	handler, calls := idempotencyHandler(t, store)

	first := httptest.NewRequest(http.MethodPost, "/api/v1/messages/inbound", strings.NewReader(`{"a":1}`))
	first.Header.Set("Idempotency-Key", "abc-123")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, first)
	require.Equal(t, http.StatusOK, resp.Code)

	second := httptest.NewRequest(http.MethodPost, "/api/v1/messages/inbound", strings.NewReader(`{"a":2}`))
	second.Header.Set("Idempotency-Key", "abc-123")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, second)
	require.Equal(t, http.StatusConflict, resp.Code)
	require.Equal(t, 1, *calls)
}

func TestIdempotencySkipsUnguardedRoutes(t *testing.T) {
	handler, calls := idempotencyHandler(t, newMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 1, *calls)
}

func TestIdempotencyGuardsApprovalRoutes(t *testing.T) {
	handler, calls := idempotencyHandler(t, newMemoryStore())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/0b36e5a8-aaaa-bbbb-cccc-111122223333/approve", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Zero(t, *calls)
}
