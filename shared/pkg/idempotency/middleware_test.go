package idempotency

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// stubKeyRepository lets each test script the lock outcome and observe the
// stored response.
type stubKeyRepository struct {
	acquireLock   func(ctx context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error)
	storedCode    int
	storedBody    []byte
	storedHeaders map[string]string
	storeErr      error
	lastAcquired  *IdempotencyKey
}

func (s *stubKeyRepository) AcquireLock(ctx context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error) {
	s.lastAcquired = key
	if s.acquireLock != nil {
		return s.acquireLock(ctx, key)
	}
	key.ID = primitive.NewObjectID()
	return key, true, nil
}

func (s *stubKeyRepository) StoreResponse(_ context.Context, _ string, responseCode int, responseBody []byte, headers map[string]string) error {
	if s.storeErr != nil {
		return s.storeErr
	}
	s.storedCode = responseCode
	s.storedBody = append([]byte(nil), responseBody...)
	s.storedHeaders = headers
	return nil
}

func (s *stubKeyRepository) EnsureIndexes(context.Context) error {
	return nil
}

func assignmentRouter(config *Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware(config))
	router.POST("/api/v1/assignments", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"batchId": "ASG-7f3a2c91", "status": "completed"})
	})
	router.GET("/api/v1/assignments", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"items": []string{}})
	})
	return router
}

func postAssignment(router *gin.Engine, key string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assignments", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMiddleware_OptionalKeyMissing(t *testing.T) {
	repo := &stubKeyRepository{}
	config := DefaultConfig("assignment-service", repo)

	w := postAssignment(assignmentRouter(config), "", `{"items":[]}`)

	if w.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", w.Code)
	}
	if repo.lastAcquired != nil {
		t.Error("no lock should be taken without a key")
	}
}

func TestMiddleware_RequiredKeyMissing(t *testing.T) {
	config := DefaultConfig("assignment-service", &stubKeyRepository{})
	config.RequireKey = true

	w := postAssignment(assignmentRouter(config), "", `{"items":[]}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestMiddleware_InvalidKey(t *testing.T) {
	config := DefaultConfig("assignment-service", &stubKeyRepository{})

	w := postAssignment(assignmentRouter(config), "key with spaces", `{"items":[]}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestMiddleware_FirstRequestRunsHandlerAndStoresResponse(t *testing.T) {
	repo := &stubKeyRepository{}
	config := DefaultConfig("assignment-service", repo)

	w := postAssignment(assignmentRouter(config), "assign-2025-0001", `{"items":[{"stockItemId":"SKU-1001"}]}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if repo.storedCode != http.StatusCreated {
		t.Errorf("stored status = %d, want 201", repo.storedCode)
	}
	if !bytes.Contains(repo.storedBody, []byte("ASG-7f3a2c91")) {
		t.Errorf("stored body %q does not contain the handler response", repo.storedBody)
	}
	if repo.lastAcquired.RequestPath != "/api/v1/assignments" {
		t.Errorf("recorded path = %q", repo.lastAcquired.RequestPath)
	}
	if repo.lastAcquired.RequestFingerprint != ComputeFingerprint([]byte(`{"items":[{"stockItemId":"SKU-1001"}]}`)) {
		t.Error("fingerprint does not match request body")
	}
}

func TestMiddleware_ReplaysCachedResponse(t *testing.T) {
	completedAt := time.Now().UTC()
	cached := []byte(`{"batchId":"ASG-7f3a2c91","status":"completed"}`)

	repo := &stubKeyRepository{
		acquireLock: func(_ context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error) {
			return &IdempotencyKey{
				ID:                 primitive.NewObjectID(),
				Key:                key.Key,
				ServiceID:          key.ServiceID,
				RequestFingerprint: key.RequestFingerprint,
				ResponseCode:       http.StatusCreated,
				ResponseBody:       cached,
				ResponseHeaders:    map[string]string{"X-Request-ID": "req-original"},
				CompletedAt:        &completedAt,
			}, false, nil
		},
	}
	config := DefaultConfig("assignment-service", repo)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware(config))
	router.POST("/api/v1/assignments", func(c *gin.Context) {
		t.Error("handler must not run for a completed key")
	})

	w := postAssignment(router, "assign-2025-0001", `{"items":[]}`)

	if w.Code != http.StatusCreated {
		t.Errorf("expected replayed 201, got %d", w.Code)
	}
	if w.Body.String() != string(cached) {
		t.Errorf("body = %q, want cached response", w.Body.String())
	}
	if w.Header().Get("X-Request-ID") != "req-original" {
		t.Error("cached headers not replayed")
	}
}

func TestMiddleware_RejectsReusedKeyWithDifferentBody(t *testing.T) {
	completedAt := time.Now().UTC()
	originalFingerprint := ComputeFingerprint([]byte(`{"items":[{"stockItemId":"SKU-1001"}]}`))

	repo := &stubKeyRepository{
		acquireLock: func(_ context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error) {
			return &IdempotencyKey{
				ID:                 primitive.NewObjectID(),
				Key:                key.Key,
				ServiceID:          key.ServiceID,
				RequestFingerprint: originalFingerprint,
				ResponseCode:       http.StatusCreated,
				CompletedAt:        &completedAt,
			}, false, nil
		},
	}
	config := DefaultConfig("assignment-service", repo)

	w := postAssignment(assignmentRouter(config), "assign-2025-0001", `{"items":[{"stockItemId":"SKU-9999"}]}`)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", w.Code)
	}
}

func TestMiddleware_RejectsConcurrentRequest(t *testing.T) {
	lockedAt := time.Now().UTC()

	repo := &stubKeyRepository{
		acquireLock: func(_ context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error) {
			return &IdempotencyKey{
				ID:                 primitive.NewObjectID(),
				Key:                key.Key,
				ServiceID:          key.ServiceID,
				RequestFingerprint: key.RequestFingerprint,
				LockedAt:           &lockedAt,
			}, false, nil
		},
	}
	config := DefaultConfig("assignment-service", repo)

	w := postAssignment(assignmentRouter(config), "assign-2025-0001", `{"items":[]}`)

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestMiddleware_ReclaimsAbandonedLock(t *testing.T) {
	staleLock := time.Now().UTC().Add(-10 * time.Minute)

	repo := &stubKeyRepository{
		acquireLock: func(_ context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error) {
			return &IdempotencyKey{
				ID:                 primitive.NewObjectID(),
				Key:                key.Key,
				ServiceID:          key.ServiceID,
				RequestFingerprint: key.RequestFingerprint,
				LockedAt:           &staleLock,
			}, false, nil
		},
	}
	config := DefaultConfig("assignment-service", repo)
	config.LockTimeout = 5 * time.Minute

	w := postAssignment(assignmentRouter(config), "assign-2025-0001", `{"items":[]}`)

	if w.Code != http.StatusCreated {
		t.Errorf("stale lock should be reclaimed and the handler run, got %d", w.Code)
	}
	if repo.storedCode != http.StatusCreated {
		t.Error("response should be stored after reclaiming the lock")
	}
}

func TestMiddleware_StorageUnavailable(t *testing.T) {
	repo := &stubKeyRepository{
		acquireLock: func(context.Context, *IdempotencyKey) (*IdempotencyKey, bool, error) {
			return nil, false, errors.New("connection refused")
		},
	}
	config := DefaultConfig("assignment-service", repo)

	w := postAssignment(assignmentRouter(config), "assign-2025-0001", `{"items":[]}`)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestMiddleware_SkipsReadRequests(t *testing.T) {
	repo := &stubKeyRepository{
		acquireLock: func(context.Context, *IdempotencyKey) (*IdempotencyKey, bool, error) {
			t.Error("GET requests must not take locks")
			return nil, false, nil
		},
	}
	config := DefaultConfig("assignment-service", repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assignments", nil)
	req.Header.Set(HeaderIdempotencyKey, "assign-2025-0001")
	w := httptest.NewRecorder()
	assignmentRouter(config).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestMiddleware_ScopesKeyByTenant(t *testing.T) {
	repo := &stubKeyRepository{}
	config := DefaultConfig("assignment-service", repo)
	config.TenantIDExtractor = func(c *gin.Context) string {
		return c.GetHeader("X-Tenant-ID")
	}

	router := assignmentRouter(config)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assignments", bytes.NewBufferString(`{"items":[]}`))
	req.Header.Set(HeaderIdempotencyKey, "assign-2025-0001")
	req.Header.Set("X-Tenant-ID", "tenant-acme")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if repo.lastAcquired.TenantID != "tenant-acme" {
		t.Errorf("tenant = %q, want tenant-acme", repo.lastAcquired.TenantID)
	}
}
