package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ridedispatch/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubResolver map[string]domain.Identity

func (s stubResolver) Resolve(token string) (domain.Identity, error) {
	id, ok := s[token]
	if !ok {
		return domain.Identity{}, errors.New("invalid token")
	}
	return id, nil
}

func serve(r http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()
	resolver := stubResolver{
		"driver-token":   {UserID: "d1", Role: domain.RoleDriver},
		"customer-token": {UserID: "c1", Role: domain.RoleCustomer},
	}

	r := gin.New()
	r.Use(RequireAuth(resolver))
	r.GET("/any", func(c *gin.Context) {
		id, _ := IdentityFrom(c)
		c.String(http.StatusOK, id.Key())
	})
	r.GET("/drivers-only", RequireRole(domain.RoleDriver), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	testCases := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing header", "/any", "", http.StatusUnauthorized},
		{"not bearer", "/any", "Basic abc", http.StatusUnauthorized},
		{"unknown token", "/any", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "/any", "Bearer customer-token", http.StatusOK},
		{"wrong role", "/drivers-only", "Bearer customer-token", http.StatusForbidden},
		{"right role", "/drivers-only", "Bearer driver-token", http.StatusOK},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			header := map[string]string{}
			if tc.header != "" {
				header["Authorization"] = tc.header
			}
			w := serve(r, http.MethodGet, tc.path, header)
			if w.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}

	w := serve(r, http.MethodGet, "/any", map[string]string{"Authorization": "Bearer customer-token"})
	if w.Body.String() != "customer:c1" {
		t.Errorf("expected identity customer:c1, got %q", w.Body.String())
	}
}

func newIdempotentRouter(t *testing.T, status int, calls *int32) *gin.Engine {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := gin.New()
	r.Use(func(c *gin.Context) {
		SetIdentity(c, domain.Identity{UserID: c.GetHeader("X-User"), Role: domain.RoleCustomer})
		c.Next()
	})
	r.Use(Idempotency(client, zap.NewNop()))
	r.POST("/rides", func(c *gin.Context) {
		n := atomic.AddInt32(calls, 1)
		c.JSON(status, gin.H{"call": n})
	})
	return r
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	t.Parallel()
	var calls int32
	r := newIdempotentRouter(t, http.StatusCreated, &calls)
	header := map[string]string{"Idempotency-Key": "k1", "X-User": "c1"}

	first := serve(r, http.MethodPost, "/rides", header)
	second := serve(r, http.MethodPost, "/rides", header)

	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Errorf("expected replay of %d %s, got %d %s", first.Code, first.Body, second.Code, second.Body)
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("expected replay header")
	}
}

func TestIdempotency_KeysAreScopedPerCaller(t *testing.T) {
	t.Parallel()
	var calls int32
	r := newIdempotentRouter(t, http.StatusCreated, &calls)

	serve(r, http.MethodPost, "/rides", map[string]string{"Idempotency-Key": "k1", "X-User": "c1"})
	serve(r, http.MethodPost, "/rides", map[string]string{"Idempotency-Key": "k1", "X-User": "c2"})
	serve(r, http.MethodPost, "/rides", map[string]string{"X-User": "c1"})

	if calls != 3 {
		t.Errorf("expected 3 handler runs, got %d", calls)
	}
}

func TestIdempotency_ServerErrorsAreNotStored(t *testing.T) {
	t.Parallel()
	var calls int32
	r := newIdempotentRouter(t, http.StatusInternalServerError, &calls)
	header := map[string]string{"Idempotency-Key": "k1", "X-User": "c1"}

	serve(r, http.MethodPost, "/rides", header)
	serve(r, http.MethodPost, "/rides", header)

	if calls != 2 {
		t.Errorf("expected retry after 5xx to run again, got %d runs", calls)
	}
}

func TestRateLimit_RejectsBurstOverflow(t *testing.T) {
	t.Parallel()
	r := gin.New()
	r.Use(RateLimit(1, 2))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = serve(r, http.MethodGet, "/ping", map[string]string{"X-Real-IP": "10.0.0.1"}).Code
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("expected burst of 2 allowed, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("expected third request throttled, got %d", codes[2])
	}

	other := serve(r, http.MethodGet, "/ping", map[string]string{"X-Real-IP": "10.0.0.2"})
	if other.Code != http.StatusOK {
		t.Errorf("expected other client unaffected, got %d", other.Code)
	}
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	t.Parallel()
	r := gin.New()
	r.Use(CORS([]string{"https://app.example.com"}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/ping", map[string]string{"Origin": "https://app.example.com"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("expected origin echoed, got %q", got)
	}

	w = serve(r, http.MethodGet, "/ping", map[string]string{"Origin": "https://evil.example.com"})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for unknown origin, got %d", w.Code)
	}
}
