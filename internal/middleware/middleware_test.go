package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aimerfeng/ChallengeHive/internal/auth"
	apierrors "github.com/aimerfeng/ChallengeHive/internal/errors"
	"github.com/aimerfeng/ChallengeHive/internal/models"
	"github.com/aimerfeng/ChallengeHive/internal/ratelimit"
	"github.com/aimerfeng/ChallengeHive/internal/store/memory"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "test-secret-key-for-jwt-testing"

func newVerifier() *auth.JWTVerifier {
	return auth.NewJWTVerifier(testSecret, "challengehive")
}

func issue(t *testing.T, email string, ttl time.Duration) string {
	t.Helper()
	token, err := newVerifier().Issue(email, ttl)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

func seedUser(t *testing.T, s *memory.Store, email string, role models.Role) {
	t.Helper()
	now := time.Now().UTC()
	if err := s.CreateUser(context.Background(), &models.User{Email: email, Role: role, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apierrors.ErrorResponse {
	t.Helper()
	var resp apierrors.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error body %q: %v", w.Body.String(), err)
	}
	return resp
}

func protectedRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), CorrelationID())
	router.Use(handlers...)
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"email": GetEmailFromContext(c), "role": string(GetRoleFromContext(c))})
	})
	return router
}

func TestAuthenticate_ValidToken(t *testing.T) {
	router := protectedRouter(Authenticate(newVerifier()))

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, "Player@Example.com", 15*time.Minute))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["email"] != "player@example.com" {
		t.Errorf("Expected normalized email, got %q", body["email"])
	}
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	router := protectedRouter(Authenticate(newVerifier()))

	req := httptest.NewRequest("GET", "/protected", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected status 401, got %d", w.Code)
	}
	resp := decodeError(t, w)
	if resp.Error.Code != apierrors.ErrUnauthenticated {
		t.Errorf("Expected code %s, got %s", apierrors.ErrUnauthenticated, resp.Error.Code)
	}
	if resp.Error.Path != "/protected" || resp.Error.Method != "GET" {
		t.Errorf("Expected path and method in envelope, got %q %q", resp.Error.Path, resp.Error.Method)
	}
	if resp.RequestID == "" {
		t.Error("Expected request_id in envelope")
	}
}

func TestAuthenticate_InvalidCredentials(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"garbage token", "Bearer invalid-token"},
		{"scheme only", "Bearer"},
		{"scheme with blank token", "Bearer   "},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"expired", "Bearer " + issue(t, "a@example.com", -time.Hour)},
		{"wrong secret", "Bearer " + func() string {
			tok, _ := auth.NewJWTVerifier("other-secret", "challengehive").Issue("a@example.com", time.Hour)
			return tok
		}()},
		{"no email claim", "Bearer " + issue(t, "", time.Hour)},
	}

	router := protectedRouter(Authenticate(newVerifier()))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/protected", nil)
			req.Header.Set("Authorization", tt.header)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusForbidden {
				t.Fatalf("Expected status 403, got %d", w.Code)
			}
			if code := decodeError(t, w).Error.Code; code != apierrors.ErrInvalidCredential {
				t.Errorf("Expected code %s, got %s", apierrors.ErrInvalidCredential, code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	users := memory.New()
	seedUser(t, users, "creator@example.com", models.RoleCreator)
	seedUser(t, users, "user@example.com", models.RoleUser)
	seedUser(t, users, "admin@example.com", models.RoleAdmin)

	tests := []struct {
		name     string
		email    string
		gate     gin.HandlerFunc
		expected int
	}{
		{"creator passes creator gate", "creator@example.com", RequireCreator(users), http.StatusOK},
		{"user fails creator gate", "user@example.com", RequireCreator(users), http.StatusForbidden},
		{"admin fails creator gate", "admin@example.com", RequireCreator(users), http.StatusForbidden},
		{"admin passes admin gate", "admin@example.com", RequireAdmin(users), http.StatusOK},
		{"creator fails admin gate", "creator@example.com", RequireAdmin(users), http.StatusForbidden},
		{"unknown user fails", "ghost@example.com", RequireAdmin(users), http.StatusForbidden},
		{"multiple roles", "creator@example.com", RequireRole(users, models.RoleAdmin, models.RoleCreator), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := protectedRouter(Authenticate(newVerifier()), tt.gate)
			req := httptest.NewRequest("GET", "/protected", nil)
			req.Header.Set("Authorization", "Bearer "+issue(t, tt.email, time.Hour))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.expected {
				t.Fatalf("Expected status %d, got %d: %s", tt.expected, w.Code, w.Body.String())
			}
			if tt.expected == http.StatusOK {
				var body map[string]string
				if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
					t.Fatal(err)
				}
				if body["role"] == "" {
					t.Error("Expected the gate to attach the caller's role")
				}
			}
			if tt.expected == http.StatusForbidden {
				if code := decodeError(t, w).Error.Code; code != apierrors.ErrForbidden {
					t.Errorf("Expected code %s, got %s", apierrors.ErrForbidden, code)
				}
			}
		})
	}
}

func TestRequireRole_WithoutAuthenticate(t *testing.T) {
	router := protectedRouter(RequireAdmin(memory.New()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/protected", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected status 401, got %d", w.Code)
	}
}

type failingLookup struct{}

func (failingLookup) GetUser(context.Context, string) (*models.User, error) {
	return nil, errors.New("connection reset")
}

func TestRequireRole_StoreFailureIsInternal(t *testing.T) {
	router := protectedRouter(Authenticate(newVerifier()), RequireAdmin(failingLookup{}))
	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, "admin@example.com", time.Hour))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", w.Code)
	}
	if msg := decodeError(t, w).Error.Message; msg == "connection reset" {
		t.Error("Internal error text leaked into response")
	}
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.NewLocalLimiter(60, 2)
	router := protectedRouter(RateLimit(limiter, "test"))

	statuses := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/protected", nil))
		statuses = append(statuses, w.Code)
		last = w
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Fatalf("Expected first two requests to pass, got %v", statuses)
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Fatalf("Expected third request to be limited, got %d", statuses[2])
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}
	if code := decodeError(t, last).Error.Code; code != apierrors.ErrRateLimited {
		t.Errorf("Expected code %s, got %s", apierrors.ErrRateLimited, code)
	}
}

func TestRecovery(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), Recovery())
	router.GET("/boom", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", w.Code)
	}
	resp := decodeError(t, w)
	if resp.Error.Code != apierrors.ErrInternalServer {
		t.Errorf("Expected code %s, got %s", apierrors.ErrInternalServer, resp.Error.Code)
	}
	if resp.Error.Message == "boom" {
		t.Error("Panic value leaked into response")
	}
}

func TestCORS(t *testing.T) {
	router := gin.New()
	router.Use(CORS([]string{"https://app.example.com"}))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest("OPTIONS", "/test", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected preflight 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Expected allowed origin echoed, got %q", got)
	}

	req = httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Expected no CORS header for unknown origin, got %q", got)
	}
}

func TestProperty_CorrelationID_GeneratedWhenMissing(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.Use(CorrelationID())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"correlation_id": GetCorrelationIDFromContext(c)})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	correlationID := w.Header().Get("X-Correlation-ID")
	if correlationID == "" {
		t.Fatal("PROPERTY VIOLATION: Correlation ID should be generated when not provided")
	}
	if len(correlationID) != 36 {
		t.Fatalf("PROPERTY VIOLATION: Correlation ID should be UUID format, got length %d", len(correlationID))
	}
}

func TestProperty_CorrelationID_PropagatedFromHeader(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.Use(CorrelationID())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})

	expected := "test-correlation-id-12345"
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Correlation-ID", expected)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-ID"); got != expected {
		t.Fatalf("PROPERTY VIOLATION: Correlation ID should be propagated, expected %s, got %s", expected, got)
	}
}

func TestProperty_CorrelationID_FallsBackToRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.Use(CorrelationID())

	var capturedRequestID, capturedCorrelationID string
	router.GET("/test", func(c *gin.Context) {
		capturedRequestID = GetRequestIDFromContext(c)
		capturedCorrelationID = GetCorrelationIDFromContext(c)
		c.JSON(http.StatusOK, gin.H{})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	if capturedCorrelationID != capturedRequestID {
		t.Fatalf("PROPERTY VIOLATION: Correlation ID should fall back to request ID, got correlation=%s, request=%s",
			capturedCorrelationID, capturedRequestID)
	}
}

func TestProperty_RequestID_UniquePerRequest(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})

	seen := make(map[string]bool)
	const numRequests = 10
	for i := 0; i < numRequests; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

		requestID := w.Header().Get("X-Request-ID")
		if requestID == "" {
			t.Fatal("PROPERTY VIOLATION: Request ID should be generated")
		}
		if seen[requestID] {
			t.Fatalf("PROPERTY VIOLATION: Request ID should be unique, got duplicate: %s", requestID)
		}
		seen[requestID] = true
	}
}

func TestProperty_RequestID_PropagatedFromHeader(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": GetRequestIDFromContext(c)})
	})

	expected := "test-request-id-12345"
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", expected)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != expected {
		t.Fatalf("PROPERTY VIOLATION: Request ID should be propagated, expected %s, got %s", expected, got)
	}
}
