package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/homelab-ir/backend/internal/config"
	"github.com/homelab-ir/backend/internal/model"
	"github.com/homelab-ir/backend/internal/service"
)

const testJWTSecret = "middleware-test-secret"

func newTestAuthService(t *testing.T) *service.AuthService {
	t.Helper()
	authService, err := service.NewAuthService(nil, config.AuthConfig{
		JWTSecret: testJWTSecret,
		AccessTTL: time.Minute,
	})
	if err != nil {
		t.Fatalf("auth service setup failed: %v", err)
	}
	return authService
}

func signTestToken(t *testing.T, operatorID, loginID string) string {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":     operatorID,
		"loginId": loginID,
		"iat":     now.Unix(),
		"exp":     now.Add(time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("token signing failed: %v", err)
	}
	return signed
}

func newAuthRouter(authService *service.AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", AuthMiddleware(authService), func(c *gin.Context) {
		user := GetAuthUser(c)
		if user == nil {
			c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "no auth user in context"})
			return
		}
		c.JSON(http.StatusOK, model.AuthMeResponse{UserID: user.ID, LoginID: user.LoginID})
	})
	return r
}

func TestAuthMiddlewareRejectsWithErrorEnvelope(t *testing.T) {
	r := newAuthRouter(newTestAuthService(t))

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"empty token", "Bearer "},
		{"garbage token", "Bearer not-a-jwt"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", w.Code)
			}
			var resp model.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("response must be the error envelope: %v", err)
			}
			if resp.Error != "unauthorized" {
				t.Fatalf("unexpected error message: %q", resp.Error)
			}
		})
	}
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	r := newAuthRouter(newTestAuthService(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "7", "admin"))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp model.AuthMeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected response body: %v", err)
	}
	if resp.UserID != 7 || resp.LoginID != "admin" {
		t.Fatalf("unexpected auth user: %+v", resp)
	}
}

func TestCORSMiddlewareAdvertisesServedMethodsOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware([]string{"http://localhost:5173"}, true))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", w.Code)
	}
	methods := w.Header().Get("Access-Control-Allow-Methods")
	if strings.Contains(methods, "PATCH") {
		t.Fatalf("allow-methods must not advertise PATCH: %q", methods)
	}
	for _, m := range []string{"GET", "POST", "PUT", "DELETE"} {
		if !strings.Contains(methods, m) {
			t.Fatalf("allow-methods missing %s: %q", m, methods)
		}
	}

	// 허용 목록에 없는 오리진은 CORS 헤더를 받지 못함
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	r.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("disallowed origin must not receive allow-origin header")
	}
}
