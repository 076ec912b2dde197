package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestServiceDisabledWithoutTokens(t *testing.T) {
	svc := NewService(nil)
	if svc.Enabled() {
		t.Fatal("无令牌时服务应处于关闭状态")
	}
	if err := svc.Authenticate(""); err != nil {
		t.Fatalf("关闭状态应放行所有请求: %v", err)
	}
}

func TestServiceAuthenticate(t *testing.T) {
	svc := NewService([]string{"secret-token", "  ", ""})

	if err := svc.Authenticate("Bearer secret-token"); err != nil {
		t.Fatalf("合法令牌应通过: %v", err)
	}
	if err := svc.Authenticate("secret-token"); err != nil {
		t.Fatalf("裸令牌也应通过: %v", err)
	}
	if err := svc.Authenticate(""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("缺少令牌应返回 ErrMissingToken, got %v", err)
	}
	if err := svc.Authenticate("Bearer wrong"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("错误令牌应返回 ErrInvalidToken, got %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	svc := NewService([]string{"secret-token"})
	handler := svc.Middleware("test")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("缺少令牌应返回 401, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("非法令牌应返回 403, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("合法令牌应放行, got %d", rec.Code)
	}
}
