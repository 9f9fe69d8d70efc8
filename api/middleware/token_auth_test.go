package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler(t *testing.T, wantOperator string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, ok := Operator(r.Context())
		if wantOperator != "" {
			assert.True(t, ok)
			assert.Equal(t, wantOperator, name)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestTokenAuthMiddleware(t *testing.T) {
	m := NewTokenAuthMiddleware("alice:secret-a, secret-b")

	tests := []struct {
		name     string
		method   string
		path     string
		header   string
		operator string
		expected int
	}{
		{"读请求无需Token", http.MethodGet, "/disparity/report", "", "", http.StatusNoContent},
		{"白名单路径", http.MethodPost, "/health", "", "", http.StatusNoContent},
		{"缺少Token", http.MethodPut, "/config/thresholds", "", "", http.StatusUnauthorized},
		{"格式错误", http.MethodPut, "/config/thresholds", "Token secret-a", "", http.StatusUnauthorized},
		{"Token错误", http.MethodPost, "/datasets/upload", "Bearer wrong", "", http.StatusUnauthorized},
		{"具名Token", http.MethodPut, "/config/thresholds", "Bearer secret-a", "alice", http.StatusNoContent},
		{"匿名Token", http.MethodPost, "/datasets/upload", "Bearer secret-b", "api", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			m.Middleware(okHandler(t, tt.operator)).ServeHTTP(rec, req)
			assert.Equal(t, tt.expected, rec.Code)
		})
	}
}

func TestTokenAuthMiddleware_Disabled(t *testing.T) {
	m := NewTokenAuthMiddleware("")
	assert.False(t, m.Enabled())

	req := httptest.NewRequest(http.MethodPut, "/config/thresholds", nil)
	rec := httptest.NewRecorder()
	m.Middleware(okHandler(t, "")).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
