/*
 * @module api/middleware/token_auth
 * @description Bearer Token 鉴权中间件，保护数据集加载和阈值修改等写操作
 * @architecture 中间件模式 - HTTP请求拦截和验证
 * @stateFlow Token提取 -> Token比对 -> 上下文注入 -> 下一个处理器
 * @rules
 *   - 未配置 Token 时不做鉴权
 *   - GET、HEAD、OPTIONS 和白名单路径不做鉴权
 * @dependencies net/http, github.com/go-chi/render
 * @refs api/routes.go
 */

package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/render"
)

// ContextKey 上下文键类型
type ContextKey string

// OperatorKey 调用方名称在上下文中的键
const OperatorKey ContextKey = "operator"

// TokenAuthMiddleware 静态 Token 认证中间件
type TokenAuthMiddleware struct {
	tokens         map[string]string // token -> 调用方名称
	whitelistPaths []string
}

// NewTokenAuthMiddleware 由 "name:token,name:token" 或 "token" 形式的配置创建中间件
func NewTokenAuthMiddleware(spec string) *TokenAuthMiddleware {
	m := &TokenAuthMiddleware{
		tokens:         make(map[string]string),
		whitelistPaths: []string{"/health", "/ready", "/swagger", "/metrics"},
	}
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, token, found := strings.Cut(entry, ":")
		if !found {
			name, token = "api", entry
		}
		m.tokens[token] = name
	}
	return m
}

// Enabled 是否配置了 Token
func (m *TokenAuthMiddleware) Enabled() bool {
	return len(m.tokens) > 0
}

// AddWhitelistPath 添加白名单路径
func (m *TokenAuthMiddleware) AddWhitelistPath(path string) {
	m.whitelistPaths = append(m.whitelistPaths, path)
}

// IsWhitelistPath 前缀匹配白名单
func (m *TokenAuthMiddleware) IsWhitelistPath(path string) bool {
	for _, p := range m.whitelistPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Middleware 认证中间件处理函数
func (m *TokenAuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() || isReadOnly(r.Method) || m.IsWhitelistPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			respondUnauthorized(w, r, "缺少或无效的Authorization头，需要Bearer Token")
			return
		}
		name, ok := m.lookup(strings.TrimPrefix(authHeader, "Bearer "))
		if !ok {
			respondUnauthorized(w, r, "Token无效")
			return
		}

		ctx := context.WithValue(r.Context(), OperatorKey, name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Operator 从上下文读取调用方名称
func Operator(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(OperatorKey).(string)
	return name, ok && name != ""
}

func (m *TokenAuthMiddleware) lookup(token string) (string, bool) {
	for candidate, name := range m.tokens {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			return name, true
		}
	}
	return "", false
}

func isReadOnly(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

func respondUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, map[string]interface{}{
		"status": http.StatusUnauthorized,
		"msg":    message,
	})
}
